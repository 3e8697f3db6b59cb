package concurrency

import (
	"testing"
	"time"

	"github.com/syncforge/go-batch-http-engine/logger"
	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int                     { return &v }
func floatPtr(v float64) *float64           { return &v }
func durPtr(v time.Duration) *time.Duration { return &v }
func boolPtr(v bool) *bool                  { return &v }

func TestConfig_ApplyLimitsMergesInRangeValues(t *testing.T) {
	cfg := DefaultConfig()

	cfg.ApplyLimits(LimitOverrides{
		MaxConcurrentRequests:     intPtr(8),
		RequestTimeout:            durPtr(45 * time.Second),
		MemoryThreshold:           floatPtr(0.75),
		CPUThreshold:              floatPtr(3.5),
		EnableAdaptiveAdjustment:  boolPtr(false),
		EnableDynamicRateLimiting: boolPtr(true),
		RequestsPerSecond:         floatPtr(25),
	}, logger.Nop())

	assert.Equal(t, 8, cfg.MaxConcurrentRequests)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 0.75, cfg.MemoryThreshold)
	assert.Equal(t, 3.5, cfg.CPUThreshold)
	assert.False(t, cfg.EnableAdaptiveAdjustment)
	assert.True(t, cfg.EnableDynamicRateLimiting)
	assert.Equal(t, 25.0, cfg.RequestsPerSecond)
}

func TestConfig_ApplyLimitsClampsOutOfRangeValues(t *testing.T) {
	tests := []struct {
		name      string
		overrides LimitOverrides
		check     func(t *testing.T, cfg Config)
	}{
		{
			name:      "max concurrent requests clamps high",
			overrides: LimitOverrides{MaxConcurrentRequests: intPtr(100)},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, MaxConcurrency, cfg.MaxConcurrentRequests)
			},
		},
		{
			name:      "max concurrent requests clamps low",
			overrides: LimitOverrides{MaxConcurrentRequests: intPtr(0)},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, MinConcurrency, cfg.MaxConcurrentRequests)
			},
		},
		{
			name:      "timeout clamps low",
			overrides: LimitOverrides{RequestTimeout: durPtr(time.Second)},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, MinRequestTimeout, cfg.RequestTimeout)
			},
		},
		{
			name:      "timeout clamps high",
			overrides: LimitOverrides{RequestTimeout: durPtr(time.Hour)},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, MaxRequestTimeout, cfg.RequestTimeout)
			},
		},
		{
			name:      "memory threshold clamps low",
			overrides: LimitOverrides{MemoryThreshold: floatPtr(0.1)},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, MinMemoryThreshold, cfg.MemoryThreshold)
			},
		},
		{
			name:      "memory threshold clamps high",
			overrides: LimitOverrides{MemoryThreshold: floatPtr(0.99)},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, MaxMemoryThreshold, cfg.MemoryThreshold)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.ApplyLimits(tc.overrides, logger.Nop())
			tc.check(t, cfg)
		})
	}
}

func TestConfig_ApplyLimitsLeavesUnsetFieldsUntouched(t *testing.T) {
	cfg := DefaultConfig()
	before := cfg

	cfg.ApplyLimits(LimitOverrides{}, logger.Nop())
	assert.Equal(t, before, cfg)
}
