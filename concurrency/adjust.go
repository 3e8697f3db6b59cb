// concurrency/adjust.go
package concurrency

import "go.uber.org/zap"

// Adjust is the post-batch feedback step. A batch success rate below 80% shrinks the
// next batch to floor(k*0.8); above 95% grows it to ceil(k*1.1); anything between
// leaves it unchanged. The result stays within [MinConcurrency, MaxConcurrency].
//
// The scaled values are computed in integer space so that, e.g., k=10 grows to 11
// rather than picking up float drift from 10*1.1.
func (t *Tuner) Adjust(cfg Config, currentK int, batchSuccessRate float64) int {
	newK := currentK

	switch {
	case batchSuccessRate < scaleDownSuccessRate:
		newK = maxInt(cfg.MinConcurrency, currentK*8/10)
	case batchSuccessRate > scaleUpSuccessRate:
		newK = minInt(cfg.MaxConcurrency, (currentK*11+9)/10)
	}

	if newK != currentK {
		t.logger.Info("Adjusted concurrency from batch feedback",
			zap.Int("currentConcurrency", currentK),
			zap.Int("newConcurrency", newK),
			zap.Float64("batchSuccessRate", batchSuccessRate),
		)
	}

	return newK
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
