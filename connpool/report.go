// connpool/report.go
package connpool

// Weights and caps for the efficiency score. Utilization contributes up to 50 points
// over a useful range of 0-80%, reuse rate up to 43 points over 0-70%, and inverse mean
// latency up to 30 points; the sum is clamped to [0,100].
const (
	utilizationWeight  = 50.0
	utilizationCeiling = 0.8
	reuseRateWeight    = 43.0
	reuseRateCeiling   = 0.7
	latencyWeight      = 30.0
)

// Report is a point-in-time view of pool effectiveness.
type Report struct {
	Size            int     `json:"size"`
	Active          int     `json:"active"`
	Available       int     `json:"available"`
	Idle            int     `json:"idle"`
	Created         int64   `json:"created"`
	Reused          int64   `json:"reused"`
	Closed          int64   `json:"closed"`
	ReuseRate       float64 `json:"reuse_rate"`
	Utilization     float64 `json:"utilization"`
	EfficiencyScore float64 `json:"efficiency_score"`
}

// Health is a point-in-time view of pool liveness.
type Health struct {
	Size            int   `json:"size"`
	Active          int   `json:"active"`
	Idle            int   `json:"idle"`
	UnhealthyClosed int64 `json:"unhealthy_closed"`
}

// Report builds an effectiveness report. meanLatencySeconds is the engine's rolling
// average batch latency, folded into the efficiency score.
func (p *Pool) Report(meanLatencySeconds float64) Report {
	p.mu.Lock()
	defer p.mu.Unlock()

	r := Report{
		Size:      p.size,
		Active:    p.active,
		Available: p.size - p.active,
		Idle:      len(p.idle),
		Created:   p.created,
		Reused:    p.reused,
		Closed:    p.closed,
	}

	if total := p.reused + p.created; total > 0 {
		r.ReuseRate = float64(p.reused) / float64(total)
	}
	if p.size > 0 {
		r.Utilization = float64(p.active) / float64(p.size)
	}

	r.EfficiencyScore = efficiencyScore(r.Utilization, r.ReuseRate, meanLatencySeconds)
	return r
}

// Health builds a liveness snapshot.
func (p *Pool) Health() Health {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Health{
		Size:            p.size,
		Active:          p.active,
		Idle:            len(p.idle),
		UnhealthyClosed: p.closed,
	}
}

// efficiencyScore combines utilization, reuse rate, and inverse mean latency into a
// single 0-100 figure.
func efficiencyScore(utilization, reuseRate, meanLatencySeconds float64) float64 {
	util := utilization
	if util > utilizationCeiling {
		util = utilizationCeiling
	}
	score := util / utilizationCeiling * utilizationWeight

	reuse := reuseRate
	if reuse > reuseRateCeiling {
		reuse = reuseRateCeiling
	}
	score += reuse / reuseRateCeiling * reuseRateWeight

	if meanLatencySeconds <= 0 {
		score += latencyWeight
	} else {
		inverse := 1.0 / meanLatencySeconds
		if inverse > 1 {
			inverse = 1
		}
		score += inverse * latencyWeight
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}
