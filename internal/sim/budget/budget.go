// Package budget tracks how much of the per-cycle operation allowance the
// navigation engine spends and exposes a smoothed pressure signal that callers
// use to throttle long-distance work.
package budget

type Meter struct {
	limit     int
	smoothing float64

	used     int
	peak     int
	avg      float64
	primed   bool
	lastUsed int
}

// NewMeter builds a meter for a hard per-cycle limit. smoothing is the EMA
// weight of the newest sample, in (0, 1].
func NewMeter(limit int, smoothing float64) *Meter {
	if limit <= 0 {
		limit = 1
	}
	if smoothing <= 0 || smoothing > 1 {
		smoothing = 0.1
	}
	return &Meter{limit: limit, smoothing: smoothing}
}

// Charge records ops spent in the current cycle.
func (m *Meter) Charge(ops int) {
	if ops > 0 {
		m.used += ops
	}
}

// Used is the amount charged so far this cycle.
func (m *Meter) Used() int { return m.used }

// Remaining is what is left of the hard limit this cycle, never negative.
func (m *Meter) Remaining() int {
	return max(0, m.limit-m.used)
}

// Close folds the current cycle into the moving average and resets the counter.
func (m *Meter) Close() {
	sample := float64(m.used)
	if !m.primed {
		m.avg = sample
		m.primed = true
	} else {
		m.avg += m.smoothing * (sample - m.avg)
	}
	m.peak = max(m.peak, m.used)
	m.lastUsed = m.used
	m.used = 0
}

// Pressure is the smoothed per-cycle usage divided by the hard limit.
// Values near or above 1 mean the cycle is close to being aborted.
func (m *Meter) Pressure() float64 {
	return m.avg / float64(m.limit)
}

// Snapshot is a read-only view for stats feeds.
type Snapshot struct {
	Limit    int     `json:"limit"`
	LastUsed int     `json:"last_used"`
	Peak     int     `json:"peak"`
	Pressure float64 `json:"pressure"`
}

func (m *Meter) Snapshot() Snapshot {
	return Snapshot{Limit: m.limit, LastUsed: m.lastUsed, Peak: m.peak, Pressure: m.Pressure()}
}
