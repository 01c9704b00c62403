package observability

import (
	"log/slog"
	"math"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var GradeDriftPoints = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "grade_drift_points",
		Help: "Gap in percentage points between the rolling mean grade and the baseline window",
	},
)

const (
	driftWindowSize = 20
	driftThreshold  = 15.0
)

// GradeDriftMonitor compares the rolling mean of final grade percentages
// against a baseline taken from the first full window. A mean that wanders
// past the threshold usually means the provider model changed under us,
// not that submissions got better or worse, so the monitor logs a warning
// and exports the gap for dashboards to alert on.
type GradeDriftMonitor struct {
	mu        sync.Mutex
	window    int
	threshold float64
	baseline  float64
	baselined bool
	recent    []float64
	alerted   bool
}

// NewGradeDriftMonitor builds a monitor. Non-positive arguments fall back
// to the defaults.
func NewGradeDriftMonitor(window int, threshold float64) *GradeDriftMonitor {
	if window <= 0 {
		window = driftWindowSize
	}
	if threshold <= 0 {
		threshold = driftThreshold
	}
	return &GradeDriftMonitor{window: window, threshold: threshold}
}

// Record folds one final grade percentage into the rolling window.
func (m *GradeDriftMonitor) Record(percentage int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.recent = append(m.recent, float64(percentage))
	if len(m.recent) > m.window {
		m.recent = m.recent[1:]
	}
	if len(m.recent) < m.window {
		return
	}
	if !m.baselined {
		m.baseline = mean(m.recent)
		m.baselined = true
		slog.Info("grade drift baseline established",
			slog.Float64("baseline", m.baseline),
			slog.Int("window", m.window))
		return
	}

	drift := math.Abs(mean(m.recent) - m.baseline)
	GradeDriftPoints.Set(drift)
	switch {
	case drift > m.threshold && !m.alerted:
		m.alerted = true
		slog.Warn("grade drift detected",
			slog.Float64("drift", drift),
			slog.Float64("baseline", m.baseline),
			slog.Float64("threshold", m.threshold))
	case drift <= m.threshold:
		m.alerted = false
	}
}

// Drift reports the current gap from baseline, zero until a baseline and a
// second full window exist.
func (m *GradeDriftMonitor) Drift() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.baselined || len(m.recent) < m.window {
		return 0
	}
	return math.Abs(mean(m.recent) - m.baseline)
}

// Baseline reports the established baseline, if any.
func (m *GradeDriftMonitor) Baseline() (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.baseline, m.baselined
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

var defaultDriftMonitor = NewGradeDriftMonitor(driftWindowSize, driftThreshold)
