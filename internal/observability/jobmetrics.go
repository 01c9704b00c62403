package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	JobsProcessing = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jobs_processing",
			Help: "Number of jobs currently processing",
		},
		[]string{"type"},
	)
	JobsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_completed_total",
			Help: "Total number of jobs completed",
		},
		[]string{"type"},
	)
	JobsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_failed_total",
			Help: "Total number of jobs failed",
		},
		[]string{"type"},
	)
	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_duration_seconds",
			Help:    "End-to-end job duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"type"},
	)
	PhaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grade_phase_duration_seconds",
			Help:    "Duration of grade pipeline phases",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"phase"},
	)

	CriterionChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "criterion_checks_total",
			Help: "Total number of criterion checks by verdict",
		},
		[]string{"verdict"},
	)
	CriterionCheckDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "criterion_check_duration_seconds",
			Help:    "Criterion check duration in seconds, including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)
	CriterionChecksActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "criterion_checks_active",
			Help: "Criterion checks currently in flight",
		},
	)

	// Grade outcome distribution
	GradePercentageHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "grade_percentage",
			Help:    "Distribution of final grade percentages",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	LLMTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens exchanged by provider, model, and direction",
		},
		[]string{"provider", "model", "direction"},
	)

	EventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_dropped_total",
			Help: "Total progress events evicted from slow subscriber buffers",
		},
		[]string{"type"},
	)

	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "Total LLM chat calls by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)
)

// RegisterJobMetrics registers the job, criterion, and token collectors.
// Call once at startup; helpers work on unregistered collectors too, which
// keeps unit tests free of registry bookkeeping.
func RegisterJobMetrics() {
	prometheus.MustRegister(JobsProcessing)
	prometheus.MustRegister(JobsCompletedTotal)
	prometheus.MustRegister(JobsFailedTotal)
	prometheus.MustRegister(JobDuration)
	prometheus.MustRegister(PhaseDuration)
	prometheus.MustRegister(CriterionChecksTotal)
	prometheus.MustRegister(CriterionCheckDuration)
	prometheus.MustRegister(CriterionChecksActive)
	prometheus.MustRegister(GradePercentageHistogram)
	prometheus.MustRegister(GradeDriftPoints)
	prometheus.MustRegister(LLMTokensTotal)
	prometheus.MustRegister(EventsDroppedTotal)
	prometheus.MustRegister(LLMRequestsTotal)
}

// RecordDroppedEvents flushes a job's drop count when the job is evicted.
func RecordDroppedEvents(jobType string, n uint64) {
	if n > 0 {
		EventsDroppedTotal.WithLabelValues(jobType).Add(float64(n))
	}
}

func StartGradeJob() {
	JobsProcessing.WithLabelValues("grade").Inc()
}

func CompleteGradeJob(d time.Duration) {
	JobsProcessing.WithLabelValues("grade").Dec()
	JobsCompletedTotal.WithLabelValues("grade").Inc()
	JobDuration.WithLabelValues("grade").Observe(d.Seconds())
}

func FailGradeJob() {
	JobsProcessing.WithLabelValues("grade").Dec()
	JobsFailedTotal.WithLabelValues("grade").Inc()
}

func StartReviewJob() {
	JobsProcessing.WithLabelValues("review").Inc()
}

func CompleteReviewJob(d time.Duration) {
	JobsProcessing.WithLabelValues("review").Dec()
	JobsCompletedTotal.WithLabelValues("review").Inc()
	JobDuration.WithLabelValues("review").Observe(d.Seconds())
}

func FailReviewJob() {
	JobsProcessing.WithLabelValues("review").Dec()
	JobsFailedTotal.WithLabelValues("review").Inc()
}

// ObservePhase records how long one grade pipeline phase took.
func ObservePhase(phase string, d time.Duration) {
	PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

func StartCriterionCheck() {
	CriterionChecksActive.Inc()
}

func EndCriterionCheck() {
	CriterionChecksActive.Dec()
}

func ObserveCriterionCheck(passed bool, d time.Duration) {
	verdict := "failed"
	if passed {
		verdict = "passed"
	}
	CriterionChecksTotal.WithLabelValues(verdict).Inc()
	CriterionCheckDuration.Observe(d.Seconds())
}

// ObserveGradeScore records the final percentage of a completed grade and
// feeds the drift monitor.
func ObserveGradeScore(percentage int) {
	if percentage >= 0 && percentage <= 100 {
		GradePercentageHistogram.Observe(float64(percentage))
		defaultDriftMonitor.Record(percentage)
	}
}

// RecordTokenUsage tracks prompt and completion token counts per provider.
func RecordTokenUsage(provider, model string, promptTokens, completionTokens int) {
	LLMTokensTotal.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	LLMTokensTotal.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
}

// RecordLLMRequest counts one chat call against its provider. Fail-fast
// rejections count as errors like any other failed call.
func RecordLLMRequest(provider string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	LLMRequestsTotal.WithLabelValues(provider, outcome).Inc()
}
