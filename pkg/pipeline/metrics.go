package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yumyai/genevalidator/pkg/model"
)

// Metrics exports the run as prometheus series. A nil *Metrics is valid and records nothing.
type Metrics struct {
	queries      *prometheus.CounterVec
	testDuration *prometheus.HistogramVec
	testErrors   *prometheus.CounterVec
	scores       prometheus.Histogram
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "genevalidator",
			Name:      "queries_total",
			Help:      "Predictions processed, by outcome (good, bad, no_evidence).",
		}, []string{"outcome"}),
		testDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "genevalidator",
			Name:      "test_duration_seconds",
			Help:      "Running time of a single validation test.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10), // 0.1ms to ~26s
		}, []string{"test"}),
		testErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "genevalidator",
			Name:      "test_errors_total",
			Help:      "Validation tests that ended in an error, by error tag.",
		}, []string{"test", "tag"}),
		scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "genevalidator",
			Name:      "score",
			Help:      "Overall prediction scores.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
	}
	for _, c := range []prometheus.Collector{m.queries, m.testDuration, m.testErrors, m.scores} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeReports(reports []*model.Report) {
	if m == nil {
		return
	}
	for _, r := range reports {
		name := r.Kind.String()
		m.testDuration.WithLabelValues(name).Observe(r.RunTime.Seconds())
		for _, tag := range r.Errors {
			m.testErrors.WithLabelValues(name, tag.String()).Inc()
		}
	}
}

func (m *Metrics) observeOutput(out *model.Output) {
	if m == nil {
		return
	}
	m.observeReports(out.Reports)
	m.scores.Observe(float64(out.Score))
	if out.Score >= GoodScore {
		m.queries.WithLabelValues("good").Inc()
	} else {
		m.queries.WithLabelValues("bad").Inc()
	}
}

func (m *Metrics) observeNoEvidence(reports []*model.Report) {
	if m == nil {
		return
	}
	m.observeReports(reports)
	m.queries.WithLabelValues("no_evidence").Inc()
}
