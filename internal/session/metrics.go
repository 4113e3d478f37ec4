package session

// metrics.go mirrors pkg/metrics.go's metricsSink abstraction: a no-op sink
// by default, swapped for a real Prometheus implementation when the caller
// passes a *prometheus.Registry via WithMetrics. The session's hot path
// (alias-hit classification) still records a counter increment, unlike the
// teacher's hot-path-never-logs rule for logging, because these are cheap
// atomic label lookups rather than I/O.

import "github.com/prometheus/client_golang/prometheus"

type metricsSink interface {
	incClassification(kind Classification)
	observeCompileSeconds(unit string, seconds float64)
	incArtifactsLoaded(n int)
	observeAliasChainLength(n int)
}

type noopMetrics struct{}

func (noopMetrics) incClassification(Classification)       {}
func (noopMetrics) observeCompileSeconds(string, float64)   {}
func (noopMetrics) incArtifactsLoaded(int)                  {}
func (noopMetrics) observeAliasChainLength(int)             {}

type promMetrics struct {
	classifications *prometheus.CounterVec
	compileSeconds  *prometheus.HistogramVec
	artifactsLoaded prometheus.Counter
	aliasChainLen   prometheus.Histogram
}

func newPromMetrics(reg *prometheus.Registry) *promMetrics {
	pm := &promMetrics{
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nbjit",
			Name:      "cell_classification_total",
			Help:      "Number of cell submissions by cache classification.",
		}, []string{"kind"}),
		compileSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nbjit",
			Name:      "compile_seconds",
			Help:      "Wall time spent compiling one unit (main or a hole).",
		}, []string{"unit"}),
		artifactsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nbjit",
			Name:      "artifacts_loaded",
			Help:      "Number of shared objects loaded across this process's lifetime.",
		}),
		aliasChainLen: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nbjit",
			Name:      "alias_chain_length",
			Help:      "Length of alias dereference chains observed on content hits.",
		}),
	}
	reg.MustRegister(pm.classifications, pm.compileSeconds, pm.artifactsLoaded, pm.aliasChainLen)
	return pm
}

func (m *promMetrics) incClassification(kind Classification) {
	m.classifications.WithLabelValues(kind.String()).Inc()
}
func (m *promMetrics) observeCompileSeconds(unit string, seconds float64) {
	m.compileSeconds.WithLabelValues(unit).Observe(seconds)
}
func (m *promMetrics) incArtifactsLoaded(n int) { m.artifactsLoaded.Add(float64(n)) }
func (m *promMetrics) observeAliasChainLength(n int) { m.aliasChainLen.Observe(float64(n)) }

func newMetricsSink(reg *prometheus.Registry) metricsSink {
	if reg == nil {
		return noopMetrics{}
	}
	return newPromMetrics(reg)
}
