package flow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects Prometheus metrics for workflow execution.
//
// Exposed series (namespace "dispatchflow"):
//   - node_latency_ms (histogram; labels: node, status)
//   - suspensions_total (counter)
//   - resumes_total (counter; label: approved)
//   - cas_conflicts_total (counter)
//   - sessions_total (counter; label: status; counted at terminal transitions)
//
// Register on a custom registry for isolation:
//
//	registry := prometheus.NewRegistry()
//	metrics := flow.NewMetrics(registry)
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
type Metrics struct {
	nodeLatency *prometheus.HistogramVec
	suspensions prometheus.Counter
	resumes     *prometheus.CounterVec
	conflicts   prometheus.Counter
	terminal    *prometheus.CounterVec
}

// NewMetrics creates and registers the executor metrics. A nil registry
// uses the default registerer.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		nodeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dispatchflow",
			Name:      "node_latency_ms",
			Help:      "Node execution duration in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"node", "status"}),
		suspensions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dispatchflow",
			Name:      "suspensions_total",
			Help:      "Workflow instances parked at an approval gate",
		}),
		resumes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispatchflow",
			Name:      "resumes_total",
			Help:      "Approval decisions folded into suspended instances",
		}, []string{"approved"}),
		conflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dispatchflow",
			Name:      "cas_conflicts_total",
			Help:      "Checkpoint compare-and-swap conflicts between concurrent invocations",
		}),
		terminal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispatchflow",
			Name:      "sessions_total",
			Help:      "Workflow instances reaching a terminal status",
		}, []string{"status"}),
	}
}

// ObserveNode records one node execution.
func (m *Metrics) ObserveNode(node string, latency time.Duration, status string) {
	m.nodeLatency.WithLabelValues(node, status).Observe(float64(latency.Milliseconds()))
}

// IncSuspensions counts an approval-gate suspension.
func (m *Metrics) IncSuspensions() {
	m.suspensions.Inc()
}

// IncResumes counts a resume with its decision.
func (m *Metrics) IncResumes(approved bool) {
	label := "false"
	if approved {
		label = "true"
	}
	m.resumes.WithLabelValues(label).Inc()
}

// IncConflicts counts a lost compare-and-swap race.
func (m *Metrics) IncConflicts() {
	m.conflicts.Inc()
}

// IncTerminal counts a terminal transition.
func (m *Metrics) IncTerminal(status Status) {
	m.terminal.WithLabelValues(string(status)).Inc()
}
