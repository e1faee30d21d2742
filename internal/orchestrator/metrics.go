package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics wraps the Orchestrator's Prometheus instrumentation. A nil
// *Metrics is valid: every method on it no-ops, so WithMetrics is
// optional.
type Metrics struct {
	workerDuration *prometheus.HistogramVec
	toolCalls      *prometheus.CounterVec
	debateRounds   prometheus.Counter
	gapInjections  prometheus.Counter
}

// NewMetrics registers the orchestrator's Prometheus collectors on the
// default registry and returns a recorder to pass to WithMetrics.
func NewMetrics() *Metrics {
	return &Metrics{
		workerDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "research_worker_duration_seconds",
				Help:    "Duration of a single worker's query in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"worker"},
		),
		toolCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "research_tool_calls_total",
				Help: "Total number of tool calls made by agent and tool name",
			},
			[]string{"agent", "tool"},
		),
		debateRounds: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "research_debate_rounds_total",
				Help: "Total number of debate rounds run across all sessions",
			},
		),
		gapInjections: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "research_supervisor_gap_injections_total",
				Help: "Total number of supervisor gap-worker injections across all sessions",
			},
		),
	}
}

func (m *Metrics) observeWorkerDuration(worker string, d time.Duration) {
	if m == nil {
		return
	}
	m.workerDuration.WithLabelValues(worker).Observe(d.Seconds())
}

func (m *Metrics) addToolCalls(agent, tool string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.toolCalls.WithLabelValues(agent, tool).Add(float64(n))
}

func (m *Metrics) incDebateRound() {
	if m == nil {
		return
	}
	m.debateRounds.Inc()
}

func (m *Metrics) incGapInjection() {
	if m == nil {
		return
	}
	m.gapInjections.Inc()
}
