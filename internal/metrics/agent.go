package metrics

import "github.com/prometheus/client_golang/prometheus"

// Agent turn Prometheus metrics.
var (
	AgentTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "counsel",
			Name:      "agent_turns_total",
			Help:      "Total agent turns by outcome",
		},
		[]string{"outcome"}, // answered, budget_exhausted, failed
	)

	AgentTurnSteps = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "counsel",
			Name:      "agent_turn_steps",
			Help:      "Decide steps taken per turn",
			Buckets:   []float64{1, 2, 3, 4, 6, 8},
		},
	)

	RetrievalResultsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "counsel",
			Name:      "retrieval_results_total",
			Help:      "Total chunks surfaced by the retrieval tool",
		},
	)
)

// RegisterAgentMetrics registers agent metrics with the default registry.
func RegisterAgentMetrics() {
	prometheus.MustRegister(AgentTurnsTotal, AgentTurnSteps, RetrievalResultsTotal)
}
