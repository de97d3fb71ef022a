package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	selectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "elicit_selection_duration_seconds",
		Help:    "Time to select the next vignette for a session",
		Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})

	newtonIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "elicit_newton_iterations",
		Help:    "Newton-Raphson iterations per posterior update",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 25},
	})

	newtonNonConverged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elicit_newton_nonconverged_total",
		Help: "Posterior updates that hit the iteration cap",
	})

	optimizerFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elicit_optimizer_trace_fallbacks_total",
		Help: "Adaptive selections decided by the trace criterion because every determinant was degenerate",
	})

	stopReasons = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "elicit_adaptive_stops_total",
		Help: "Adaptive phase completions by stop reason",
	}, []string{"reason"})

	sessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elicit_sessions_created_total",
		Help: "Sessions created",
	})

	sessionsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elicit_sessions_completed_total",
		Help: "Sessions that finished all phases",
	})

	sessionsAbandoned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elicit_sessions_abandoned_total",
		Help: "Sessions abandoned by the idle sweeper",
	})
)
