package observability

import (
	"context"

	"github.com/aretw0/mathspeak/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mathspeak"

// Metrics holds the engine collectors.
type Metrics struct {
	Evaluations *prometheus.CounterVec
	Duration    prometheus.Histogram
	Selections  *prometheus.CounterVec
	Fallbacks   *prometheus.CounterVec
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg leaves them unregistered, which is useful in tests.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Top-level evaluations by resolved constraint and outcome.",
		}, []string{"constraint", "outcome"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Time spent in top-level evaluations.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		Selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_selections_total",
			Help:      "Rules chosen for a node, by the fallback level they matched at.",
		}, []string{"level"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "default_actions_total",
			Help:      "Nodes no rule matched at any level, by node kind.",
		}, []string{"kind"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Result cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Result cache misses.",
		}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.Evaluations, m.Duration, m.Selections, m.Fallbacks, m.CacheHits, m.CacheMisses} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks feeding the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRuleSelected: func(_ context.Context, e *domain.RuleEvent) {
			m.Selections.WithLabelValues(e.Level.String()).Inc()
		},
		OnFallback: func(_ context.Context, e *domain.RuleEvent) {
			m.Fallbacks.WithLabelValues(e.Kind).Inc()
		},
		OnCacheHit: func(context.Context, *domain.CacheEvent) {
			m.CacheHits.Inc()
		},
		OnCacheMiss: func(context.Context, *domain.CacheEvent) {
			m.CacheMisses.Inc()
		},
		OnEvaluated: func(_ context.Context, e *domain.EvaluationEvent) {
			outcome := "ok"
			if e.Err != nil {
				outcome = "error"
			}
			m.Evaluations.WithLabelValues(e.Constraint.String(), outcome).Inc()
			m.Duration.Observe(e.Duration.Seconds())
		},
	}
}
