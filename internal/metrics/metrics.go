// Package metrics exports a running chain's progress as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Yetoo1/beast-mcmc/internal/operator"
	"github.com/Yetoo1/beast-mcmc/internal/schedule"
)

// ScoreSource is the read-only view of a chain the collector samples.
type ScoreSource interface {
	CurrentScore() float64
	BestScore() float64
	Schedule() schedule.Schedule
}

// Collector is a chain delegate that updates Prometheus metrics at every
// iteration end.
//
// Operator gauges walk the whole schedule, so they are refreshed only every
// OperatorEvery iterations and once more on Finished.
type Collector struct {
	source        ScoreSource
	operatorEvery int64

	iterations     prometheus.Counter
	length         prometheus.Gauge
	currentScore   prometheus.Gauge
	bestScore      prometheus.Gauge
	acceptance     *prometheus.GaugeVec
	coercable      *prometheus.GaugeVec
	evaluationTime *prometheus.GaugeVec
}

// Option configures a Collector.
type Option func(*Collector)

// WithOperatorEvery sets how often operator gauges are refreshed. Values
// below 1 are ignored.
//
// Default: 100
func WithOperatorEvery(n int64) Option {
	return func(c *Collector) {
		if n >= 1 {
			c.operatorEvery = n
		}
	}
}

// NewCollector registers the chain metrics on reg.
// Registering twice on the same registry panics, as with promauto.
func NewCollector(reg prometheus.Registerer, src ScoreSource, opts ...Option) *Collector {
	f := promauto.With(reg)
	c := &Collector{
		source:        src,
		operatorEvery: 100,

		iterations: f.NewCounter(prometheus.CounterOpts{
			Namespace: "mcmc",
			Subsystem: "chain",
			Name:      "iterations_total",
			Help:      "Total completed chain iterations",
		}),
		length: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "mcmc",
			Subsystem: "chain",
			Name:      "length",
			Help:      "Chain length reported when the chain finished",
		}),
		currentScore: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "mcmc",
			Subsystem: "chain",
			Name:      "current_score",
			Help:      "Log joint density of the current state",
		}),
		bestScore: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "mcmc",
			Subsystem: "chain",
			Name:      "best_score",
			Help:      "Highest log joint density committed so far",
		}),
		acceptance: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mcmc",
			Subsystem: "operator",
			Name:      "acceptance_ratio",
			Help:      "Fraction of an operator's proposals that were accepted",
		}, []string{"operator"}),
		coercable: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mcmc",
			Subsystem: "operator",
			Name:      "coercable_parameter",
			Help:      "Current value of an operator's tunable parameter",
		}, []string{"operator"}),
		evaluationTime: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mcmc",
			Subsystem: "operator",
			Name:      "evaluation_seconds",
			Help:      "Total density evaluation time charged to an operator",
		}, []string{"operator"}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IterationStart implements the chain Delegate.
func (c *Collector) IterationStart(int64) {}

// IterationEnd implements the chain Delegate.
func (c *Collector) IterationEnd(state int64) {
	c.iterations.Inc()
	c.currentScore.Set(c.source.CurrentScore())
	c.bestScore.Set(c.source.BestScore())
	if (state+1)%c.operatorEvery == 0 {
		c.updateOperators()
	}
}

// Finished implements the chain Delegate.
func (c *Collector) Finished(length int64) {
	c.length.Set(float64(length))
	c.currentScore.Set(c.source.CurrentScore())
	c.bestScore.Set(c.source.BestScore())
	c.updateOperators()
}

func (c *Collector) updateOperators() {
	s := c.source.Schedule()
	for i := 0; i < s.OperatorCount(); i++ {
		op := s.Operator(i)
		counts := op.Counts()
		c.acceptance.WithLabelValues(op.Name()).Set(counts.AcceptanceRatio())
		c.evaluationTime.WithLabelValues(op.Name()).Set(counts.EvaluationTime.Seconds())
		if co, ok := op.(operator.Coercible); ok {
			c.coercable.WithLabelValues(op.Name()).Set(co.CoercableParameter())
		}
	}
}
