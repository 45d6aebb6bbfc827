// Package acceptor decides whether a proposed state replaces the current one.
package acceptor

import (
	"math"
	"math/rand/v2"
)

// NoLogR is the log acceptance ratio reported when no Metropolis test ran.
// exp(NoLogR) is 0, so adaptive tuning treats the move as never accepted.
const NoLogR = -math.MaxFloat64

// Decision is the outcome of an acceptance test.
type Decision struct {
	Accept bool

	// LogR is the log acceptance ratio, clamped to at most 0, used to tune
	// coercible operators.
	LogR float64
}

// Acceptor maps (old score, new score, log Hastings ratio) to a decision.
type Acceptor interface {
	Accept(oldScore, newScore, logHastings float64) Decision
}

// MetropolisHastings is the standard Metropolis-Hastings criterion at a
// given temperature.
//
// Thread-safety: not safe for concurrent use; owned by one chain.
type MetropolisHastings struct {
	temperature float64
	rng         *rand.Rand
}

// NewMetropolisHastings creates the criterion. A temperature of 1 samples
// the target density; higher temperatures flatten it.
func NewMetropolisHastings(temperature float64, rng *rand.Rand) *MetropolisHastings {
	return &MetropolisHastings{temperature: temperature, rng: rng}
}

// Temperature returns the temperature.
func (m *MetropolisHastings) Temperature() float64 { return m.temperature }

// Accept implements Acceptor.
func (m *MetropolisHastings) Accept(oldScore, newScore, logHastings float64) Decision {
	logr := (newScore-oldScore)/m.temperature + logHastings
	if math.IsNaN(logr) {
		return Decision{LogR: NoLogR}
	}
	if logr > 0 {
		logr = 0
	}
	return Decision{
		Accept: logr > math.Log(m.rng.Float64()),
		LogR:   logr,
	}
}

// Greedy accepts a proposal only if it does not lower the score. It turns
// the chain into a stochastic hill climber.
type Greedy struct{}

// Accept implements Acceptor.
func (Greedy) Accept(oldScore, newScore, _ float64) Decision {
	if newScore >= oldScore {
		return Decision{Accept: true, LogR: 0}
	}
	return Decision{LogR: NoLogR}
}
