// Package operator defines proposal operators and the capabilities the chain
// queries on them.
//
// Every operator implements Operator. Optional behaviour is expressed as
// capability traits the chain checks with interface assertions:
//
//   - DensityAware: the proposal needs the joint density (general operators)
//   - GuaranteedAccept: the proposal is an exact conditional draw and is
//     always committed (Gibbs family)
//   - Coercible: the operator exposes a tunable scalar the chain adapts
//     toward a target acceptance probability
package operator

import (
	"errors"
	"time"

	"github.com/Yetoo1/beast-mcmc/internal/model"
)

// ErrFailed signals an expected, non-fatal proposal failure such as a move
// outside the parameter's support. The chain treats it as a rejection.
// Wrap it with fmt.Errorf("...: %w", ErrFailed) to add context.
var ErrFailed = errors.New("operator failed")

// Operator mutates the current state and reports the log Hastings ratio.
type Operator interface {
	// Name identifies the operator in logs, schedules and trace output.
	Name() string

	// Propose mutates the state and returns the log Hastings ratio.
	// Returning an error wrapping ErrFailed rejects the proposal.
	Propose() (logHastings float64, err error)

	// Accept records an accepted proposal with the score deviation
	// (new score minus old score).
	Accept(deviation float64)

	// Reject records a rejected proposal.
	Reject()

	// Reset clears the tally.
	Reset()

	// AddEvaluationTime records how long density evaluation took after
	// this operator's proposal.
	AddEvaluationTime(d time.Duration)

	// Counts returns a snapshot of the tally.
	Counts() Counts
}

// DensityAware is implemented by operators that need direct access to the
// joint density while proposing. The chain calls ProposeWith instead of
// Propose for these operators.
type DensityAware interface {
	ProposeWith(d model.Density) (logHastings float64, err error)
}

// GuaranteedAccept is implemented by operators whose proposals are exact
// conditional draws. When GuaranteedAccept returns true the chain commits
// the proposal without consulting the acceptor.
type GuaranteedAccept interface {
	GuaranteedAccept() bool
}

// Coercible is implemented by operators with a continuously tunable
// parameter. The parameter must be a decreasing function of the acceptance
// probability for adaptive tuning to converge.
type Coercible interface {
	CoercableParameter() float64
	SetCoercableParameter(v float64)
	Mode() CoercionMode
	TargetAcceptance() float64
}

// CoercionMode controls whether an operator is tuned.
type CoercionMode int

const (
	// CoercionDefault defers to the chain's coercion setting.
	CoercionDefault CoercionMode = iota
	// CoercionOn always tunes the operator.
	CoercionOn
	// CoercionOff never tunes the operator.
	CoercionOff
)

// String returns the configuration name of the mode.
func (m CoercionMode) String() string {
	switch m {
	case CoercionOn:
		return "on"
	case CoercionOff:
		return "off"
	default:
		return "default"
	}
}

// ParseCoercionMode maps a configuration name to a mode.
// The empty string maps to CoercionDefault.
func ParseCoercionMode(s string) (CoercionMode, bool) {
	switch s {
	case "", "default":
		return CoercionDefault, true
	case "on":
		return CoercionOn, true
	case "off":
		return CoercionOff, true
	}
	return CoercionDefault, false
}

// Coercion is embedded by coercible operators to carry their mode and
// target acceptance probability.
type Coercion struct {
	mode   CoercionMode
	target float64
}

// NewCoercion creates coercion settings.
func NewCoercion(mode CoercionMode, target float64) Coercion {
	return Coercion{mode: mode, target: target}
}

// Mode implements part of Coercible.
func (c Coercion) Mode() CoercionMode { return c.mode }

// TargetAcceptance implements part of Coercible.
func (c Coercion) TargetAcceptance() float64 { return c.target }

// DefaultTargetAcceptance is the target used when none is configured.
const DefaultTargetAcceptance = 0.234
