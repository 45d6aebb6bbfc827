// Package schedule chooses which operator the chain runs next.
package schedule

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/Yetoo1/beast-mcmc/internal/operator"
)

// Schedule selects operators and exposes their bookkeeping to the chain.
type Schedule interface {
	// NextOperatorIndex returns the index of the operator to run next.
	NextOperatorIndex() int

	// Operator returns the operator at index i.
	Operator(i int) operator.Operator

	// OperatorCount returns the number of operators.
	OperatorCount() int

	// MinimumAcceptAndRejectCount returns the smallest number of completed
	// proposals across all operators.
	MinimumAcceptAndRejectCount() int64

	// OptimizationTransform maps an operator's operation count to the
	// step-size index used by adaptive tuning.
	OptimizationTransform(count int64) float64
}

// Transform selects how OptimizationTransform rescales operation counts.
type Transform int

const (
	// TransformDefault uses the count unchanged.
	TransformDefault Transform = iota
	// TransformLog uses log(count).
	TransformLog
	// TransformSqrt uses sqrt(count).
	TransformSqrt
)

// ParseTransform maps a configuration name to a Transform.
func ParseTransform(s string) (Transform, bool) {
	switch s {
	case "", "default":
		return TransformDefault, true
	case "log":
		return TransformLog, true
	case "sqrt":
		return TransformSqrt, true
	}
	return TransformDefault, false
}

// Apply rescales count.
func (t Transform) Apply(count int64) float64 {
	switch t {
	case TransformLog:
		return math.Log(float64(count))
	case TransformSqrt:
		return math.Sqrt(float64(count))
	default:
		return float64(count)
	}
}

// ErrEmpty is returned when a schedule has no operators.
var ErrEmpty = errors.New("schedule has no operators")

// Entry pairs an operator with its selection weight.
type Entry struct {
	Operator operator.Operator
	Weight   float64
}

// Weighted picks operators at random with probability proportional to
// their weight, or cycles through them in order when sequential.
//
// Thread-safety: not safe for concurrent use; owned by one chain.
type Weighted struct {
	entries    []Entry
	total      float64
	sequential bool
	transform  Transform
	rng        *rand.Rand
	next       int
}

// Option configures a Weighted schedule.
type Option func(*Weighted)

// WithSequential makes the schedule cycle through operators in order,
// ignoring weights.
func WithSequential() Option {
	return func(w *Weighted) {
		w.sequential = true
	}
}

// WithTransform sets the optimization transform.
func WithTransform(t Transform) Option {
	return func(w *Weighted) {
		w.transform = t
	}
}

// NewWeighted creates a weighted schedule. Weights must be positive and
// finite.
func NewWeighted(entries []Entry, rng *rand.Rand, opts ...Option) (*Weighted, error) {
	if len(entries) == 0 {
		return nil, ErrEmpty
	}
	w := &Weighted{
		entries: append([]Entry(nil), entries...),
		rng:     rng,
	}
	for _, e := range w.entries {
		if e.Operator == nil {
			return nil, errors.New("schedule entry has nil operator")
		}
		if !(e.Weight > 0) || math.IsInf(e.Weight, 1) {
			return nil, fmt.Errorf("operator %s: weight must be positive and finite, got %g", e.Operator.Name(), e.Weight)
		}
		w.total += e.Weight
	}
	for _, opt := range opts {
		opt(w)
	}
	if !w.sequential && w.rng == nil {
		return nil, errors.New("random schedule requires a random source")
	}
	return w, nil
}

// NextOperatorIndex implements Schedule.
func (w *Weighted) NextOperatorIndex() int {
	if w.sequential {
		i := w.next
		w.next = (w.next + 1) % len(w.entries)
		return i
	}
	u := w.rng.Float64() * w.total
	for i, e := range w.entries {
		u -= e.Weight
		if u < 0 {
			return i
		}
	}
	return len(w.entries) - 1
}

// Operator implements Schedule.
func (w *Weighted) Operator(i int) operator.Operator {
	return w.entries[i].Operator
}

// OperatorCount implements Schedule.
func (w *Weighted) OperatorCount() int {
	return len(w.entries)
}

// Weight returns the weight of operator i.
func (w *Weighted) Weight(i int) float64 {
	return w.entries[i].Weight
}

// MinimumAcceptAndRejectCount implements Schedule.
func (w *Weighted) MinimumAcceptAndRejectCount() int64 {
	minCount := int64(math.MaxInt64)
	for _, e := range w.entries {
		if n := e.Operator.Counts().Operations(); n < minCount {
			minCount = n
		}
	}
	return minCount
}

// OptimizationTransform implements Schedule.
func (w *Weighted) OptimizationTransform(count int64) float64 {
	return w.transform.Apply(count)
}
