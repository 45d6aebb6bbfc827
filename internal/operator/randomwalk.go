package operator

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/Yetoo1/beast-mcmc/internal/model"
)

// RandomWalk moves one element of a parameter by a uniform step in
// [-window, window]. The coercable parameter is log(window).
type RandomWalk struct {
	Tally
	Coercion

	name   string
	param  *model.Parameter
	index  int // -1 picks an element uniformly
	window float64
	rng    *rand.Rand
}

// NewRandomWalk creates a random-walk operator. index < 0 selects a random
// element on every proposal.
func NewRandomWalk(name string, p *model.Parameter, index int, window float64, c Coercion, rng *rand.Rand) *RandomWalk {
	return &RandomWalk{
		Coercion: c,
		name:     name,
		param:    p,
		index:    index,
		window:   window,
		rng:      rng,
	}
}

// Name implements Operator.
func (r *RandomWalk) Name() string { return r.name }

// Window returns the current window size.
func (r *RandomWalk) Window() float64 { return r.window }

// Propose implements Operator.
func (r *RandomWalk) Propose() (float64, error) {
	i := pickIndex(r.index, r.param.Dim(), r.rng)
	v := r.param.Value(i) + (2*r.rng.Float64()-1)*r.window
	if err := r.param.SetValue(i, v); err != nil {
		return 0, failIfOutOfBounds(err)
	}
	return 0, nil
}

// CoercableParameter implements Coercible.
func (r *RandomWalk) CoercableParameter() float64 { return math.Log(r.window) }

// SetCoercableParameter implements Coercible.
func (r *RandomWalk) SetCoercableParameter(v float64) { r.window = math.Exp(v) }

func pickIndex(index, dim int, rng *rand.Rand) int {
	if index >= 0 {
		return index
	}
	return rng.IntN(dim)
}

// failIfOutOfBounds turns a bounds violation into an operator failure and
// passes any other error through unchanged.
func failIfOutOfBounds(err error) error {
	if errors.Is(err, model.ErrOutOfBounds) {
		return fmt.Errorf("%w: %v", ErrFailed, err)
	}
	return err
}
