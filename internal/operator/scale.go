package operator

import (
	"math"
	"math/rand/v2"

	"github.com/Yetoo1/beast-mcmc/internal/model"
)

// Scale multiplies one element of a parameter by a factor drawn uniformly
// from [s, 1/s], where 0 < s < 1 is the scale factor. The coercable
// parameter is log(1/s - 1).
type Scale struct {
	Tally
	Coercion

	name   string
	param  *model.Parameter
	index  int
	factor float64
	rng    *rand.Rand
}

// NewScale creates a scale operator. index < 0 selects a random element on
// every proposal.
func NewScale(name string, p *model.Parameter, index int, factor float64, c Coercion, rng *rand.Rand) *Scale {
	return &Scale{
		Coercion: c,
		name:     name,
		param:    p,
		index:    index,
		factor:   factor,
		rng:      rng,
	}
}

// Name implements Operator.
func (s *Scale) Name() string { return s.name }

// Factor returns the current scale factor.
func (s *Scale) Factor() float64 { return s.factor }

// Propose implements Operator. The log Hastings ratio is -log(scale).
func (s *Scale) Propose() (float64, error) {
	scale := s.factor + s.rng.Float64()*(1/s.factor-s.factor)
	i := pickIndex(s.index, s.param.Dim(), s.rng)
	if err := s.param.SetValue(i, s.param.Value(i)*scale); err != nil {
		return 0, failIfOutOfBounds(err)
	}
	return -math.Log(scale), nil
}

// CoercableParameter implements Coercible.
func (s *Scale) CoercableParameter() float64 { return math.Log(1/s.factor - 1) }

// SetCoercableParameter implements Coercible.
func (s *Scale) SetCoercableParameter(v float64) { s.factor = 1 / (math.Exp(v) + 1) }
