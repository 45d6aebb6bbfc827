package chain

import (
	"math"

	"github.com/Yetoo1/beast-mcmc/internal/operator"
)

// Coerce returns the Robbins-Monro update of a tunable parameter p given the
// transformed operation count i, the latest log acceptance ratio logr and
// the target acceptance probability.
//
// ok is false when the update leaves the representable range, in which case
// the caller must keep p.
func Coerce(p, i, logr, target float64) (float64, bool) {
	next := p + (1/(i+1))*(math.Exp(logr)-target)
	if next > -math.MaxFloat64 && next < math.MaxFloat64 {
		return next, true
	}
	return p, false
}

// isCoercible reports whether the chain should tune co this iteration.
func (c *Chain) isCoercible(co operator.Coercible) bool {
	switch co.Mode() {
	case operator.CoercionOn:
		return true
	case operator.CoercionOff:
		return false
	default:
		return c.settings.UseCoercion
	}
}

func (c *Chain) coerce(op operator.Operator, co operator.Coercible, logr float64) {
	i := c.schedule.OptimizationTransform(op.Counts().Operations())
	if next, ok := Coerce(co.CoercableParameter(), i, logr, co.TargetAcceptance()); ok {
		co.SetCoercableParameter(next)
	}
}
