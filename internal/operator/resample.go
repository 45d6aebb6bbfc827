package operator

import (
	"math/rand/v2"

	"github.com/Yetoo1/beast-mcmc/internal/model"
)

// Sampler draws a value from an exact conditional distribution.
type Sampler func(rng *rand.Rand) float64

// Resample replaces every element of a parameter with an independent draw.
// It is a guaranteed-accept operator: the chain commits its proposals without
// a Metropolis test.
type Resample struct {
	Tally

	name   string
	param  *model.Parameter
	sample Sampler
	rng    *rand.Rand
}

// NewResample creates a resampling operator.
func NewResample(name string, p *model.Parameter, sample Sampler, rng *rand.Rand) *Resample {
	return &Resample{name: name, param: p, sample: sample, rng: rng}
}

// Name implements Operator.
func (r *Resample) Name() string { return r.name }

// GuaranteedAccept implements GuaranteedAccept.
func (r *Resample) GuaranteedAccept() bool { return true }

// Propose implements Operator.
func (r *Resample) Propose() (float64, error) {
	for i := 0; i < r.param.Dim(); i++ {
		if err := r.param.SetValue(i, r.sample(r.rng)); err != nil {
			return 0, failIfOutOfBounds(err)
		}
	}
	return 0, nil
}

// NormalSampler returns a sampler for N(mean, stdDev²).
func NormalSampler(mean, stdDev float64) Sampler {
	return func(rng *rand.Rand) float64 {
		return mean + stdDev*rng.NormFloat64()
	}
}
