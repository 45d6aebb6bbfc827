package config

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/Yetoo1/beast-mcmc/internal/acceptor"
	"github.com/Yetoo1/beast-mcmc/internal/chain"
	"github.com/Yetoo1/beast-mcmc/internal/density"
	"github.com/Yetoo1/beast-mcmc/internal/model"
	"github.com/Yetoo1/beast-mcmc/internal/operator"
	"github.com/Yetoo1/beast-mcmc/internal/schedule"
)

// Default operator sizes.
const (
	DefaultWindow      = 1.0
	DefaultScaleFactor = 0.75
	DefaultLogEvery    = 1000
)

// Model is everything a chain needs, built from a Config.
type Model struct {
	Name       string
	Registry   *model.Registry
	Density    *model.Compound
	Parameters []*model.Parameter
	Schedule   *schedule.Weighted
	Acceptor   acceptor.Acceptor
	Settings   chain.Settings

	// AllowImpossible lists guaranteed-accept operators permitted to
	// produce impossible states.
	AllowImpossible []string

	Length   int64
	LogEvery int64

	// Seed is the seed actually used; it is drawn from the clock when the
	// configuration leaves it unset.
	Seed uint64
}

// ChainOptions returns the chain options the configuration implies.
func (m *Model) ChainOptions() []chain.Option {
	return []chain.Option{
		chain.WithSettings(m.Settings),
		chain.WithImpossibleStateAllowList(m.AllowImpossible...),
	}
}

// NewRand returns the PCG source used for every random draw in a run.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Build creates the runtime objects for cfg. Every parameter is registered
// as a storable and every density term is added to the joint density in
// declaration order.
func Build(cfg *Config) (*Model, error) {
	seed := uint64(time.Now().UnixNano())
	if cfg.Chain.Seed != nil {
		seed = *cfg.Chain.Seed
	}
	rng := NewRand(seed)

	m := &Model{
		Name:            cfg.Name,
		Registry:        model.NewRegistry(),
		Density:         model.NewCompound("joint"),
		Settings:        buildSettings(cfg.Chain),
		AllowImpossible: cfg.AllowImpossible,
		Length:          cfg.Chain.Length,
		LogEvery:        cfg.Chain.LogEvery,
		Seed:            seed,
	}
	if m.LogEvery < 1 {
		m.LogEvery = DefaultLogEvery
	}

	params := make(map[string]*model.Parameter, len(cfg.Parameters))
	for _, pc := range cfg.Parameters {
		p := model.NewParameter(pc.ID, pc.Value...).WithBounds(pc.bounds())
		params[pc.ID] = p
		m.Parameters = append(m.Parameters, p)
		m.Registry.AddStorable(p)
	}

	for _, dc := range cfg.Densities {
		d, err := buildDensity(dc, params)
		if err != nil {
			return nil, err
		}
		m.Registry.AddDensity(d)
		m.Density.Add(d)
	}

	entries := make([]schedule.Entry, 0, len(cfg.Operators))
	for _, oc := range cfg.Operators {
		op, err := buildOperator(oc, params[oc.Parameter], rng)
		if err != nil {
			return nil, err
		}
		weight := 1.0
		if oc.Weight != nil {
			weight = *oc.Weight
		}
		entries = append(entries, schedule.Entry{Operator: op, Weight: weight})
	}

	var schedOpts []schedule.Option
	if cfg.Schedule.Sequential {
		schedOpts = append(schedOpts, schedule.WithSequential())
	}
	transform, ok := schedule.ParseTransform(cfg.Schedule.Transform)
	if !ok {
		return nil, fmt.Errorf("unknown schedule transform %q", cfg.Schedule.Transform)
	}
	schedOpts = append(schedOpts, schedule.WithTransform(transform))

	sched, err := schedule.NewWeighted(entries, rng, schedOpts...)
	if err != nil {
		return nil, fmt.Errorf("build schedule: %w", err)
	}
	m.Schedule = sched

	switch cfg.Chain.Acceptor {
	case "", "metropolis_hastings":
		temperature := 1.0
		if cfg.Chain.Temperature != nil {
			temperature = *cfg.Chain.Temperature
		}
		m.Acceptor = acceptor.NewMetropolisHastings(temperature, rng)
	case "greedy":
		m.Acceptor = acceptor.Greedy{}
	default:
		return nil, fmt.Errorf("unknown acceptor %q", cfg.Chain.Acceptor)
	}

	return m, nil
}

func buildSettings(cc ChainConfig) chain.Settings {
	s := chain.DefaultSettings()
	if cc.FullEvaluation != nil {
		s.FullEvaluationCount = *cc.FullEvaluation
	}
	if cc.MinOperatorCount != nil {
		s.MinOperatorCount = *cc.MinOperatorCount
	}
	if cc.Tolerance != nil {
		s.Tolerance = *cc.Tolerance
	}
	if cc.Coercion != nil {
		s.UseCoercion = *cc.Coercion
	}
	return s
}

func buildDensity(dc DensityConfig, params map[string]*model.Parameter) (model.Density, error) {
	p := params[dc.Parameter]
	switch dc.Type {
	case "normal":
		return density.Normal(dc.ID, p, dc.Mean, dc.StdDev), nil
	case "uniform":
		return density.Uniform(dc.ID, p, dc.Lower, dc.Upper), nil
	case "exponential":
		return density.Exponential(dc.ID, p, dc.Rate), nil
	case "constant":
		return density.NewConstant(dc.ID, *dc.Value), nil
	}
	return nil, fmt.Errorf("density %s: unknown type %q", dc.ID, dc.Type)
}

func buildOperator(oc OperatorConfig, p *model.Parameter, rng *rand.Rand) (operator.Operator, error) {
	mode, ok := operator.ParseCoercionMode(oc.Mode)
	if !ok {
		return nil, fmt.Errorf("operator %s: unknown coercion mode %q", oc.ID, oc.Mode)
	}
	target := operator.DefaultTargetAcceptance
	if oc.Target != nil {
		target = *oc.Target
	}
	coercion := operator.NewCoercion(mode, target)

	index := -1
	if oc.Index != nil {
		index = *oc.Index
	}

	switch oc.Type {
	case "random_walk":
		return operator.NewRandomWalk(oc.ID, p, index, sizeOr(oc.Size, DefaultWindow), coercion, rng), nil
	case "scale":
		return operator.NewScale(oc.ID, p, index, sizeOr(oc.Size, DefaultScaleFactor), coercion, rng), nil
	case "resample":
		return operator.NewResample(oc.ID, p, operator.NormalSampler(oc.Mean, oc.StdDev), rng), nil
	}
	return nil, fmt.Errorf("operator %s: unknown type %q", oc.ID, oc.Type)
}

func sizeOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// bounds returns the configured bounds, unbounded where unset.
func (p ParameterConfig) bounds() (lower, upper float64) {
	lower, upper = math.Inf(-1), math.Inf(1)
	if p.Lower != nil {
		lower = *p.Lower
	}
	if p.Upper != nil {
		upper = *p.Upper
	}
	return lower, upper
}
