package testutil

import (
	"math/rand/v2"

	"github.com/Yetoo1/beast-mcmc/internal/model"
	"github.com/Yetoo1/beast-mcmc/internal/operator"
	"github.com/Yetoo1/beast-mcmc/internal/schedule"
)

// NewRand returns a deterministic PCG source seeded with seed.
//
// The same seed always yields the same stream, so scenarios built on it
// produce byte-identical event logs.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Scalar is a one-value storable unit that counts its lifecycle calls.
type Scalar struct {
	value  float64
	stored float64

	Stores   int
	Accepts  int
	Restores int
}

// NewScalar creates a scalar holding v.
func NewScalar(v float64) *Scalar {
	return &Scalar{value: v, stored: v}
}

// Value returns the current value.
func (s *Scalar) Value() float64 { return s.value }

// Set overwrites the current value.
func (s *Scalar) Set(v float64) { s.value = v }

// StoreState implements model.Storable.
func (s *Scalar) StoreState() {
	s.stored = s.value
	s.Stores++
}

// AcceptState implements model.Storable.
func (s *Scalar) AcceptState() {
	s.Accepts++
}

// RestoreState implements model.Storable.
func (s *Scalar) RestoreState() {
	s.value = s.stored
	s.Restores++
}

// FuncDensity scores the state with a caller-supplied function.
//
// Drift is added to every score computed without a preceding MakeDirty. A
// non-zero drift simulates stale incremental bookkeeping that only a full
// evaluation exposes.
type FuncDensity struct {
	id    string
	fn    func() float64
	dirty bool

	Drift       float64
	Diag        string
	Evaluations int
}

// NewFuncDensity creates a density with the given id and score function.
func NewFuncDensity(id string, fn func() float64) *FuncDensity {
	return &FuncDensity{id: id, fn: fn, dirty: true}
}

// ID implements model.Density.
func (f *FuncDensity) ID() string { return f.id }

// LogDensity implements model.Density.
func (f *FuncDensity) LogDensity() float64 {
	f.Evaluations++
	score := f.fn()
	if !f.dirty {
		score += f.Drift
	}
	f.dirty = false
	return score
}

// MakeDirty implements model.Density.
func (f *FuncDensity) MakeDirty() { f.dirty = true }

// Diagnosis implements model.Diagnoser.
func (f *FuncDensity) Diagnosis() string { return f.Diag }

// Operator is a scripted operator. Move is called on every proposal; a nil
// Move proposes nothing and returns a zero Hastings ratio.
type Operator struct {
	operator.Tally

	name string

	Move       func() (float64, error)
	Guaranteed bool
	Proposals  int
}

// NewOperator creates a scripted operator.
func NewOperator(name string, move func() (float64, error)) *Operator {
	return &Operator{name: name, Move: move}
}

// Name implements operator.Operator.
func (o *Operator) Name() string { return o.name }

// Propose implements operator.Operator.
func (o *Operator) Propose() (float64, error) {
	o.Proposals++
	if o.Move == nil {
		return 0, nil
	}
	return o.Move()
}

// GuaranteedAccept implements operator.GuaranteedAccept.
func (o *Operator) GuaranteedAccept() bool { return o.Guaranteed }

// Fail is a Move that always reports an operator failure.
func Fail() (float64, error) {
	return 0, operator.ErrFailed
}

// CoercibleOperator is a scripted operator with a tunable parameter.
type CoercibleOperator struct {
	*Operator
	operator.Coercion

	Param float64
}

// NewCoercibleOperator creates a coercible scripted operator.
func NewCoercibleOperator(name string, move func() (float64, error), mode operator.CoercionMode, target, param float64) *CoercibleOperator {
	return &CoercibleOperator{
		Operator: NewOperator(name, move),
		Coercion: operator.NewCoercion(mode, target),
		Param:    param,
	}
}

// CoercableParameter implements operator.Coercible.
func (c *CoercibleOperator) CoercableParameter() float64 { return c.Param }

// SetCoercableParameter implements operator.Coercible.
func (c *CoercibleOperator) SetCoercableParameter(v float64) { c.Param = v }

// Sequential returns a schedule that cycles through ops in order.
// Panics on an empty list.
func Sequential(ops ...operator.Operator) *schedule.Weighted {
	entries := make([]schedule.Entry, len(ops))
	for i, op := range ops {
		entries[i] = schedule.Entry{Operator: op, Weight: 1}
	}
	s, err := schedule.NewWeighted(entries, nil, schedule.WithSequential())
	if err != nil {
		panic(err)
	}
	return s
}

// Registry returns a registry holding the given storables.
func Registry(storables ...model.Storable) *model.Registry {
	reg := model.NewRegistry()
	for _, s := range storables {
		reg.AddStorable(s)
	}
	return reg
}
