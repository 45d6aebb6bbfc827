package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrOutOfBounds is returned when a value falls outside a parameter's bounds.
var ErrOutOfBounds = errors.New("value out of bounds")

// Parameter is a named vector of float64 values that implements Storable.
//
// Every change bumps Version, which densities use to decide whether a cached
// term is stale. RestoreState restores both the values and the version that
// was current at StoreState, so a density cache keyed on the version stays
// valid across a rollback.
type Parameter struct {
	id     string
	values []float64
	saved  []float64
	lower  float64
	upper  float64

	version      uint64
	savedVersion uint64
	nextVersion  uint64
}

// NewParameter creates an unbounded parameter with the given initial values.
// The values slice is copied.
func NewParameter(id string, values ...float64) *Parameter {
	p := &Parameter{
		id:     id,
		values: append([]float64(nil), values...),
		lower:  math.Inf(-1),
		upper:  math.Inf(1),
	}
	p.saved = make([]float64, len(p.values))
	p.bump()
	return p
}

// WithBounds sets inclusive lower and upper bounds and returns p.
func (p *Parameter) WithBounds(lower, upper float64) *Parameter {
	p.lower = lower
	p.upper = upper
	return p
}

// ID returns the parameter name.
func (p *Parameter) ID() string { return p.id }

// Dim returns the number of elements.
func (p *Parameter) Dim() int { return len(p.values) }

// Value returns element i.
func (p *Parameter) Value(i int) float64 { return p.values[i] }

// Values returns a copy of all elements.
func (p *Parameter) Values() []float64 {
	return append([]float64(nil), p.values...)
}

// Bounds returns the inclusive lower and upper bounds.
func (p *Parameter) Bounds() (lower, upper float64) { return p.lower, p.upper }

// InBounds reports whether v lies within the parameter bounds.
func (p *Parameter) InBounds(v float64) bool {
	return v >= p.lower && v <= p.upper
}

// Version identifies the current value. It changes on every SetValue and
// is restored by RestoreState.
func (p *Parameter) Version() uint64 { return p.version }

// SetValue sets element i. Values outside the bounds are rejected with
// ErrOutOfBounds and leave the parameter unchanged.
func (p *Parameter) SetValue(i int, v float64) error {
	if i < 0 || i >= len(p.values) {
		return fmt.Errorf("parameter %s: index %d out of range [0,%d)", p.id, i, len(p.values))
	}
	if !p.InBounds(v) {
		return fmt.Errorf("parameter %s[%d] = %g: %w", p.id, i, v, ErrOutOfBounds)
	}
	p.values[i] = v
	p.bump()
	return nil
}

// StoreState implements Storable.
func (p *Parameter) StoreState() {
	copy(p.saved, p.values)
	p.savedVersion = p.version
}

// AcceptState implements Storable.
func (p *Parameter) AcceptState() {
	p.savedVersion = p.version
}

// RestoreState implements Storable.
func (p *Parameter) RestoreState() {
	copy(p.values, p.saved)
	p.version = p.savedVersion
}

func (p *Parameter) bump() {
	p.nextVersion++
	p.version = p.nextVersion
}
