package model

import (
	"fmt"
	"math"
	"strings"
)

// Compound is a Density that sums named sub-densities.
//
// Terms are evaluated in registration order. Evaluation stops early at the
// first -Inf term since the sum can no longer change; the remaining terms
// are still reported by Diagnosis.
type Compound struct {
	id    string
	terms []Density
}

// NewCompound creates a compound density over the given terms.
func NewCompound(id string, terms ...Density) *Compound {
	return &Compound{id: id, terms: append([]Density(nil), terms...)}
}

// Add appends a term.
func (c *Compound) Add(d Density) {
	c.terms = append(c.terms, d)
}

// ID implements Density.
func (c *Compound) ID() string { return c.id }

// LogDensity implements Density.
func (c *Compound) LogDensity() float64 {
	var sum float64
	for _, t := range c.terms {
		v := t.LogDensity()
		if math.IsInf(v, -1) {
			return v
		}
		sum += v
	}
	return sum
}

// MakeDirty implements Density.
func (c *Compound) MakeDirty() {
	for _, t := range c.terms {
		t.MakeDirty()
	}
}

// Components implements Composite.
func (c *Compound) Components() []Density {
	return append([]Density(nil), c.terms...)
}

// Diagnosis implements Diagnoser. It lists every term with its current
// value; non-finite terms are marked so the degenerate one stands out.
func (c *Compound) Diagnosis() string {
	var b strings.Builder
	for i, t := range c.terms {
		if i > 0 {
			b.WriteString(", ")
		}
		v := t.LogDensity()
		fmt.Fprintf(&b, "%s=%g", t.ID(), v)
		switch {
		case math.IsInf(v, -1):
			b.WriteString(" (zero)")
		case math.IsInf(v, 1) || math.IsNaN(v):
			b.WriteString(" (numerical error)")
		}
		if sub := Diagnose(t); sub != "" {
			fmt.Fprintf(&b, " [%s]", sub)
		}
	}
	return b.String()
}
