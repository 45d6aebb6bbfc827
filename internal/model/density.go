package model

// Density computes the log-density of the current state.
//
// Score conventions:
//   - -Inf: the state is impossible a priori (legal; the proposal is rejected)
//   - +Inf or NaN: a numerical fault in evaluation
type Density interface {
	// ID names the density for diagnostics and orphan warnings.
	ID() string

	// LogDensity returns the log-density, recomputing only what changed
	// since the previous call.
	LogDensity() float64

	// MakeDirty forces the next LogDensity call to recompute everything.
	MakeDirty()
}

// Diagnoser is implemented by densities that can describe which of their
// sub-terms is degenerate.
type Diagnoser interface {
	Diagnosis() string
}

// Composite is implemented by densities built from sub-densities.
// Components returns the direct children only.
type Composite interface {
	Components() []Density
}

// Diagnose returns d's diagnosis if it implements Diagnoser, otherwise "".
func Diagnose(d Density) string {
	if dg, ok := d.(Diagnoser); ok {
		return dg.Diagnosis()
	}
	return ""
}

// Walk visits d and all of its transitive components depth-first.
// Each density is visited once even if it is shared by several parents.
func Walk(d Density, visit func(Density)) {
	seen := make(map[Density]bool)
	var walk func(Density)
	walk = func(cur Density) {
		if cur == nil || seen[cur] {
			return
		}
		seen[cur] = true
		visit(cur)
		if c, ok := cur.(Composite); ok {
			for _, child := range c.Components() {
				walk(child)
			}
		}
	}
	walk(d)
}
