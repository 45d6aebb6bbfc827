package model

// Registry is the run-scoped collection of model components.
//
// Every density and storable created for a chain is registered here. The
// chain connects its joint density at construction; densities that were
// registered but never reached from a connected density are orphans, which
// usually means a model term was declared but left out of the joint density.
//
// Thread-safety: Registry is not safe for concurrent use. It is populated
// while the model is built and read by the chain on its own goroutine.
type Registry struct {
	densities []Density
	storables StorableSet
	connected map[Density]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{connected: make(map[Density]bool)}
}

// AddDensity registers a density. Duplicate registrations are ignored.
func (r *Registry) AddDensity(d Density) {
	for _, existing := range r.densities {
		if existing == d {
			return
		}
	}
	r.densities = append(r.densities, d)
}

// AddStorable registers a storable. Duplicate registrations are ignored.
// Registration order is the order in which the chain checkpoints units.
func (r *Registry) AddStorable(s Storable) {
	for _, existing := range r.storables {
		if existing == s {
			return
		}
	}
	r.storables = append(r.storables, s)
}

// Connect marks d and its transitive components as connected.
// Connected densities that were never registered are added to the registry.
func (r *Registry) Connect(d Density) {
	Walk(d, func(cur Density) {
		r.AddDensity(cur)
		r.connected[cur] = true
	})
}

// IsConnected reports whether d has been reached by Connect.
func (r *Registry) IsConnected(d Density) bool {
	return r.connected[d]
}

// Orphans returns the IDs of registered densities that are not connected,
// in registration order.
func (r *Registry) Orphans() []string {
	var ids []string
	for _, d := range r.densities {
		if !r.connected[d] {
			ids = append(ids, d.ID())
		}
	}
	return ids
}

// Densities returns all registered densities in registration order.
func (r *Registry) Densities() []Density {
	return append([]Density(nil), r.densities...)
}

// Storables returns the registered storables in registration order.
func (r *Registry) Storables() StorableSet {
	return append(StorableSet(nil), r.storables...)
}
