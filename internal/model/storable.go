package model

// Storable is a model component that supports checkpoint/commit/rollback.
//
// The chain drives every registered Storable through the same sequence each
// iteration: StoreState before the proposal, then exactly one of AcceptState
// (proposal committed) or RestoreState (proposal rolled back).
type Storable interface {
	// StoreState saves the current value into the unit's saved slot.
	StoreState()

	// AcceptState commits the current value and discards the saved slot.
	AcceptState()

	// RestoreState rolls the current value back to the saved slot.
	RestoreState()
}

// StorableSet is an ordered collection of storables driven as one unit.
type StorableSet []Storable

// Store checkpoints every unit in registration order.
func (s StorableSet) Store() {
	for _, st := range s {
		st.StoreState()
	}
}

// Accept commits every unit in registration order.
func (s StorableSet) Accept() {
	for _, st := range s {
		st.AcceptState()
	}
}

// Restore rolls back every unit in registration order.
func (s StorableSet) Restore() {
	for _, st := range s {
		st.RestoreState()
	}
}
