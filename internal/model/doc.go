// Package model defines the state the sampler mutates and scores.
//
// Three contracts live here:
//
//   - Storable: a mutable component that can checkpoint, commit and roll back
//     its own value. The chain calls the three operations uniformly across the
//     whole registered set every iteration, never on a single unit.
//   - Density: a scalar log-density over the current state, optionally
//     composed of named sub-densities (Composite) and able to describe which
//     of them degenerated (Diagnoser).
//   - Registry: the run-scoped collection of every density and storable that
//     was created for a chain. It replaces ambient global sets; the chain
//     connects its joint density into the registry at construction and warns
//     about components that were created but never connected.
//
// # Rollback Invariant
//
// After RestoreState, a unit's observable value is bit-identical to its value
// immediately before the most recent StoreState. After AcceptState, the saved
// slot is superseded by the current value. Parameter implements this by
// copying the backing slice, never by recomputing it.
package model
