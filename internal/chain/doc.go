// Package chain implements the Markov chain Monte Carlo engine.
//
// The chain drives a probability model through repeated
// propose/evaluate/accept-or-reject cycles. It is agnostic to the model being
// sampled and to the proposal mechanisms in use: it only consumes the
// contracts in internal/model (Density, Storable, Registry), internal/operator
// (Operator and its capability traits), internal/schedule and
// internal/acceptor.
//
// ARCHITECTURE:
//
// Single-Threaded Cooperative Loop:
// Exactly one iteration executes at a time. Proposal, evaluation,
// commit/rollback and notification for an iteration happen strictly in
// sequence on the goroutine that called Run. The only cross-goroutine entry
// points are RequestStop, IsStopped and Length, all backed by atomics.
//
// Iteration Protocol:
//  1. Listeners and delegates are told the iteration is starting
//  2. A pending stop request ends the run before any work is done
//  3. The schedule picks an operator
//  4. Every registered storable is checkpointed
//  5. The operator proposes; ErrFailed means "reject"
//  6. The joint density is evaluated; +Inf/NaN is logged and becomes -Inf
//  7. Guaranteed-accept operators are committed; others ask the acceptor
//  8. Storables are committed or rolled back as one set
//  9. Coercible operators are tuned toward their target acceptance
//  10. The full-evaluation window is closed when it has served its purpose
//  11. Delegates are told the iteration has ended
//
// Full Evaluation:
// During warm-up every decision is re-checked by marking the density dirty
// and evaluating it from scratch. A disagreement beyond the tolerance means
// some component failed to track its own changes. Mismatches are logged
// immediately and escalated to a fatal EVALUATION_MISMATCH error when the
// warm-up window closes.
//
// Cancellation:
// A stop requested with RequestStop, or a cancelled context, is observed only
// at the top of the next iteration. An in-flight iteration always completes.
package chain
