// Package engine implements the conversational order-state reducer and
// its replayer.
//
// # Determinism
//
// The reducer is a pure function: (state, message) -> (state, diagnostics).
// It deep-copies the input state, applies a fixed sequence of extraction
// steps, and recomputes every derived field before returning. The same
// state and message always produce the same output, which is what makes
// edit-and-replay safe: rebuilding an order from its message history is
// just a fold, and rebuilding it twice yields identical states.
//
// # Step order
//
// Steps run in a fixed order because later steps depend on earlier ones
// having resolved the active variant and any new colors:
//
//  1. Product type (first-writer-wins)
//  2. Budget (first-writer-wins)
//  3. Active-variant resolution (unlock phrases, explicit colors, lock)
//  4. Size+quantity extraction (additive merge into the active variant)
//  5. Relative "rest" resolution (fails on over-capacity)
//  6. Color/variant detection (declared totals, placeholder variants)
//  7. Elliptical short-answer resolution against the last question
//  8. Personalization extraction
//  9. Completion recomputation for every variant
//
// # Permissive vs. strict
//
// Unmatched text is ignored without error - conversational input is noisy
// by nature. The one strict case is "rest" resolution: assigning the
// remainder when nothing (or less than nothing) remains indicates a
// genuinely contradictory order, so the reducer fails with a typed
// over-capacity error instead of swallowing it.
package engine
