// Package state defines the workflow state threaded through every
// extraction step, and the merge semantics applied when steps return
// partial updates. Each state field declares a merge strategy; steps
// touching disjoint fields can therefore update the same state without
// clobbering each other.
package state
