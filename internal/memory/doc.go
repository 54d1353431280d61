// Package memory builds the optional personalization context for a turn.
//
// The Builder decides whether an owner's recall-cache slot can be reused
// (profile unchanged, query on the same topic) or whether to recompute:
// semantic recall over stored reflections plus a compact profile summary.
// Every failure on this path is logged and degrades to "no context" — a
// turn never fails because personalization failed.
//
// Assemble turns session history plus the context block into the ordered
// instruction list the engine consumes.
package memory
