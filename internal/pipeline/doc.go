// Package pipeline owns the transpile-then-validate run.
//
// Ownership boundary:
// - stage argument vectors
//
// - stage sequencing and short-circuiting
//
// - the host-facing result shape
//
// State order:
// - awaiting_transpile -> awaiting_validate -> done
//
// - awaiting_validate is skipped unless transpile succeeded with a non-blank
// payload.
//
// A run never panics and never returns an error: every failure, including a
// tool missing from the registry, is folded into the Result.
package pipeline
