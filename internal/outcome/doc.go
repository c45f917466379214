// Package outcome turns raw tool results into normalized stage results.
//
// Every termination mode (normal return, exit signal, fault) resolves to a
// StageResult whose Outcome is Success or Failure and whose Diagnostic is
// never empty on failure. Nothing in this package panics or returns errors
// to the caller; failure kinds travel as StageResult.Err.
package outcome
