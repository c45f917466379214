// Package tools owns the boundary between the harness and the external
// single-shot tools it drives.
//
// Ownership boundary:
// - tool adapters (os/exec and in-process)
//
// - argument vector staging
//
// - stdout/stderr capture
//
// Every adapter returns a RawResult: a normal return, an exit signal carrying
// a status code, or a fault. Adapters never panic and never return errors.
//
// Argument staging and stream capture mutate process-wide state (os.Args,
// os.Stdout, os.Stderr). They are not reentrant and provide no locking: run at
// most one in-process invocation at a time per process.
package tools
