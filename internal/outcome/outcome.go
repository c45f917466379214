package outcome

import (
	"strings"

	"github.com/danmuck/transpilectl/internal/tools"
)

const (
	StageTranspile = "transpile"
	StageValidate  = "validate"
)

// Outcome is the tri-state classification of one stage.
type Outcome int

const (
	// Indeterminate is the unresolved state; it never leaves the classifier.
	Indeterminate Outcome = iota
	Success
	Failure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return "indeterminate"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// StageResult is the normalized result of one stage. It is built once by the
// classifier and not modified afterwards.
type StageResult struct {
	Stage      string
	Outcome    Outcome
	Diagnostic string
	// Payload is the produced JSON for transpile and the captured stdout for
	// validate.
	Payload string
	Streams tools.Streams
	Err     error
}

func (r StageResult) Succeeded() bool {
	return r.Outcome == Success
}

// Usable reports whether the stage succeeded with a non-blank payload.
func (r StageResult) Usable() bool {
	return r.Outcome == Success && !Blank(r.Payload)
}

// Blank reports whether s is empty after trimming whitespace.
func Blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
