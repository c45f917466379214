package outcome

import (
	"errors"
	"fmt"

	"github.com/danmuck/transpilectl/internal/tools"
)

var (
	ErrMissingArtifact   = errors.New("output artifact missing")
	ErrEmptyArtifact     = errors.New("output artifact empty")
	ErrToolUnavailable   = tools.ErrUnavailable
	ErrAbruptTermination = errors.New("abrupt termination")
	ErrUncaughtFault     = errors.New("uncaught fault")
	ErrValidationFailed  = errors.New("validation reported errors")
	ErrUnknownFailure    = errors.New("unknown failure")
)

// StageError carries the failure kind of one stage plus its details.
type StageError struct {
	Stage    string
	Kind     error
	Code     int
	Category string
	Message  string
	Trace    string
}

func (e *StageError) Error() string {
	switch {
	case errors.Is(e.Kind, ErrAbruptTermination):
		return fmt.Sprintf("%s: %v (code %d)", e.Stage, e.Kind, e.Code)
	case e.Category != "":
		return fmt.Sprintf("%s: %v: %s: %s", e.Stage, e.Kind, e.Category, e.Message)
	case e.Message != "":
		return fmt.Sprintf("%s: %v: %s", e.Stage, e.Kind, e.Message)
	default:
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
}

func (e *StageError) Unwrap() error {
	return e.Kind
}
