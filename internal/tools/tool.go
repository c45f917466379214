package tools

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable marks a tool that could not be located or loaded.
var ErrUnavailable = errors.New("tool unavailable")

// Metadata is the stable identity of one registered tool.
type Metadata struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// Tool is one external single-shot command behind a pure call signature.
type Tool interface {
	Metadata() Metadata
	// Invoke runs the tool once with argv, where argv[0] is the tool name the
	// tool would see when run as a standalone command.
	Invoke(ctx context.Context, argv []string) RawResult
}

// ResultKind tags how an invocation terminated.
type ResultKind int

const (
	// ResultOK is a normal return.
	ResultOK ResultKind = iota
	// ResultExit is an abrupt termination carrying ExitCode.
	ResultExit
	// ResultFault is an uncaught fault, including failure to locate the tool.
	ResultFault
)

func (k ResultKind) String() string {
	switch k {
	case ResultOK:
		return "ok"
	case ResultExit:
		return "exit"
	case ResultFault:
		return "fault"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Fault describes an uncaught fault raised by a tool or its adapter.
type Fault struct {
	Category string
	Message  string
	Trace    string
	// Unavailable is set when the tool could not be located or loaded.
	Unavailable bool
}

// Streams is the text a tool wrote to its informational (stdout) and error
// (stderr) streams during one invocation.
type Streams struct {
	Info  string
	Error string
}

// RawResult is the tagged outcome of one invocation. Streams are owned by the
// result and never shared with another invocation.
type RawResult struct {
	Kind     ResultKind
	ExitCode int
	Fault    *Fault
	Streams  Streams
}

// Ok builds a normal-return result.
func Ok(streams Streams) RawResult {
	return RawResult{Kind: ResultOK, Streams: streams}
}

// Exited builds an exit-signal result.
func Exited(code int, streams Streams) RawResult {
	return RawResult{Kind: ResultExit, ExitCode: code, Streams: streams}
}

// Faulted builds a fault result.
func Faulted(fault Fault, streams Streams) RawResult {
	return RawResult{Kind: ResultFault, Fault: &fault, Streams: streams}
}

// Unavailable builds the fault result for a tool that cannot be located.
func Unavailable(id string, reason string) RawResult {
	msg := fmt.Sprintf("%s: %s", id, reason)
	return Faulted(Fault{
		Category:    "ToolUnavailable",
		Message:     msg,
		Unavailable: true,
	}, Streams{})
}
