package tools

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog/log"
)

// ExitSignal is the abrupt-termination signal an in-process tool raises in
// place of os.Exit.
type ExitSignal struct {
	Code int
}

func (e ExitSignal) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Exit terminates the calling in-process tool with code. It must only be
// called from a MainFunc running under InProcessTool.Invoke.
func Exit(code int) {
	panic(ExitSignal{Code: code})
}

// MainFunc is the entry point of a tool written as a standalone command: it
// reads os.Args and writes to os.Stdout and os.Stderr.
type MainFunc func() error

// InProcessTool runs a MainFunc inside the current process with a staged
// argument vector and captured streams.
type InProcessTool struct {
	Meta Metadata
	Main MainFunc
}

// NewInProcessTool builds an in-process adapter for main.
func NewInProcessTool(meta Metadata, main MainFunc) InProcessTool {
	return InProcessTool{Meta: meta, Main: main}
}

func (t InProcessTool) Metadata() Metadata {
	return t.Meta
}

// Invoke stages argv, captures streams and runs Main. os.Args, os.Stdout and
// os.Stderr are restored on every exit path, including exit signals and
// panics.
func (t InProcessTool) Invoke(ctx context.Context, argv []string) (result RawResult) {
	if t.Main == nil {
		return Unavailable(t.Meta.ID, "no entry point registered")
	}
	if err := ctx.Err(); err != nil {
		return Faulted(Fault{Category: ErrorCategory(err), Message: err.Error()}, Streams{})
	}

	capture, err := CaptureStreams()
	if err != nil {
		log.Error().Err(err).Str("tool", t.Meta.ID).Msg("tools.InProcessTool.Invoke capture failed")
		return Faulted(Fault{Category: "CaptureError", Message: err.Error()}, Streams{})
	}
	defer func() {
		result.Streams = capture.Close()
	}()

	restore := StageArgs(argv)
	defer restore()

	defer func() {
		if r := recover(); r != nil {
			result = recovered(r, string(debug.Stack()))
		}
	}()

	log.Debug().Str("tool", t.Meta.ID).Strs("argv", argv).Msg("tools.InProcessTool.Invoke")
	return fromError(t.Main())
}

func fromError(err error) RawResult {
	if err == nil {
		return RawResult{Kind: ResultOK}
	}

	var sig ExitSignal
	if errors.As(err, &sig) {
		return RawResult{Kind: ResultExit, ExitCode: sig.Code}
	}

	return RawResult{Kind: ResultFault, Fault: &Fault{
		Category:    ErrorCategory(err),
		Message:     err.Error(),
		Unavailable: errors.Is(err, ErrUnavailable),
	}}
}

func recovered(r any, trace string) RawResult {
	switch v := r.(type) {
	case ExitSignal:
		return RawResult{Kind: ResultExit, ExitCode: v.Code}
	case *ExitSignal:
		return RawResult{Kind: ResultExit, ExitCode: v.Code}
	case error:
		return RawResult{Kind: ResultFault, Fault: &Fault{
			Category:    ErrorCategory(v),
			Message:     v.Error(),
			Trace:       trace,
			Unavailable: errors.Is(v, ErrUnavailable),
		}}
	default:
		return RawResult{Kind: ResultFault, Fault: &Fault{
			Category: fmt.Sprintf("%T", v),
			Message:  fmt.Sprint(v),
			Trace:    trace,
		}}
	}
}

// ErrorCategory names an error by its dynamic type, without the pointer
// marker and package path.
func ErrorCategory(err error) string {
	name := strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "Error"
	}
	return name
}
