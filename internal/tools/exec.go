package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"

	"github.com/rs/zerolog/log"
)

// ExecTool runs a tool as a child process. Each invocation owns its own
// stdout/stderr buffers, so nothing in the parent process is mutated.
type ExecTool struct {
	Meta Metadata
	// Path is the executable to run. When empty, argv[0] is looked up on PATH.
	Path string
	Dir  string
	// Env is appended to the parent environment.
	Env []string
}

func (t ExecTool) Metadata() Metadata {
	return t.Meta
}

// Invoke runs the executable with argv[1:] and argv[0] as the process name.
func (t ExecTool) Invoke(ctx context.Context, argv []string) RawResult {
	if len(argv) == 0 {
		return Faulted(Fault{Category: "ArgumentError", Message: "empty argument vector"}, Streams{})
	}

	name := t.Path
	if name == "" {
		name = argv[0]
	}
	cmd := exec.CommandContext(ctx, name, argv[1:]...)
	cmd.Args[0] = argv[0]
	cmd.Dir = t.Dir
	if len(t.Env) > 0 {
		cmd.Env = append(os.Environ(), t.Env...)
	}

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug().Str("tool", t.Meta.ID).Str("path", name).Strs("argv", argv).Msg("tools.ExecTool.Invoke")
	err := cmd.Run()
	streams := Streams{Info: stdout.String(), Error: stderr.String()}
	if err == nil {
		// a child process always terminates with a status, so a clean run
		// is an exit signal carrying 0, never a normal return
		return Exited(0, streams)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return Exited(code, streams)
		}
		// killed by a signal, usually ctx cancellation
		msg := exitErr.Error()
		if ctxErr := ctx.Err(); ctxErr != nil {
			msg = fmt.Sprintf("%s (%v)", msg, ctxErr)
		}
		return Faulted(Fault{Category: "Signaled", Message: msg}, streams)
	}

	var execErr *exec.Error
	if errors.As(err, &execErr) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		log.Warn().Err(err).Str("tool", t.Meta.ID).Str("path", name).Msg("tools.ExecTool.Invoke tool unavailable")
		return Faulted(Fault{
			Category:    "ToolUnavailable",
			Message:     err.Error(),
			Unavailable: true,
		}, streams)
	}

	return Faulted(Fault{Category: ErrorCategory(err), Message: err.Error()}, streams)
}
