package outcome

import (
	"fmt"
	"strings"

	"github.com/danmuck/transpilectl/internal/tools"
	"github.com/rs/zerolog/log"
)

// Classifier turns raw tool results into stage results. Tool is the display
// name used in diagnostics.
type Classifier struct {
	Tool string
}

func New(tool string) Classifier {
	tool = strings.TrimSpace(tool)
	if tool == "" {
		tool = "tool"
	}
	return Classifier{Tool: tool}
}

// Transpile classifies a run of a tool that is expected to write artifact.
func (c Classifier) Transpile(raw tools.RawResult, artifact Artifact) StageResult {
	res := StageResult{Stage: StageTranspile, Streams: raw.Streams}
	stderr := strings.TrimSpace(raw.Streams.Error)

	switch raw.Kind {
	case tools.ResultOK:
		c.readArtifact(&res, artifact, stderr)

	case tools.ResultExit:
		if raw.ExitCode != 0 {
			res.Outcome = Failure
			res.Err = &StageError{Stage: res.Stage, Kind: ErrAbruptTermination, Code: raw.ExitCode}
			res.Diagnostic = fmt.Sprintf("%s exited with code %d.\nStderr: %s", c.Tool, raw.ExitCode, stderr)
			break
		}
		// exit 0 is only a success if the artifact is there now
		content, exists, err := artifact.Read()
		switch {
		case err != nil:
			c.unreadable(&res, artifact, err, stderr)
		case exists && !Blank(content):
			c.succeed(&res, content, stderr)
		case exists:
			c.emptyArtifact(&res, artifact, stderr)
		default:
			res.Outcome = Indeterminate
			res.Err = &StageError{Stage: res.Stage, Kind: ErrAbruptTermination, Code: 0}
			res.Diagnostic = fmt.Sprintf("%s exited with code 0 but output file %q was not produced.\nStderr: %s",
				c.Tool, artifact.Path(), stderr)
		}

	case tools.ResultFault:
		c.fault(&res, raw.Fault, stderr)

	default:
		res.Outcome = Indeterminate
	}

	return c.finalize(res, true)
}

// Validate classifies a run of the validation tool. On normal return the
// captured stderr decides: any case-insensitive "error" in it is a failure.
func (c Classifier) Validate(raw tools.RawResult) StageResult {
	res := StageResult{
		Stage:      StageValidate,
		Streams:    raw.Streams,
		Payload:    raw.Streams.Info,
		Diagnostic: raw.Streams.Error,
	}

	switch raw.Kind {
	case tools.ResultOK:
		errs := strings.ToLower(strings.TrimSpace(raw.Streams.Error))
		if strings.Contains(errs, "error") {
			res.Outcome = Failure
			res.Err = &StageError{Stage: res.Stage, Kind: ErrValidationFailed}
		} else {
			res.Outcome = Success
		}

	case tools.ResultExit:
		if raw.ExitCode == 0 {
			res.Outcome = Success
			break
		}
		res.Outcome = Failure
		res.Err = &StageError{Stage: res.Stage, Kind: ErrAbruptTermination, Code: raw.ExitCode}
		if Blank(res.Diagnostic) {
			res.Diagnostic = fmt.Sprintf("%s exited with code %d.", c.Tool, raw.ExitCode)
		}

	case tools.ResultFault:
		c.fault(&res, raw.Fault, "")
		res.Diagnostic = joinLines(raw.Streams.Error, res.Diagnostic)

	default:
		res.Outcome = Indeterminate
	}

	return c.finalize(res, false)
}

func (c Classifier) readArtifact(res *StageResult, artifact Artifact, stderr string) {
	content, exists, err := artifact.Read()
	switch {
	case err != nil:
		c.unreadable(res, artifact, err, stderr)
	case !exists:
		res.Outcome = Failure
		res.Err = &StageError{Stage: res.Stage, Kind: ErrMissingArtifact, Message: artifact.Path()}
		res.Diagnostic = joinLines(
			fmt.Sprintf("Output file %q not found after transpilation.", artifact.Path()),
			stderr,
		)
	case Blank(content):
		c.emptyArtifact(res, artifact, stderr)
	default:
		c.succeed(res, content, stderr)
	}
}

func (c Classifier) unreadable(res *StageResult, artifact Artifact, err error, stderr string) {
	res.Outcome = Failure
	res.Err = &StageError{
		Stage:    res.Stage,
		Kind:     ErrUncaughtFault,
		Category: tools.ErrorCategory(err),
		Message:  err.Error(),
	}
	res.Diagnostic = joinLines(
		fmt.Sprintf("Reading output file %q failed: %s: %v", artifact.Path(), tools.ErrorCategory(err), err),
		stderr,
	)
}

func (c Classifier) succeed(res *StageResult, content string, stderr string) {
	res.Outcome = Success
	res.Payload = content
	if stderr != "" {
		res.Diagnostic = "Stderr warnings/info: " + stderr
	}
}

func (c Classifier) emptyArtifact(res *StageResult, artifact Artifact, stderr string) {
	res.Outcome = Failure
	res.Err = &StageError{Stage: res.Stage, Kind: ErrEmptyArtifact, Message: artifact.Path()}
	res.Diagnostic = joinLines(
		fmt.Sprintf("Output file %q is empty after transpilation.", artifact.Path()),
		stderr,
	)
}

func (c Classifier) fault(res *StageResult, fault *tools.Fault, stderr string) {
	res.Outcome = Failure
	if fault == nil {
		res.Err = &StageError{Stage: res.Stage, Kind: ErrUncaughtFault}
		res.Diagnostic = joinLines(fmt.Sprintf("%s raised an unspecified fault.", c.Tool), stderr)
		return
	}

	if fault.Unavailable {
		res.Err = &StageError{
			Stage:    res.Stage,
			Kind:     ErrToolUnavailable,
			Category: fault.Category,
			Message:  fault.Message,
		}
		res.Diagnostic = joinLines(fmt.Sprintf("ToolUnavailable: %s", fault.Message), stderr)
		return
	}

	res.Err = &StageError{
		Stage:    res.Stage,
		Kind:     ErrUncaughtFault,
		Category: fault.Category,
		Message:  fault.Message,
		Trace:    fault.Trace,
	}
	text := fmt.Sprintf("Uncaught fault in %s: %s: %s", c.Tool, fault.Category, fault.Message)
	if fault.Trace != "" {
		text += "\nTrace:\n" + strings.TrimRight(fault.Trace, "\n")
	}
	res.Diagnostic = joinLines(text, stderr)
}

// finalize resolves Indeterminate, applies the blank-payload override and
// guarantees a diagnostic on failure.
func (c Classifier) finalize(res StageResult, needPayload bool) StageResult {
	if needPayload && res.Outcome == Success && Blank(res.Payload) {
		log.Debug().Str("stage", res.Stage).Msg("outcome.Classifier.finalize success without payload, overriding to failure")
		res.Outcome = Failure
		res.Err = &StageError{Stage: res.Stage, Kind: ErrEmptyArtifact}
		if Blank(res.Diagnostic) {
			res.Diagnostic = fmt.Sprintf("%s ran but produced no readable output.", c.Tool)
		}
	}

	if res.Outcome == Indeterminate {
		res.Outcome = Failure
	}

	if res.Outcome == Failure {
		if res.Err == nil {
			res.Err = &StageError{Stage: res.Stage, Kind: ErrUnknownFailure}
		}
		if Blank(res.Diagnostic) {
			res.Diagnostic = fmt.Sprintf("%s failed for an unknown reason.", c.Tool)
		}
		if needPayload {
			res.Payload = ""
		}
	}
	return res
}

func joinLines(head, tail string) string {
	head = strings.TrimRight(head, "\n")
	switch {
	case head == "":
		return tail
	case strings.TrimSpace(tail) == "":
		return head
	default:
		return head + "\n" + tail
	}
}
