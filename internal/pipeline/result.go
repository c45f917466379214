package pipeline

import "github.com/danmuck/transpilectl/internal/outcome"

// State is a pipeline run phase.
type State string

const (
	StateAwaitingTranspile State = "awaiting_transpile"
	StateAwaitingValidate  State = "awaiting_validate"
	StateDone              State = "done"
)

// Result is the response handed back to the host. The validation fields are
// nil unless the validate stage ran.
type Result struct {
	Success           bool    `json:"success" yaml:"success"`
	ErrorMessage      string  `json:"error_message" yaml:"error_message"`
	JSONOutput        *string `json:"json_output" yaml:"json_output"`
	ValidationSuccess *bool   `json:"validation_success,omitempty" yaml:"validation_success,omitempty"`
	ValidationStdout  *string `json:"validation_stdout,omitempty" yaml:"validation_stdout,omitempty"`
	ValidationStderr  *string `json:"validation_stderr,omitempty" yaml:"validation_stderr,omitempty"`

	RunID     string               `json:"-" yaml:"-"`
	States    []State              `json:"-" yaml:"-"`
	Transpile outcome.StageResult  `json:"-" yaml:"-"`
	Validate  *outcome.StageResult `json:"-" yaml:"-"`
}

// Validated reports whether the validate stage ran and succeeded.
func (r Result) Validated() bool {
	return r.ValidationSuccess != nil && *r.ValidationSuccess
}

// TranspileResult is the response of a standalone transpile run.
type TranspileResult struct {
	Success      bool    `json:"success" yaml:"success"`
	ErrorMessage string  `json:"error_message" yaml:"error_message"`
	JSONOutput   *string `json:"json_output" yaml:"json_output"`
}

// ValidateResult is the response of a standalone validate run.
type ValidateResult struct {
	Success      bool   `json:"success" yaml:"success"`
	Output       string `json:"output" yaml:"output"`
	ErrorMessage string `json:"error_message" yaml:"error_message"`
}

func transpileResponse(stage outcome.StageResult) TranspileResult {
	out := TranspileResult{
		Success:      stage.Succeeded(),
		ErrorMessage: stage.Diagnostic,
	}
	if stage.Usable() {
		payload := stage.Payload
		out.JSONOutput = &payload
	}
	return out
}

func validateResponse(stage outcome.StageResult) ValidateResult {
	return ValidateResult{
		Success:      stage.Succeeded(),
		Output:       stage.Streams.Info,
		ErrorMessage: stage.Diagnostic,
	}
}
