package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/danmuck/transpilectl/internal/observability"
	"github.com/danmuck/transpilectl/internal/outcome"
	"github.com/danmuck/transpilectl/internal/tools"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ToolSpec names the registered adapter for a stage and the tool name placed
// at argv[0].
type ToolSpec struct {
	ID    string
	Argv0 string
}

// Config wires a Controller to its tools.
type Config struct {
	Transpiler ToolSpec
	Validator  ToolSpec
	// OutputDir receives generated output files when a request has no
	// output path. Empty means os.TempDir().
	OutputDir string
	// KeepOutput leaves generated output files in place.
	KeepOutput bool
}

// Request is one pipeline run. OutputPath may be empty, in which case a
// per-run file is generated and removed after it has been read.
type Request struct {
	InputPath  string
	OutputPath string
	SchemaPath string
}

// Controller runs the transpile and validate stages. It is synchronous and
// must not be shared by concurrent runs when any in-process tool is
// registered.
type Controller struct {
	registry *tools.Registry
	cfg      Config

	transpiler outcome.Classifier
	validator  outcome.Classifier
}

func NewController(registry *tools.Registry, cfg Config) *Controller {
	if strings.TrimSpace(cfg.Transpiler.Argv0) == "" {
		cfg.Transpiler.Argv0 = "ghga-transpiler"
	}
	if strings.TrimSpace(cfg.Validator.Argv0) == "" {
		cfg.Validator.Argv0 = "schemapack"
	}
	return &Controller{
		registry:   registry,
		cfg:        cfg,
		transpiler: outcome.New(cfg.Transpiler.Argv0),
		validator:  outcome.New(cfg.Validator.Argv0),
	}
}

// TranspileArgv is the argument vector of a standalone transpiler run.
func TranspileArgv(tool, src, dst string) []string {
	return []string{tool, src, dst}
}

// ValidateArgv is the argument vector of a standalone schemapack run.
func ValidateArgv(tool, schema, data string) []string {
	return []string{tool, "validate", "--schemapack", schema, "--datapack", data}
}

// Run executes transpile and, when it produced usable JSON, validate.
func (c *Controller) Run(ctx context.Context, req Request) Result {
	runID := uuid.NewString()
	ctx, span := observability.Tracer().Start(ctx, "pipeline.run")
	span.SetAttributes(attribute.String("run_id", runID))
	defer span.End()

	res := Result{RunID: runID}
	res.States = append(res.States, StateAwaitingTranspile)
	log.Info().
		Str("run_id", runID).
		Str("input", req.InputPath).
		Str("output", req.OutputPath).
		Str("schemapack", req.SchemaPath).
		Msg("pipeline.Controller.Run start")

	outPath, cleanup := c.outputPath(runID, req.OutputPath)
	defer cleanup()

	stage := c.Transpile(ctx, req.InputPath, outPath)
	res.Transpile = stage
	res.Success = stage.Succeeded()
	res.ErrorMessage = stage.Diagnostic

	if !stage.Usable() {
		// json_output stays nil on every non-usable path
		log.Info().
			Str("run_id", runID).
			Str("outcome", stage.Outcome.String()).
			Msg("pipeline.Controller.Run skipping validation")
		res.States = append(res.States, StateDone)
		observability.RecordPipeline(res.Success, nil)
		span.SetStatus(codes.Error, "transpile failed")
		return res
	}

	payload := stage.Payload
	res.JSONOutput = &payload
	res.States = append(res.States, StateAwaitingValidate)

	vstage := c.Validate(ctx, req.SchemaPath, outPath)
	res.Validate = &vstage
	ok := vstage.Succeeded()
	stdout := vstage.Streams.Info
	stderr := vstage.Diagnostic
	if ok {
		stderr = vstage.Streams.Error
	}
	res.ValidationSuccess = &ok
	res.ValidationStdout = &stdout
	res.ValidationStderr = &stderr

	res.States = append(res.States, StateDone)
	observability.RecordPipeline(res.Success, res.ValidationSuccess)
	if !ok {
		span.SetStatus(codes.Error, "validation failed")
	}
	log.Info().
		Str("run_id", runID).
		Bool("success", res.Success).
		Bool("validation_success", ok).
		Msg("pipeline.Controller.Run complete")
	return res
}

// RunTranspile executes only the transpile stage.
func (c *Controller) RunTranspile(ctx context.Context, inputPath, outputPath string) TranspileResult {
	outPath, cleanup := c.outputPath(uuid.NewString(), outputPath)
	defer cleanup()
	return transpileResponse(c.Transpile(ctx, inputPath, outPath))
}

// RunValidate executes only the validate stage.
func (c *Controller) RunValidate(ctx context.Context, schemaPath, dataPath string) ValidateResult {
	return validateResponse(c.Validate(ctx, schemaPath, dataPath))
}

// Transpile runs the transpiler against src and classifies the artifact it
// leaves at dst.
func (c *Controller) Transpile(ctx context.Context, src, dst string) outcome.StageResult {
	argv := TranspileArgv(c.cfg.Transpiler.Argv0, src, dst)
	raw, elapsed := c.invoke(ctx, outcome.StageTranspile, c.cfg.Transpiler.ID, argv)
	res := c.transpiler.Transpile(raw, outcome.FileArtifact(dst))
	c.record(res, elapsed)
	return res
}

// Validate runs the validator on the datapack at data.
func (c *Controller) Validate(ctx context.Context, schema, data string) outcome.StageResult {
	argv := ValidateArgv(c.cfg.Validator.Argv0, schema, data)
	raw, elapsed := c.invoke(ctx, outcome.StageValidate, c.cfg.Validator.ID, argv)
	res := c.validator.Validate(raw)
	c.record(res, elapsed)
	return res
}

func (c *Controller) invoke(ctx context.Context, stage, toolID string, argv []string) (tools.RawResult, time.Duration) {
	_, span := observability.Tracer().Start(ctx, "stage."+stage)
	defer span.End()
	span.SetAttributes(
		attribute.String("stage", stage),
		attribute.String("tool", toolID),
		attribute.StringSlice("argv", argv),
	)

	start := time.Now()
	log.Debug().Str("stage", stage).Str("tool", toolID).Strs("argv", argv).Msg("pipeline.Controller.invoke")
	raw := c.registry.Resolve(toolID).Invoke(ctx, argv)
	elapsed := time.Since(start)

	span.SetAttributes(
		attribute.String("result", raw.Kind.String()),
		attribute.Int("exit_code", raw.ExitCode),
	)
	log.Debug().
		Str("stage", stage).
		Str("tool", toolID).
		Str("result", raw.Kind.String()).
		Int("exit_code", raw.ExitCode).
		Int("stdout_bytes", len(raw.Streams.Info)).
		Int("stderr_bytes", len(raw.Streams.Error)).
		Dur("elapsed", elapsed).
		Msg("pipeline.Controller.invoke finished")
	return raw, elapsed
}

func (c *Controller) record(res outcome.StageResult, elapsed time.Duration) {
	kind := ""
	var stageErr *outcome.StageError
	if errors.As(res.Err, &stageErr) {
		kind = stageErr.Kind.Error()
	}
	observability.RecordStage(res.Stage, res.Outcome.String(), kind, elapsed)

	event := log.Info()
	if res.Outcome != outcome.Success {
		event = log.Warn().Err(res.Err)
	}
	event.
		Str("stage", res.Stage).
		Str("outcome", res.Outcome.String()).
		Int("payload_bytes", len(res.Payload)).
		Msg("pipeline.Controller stage classified")
}

// outputPath returns dst, or a generated per-run path plus a cleanup func
// that removes it unless KeepOutput is set.
func (c *Controller) outputPath(runID, dst string) (string, func()) {
	if strings.TrimSpace(dst) != "" {
		return dst, func() {}
	}

	dir := c.cfg.OutputDir
	if strings.TrimSpace(dir) == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, "transpilectl-"+runID+".json")
	if c.cfg.KeepOutput {
		return path, func() {}
	}
	return path, func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("pipeline.Controller cleanup failed")
		}
	}
}
