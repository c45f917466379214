package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/danmuck/transpilectl/internal/jsoncheck"
	"github.com/danmuck/transpilectl/internal/outcome"
	"github.com/danmuck/transpilectl/internal/testutil/testlog"
	"github.com/danmuck/transpilectl/internal/tools"
)

const fakeTranspilerID = "tool.fake-transpiler"

const testSchemapack = `schemapack: 3.0.0
rootClass: Study
classes:
  Study: {}
  Dataset: {}
  Sample: {}
`

const validDatapack = `{
  "datapack": "3.0.0",
  "resources": {
    "Dataset": {"DS_1": {"content": {"title": "A"}}},
    "Sample": {"S_1": {"content": {"name": "blood"}}}
  }
}`

const invalidDatapack = `{
  "datapack": "3.0.0",
  "resources": {
    "Spreadsheet": {"X_1": {"content": {}}}
  }
}`

// fakeTranspiler writes body to argv[2], or exits with code when code != 0.
func fakeTranspiler(body string, code int) tools.InProcessTool {
	return tools.NewInProcessTool(tools.Metadata{ID: fakeTranspilerID, Name: "fake transpiler"}, func() error {
		if len(os.Args) != 3 {
			return fmt.Errorf("expected 3 args, got %v", os.Args)
		}
		if code != 0 {
			fmt.Fprintf(os.Stderr, "worksheet %s is malformed\n", os.Args[1])
			tools.Exit(code)
		}
		return os.WriteFile(os.Args[2], []byte(body), 0o600)
	})
}

type recordingTool struct {
	meta  tools.Metadata
	calls [][]string
	raw   tools.RawResult
}

func (r *recordingTool) Metadata() tools.Metadata { return r.meta }

func (r *recordingTool) Invoke(_ context.Context, argv []string) tools.RawResult {
	r.calls = append(r.calls, slices.Clone(argv))
	return r.raw
}

type fixture struct {
	dir        string
	input      string
	schemapack string
	output     string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:        dir,
		input:      filepath.Join(dir, "metadata.xlsx"),
		schemapack: filepath.Join(dir, "schema.schemapack.yaml"),
		output:     filepath.Join(dir, "out.json"),
	}
	if err := os.WriteFile(f.input, []byte("xlsx"), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}
	if err := os.WriteFile(f.schemapack, []byte(testSchemapack), 0o600); err != nil {
		t.Fatalf("write schemapack: %v", err)
	}
	return f
}

func newController(t *testing.T, transpiler tools.Tool, validator tools.Tool, cfg Config) *Controller {
	t.Helper()
	reg := tools.NewRegistry()
	if transpiler != nil {
		if err := reg.Register(transpiler); err != nil {
			t.Fatalf("register transpiler: %v", err)
		}
	}
	if validator != nil {
		if err := reg.Register(validator); err != nil {
			t.Fatalf("register validator: %v", err)
		}
	}
	if cfg.Transpiler.ID == "" {
		cfg.Transpiler.ID = fakeTranspilerID
	}
	if cfg.Validator.ID == "" {
		cfg.Validator.ID = jsoncheck.ToolID
	}
	return NewController(reg, cfg)
}

func TestRunValidSpreadsheetValidates(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)
	c := newController(t, fakeTranspiler(validDatapack, 0), jsoncheck.Tool(), Config{})

	res := c.Run(t.Context(), Request{InputPath: f.input, OutputPath: f.output, SchemaPath: f.schemapack})
	if !res.Success {
		t.Fatalf("expected transpile success: %q", res.ErrorMessage)
	}
	if res.JSONOutput == nil || *res.JSONOutput != validDatapack {
		t.Fatalf("unexpected json output: %v", res.JSONOutput)
	}
	if !res.Validated() {
		t.Fatalf("expected validation success, stderr=%v", res.ValidationStderr)
	}
	if res.ValidationStdout == nil || !strings.Contains(*res.ValidationStdout, "Validation successful.") {
		t.Fatalf("unexpected validation stdout: %v", res.ValidationStdout)
	}
	want := []State{StateAwaitingTranspile, StateAwaitingValidate, StateDone}
	if !slices.Equal(res.States, want) {
		t.Fatalf("unexpected states: %v", res.States)
	}
	if res.RunID == "" {
		t.Fatalf("expected run id")
	}
}

func TestRunAbruptTranspilerExit(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)
	c := newController(t, fakeTranspiler("", 3), jsoncheck.Tool(), Config{})

	res := c.Run(t.Context(), Request{InputPath: f.input, OutputPath: f.output, SchemaPath: f.schemapack})
	if res.Success {
		t.Fatalf("expected failure")
	}
	if res.JSONOutput != nil {
		t.Fatalf("expected nil json output, got %q", *res.JSONOutput)
	}
	if !strings.Contains(res.ErrorMessage, "3") || !strings.Contains(res.ErrorMessage, "malformed") {
		t.Fatalf("unexpected error message: %q", res.ErrorMessage)
	}
	if res.ValidationSuccess != nil || res.ValidationStdout != nil || res.ValidationStderr != nil || res.Validate != nil {
		t.Fatalf("validation must not run: %+v", res)
	}
	if !errors.Is(res.Transpile.Err, outcome.ErrAbruptTermination) {
		t.Fatalf("unexpected error kind: %v", res.Transpile.Err)
	}
}

func TestRunSchemaViolation(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)
	c := newController(t, fakeTranspiler(invalidDatapack, 0), jsoncheck.Tool(), Config{})

	res := c.Run(t.Context(), Request{InputPath: f.input, OutputPath: f.output, SchemaPath: f.schemapack})
	if !res.Success {
		t.Fatalf("transpile should succeed: %q", res.ErrorMessage)
	}
	if res.ValidationSuccess == nil || *res.ValidationSuccess {
		t.Fatalf("expected validation failure")
	}
	if res.ValidationStderr == nil || !strings.Contains(*res.ValidationStderr, "Spreadsheet") {
		t.Fatalf("unexpected validation stderr: %v", res.ValidationStderr)
	}
}

func TestRunBlankOutputSkipsValidation(t *testing.T) {
	testlog.Start(t)
	for _, body := range []string{"", "   ", "\n\t\n"} {
		f := newFixture(t)
		validator := &recordingTool{meta: tools.Metadata{ID: "tool.recorder", Name: "recorder"}}
		c := newController(t, fakeTranspiler(body, 0), validator, Config{Validator: ToolSpec{ID: "tool.recorder"}})

		res := c.Run(t.Context(), Request{InputPath: f.input, OutputPath: f.output, SchemaPath: f.schemapack})
		if res.Success {
			t.Fatalf("blank output %q must not succeed", body)
		}
		if res.JSONOutput != nil {
			t.Fatalf("blank output %q must not be returned", body)
		}
		if len(validator.calls) != 0 {
			t.Fatalf("validator ran for blank output %q", body)
		}
		if res.ValidationSuccess != nil {
			t.Fatalf("unexpected validation fields for %q", body)
		}

		encoded, err := json.Marshal(res)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if strings.Contains(string(encoded), "validation_") {
			t.Fatalf("validation fields leaked: %s", encoded)
		}
	}
}

func TestRunMissingOutputFile(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)
	transpiler := &recordingTool{
		meta: tools.Metadata{ID: fakeTranspilerID, Name: "fake transpiler"},
		raw:  tools.Ok(tools.Streams{Error: "nothing to convert"}),
	}
	c := newController(t, transpiler, jsoncheck.Tool(), Config{})

	res := c.Run(t.Context(), Request{InputPath: f.input, OutputPath: f.output, SchemaPath: f.schemapack})
	if res.Success || res.JSONOutput != nil {
		t.Fatalf("expected failure with nil output: %+v", res)
	}
	if !strings.Contains(res.ErrorMessage, "not found") || !strings.Contains(res.ErrorMessage, "nothing to convert") {
		t.Fatalf("unexpected error message: %q", res.ErrorMessage)
	}
}

func TestRunUnregisteredTranspiler(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)
	c := newController(t, nil, jsoncheck.Tool(), Config{})

	res := c.Run(t.Context(), Request{InputPath: f.input, OutputPath: f.output, SchemaPath: f.schemapack})
	if res.Success {
		t.Fatalf("expected failure")
	}
	if !errors.Is(res.Transpile.Err, outcome.ErrToolUnavailable) {
		t.Fatalf("unexpected error: %v", res.Transpile.Err)
	}
	if !strings.Contains(res.ErrorMessage, fakeTranspilerID) {
		t.Fatalf("unexpected error message: %q", res.ErrorMessage)
	}
}

func TestRunPassesConventionalArgv(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)
	validator := &recordingTool{
		meta: tools.Metadata{ID: "tool.recorder", Name: "recorder"},
		raw:  tools.Exited(0, tools.Streams{Info: "ok"}),
	}
	c := newController(t, fakeTranspiler(validDatapack, 0), validator, Config{
		Validator: ToolSpec{ID: "tool.recorder", Argv0: "schemapack"},
	})

	res := c.Run(t.Context(), Request{InputPath: f.input, OutputPath: f.output, SchemaPath: f.schemapack})
	if !res.Validated() {
		t.Fatalf("expected validation success: %+v", res)
	}
	want := []string{"schemapack", "validate", "--schemapack", f.schemapack, "--datapack", f.output}
	if len(validator.calls) != 1 || !slices.Equal(validator.calls[0], want) {
		t.Fatalf("unexpected validator argv: %v", validator.calls)
	}
}

func TestRunGeneratedOutputIsRemoved(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)
	outDir := t.TempDir()
	c := newController(t, fakeTranspiler(validDatapack, 0), jsoncheck.Tool(), Config{OutputDir: outDir})

	res := c.Run(t.Context(), Request{InputPath: f.input, SchemaPath: f.schemapack})
	if !res.Success || !res.Validated() {
		t.Fatalf("expected success: %+v", res)
	}
	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("generated output left behind: %v", entries)
	}
}

func TestRunGeneratedOutputKept(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)
	outDir := t.TempDir()
	c := newController(t, fakeTranspiler(validDatapack, 0), jsoncheck.Tool(), Config{OutputDir: outDir, KeepOutput: true})

	res := c.Run(t.Context(), Request{InputPath: f.input, SchemaPath: f.schemapack})
	if !res.Success {
		t.Fatalf("expected success: %q", res.ErrorMessage)
	}
	kept := filepath.Join(outDir, "transpilectl-"+res.RunID+".json")
	if _, err := os.Stat(kept); err != nil {
		t.Fatalf("expected kept output: %v", err)
	}
}

func TestRunTranspileAndValidateStandalone(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)
	c := newController(t, fakeTranspiler(validDatapack, 0), jsoncheck.Tool(), Config{})

	tr := c.RunTranspile(t.Context(), f.input, f.output)
	if !tr.Success || tr.JSONOutput == nil || *tr.JSONOutput != validDatapack {
		t.Fatalf("unexpected transpile result: %+v", tr)
	}

	vr := c.RunValidate(t.Context(), f.schemapack, f.output)
	if !vr.Success || !strings.Contains(vr.Output, "Validation successful.") {
		t.Fatalf("unexpected validate result: %+v", vr)
	}

	missing := c.RunValidate(t.Context(), f.schemapack, filepath.Join(f.dir, "missing.json"))
	if missing.Success || missing.ErrorMessage == "" {
		t.Fatalf("expected failure for missing datapack: %+v", missing)
	}
}

func TestArgvBuilders(t *testing.T) {
	testlog.Start(t)
	if got := TranspileArgv("ghga-transpiler", "in.xlsx", "out.json"); !slices.Equal(got, []string{"ghga-transpiler", "in.xlsx", "out.json"}) {
		t.Fatalf("unexpected transpile argv: %v", got)
	}
	got := ValidateArgv("schemapack", "s.yaml", "d.json")
	want := []string{"schemapack", "validate", "--schemapack", "s.yaml", "--datapack", "d.json"}
	if !slices.Equal(got, want) {
		t.Fatalf("unexpected validate argv: %v", got)
	}
}

func TestRunValidatorCleanExitIgnoresErrorWording(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)
	validator := &recordingTool{
		meta: tools.Metadata{ID: "tool.recorder", Name: "recorder"},
		raw: tools.Exited(0, tools.Streams{
			Info:  "Validation successful.",
			Error: "DeprecationError: --schemapack will be renamed",
		}),
	}
	c := newController(t, fakeTranspiler(validDatapack, 0), validator, Config{Validator: ToolSpec{ID: "tool.recorder"}})

	res := c.Run(t.Context(), Request{InputPath: f.input, OutputPath: f.output, SchemaPath: f.schemapack})
	if !res.Validated() {
		t.Fatalf("exit 0 must validate regardless of stderr wording: %+v", res)
	}
	if res.ValidationStderr == nil || !strings.Contains(*res.ValidationStderr, "DeprecationError") {
		t.Fatalf("stderr must still be reported: %v", res.ValidationStderr)
	}
}
