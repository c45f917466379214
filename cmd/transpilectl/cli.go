package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/danmuck/transpilectl/internal/config"
	"github.com/danmuck/transpilectl/internal/jsoncheck"
	"github.com/danmuck/transpilectl/internal/logging"
	"github.com/danmuck/transpilectl/internal/observability"
	"github.com/danmuck/transpilectl/internal/pipeline"
	"github.com/danmuck/transpilectl/internal/tools"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath = "TRANSPILECTL_CONFIG"

	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

var errUsage = errors.New("usage error")

// globalOptions are the flags accepted by every subcommand.
type globalOptions struct {
	configPath string
	format     string
}

func usage(w io.Writer) {
	fmt.Fprint(w, `Usage: transpilectl <command> [flags]

Commands:
  run        -input <xlsx> [-output <json>] [-schemapack <yaml>]
  transpile  -input <xlsx> [-output <json>]
  validate   -datapack <json> [-schemapack <yaml>]
  config     init [-output <path>] [-force] | check [-config <path>]
  tools      list registered tools

Every command accepts -config <path> (or $TRANSPILECTL_CONFIG) and
-format json|yaml.
`)
}

// run executes one CLI invocation and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}

	var err error
	code := exitOK
	switch args[0] {
	case "run":
		code, err = runPipeline(args[1:], stdout, stderr)
	case "transpile":
		code, err = runTranspile(args[1:], stdout, stderr)
	case "validate":
		code, err = runValidate(args[1:], stdout, stderr)
	case "config":
		code, err = runConfig(args[1:], stdout, stderr)
	case "tools":
		code, err = runTools(args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		usage(stdout)
		return exitOK
	default:
		err = fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}

	switch {
	case err == nil:
		return code
	case errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "transpilectl: %v\n", err)
		return exitUsage
	default:
		fmt.Fprintf(stderr, "transpilectl: %v\n", err)
		return code
	}
}

func newFlagSet(name string, stderr io.Writer, opts *globalOptions) *flag.FlagSet {
	fs := flag.NewFlagSet("transpilectl "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", os.Getenv(EnvConfigPath), "config path (TOML)")
	fs.StringVar(&opts.format, "format", "json", "result format: json|yaml")
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected arguments %v", errUsage, fs.Args())
	}
	return nil
}

func runPipeline(args []string, stdout, stderr io.Writer) (int, error) {
	var opts globalOptions
	fs := newFlagSet("run", stderr, &opts)
	input := fs.String("input", "", "spreadsheet to transpile")
	output := fs.String("output", "", "output JSON path (default: generated per run)")
	schema := fs.String("schemapack", "", "schemapack definition (default from config)")
	if err := parseFlags(fs, args); err != nil {
		return exitUsage, err
	}
	if strings.TrimSpace(*input) == "" {
		return exitUsage, fmt.Errorf("%w: -input is required", errUsage)
	}

	env, err := setup(opts)
	if err != nil {
		return exitUsage, err
	}
	defer env.close()

	schemaPath := firstNonEmpty(*schema, env.cfg.Schemapack)
	if schemaPath == "" {
		return exitUsage, fmt.Errorf("%w: -schemapack is required when [validator] schemapack is not configured", errUsage)
	}

	res := env.controller.Run(context.Background(), pipeline.Request{
		InputPath:  *input,
		OutputPath: *output,
		SchemaPath: schemaPath,
	})
	if err := encode(stdout, opts.format, res); err != nil {
		return exitFailure, err
	}
	if !res.Success || (res.ValidationSuccess != nil && !*res.ValidationSuccess) {
		return exitFailure, nil
	}
	return exitOK, nil
}

func runTranspile(args []string, stdout, stderr io.Writer) (int, error) {
	var opts globalOptions
	fs := newFlagSet("transpile", stderr, &opts)
	input := fs.String("input", "", "spreadsheet to transpile")
	output := fs.String("output", "", "output JSON path (default: generated per run)")
	if err := parseFlags(fs, args); err != nil {
		return exitUsage, err
	}
	if strings.TrimSpace(*input) == "" {
		return exitUsage, fmt.Errorf("%w: -input is required", errUsage)
	}

	env, err := setup(opts)
	if err != nil {
		return exitUsage, err
	}
	defer env.close()

	res := env.controller.RunTranspile(context.Background(), *input, *output)
	if err := encode(stdout, opts.format, res); err != nil {
		return exitFailure, err
	}
	if !res.Success {
		return exitFailure, nil
	}
	return exitOK, nil
}

func runValidate(args []string, stdout, stderr io.Writer) (int, error) {
	var opts globalOptions
	fs := newFlagSet("validate", stderr, &opts)
	data := fs.String("datapack", "", "datapack JSON to validate")
	schema := fs.String("schemapack", "", "schemapack definition (default from config)")
	if err := parseFlags(fs, args); err != nil {
		return exitUsage, err
	}
	if strings.TrimSpace(*data) == "" {
		return exitUsage, fmt.Errorf("%w: -datapack is required", errUsage)
	}

	env, err := setup(opts)
	if err != nil {
		return exitUsage, err
	}
	defer env.close()

	schemaPath := firstNonEmpty(*schema, env.cfg.Schemapack)
	if schemaPath == "" {
		return exitUsage, fmt.Errorf("%w: -schemapack is required when [validator] schemapack is not configured", errUsage)
	}

	res := env.controller.RunValidate(context.Background(), schemaPath, *data)
	if err := encode(stdout, opts.format, res); err != nil {
		return exitFailure, err
	}
	if !res.Success {
		return exitFailure, nil
	}
	return exitOK, nil
}

func runConfig(args []string, stdout, stderr io.Writer) (int, error) {
	if len(args) == 0 {
		return exitUsage, fmt.Errorf("%w: config requires init or check", errUsage)
	}

	switch args[0] {
	case "init":
		fs := flag.NewFlagSet("transpilectl config init", flag.ContinueOnError)
		fs.SetOutput(stderr)
		output := fs.String("output", "transpilectl.toml", "output path for config template")
		force := fs.Bool("force", false, "overwrite existing config file")
		if err := parseFlags(fs, args[1:]); err != nil {
			return exitUsage, err
		}
		if err := config.WriteTemplate(*output, *force); err != nil {
			return exitFailure, err
		}
		fmt.Fprintf(stdout, "Wrote config template to %s\n", *output)
		return exitOK, nil

	case "check":
		var opts globalOptions
		fs := newFlagSet("config check", stderr, &opts)
		if err := parseFlags(fs, args[1:]); err != nil {
			return exitUsage, err
		}
		if strings.TrimSpace(opts.configPath) == "" {
			return exitUsage, fmt.Errorf("%w: -config is required", errUsage)
		}
		if _, err := config.Load(opts.configPath); err != nil {
			return exitFailure, err
		}
		fmt.Fprintf(stdout, "Validated config at %s\n", opts.configPath)
		return exitOK, nil

	default:
		return exitUsage, fmt.Errorf("%w: unknown config command %q", errUsage, args[0])
	}
}

func runTools(args []string, stdout, stderr io.Writer) (int, error) {
	var opts globalOptions
	fs := newFlagSet("tools", stderr, &opts)
	if err := parseFlags(fs, args); err != nil {
		return exitUsage, err
	}
	if err := checkFormat(opts.format); err != nil {
		return exitUsage, err
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return exitUsage, err
	}
	reg, err := buildRegistry(cfg)
	if err != nil {
		return exitFailure, err
	}
	if err := encode(stdout, opts.format, reg.List()); err != nil {
		return exitFailure, err
	}
	return exitOK, nil
}

// runtimeEnv is the per-invocation wiring shared by the pipeline commands.
type runtimeEnv struct {
	cfg        config.Config
	controller *pipeline.Controller
	closers    []func()
}

func setup(opts globalOptions) (*runtimeEnv, error) {
	if err := checkFormat(opts.format); err != nil {
		return nil, err
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if lvl, ok := logging.ParseLevel(cfg.LogLevel); ok && os.Getenv(logging.EnvLogLevel) == "" {
		logging.SetLevel(lvl)
	}

	reg, err := buildRegistry(cfg)
	if err != nil {
		return nil, err
	}

	env := &runtimeEnv{cfg: cfg}
	if cfg.Observability.Trace {
		shutdown, err := observability.InitTracer("transpilectl", os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		env.closers = append(env.closers, func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warn().Err(err).Msg("transpilectl tracer shutdown failed")
			}
		})
	}
	if path := cfg.Observability.MetricsTextfile; path != "" {
		observability.RegisterMetrics()
		env.closers = append(env.closers, func() {
			if err := observability.WriteTextfile(path); err != nil {
				log.Warn().Err(err).Str("path", path).Msg("transpilectl metrics textfile write failed")
			}
		})
	}

	env.controller = pipeline.NewController(reg, pipeline.Config{
		Transpiler: pipeline.ToolSpec{ID: cfg.Transpiler.ID, Argv0: cfg.Transpiler.Argv0},
		Validator:  pipeline.ToolSpec{ID: cfg.Validator.ID, Argv0: cfg.Validator.Argv0},
		OutputDir:  cfg.Output.Dir,
		KeepOutput: cfg.Output.Keep,
	})
	log.Debug().
		Str("config", opts.configPath).
		Str("transpiler", cfg.Transpiler.ID).
		Str("validator", cfg.Validator.ID).
		Msg("transpilectl setup")
	return env, nil
}

func (e *runtimeEnv) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// buildRegistry registers the built-in checker and one exec adapter per
// configured tool id that is not built in.
func buildRegistry(cfg config.Config) (*tools.Registry, error) {
	reg := tools.NewRegistry()
	if err := reg.Register(jsoncheck.Tool()); err != nil {
		return nil, err
	}
	for _, tc := range []config.ToolConfig{cfg.Transpiler, cfg.Validator} {
		if reg.Has(tc.ID) {
			continue
		}
		tool := tools.ExecTool{
			Meta: tools.Metadata{
				ID:          tc.ID,
				Name:        tc.Argv0,
				Description: "exec " + firstNonEmpty(tc.Command, tc.Argv0),
			},
			Path: tc.Command,
			Dir:  tc.Dir,
			Env:  tc.Env,
		}
		if err := reg.Register(tool); err != nil {
			return nil, fmt.Errorf("register %s: %w", tc.ID, err)
		}
	}
	return reg, nil
}

func checkFormat(format string) error {
	switch format {
	case "json", "yaml":
		return nil
	default:
		return fmt.Errorf("%w: unknown format %q (supported: json, yaml)", errUsage, format)
	}
}

func encode(w io.Writer, format string, v any) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
