package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultTranspilerID = "tool.transpiler"
	DefaultValidatorID  = "tool.schemapack"
)

// Config is the resolved runtime configuration of transpilectl.
type Config struct {
	Transpiler    ToolConfig
	Validator     ToolConfig
	Schemapack    string
	Output        OutputConfig
	Observability ObservabilityConfig
	LogLevel      string
}

// ToolConfig selects and describes one external tool.
type ToolConfig struct {
	// ID is the registry id of the adapter to use.
	ID string
	// Command is the executable; empty means Argv0 is looked up on PATH.
	Command string
	// Argv0 is the tool name placed at the head of the argument vector.
	Argv0 string
	Dir   string
	Env   []string
}

type OutputConfig struct {
	// Dir receives generated output files when no output path is given.
	Dir string
	// Keep leaves generated output files in place after the run.
	Keep bool
}

type ObservabilityConfig struct {
	MetricsTextfile string
	Trace           bool
}

type fileConfig struct {
	LogLevel      string            `toml:"log_level"`
	Transpiler    fileTool          `toml:"transpiler"`
	Validator     fileValidator     `toml:"validator"`
	Output        fileOutput        `toml:"output"`
	Observability fileObservability `toml:"observability"`
}

type fileTool struct {
	ID      string   `toml:"id"`
	Command string   `toml:"command"`
	Argv0   string   `toml:"argv0"`
	Dir     string   `toml:"dir"`
	Env     []string `toml:"env"`
}

type fileValidator struct {
	ID         string   `toml:"id"`
	Command    string   `toml:"command"`
	Argv0      string   `toml:"argv0"`
	Dir        string   `toml:"dir"`
	Env        []string `toml:"env"`
	Schemapack string   `toml:"schemapack"`
}

type fileOutput struct {
	Dir  string `toml:"dir"`
	Keep bool   `toml:"keep"`
}

type fileObservability struct {
	MetricsTextfile string `toml:"metrics_textfile"`
	Trace           bool   `toml:"trace"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Transpiler: ToolConfig{
			ID:      DefaultTranspilerID,
			Command: "ghga-transpiler",
			Argv0:   "ghga-transpiler",
		},
		Validator: ToolConfig{
			ID:      DefaultValidatorID,
			Command: "schemapack",
			Argv0:   "schemapack",
		},
	}
}

// Load reads path over the defaults. An empty path returns Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("config parse failed (%s): unknown keys %s", path, strings.Join(keys, ", "))
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	applyTool(&cfg.Transpiler, meta, "transpiler", raw.Transpiler)
	applyTool(&cfg.Validator, meta, "validator", fileTool{
		ID:      raw.Validator.ID,
		Command: raw.Validator.Command,
		Argv0:   raw.Validator.Argv0,
		Dir:     raw.Validator.Dir,
		Env:     raw.Validator.Env,
	})
	if meta.IsDefined("validator", "schemapack") {
		cfg.Schemapack = strings.TrimSpace(raw.Validator.Schemapack)
	}

	if meta.IsDefined("output", "dir") {
		cfg.Output.Dir = strings.TrimSpace(raw.Output.Dir)
	}
	if meta.IsDefined("output", "keep") {
		cfg.Output.Keep = raw.Output.Keep
	}

	if meta.IsDefined("observability", "metrics_textfile") {
		cfg.Observability.MetricsTextfile = strings.TrimSpace(raw.Observability.MetricsTextfile)
	}
	if meta.IsDefined("observability", "trace") {
		cfg.Observability.Trace = raw.Observability.Trace
	}

	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func applyTool(dst *ToolConfig, meta toml.MetaData, section string, raw fileTool) {
	if meta.IsDefined(section, "id") {
		dst.ID = strings.TrimSpace(raw.ID)
	}
	if meta.IsDefined(section, "command") {
		dst.Command = strings.TrimSpace(raw.Command)
	}
	if meta.IsDefined(section, "argv0") {
		dst.Argv0 = strings.TrimSpace(raw.Argv0)
	}
	if meta.IsDefined(section, "dir") {
		dst.Dir = strings.TrimSpace(raw.Dir)
	}
	if meta.IsDefined(section, "env") {
		dst.Env = normalizeList(raw.Env)
	}
}

// Validate checks the fields every run depends on.
func Validate(cfg Config) error {
	if err := validateTool("transpiler", cfg.Transpiler); err != nil {
		return err
	}
	if err := validateTool("validator", cfg.Validator); err != nil {
		return err
	}
	for _, kv := range append(append([]string{}, cfg.Transpiler.Env...), cfg.Validator.Env...) {
		if !strings.Contains(kv, "=") {
			return fmt.Errorf("env entry %q is not KEY=VALUE", kv)
		}
	}
	return nil
}

func validateTool(section string, tool ToolConfig) error {
	if strings.TrimSpace(tool.ID) == "" {
		return fmt.Errorf("%s config missing id", section)
	}
	if strings.TrimSpace(tool.Argv0) == "" {
		return fmt.Errorf("%s config missing argv0", section)
	}
	return nil
}

func normalizeList(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(in))
	for _, item := range in {
		v := strings.TrimSpace(item)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
