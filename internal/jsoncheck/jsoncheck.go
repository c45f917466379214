// Package jsoncheck is a small built-in datapack checker written as a
// standalone command. It runs in-process under tools.InProcessTool and is
// used when the schemapack executable is not installed.
//
// It checks structure only: the datapack must be a JSON object whose
// resource classes are all declared by the schemapack. Property-level rules
// are left to schemapack.
package jsoncheck

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/danmuck/transpilectl/internal/tools"
	"gopkg.in/yaml.v3"
)

const (
	ToolID   = "tool.jsoncheck"
	ToolName = "jsoncheck"

	exitInvalid = 1
	exitUsage   = 2
)

// SchemaPack is the part of a schemapack definition the checker reads.
type SchemaPack struct {
	Version   string               `yaml:"schemapack"`
	RootClass string               `yaml:"rootClass"`
	Classes   map[string]yaml.Node `yaml:"classes"`
}

// DataPack is the part of a datapack the checker reads.
type DataPack struct {
	Version   string                                `json:"datapack"`
	Resources map[string]map[string]json.RawMessage `json:"resources"`
}

// Tool returns the in-process adapter for the checker.
func Tool() tools.InProcessTool {
	return tools.NewInProcessTool(tools.Metadata{
		ID:          ToolID,
		Name:        ToolName,
		Description: "built-in structural datapack checker",
	}, Main)
}

// Main is the command entry point:
//
//	jsoncheck validate --schemapack <path> --datapack <path>
func Main() error {
	args := os.Args
	if len(args) < 2 || args[1] != "validate" {
		usage(os.Stderr)
		tools.Exit(exitUsage)
		return nil
	}

	fs := flag.NewFlagSet(ToolName+" validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	schemaPath := fs.String("schemapack", "", "schemapack definition (YAML or JSON)")
	dataPath := fs.String("datapack", "", "datapack to check (JSON)")
	if err := fs.Parse(args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			tools.Exit(0)
		}
		tools.Exit(exitUsage)
	}
	if *schemaPath == "" || *dataPath == "" {
		fmt.Fprintln(os.Stderr, "Usage error: --schemapack and --datapack are required")
		tools.Exit(exitUsage)
	}

	schema, err := LoadSchemaPack(*schemaPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "SchemaPackError: %v\n", err)
		tools.Exit(exitUsage)
	}
	data, err := LoadDataPack(*dataPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ValidationError: %v\n", err)
		tools.Exit(exitInvalid)
	}

	if problems := Check(schema, data); len(problems) > 0 {
		for _, p := range problems {
			fmt.Fprintf(os.Stderr, "ValidationError: %s\n", p)
		}
		tools.Exit(exitInvalid)
	}

	fmt.Fprintln(os.Stdout, "Validation successful.")
	return nil
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s validate --schemapack <path> --datapack <path>\n", ToolName)
}

// LoadSchemaPack reads a schemapack definition. JSON input is accepted since
// it is valid YAML.
func LoadSchemaPack(path string) (SchemaPack, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return SchemaPack{}, fmt.Errorf("read schemapack: %w", err)
	}
	var pack SchemaPack
	if err := yaml.Unmarshal(raw, &pack); err != nil {
		return SchemaPack{}, fmt.Errorf("parse schemapack %s: %w", path, err)
	}
	if len(pack.Classes) == 0 {
		return SchemaPack{}, fmt.Errorf("schemapack %s declares no classes", path)
	}
	return pack, nil
}

// LoadDataPack reads a datapack document.
func LoadDataPack(path string) (DataPack, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return DataPack{}, fmt.Errorf("read datapack: %w", err)
	}
	var pack DataPack
	if err := json.Unmarshal(raw, &pack); err != nil {
		return DataPack{}, fmt.Errorf("datapack %s is not a valid JSON datapack: %w", path, err)
	}
	return pack, nil
}

// Check returns one line per structural problem, in deterministic order.
func Check(schema SchemaPack, data DataPack) []string {
	var problems []string
	if data.Resources == nil {
		problems = append(problems, "datapack has no resources object")
	}

	classes := make([]string, 0, len(data.Resources))
	for class := range data.Resources {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	for _, class := range classes {
		if _, ok := schema.Classes[class]; !ok {
			problems = append(problems, fmt.Sprintf("resource class %q is not defined in the schemapack", class))
			continue
		}
		ids := make([]string, 0, len(data.Resources[class]))
		for id := range data.Resources[class] {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			body := strings.TrimSpace(string(data.Resources[class][id]))
			if !strings.HasPrefix(body, "{") {
				problems = append(problems, fmt.Sprintf("resource %s/%s is not an object", class, id))
			}
		}
	}

	root := strings.TrimSpace(schema.RootClass)
	if root != "" {
		if _, ok := schema.Classes[root]; !ok {
			problems = append(problems, fmt.Sprintf("root class %q is not defined in the schemapack", root))
		}
	}
	return problems
}
