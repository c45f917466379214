package config

import (
	"fmt"
	"os"
)

func Template() string {
	return pipelineTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(pipelineTemplate), 0o600)
}

const pipelineTemplate = `log_level = "info"

[transpiler]
id = "tool.transpiler"
command = "ghga-transpiler"
argv0 = "ghga-transpiler"

[validator]
# "tool.jsoncheck" runs the built-in structural checker in-process.
id = "tool.schemapack"
command = "schemapack"
argv0 = "schemapack"
schemapack = "schemas/ghga_metadata_schema.schemapack.yaml"

[output]
dir = ""
keep = false

[observability]
metrics_textfile = ""
trace = false
`
