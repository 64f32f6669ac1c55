// Package hclconfig loads optional run configuration from an HCL file.
//
// Every option mirrors a CLI flag; flags given explicitly on the command
// line win over file values. The file may reference environment variables
// through the env map, e.g. output_dir = "${env.SCRATCH}/defaced".
package hclconfig

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// RunConfig is the decoded run block of a configuration file.
type RunConfig struct {
	OutputDir          *string  `hcl:"output_dir,optional"`
	DefacedDir         *string  `hcl:"defaced_dir,optional"`
	Placement          *string  `hcl:"placement,optional"`
	AnatOnly           *bool    `hcl:"anat_only,optional"`
	AnatDefault        *string  `hcl:"anat_default,optional"`
	ParticipantLabel   []string `hcl:"participant_label,optional"`
	ParticipantExclude []string `hcl:"participant_label_exclude,optional"`
	SessionLabel       []string `hcl:"session_label,optional"`
	SessionExclude     []string `hcl:"session_label_exclude,optional"`
	NProcs             *int     `hcl:"n_procs,optional"`
	SkipValidator      *bool    `hcl:"skip_bids_validator,optional"`
	PreviewPics        *bool    `hcl:"preview_pics,optional"`
}

// file is the top-level HCL document shape.
type file struct {
	Run *RunConfig `hcl:"run,block"`
}

// evalContext exposes the process environment to expressions in the file.
func evalContext() *hcl.EvalContext {
	env := map[string]cty.Value{}
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		env[key] = cty.StringVal(value)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(env),
		},
	}
}

// Load parses and decodes the configuration file at path.
func Load(path string) (*RunConfig, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing config file %s: %w", path, diags)
	}

	var doc file
	if diags := gohcl.DecodeBody(hclFile.Body, evalContext(), &doc); diags.HasErrors() {
		return nil, fmt.Errorf("decoding config file %s: %w", path, diags)
	}
	if doc.Run == nil {
		return nil, fmt.Errorf("config file %s has no run block", path)
	}
	return doc.Run, nil
}
