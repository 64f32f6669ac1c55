// Package validate checks a dataset for the structural and metadata
// properties the defacing pipeline depends on.
//
// Validation runs before any processing and reports a structured list of
// issues, each naming the offending file, rather than a bare pass/fail.
package validate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/openneuropet/petdeface/internal/bids"
)

// Issue is one problem found in the dataset.
type Issue struct {
	// Code is a stable machine-readable identifier.
	Code string
	// Path names the file or directory the issue concerns.
	Path string
	// Message explains the problem.
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s: %s", i.Code, i.Path, i.Message)
}

// Error wraps a non-empty issue list into a single validation failure.
type Error struct {
	Issues []Issue
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("dataset validation found %d issue(s):", len(e.Issues))
	for _, issue := range e.Issues {
		msg += "\n  " + issue.String()
	}
	return msg
}

// descriptionSchema constrains the dataset_description.json record.
var descriptionSchema = &jsonschema.Schema{
	Type:     "object",
	Required: []string{"Name", "BIDSVersion"},
	Properties: map[string]*jsonschema.Schema{
		"Name":        {Type: "string"},
		"BIDSVersion": {Type: "string"},
	},
}

// petSidecarSchema constrains the frame-timing metadata the weighted
// average needs from every PET sidecar.
var petSidecarSchema = &jsonschema.Schema{
	Type:     "object",
	Required: []string{"FrameTimesStart", "FrameDuration"},
	Properties: map[string]*jsonschema.Schema{
		"FrameTimesStart": {Type: "array", Items: &jsonschema.Schema{Type: "number"}},
		"FrameDuration":   {Type: "array", Items: &jsonschema.Schema{Type: "number"}},
	},
}

// validateJSON checks the JSON document at path against schema and appends
// any problems to issues.
func validateJSON(path string, schema *jsonschema.Schema, issues []Issue) []Issue {
	raw, err := os.ReadFile(path)
	if err != nil {
		return append(issues, Issue{Code: "MISSING_FILE", Path: path, Message: err.Error()})
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return append(issues, Issue{Code: "INVALID_JSON", Path: path, Message: err.Error()})
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return append(issues, Issue{Code: "SCHEMA_ERROR", Path: path, Message: err.Error()})
	}
	if err := resolved.Validate(doc); err != nil {
		return append(issues, Issue{Code: "SCHEMA_VIOLATION", Path: path, Message: err.Error()})
	}
	return issues
}

// Dataset inspects the dataset rooted at root and returns every issue
// found. An empty slice means the dataset is acceptable.
func Dataset(root string) []Issue {
	var issues []Issue

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return append(issues, Issue{Code: "NO_DATASET", Path: root, Message: "dataset directory does not exist"})
	}

	descPath := filepath.Join(root, "dataset_description.json")
	if _, err := os.Stat(descPath); err != nil {
		issues = append(issues, Issue{Code: "MISSING_DESCRIPTION", Path: descPath,
			Message: "dataset_description.json is required at the dataset root"})
	} else {
		issues = validateJSON(descPath, descriptionSchema, issues)
	}

	layout, err := bids.Index(root)
	if err != nil {
		return append(issues, Issue{Code: "INDEX_FAILED", Path: root, Message: err.Error()})
	}
	if len(layout.Subjects()) == 0 {
		issues = append(issues, Issue{Code: "NO_SUBJECTS", Path: root,
			Message: "no sub-* directories found"})
	}

	for _, subject := range layout.Subjects() {
		for _, petFile := range layout.PET(subject) {
			sidecar := layout.Sidecar(petFile)
			if sidecar == "" {
				issues = append(issues, Issue{Code: "MISSING_PET_SIDECAR", Path: petFile.Path,
					Message: "PET image has no JSON sidecar with frame timing"})
				continue
			}
			issues = validateJSON(sidecar, petSidecarSchema, issues)
		}
	}

	return issues
}

// DatasetErr runs Dataset and wraps any issues into an error.
func DatasetErr(root string) error {
	if issues := Dataset(root); len(issues) > 0 {
		return &Error{Issues: issues}
	}
	return nil
}
