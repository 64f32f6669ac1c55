package bids

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Entities holds the key-value pairs encoded in a BIDS filename, plus the
// trailing suffix and extension. Zero-valued fields mean the entity is not
// present in the name.
type Entities struct {
	Subject string // sub-<label>
	Session string // ses-<label>
	Tracer  string // trc-<label>
	Acq     string // acq-<label>
	Ce      string // ce-<label>
	Rec     string // rec-<label>
	Dir     string // dir-<label>
	Run     string // run-<index>
	Desc    string // desc-<label>
	Suffix  string // e.g. T1w, pet
	Ext     string // e.g. .nii.gz, .json
}

// knownExtensions are matched longest-first so ".nii.gz" wins over ".gz".
var knownExtensions = []string{".nii.gz", ".nii", ".json", ".lta", ".tsv", ".mgz"}

// SplitExtension splits a filename into its stem and its imaging extension,
// treating multi-part extensions like ".nii.gz" as a single unit.
func SplitExtension(name string) (stem, ext string) {
	for _, e := range knownExtensions {
		if strings.HasSuffix(name, e) {
			return strings.TrimSuffix(name, e), e
		}
	}
	ext = filepath.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}

// ParseEntities extracts the BIDS entities from a file path. Unknown
// key-value pairs are ignored rather than rejected, since derivative
// pipelines routinely invent new keys.
func ParseEntities(path string) Entities {
	stem, ext := SplitExtension(filepath.Base(path))
	ent := Entities{Ext: ext}

	tokens := strings.Split(stem, "_")
	for i, token := range tokens {
		key, value, found := strings.Cut(token, "-")
		if !found {
			// A bare token is only a suffix when it terminates the name.
			if i == len(tokens)-1 {
				ent.Suffix = token
			}
			continue
		}
		switch key {
		case "sub":
			ent.Subject = value
		case "ses":
			ent.Session = value
		case "trc":
			ent.Tracer = value
		case "acq":
			ent.Acq = value
		case "ce":
			ent.Ce = value
		case "rec":
			ent.Rec = value
		case "dir":
			ent.Dir = value
		case "run":
			ent.Run = value
		case "desc":
			ent.Desc = value
		}
	}
	return ent
}

// Key returns a deterministic dotted identifier built from the distinguishing
// acquisition entities. Two distinct files belonging to the same subject
// always yield distinct keys because every entity that can differ between
// them participates.
func (e Entities) Key() string {
	parts := []string{"sub-" + e.Subject}
	if e.Session != "" {
		parts = append(parts, "ses-"+e.Session)
	}
	if e.Tracer != "" {
		parts = append(parts, "trc-"+e.Tracer)
	}
	if e.Acq != "" {
		parts = append(parts, "acq-"+e.Acq)
	}
	if e.Ce != "" {
		parts = append(parts, "ce-"+e.Ce)
	}
	if e.Rec != "" {
		parts = append(parts, "rec-"+e.Rec)
	}
	if e.Dir != "" {
		parts = append(parts, "dir-"+e.Dir)
	}
	if e.Run != "" {
		parts = append(parts, "run-"+e.Run)
	}
	if e.Desc != "" {
		parts = append(parts, "desc-"+e.Desc)
	}
	return strings.Join(parts, ".")
}

// Prefix returns the underscore-joined entity prefix used when deriving
// output filenames, e.g. "sub-01_ses-baseline_trc-C11".
func (e Entities) Prefix() string {
	return strings.ReplaceAll(e.Key(), ".", "_")
}

// File is a single acquisition file: its location plus the entities parsed
// from its name.
type File struct {
	Path     string
	Entities Entities
}

// NewFile parses the entities out of path and pairs them with it.
func NewFile(path string) File {
	return File{Path: path, Entities: ParseEntities(path)}
}

func (f File) String() string {
	return f.Path
}

// TrimSubjectPrefix normalizes a participant label by stripping an optional
// "sub-" prefix, so "sub-01" and "01" identify the same subject.
func TrimSubjectPrefix(label string) string {
	return strings.TrimPrefix(label, "sub-")
}

// TrimSessionPrefix normalizes a session label by stripping an optional
// "ses-" prefix.
func TrimSessionPrefix(label string) string {
	return strings.TrimPrefix(label, "ses-")
}

// SubjectID extracts the subject label from any path or label form. It
// returns an error when no subject can be recognized.
func SubjectID(input string) (string, error) {
	for _, part := range strings.Split(input, string(filepath.Separator)) {
		if strings.HasPrefix(part, "sub-") {
			label := TrimSubjectPrefix(part)
			if i := strings.IndexAny(label, "_."); i >= 0 {
				label = label[:i]
			}
			if label != "" {
				return label, nil
			}
		}
	}
	// A bare label like "01" is acceptable as-is.
	if input != "" && !strings.ContainsAny(input, "/_.") {
		return input, nil
	}
	return "", fmt.Errorf("could not extract a subject label from %q", input)
}
