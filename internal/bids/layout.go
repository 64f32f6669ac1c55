package bids

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// skipDirs are top-level dataset directories that never contain raw
// acquisition files.
var skipDirs = map[string]bool{
	"derivatives": true,
	"sourcedata":  true,
	"code":        true,
}

// Layout is an index of the raw files in a BIDS dataset, keyed by subject.
// It is built once up front and rebuilt on demand when the pipeline adds
// files to the source tree mid-run.
type Layout struct {
	// Root is the dataset directory the index was built from.
	Root string

	files    map[string][]File
	subjects []string
}

// Index walks the dataset rooted at root and builds a Layout. Derivative
// trees, sourcedata and hidden directories are not indexed.
func Index(root string) (*Layout, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("dataset directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dataset path %s is not a directory", root)
	}

	l := &Layout{Root: root}
	if err := l.Rebuild(); err != nil {
		return nil, err
	}
	return l, nil
}

// Rebuild re-walks the dataset so files created after the initial indexing
// become visible to subsequent queries.
func (l *Layout) Rebuild() error {
	files := make(map[string][]File)

	err := filepath.WalkDir(l.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path == l.Root {
				return nil
			}
			if strings.HasPrefix(name, ".") || skipDirs[name] {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		f := NewFile(path)
		if f.Entities.Subject == "" {
			return nil
		}
		files[f.Entities.Subject] = append(files[f.Entities.Subject], f)
		return nil
	})
	if err != nil {
		return fmt.Errorf("indexing dataset %s: %w", l.Root, err)
	}

	subjects := make([]string, 0, len(files))
	for subject := range files {
		sort.Slice(files[subject], func(i, j int) bool {
			return files[subject][i].Path < files[subject][j].Path
		})
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)

	l.files = files
	l.subjects = subjects
	return nil
}

// Subjects returns the sorted subject labels present in the dataset,
// without the "sub-" prefix.
func (l *Layout) Subjects() []string {
	return append([]string(nil), l.subjects...)
}

// Sessions returns the sorted session labels seen in the given subject's
// files. Subjects without session subdirectories yield an empty slice.
func (l *Layout) Sessions(subject string) []string {
	seen := map[string]bool{}
	for _, f := range l.files[TrimSubjectPrefix(subject)] {
		if ses := f.Entities.Session; ses != "" && !seen[ses] {
			seen[ses] = true
		}
	}
	sessions := make([]string, 0, len(seen))
	for ses := range seen {
		sessions = append(sessions, ses)
	}
	sort.Strings(sessions)
	return sessions
}

// query returns the subject's image files matching the given suffix,
// in sorted path order.
func (l *Layout) query(subject, suffix string) []File {
	var out []File
	for _, f := range l.files[TrimSubjectPrefix(subject)] {
		if f.Entities.Suffix != suffix {
			continue
		}
		if f.Entities.Ext != ".nii" && f.Entities.Ext != ".nii.gz" {
			continue
		}
		out = append(out, f)
	}
	return out
}

// PET returns the subject's PET image files.
func (l *Layout) PET(subject string) []File {
	return l.query(subject, "pet")
}

// T1w returns the subject's T1-weighted anatomical image files.
func (l *Layout) T1w(subject string) []File {
	return l.query(subject, "T1w")
}

// Sidecar returns the path of the JSON sidecar accompanying the given image
// file, or "" when none exists on disk.
func (l *Layout) Sidecar(f File) string {
	stem, _ := SplitExtension(f.Path)
	sidecar := stem + ".json"
	if _, err := os.Stat(sidecar); err != nil {
		return ""
	}
	return sidecar
}
