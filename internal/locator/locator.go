// Package locator pairs each PET acquisition in a dataset with its
// best-matching anatomical reference.
package locator

import (
	"fmt"
	"sort"

	"github.com/mkmik/argsort"

	"github.com/openneuropet/petdeface/internal/bids"
)

// NoMatch is the sentinel value recorded for a PET file with no qualifying
// anatomical reference. It is an explicit, testable value: a map entry is
// either a valid existing path or exactly this.
const NoMatch = ""

// MissingAnatError marks a single PET acquisition that has no anatomical
// reference. Callers aggregate these across subjects so the operator sees
// every offender in one run.
type MissingAnatError struct {
	Subject string
	PETFile string
}

func (e *MissingAnatError) Error() string {
	return fmt.Sprintf("no T1w image found for subject sub-%s (PET file %s); "+
		"all workflows require an anatomical reference", e.Subject, e.PETFile)
}

// matchingChars counts the characters two strings share before their first
// discrepancy.
func matchingChars(a, b string) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

// bestMatch picks the anatomical candidate sharing the longest identical
// filename prefix with the PET file; ties resolve to the lexically first
// path. Candidates whose subject entity differs from the PET file's are
// rejected outright: a long literal prefix across subjects is a
// coincidence, not a pairing.
func bestMatch(petFile bids.File, candidates []bids.File) string {
	var eligible []bids.File
	for _, c := range candidates {
		if c.Entities.Subject == petFile.Entities.Subject {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return NoMatch
	}

	scores := make([]int, len(eligible))
	for i, c := range eligible {
		scores[i] = matchingChars(petFile.Path, c.Path)
	}

	// Rank candidates by descending score, breaking ties toward the
	// lexically first path.
	ranked := argsort.SortSlice(eligible, func(i, j int) bool {
		if scores[i] != scores[j] {
			return scores[i] > scores[j]
		}
		return eligible[i].Path < eligible[j].Path
	})
	return eligible[ranked[0]].Path
}

// Collect builds the subject-to-files map for one subject: every PET
// acquisition maps to exactly one anatomical path, or to NoMatch. An error
// is returned when the subject has no PET data at all, since the pipeline
// then has nothing to process.
func Collect(layout *bids.Layout, subject string) (map[string]string, error) {
	petFiles := layout.PET(subject)
	if len(petFiles) == 0 {
		return nil, fmt.Errorf("no PET images found for participant sub-%s; all workflows require PET images", bids.TrimSubjectPrefix(subject))
	}

	anatFiles := layout.T1w(subject)

	matches := make(map[string]string, len(petFiles))
	for _, petFile := range petFiles {
		matches[petFile.Path] = bestMatch(petFile, anatFiles)
	}
	return matches, nil
}

// Missing returns the PET paths mapped to NoMatch, in sorted order.
func Missing(matches map[string]string) []string {
	var missing []string
	for petPath, anatPath := range matches {
		if anatPath == NoMatch {
			missing = append(missing, petPath)
		}
	}
	sort.Strings(missing)
	return missing
}

// UniqueAnat returns the distinct non-sentinel anatomical paths referenced
// by the map, in sorted order. The graph builder creates exactly one
// defacing task per returned path regardless of how many PET files share it.
func UniqueAnat(matches map[string]string) []string {
	seen := map[string]bool{}
	var unique []string
	for _, anatPath := range matches {
		if anatPath == NoMatch || seen[anatPath] {
			continue
		}
		seen[anatPath] = true
		unique = append(unique, anatPath)
	}
	sort.Strings(unique)
	return unique
}
