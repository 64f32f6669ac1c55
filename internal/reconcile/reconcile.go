// Package reconcile maps the pipeline's derivative outputs back onto the
// original dataset's naming and directory conventions.
//
// Reconciliation runs exactly once, after the executor finishes and after
// synthetic anatomical data has been reverted. Its failures are fatal by
// design: a half-reconciled dataset is actively misleading, so there is no
// partial-success state.
package reconcile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/openneuropet/petdeface/internal/bids"
	"github.com/openneuropet/petdeface/internal/ctxlog"
	"github.com/openneuropet/petdeface/internal/deface"
	"github.com/openneuropet/petdeface/internal/fsutil"
)

// Options configures a reconciliation pass.
type Options struct {
	// DatasetRoot is the original raw dataset.
	DatasetRoot string
	// OutputDir is the derivative tree the executor wrote into.
	OutputDir string
	// TargetRoot overrides the adjacent-mode destination. Empty means
	// DatasetRoot with the "_defaced" suffix appended.
	TargetRoot string
	// Placement selects one of the three layouts.
	Placement Placement
	// Exclusions must be the same value the graph builder used, so the
	// two phases agree about scope.
	Exclusions bids.Exclusions
	// KeepStray suppresses the stray-marker sweep so intermediate
	// artifacts remain inspectable. Wired to the debug environment flag
	// by the caller.
	KeepStray bool
}

// pair links one defaced derivative file to the raw file it replaces.
type pair struct {
	derivative string
	raw        string
}

// WrapUp performs reconciliation under the configured placement mode.
func WrapUp(ctx context.Context, opts Options) error {
	logger := ctxlog.FromContext(ctx)

	derivFiles, err := listFiles(opts.OutputDir)
	if err != nil {
		return fmt.Errorf("indexing derivative tree: %w", err)
	}
	if len(derivFiles) == 0 {
		return fmt.Errorf("no derivative files found under %s: the dataset was never processed", opts.OutputDir)
	}

	rawFiles, err := listRawFiles(opts.DatasetRoot)
	if err != nil {
		return fmt.Errorf("indexing raw tree: %w", err)
	}

	pairs := matchPairs(derivFiles, rawFiles)
	logger.Debug("Matched defaced derivatives to raw counterparts.", "pairs", len(pairs), "derivatives", len(derivFiles))

	switch opts.Placement {
	case Adjacent:
		return wrapUpAdjacent(ctx, opts, derivFiles, rawFiles, pairs)
	case Inplace:
		return wrapUpInplace(ctx, opts, derivFiles, pairs)
	case Derivatives:
		logger.Debug("Placement is derivatives, nothing to reconcile.")
		return nil
	default:
		return fmt.Errorf("invalid placement %q", opts.Placement)
	}
}

// listFiles returns every regular file under root, excluding the transient
// working directory.
func listFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == workDirName {
				return filepath.SkipDir
			}
			return nil
		}
		files = append(files, path)
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	return files, err
}

// workDirName is the transient working directory the executor writes
// intermediates into, excluded from reconciliation.
const workDirName = "petdeface_wf"

// listRawFiles returns every raw file in the dataset, skipping derivative
// trees entirely.
func listRawFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "derivatives" || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// matchPairs builds the defaced-to-raw correspondence: stripping the
// defacing marker from a derivative filename must recover exactly the raw
// filename. Derivatives with no raw counterpart (masks, transforms,
// averages) are simply not paired; that is expected, not an error.
func matchPairs(derivFiles, rawFiles []string) []pair {
	rawByName := make(map[string]string, len(rawFiles))
	for _, raw := range rawFiles {
		rawByName[filepath.Base(raw)] = raw
	}

	var pairs []pair
	for _, deriv := range derivFiles {
		stripped, ok := deface.StripDefacedMarker(filepath.Base(deriv))
		if !ok {
			continue
		}
		raw, found := rawByName[stripped]
		if !found {
			continue
		}
		pairs = append(pairs, pair{derivative: deriv, raw: raw})
	}
	return pairs
}

// excludedPath reports whether any path segment names an excluded subject
// or session. Checking segments rather than parsed entities also covers
// files that carry no entities in their name.
func excludedPath(path string, ex bids.Exclusions) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if strings.HasPrefix(part, "sub-") {
			label, _, _ := strings.Cut(strings.TrimPrefix(part, "sub-"), "_")
			if ex.Subject(label) {
				return true
			}
		}
		if strings.HasPrefix(part, "ses-") {
			label, _, _ := strings.Cut(strings.TrimPrefix(part, "ses-"), "_")
			if ex.Session(label) {
				return true
			}
		}
	}
	f := bids.NewFile(path)
	return ex.Subject(f.Entities.Subject) || ex.Session(f.Entities.Session)
}

// wrapUpAdjacent builds a sibling dataset: the original layout with every
// applicable image replaced by its defaced version, plus the face masks and
// registration transforms under the equivalent derivative location.
func wrapUpAdjacent(ctx context.Context, opts Options, derivFiles, rawFiles []string, pairs []pair) error {
	logger := ctxlog.FromContext(ctx)

	targetRoot := opts.TargetRoot
	if targetRoot == "" {
		targetRoot = strings.TrimRight(opts.DatasetRoot, string(filepath.Separator)) + "_defaced"
	}
	logger.Info("Assembling adjacent defaced dataset.", "target", targetRoot)

	// First pass: mirror the raw tree, minus exclusions, deduplicating on
	// basename so the same logical file never lands twice.
	copiedNames := make(map[string]bool)
	for _, raw := range rawFiles {
		if excludedPath(raw, opts.Exclusions) {
			continue
		}
		rel, err := filepath.Rel(opts.DatasetRoot, raw)
		if err != nil {
			return err
		}
		name := filepath.Base(raw)
		if copiedNames[name] {
			continue
		}
		copiedNames[name] = true
		if err := fsutil.CopyFile(raw, filepath.Join(targetRoot, rel)); err != nil {
			return fmt.Errorf("mirroring raw file: %w", err)
		}
	}

	// Second pass: overlay defaced content under the raw name.
	for _, p := range pairs {
		rel, err := filepath.Rel(opts.DatasetRoot, p.raw)
		if err != nil {
			return err
		}
		if err := fsutil.CopyFile(p.derivative, filepath.Join(targetRoot, rel)); err != nil {
			return fmt.Errorf("placing defaced image: %w", err)
		}
	}

	// Third pass: carry the masks and transforms into the target's
	// derivative tree so downstream consumers can re-apply the defacing.
	derivTarget := filepath.Join(targetRoot, "derivatives", bids.PipelineName)
	for _, deriv := range derivFiles {
		name := filepath.Base(deriv)
		if !strings.Contains(name, deface.FaceMaskMarker) && !strings.HasSuffix(name, ".lta") {
			continue
		}
		if excludedPath(deriv, opts.Exclusions) {
			continue
		}
		rel, err := filepath.Rel(opts.OutputDir, deriv)
		if err != nil {
			return err
		}
		if err := fsutil.CopyFile(deriv, filepath.Join(derivTarget, rel)); err != nil {
			return fmt.Errorf("copying derivative artifact: %w", err)
		}
	}

	return sweepStray(ctx, targetRoot, opts.KeepStray)
}

// wrapUpInplace overwrites the raw images with their defaced versions, then
// drops the now-redundant defaced copies from the derivative tree.
func wrapUpInplace(ctx context.Context, opts Options, derivFiles []string, pairs []pair) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Replacing raw images in place.", "dataset", opts.DatasetRoot)

	for _, p := range pairs {
		if err := fsutil.CopyFile(p.derivative, p.raw); err != nil {
			return fmt.Errorf("overwriting raw image: %w", err)
		}
	}

	// The defaced images now live at their raw paths; the derivative
	// copies would be pure double-storage.
	for _, deriv := range derivFiles {
		if _, ok := deface.StripDefacedMarker(filepath.Base(deriv)); !ok {
			continue
		}
		if err := os.Remove(deriv); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing redundant derivative copy: %w", err)
		}
	}

	return sweepStray(ctx, opts.DatasetRoot, opts.KeepStray)
}

// sweepStray deletes leftover files still carrying the defacing marker from
// the destination tree. Skipped when debugging, so intermediates remain
// inspectable.
func sweepStray(ctx context.Context, root string, keep bool) error {
	logger := ctxlog.FromContext(ctx)
	if keep {
		logger.Debug("Stray-file sweep suppressed.", "root", root)
		return nil
	}

	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "derivatives" {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := deface.StripDefacedMarker(d.Name()); !ok {
			return nil
		}
		logger.Debug("Removing stray defaced artifact.", "file", path)
		return os.Remove(path)
	})
}
