// Package noanat supplies synthetic anatomical stand-ins for subjects that
// have PET data but no T1w image, and removes them again after processing.
package noanat

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/openneuropet/petdeface/internal/bids"
	"github.com/openneuropet/petdeface/internal/ctxlog"
	"github.com/openneuropet/petdeface/internal/fsutil"
	"github.com/openneuropet/petdeface/internal/pet"
)

// AnatMode selects what stands in for a missing anatomical image.
type AnatMode string

const (
	// ModeNone disables the fallback; a missing anatomical is fatal.
	ModeNone AnatMode = ""
	// ModeT1 copies the bundled T1w template into the subject's anat dir.
	ModeT1 AnatMode = "t1"
	// ModeMNI copies the bundled MNI305 template instead.
	ModeMNI AnatMode = "mni"
	// ModePET averages the subject's own PET frames into a static volume.
	ModePET AnatMode = "pet"
)

// ParseAnatMode validates an operator-supplied mode string.
func ParseAnatMode(s string) (AnatMode, error) {
	switch AnatMode(s) {
	case ModeNone, ModeT1, ModeMNI, ModePET:
		return AnatMode(s), nil
	}
	return ModeNone, fmt.Errorf("template anat must be one of: t1, mni, or pet. given: %s", s)
}

// SelfAverageTag is the desc label marking a PET-derived synthetic
// anatomical. The graph builder keys its mask-only special case off this
// token, and it must never appear on a genuine T1w scan.
const SelfAverageTag = "totallyat1w"

// CreatedItems records exactly what Provide added to the source dataset, so
// cleanup can remove those items and nothing else.
type CreatedItems struct {
	SubjectDir   string
	AnatDir      string
	CreatedDirs  []string
	CreatedFiles []string
}

// DataDir resolves the directory holding the bundled template volumes:
// PETDEFACE_DATA_DIR when set, otherwise a data directory next to the
// executable.
func DataDir() (string, error) {
	if dir := os.Getenv("PETDEFACE_DATA_DIR"); dir != "" {
		return dir, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(exe), "data"), nil
}

// templatePath returns the bundled volume for the given mode.
func templatePath(mode AnatMode) (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	switch mode {
	case ModeT1:
		return filepath.Join(dataDir, "sub-01", "ses-baseline", "anat", "sub-01_ses-baseline_T1w.nii.gz"), nil
	case ModeMNI:
		return filepath.Join(dataDir, "sub-mni305", "anat", "sub-mni305_T1w.nii.gz"), nil
	}
	return "", fmt.Errorf("mode %q has no bundled template", mode)
}

// templateSidecar is the generic metadata copied next to every synthetic
// anatomical.
func templateSidecar() (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "sub-01", "ses-baseline", "anat", "sub-01_ses-baseline_T1w.json"), nil
}

// targetNames derives the filenames Provide writes for a subject under the
// given mode. Cleanup re-derives them from the same inputs, which is what
// makes removal idempotent-safe without a record.
func targetNames(subject string, mode AnatMode) (nii, sidecar string) {
	if mode == ModePET {
		base := fmt.Sprintf("sub-%s_desc-%s_T1w", subject, SelfAverageTag)
		return base + ".nii.gz", base + ".json"
	}
	base := fmt.Sprintf("sub-%s_T1w", subject)
	return base + ".nii.gz", base + ".json"
}

// Provide places a synthetic anatomical image (plus sidecar metadata) into
// the subject's anat directory and returns the exact set of items created.
// For ModePET the volume is the unweighted mean of the subject's own PET
// frames, tagged in its filename so downstream steps can recognize it.
func Provide(ctx context.Context, bidsDir, subject, petFile string, mode AnatMode) (CreatedItems, error) {
	logger := ctxlog.FromContext(ctx)

	extracted, err := bids.SubjectID(subject)
	if err != nil {
		return CreatedItems{}, err
	}

	subjectDir := filepath.Join(bidsDir, "sub-"+extracted)
	if _, err := os.Stat(subjectDir); err != nil {
		return CreatedItems{}, fmt.Errorf("subject directory %s does not exist: %w", subjectDir, err)
	}

	anatDir := filepath.Join(subjectDir, "anat")
	items := CreatedItems{SubjectDir: subjectDir, AnatDir: anatDir}
	if _, err := os.Stat(anatDir); os.IsNotExist(err) {
		if err := os.MkdirAll(anatDir, 0o755); err != nil {
			return CreatedItems{}, err
		}
		items.CreatedDirs = append(items.CreatedDirs, anatDir)
	}

	niiName, sidecarName := targetNames(extracted, mode)
	targetNii := filepath.Join(anatDir, niiName)
	targetJSON := filepath.Join(anatDir, sidecarName)

	switch mode {
	case ModePET:
		if err := pet.Mean(petFile, targetNii); err != nil {
			return CreatedItems{}, fmt.Errorf("averaging PET frames for synthetic anatomical: %w", err)
		}
	case ModeT1, ModeMNI:
		source, err := templatePath(mode)
		if err != nil {
			return CreatedItems{}, err
		}
		if err := fsutil.CopyFile(source, targetNii); err != nil {
			return CreatedItems{}, fmt.Errorf("copying %s template: %w", mode, err)
		}
	default:
		return CreatedItems{}, fmt.Errorf("cannot provide synthetic anatomical with mode %q", mode)
	}
	items.CreatedFiles = append(items.CreatedFiles, targetNii)

	if err := writeSidecar(mode, targetJSON); err != nil {
		return CreatedItems{}, err
	}
	items.CreatedFiles = append(items.CreatedFiles, targetJSON)

	logger.Info("Placed synthetic anatomical image.", "subject", "sub-"+extracted, "mode", string(mode), "file", targetNii)
	return items, nil
}

// writeSidecar copies the bundled sidecar when available, otherwise writes a
// minimal record acknowledging the volume is not a genuine T1w.
func writeSidecar(mode AnatMode, target string) error {
	if mode != ModePET {
		source, err := templateSidecar()
		if err == nil {
			if _, statErr := os.Stat(source); statErr == nil {
				return fsutil.CopyFile(source, target)
			}
		}
	}
	record := map[string]any{
		"Description": "Synthetic anatomical stand-in generated by petdeface; not an acquired T1w image.",
	}
	raw, err := json.MarshalIndent(record, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(target, raw, 0o644)
}

// Remove deletes exactly the files and directories recorded in items.
// Directories are removed only when nothing else remains inside them.
func Remove(ctx context.Context, bidsDir string, items CreatedItems) error {
	logger := ctxlog.FromContext(ctx)
	if _, err := os.Stat(bidsDir); err != nil {
		return fmt.Errorf("BIDS directory %s does not exist: %w", bidsDir, err)
	}

	for _, file := range items.CreatedFiles {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			return err
		}
		logger.Debug("Removed synthetic anatomical file.", "file", file)
	}
	for _, dir := range items.CreatedDirs {
		if err := fsutil.RemoveDirIfEmpty(dir); err != nil {
			return err
		}
		logger.Debug("Removed synthetic anatomical directory.", "dir", dir)
	}
	return nil
}

// RemoveForSubject re-derives the expected synthetic paths from the subject
// label and mode, deleting whichever are present. Used when no CreatedItems
// record survived, e.g. cleanup after a crash.
func RemoveForSubject(ctx context.Context, bidsDir, subject string, mode AnatMode) error {
	extracted, err := bids.SubjectID(subject)
	if err != nil {
		return err
	}
	anatDir := filepath.Join(bidsDir, "sub-"+extracted, "anat")
	niiName, sidecarName := targetNames(extracted, mode)

	items := CreatedItems{
		SubjectDir: filepath.Join(bidsDir, "sub-"+extracted),
		AnatDir:    anatDir,
	}
	for _, name := range []string{niiName, sidecarName} {
		path := filepath.Join(anatDir, name)
		if _, err := os.Stat(path); err == nil {
			items.CreatedFiles = append(items.CreatedFiles, path)
		}
	}
	items.CreatedDirs = append(items.CreatedDirs, anatDir)
	return Remove(ctx, bidsDir, items)
}
