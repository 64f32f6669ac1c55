package deface

import (
	"path/filepath"

	"github.com/openneuropet/petdeface/internal/bids"
)

// Filename marker tokens. These are interoperability surface: downstream
// tooling recognizes outputs purely by these tokens, so they are fixed.
const (
	// DefacedMarker is inserted before the extension of every defaced
	// image.
	DefacedMarker = "_defaced"
	// FaceMaskMarker is inserted before the extension of every
	// face-exclusion mask.
	FaceMaskMarker = "_defacemask"
	// WeightedAvgDesc tags the intermediate time-weighted PET average.
	WeightedAvgDesc = "_desc-wavg_pet"
	// RegistrationSuffix terminates every PET-to-anatomical transform
	// filename.
	RegistrationSuffix = "_desc-pet2anat_pet.lta"
)

// DefacedName returns the defaced counterpart filename for name, e.g.
// "sub-01_T1w.nii.gz" -> "sub-01_T1w_defaced.nii.gz".
func DefacedName(name string) string {
	stem, ext := bids.SplitExtension(name)
	return stem + DefacedMarker + ext
}

// StripDefacedMarker recovers the raw filename a defaced artifact
// corresponds to. The second return is false when name carries no marker.
func StripDefacedMarker(name string) (string, bool) {
	stem, ext := bids.SplitExtension(name)
	if len(stem) < len(DefacedMarker) || stem[len(stem)-len(DefacedMarker):] != DefacedMarker {
		return name, false
	}
	return stem[:len(stem)-len(DefacedMarker)] + ext, true
}

// FaceMaskName returns the face-exclusion mask filename for name.
func FaceMaskName(name string) string {
	stem, ext := bids.SplitExtension(name)
	return stem + FaceMaskMarker + ext
}

// modality returns the BIDS modality folder an image file lives in.
func modality(ent bids.Entities) string {
	if ent.Suffix == "pet" {
		return "pet"
	}
	return "anat"
}

// derivDir computes the derivative directory for a file's entities:
// <outputDir>/sub-XX[/ses-YY]/<modality>.
func derivDir(outputDir string, ent bids.Entities) string {
	dir := filepath.Join(outputDir, "sub-"+ent.Subject)
	if ent.Session != "" {
		dir = filepath.Join(dir, "ses-"+ent.Session)
	}
	return filepath.Join(dir, modality(ent))
}

// registrationName derives the deterministic transform filename from the
// PET file's acquisition entities, never from a random id.
func registrationName(ent bids.Entities) string {
	return ent.Prefix() + RegistrationSuffix
}
