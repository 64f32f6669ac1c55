package locator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openneuropet/petdeface/internal/bids"
)

func indexDataset(t *testing.T, paths ...string) *bids.Layout {
	t.Helper()
	root := t.TempDir()
	for _, rel := range paths {
		full := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, nil, 0o644))
	}
	layout, err := bids.Index(root)
	require.NoError(t, err)
	return layout
}

func TestCollect_PrefersLongestSharedPrefix(t *testing.T) {
	layout := indexDataset(t,
		"sub-01/ses-baseline/anat/sub-01_ses-baseline_T1w.nii.gz",
		"sub-01/ses-baseline/pet/sub-01_ses-baseline_pet.nii.gz",
		"sub-01/ses-followup/anat/sub-01_ses-followup_T1w.nii.gz",
		"sub-01/ses-followup/pet/sub-01_ses-followup_pet.nii.gz",
	)

	matches, err := Collect(layout, "01")
	require.NoError(t, err)
	require.Len(t, matches, 2)

	for petPath, anatPath := range matches {
		petSes := bids.ParseEntities(petPath).Session
		assert.Equal(t, petSes, bids.ParseEntities(anatPath).Session,
			"each PET scan pairs with the anatomical of its own session")
	}
}

func TestCollect_EveryPETGetsEntry(t *testing.T) {
	layout := indexDataset(t,
		"sub-01/anat/sub-01_T1w.nii.gz",
		"sub-01/pet/sub-01_run-01_pet.nii.gz",
		"sub-01/pet/sub-01_run-02_pet.nii.gz",
	)

	matches, err := Collect(layout, "01")
	require.NoError(t, err)

	anat := layout.T1w("01")[0].Path
	require.Len(t, matches, 2)
	for _, anatPath := range matches {
		assert.Equal(t, anat, anatPath)
	}
	assert.Equal(t, []string{anat}, UniqueAnat(matches))
}

func TestCollect_NoPETIsAnError(t *testing.T) {
	layout := indexDataset(t, "sub-01/anat/sub-01_T1w.nii.gz")

	_, err := Collect(layout, "01")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no PET images")
}

func TestCollect_MissingAnatYieldsSentinel(t *testing.T) {
	layout := indexDataset(t,
		"sub-01/pet/sub-01_pet.nii.gz",
	)

	matches, err := Collect(layout, "01")
	require.NoError(t, err)

	petPath := layout.PET("01")[0].Path
	assert.Equal(t, NoMatch, matches[petPath])
	assert.Equal(t, []string{petPath}, Missing(matches))
	assert.Empty(t, UniqueAnat(matches))
}

func TestBestMatch_RejectsCrossSubjectCandidates(t *testing.T) {
	pet := bids.NewFile("/data/set/sub-010/pet/sub-010_pet.nii.gz")
	// Shares a long literal path prefix with the PET file but belongs to
	// another participant.
	other := bids.NewFile("/data/set/sub-01/anat/sub-01_T1w.nii.gz")

	assert.Equal(t, NoMatch, bestMatch(pet, []bids.File{other}))
}

func TestBestMatch_TieBreaksLexically(t *testing.T) {
	pet := bids.NewFile("/d/sub-01/pet/sub-01_pet.nii.gz")
	a := bids.NewFile("/d/sub-01/anat/sub-01_acq-b_T1w.nii.gz")
	b := bids.NewFile("/d/sub-01/anat/sub-01_acq-a_T1w.nii.gz")

	// Identical scores regardless of slice order.
	assert.Equal(t, b.Path, bestMatch(pet, []bids.File{a, b}))
	assert.Equal(t, b.Path, bestMatch(pet, []bids.File{b, a}))
}

func TestMissingAnatError_NamesTheOffender(t *testing.T) {
	err := &MissingAnatError{Subject: "01", PETFile: "/d/sub-01_pet.nii.gz"}
	assert.Contains(t, err.Error(), "sub-01")
	assert.Contains(t, err.Error(), "/d/sub-01_pet.nii.gz")
}
