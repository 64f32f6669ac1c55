package bids

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeDataset materializes the given relative paths as empty files under a
// fresh temporary dataset root.
func writeDataset(t *testing.T, paths ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, rel := range paths {
		full := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, nil, 0o644))
	}
	return root
}

func paths(files []File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func TestIndex_SessionLayout(t *testing.T) {
	root := writeDataset(t,
		"sub-01/ses-baseline/anat/sub-01_ses-baseline_T1w.nii.gz",
		"sub-01/ses-baseline/pet/sub-01_ses-baseline_pet.nii.gz",
		"sub-01/ses-baseline/pet/sub-01_ses-baseline_pet.json",
		"sub-01/ses-followup/pet/sub-01_ses-followup_pet.nii.gz",
		"sub-02/anat/sub-02_T1w.nii.gz",
		"sub-02/pet/sub-02_pet.nii.gz",
	)

	layout, err := Index(root)
	require.NoError(t, err)

	assert.Equal(t, []string{"01", "02"}, layout.Subjects())
	assert.Equal(t, []string{"baseline", "followup"}, layout.Sessions("01"))
	assert.Empty(t, layout.Sessions("02"))

	assert.Len(t, layout.PET("01"), 2)
	assert.Len(t, layout.T1w("01"), 1)
	assert.Len(t, layout.PET("sub-02"), 1)
}

func TestIndex_SkipsNonRawTrees(t *testing.T) {
	root := writeDataset(t,
		"sub-01/pet/sub-01_pet.nii.gz",
		"derivatives/petdeface/sub-01/pet/sub-01_defaced_pet.nii.gz",
		"sourcedata/sub-01/raw.nii.gz",
		"code/sub-01_notes.nii.gz",
		".git/sub-01_blob.nii.gz",
	)

	layout, err := Index(root)
	require.NoError(t, err)

	pet := layout.PET("01")
	require.Len(t, pet, 1)
	assert.Equal(t, filepath.Join(root, "sub-01/pet/sub-01_pet.nii.gz"), pet[0].Path)
}

func TestIndex_RebuildSeesNewFiles(t *testing.T) {
	root := writeDataset(t, "sub-01/pet/sub-01_pet.nii.gz")

	layout, err := Index(root)
	require.NoError(t, err)
	assert.Empty(t, layout.T1w("01"))

	anat := filepath.Join(root, "sub-01/anat/sub-01_T1w.nii.gz")
	require.NoError(t, os.MkdirAll(filepath.Dir(anat), 0o755))
	require.NoError(t, os.WriteFile(anat, nil, 0o644))

	require.NoError(t, layout.Rebuild())
	assert.Equal(t, []string{anat}, paths(layout.T1w("01")))
}

func TestIndex_RejectsMissingOrFileRoot(t *testing.T) {
	_, err := Index(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)

	file := filepath.Join(t.TempDir(), "flat")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = Index(file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestSidecar(t *testing.T) {
	root := writeDataset(t,
		"sub-01/pet/sub-01_pet.nii.gz",
		"sub-01/pet/sub-01_pet.json",
		"sub-02/pet/sub-02_pet.nii.gz",
	)

	layout, err := Index(root)
	require.NoError(t, err)

	withSidecar := layout.PET("01")[0]
	assert.Equal(t, filepath.Join(root, "sub-01/pet/sub-01_pet.json"), layout.Sidecar(withSidecar))

	without := layout.PET("02")[0]
	assert.Empty(t, layout.Sidecar(without))
}
