package bids

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exclusionLayout(t *testing.T) *Layout {
	t.Helper()
	root := writeDataset(t,
		"sub-01/ses-a/pet/sub-01_ses-a_pet.nii.gz",
		"sub-01/ses-b/pet/sub-01_ses-b_pet.nii.gz",
		"sub-02/pet/sub-02_pet.nii.gz",
		"sub-03/pet/sub-03_pet.nii.gz",
	)
	layout, err := Index(root)
	require.NoError(t, err)
	return layout
}

func TestBuildExclusions_ExcludeList(t *testing.T) {
	layout := exclusionLayout(t)

	ex := BuildExclusions(layout, ExclusionSpec{
		ParticipantExclude: []string{"sub-02", "03"},
	})

	assert.False(t, ex.Subject("01"))
	assert.True(t, ex.Subject("02"))
	assert.True(t, ex.Subject("sub-03"))
}

func TestBuildExclusions_IncludeImpliesComplement(t *testing.T) {
	layout := exclusionLayout(t)

	ex := BuildExclusions(layout, ExclusionSpec{
		ParticipantInclude: []string{"01"},
	})

	assert.False(t, ex.Subject("01"))
	assert.True(t, ex.Subject("02"))
	assert.True(t, ex.Subject("03"))
}

func TestBuildExclusions_Sessions(t *testing.T) {
	layout := exclusionLayout(t)

	ex := BuildExclusions(layout, ExclusionSpec{
		SessionInclude: []string{"a"},
	})

	assert.False(t, ex.Session("a"))
	assert.True(t, ex.Session("b"))
	assert.True(t, ex.Session("ses-b"))

	// Files without a session entity are never excluded by session rules.
	assert.False(t, ex.Session(""))
	assert.False(t, ex.File(NewFile("sub-02_pet.nii.gz")))
}

func TestExclusions_File(t *testing.T) {
	layout := exclusionLayout(t)

	ex := BuildExclusions(layout, ExclusionSpec{
		ParticipantExclude: []string{"02"},
		SessionExclude:     []string{"b"},
	})

	assert.True(t, ex.File(NewFile("sub-02_pet.nii.gz")))
	assert.True(t, ex.File(NewFile("sub-01_ses-b_pet.nii.gz")))
	assert.False(t, ex.File(NewFile("sub-01_ses-a_pet.nii.gz")))
}
