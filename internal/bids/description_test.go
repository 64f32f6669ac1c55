package bids

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadDatasetDescription(t *testing.T) {
	root := t.TempDir()

	// Missing file is tolerated.
	assert.Equal(t, "Unknown", ReadDatasetDescription(root).Name)

	raw := []byte(`{"Name": "My PET Study", "BIDSVersion": "1.8.0"}`)
	require.NoError(t, os.WriteFile(filepath.Join(root, "dataset_description.json"), raw, 0o644))
	desc := ReadDatasetDescription(root)
	assert.Equal(t, "My PET Study", desc.Name)
	assert.Equal(t, "1.8.0", desc.BIDSVersion)
}

func TestWriteDatasetDescription(t *testing.T) {
	out := filepath.Join(t.TempDir(), "derivatives", "petdeface")
	require.NoError(t, WriteDatasetDescription(out, "My PET Study"))

	desc := ReadDatasetDescription(out)
	assert.Contains(t, desc.Name, "My PET Study")
	assert.Equal(t, BIDSVersion, desc.BIDSVersion)
	require.Len(t, desc.GeneratedBy, 1)
	assert.Equal(t, Version, desc.GeneratedBy[0].Version)

	// Rewriting over an existing record succeeds.
	require.NoError(t, WriteDatasetDescription(out, "My PET Study"))
}
