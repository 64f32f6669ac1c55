package tools

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckFreeSurfer(t *testing.T) {
	t.Run("nothing set", func(t *testing.T) {
		t.Setenv("FS_LICENSE", "")
		t.Setenv("FREESURFER_HOME", "")
		require.Error(t, CheckFreeSurfer())
	})

	t.Run("license file via FS_LICENSE", func(t *testing.T) {
		license := filepath.Join(t.TempDir(), "license.txt")
		require.NoError(t, os.WriteFile(license, []byte("key"), 0o644))
		t.Setenv("FS_LICENSE", license)
		assert.NoError(t, CheckFreeSurfer())
	})

	t.Run("FS_LICENSE points nowhere", func(t *testing.T) {
		t.Setenv("FS_LICENSE", filepath.Join(t.TempDir(), "absent"))
		require.Error(t, CheckFreeSurfer())
	})

	t.Run("license under FREESURFER_HOME", func(t *testing.T) {
		home := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(home, "license.txt"), []byte("key"), 0o644))
		t.Setenv("FS_LICENSE", "")
		t.Setenv("FREESURFER_HOME", home)
		assert.NoError(t, CheckFreeSurfer())
	})

	t.Run("home without license", func(t *testing.T) {
		t.Setenv("FS_LICENSE", "")
		t.Setenv("FREESURFER_HOME", t.TempDir())
		require.Error(t, CheckFreeSurfer())
	})
}
