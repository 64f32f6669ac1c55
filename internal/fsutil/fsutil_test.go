package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, root, rel string) string {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(rel), 0o644))
	return full
}

func TestCopyFile(t *testing.T) {
	root := t.TempDir()
	src := touch(t, root, "src/file.nii.gz")
	dst := filepath.Join(root, "deep/nested/dst.nii.gz")

	require.NoError(t, CopyFile(src, dst))
	raw, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "src/file.nii.gz", string(raw))

	// An existing destination is truncated, not appended to.
	src2 := touch(t, root, "src/short")
	require.NoError(t, CopyFile(src2, dst))
	raw, err = os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "src/short", string(raw))
}

func TestCopyFile_MissingSource(t *testing.T) {
	root := t.TempDir()
	err := CopyFile(filepath.Join(root, "absent"), filepath.Join(root, "dst"))
	require.Error(t, err)
}

func TestRemoveDirIfEmpty(t *testing.T) {
	root := t.TempDir()

	empty := filepath.Join(root, "empty")
	require.NoError(t, os.MkdirAll(empty, 0o755))
	require.NoError(t, RemoveDirIfEmpty(empty))
	assert.NoDirExists(t, empty)

	full := filepath.Join(root, "full")
	touch(t, root, "full/keeper")
	require.NoError(t, RemoveDirIfEmpty(full))
	assert.DirExists(t, full)

	// Already gone is fine.
	require.NoError(t, RemoveDirIfEmpty(filepath.Join(root, "never")))
}

func TestIsDirEmpty(t *testing.T) {
	root := t.TempDir()
	empty, err := IsDirEmpty(root)
	require.NoError(t, err)
	assert.True(t, empty)

	touch(t, root, "x")
	empty, err = IsDirEmpty(root)
	require.NoError(t, err)
	assert.False(t, empty)
}
