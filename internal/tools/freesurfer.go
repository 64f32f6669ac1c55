package tools

import (
	"errors"
	"os"
	"path/filepath"
)

// CheckFreeSurfer verifies that a FreeSurfer installation is reachable before
// any task is scheduled, so a missing environment fails fast instead of as an
// opaque mid-run tool error. It checks the conventional environment surface
// only; the tools themselves remain the authority on whether they can run.
func CheckFreeSurfer() error {
	if path := os.Getenv("FS_LICENSE"); path != "" {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		return errors.New("FS_LICENSE points to a license file that does not exist")
	}

	home := os.Getenv("FREESURFER_HOME")
	if home == "" {
		return errors.New("FreeSurfer not found: set FREESURFER_HOME or FS_LICENSE")
	}
	if _, err := os.Stat(filepath.Join(home, "license.txt")); err != nil {
		return errors.New("no license.txt under FREESURFER_HOME; obtain one from https://surfer.nmr.mgh.harvard.edu/registration.html")
	}
	return nil
}
