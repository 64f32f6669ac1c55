package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMideface_Command(t *testing.T) {
	cmd := Mideface{
		InFile:   "/d/sub-01_T1w.nii.gz",
		OutFile:  "/out/sub-01_defaced_T1w.nii.gz",
		FaceMask: "/out/sub-01_defacemask_T1w.nii.gz",
	}.Command()

	assert.Equal(t, "mideface", cmd.Name)
	assert.Equal(t, []string{
		"--i", "/d/sub-01_T1w.nii.gz",
		"--facemask", "/out/sub-01_defacemask_T1w.nii.gz",
		"--o", "/out/sub-01_defaced_T1w.nii.gz",
		"--no-pics",
	}, cmd.Args)
	assert.Equal(t, []string{
		"/out/sub-01_defacemask_T1w.nii.gz",
		"/out/sub-01_defaced_T1w.nii.gz",
	}, cmd.Outputs)
}

func TestMideface_MaskOnly(t *testing.T) {
	cmd := Mideface{
		InFile:   "/d/synthetic_T1w.nii.gz",
		OutFile:  "/out/ignored.nii.gz",
		FaceMask: "/out/mask.nii.gz",
		MaskOnly: true,
	}.Command()

	assert.NotContains(t, cmd.Args, "--o")
	assert.Equal(t, []string{"/out/mask.nii.gz"}, cmd.Outputs)
}

func TestMideface_PicsAndOutDir(t *testing.T) {
	cmd := Mideface{
		InFile:   "in.nii.gz",
		OutFile:  "out.nii.gz",
		FaceMask: "mask.nii.gz",
		Pics:     true,
		OutDir:   "/out/previews",
	}.Command()

	assert.Contains(t, cmd.Args, "--pics")
	assert.NotContains(t, cmd.Args, "--no-pics")
	assert.Contains(t, cmd.Args, "--odir")
	assert.Contains(t, cmd.Args, "/out/previews")
}

func TestApplyMideface_Command(t *testing.T) {
	cmd := ApplyMideface{
		InFile:   "/d/sub-01_pet.nii.gz",
		FaceMask: "/out/mask.nii.gz",
		LTAFile:  "/out/reg.lta",
		OutFile:  "/out/sub-01_defaced_pet.nii.gz",
	}.Command()

	assert.Equal(t, "mideface", cmd.Name)
	assert.Equal(t, []string{
		"--apply",
		"/d/sub-01_pet.nii.gz",
		"/out/mask.nii.gz",
		"/out/reg.lta",
		"/out/sub-01_defaced_pet.nii.gz",
	}, cmd.Args)
	assert.Equal(t, []string{"/out/sub-01_defaced_pet.nii.gz"}, cmd.Outputs)
}

func TestMRICoreg_Command(t *testing.T) {
	cmd := MRICoreg{
		Source:    "/w/wavg.nii.gz",
		Reference: "/d/sub-01_T1w.nii.gz",
		OutLTA:    "/out/reg.lta",
	}.Command()

	assert.Equal(t, "mri_coreg", cmd.Name)
	assert.Equal(t, []string{
		"--mov", "/w/wavg.nii.gz",
		"--ref", "/d/sub-01_T1w.nii.gz",
		"--reg", "/out/reg.lta",
	}, cmd.Args)
	assert.Equal(t, []string{"/out/reg.lta"}, cmd.Outputs)
}
