package nifti

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	testCases := []struct {
		name     string
		filename string
	}{
		{name: "uncompressed", filename: "vol.nii"},
		{name: "gzipped", filename: "vol.nii.gz"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			img := NewImage(2, 3, 4, 1)
			for i := range img.Data {
				img.Data[i] = float64(i) * 0.5
			}

			path := filepath.Join(t.TempDir(), tc.filename)
			require.NoError(t, Save(img, path))

			got, err := Load(path)
			require.NoError(t, err)

			nx, ny, nz, nt := got.Dims()
			assert.Equal(t, [4]int{2, 3, 4, 1}, [4]int{nx, ny, nz, nt})
			assert.Equal(t, img.Data, got.Data)
		})
	}
}

func TestFourDimensionalFrames(t *testing.T) {
	img := NewImage(2, 2, 2, 3)
	require.Equal(t, 3, img.Frames())
	require.Equal(t, 8, img.VoxelsPerFrame())
	for i := range img.Data {
		img.Data[i] = float64(i)
	}

	path := filepath.Join(t.TempDir(), "dyn.nii.gz")
	require.NoError(t, Save(img, path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Frames())

	// Frames are stored time-last, so frame t starts at t*8.
	frame := got.Frame(1)
	require.Len(t, frame, 8)
	assert.Equal(t, 8.0, frame[0])
	assert.Equal(t, 15.0, frame[7])
}

func TestLoad_AppliesScaleSlope(t *testing.T) {
	// Hand-write an int16 volume with a non-trivial scaling so the slope
	// and intercept path is exercised; Save always normalizes to float64.
	h := NewImage(2, 1, 1, 1).Header
	h.Datatype = DTInt16
	h.Bitpix = 16
	h.SclSlope = 2
	h.SclInter = 5

	path := filepath.Join(t.TempDir(), "scaled.nii")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, binary.Write(f, binary.LittleEndian, &h))
	_, err = f.Write([]byte{0, 0, 0, 0})
	require.NoError(t, err)
	require.NoError(t, binary.Write(f, binary.LittleEndian, []int16{3, 10}))
	require.NoError(t, f.Close())

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{11, 25}, got.Data)
}

func TestReadHeader(t *testing.T) {
	img := NewImage(5, 6, 7, 1)
	path := filepath.Join(t.TempDir(), "hdr.nii.gz")
	require.NoError(t, Save(img, path))

	h, order, err := ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, binary.ByteOrder(binary.LittleEndian), order)
	assert.Equal(t, int16(5), h.Dim[1])
	assert.Equal(t, int16(DTFloat64), h.Datatype)
}

func TestDerive_CarriesSpatialHeader(t *testing.T) {
	src := NewImage(2, 2, 2, 4)
	src.Header.Pixdim = [8]float32{1, 2, 2, 2.5, 60, 0, 0, 0}
	src.Header.SrowX = [4]float32{2, 0, 0, -10}
	src.Header.QoffsetX = -10

	mean := make([]float64, 8)
	img := Derive(src, mean)

	assert.Equal(t, 1, img.Frames())
	assert.Equal(t, src.Header.Pixdim, img.Header.Pixdim)
	assert.Equal(t, src.Header.SrowX, img.Header.SrowX)
	assert.Equal(t, src.Header.QoffsetX, img.Header.QoffsetX)
	assert.Same(t, &mean[0], &img.Data[0])
}

func TestLoad_RejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.nii")
	require.NoError(t, os.WriteFile(path, make([]byte, 400), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.nii.gz"))
	require.Error(t, err)
}
