// Package pet derives representative 3-D volumes from dynamic 4-D PET data.
package pet

import (
	"encoding/json"
	"fmt"
	"os"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"

	"github.com/openneuropet/petdeface/internal/nifti"
)

// Sidecar holds the frame-timing metadata from a PET JSON sidecar. Times are
// in seconds relative to injection.
type Sidecar struct {
	FrameTimesStart []float64 `json:"FrameTimesStart"`
	FrameDuration   []float64 `json:"FrameDuration"`
}

// ReadSidecar loads and decodes the JSON sidecar at path.
func ReadSidecar(path string) (Sidecar, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Sidecar{}, fmt.Errorf("reading PET sidecar: %w", err)
	}
	var sc Sidecar
	if err := json.Unmarshal(raw, &sc); err != nil {
		return Sidecar{}, fmt.Errorf("decoding PET sidecar %s: %w", path, err)
	}
	return sc, nil
}

// MidFrames returns the midpoint acquisition time of each frame.
func (s Sidecar) MidFrames() []float64 {
	mid := make([]float64, len(s.FrameTimesStart))
	for i, start := range s.FrameTimesStart {
		mid[i] = start + s.FrameDuration[i]/2
	}
	return mid
}

// WeightedAverage integrates a dynamic PET series over its frame timeline
// (trapezoidal rule over frame midpoints) and normalizes by the summed
// midpoint times, producing a single representative 3-D volume at outPath.
func WeightedAverage(petPath, sidecarPath, outPath string) error {
	img, err := nifti.Load(petPath)
	if err != nil {
		return err
	}

	nt := img.Frames()
	if nt < 2 {
		return fmt.Errorf("%s: weighted average requires a dynamic series, got %d frame(s)", petPath, nt)
	}

	sc, err := ReadSidecar(sidecarPath)
	if err != nil {
		return err
	}
	if len(sc.FrameTimesStart) != nt || len(sc.FrameDuration) != nt {
		return fmt.Errorf("%s: sidecar declares %d frames, image has %d",
			sidecarPath, len(sc.FrameTimesStart), nt)
	}

	mid := sc.MidFrames()
	norm := floats.Sum(mid)

	voxels := img.VoxelsPerFrame()
	out := make([]float64, voxels)
	series := make([]float64, nt)
	for v := 0; v < voxels; v++ {
		for t := 0; t < nt; t++ {
			series[t] = img.Frame(t)[v]
		}
		out[v] = integrate.Trapezoidal(mid, series) / norm
	}

	return nifti.Save(nifti.Derive(img, out), outPath)
}

// Mean writes the unweighted per-voxel mean across all frames of the PET
// series at petPath to outPath. Used for the synthetic anatomical stand-in,
// which needs only a static head image, not a kinetically meaningful one.
func Mean(petPath, outPath string) error {
	img, err := nifti.Load(petPath)
	if err != nil {
		return err
	}

	nt := img.Frames()
	voxels := img.VoxelsPerFrame()
	out := make([]float64, voxels)
	for t := 0; t < nt; t++ {
		floats.Add(out, img.Frame(t))
	}
	floats.Scale(1/float64(nt), out)

	return nifti.Save(nifti.Derive(img, out), outPath)
}
