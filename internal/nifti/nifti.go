// Package nifti reads and writes NIfTI-1 volumes.
//
// Only the subset of the format the defacing pipeline needs is implemented:
// single-file .nii / .nii.gz images, the common scalar datatypes, and 3-D or
// 4-D data arrays. The header layout follows the official nifti1.h
// definition, https://nifti.nimh.nih.gov/pub/dist/src/niftilib/nifti1.h.
package nifti

import (
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
)

// Header defines the 348-byte NIfTI-1 header.
type Header struct {
	SizeofHdr          int32
	UnusedDataType     [10]int8
	UnusedDbName       [18]int8
	UnusedExtents      int32
	UnusedSessionError int16
	UnusedRegular      int8
	DimInfo            int8
	Dim                [8]int16
	IntentP1           float32
	IntentP2           float32
	IntentP3           float32
	IntentCode         int16
	Datatype           int16
	Bitpix             int16
	SliceStart         int16
	Pixdim             [8]float32
	VoxOffset          float32
	SclSlope           float32
	SclInter           float32
	SliceEnd           int16
	SliceCode          int8
	XyztUnits          int8
	CalMax             float32
	CalMin             float32
	SliceDuration      float32
	Toffset            float32
	UnusedGlmax        int32
	UnusedGlmin        int32
	Descrip            [80]int8
	AuxFile            [24]int8
	QformCode          int16
	SformCode          int16
	QuaternB           float32
	QuaternC           float32
	QuaternD           float32
	QoffsetX           float32
	QoffsetY           float32
	QoffsetZ           float32
	SrowX              [4]float32
	SrowY              [4]float32
	SrowZ              [4]float32
	IntentName         [16]int8
	Magic              [4]int8
}

const (
	headerSize = 348
	// voxOffset is where voxel data starts in a single-file image: the
	// header plus the 4-byte extension flag.
	voxOffset = 352
)

// Datatype codes from nifti1.h.
const (
	DTUint8   = 2
	DTInt16   = 4
	DTInt32   = 8
	DTFloat32 = 16
	DTFloat64 = 64
)

// Image is a decoded NIfTI volume: its header plus the voxel data flattened
// in the file's native (column-major) order, converted to float64.
type Image struct {
	Header Header
	Data   []float64
}

// Dims returns the spatial and temporal extents (nx, ny, nz, nt). A 3-D
// image reports nt == 1.
func (img *Image) Dims() (nx, ny, nz, nt int) {
	h := img.Header
	nx, ny, nz = int(h.Dim[1]), int(h.Dim[2]), int(h.Dim[3])
	nt = 1
	if h.Dim[0] >= 4 && h.Dim[4] > 0 {
		nt = int(h.Dim[4])
	}
	return nx, ny, nz, nt
}

// Frames returns the number of time points in the image.
func (img *Image) Frames() int {
	_, _, _, nt := img.Dims()
	return nt
}

// VoxelsPerFrame returns the number of voxels in one 3-D frame.
func (img *Image) VoxelsPerFrame() int {
	nx, ny, nz, _ := img.Dims()
	return nx * ny * nz
}

// Frame returns the flattened voxel data of time point t. The returned slice
// aliases the image data.
func (img *Image) Frame(t int) []float64 {
	n := img.VoxelsPerFrame()
	return img.Data[t*n : (t+1)*n]
}

// open returns a reader for path, transparently un-gzipping .gz files.
func open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening gzip stream of %s: %w", path, err)
	}
	return &gzipReadCloser{gz: gz, file: f}, nil
}

type gzipReadCloser struct {
	gz   *gzip.Reader
	file *os.File
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.gz.Read(p) }

func (g *gzipReadCloser) Close() error {
	gzErr := g.gz.Close()
	fileErr := g.file.Close()
	if gzErr != nil {
		return gzErr
	}
	return fileErr
}

// ReadHeader decodes the header of the image at path, detecting byte order
// from the Dim[0] sanity range.
func ReadHeader(path string) (Header, binary.ByteOrder, error) {
	r, err := open(path)
	if err != nil {
		return Header{}, nil, err
	}
	defer r.Close()
	return decodeHeader(r, path)
}

func decodeHeader(r io.Reader, path string) (Header, binary.ByteOrder, error) {
	raw := make([]byte, headerSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return Header{}, nil, fmt.Errorf("reading header of %s: %w", path, err)
	}

	var h Header
	var order binary.ByteOrder = binary.LittleEndian
	if _, err := binary.Decode(raw, order, &h); err != nil {
		return Header{}, nil, err
	}
	if h.Dim[0] < 1 || h.Dim[0] > 7 {
		order = binary.BigEndian
		h = Header{}
		if _, err := binary.Decode(raw, order, &h); err != nil {
			return Header{}, nil, err
		}
	}
	if h.Dim[0] < 1 || h.Dim[0] > 7 {
		return Header{}, nil, fmt.Errorf("%s: dim[0] out of range, not a NIfTI-1 file", path)
	}
	if h.SizeofHdr != headerSize {
		return Header{}, nil, fmt.Errorf("%s: unexpected header size %d", path, h.SizeofHdr)
	}
	if h.Magic != [4]int8{'n', '+', '1', 0} {
		return Header{}, nil, fmt.Errorf("%s: voxel data must live in the same file as the header", path)
	}
	return h, order, nil
}

// Load reads the image at path and converts its voxel data to float64,
// applying the header's scale slope and intercept when set.
func Load(path string) (*Image, error) {
	r, err := open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	h, order, err := decodeHeader(r, path)
	if err != nil {
		return nil, err
	}

	// Skip from the end of the header to the voxel data.
	if skip := int64(h.VoxOffset) - headerSize; skip > 0 {
		if _, err := io.CopyN(io.Discard, r, skip); err != nil {
			return nil, fmt.Errorf("seeking to voxel data of %s: %w", path, err)
		}
	}

	n := 1
	for i := int16(1); i <= h.Dim[0]; i++ {
		if h.Dim[i] > 0 {
			n *= int(h.Dim[i])
		}
	}

	data := make([]float64, n)
	if err := readVoxels(r, order, h.Datatype, data); err != nil {
		return nil, fmt.Errorf("reading voxel data of %s: %w", path, err)
	}

	if h.SclSlope != 0 && (h.SclSlope != 1 || h.SclInter != 0) {
		slope, inter := float64(h.SclSlope), float64(h.SclInter)
		for i := range data {
			data[i] = data[i]*slope + inter
		}
	}

	return &Image{Header: h, Data: data}, nil
}

func readVoxels(r io.Reader, order binary.ByteOrder, datatype int16, out []float64) error {
	switch datatype {
	case DTUint8:
		buf := make([]uint8, len(out))
		if err := binary.Read(r, order, buf); err != nil {
			return err
		}
		for i, v := range buf {
			out[i] = float64(v)
		}
	case DTInt16:
		buf := make([]int16, len(out))
		if err := binary.Read(r, order, buf); err != nil {
			return err
		}
		for i, v := range buf {
			out[i] = float64(v)
		}
	case DTInt32:
		buf := make([]int32, len(out))
		if err := binary.Read(r, order, buf); err != nil {
			return err
		}
		for i, v := range buf {
			out[i] = float64(v)
		}
	case DTFloat32:
		buf := make([]float32, len(out))
		if err := binary.Read(r, order, buf); err != nil {
			return err
		}
		for i, v := range buf {
			out[i] = float64(v)
		}
	case DTFloat64:
		return binary.Read(r, order, out)
	default:
		return fmt.Errorf("unsupported datatype %d", datatype)
	}
	return nil
}

// NewImage builds a float64 image with the given extents. The affine rows
// default to identity with unit voxels; callers deriving an image from an
// existing one should copy that image's header fields instead.
func NewImage(nx, ny, nz, nt int) *Image {
	h := Header{
		SizeofHdr: headerSize,
		Datatype:  DTFloat64,
		Bitpix:    64,
		VoxOffset: voxOffset,
		SclSlope:  1,
		Magic:     [4]int8{'n', '+', '1', 0},
		QformCode: 1,
		SformCode: 1,
		SrowX:     [4]float32{1, 0, 0, 0},
		SrowY:     [4]float32{0, 1, 0, 0},
		SrowZ:     [4]float32{0, 0, 1, 0},
	}
	h.Pixdim = [8]float32{1, 1, 1, 1, 1, 0, 0, 0}
	if nt > 1 {
		h.Dim = [8]int16{4, int16(nx), int16(ny), int16(nz), int16(nt), 1, 1, 1}
	} else {
		h.Dim = [8]int16{3, int16(nx), int16(ny), int16(nz), 1, 1, 1, 1}
	}
	return &Image{Header: h, Data: make([]float64, nx*ny*nz*nt)}
}

// Derive builds a new 3-D image carrying over the source image's spatial
// header (affine, voxel sizes) so the result stays aligned with its parent.
func Derive(src *Image, data []float64) *Image {
	nx, ny, nz, _ := src.Dims()
	img := NewImage(nx, ny, nz, 1)
	h := &img.Header
	h.Pixdim = src.Header.Pixdim
	h.QformCode = src.Header.QformCode
	h.SformCode = src.Header.SformCode
	h.QuaternB = src.Header.QuaternB
	h.QuaternC = src.Header.QuaternC
	h.QuaternD = src.Header.QuaternD
	h.QoffsetX = src.Header.QoffsetX
	h.QoffsetY = src.Header.QoffsetY
	h.QoffsetZ = src.Header.QoffsetZ
	h.SrowX = src.Header.SrowX
	h.SrowY = src.Header.SrowY
	h.SrowZ = src.Header.SrowZ
	h.XyztUnits = src.Header.XyztUnits
	img.Data = data
	return img
}

// Save writes the image to path as little-endian float64 voxels, gzipping
// when the path ends in .gz.
func Save(img *Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	var w io.Writer = f
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(f)
		w = gz
	}

	h := img.Header
	h.SizeofHdr = headerSize
	h.Datatype = DTFloat64
	h.Bitpix = 64
	h.VoxOffset = voxOffset
	h.SclSlope = 1
	h.SclInter = 0
	h.Magic = [4]int8{'n', '+', '1', 0}

	order := binary.LittleEndian
	if err := binary.Write(w, order, &h); err != nil {
		f.Close()
		return fmt.Errorf("writing header of %s: %w", path, err)
	}
	// Extension flag: no header extensions follow.
	if _, err := w.Write([]byte{0, 0, 0, 0}); err != nil {
		f.Close()
		return err
	}
	if err := binary.Write(w, order, img.Data); err != nil {
		f.Close()
		return fmt.Errorf("writing voxel data of %s: %w", path, err)
	}

	if gz != nil {
		if err := gz.Close(); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}
