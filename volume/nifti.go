package volume

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"gonum.org/v1/gonum/spatial/r3"
)

// NIfTI-1 header layout. Only the fields a scalar volume needs are decoded.
const (
	niftiHeaderSize = 348
	niftiOffDim     = 40
	niftiOffType    = 70
	niftiOffBitpix  = 72
	niftiOffPixdim  = 76
	niftiOffVoxOff  = 108
	niftiOffSlope   = 112
	niftiOffInter   = 116
	niftiOffSform   = 254
	niftiOffSrowX   = 280
	niftiOffMagic   = 344
)

// MaxVoxels bounds the voxel count ReadNIfTI accepts from a header.
const MaxVoxels = 1 << 28

// NIfTI-1 datatype codes.
const (
	dtUint8   = 2
	dtInt16   = 4
	dtInt32   = 8
	dtFloat32 = 16
	dtFloat64 = 64
	dtInt8    = 256
	dtUint16  = 512
	dtUint32  = 768
)

// LoadNIfTI reads a single-file NIfTI-1 volume (.nii or .nii.gz).
func LoadNIfTI(path string) (*Volume, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	v, err := ReadNIfTI(fp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return v, nil
}

// ReadNIfTI decodes a NIfTI-1 stream. Gzip compressed streams are detected
// by their magic bytes.
func ReadNIfTI(r io.Reader) (*Volume, error) {
	br := bufio.NewReader(r)
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %v", ErrFormat, err)
		}
		defer zr.Close()
		br = bufio.NewReader(zr)
	}
	var hdr [niftiHeaderSize]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrFormat, err)
	}
	var bo binary.ByteOrder = binary.LittleEndian
	if bo.Uint32(hdr[:]) != niftiHeaderSize {
		bo = binary.BigEndian
		if bo.Uint32(hdr[:]) != niftiHeaderSize {
			return nil, fmt.Errorf("%w: sizeof_hdr is not %d", ErrFormat, niftiHeaderSize)
		}
	}
	magic := string(hdr[niftiOffMagic : niftiOffMagic+3])
	if magic != "n+1" {
		return nil, fmt.Errorf("%w: magic %q, only single file NIfTI-1 supported", ErrFormat, magic)
	}
	i16 := func(off int) int { return int(int16(bo.Uint16(hdr[off:]))) }
	f32 := func(off int) float64 { return float64(math.Float32frombits(bo.Uint32(hdr[off:]))) }

	ndim := i16(niftiOffDim)
	if ndim < 1 || ndim > 7 {
		return nil, fmt.Errorf("%w: dim[0]=%d", ErrFormat, ndim)
	}
	dims := [3]int{1, 1, 1}
	for d := 0; d < 3 && d < ndim; d++ {
		dims[d] = i16(niftiOffDim + 2*(d+1))
		if dims[d] <= 0 {
			return nil, fmt.Errorf("%w: dim[%d]=%d", ErrFormat, d+1, dims[d])
		}
	}
	for d := 3; d < ndim; d++ {
		if n := i16(niftiOffDim + 2*(d+1)); n > 1 {
			return nil, fmt.Errorf("%w: %d-dimensional images unsupported", ErrFormat, ndim)
		}
	}
	spacing := r3.Vec{X: 1, Y: 1, Z: 1}
	for d, dst := range []*float64{&spacing.X, &spacing.Y, &spacing.Z} {
		if p := math.Abs(f32(niftiOffPixdim + 4*(d+1))); p > 0 {
			*dst = p
		}
	}
	var origin r3.Vec
	if i16(niftiOffSform) > 0 {
		origin = r3.Vec{
			X: f32(niftiOffSrowX + 12),
			Y: f32(niftiOffSrowX + 16 + 12),
			Z: f32(niftiOffSrowX + 32 + 12),
		}
	}
	datatype := i16(niftiOffType)
	size, decode := niftiDecoder(datatype, bo)
	if decode == nil {
		return nil, fmt.Errorf("%w: unsupported datatype %d", ErrFormat, datatype)
	}
	if bitpix := i16(niftiOffBitpix); bitpix != 0 && bitpix != 8*size {
		return nil, fmt.Errorf("%w: bitpix %d does not match datatype %d", ErrFormat, bitpix, datatype)
	}
	voxOffset := int(f32(niftiOffVoxOff))
	if voxOffset < niftiHeaderSize {
		voxOffset = niftiHeaderSize
	}
	if _, err := io.CopyN(io.Discard, br, int64(voxOffset-niftiHeaderSize)); err != nil {
		return nil, fmt.Errorf("%w: skipping extensions: %v", ErrFormat, err)
	}

	n := dims[0] * dims[1] * dims[2]
	if n > MaxVoxels {
		return nil, fmt.Errorf("%w: %dx%dx%d volume exceeds %d voxels", ErrFormat, dims[0], dims[1], dims[2], MaxVoxels)
	}
	// The buffer grows as data arrives so a lying header on a short stream
	// fails before the full size is allocated.
	var buf bytes.Buffer
	if got, err := io.CopyN(&buf, br, int64(n*size)); err != nil {
		return nil, fmt.Errorf("%w: reading %d voxels: got %d of %d bytes: %v", ErrFormat, n, got, n*size, err)
	}
	raw := buf.Bytes()
	slope, inter := f32(niftiOffSlope), f32(niftiOffInter)
	data := make([]float64, n)
	for i := range data {
		val := decode(raw[i*size:])
		if slope != 0 && !math.IsNaN(slope) {
			val = val*slope + inter
		}
		data[i] = val
	}
	return &Volume{Dims: dims, Spacing: spacing, Origin: origin, Data: data}, nil
}

func niftiDecoder(datatype int, bo binary.ByteOrder) (size int, decode func([]byte) float64) {
	switch datatype {
	case dtUint8:
		return 1, func(b []byte) float64 { return float64(b[0]) }
	case dtInt8:
		return 1, func(b []byte) float64 { return float64(int8(b[0])) }
	case dtInt16:
		return 2, func(b []byte) float64 { return float64(int16(bo.Uint16(b))) }
	case dtUint16:
		return 2, func(b []byte) float64 { return float64(bo.Uint16(b)) }
	case dtInt32:
		return 4, func(b []byte) float64 { return float64(int32(bo.Uint32(b))) }
	case dtUint32:
		return 4, func(b []byte) float64 { return float64(bo.Uint32(b)) }
	case dtFloat32:
		return 4, func(b []byte) float64 { return float64(math.Float32frombits(bo.Uint32(b))) }
	case dtFloat64:
		return 8, func(b []byte) float64 { return math.Float64frombits(bo.Uint64(b)) }
	}
	return 0, nil
}

// WriteNIfTI writes v as a little endian float32 NIfTI-1 single file.
// The origin is stored in the sform translation.
func WriteNIfTI(w io.Writer, v *Volume) error {
	if err := v.Validate(); err != nil {
		return err
	}
	var hdr [niftiHeaderSize + 4]byte // header plus empty extension block
	bo := binary.LittleEndian
	p16 := func(off, val int) { bo.PutUint16(hdr[off:], uint16(int16(val))) }
	p32 := func(off int, val float64) { bo.PutUint32(hdr[off:], math.Float32bits(float32(val))) }
	bo.PutUint32(hdr[:], niftiHeaderSize)
	p16(niftiOffDim, 3)
	for d := 0; d < 3; d++ {
		p16(niftiOffDim+2*(d+1), v.Dims[d])
	}
	for d := 4; d < 8; d++ {
		p16(niftiOffDim+2*d, 1)
	}
	p16(niftiOffType, dtFloat32)
	p16(niftiOffBitpix, 32)
	p32(niftiOffPixdim, 1)
	p32(niftiOffPixdim+4, v.Spacing.X)
	p32(niftiOffPixdim+8, v.Spacing.Y)
	p32(niftiOffPixdim+12, v.Spacing.Z)
	p32(niftiOffVoxOff, niftiHeaderSize+4)
	p32(niftiOffSlope, 1)
	p16(niftiOffSform, 1)
	p32(niftiOffSrowX, v.Spacing.X)
	p32(niftiOffSrowX+12, v.Origin.X)
	p32(niftiOffSrowX+16+4, v.Spacing.Y)
	p32(niftiOffSrowX+16+12, v.Origin.Y)
	p32(niftiOffSrowX+32+8, v.Spacing.Z)
	p32(niftiOffSrowX+32+12, v.Origin.Z)
	copy(hdr[niftiOffMagic:], "n+1\x00")
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	var buf [4]byte
	for _, d := range v.Data {
		bo.PutUint32(buf[:], math.Float32bits(float32(d)))
		if _, err := bw.Write(buf[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Load reads a volume from path. Directories are read as slice stacks with
// unit spacing, .nii and .nii.gz files as NIfTI-1.
func Load(path string) (*Volume, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return LoadSlices(path, r3.Vec{X: 1, Y: 1, Z: 1})
	}
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".nii"), strings.HasSuffix(lower, ".nii.gz"):
		return LoadNIfTI(path)
	}
	return nil, fmt.Errorf("%w: unknown volume extension %q", ErrFormat, filepath.Ext(path))
}
