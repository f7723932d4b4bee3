package volume

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/ftrvxmtrx/tga"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	"gonum.org/v1/gonum/spatial/r3"
)

var sliceExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true,
	".bmp": true, ".tif": true, ".tiff": true, ".tga": true,
}

// LoadSlices stacks the 2D images in dir along z in file name order.
// Pixel x maps to i and pixel y to j. Voxel values are gray luminance
// scaled to [0,1], so a black and white mask loads as a binary volume.
func LoadSlices(dir string, spacing r3.Vec) (*Volume, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !sliceExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no image slices in %s", ErrFormat, dir)
	}
	sort.Strings(names)
	slices := make([]image.Image, len(names))
	for i, name := range names {
		slices[i], err = decodeSlice(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
	}
	return FromSlices(slices, spacing)
}

// FromSlices stacks images of equal size into a volume.
func FromSlices(slices []image.Image, spacing r3.Vec) (*Volume, error) {
	if len(slices) == 0 {
		return nil, fmt.Errorf("%w: no slices", ErrFormat)
	}
	b0 := slices[0].Bounds()
	v := New(b0.Dx(), b0.Dy(), len(slices))
	v.Spacing = spacing
	for k, img := range slices {
		b := img.Bounds()
		if b.Dx() != b0.Dx() || b.Dy() != b0.Dy() {
			return nil, fmt.Errorf("%w: slice %d is %dx%d, want %dx%d", ErrFormat, k, b.Dx(), b.Dy(), b0.Dx(), b0.Dy())
		}
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				g := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
				v.Set(x-b.Min.X, y-b.Min.Y, k, float64(g.Y)/0xffff)
			}
		}
	}
	return v, v.Validate()
}

func decodeSlice(path string) (image.Image, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	img, _, err := image.Decode(fp)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrFormat, filepath.Base(path), err)
	}
	return img, nil
}
