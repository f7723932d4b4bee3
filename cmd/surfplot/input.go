package main

import (
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/soypat/surfplot/colormap"
	"github.com/soypat/surfplot/mesh"
	"github.com/soypat/surfplot/volume"
)

func colormapNames() []string { return colormap.Names() }

// newBuilder returns a mesh builder that loads image slice directories with
// the configured voxel spacing.
func newBuilder(cfg Config) mesh.Builder {
	spacing := r3.Vec{X: cfg.Spacing[0], Y: cfg.Spacing[1], Z: cfg.Spacing[2]}
	return mesh.Builder{Load: func(ref any) (*volume.Volume, error) {
		if path, ok := ref.(string); ok {
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				return volume.LoadSlices(path, spacing)
			}
		}
		return volume.Resolve(ref)
	}}
}

// openInput returns the plot source for path: a mesh for STL files and the
// path itself for volumes, which the builder loads.
func openInput(path string) (any, error) {
	if strings.EqualFold(filepath.Ext(path), ".stl") {
		return mesh.LoadSTL(path)
	}
	return path, nil
}
