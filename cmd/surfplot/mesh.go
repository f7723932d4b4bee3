package main

import (
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/soypat/surfplot/mesh"
)

var meshCmd = &cobra.Command{
	Use:   "mesh <volume>",
	Short: "Extract the surface of a segmentation to an STL file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFromFlags(cmd)
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = strings.TrimSuffix(filepath.Base(args[0]), ".gz")
			out = strings.TrimSuffix(out, filepath.Ext(out)) + ".stl"
		}
		return runMesh(args[0], out, cfg)
	},
}

func init() {
	addOptionFlags(meshCmd)
	rootCmd.AddCommand(meshCmd)
}

func runMesh(input, out string, cfg Config) error {
	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	m, err := newBuilder(cfg).Build(input, mesh.BuildConfig{
		Thresh:  opts.Thresh,
		Overlay: opts.Overlay,
		CRange:  opts.CRange,
		CMap:    opts.CMap,
	})
	if err != nil {
		return err
	}
	if err := m.SaveSTL(out); err != nil {
		return err
	}
	log.Info().Str("out", out).Int("vertices", len(m.Vertices)).Int("triangles", len(m.Faces)).Msg("wrote mesh")
	return nil
}
