package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/soypat/surfplot"
	"github.com/soypat/surfplot/figure"
)

var renderCmd = &cobra.Command{
	Use:   "render <volume|mesh.stl>",
	Short: "Render a surface to a PNG or WebP image",
	Long: `Render extracts the surface of a segmentation volume, or reads an STL mesh,
and draws it lit into an image. The output format follows the --out
extension (.png or .webp).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFromFlags(cmd)
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = strings.TrimSuffix(filepath.Base(args[0]), ".gz")
			out = strings.TrimSuffix(out, filepath.Ext(out)) + ".png"
		}
		return runRender(args[0], out, cfg)
	},
}

func init() {
	addOptionFlags(renderCmd)
	addViewFlags(renderCmd)
	rootCmd.AddCommand(renderCmd)
}

func runRender(input, out string, cfg Config) error {
	start := time.Now()
	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	src, err := openInput(input)
	if err != nil {
		return err
	}
	logger := log.With().Str("input", filepath.Base(input)).Logger()
	display := figure.NewDisplay(
		figure.WithSize(cfg.Width, cfg.Height),
		figure.WithSupersample(cfg.Supersample),
		figure.WithLogger(logger),
	)
	// Open the figure here so the light is placed for the requested view.
	fig := display.NewFigure()
	fig.SetView(*cfg.Azimuth, *cfg.Elevation)
	opts.NewFig = false
	p := surfplot.Plotter{Display: display, Builder: newBuilder(cfg), Log: &logger}
	_, m, err := p.PlotOptions(src, opts)
	if err != nil {
		return err
	}
	fig.CamLight()
	switch ext := strings.ToLower(filepath.Ext(out)); ext {
	case ".png":
		err = fig.SavePNG(out)
	case ".webp":
		err = fig.SaveWebP(out)
	default:
		return fmt.Errorf("unsupported output format %q", ext)
	}
	if err != nil {
		return err
	}
	logger.Info().Str("out", out).Int("vertices", len(m.Vertices)).Int("triangles", len(m.Faces)).
		Dur("elapsed", time.Since(start)).Msg("rendered surface")
	return nil
}
