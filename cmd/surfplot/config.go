package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/soypat/surfplot"
	"github.com/soypat/surfplot/figure"
)

// Config holds the options shared by all subcommands. It is read from the
// --config file and then overridden by flags set on the command line.
type Config struct {
	Color       []float64 `yaml:"color"`
	Alpha       *float64  `yaml:"alpha"`
	Overlay     string    `yaml:"overlay"`
	Thresh      []float64 `yaml:"thresh"`
	CRange      []float64 `yaml:"crange"`
	CMap        string    `yaml:"cmap"`
	Spacing     []float64 `yaml:"spacing"`
	Width       int       `yaml:"width"`
	Height      int       `yaml:"height"`
	Supersample int       `yaml:"supersample"`
	Azimuth     *float64  `yaml:"azimuth"`
	Elevation   *float64  `yaml:"elevation"`
}

// LoadConfig reads a YAML config file. An empty path gives an empty config.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

// Resolve fills unset display fields with defaults.
func (c *Config) Resolve() {
	if c.Width <= 0 {
		c.Width = 560
	}
	if c.Height <= 0 {
		c.Height = 420
	}
	if c.Supersample <= 0 {
		c.Supersample = 2
	}
	if c.Azimuth == nil {
		az := float64(figure.DefaultAzimuth)
		c.Azimuth = &az
	}
	if c.Elevation == nil {
		el := float64(figure.DefaultElevation)
		c.Elevation = &el
	}
	if len(c.Spacing) == 0 {
		c.Spacing = []float64{1, 1, 1}
	}
}

// Options converts the config to plot options.
func (c *Config) Options() (surfplot.Options, error) {
	var pairs []any
	if c.Color != nil {
		pairs = append(pairs, "color", c.Color)
	}
	if c.Alpha != nil {
		pairs = append(pairs, "alpha", *c.Alpha)
	}
	if c.Overlay != "" {
		pairs = append(pairs, "overlay", c.Overlay)
	}
	if c.Thresh != nil {
		pairs = append(pairs, "thresh", c.Thresh)
	}
	if c.CRange != nil {
		pairs = append(pairs, "crange", c.CRange)
	}
	if c.CMap != "" {
		pairs = append(pairs, "cmap", c.CMap)
	}
	return surfplot.ParsePairs(pairs...)
}

func addOptionFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64Slice("color", nil, "Surface RGB color in [0,1], e.g. 0.8,0.6,0.6")
	f.Float64("alpha", 1, "Surface opacity in [0,1]")
	f.String("overlay", "", "Scalar volume used to color the surface")
	f.Float64Slice("thresh", nil, "Iso level or min,max range for non-binary volumes")
	f.Float64Slice("crange", nil, "Overlay min,max mapped onto the color map")
	f.String("cmap", "", "Overlay color map: "+strings.Join(colormapNames(), ", "))
	f.Float64Slice("spacing", nil, "Voxel spacing x,y,z for image slice directories")
	f.StringP("out", "o", "", "Output file")
}

func addViewFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntSlice("size", nil, "Image width,height in pixels")
	f.Int("supersample", 0, "Supersampling factor for antialiasing")
	f.Float64("az", figure.DefaultAzimuth, "View azimuth in degrees")
	f.Float64("el", figure.DefaultElevation, "View elevation in degrees")
}

// configFromFlags loads the --config file and applies flags set by the user.
func configFromFlags(cmd *cobra.Command) (Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := LoadConfig(path)
	if err != nil {
		return cfg, err
	}
	f := cmd.Flags()
	changed := func(name string) bool {
		return f.Lookup(name) != nil && f.Changed(name)
	}
	if changed("color") {
		cfg.Color, _ = f.GetFloat64Slice("color")
	}
	if changed("alpha") {
		alpha, _ := f.GetFloat64("alpha")
		cfg.Alpha = &alpha
	}
	if changed("overlay") {
		cfg.Overlay, _ = f.GetString("overlay")
	}
	if changed("thresh") {
		cfg.Thresh, _ = f.GetFloat64Slice("thresh")
	}
	if changed("crange") {
		cfg.CRange, _ = f.GetFloat64Slice("crange")
	}
	if changed("cmap") {
		cfg.CMap, _ = f.GetString("cmap")
	}
	if changed("spacing") {
		cfg.Spacing, _ = f.GetFloat64Slice("spacing")
	}
	if changed("size") {
		size, _ := f.GetIntSlice("size")
		if len(size) != 2 {
			return cfg, fmt.Errorf("--size needs width,height, got %v", size)
		}
		cfg.Width, cfg.Height = size[0], size[1]
	}
	if changed("supersample") {
		cfg.Supersample, _ = f.GetInt("supersample")
	}
	if changed("az") {
		az, _ := f.GetFloat64("az")
		cfg.Azimuth = &az
	}
	if changed("el") {
		el, _ := f.GetFloat64("el")
		cfg.Elevation = &el
	}
	cfg.Resolve()
	if len(cfg.Spacing) != 3 {
		return cfg, fmt.Errorf("spacing needs 3 values, got %v", cfg.Spacing)
	}
	return cfg, nil
}
