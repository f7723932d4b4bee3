package surfplot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/soypat/surfplot/colormap"
)

// ErrOption is wrapped by errors from ParsePairs and Legacy.
var ErrOption = errors.New("surfplot: bad option")

// Options configures a surface plot. Values are not range checked.
type Options struct {
	// Color is the RGB surface color in [0,1], used when the mesh carries
	// no per-vertex colors.
	Color [3]float64
	// Alpha is the surface opacity. 0 is invisible and 1 opaque.
	Alpha float64
	// Overlay references a scalar volume used to color the surface. It is
	// handed to the mesh builder.
	Overlay any
	// Thresh is empty, a single iso level or a [min, max] range.
	Thresh []float64
	// CRange is the [min, max] overlay range mapped onto CMap.
	CRange []float64
	// CMap names the overlay color map.
	CMap string
	// NewFig opens a new figure before drawing. Otherwise the current
	// figure is drawn into.
	NewFig bool
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		Color:  [3]float64{0.8, 0.8, 0.8},
		Alpha:  1,
		CMap:   colormap.Default,
		NewFig: true,
	}
}

// Option modifies Options.
type Option func(*Options)

// NewOptions applies opts on top of DefaultOptions.
func NewOptions(opts ...Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func WithColor(r, g, b float64) Option {
	return func(o *Options) { o.Color = [3]float64{r, g, b} }
}

func WithAlpha(alpha float64) Option {
	return func(o *Options) { o.Alpha = alpha }
}

func WithOverlay(overlay any) Option {
	return func(o *Options) { o.Overlay = overlay }
}

// WithThresh sets a single iso level or a [min, max] range.
func WithThresh(thresh ...float64) Option {
	return func(o *Options) { o.Thresh = append([]float64(nil), thresh...) }
}

func WithCRange(lo, hi float64) Option {
	return func(o *Options) { o.CRange = []float64{lo, hi} }
}

func WithCMap(name string) Option {
	return func(o *Options) { o.CMap = name }
}

func WithNewFig(newfig bool) Option {
	return func(o *Options) { o.NewFig = newfig }
}

// pairs mirrors Options with pointers so absent keys keep their defaults.
type pairs struct {
	Color   []float64 `mapstructure:"color"`
	Alpha   *float64  `mapstructure:"alpha"`
	Overlay any       `mapstructure:"overlay"`
	Thresh  []float64 `mapstructure:"thresh"`
	CRange  []float64 `mapstructure:"crange"`
	CMap    *string   `mapstructure:"cmap"`
	NewFig  *bool     `mapstructure:"newfig"`
}

var optionNames = map[string]bool{
	"color": true, "alpha": true, "overlay": true, "thresh": true,
	"crange": true, "cmap": true, "newfig": true,
}

// ParsePairs builds Options from alternating names and values, as in
//
//	ParsePairs("alpha", 0.5, "thresh", 0.3, "newfig", false)
//
// Names are case insensitive. Values are converted loosely so "0.5", 1 and
// true are accepted where numbers or booleans are expected and a single
// number is accepted for thresh.
func ParsePairs(args ...any) (Options, error) {
	o := DefaultOptions()
	if len(args)%2 != 0 {
		return o, fmt.Errorf("%w: odd number of name/value arguments", ErrOption)
	}
	raw := make(map[string]any, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		name, ok := args[i].(string)
		if !ok {
			return o, fmt.Errorf("%w: argument %d: option name must be string, got %T", ErrOption, i, args[i])
		}
		key := strings.ToLower(name)
		if !optionNames[key] {
			return o, fmt.Errorf("%w: unknown option %q", ErrOption, name)
		}
		raw[key] = args[i+1]
	}
	var p pairs
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &p,
	})
	if err != nil {
		return o, err
	}
	if err := dec.Decode(raw); err != nil {
		return o, fmt.Errorf("%w: %v", ErrOption, err)
	}
	if p.Color != nil {
		if len(p.Color) != 3 {
			return o, fmt.Errorf("%w: color needs 3 components, got %d", ErrOption, len(p.Color))
		}
		copy(o.Color[:], p.Color)
	}
	if p.Alpha != nil {
		o.Alpha = *p.Alpha
	}
	if p.Overlay != nil {
		o.Overlay = p.Overlay
	}
	if p.Thresh != nil {
		o.Thresh = p.Thresh
	}
	if p.CRange != nil {
		o.CRange = p.CRange
	}
	if p.CMap != nil {
		o.CMap = *p.CMap
	}
	if p.NewFig != nil {
		o.NewFig = *p.NewFig
	}
	return o, nil
}

// Legacy builds Options from the positional argument form. A nil argument
// leaves the corresponding option at its default.
func Legacy(color, alpha, overlay, thresh, crange, cmap, newfig any) (Options, error) {
	var args []any
	for _, kv := range []struct {
		name string
		val  any
	}{
		{"color", color}, {"alpha", alpha}, {"overlay", overlay}, {"thresh", thresh},
		{"crange", crange}, {"cmap", cmap}, {"newfig", newfig},
	} {
		if kv.val != nil {
			args = append(args, kv.name, kv.val)
		}
	}
	return ParsePairs(args...)
}
