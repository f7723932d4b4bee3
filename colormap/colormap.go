// Package colormap maps scalar values to colors using the gonum/plot palettes.
package colormap

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
)

// Default is the color map used when no name is given.
const Default = "bluered"

var (
	// ErrUnknown is returned when a color map name is not registered.
	ErrUnknown = errors.New("colormap: unknown color map")
	// ErrRange is returned when a color range does not have two values.
	ErrRange = errors.New("colormap: color range must have 2 values")
)

// Map maps a normalized value t in [0,1] to a color.
type Map interface {
	At(t float64) color.NRGBA
}

var continuous = map[string]func() palette.ColorMap{
	"bluered":           func() palette.ColorMap { return moreland.SmoothBlueRed() },
	"purpleorange":      func() palette.ColorMap { return moreland.SmoothPurpleOrange() },
	"greenpurple":       func() palette.ColorMap { return moreland.SmoothGreenPurple() },
	"bluetan":           func() palette.ColorMap { return moreland.SmoothBlueTan() },
	"greenred":          func() palette.ColorMap { return moreland.SmoothGreenRed() },
	"blackbody":         func() palette.ColorMap { return moreland.BlackBody() },
	"extendedblackbody": func() palette.ColorMap { return moreland.ExtendedBlackBody() },
	"kindlmann":         func() palette.ColorMap { return moreland.Kindlmann() },
	"extendedkindlmann": func() palette.ColorMap { return moreland.ExtendedKindlmann() },
}

const discreteColors = 256

var discrete = map[string]func() palette.Palette{
	"heat": func() palette.Palette { return palette.Heat(discreteColors, 1) },
	// Hue runs from blue (4/6) down to red (0).
	"rainbow": func() palette.Palette { return palette.Rainbow(discreteColors, 4.0/6.0, 0, 1, 1, 1) },
}

// Names returns the registered color map names in sorted order.
func Names() []string {
	names := make([]string, 0, len(continuous)+len(discrete))
	for name := range continuous {
		names = append(names, name)
	}
	for name := range discrete {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the color map registered under name. Names are case
// insensitive and the empty name selects Default.
func Lookup(name string) (Map, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = Default
	}
	if fn, ok := continuous[key]; ok {
		cm := fn()
		cm.SetMin(0)
		cm.SetMax(1)
		return continuousMap{cm: cm}, nil
	}
	if fn, ok := discrete[key]; ok {
		return discreteMap{colors: fn().Colors()}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
}

// Apply colors values with the named map. crange gives the values mapped to
// the lowest and highest colors. When crange is empty the minimum and maximum
// of values are used. Values outside the range are clamped.
func Apply(values, crange []float64, name string) ([]color.NRGBA, error) {
	m, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	var lo, hi float64
	switch len(crange) {
	case 0:
		lo, hi = floats.Min(values), floats.Max(values)
	case 2:
		lo, hi = crange[0], crange[1]
	default:
		return nil, fmt.Errorf("%w, got %d", ErrRange, len(crange))
	}
	colors := make([]color.NRGBA, len(values))
	for i, v := range values {
		colors[i] = m.At(Normalize(v, lo, hi))
	}
	return colors, nil
}

// Normalize maps v linearly so lo gives 0 and hi gives 1, clamped to [0,1].
// A degenerate range or NaN value maps to 0.
func Normalize(v, lo, hi float64) float64 {
	if hi == lo || math.IsNaN(v) {
		return 0
	}
	return clamp01((v - lo) / (hi - lo))
}

func clamp01(t float64) float64 {
	if math.IsNaN(t) {
		return 0
	}
	return math.Max(0, math.Min(1, t))
}

type continuousMap struct {
	cm palette.ColorMap
}

func (m continuousMap) At(t float64) color.NRGBA {
	t = clamp01(t)
	c, err := m.cm.At(t)
	if err != nil {
		c, _ = m.cm.At(0)
	}
	return color.NRGBAModel.Convert(c).(color.NRGBA)
}

type discreteMap struct {
	colors []color.Color
}

func (m discreteMap) At(t float64) color.NRGBA {
	i := int(math.Round(clamp01(t) * float64(len(m.colors)-1)))
	if i < 0 || i >= len(m.colors) {
		i = 0
	}
	return color.NRGBAModel.Convert(m.colors[i]).(color.NRGBA)
}
