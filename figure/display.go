// Package figure draws lit triangle patches into offscreen figures.
//
// A Display keeps the list of open figures and which of them is current,
// the way an interactive plotting session does. Figures are rasterized
// headless with fauxgl and can be saved as PNG or WebP.
package figure

import (
	"sync"

	"github.com/rs/zerolog"
)

const (
	defaultWidth       = 560
	defaultHeight      = 420
	defaultSupersample = 2
)

// Display is the registry of open figures. It is safe for concurrent use.
type Display struct {
	mu          sync.Mutex
	width       int
	height      int
	supersample int
	log         zerolog.Logger
	figures     []*Figure
	current     *Figure
	next        int
}

// Option configures a Display.
type Option func(*Display)

// WithSize sets the pixel size of new figures.
func WithSize(width, height int) Option {
	if width <= 0 || height <= 0 {
		panic("figure size must be positive")
	}
	return func(d *Display) {
		d.width, d.height = width, height
	}
}

// WithSupersample renders figures at n times their size and downsamples
// the result for antialiasing. n=1 disables supersampling.
func WithSupersample(n int) Option {
	if n < 1 {
		panic("supersample factor must be at least 1")
	}
	return func(d *Display) { d.supersample = n }
}

// WithLogger sets the logger used by the display and its figures.
func WithLogger(log zerolog.Logger) Option {
	return func(d *Display) { d.log = log }
}

// NewDisplay returns a display with no figures open.
func NewDisplay(opts ...Option) *Display {
	d := &Display{
		width:       defaultWidth,
		height:      defaultHeight,
		supersample: defaultSupersample,
		log:         zerolog.Nop(),
		next:        1,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewFigure opens a new empty figure and makes it current.
func (d *Display) NewFigure() *Figure {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.newFigure()
}

func (d *Display) newFigure() *Figure {
	f := newFigure(d.next, d.width, d.height, d.supersample)
	f.log = d.log.With().Int("figure", f.Number).Logger()
	d.next++
	d.figures = append(d.figures, f)
	d.current = f
	d.log.Debug().Int("figure", f.Number).Int("open", len(d.figures)).Msg("new figure")
	return f
}

// Current returns the current figure, opening one if none is open.
func (d *Display) Current() *Figure {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return d.newFigure()
	}
	return d.current
}

// Figures returns the open figures in the order they were created.
func (d *Display) Figures() []*Figure {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Figure(nil), d.figures...)
}

// Close removes f from the display. If f was current the most recently
// opened remaining figure becomes current.
func (d *Display) Close(f *Figure) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, fig := range d.figures {
		if fig != f {
			continue
		}
		d.figures = append(d.figures[:i], d.figures[i+1:]...)
		if d.current == f {
			d.current = nil
			if n := len(d.figures); n > 0 {
				d.current = d.figures[n-1]
			}
		}
		d.log.Debug().Int("figure", f.Number).Msg("closed figure")
		return
	}
}
