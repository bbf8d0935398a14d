// Package viewport computes the transform that frames a layout inside a
// canvas.
package viewport

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"
)

// Set of default fit values.
const (
	DefaultPadding    = 20
	DefaultTransition = 750 * time.Millisecond
)

// Config represents the margins and animation of a fit.
type Config struct {
	Padding    float64
	Transition time.Duration
}

// DefaultConfig returns the default padding and transition.
func DefaultConfig() Config {
	return Config{
		Padding:    DefaultPadding,
		Transition: DefaultTransition,
	}
}

// Size is the canvas size in screen units.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Transform scales then translates layout coordinates into the canvas.
// Duration is how long the presentation layer animates towards it.
type Transform struct {
	Scale      float64       `json:"scale"`
	TranslateX float64       `json:"translate_x"`
	TranslateY float64       `json:"translate_y"`
	Duration   time.Duration `json:"duration"`
}

// Apply maps a layout position into canvas coordinates.
func (t Transform) Apply(p r2.Vec) r2.Vec {
	return r2.Vec{
		X: p.X*t.Scale + t.TranslateX,
		Y: p.Y*t.Scale + t.TranslateY,
	}
}

// Fitter computes fit transforms. It holds no state between calls.
type Fitter struct {
	cfg Config
}

// New constructs a fitter.
func New(cfg Config) Fitter {
	return Fitter{cfg: cfg}
}

// Bounds returns the axis aligned box around the positions. It reports false
// when there are no positions.
func Bounds(positions map[string]r2.Vec) (r2.Box, bool) {
	if len(positions) == 0 {
		return r2.Box{}, false
	}

	xs := make([]float64, 0, len(positions))
	ys := make([]float64, 0, len(positions))
	for _, p := range positions {
		xs = append(xs, p.X)
		ys = append(ys, p.Y)
	}

	box := r2.Box{
		Min: r2.Vec{X: floats.Min(xs), Y: floats.Min(ys)},
		Max: r2.Vec{X: floats.Max(xs), Y: floats.Max(ys)},
	}

	return box, true
}

// Fit returns the transform that frames every position inside the canvas
// with the configured padding. It reports false, and the caller leaves the
// view alone, when the box has no width or no height or the canvas is not
// finite or cannot hold the padding.
func (f Fitter) Fit(positions map[string]r2.Vec, vp Size) (Transform, bool) {
	if !finite(vp.Width) || !finite(vp.Height) {
		return Transform{}, false
	}

	box, ok := Bounds(positions)
	if !ok {
		return Transform{}, false
	}

	width := box.Max.X - box.Min.X
	height := box.Max.Y - box.Min.Y
	if width == 0 || height == 0 {
		return Transform{}, false
	}

	scale := math.Min(
		(vp.Width-2*f.cfg.Padding)/width,
		(vp.Height-2*f.cfg.Padding)/height,
	)
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return Transform{}, false
	}

	t := Transform{
		Scale:      scale,
		TranslateX: (vp.Width-width*scale)/2 - box.Min.X*scale,
		TranslateY: (vp.Height-height*scale)/2 - box.Min.Y*scale,
		Duration:   f.cfg.Transition,
	}

	return t, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
