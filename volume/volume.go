// Package volume defines the data model shared by the ray-casting
// components: the voxel grid (Image) and the transfer function (TF).
// The volumes derived from them (illumination, brick grid,
// pre-integration table) are built in the render packages.
package volume

import "math"

// PixelFmt names a voxel's scalar/vector encoding. It mirrors the
// subset of driver.PixelFmt meaningful for a volume image, kept
// separate from driver so volume stays independent of a GPU context.
type PixelFmt int

const (
	L8 PixelFmt = iota
	L16
	R32Sint
	RGBA8
)

// Image is a 3-D grid of voxels with physical spacing and origin, and
// a window used to map sampled values into the transfer function's
// domain.
type Image struct {
	Width, Height, Depth int
	SpacingX, SpacingY, SpacingZ float64
	OriginX, OriginY, OriginZ   float64
	Format                      PixelFmt

	// WindowMin/WindowMax map a raw voxel value to the TF domain.
	WindowMin, WindowMax float64

	// Data holds the raw voxel samples in row-major (x fastest) order,
	// one float64 per voxel regardless of Format, already normalized
	// to [Format's native range]. Real images stream this from a
	// buffer.Manager-backed region; tests construct it directly.
	Data []float64
}

// At returns the windowed scalar value of the voxel at (x,y,z),
// linearly mapped from [WindowMin,WindowMax] to [0,1] and clamped.
func (img *Image) At(x, y, z int) float64 {
	v := img.Data[(z*img.Height+y)*img.Width+x]
	span := img.WindowMax - img.WindowMin
	if span == 0 {
		return 0
	}
	w := (v - img.WindowMin) / span
	if w < 0 {
		return 0
	}
	if w > 1 {
		return 1
	}
	return w
}

// RGBA is a straight (non-premultiplied) color sample in [0,1]^4.
type RGBA struct{ R, G, B, A float64 }

// Lerp returns the linear interpolation between c and d at t in [0,1].
func (c RGBA) Lerp(d RGBA, t float64) RGBA {
	return RGBA{
		R: c.R + (d.R-c.R)*t,
		G: c.G + (d.G-c.G)*t,
		B: c.B + (d.B-c.B)*t,
		A: c.A + (d.A-c.A)*t,
	}
}

// Interp is a transfer-function piece's interpolation mode.
type Interp int

const (
	Nearest Interp = iota
	Linear
)

// Piece is one sub-domain of a transfer function: a level/window pair
// over the [0,1] windowed value, a list of (value, color) control
// points sorted by value, an interpolation mode, and a clamp flag
// controlling extrapolation outside the piece's own domain.
type Piece struct {
	Level, Window float64
	Stops         []Stop
	Mode          Interp
	Clamped       bool
}

// Stop is a transfer-function control point.
type Stop struct {
	Value float64
	Color RGBA
}

// TF is a piecewise transfer function over the windowed voxel domain
// [0,1], composed of one or more Pieces evaluated in order: the first
// piece whose domain contains the value, or that is Clamped, wins, and
// a Clamped piece evaluated outside its domain yields its edge value.
// A value matched by no piece samples as transparent black.
type TF struct {
	Pieces []Piece
}

// Sample evaluates the transfer function at windowed value v in
// [0,1], returning a straight RGBA color.
func (tf *TF) Sample(v float64) RGBA {
	for _, p := range tf.Pieces {
		lo := p.Level - p.Window/2
		hi := p.Level + p.Window/2
		if v >= lo && v <= hi || p.Clamped {
			pv := v
			if pv < lo {
				pv = lo
			} else if pv > hi {
				pv = hi
			}
			return p.sample(pv, lo, hi)
		}
	}
	return RGBA{}
}

func (p *Piece) sample(v, lo, hi float64) RGBA {
	if len(p.Stops) == 0 {
		return RGBA{}
	}
	span := hi - lo
	var t float64
	if span > 0 {
		t = (v - lo) / span
	}
	// Map t (local piece position) onto the stop list's own Value
	// domain, which callers author in [0,1] local piece space.
	if t < p.Stops[0].Value {
		return p.Stops[0].Color
	}
	last := len(p.Stops) - 1
	if t >= p.Stops[last].Value {
		return p.Stops[last].Color
	}
	for i := 0; i < last; i++ {
		a, b := p.Stops[i], p.Stops[i+1]
		if t >= a.Value && t <= b.Value {
			if p.Mode == Nearest {
				if t-a.Value < b.Value-t {
					return a.Color
				}
				return b.Color
			}
			span := b.Value - a.Value
			if span == 0 {
				return a.Color
			}
			return a.Color.Lerp(b.Color, (t-a.Value)/span)
		}
	}
	return p.Stops[last].Color
}

// Associated returns c with RGB premultiplied by alpha, the form used
// by pre-integration's cumulative-integral construction.
func (c RGBA) Associated() RGBA {
	return RGBA{R: c.R * c.A, G: c.G * c.A, B: c.B * c.A, A: c.A}
}

// ClampUnit clamps every channel of c to [0,1].
func (c RGBA) ClampUnit() RGBA {
	clamp := func(x float64) float64 {
		if x < 0 {
			return 0
		}
		if x > 1 {
			return 1
		}
		return x
	}
	return RGBA{R: clamp(c.R), G: clamp(c.G), B: clamp(c.B), A: clamp(c.A)}
}

// PackRGBA8 packs c into four bytes, rounding each channel.
func PackRGBA8(c RGBA) [4]byte {
	conv := func(x float64) byte {
		return byte(math.Round(x * 255))
	}
	return [4]byte{conv(c.R), conv(c.G), conv(c.B), conv(c.A)}
}
