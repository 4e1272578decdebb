// Package preint builds the pre-integration lookup table described in
// component H: a 2-D RGBA8 texture indexed by a ray segment's front
// and back sampled values, replacing per-sample transfer-function
// evaluation in the ray caster.
package preint

import (
	"math"

	"github.com/vxcore/volcore/volume"
)

// stepFactor is the fixed sampling-adjustment constant k from §4.H
// (200 in the reference implementation).
const stepFactor = 200

// Table is a built pre-integration table: an N×N grid of straight
// RGBA, row-major with b (back value) varying fastest, alongside the
// parameters it was built from.
type Table struct {
	N      int
	Cells  []volume.RGBA
	SampleDistance float64
	Min, Max float64
}

// At returns the table cell for front index f and back index b.
func (t *Table) At(f, b int) volume.RGBA { return t.Cells[f*t.N+b] }

// RGBA8 packs the table as interleaved bytes suitable for uploading to
// a 2-D RGBA8un GPU texture, N*N*4 bytes, row-major with b fastest.
func (t *Table) RGBA8() []byte {
	out := make([]byte, 0, len(t.Cells)*4)
	for _, c := range t.Cells {
		p := volume.PackRGBA8(c)
		out = append(out, p[0], p[1], p[2], p[3])
	}
	return out
}

// Build computes a Table for tf sampled at N = max-min+1 integer voxel
// values, for ray-segment length sampleDistance (the per-step sampling
// distance d_s; the table itself accounts for stepFactor internally).
func Build(tf *volume.TF, min, max float64, sampleDistance float64) *Table {
	n := int(max-min) + 1
	if n < 1 {
		n = 1
	}
	value := func(i int) float64 {
		if n <= 1 {
			return 0
		}
		return float64(i) / float64(n-1)
	}

	// Cumulative integral of the associated-color TF sample, one
	// entry per index, cum[i] = sum_{j<=i} TF(value(j)).Associated(),
	// with alpha accumulated unpremultiplied (it is already a scalar).
	cum := make([]volume.RGBA, n)
	var run volume.RGBA
	for i := 0; i < n; i++ {
		s := tf.Sample(value(i)).Associated()
		run.R += s.R
		run.G += s.G
		run.B += s.B
		run.A += s.A
		cum[i] = run
	}

	cells := make([]volume.RGBA, n*n)
	for f := 0; f < n; f++ {
		for b := 0; b < n; b++ {
			var c volume.RGBA
			if f == b {
				s := tf.Sample(value(f))
				alpha := 1 - math.Pow(1-s.A, sampleDistance*stepFactor)
				c = volume.RGBA{R: s.R, G: s.G, B: s.B, A: alpha}
			} else {
				d := sampleDistance * stepFactor / float64(b-f)
				dA := cum[b].A - cum[f].A
				dR := cum[b].R - cum[f].R
				dG := cum[b].G - cum[f].G
				dB := cum[b].B - cum[f].B
				if dA == 0 {
					c = volume.RGBA{}
				} else {
					c = volume.RGBA{
						R: (d / dA) * dR,
						G: (d / dA) * dG,
						B: (d / dA) * dB,
						A: 1 - math.Exp(-d*dA),
					}
				}
			}
			cells[f*n+b] = c.ClampUnit()
		}
	}
	return &Table{N: n, Cells: cells, SampleDistance: sampleDistance, Min: min, Max: max}
}
