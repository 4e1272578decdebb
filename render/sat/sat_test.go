package sat_test

import (
	"testing"

	"github.com/vxcore/volcore/render/sat"
	"github.com/vxcore/volcore/volume"
)

func opaqueTF() *volume.TF {
	return &volume.TF{Pieces: []volume.Piece{{
		Level: 0.5, Window: 1, Mode: volume.Nearest, Clamped: true,
		Stops: []volume.Stop{{Value: 0, Color: volume.RGBA{A: 1}}, {Value: 1, Color: volume.RGBA{A: 1}}},
	}}}
}

func TestBoxSumMatchesBruteForce(t *testing.T) {
	const n = 8
	img := &volume.Image{Width: n, Height: n, Depth: n, WindowMin: 0, WindowMax: 1, Data: make([]float64, n*n*n)}
	for i := range img.Data {
		img.Data[i] = float64(i%3) / 2
	}
	tf := opaqueTF()
	table := sat.BuildSAT(img, tf, 1.0)

	want := 0.0
	for z := 0; z <= 3; z++ {
		for y := 0; y <= 3; y++ {
			for x := 0; x <= 3; x++ {
				want += tf.Sample(img.At(x, y, z)).A
			}
		}
	}
	if got := table.BoxSum(0, 0, 0, 3, 3, 3); got < want-1e-9 || got > want+1e-9 {
		t.Fatalf("BoxSum = %v, want %v", got, want)
	}
}

// Non-cubic volumes (the normal case for CT/MRI data, where in-plane
// resolution differs from slice count) must index the SAT's z axis by
// sat.Depth, not sat.Width: with Width != Depth a wrong axis produces
// an out-of-range or wrong-voxel lookup that a cubic fixture can never
// exercise.
func TestBuildIlluminationNonCubicVolume(t *testing.T) {
	const w, h, d = 16, 16, 4
	img := &volume.Image{Width: w, Height: h, Depth: d, WindowMin: 0, WindowMax: 1, Data: make([]float64, w*h*d)}
	tf := opaqueTF()
	table := sat.BuildSAT(img, tf, 1.0)
	vol := sat.BuildIllumination(img, table, sat.Params{SizeRatio: 1.0, Shells: 1, Radius: 1, Angle: 0.5, Samples: 2}, [3]float64{0, 0, 1})
	if len(vol.Texels) != w*h*d {
		t.Fatalf("texel count = %d, want %d", len(vol.Texels), w*h*d)
	}
	for _, c := range vol.Texels {
		if c.R < 0 || c.R > 1 || c.A < 0 || c.A > 1 {
			t.Fatalf("illumination texel out of range: %+v", c)
		}
	}
}

func TestBuildIlluminationProducesFiniteValues(t *testing.T) {
	const n = 8
	img := &volume.Image{Width: n, Height: n, Depth: n, WindowMin: 0, WindowMax: 1, Data: make([]float64, n*n*n)}
	tf := opaqueTF()
	table := sat.BuildSAT(img, tf, 0.5)
	vol := sat.BuildIllumination(img, table, sat.Params{SizeRatio: 0.5, Shells: 2, Radius: 1, Angle: 0.5, Samples: 4}, [3]float64{0, 0, 1})
	if len(vol.Texels) != n*n*n {
		t.Fatalf("texel count = %d, want %d", len(vol.Texels), n*n*n)
	}
	for _, c := range vol.Texels {
		if c.R < 0 || c.R > 1 || c.A < 0 || c.A > 1 {
			t.Fatalf("illumination texel out of range: %+v", c)
		}
	}
}
