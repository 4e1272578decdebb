package preint_test

import (
	"math"
	"testing"

	"github.com/vxcore/volcore/render/preint"
	"github.com/vxcore/volcore/volume"
)

func rampTF() *volume.TF {
	return &volume.TF{Pieces: []volume.Piece{{
		Level: 0.5, Window: 1, Mode: volume.Linear, Clamped: true,
		Stops: []volume.Stop{
			{Value: 0, Color: volume.RGBA{R: 0, A: 0}},
			{Value: 1, Color: volume.RGBA{R: 1, A: 1}},
		},
	}}}
}

// P9: for every (f,b) with f == b, the cell equals the TF sample at f
// composited with 1 - (1-alpha)^(d_s*k).
func TestDiagonalMatchesTFSample(t *testing.T) {
	tf := rampTF()
	const n = 16
	const ds = 0.01
	tbl := preint.Build(tf, 0, n-1, ds)

	for i := 0; i < tbl.N; i++ {
		v := float64(i) / float64(tbl.N-1)
		want := tf.Sample(v)
		wantAlpha := 1 - math.Pow(1-want.A, ds*200)
		got := tbl.At(i, i)
		if math.Abs(got.R-want.R) > 1e-6 || math.Abs(got.A-wantAlpha) > 1e-6 {
			t.Fatalf("cell(%d,%d) = %+v, want R=%v A=%v", i, i, got, want.R, wantAlpha)
		}
	}
}

// Off-diagonal cells use the signed ratio d = d_s*k/(b-f) (§4.H), not
// its absolute value: for a non-cubic (f,b) pair, swapping f and b
// must flip the sign of d and, with it, the sign of dA==cum[b]-cum[f]
// and the quantity fed to 1-exp(-d*dA). This exercises both f<b and
// f>b against the formula directly, the case a symmetric math.Abs
// would get wrong for one of the two orderings.
func TestOffDiagonalUsesSignedRatio(t *testing.T) {
	tf := rampTF()
	const n = 9
	const ds = 0.1
	tbl := preint.Build(tf, 0, n-1, ds)

	value := func(i int) float64 { return float64(i) / float64(n-1) }
	cum := make([]volume.RGBA, n)
	var run volume.RGBA
	for i := 0; i < n; i++ {
		s := tf.Sample(value(i)).Associated()
		run.R += s.R
		run.A += s.A
		cum[i] = run
	}

	expect := func(f, b int) volume.RGBA {
		d := ds * 200 / float64(b-f)
		dA := cum[b].A - cum[f].A
		dR := cum[b].R - cum[f].R
		if dA == 0 {
			return volume.RGBA{}
		}
		return volume.RGBA{R: (d / dA) * dR, A: 1 - math.Exp(-d*dA)}.ClampUnit()
	}

	for _, pair := range [][2]int{{2, 5}, {5, 2}} {
		f, b := pair[0], pair[1]
		want := expect(f, b)
		got := tbl.At(f, b)
		if math.Abs(got.R-want.R) > 1e-9 || math.Abs(got.A-want.A) > 1e-9 {
			t.Fatalf("cell(%d,%d) = %+v, want %+v", f, b, got, want)
		}
	}

	// d*dA is invariant under swapping f and b (both factors flip
	// sign), so the signed formula gives cell(5,2).A == cell(2,5).A.
	// A math.Abs(b-f) bug instead keeps d positive for both orderings
	// while dA still flips sign, driving 1-exp(-d*dA) negative for the
	// f>b ordering and flooring it to 0 via ClampUnit.
	lower := tbl.At(2, 5)
	upper := tbl.At(5, 2)
	if upper.A < 1e-9 {
		t.Fatalf("cell(5,2).A floored to ~0, want it to match cell(2,5).A = %v", lower.A)
	}
	if math.Abs(lower.A-upper.A) > 1e-9 {
		t.Fatalf("cell(5,2).A = %v, want %v (symmetric with cell(2,5).A)", upper.A, lower.A)
	}
}

func TestOutputsClamped(t *testing.T) {
	tf := rampTF()
	tbl := preint.Build(tf, 0, 31, 0.5)
	for _, c := range tbl.Cells {
		if c.R < 0 || c.R > 1 || c.G < 0 || c.G > 1 || c.B < 0 || c.B > 1 || c.A < 0 || c.A > 1 {
			t.Fatalf("cell out of [0,1]: %+v", c)
		}
	}
}

func TestRGBA8Length(t *testing.T) {
	tbl := preint.Build(rampTF(), 0, 7, 0.25)
	if got, want := len(tbl.RGBA8()), tbl.N*tbl.N*4; got != want {
		t.Fatalf("RGBA8() length = %d, want %d", got, want)
	}
}
