package clipbox_test

import (
	"testing"

	"github.com/vxcore/volcore/linear"
	"github.com/vxcore/volcore/render/clipbox"
)

func checkInvariant(t *testing.T, b *clipbox.Box) {
	t.Helper()
	for i := 0; i < 3; i++ {
		if b.Min[i]+clipbox.Eps > b.Max[i]+1e-6 {
			t.Fatalf("axis %d: min+eps > max (min=%v max=%v)", i, b.Min[i], b.Max[i])
		}
		if b.Min[i] < -1e-6 || b.Max[i] > 1+1e-6 {
			t.Fatalf("axis %d: box escaped unit cube (min=%v max=%v)", i, b.Min[i], b.Max[i])
		}
	}
}

// P11: after any interaction, min[i]+eps <= max[i] and [min,max] is
// contained in [0,1]^3, for every axis.
func TestClampInvariantAfterDragToZeroWidth(t *testing.T) {
	b := clipbox.New()
	b.Pick(clipbox.MaxX)
	for i := 0; i < 50; i++ {
		b.DragHandle(-0.1)
		checkInvariant(t, b)
	}
}

func TestClampInvariantAfterDragOutsideCube(t *testing.T) {
	b := clipbox.New()
	b.Pick(clipbox.MinY)
	b.DragHandle(-5) // tries to push min far below 0
	checkInvariant(t, b)
	b.Pick(clipbox.MaxY)
	b.DragHandle(5) // tries to push max far above 1
	checkInvariant(t, b)
}

func TestClampInvariantAfterScale(t *testing.T) {
	b := clipbox.New()
	for i := 0; i < 20; i++ {
		b.Scale(50, 600)
		checkInvariant(t, b)
	}
	for i := 0; i < 20; i++ {
		b.Scale(-50, 600)
		checkInvariant(t, b)
	}
}

func TestClampInvariantAfterTranslate(t *testing.T) {
	b := clipbox.New()
	b.Min, b.Max = linear.V3{0.4, 0.4, 0.4}, linear.V3{0.6, 0.6, 0.6}
	b.Translate(linear.V3{10, -10, 0})
	checkInvariant(t, b)
}

func TestClampInvariantAfterSetFromTransform(t *testing.T) {
	b := clipbox.New()
	var m linear.M4
	m.I()
	// Scale by 2 around origin and translate far outside the cube.
	m[0][0], m[1][1], m[2][2] = 2, 2, 2
	m[3][0], m[3][1], m[3][2] = 3, -3, 0.5
	b.SetFromTransform(&m)
	checkInvariant(t, b)
}

func TestAsTransformRoundTrip(t *testing.T) {
	b := clipbox.New()
	b.Min, b.Max = linear.V3{0.2, 0.3, 0.4}, linear.V3{0.8, 0.9, 0.6}
	tr := b.AsTransform()

	var p0, p1 linear.V4
	p0.Mul(&tr, &linear.V4{0, 0, 0, 1})
	p1.Mul(&tr, &linear.V4{1, 1, 1, 1})

	const eps = 1e-5
	for i := 0; i < 3; i++ {
		if d := p0[i] - b.Min[i]; d > eps || d < -eps {
			t.Fatalf("axis %d: transform*(0,0,0) = %v, want Min %v", i, p0[i], b.Min[i])
		}
		if d := p1[i] - b.Max[i]; d > eps || d < -eps {
			t.Fatalf("axis %d: transform*(1,1,1) = %v, want Max %v", i, p1[i], b.Max[i])
		}
	}
}

func TestOnClippingUpdatedFires(t *testing.T) {
	b := clipbox.New()
	n := 0
	b.SetOnClippingUpdated(func() { n++ })
	b.Pick(clipbox.MaxX)
	b.DragHandle(-0.01)
	if n != 1 {
		t.Fatalf("onClippingUpdated fired %d times, want 1", n)
	}
}
