package volume_test

import (
	"testing"

	"github.com/vxcore/volcore/volume"
)

func TestImageAtClampsToWindow(t *testing.T) {
	img := &volume.Image{
		Width: 2, Height: 1, Depth: 1,
		WindowMin: 0, WindowMax: 10,
		Data: []float64{-5, 20},
	}
	if got := img.At(0, 0, 0); got != 0 {
		t.Fatalf("At(0,0,0) = %v, want 0", got)
	}
	if got := img.At(1, 0, 0); got != 1 {
		t.Fatalf("At(1,0,0) = %v, want 1", got)
	}
}

func TestImageAtZeroWindowIsZero(t *testing.T) {
	img := &volume.Image{Width: 1, Height: 1, Depth: 1, WindowMin: 3, WindowMax: 3, Data: []float64{99}}
	if got := img.At(0, 0, 0); got != 0 {
		t.Fatalf("At with zero-span window = %v, want 0", got)
	}
}

func rampTF() *volume.TF {
	return &volume.TF{Pieces: []volume.Piece{{
		Level: 0.5, Window: 1, Mode: volume.Linear, Clamped: true,
		Stops: []volume.Stop{
			{Value: 0, Color: volume.RGBA{A: 0}},
			{Value: 1, Color: volume.RGBA{R: 1, A: 1}},
		},
	}}}
}

func TestTFSampleLerpsBetweenStops(t *testing.T) {
	tf := rampTF()
	got := tf.Sample(0.5)
	if got.A < 0.49 || got.A > 0.51 {
		t.Fatalf("Sample(0.5).A = %v, want ~0.5", got.A)
	}
}

func TestTFSampleOutsideAnyPieceIsTransparent(t *testing.T) {
	tf := &volume.TF{Pieces: []volume.Piece{{
		Level: 0.9, Window: 0.1, Mode: volume.Nearest,
		Stops: []volume.Stop{{Value: 0, Color: volume.RGBA{A: 1}}, {Value: 1, Color: volume.RGBA{A: 1}}},
	}}}
	got := tf.Sample(0.1)
	if got != (volume.RGBA{}) {
		t.Fatalf("Sample outside every piece's domain = %v, want zero color", got)
	}
}

func TestTFSampleNearestPicksClosestStop(t *testing.T) {
	tf := &volume.TF{Pieces: []volume.Piece{{
		Level: 0.5, Window: 1, Mode: volume.Nearest, Clamped: true,
		Stops: []volume.Stop{
			{Value: 0, Color: volume.RGBA{R: 1}},
			{Value: 0.3, Color: volume.RGBA{G: 1}},
			{Value: 1, Color: volume.RGBA{B: 1}},
		},
	}}}
	got := tf.Sample(0.25) // nearer to the stop at 0.3 than to 0
	if got != (volume.RGBA{G: 1}) {
		t.Fatalf("Sample(0.25) = %v, want G=1", got)
	}
}

func TestAssociatedPremultipliesByAlpha(t *testing.T) {
	c := volume.RGBA{R: 1, G: 1, B: 1, A: 0.5}
	got := c.Associated()
	want := volume.RGBA{R: 0.5, G: 0.5, B: 0.5, A: 0.5}
	if got != want {
		t.Fatalf("Associated() = %v, want %v", got, want)
	}
}

func TestClampUnitClampsOutOfRangeChannels(t *testing.T) {
	c := volume.RGBA{R: -1, G: 2, B: 0.5, A: 1.5}
	got := c.ClampUnit()
	want := volume.RGBA{R: 0, G: 1, B: 0.5, A: 1}
	if got != want {
		t.Fatalf("ClampUnit() = %v, want %v", got, want)
	}
}

func TestPackRGBA8RoundsChannels(t *testing.T) {
	c := volume.RGBA{R: 1, G: 0, B: 0.5, A: 0.999}
	got := volume.PackRGBA8(c)
	want := [4]byte{255, 0, 128, 255}
	if got != want {
		t.Fatalf("PackRGBA8() = %v, want %v", got, want)
	}
}
