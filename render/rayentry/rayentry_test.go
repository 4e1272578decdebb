package rayentry_test

import (
	"testing"

	"github.com/vxcore/volcore/render/rayentry"
)

func TestStereoModeTable(t *testing.T) {
	cases := []struct {
		mode             rayentry.StereoMode
		views            int
		width, height    float32
	}{
		{rayentry.None, 1, 1.0, 1.0},
		{rayentry.Stereo, 2, 1.0, 0.5},
		{rayentry.Autostereo5, 5, 0.6, 0.5},
		{rayentry.Autostereo8, 8, 0.375, 0.5},
	}
	for _, c := range cases {
		if got := c.mode.Views(); got != c.views {
			t.Errorf("%v.Views() = %d, want %d", c.mode, got, c.views)
		}
		w, h := c.mode.Factors()
		if w != c.width || h != c.height {
			t.Errorf("%v.Factors() = (%v,%v), want (%v,%v)", c.mode, w, h, c.width, c.height)
		}
	}
}

func TestPassSequence(t *testing.T) {
	c := &rayentry.Compositor{Mode: rayentry.None}
	if n := len(c.PassSequence()); n != 4 {
		t.Fatalf("default pass sequence has %d passes, want 4", n)
	}
	c.MixedRendering = true
	seq := c.PassSequence()
	if n := len(seq); n != 5 {
		t.Fatalf("mixed-rendering pass sequence has %d passes, want 5", n)
	}
	if seq[4] != rayentry.PassMixedClip {
		t.Fatalf("last pass = %v, want PassMixedClip", seq[4])
	}
}
