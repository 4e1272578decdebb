package raycast_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vxcore/volcore/render/raycast"
	"github.com/vxcore/volcore/render/rayentry"
	"github.com/vxcore/volcore/volume"
)

func stepTF() *volume.TF {
	return &volume.TF{Pieces: []volume.Piece{{
		Level: 0.5, Window: 1, Clamped: true,
		Stops: []volume.Stop{
			{Value: 0, Color: volume.RGBA{A: 0}},
			{Value: 1, Color: volume.RGBA{R: 1, A: 1}},
		},
	}}}
}

func flatImage(n int) *volume.Image {
	data := make([]float64, n*n*n)
	for i := range data {
		data[i] = float64(i % 2)
	}
	return &volume.Image{Width: n, Height: n, Depth: n, WindowMin: 0, WindowMax: 1, Data: data}
}

// Scenario 5: enabling AO on a bound volume produces a SAT and an
// illumination volume, and the shader variant's define string and
// u_f4VolIllumFactor uniform change to reflect it.
func TestEnablingAOBuildsIlluminationAndChangesUniforms(t *testing.T) {
	c := raycast.New(raycast.DefaultOption())
	c.SetVolume(flatImage(4), nil, stepTF())
	c.SetCameraExtent(0, 10)

	c.Frame([3]float64{0, 0, 1})
	require.False(t, c.HasSAT())
	require.False(t, c.HasIllumination())
	before := c.Uniforms().VolIllumFactor

	opt := c.Option()
	opt.AO = true
	opt.AOFactor = 0.75
	c.SetOption(opt)
	c.SetVolume(flatImage(4), nil, stepTF()) // re-bind to force a rebuild pass
	c.Frame([3]float64{0, 0, 1})

	require.True(t, c.HasSAT())
	require.True(t, c.HasIllumination())
	after := c.Uniforms().VolIllumFactor
	require.NotEqual(t, before, after)
	require.Equal(t, 0.75, after[3])

	require.Contains(t, c.Option().String(), "AO=1")
}

// Scenario 6: SetSampling(0, tf) fails with ErrInvalidArgument and
// leaves the caster's sampling state unchanged.
func TestSetSamplingZeroRejected(t *testing.T) {
	c := raycast.New(raycast.DefaultOption())
	c.SetVolume(flatImage(4), nil, stepTF())
	c.SetCameraExtent(0, 10)

	require.NoError(t, c.SetSampling(8, nil))
	c.Frame([3]float64{0, 0, 1})
	before := c.Uniforms().SampleDistance

	err := c.SetSampling(0, stepTF())
	require.ErrorIs(t, err, raycast.ErrInvalidArgument)

	c.Frame([3]float64{0, 0, 1})
	require.Equal(t, before, c.Uniforms().SampleDistance)
}

func TestDefaultOptionStereoModeIsNone(t *testing.T) {
	require.Equal(t, rayentry.None, raycast.DefaultOption().StereoMode)
}

func TestOptionHashStableAcrossScalarOnlyChanges(t *testing.T) {
	a := raycast.DefaultOption()
	b := a
	b.SATAngle = 1.25
	b.FocalLength = 0.9
	require.Equal(t, a.Hash(), b.Hash())

	b.AO = true
	require.NotEqual(t, a.Hash(), b.Hash())
}
