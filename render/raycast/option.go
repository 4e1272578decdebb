package raycast

import (
	"fmt"
	"hash/fnv"

	"github.com/vxcore/volcore/render/rayentry"
)

// Option is the renderer's configuration set, §6.4, combined into a
// preprocessor define string whose hash identifies a cached shader
// variant (§4.L item 4).
type Option struct {
	Samples int

	Preintegration bool

	AO       bool
	AOFactor float64

	ColourBleeding bool
	CBColor        [3]float64

	SoftShadows bool

	SATSizeRatio float64
	SATShells    int
	SATRadius    int
	SATAngle     float64
	SATSamples   int

	OpacityCorrection int

	StereoMode  rayentry.StereoMode
	FocalLength float64
}

// DefaultOption returns the spec's implied baseline configuration:
// one sample slice per voxel step, no AO/bleeding/shadows/pre-
// integration, mono stereo.
func DefaultOption() Option {
	return Option{
		Samples:           1,
		SATSizeRatio:      0.5,
		SATShells:         1,
		SATRadius:         1,
		SATAngle:          0.5,
		SATSamples:        4,
		OpacityCorrection: 200,
		StereoMode:        rayentry.None,
		FocalLength:       0.5,
	}
}

// String returns a stable preprocessor define string capturing every
// field that changes the compiled shader variant (AO, colour
// bleeding, shadows, pre-integration, autostereo); it deliberately
// omits pure scalar uniforms (sample count, angles, factors) which do
// not require a different shader.
func (o Option) String() string {
	return fmt.Sprintf("AO=%s;CB=%s;SHADOWS=%s;PREINT=%s;STEREO=%d",
		boolDefine(o.AO), boolDefine(o.ColourBleeding), boolDefine(o.SoftShadows),
		boolDefine(o.Preintegration), o.StereoMode)
}

func boolDefine(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Hash returns a stable hash of o's shader-variant define string,
// used to look up a cached compiled material.
func (o Option) Hash() uint64 {
	h := fnv.New64a()
	h.Write([]byte(o.String()))
	return h.Sum64()
}
