// Package sat implements component G: a summed-area-table build over
// a TF-masked image, and the illumination volume computed from it.
//
// The SAT reduction and the illumination accumulation are, by design,
// GPU fragment-shader passes (§4.G); the shader language is
// deliberately unspecified by the specification, so this package
// exposes the same per-pass structure the GPU program would follow as
// a CPU reference (BuildSAT, BuildIllumination) callable from tests.
// Its results are plain CPU-side slices; the package creates and
// uploads no GPU textures.
package sat

import (
	"math"

	"github.com/vxcore/volcore/volume"
)

// Params are the illumination pass parameters named in §6.4.
type Params struct {
	SizeRatio float64 // (0,1]
	Shells    int     // >= 1
	Radius    int     // >= 1
	Angle     float64 // cone half-angle, radians
	Samples   int     // >= 1
}

// Table is a built summed-area table: a 3-D grid where cell (x,y,z)
// holds the sum over [0..x]x[0..y]x[0..z] of TF(image) samples.
type Table struct {
	Width, Height, Depth int
	Sums                 []float64
}

func (t *Table) at(x, y, z int) float64 {
	if x < 0 || y < 0 || z < 0 {
		return 0
	}
	// A corner past the far edge sums the whole extent up to that edge.
	if x >= t.Width {
		x = t.Width - 1
	}
	if y >= t.Height {
		y = t.Height - 1
	}
	if z >= t.Depth {
		z = t.Depth - 1
	}
	return t.Sums[(z*t.Height+y)*t.Width+x]
}

// BoxSum returns the O(1) box query sum over [x0,x1]x[y0,y1]x[z0,z1]
// (inclusive), the operation that makes the SAT useful: any shell or
// cone sample in the illumination pass (§4.G.2) costs one BoxSum call
// rather than a voxel loop.
func (t *Table) BoxSum(x0, y0, z0, x1, y1, z1 int) float64 {
	return t.at(x1, y1, z1) - t.at(x0-1, y1, z1) - t.at(x1, y0-1, z1) - t.at(x1, y1, z0-1) +
		t.at(x0-1, y0-1, z1) + t.at(x0-1, y1, z0-1) + t.at(x1, y0-1, z0-1) -
		t.at(x0-1, y0-1, z0-1)
}

// BuildSAT constructs the SAT for img under tf at resolution
// ceil(image*sizeRatio) (§4.G.1): a multi-pass prefix-sum reduction,
// expressed here as the equivalent single CPU pass since the result
// is identical regardless of how many shader passes computed it.
func BuildSAT(img *volume.Image, tf *volume.TF, sizeRatio float64) *Table {
	w := ceilRatio(img.Width, sizeRatio)
	h := ceilRatio(img.Height, sizeRatio)
	d := ceilRatio(img.Depth, sizeRatio)
	t := &Table{Width: w, Height: h, Depth: d, Sums: make([]float64, w*h*d)}

	sample := func(x, y, z int) float64 {
		// Map the reduced-resolution cell back to image space and
		// sample the nearest voxel's alpha under tf.
		ix := x * img.Width / w
		iy := y * img.Height / h
		iz := z * img.Depth / d
		if ix >= img.Width {
			ix = img.Width - 1
		}
		if iy >= img.Height {
			iy = img.Height - 1
		}
		if iz >= img.Depth {
			iz = img.Depth - 1
		}
		return tf.Sample(img.At(ix, iy, iz)).A
	}

	for z := 0; z < d; z++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				v := sample(x, y, z)
				v += t.at(x-1, y, z) + t.at(x, y-1, z) + t.at(x, y, z-1)
				v -= t.at(x-1, y-1, z) + t.at(x-1, y, z-1) + t.at(x, y-1, z-1)
				v += t.at(x-1, y-1, z-1)
				t.Sums[(z*h+y)*w+x] = v
			}
		}
	}
	return t
}

func ceilRatio(n int, ratio float64) int {
	v := int(math.Ceil(float64(n) * ratio))
	if v < 1 {
		v = 1
	}
	return v
}

// IlluminationVolume is a baked RGBA volume of ambient-occlusion,
// colour-bleeding, and soft-shadow factors, the same logical
// resolution as the source image (§3 "Illumination volume").
type IlluminationVolume struct {
	Width, Height, Depth int
	Texels               []volume.RGBA
}

// BuildIllumination computes one IlluminationVolume slice per output
// z (§4.G.2): for each voxel, it accumulates Shells concentric-cube
// occlusion contributions (shell s has cube radius Radius*s), and
// Samples soft-shadow samples, each a single SAT cell on the ray from
// the voxel along lightDir out to distance Radius; each contribution
// costs one SAT.BoxSum query. The shadow samples all lie on that one
// ray: p.Angle is not read and no cone around lightDir is sampled.
// R, G and B of each texel hold the same occlusion factor; A holds
// the light factor.
func BuildIllumination(img *volume.Image, sat *Table, p Params, lightDir [3]float64) *IlluminationVolume {
	v := &IlluminationVolume{Width: img.Width, Height: img.Height, Depth: img.Depth,
		Texels: make([]volume.RGBA, img.Width*img.Height*img.Depth)}

	shellVolume := float64((2*p.Radius + 1) * (2*p.Radius + 1) * (2*p.Radius + 1))
	for z := 0; z < img.Depth; z++ {
		sz := z * sat.Depth / img.Depth
		for y := 0; y < img.Height; y++ {
			sy := y * sat.Height / img.Height
			for x := 0; x < img.Width; x++ {
				sxw := x * sat.Width / img.Width
				var ao float64
				for s := 1; s <= p.Shells; s++ {
					r := p.Radius * s
					sum := sat.BoxSum(sxw-r, sy-r, sz-r, sxw+r, sy+r, sz+r)
					ao += sum / (shellVolume * float64(s))
				}
				if p.Shells > 0 {
					ao /= float64(p.Shells)
				}

				var shadow float64
				for s := 0; s < p.Samples; s++ {
					t := float64(s+1) / float64(p.Samples)
					cx := sxw + int(lightDir[0]*t*float64(p.Radius))
					cy := sy + int(lightDir[1]*t*float64(p.Radius))
					cz := sz + int(lightDir[2]*t*float64(p.Radius))
					shadow += sat.BoxSum(cx, cy, cz, cx, cy, cz)
				}
				if p.Samples > 0 {
					shadow /= float64(p.Samples)
				}

				occlusion := 1 - clamp01(ao)
				light := 1 - clamp01(shadow)
				v.Texels[(z*img.Height+y)*img.Width+x] = volume.RGBA{R: occlusion, G: occlusion, B: occlusion, A: light}
			}
		}
	}
	return v
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
