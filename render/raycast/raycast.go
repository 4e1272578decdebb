// Package raycast implements component L: per-frame orchestration of
// the SAT/illumination pre-compute (G), the pre-integration table
// (H), the proxy-geometry builder (I), the clipping-box widget (J),
// and the ray-entry compositor (K) into a single volume ray-caster.
package raycast

import (
	"log/slog"
	"sync"

	"github.com/vxcore/volcore/render/clipbox"
	"github.com/vxcore/volcore/render/preint"
	"github.com/vxcore/volcore/render/proxygeom"
	"github.com/vxcore/volcore/render/rayentry"
	"github.com/vxcore/volcore/render/sat"
	"github.com/vxcore/volcore/volume"
)

var log = slog.Default()

// SetLogger overrides the package-level logger.
func SetLogger(l *slog.Logger) { log = l }

// Uniforms is the set of per-frame shader uniforms bound in step 5 of
// §4.L.
type Uniforms struct {
	TFWindowMin, TFWindowMax float64
	SampleDistance           float64
	ClipMin, ClipMax         [3]float64
	OpacityCorrection        float64
	ImageMin, ImageMax       float64
	// VolIllumFactor holds (colourBleed.r, colourBleed.g,
	// colourBleed.b, ao.factor).
	VolIllumFactor [4]float64
}

// Caster is component L: the per-frame orchestrator. It holds the
// CPU-side results of the components it drives (SAT, illumination
// volume, pre-integration table, brick grid) and creates no GPU
// resources; no Caster method creates the ray-entry compositor, so
// the compositor field stays nil.
type Caster struct {
	mu sync.Mutex

	opt     Option
	variant uint64 // Option.Hash() of the last-compiled shader variant

	img  *volume.Image
	mask *volume.Image
	tf   *volume.TF

	imgDirty  bool
	clipDirty bool

	clip *clipbox.Box

	nbSamples      int
	cameraNear, cameraFar float64
	sampleDistance float64

	sat    *sat.Table
	illum  *sat.IlluminationVolume
	preint *preint.Table
	grid   *proxygeom.Grid

	compositor *rayentry.Compositor

	uniforms Uniforms
}

// New creates a Caster with the given initial options, an unbound
// image/TF, and a full-cube clipping box that triggers a rebuild on
// every confirmed mutation.
func New(opt Option) *Caster {
	c := &Caster{opt: opt, clip: clipbox.New(), nbSamples: opt.Samples}
	c.clip.SetOnClippingUpdated(func() { c.mu.Lock(); c.clipDirty = true; c.mu.Unlock() })
	return c
}

// Clip returns the caster's clipping-box widget (component J).
func (c *Caster) Clip() *clipbox.Box { return c.clip }

// Option returns the caster's current configuration.
func (c *Caster) Option() Option {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opt
}

// SetOption replaces the caster's configuration. The shader variant is
// recompiled lazily on the next Frame call if the define string
// changed (§4.L item 4).
func (c *Caster) SetOption(opt Option) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opt = opt
}

// SetVolume binds the image, optional crop mask, and transfer
// function, marking the SAT/illumination/pre-integration/proxy-
// geometry passes for rebuild.
func (c *Caster) SetVolume(img *volume.Image, mask *volume.Image, tf *volume.TF) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.img, c.mask, c.tf = img, mask, tf
	c.imgDirty = true
	c.clipDirty = true
}

// SetCameraExtent records the image-space distance from the camera
// plane to the AABB's closest (near) and furthest (far) clipped
// vertex, used by the sample-distance computation in step 3 of §4.L.
func (c *Caster) SetCameraExtent(near, far float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cameraNear, c.cameraFar = near, far
}

// SetSampling sets the number of sample slices and, if tf is
// non-nil, replaces the transfer function, recomputing the sample
// distance and (if pre-integration is enabled) the pre-integration
// table. It fails with ErrInvalidArgument for n == 0, leaving the
// caster's state unchanged (scenario 6).
func (c *Caster) SetSampling(n int, tf *volume.TF) error {
	if n == 0 {
		return ErrInvalidArgument
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nbSamples = n
	if tf != nil {
		c.tf = tf
		c.imgDirty = true
	}
	c.recomputeSampleDistanceLocked()
	if c.opt.Preintegration && c.tf != nil && c.img != nil {
		c.preint = preint.Build(c.tf, c.img.WindowMin, c.img.WindowMax, c.sampleDistance)
	}
	return nil
}

func (c *Caster) recomputeSampleDistanceLocked() {
	if c.nbSamples <= 0 {
		return
	}
	c.sampleDistance = (c.cameraFar - c.cameraNear) / float64(c.nbSamples)
}

// Frame runs one frame's worth of orchestration (§4.L steps 1-5),
// rebuilding G/H/I as needed, recompiling the shader variant if the
// option set changed, and recomputing the bound uniforms. It issues no
// draw, and Caster has no method that submits GPU work.
func (c *Caster) Frame(lightDir [3]float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.img != nil && c.tf != nil {
		if c.imgDirty {
			if c.opt.AO || c.opt.ColourBleeding || c.opt.SoftShadows {
				c.sat = sat.BuildSAT(c.img, c.tf, c.opt.SATSizeRatio)
				c.illum = sat.BuildIllumination(c.img, c.sat, sat.Params{
					SizeRatio: c.opt.SATSizeRatio, Shells: c.opt.SATShells,
					Radius: c.opt.SATRadius, Angle: c.opt.SATAngle, Samples: c.opt.SATSamples,
				}, lightDir)
			}
			if c.opt.Preintegration {
				c.preint = preint.Build(c.tf, c.img.WindowMin, c.img.WindowMax, c.sampleDistance)
			}
			c.imgDirty = false
		}
		if c.clipDirty {
			// The proxy geometry is built against the image and
			// transfer function directly; BuildGrid's own
			// mask.At(x,y,z)==0 check already excludes voxels outside
			// a freehand crop mask, so no separate bounding-box clamp
			// of the clipping box against the mask is required here.
			c.grid = proxygeom.BuildGrid(c.img, c.mask, c.tf)
			c.clipDirty = false
		}
	}

	c.recomputeSampleDistanceLocked()

	if v := c.opt.Hash(); v != c.variant {
		log.Debug("raycast: recompiling shader variant", "define", c.opt.String(), "hash", v)
		c.variant = v
	}

	c.updateUniformsLocked()
}

func (c *Caster) updateUniformsLocked() {
	u := Uniforms{
		SampleDistance:    c.sampleDistance,
		OpacityCorrection: float64(c.opt.OpacityCorrection),
		ClipMin:           [3]float64{float64(c.clip.Min[0]), float64(c.clip.Min[1]), float64(c.clip.Min[2])},
		ClipMax:           [3]float64{float64(c.clip.Max[0]), float64(c.clip.Max[1]), float64(c.clip.Max[2])},
	}
	if c.img != nil {
		u.TFWindowMin, u.TFWindowMax = c.img.WindowMin, c.img.WindowMax
		u.ImageMin, u.ImageMax = c.img.WindowMin, c.img.WindowMax
	}
	if c.opt.ColourBleeding {
		u.VolIllumFactor[0] = c.opt.CBColor[0]
		u.VolIllumFactor[1] = c.opt.CBColor[1]
		u.VolIllumFactor[2] = c.opt.CBColor[2]
	}
	if c.opt.AO {
		u.VolIllumFactor[3] = c.opt.AOFactor
	}
	c.uniforms = u
}

// Uniforms returns the uniform set computed by the last Frame call.
func (c *Caster) Uniforms() Uniforms {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uniforms
}

// HasIllumination reports whether an illumination volume is currently
// built (scenario 5: enabling AO must produce one).
func (c *Caster) HasIllumination() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.illum != nil
}

// HasSAT reports whether a SAT is currently built.
func (c *Caster) HasSAT() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sat != nil
}
