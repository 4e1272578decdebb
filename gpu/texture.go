package gpu

import (
	"errors"
	"sync/atomic"

	"github.com/vxcore/volcore/driver"
)

const prefix = "gpu: "

// Texture wraps a driver.Image together with the single
// driver.ImageView used to bind it to shaders.
// Volume rendering never needs array layers, cube faces or
// mip chains on its working textures (image, mask, TF,
// pre-integration table, SAT, illumination volume, brick
// grid), so unlike a general-purpose scene renderer's texture
// type this one tracks exactly one view.
type Texture struct {
	img    driver.Image
	view   driver.ImageView
	usage  driver.Usage
	param  TexParam
	layout atomic.Int64
}

// TexParam describes the parameters of a Texture.
type TexParam struct {
	driver.PixelFmt
	driver.Dim3D
}

// New2D creates a 2D texture (used for the transfer function
// and the pre-integration table).
func New2D(param TexParam, usage driver.Usage) (*Texture, error) {
	if param.Width < 1 || param.Height < 1 || param.Depth != 0 {
		return nil, errors.New(prefix + "New2D: invalid size")
	}
	return newTexture(param, usage, driver.IView2D)
}

// New3D creates a 3D texture (used for the volume image, mask,
// SAT, illumination volume and brick grid).
func New3D(param TexParam, usage driver.Usage) (*Texture, error) {
	if param.Width < 1 || param.Height < 1 || param.Depth < 1 {
		return nil, errors.New(prefix + "New3D: invalid size")
	}
	return newTexture(param, usage, driver.IView3D)
}

// NewTarget2D creates a 2D render-target texture (used by the
// ray-entry compositor).
func NewTarget2D(param TexParam) (*Texture, error) {
	if param.Width < 1 || param.Height < 1 || param.Depth != 0 {
		return nil, errors.New(prefix + "NewTarget2D: invalid size")
	}
	return newTexture(param, driver.UShaderSample|driver.URenderTarget, driver.IView2D)
}

func newTexture(param TexParam, usage driver.Usage, typ driver.ViewType) (*Texture, error) {
	img, err := GPU().NewImage(param.PixelFmt, param.Dim3D, 1, 1, 1, usage)
	if err != nil {
		return nil, err
	}
	view, err := img.NewView(typ, 0, 1, 0, 1)
	if err != nil {
		img.Destroy()
		return nil, err
	}
	t := &Texture{img: img, view: view, usage: usage, param: param}
	t.layout.Store(int64(driver.LUndefined))
	return t, nil
}

// View returns t's single driver.ImageView.
func (t *Texture) View() driver.ImageView { return t.view }

// Image returns t's underlying driver.Image.
func (t *Texture) Image() driver.Image { return t.img }

// PixelFmt returns the driver.PixelFmt of t.
func (t *Texture) PixelFmt() driver.PixelFmt { return t.param.PixelFmt }

// Dim3D returns the dimensions of t.
func (t *Texture) Dim3D() driver.Dim3D { return t.param.Dim3D }

// pixelSize maps a driver.PixelFmt to its size in bytes.
// driver.PixelFmt has no such method of its own since the
// driver package only describes the GPU contract, not memory
// layout arithmetic.
var pixelSize = map[driver.PixelFmt]int{
	driver.RGBA8un:    4,
	driver.RGBA8n:     4,
	driver.RGBA8sRGB:  4,
	driver.BGRA8un:    4,
	driver.BGRA8sRGB:  4,
	driver.RG8un:      2,
	driver.RG8n:       2,
	driver.R8un:       1,
	driver.R8n:        1,
	driver.RGBA16f:    8,
	driver.RG16f:      4,
	driver.R16f:       2,
	driver.RGBA32f:    16,
	driver.RG32f:      8,
	driver.R32f:       4,
	driver.D16un:      2,
	driver.D32f:       4,
	driver.S8ui:       1,
	driver.D24unS8ui:  4,
	driver.D32fS8ui:   8,
}

// Size returns the byte size of t's single mip level.
func (t *Texture) Size() int {
	d := t.param.Depth
	if d < 1 {
		d = 1
	}
	return pixelSize[t.param.PixelFmt] * t.param.Width * t.param.Height * d
}

const invalLayout = -1

// Transition records a layout transition for t's view in cb.
// The caller must call SetLayout after the command executes.
func (t *Texture) Transition(cb driver.CmdBuffer, layout driver.Layout, barrier driver.Barrier) {
	if layout == driver.LUndefined {
		panic(prefix + "Transition: layout is driver.LUndefined")
	}
	before := driver.Layout(t.layout.Swap(invalLayout))
	if before == invalLayout {
		panic(prefix + "Transition: layout transition already pending")
	}
	cb.Transition([]driver.Transition{
		{
			Barrier:      barrier,
			LayoutBefore: before,
			LayoutAfter:  layout,
			IView:        t.view,
		},
	})
}

// SetLayout records the outcome of the preceding Transition.
func (t *Texture) SetLayout(layout driver.Layout) {
	if !t.layout.CompareAndSwap(invalLayout, int64(layout)) {
		panic(prefix + "SetLayout: no transition pending")
	}
}

// CopyFrom uploads data to t through the package's staging
// buffers. data must contain exactly t.Size() bytes.
// Unless commit is true, the copy may be delayed until the
// next call to Commit.
func (t *Texture) CopyFrom(data []byte, commit bool) error {
	if n := t.Size(); len(data) > n {
		data = data[:n]
	}
	s := <-staging
	off, err := s.stage(data)
	if err == nil {
		err = s.copyToTexture(t, off)
		if commit && err == nil {
			err = s.commit()
		}
	}
	staging <- s
	return err
}

// Free invalidates t and destroys the underlying driver.Image
// and driver.ImageView.
func (t *Texture) Free() {
	if t.view != nil {
		t.view.Destroy()
		t.img.Destroy()
	}
	*t = Texture{}
}

// Sampler wraps a driver.Sampler.
type Sampler struct {
	sampler driver.Sampler
	param   driver.Sampling
}

// NewSampler creates a new sampler.
func NewSampler(param driver.Sampling) (*Sampler, error) {
	if param.MinLOD > param.MaxLOD {
		return nil, errors.New(prefix + "NewSampler: min LOD greater than max LOD")
	}
	s, err := GPU().NewSampler(&param)
	if err != nil {
		return nil, err
	}
	return &Sampler{sampler: s, param: param}, nil
}

// Driver returns the wrapped driver.Sampler.
func (s *Sampler) Driver() driver.Sampler { return s.sampler }

// Free invalidates s and destroys the driver.Sampler.
func (s *Sampler) Free() {
	if s.sampler != nil {
		s.sampler.Destroy()
	}
	*s = Sampler{}
}
