// Package rayentry implements component K: the per-viewport ray-entry
// compositor, rendering near/far intersection depths of the proxy
// geometry into one two-channel float render target per stereo
// viewpoint.
package rayentry

import (
	"fmt"
	"sync"

	"github.com/vxcore/volcore/driver"
	"github.com/vxcore/volcore/gpu"
)

// StereoMode selects the viewpoint count and per-view viewport
// fraction (§4.K).
type StereoMode int

const (
	None StereoMode = iota
	Stereo
	Autostereo5
	Autostereo8
)

// modeParams is the table in §4.K.
type modeParams struct {
	views                     int
	widthFactor, heightFactor float32
}

var modeTable = map[StereoMode]modeParams{
	None:        {1, 1.0, 1.0},
	Stereo:      {2, 1.0, 0.5},
	Autostereo5: {5, 0.6, 0.5},
	Autostereo8: {8, 0.375, 0.5},
}

// Views returns the number of viewpoints m renders.
func (m StereoMode) Views() int { return modeTable[m].views }

// Factors returns the per-view width/height scale relative to the
// viewport.
func (m StereoMode) Factors() (width, height float32) {
	p := modeTable[m]
	return p.widthFactor, p.heightFactor
}

// compositorMu is the shared static mutex guarding concurrent
// compositor-manager calls, since the underlying graphics API is not
// re-entrant (§4.K, §5 "Graphics compositor registry").
var compositorMu sync.Mutex

// View is one stereo viewpoint's ray-entry render target: a
// two-channel float texture holding near/far depths.
type View struct {
	Texture *gpu.Texture
	Width, Height int
}

// Compositor owns one View per stereo viewpoint for a given mode and
// viewport size.
type Compositor struct {
	Mode             StereoMode
	MixedRendering   bool
	viewportW, viewportH int
	views            []View
}

// New creates a Compositor for mode at the given viewport size,
// allocating one render-target texture per view with pixel format
// RG32f (two-channel float), dimensions scaled per §4.K's factor
// table.
func New(mode StereoMode, viewportW, viewportH int, mixedRendering bool) (*Compositor, error) {
	compositorMu.Lock()
	defer compositorMu.Unlock()

	wf, hf := mode.Factors()
	w := int(float32(viewportW) * wf)
	h := int(float32(viewportH) * hf)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	c := &Compositor{Mode: mode, MixedRendering: mixedRendering, viewportW: viewportW, viewportH: viewportH}
	for i := 0; i < mode.Views(); i++ {
		tex, err := gpu.NewTarget2D(gpu.TexParam{PixelFmt: driver.RG32f, Dim3D: driver.Dim3D{Width: w, Height: h}})
		if err != nil {
			for _, v := range c.views {
				v.Texture.Free()
			}
			return nil, fmt.Errorf("rayentry: view %d: %w", i, err)
		}
		c.views = append(c.views, View{Texture: tex, Width: w, Height: h})
	}
	return c, nil
}

// Views returns the compositor's render targets, one per viewpoint.
func (c *Compositor) Views() []View { return c.views }

// Pass is one of the four (or five, with mixed rendering) render
// passes composing a view's ray-entry texture (§4.K).
type Pass int

const (
	PassClear Pass = iota
	PassBackFaces
	PassFrontFaces
	PassBackFacesMax
	PassMixedClip
)

// PassSequence returns the ordered passes a single view must record,
// including the mixed-rendering clip pass when c.MixedRendering.
func (c *Compositor) PassSequence() []Pass {
	seq := []Pass{PassClear, PassBackFaces, PassFrontFaces, PassBackFacesMax}
	if c.MixedRendering {
		seq = append(seq, PassMixedClip)
	}
	return seq
}

// Destroy releases every view's GPU texture.
func (c *Compositor) Destroy() {
	compositorMu.Lock()
	defer compositorMu.Unlock()
	for _, v := range c.views {
		v.Texture.Free()
	}
	c.views = nil
}
