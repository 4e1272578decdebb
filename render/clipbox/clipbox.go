// Package clipbox implements component J: an interactive axis-aligned
// clipping box over the image's normalized [0,1]^3 cube, with
// pick/drag/scale/transform operations and a minimum-separation
// invariant between opposite faces.
package clipbox

import "github.com/vxcore/volcore/linear"

// Eps is the minimum separation enforced between a box's min and max
// on every axis (§4.J).
const Eps = 1e-3

// Face names one of the box's six pickable faces.
type Face int

const (
	MinX Face = iota
	MaxX
	MinY
	MaxY
	MinZ
	MaxZ
)

func (f Face) axis() int  { return int(f) / 2 }
func (f Face) isMax() bool { return int(f)%2 == 1 }

// Mode is the widget's current selection mode.
type Mode int

const (
	None Mode = iota
	ModeBox
	ModeCamera
	ModeHandle
)

// Box is the clipping-box widget state: an axis-aligned box in
// [0,1]^3, the current selection mode, and the handle currently
// picked (if any).
type Box struct {
	Min, Max linear.V3

	mode      Mode
	handle    Face
	hasHandle bool

	onUpdate func()
}

// New returns a Box spanning the full unit cube.
func New() *Box {
	return &Box{Max: linear.V3{1, 1, 1}}
}

// SetOnClippingUpdated installs the callback fired on every confirmed
// mutation.
func (b *Box) SetOnClippingUpdated(fn func()) { b.onUpdate = fn }

func (b *Box) notify() {
	if b.onUpdate != nil {
		b.onUpdate()
	}
}

// Mode returns the widget's current selection mode.
func (b *Box) Mode() Mode { return b.mode }

// Pick remembers f as the currently selected handle, switching to
// handle-selection mode; subsequent DragHandle calls shrink/grow the
// box along f's axis.
func (b *Box) Pick(f Face) {
	b.mode = ModeHandle
	b.handle = f
	b.hasHandle = true
}

// Deselect clears the current handle and returns to no selection.
func (b *Box) Deselect() {
	b.mode = None
	b.hasHandle = false
}

// DragHandle moves the currently picked face by delta along its axis,
// clamped so that min[i] + Eps <= max[i] and the box stays within
// [0,1]^3.
func (b *Box) DragHandle(delta float32) {
	if !b.hasHandle {
		return
	}
	axis := b.handle.axis()
	if b.handle.isMax() {
		b.Max[axis] += delta
	} else {
		b.Min[axis] += delta
	}
	b.clamp()
	b.notify()
}

// Translate applies a world-space delta (already converted to image
// space by the caller) to both Min and Max, clamping the result back
// into [0,1]^3 by shifting the whole box rather than reshaping it.
func (b *Box) Translate(delta linear.V3) {
	var min, max linear.V3
	min.Add(&b.Min, &delta)
	max.Add(&b.Max, &delta)
	for i := 0; i < 3; i++ {
		if min[i] < 0 {
			shift := -min[i]
			min[i] += shift
			max[i] += shift
		}
		if max[i] > 1 {
			shift := max[i] - 1
			min[i] -= shift
			max[i] -= shift
		}
	}
	b.Min, b.Max = min, max
	b.clampSeparation()
	b.notify()
}

// Scale grows or shrinks the box around its center by a factor of
// 1 + dy*speed, where speed = |volume| / (100 * viewportHeight), dy
// being the vertical cursor delta in pixels.
func (b *Box) Scale(dy float32, viewportHeight int) {
	if viewportHeight <= 0 {
		return
	}
	vol := b.volume()
	speed := vol / (100 * float32(viewportHeight))
	factor := 1 + dy*speed

	var center, half linear.V3
	for i := 0; i < 3; i++ {
		center[i] = (b.Min[i] + b.Max[i]) / 2
		half[i] = (b.Max[i] - b.Min[i]) / 2 * factor
	}
	for i := 0; i < 3; i++ {
		b.Min[i] = center[i] - half[i]
		b.Max[i] = center[i] + half[i]
	}
	b.clamp()
	b.notify()
}

func (b *Box) volume() float32 {
	v := float32(1)
	for i := 0; i < 3; i++ {
		v *= b.Max[i] - b.Min[i]
	}
	return v
}

// SetFromTransform replaces the box with the image of the canonical
// unit cube under the affine t: the new corners are t*(0,0,0) and
// t*(1,1,1), taken componentwise min/max so the result is a valid
// box, then clamped to [0,1]^3.
func (b *Box) SetFromTransform(t *linear.M4) {
	var p0, p1 linear.V4
	p0.Mul(t, &linear.V4{0, 0, 0, 1})
	p1.Mul(t, &linear.V4{1, 1, 1, 1})
	for i := 0; i < 3; i++ {
		a, c := p0[i], p1[i]
		if a > c {
			a, c = c, a
		}
		b.Min[i], b.Max[i] = a, c
	}
	b.clamp()
	b.notify()
}

// AsTransform returns the affine mapping the canonical unit cube onto
// the current box: algebraically T_center . S(size) . T_-center,
// which for an axis-aligned box reduces to the single affine map
// p -> Min + size*p, computed directly here.
func (b *Box) AsTransform() linear.M4 {
	var size linear.V3
	size.Sub(&b.Max, &b.Min)
	var m linear.M4
	m.I()
	m[0][0], m[1][1], m[2][2] = size[0], size[1], size[2]
	m[3][0], m[3][1], m[3][2] = b.Min[0], b.Min[1], b.Min[2]
	return m
}

// clamp enforces both the [0,1]^3 bound and the minimum per-axis
// separation (P11), after a reshaping mutation.
func (b *Box) clamp() {
	for i := 0; i < 3; i++ {
		if b.Min[i] < 0 {
			b.Min[i] = 0
		}
		if b.Max[i] > 1 {
			b.Max[i] = 1
		}
	}
	b.clampSeparation()
}

func (b *Box) clampSeparation() {
	for i := 0; i < 3; i++ {
		if b.Min[i] > b.Max[i]-Eps {
			mid := (b.Min[i] + b.Max[i]) / 2
			b.Min[i] = mid - Eps/2
			b.Max[i] = mid + Eps/2
			if b.Min[i] < 0 {
				b.Min[i] = 0
				b.Max[i] = Eps
			}
			if b.Max[i] > 1 {
				b.Max[i] = 1
				b.Min[i] = 1 - Eps
			}
		}
	}
}
