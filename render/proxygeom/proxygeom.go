// Package proxygeom implements component I: the brick-grid
// empty-space-skipping builder and the point-list capture buffer it
// stream-outs proxy cube centers into.
package proxygeom

import (
	"github.com/vxcore/volcore/internal/bitm"
	"github.com/vxcore/volcore/volume"
)

// Brick is the fixed brick size named by §4.I.
var Brick = [3]int{8, 8, 8}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

// Grid is the brick grid: an R8 texture (one byte per brick, 0 or 1)
// at resolution ceil(imageSize/Brick).
type Grid struct {
	Width, Height, Depth int
	Voxels               []byte // row-major, X fastest; 1 == visible
}

func newGrid(w, h, d int) *Grid {
	return &Grid{Width: w, Height: h, Depth: d, Voxels: make([]byte, w*h*d)}
}

func (g *Grid) at(x, y, z int) byte { return g.Voxels[(z*g.Height+y)*g.Width+x] }

// BuildGrid is the CPU reference for the brick-grid fill pass
// (§4.I.1): for every brick, it samples all Brick[0]*Brick[1]*Brick[2]
// voxels of img (skipping any voxel masked out by mask, if non-nil),
// applies tf, and marks the brick visible if any sample has non-zero
// alpha. A real renderer instead runs this as a GPU fragment shader
// over one quad per grid slice (§4.I.1); this function computes the
// identical result on the CPU, which is what the GPU texture is
// ultimately uploaded with via the staging path in gpu.Commit, and is
// also what P10 is checked against.
func BuildGrid(img *volume.Image, mask *volume.Image, tf *volume.TF) *Grid {
	gw := ceilDiv(img.Width, Brick[0])
	gh := ceilDiv(img.Height, Brick[1])
	gd := ceilDiv(img.Depth, Brick[2])
	g := newGrid(gw, gh, gd)

	for bz := 0; bz < gd; bz++ {
		for by := 0; by < gh; by++ {
			for bx := 0; bx < gw; bx++ {
				visible := byte(0)
			voxels:
				for dz := 0; dz < Brick[2]; dz++ {
					z := bz*Brick[2] + dz
					if z >= img.Depth {
						continue
					}
					for dy := 0; dy < Brick[1]; dy++ {
						y := by*Brick[1] + dy
						if y >= img.Height {
							continue
						}
						for dx := 0; dx < Brick[0]; dx++ {
							x := bx*Brick[0] + dx
							if x >= img.Width {
								continue
							}
							if mask != nil && mask.At(x, y, z) == 0 {
								continue
							}
							if tf.Sample(img.At(x, y, z)).A > 0 {
								visible = 1
								break voxels
							}
						}
					}
				}
				g.Voxels[(bz*gh+by)*gw+bx] = visible
			}
		}
	}
	return g
}

// MaxVertices returns the worst-case stream-out vertex count for a
// grid of the given dimensions: half the bricks visible (checkerboard
// worst case), 36 vertices (12 triangles) per cube (§4.I.3).
func MaxVertices(g *Grid) int {
	n := g.Width * g.Height * g.Depth
	return (n/2 + 1) * 36
}

// capture block granularity, matching the teacher's mesh buffer span
// allocator block size (engine/mesh/storage.go).
const blockSize = 512

// vertexSize is the byte size of one captured point (a brick center
// in object space, 3 float32 components).
const vertexSize = 12

// CaptureBuffer manages the GPU buffer that the geometry stream-out
// pass (§4.I.2) writes cube-center points into, reusing the teacher's
// bitmap span allocator for the same O(1)-growth allocation strategy
// engine/mesh/storage.go uses for vertex/index data.
type CaptureBuffer struct {
	spans bitm.Bitm[uint32]
	cap   int // capacity in vertices
}

// Reserve grows the capture buffer's backing allocation, if needed, so
// that it can hold at least n vertices, returning the vertex offset of
// a fresh contiguous span of exactly n vertices.
func (c *CaptureBuffer) Reserve(n int) (offset int) {
	nb := (n*vertexSize + blockSize - 1) / blockSize
	is, ok := c.spans.SearchRange(nb)
	if !ok {
		grow := (nb + 31) / 32 * 32
		is = c.spans.Grow(grow / 32)
		c.cap += grow * blockSize / vertexSize
	}
	for i := 0; i < nb; i++ {
		c.spans.Set(is + i)
	}
	return is * blockSize / vertexSize
}

// Release frees the span starting at offset covering n vertices, so it
// may be reused by a later Reserve.
func (c *CaptureBuffer) Release(offset, n int) {
	// Reserve rounds a block start down to a whole vertex; round back up.
	is := (offset*vertexSize + blockSize - 1) / blockSize
	nb := (n*vertexSize + blockSize - 1) / blockSize
	for i := 0; i < nb; i++ {
		c.spans.Unset(is + i)
	}
}
