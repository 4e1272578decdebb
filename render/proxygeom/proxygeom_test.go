package proxygeom_test

import (
	"testing"

	"github.com/vxcore/volcore/render/proxygeom"
	"github.com/vxcore/volcore/volume"
)

// sparseImage builds a 16x16x16 image that is entirely transparent
// (value 0) except for a single bright voxel.
func sparseImage(brightX, brightY, brightZ int) *volume.Image {
	const n = 16
	img := &volume.Image{
		Width: n, Height: n, Depth: n,
		WindowMin: 0, WindowMax: 1,
		Data: make([]float64, n*n*n),
	}
	img.Data[(brightZ*n+brightY)*n+brightX] = 1
	return img
}

func stepTF() *volume.TF {
	return &volume.TF{Pieces: []volume.Piece{{
		Level: 0.5, Window: 1, Mode: volume.Nearest, Clamped: true,
		Stops: []volume.Stop{
			{Value: 0, Color: volume.RGBA{A: 0}},
			{Value: 0.99, Color: volume.RGBA{A: 0}},
			{Value: 1, Color: volume.RGBA{A: 1}},
		},
	}}}
}

// P10: for every brick whose grid voxel is 0, its image-space AABB
// contains no voxel with non-zero TF alpha.
func TestEmptyBricksContainNoVisibleVoxel(t *testing.T) {
	img := sparseImage(9, 1, 1)
	tf := stepTF()
	grid := proxygeom.BuildGrid(img, nil, tf)

	// Independently enumerate every voxel with non-zero TF alpha and
	// check that its containing brick is marked visible.
	for z := 0; z < img.Depth; z++ {
		for y := 0; y < img.Height; y++ {
			for x := 0; x < img.Width; x++ {
				if tf.Sample(img.At(x, y, z)).A == 0 {
					continue
				}
				bx, by, bz := x/proxygeom.Brick[0], y/proxygeom.Brick[1], z/proxygeom.Brick[2]
				if grid.Voxels[(bz*grid.Height+by)*grid.Width+bx] == 0 {
					t.Fatalf("voxel (%d,%d,%d) is visible but its brick (%d,%d,%d) is marked empty", x, y, z, bx, by, bz)
				}
			}
		}
	}
}

func TestAllEmptyImageProducesEmptyGrid(t *testing.T) {
	const n = 16
	img := &volume.Image{
		Width: n, Height: n, Depth: n,
		WindowMin: 0, WindowMax: 1,
		Data: make([]float64, n*n*n),
	}
	tf := stepTF()
	grid := proxygeom.BuildGrid(img, nil, tf)
	for _, v := range grid.Voxels {
		if v != 0 {
			t.Fatalf("expected all-empty grid, found a visible brick")
		}
	}
}

func TestMaskHidesVoxel(t *testing.T) {
	img := sparseImage(9, 1, 1)
	tf := stepTF()
	mask := &volume.Image{
		Width: img.Width, Height: img.Height, Depth: img.Depth,
		WindowMin: 0, WindowMax: 1,
		Data: make([]float64, img.Width*img.Height*img.Depth),
	}
	// mask is all zero: every voxel is masked out.
	grid := proxygeom.BuildGrid(img, mask, tf)
	for _, v := range grid.Voxels {
		if v != 0 {
			t.Fatalf("expected fully masked grid to be empty")
		}
	}
}

func TestMaxVerticesCoversCheckerboard(t *testing.T) {
	img := sparseImage(0, 0, 0)
	grid := proxygeom.BuildGrid(img, nil, stepTF())
	n := grid.Width * grid.Height * grid.Depth
	if got, want := proxygeom.MaxVertices(grid), (n/2+1)*36; got != want {
		t.Fatalf("MaxVertices = %d, want %d", got, want)
	}
}

func TestCaptureBufferReserveRelease(t *testing.T) {
	var c proxygeom.CaptureBuffer
	off1 := c.Reserve(100)
	off2 := c.Reserve(50)
	if off2 == off1 {
		t.Fatalf("overlapping reservations: %d == %d", off1, off2)
	}
	c.Release(off1, 100)
	off3 := c.Reserve(100)
	if off3 != off1 {
		t.Fatalf("freed span not reused: got %d, want %d", off3, off1)
	}
}
