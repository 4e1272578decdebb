package gpu

import (
	"runtime"
	"sync"

	"github.com/vxcore/volcore/driver"
	"github.com/vxcore/volcore/internal/bitm"
)

var (
	// Global staging buffer pool, one per logical CPU so that
	// concurrent uploads (e.g. the SAT builder and the
	// pre-integration table uploader running in different
	// goroutines) do not serialize on a single buffer.
	staging chan *stagingBuffer
)

func init() {
	n := runtime.GOMAXPROCS(-1)
	staging = make(chan *stagingBuffer, n)
	for i := 0; i < n; i++ {
		staging <- &stagingBuffer{}
	}
}

// Use a large block size since volume textures need large
// allocations (a 256^3 R8 brick grid is 16 MiB).
const (
	blockSize = 131072
	nbit      = 32
)

// stagingBuffer copies data between the CPU and the GPU for
// texture uploads.
type stagingBuffer struct {
	mu   sync.Mutex
	cb   driver.CmdBuffer
	buf  driver.Buffer
	bm   bitm.Bitm[uint32]
	pend []pendingCopy
	rec  bool
}

// pendingCopy tracks a Texture with an outstanding copy that
// will transition to layout once the copy commits.
type pendingCopy struct {
	tex    *Texture
	layout driver.Layout
}

func (s *stagingBuffer) ensureCmdBuf() error {
	if s.cb != nil {
		return nil
	}
	cb, err := GPU().NewCmdBuffer()
	if err != nil {
		return err
	}
	s.cb = cb
	return nil
}

// copyToTexture records a copy command that copies data from
// s's buffer into t. off must have been returned by a
// previous call to s.stage.
func (s *stagingBuffer) copyToTexture(t *Texture, off int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureCmdBuf(); err != nil {
		return err
	}
	if !s.rec {
		if err := s.cb.Begin(); err != nil {
			s.bm.Clear()
			return err
		}
		s.rec = true
	}

	t.Transition(s.cb, driver.LCopyDst, driver.Barrier{
		SyncBefore:   driver.SNone,
		SyncAfter:    driver.SCopy,
		AccessBefore: driver.ANone,
		AccessAfter:  driver.ACopyWrite,
	})
	s.cb.BeginBlit(false)
	s.cb.CopyBufToImg(&driver.BufImgCopy{
		Buf:    s.buf,
		BufOff: off,
		Stride: [2]int64{int64(t.param.Width), int64(t.param.Height)},
		Img:    t.img,
		ImgOff: driver.Off3D{},
		Layer:  0,
		Level:  0,
		Size:   t.param.Dim3D,
	})
	s.cb.EndBlit()
	s.pend = append(s.pend, pendingCopy{t, driver.LCopyDst})
	return nil
}

// stage writes CPU data to s's buffer, growing it if
// necessary, and returns the offset the data was written to.
func (s *stagingBuffer) stage(data []byte) (off int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if off, err = s.reserve(len(data)); err == nil {
		copy(s.buf.Bytes()[off:], data)
	}
	return
}

// reserve reserves a contiguous byte range within s.buf,
// committing pending copies and growing the buffer if there
// is not enough free space. Caller must hold s.mu.
func (s *stagingBuffer) reserve(n int) (off int64, err error) {
	if n <= 0 {
		panic("gpu: stagingBuffer.reserve: n <= 0")
	}
	nb := (n + blockSize - 1) / blockSize
	idx, ok := s.bm.SearchRange(nb)
	if !ok {
		if err = s.commitLocked(); err != nil {
			return
		}
		idx = s.bm.Len()
		grow := (nb + nbit - 1) / nbit
		s.bm.Grow(grow)
		cap := grow * blockSize * nbit
		if s.buf != nil {
			cap += int(s.buf.Cap())
			s.buf.Destroy()
		}
		if s.buf, err = GPU().NewBuffer(int64(cap), true, 0); err != nil {
			s.bm = bitm.Bitm[uint32]{}
			return
		}
	}
	for i := 0; i < nb; i++ {
		s.bm.Set(idx + i)
	}
	off = int64(idx) * blockSize
	return
}

// commit commits every pending copy command for execution and
// blocks until it completes.
func (s *stagingBuffer) commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked()
}

func (s *stagingBuffer) commitLocked() error {
	if !s.rec {
		if len(s.pend) != 0 {
			panic("gpu: stagingBuffer.commit: pending copies while not recording")
		}
		return nil
	}
	s.bm.Clear()
	if err := s.cb.End(); err != nil {
		s.rec = false
		s.drainPending(true)
		return err
	}
	ch := make(chan error, 1)
	GPU().Commit([]driver.CmdBuffer{s.cb}, ch)
	err := <-ch
	s.rec = false
	s.drainPending(err != nil)
	return err
}

// drainPending clears s.pend, setting each texture's layout to
// its post-copy layout, or to driver.LUndefined if failed.
func (s *stagingBuffer) drainPending(failed bool) {
	for _, p := range s.pend {
		if failed {
			p.tex.SetLayout(driver.LUndefined)
		} else {
			p.tex.SetLayout(p.layout)
		}
	}
	s.pend = s.pend[:0]
}

// Commit flushes every staging buffer's pending texture
// uploads. It blocks until all of them complete.
func Commit() error {
	n := cap(staging)
	bufs := make([]*stagingBuffer, 0, n)
	defer func() {
		for _, b := range bufs {
			staging <- b
		}
	}()
	var firstErr error
	for i := 0; i < n; i++ {
		b := <-staging
		bufs = append(bufs, b)
		if err := b.commit(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
