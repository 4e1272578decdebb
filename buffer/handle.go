// Package buffer implements the process-wide buffer manager: a
// thread-safe cache that tracks every large image/mesh byte region,
// provides lock-based pinning, lazy I/O streaming and a pluggable
// dump-to-disk policy.
package buffer

import (
	"sync"

	"github.com/vxcore/volcore/internal/bitm"
)

// Handle identifies a managed buffer. It is a typed replacement for
// the source's pointer-to-pointer indirection: the manager is free to
// swap the underlying region on dump/restore without invalidating a
// Handle held by client code, since Handle never points at memory
// directly.
//
// The low bits carry a slot index into the registry's bitmap; the
// high bits carry a generation counter that is bumped on every
// register so that a stale Handle from a since-unregistered-and-reused
// slot is rejected rather than silently aliasing a different buffer.
type Handle uint64

const slotBits = 32

func newHandle(slot int, gen uint32) Handle {
	return Handle(uint64(gen)<<slotBits | uint64(uint32(slot)))
}

func (h Handle) slot() int    { return int(uint32(h)) }
func (h Handle) gen() uint32  { return uint32(h >> slotBits) }

// invalidHandle is never issued by handleTable.alloc.
const invalidHandle Handle = 0

// handleTable allocates and recycles Handle slots using a bitmap, the
// same span-allocation idiom used by the GPU staging/mesh storage
// buffers for block allocation.
type handleTable struct {
	mu   sync.Mutex
	bm   bitm.Bitm[uint32]
	gens []uint32
}

func (t *handleTable) alloc() Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx, ok := t.bm.Search()
	if !ok {
		idx = t.bm.Grow(1)
		t.gens = append(t.gens, make([]uint32, 32)...)
	}
	t.bm.Set(idx)
	t.gens[idx]++
	return newHandle(idx, t.gens[idx])
}

func (t *handleTable) free(h Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bm.Unset(h.slot())
}

func (t *handleTable) valid(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := h.slot()
	return i >= 0 && i < len(t.gens) && t.gens[i] == h.gen() && t.bm.IsSet(i)
}
