package buffer

import "fmt"

// FileFormat names the on-disk encoding of a dumped buffer's file.
type FileFormat int

const (
	FormatOther FileFormat = iota
	FormatRaw
	FormatRawZ
)

// info is the manager's private, mutable record for a registered
// buffer. BufferInfo (below) is the read-only snapshot handed to
// callers, per the spec's "info(handle) -> BufferInfo snapshot".
type info struct {
	handle     Handle
	region     []byte
	size       int64
	loaded     bool
	policy     AllocPolicy
	lastAccess uint64
	file       string
	format     FileFormat
	autoDelete bool
	userStream bool
	factory    StreamFactory
	lockCount  int32
	token      *LockToken // manager's back-reference to the live token, if any
}

// BufferInfo is an immutable snapshot of a managed buffer's
// metadata, returned by Manager.Info.
type BufferInfo struct {
	Handle     Handle
	Size       int64
	Loaded     bool
	LastAccess uint64
	File       string
	Format     FileFormat
	UserStream bool
	LockCount  int32
}

func (i *info) snapshot() BufferInfo {
	return BufferInfo{
		Handle:     i.handle,
		Size:       i.size,
		Loaded:     i.loaded,
		LastAccess: i.lastAccess,
		File:       i.file,
		Format:     i.format,
		UserStream: i.userStream,
		LockCount:  i.lockCount,
	}
}

// Stats is a snapshot of registry-wide dump/restore counters, a
// supplement to the spec's bare (totalManaged, totalDumped) pair
// giving per-policy totals useful for tests and logging.
type Stats struct {
	TotalManaged int64
	TotalDumped  int64
	DumpCount    uint64
	RestoreCount uint64
}

// registry is component A: identity and metadata for every managed
// buffer. register and unregister emit an updated notification on
// notify, if set. It is only ever touched from the manager's worker goroutine,
// so it needs no locking of its own.
type registry struct {
	entries map[Handle]*info
	table   handleTable
	stats   Stats
	notify  func(Handle)
}

func newRegistry() *registry {
	return &registry{entries: make(map[Handle]*info)}
}

func (r *registry) register() *info {
	h := r.table.alloc()
	i := &info{handle: h, policy: PlainPolicy{}}
	r.entries[h] = i
	r.emit(h)
	return i
}

func (r *registry) lookup(h Handle) (*info, error) {
	i, ok := r.entries[h]
	if !ok || !r.table.valid(h) {
		return nil, fmt.Errorf("%w: handle %d", ErrNotManaged, h)
	}
	return i, nil
}

func (r *registry) unregister(h Handle) error {
	i, err := r.lookup(h)
	if err != nil {
		return err
	}
	if i.lockCount > 0 {
		panic(lockedPanic{h})
	}
	r.stats.TotalManaged -= i.size
	if !i.loaded {
		r.stats.TotalDumped -= i.size
	}
	delete(r.entries, h)
	r.table.free(h)
	r.emit(h)
	return nil
}

func (r *registry) info(h Handle) (BufferInfo, error) {
	i, err := r.lookup(h)
	if err != nil {
		return BufferInfo{}, err
	}
	return i.snapshot(), nil
}

// statsSnapshot returns the current (totalManaged, totalDumped) totals plus
// the supplemental per-policy counters.
func (r *registry) statsSnapshot() Stats { return r.stats }

// forEach iterates the registry in an unspecified but stable-per-call
// order; callers rely only on the manager's serialization guarantee
// for consistency across calls, not on a specific ordering.
func (r *registry) forEach(fn func(*info)) {
	for _, i := range r.entries {
		fn(i)
	}
}

func (r *registry) emit(h Handle) {
	if r.notify != nil {
		r.notify(h)
	}
}

// setLoaded updates the dumped-byte total for a loaded-state
// transition on i, then applies the transition. TotalManaged counts
// every registered buffer regardless of residency, so only
// TotalDumped moves here.
func (r *registry) setLoaded(i *info, loaded bool) {
	if i.loaded == loaded {
		return
	}
	if loaded {
		r.stats.TotalDumped -= i.size
	} else {
		r.stats.TotalDumped += i.size
	}
	i.loaded = loaded
}

// setSize adjusts total accounting for a size change on an already
// registered buffer, whatever its current residency.
func (r *registry) setSize(i *info, newSize int64) {
	delta := newSize - i.size
	r.stats.TotalManaged += delta
	if !i.loaded {
		r.stats.TotalDumped += delta
	}
	i.size = newSize
}
