package buffer

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// LoadingMode selects how Manager.SetIStreamFactory treats a buffer
// whose contents are not yet resident.
type LoadingMode int

const (
	// Direct restores a buffer's contents inline as soon as a stream
	// factory is attached.
	Direct LoadingMode = iota
	// Lazy leaves a buffer dumped until something actually locks it.
	Lazy
)

// Future resolves once the manager's worker has processed the op
// that produced it. Every Manager mutator and read returns one; a
// caller that wants fire-and-forget semantics simply discards it.
type Future[T any] struct {
	ch chan futureResult[T]
}

type futureResult[T any] struct {
	val T
	err error
}

// Wait blocks until the op completes and returns its result.
func (f *Future[T]) Wait() (T, error) {
	r := <-f.ch
	return r.val, r.err
}

func newFuture[T any]() (*Future[T], func(T, error)) {
	f := &Future[T]{ch: make(chan futureResult[T], 1)}
	resolve := func(v T, err error) { f.ch <- futureResult[T]{v, err} }
	return f, resolve
}

// pinnedStream wraps a stream with the LockToken that must be
// released when the reader is done with it, so a memory-backed read
// holds I3 for its whole lifetime rather than just for the moment
// StreamInfo was called.
type pinnedStream struct {
	io.ReadCloser
	tok *LockToken
}

func (s *pinnedStream) Close() error {
	err := s.ReadCloser.Close()
	s.tok.Unlock()
	return err
}

// StreamInfo is the result of Manager.StreamInfo.
type StreamInfo struct {
	Size       int64
	Stream     io.ReadCloser
	File       string
	Format     FileFormat
	UserStream bool
}

// ManagerOption configures a Manager at construction time.
type ManagerOption func(*Manager)

// WithDumpPolicy installs p as the manager's initial dump policy.
func WithDumpPolicy(p DumpPolicy) ManagerOption {
	return func(m *Manager) { m.dumpPolicy = p }
}

// WithLoadingMode sets the manager's loading mode.
func WithLoadingMode(mode LoadingMode) ManagerOption {
	return func(m *Manager) { m.loadingMode = mode }
}

// WithLogger overrides the manager's structured logger.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.log = l }
}

// Manager is component E, the buffer manager core: a single-threaded
// worker serializing every mutation and read of the registry (A), the
// dump policy (C) and outstanding lock state, following the same
// channel-as-mutex actor shape as the teacher's texture staging
// worker.
type Manager struct {
	wk         chan func()
	done       chan struct{}
	wg         sync.WaitGroup
	mu         sync.RWMutex // coarse guard for concurrent iteration (§5)
	reg        *registry
	dumpPolicy DumpPolicy
	loadingMode LoadingMode
	clock      atomic.Uint64
	log        *slog.Logger
	restoreSF  singleflight.Group
}

// NewManager creates a Manager and starts its worker goroutine.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		wk:          make(chan func(), 64),
		done:        make(chan struct{}),
		reg:         newRegistry(),
		dumpPolicy:  NeverDumpPolicy{},
		loadingMode: Lazy,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.wg.Add(1)
	go m.run()
	return m
}

func (m *Manager) run() {
	defer m.wg.Done()
	for {
		select {
		case fn := <-m.wk:
			fn()
		case <-m.done:
			// Drain whatever is already queued before exiting, so
			// outstanding dump/restore I/O is not abandoned.
			for {
				select {
				case fn := <-m.wk:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Close stops the worker after draining pending ops. Cancellation of
// in-flight ops is not supported; every posted op runs to completion.
func (m *Manager) Close() {
	close(m.done)
	m.wg.Wait()
}

func (m *Manager) post(fn func()) {
	m.wk <- fn
}

func (m *Manager) tick() uint64 { return m.clock.Add(1) }

// --- dumpRequester, implemented against the registry directly since
// the DumpPolicy is only ever invoked from inside the worker.

func (m *Manager) requestDump(h Handle) {
	i, err := m.reg.lookup(h)
	if err != nil {
		return
	}
	m.doDump(i)
}

func (m *Manager) isDumpable(h Handle) bool {
	i, err := m.reg.lookup(h)
	if err != nil {
		return false
	}
	return i.loaded && i.lockCount == 0 && i.size > 0
}

func (m *Manager) sizeOf(h Handle) int64 {
	i, err := m.reg.lookup(h)
	if err != nil {
		return 0
	}
	return i.size
}

func (m *Manager) observe(ev dumpEvent, h Handle) {
	m.dumpPolicy.observe(ev, h, m)
}

// --- public API -------------------------------------------------

// Register allocates a fresh Handle and adds it to the registry.
func (m *Manager) Register() *Future[Handle] {
	f, resolve := newFuture[Handle]()
	m.post(func() {
		m.mu.Lock()
		i := m.reg.register()
		m.mu.Unlock()
		m.observe(onRegister, i.handle)
		resolve(i.handle, nil)
	})
	return f
}

// Unregister removes h from the registry. It panics if h is currently
// locked (a fatal assertion per the spec's error design, not a
// recoverable error).
func (m *Manager) Unregister(h Handle) *Future[struct{}] {
	f, resolve := newFuture[struct{}]()
	m.post(func() {
		m.mu.Lock()
		err := m.reg.unregister(h)
		m.mu.Unlock()
		if err == nil {
			m.observe(onUnregister, h)
		}
		resolve(struct{}{}, err)
	})
	return f
}

// Allocate assigns policy to h and allocates size bytes through it.
func (m *Manager) Allocate(h Handle, size int64, policy AllocPolicy) *Future[struct{}] {
	f, resolve := newFuture[struct{}]()
	m.post(func() {
		i, err := m.reg.lookup(h)
		if err != nil {
			resolve(struct{}{}, err)
			return
		}
		region, err := policy.allocate(size)
		if err != nil {
			resolve(struct{}{}, fmt.Errorf("%w", ErrOutOfMemory))
			return
		}
		m.mu.Lock()
		i.policy = policy
		i.region = region
		m.reg.setSize(i, size)
		m.reg.setLoaded(i, true)
		i.lastAccess = m.tick()
		m.mu.Unlock()
		m.observe(onAllocate, h)
		resolve(struct{}{}, nil)
	})
	return f
}

// SetBuffer adopts an externally owned region for h.
func (m *Manager) SetBuffer(h Handle, region []byte, size int64, policy AllocPolicy) *Future[struct{}] {
	f, resolve := newFuture[struct{}]()
	m.post(func() {
		i, err := m.reg.lookup(h)
		if err != nil {
			resolve(struct{}{}, err)
			return
		}
		m.mu.Lock()
		i.policy = policy
		i.region = region
		m.reg.setSize(i, size)
		m.reg.setLoaded(i, true)
		i.lastAccess = m.tick()
		m.mu.Unlock()
		m.observe(onSet, h)
		resolve(struct{}{}, nil)
	})
	return f
}

// Reallocate resizes h's region, restoring it first if it is
// currently dumped. A shrink while dumped truncates the restored
// content silently.
func (m *Manager) Reallocate(h Handle, newSize int64) *Future[struct{}] {
	f, resolve := newFuture[struct{}]()
	m.post(func() {
		i, err := m.reg.lookup(h)
		if err != nil {
			resolve(struct{}{}, err)
			return
		}
		if !i.loaded {
			if ok, err := m.doRestore(i); err != nil || !ok {
				resolve(struct{}{}, err)
				return
			}
		}
		region, err := i.policy.reallocate(i.region, newSize)
		if err != nil {
			resolve(struct{}{}, fmt.Errorf("%w", ErrOutOfMemory))
			return
		}
		m.mu.Lock()
		i.region = region
		m.reg.setSize(i, newSize)
		i.lastAccess = m.tick()
		m.mu.Unlock()
		m.observe(onReallocate, h)
		resolve(struct{}{}, nil)
	})
	return f
}

// Destroy frees h's region through its allocation policy. It panics
// if h is currently locked.
func (m *Manager) Destroy(h Handle) *Future[struct{}] {
	f, resolve := newFuture[struct{}]()
	m.post(func() {
		i, err := m.reg.lookup(h)
		if err != nil {
			resolve(struct{}{}, err)
			return
		}
		if i.lockCount > 0 {
			panic(lockedPanic{h})
		}
		if i.loaded {
			i.policy.destroy(i.region)
		}
		m.mu.Lock()
		i.region = nil
		m.mu.Unlock()
		m.observe(onDestroy, h)
		resolve(struct{}{}, nil)
	})
	return f
}

// Swap exchanges the regions and metadata of a and b atomically with
// respect to any concurrent Info call (P4). Lock counters are not
// swapped.
func (m *Manager) Swap(a, b Handle) *Future[struct{}] {
	f, resolve := newFuture[struct{}]()
	m.post(func() {
		ia, err := m.reg.lookup(a)
		if err != nil {
			resolve(struct{}{}, err)
			return
		}
		ib, err := m.reg.lookup(b)
		if err != nil {
			resolve(struct{}{}, err)
			return
		}
		m.mu.Lock()
		ia.region, ib.region = ib.region, ia.region
		ia.size, ib.size = ib.size, ia.size
		ia.loaded, ib.loaded = ib.loaded, ia.loaded
		ia.file, ib.file = ib.file, ia.file
		ia.format, ib.format = ib.format, ia.format
		ia.autoDelete, ib.autoDelete = ib.autoDelete, ia.autoDelete
		ia.policy, ib.policy = ib.policy, ia.policy
		ia.factory, ib.factory = ib.factory, ia.factory
		ia.userStream, ib.userStream = ib.userStream, ia.userStream
		now := m.tick()
		ia.lastAccess, ib.lastAccess = now, now
		m.mu.Unlock()
		resolve(struct{}{}, nil)
	})
	return f
}

// Lock ensures h's buffer is loaded and returns a token pinning it.
// Concurrent Lock calls for the same handle are collapsed onto a
// single posted op via singleflight, so a burst of lockers waiting on
// a cold buffer triggers exactly one restore.
func (m *Manager) Lock(h Handle) *Future[*LockToken] {
	f, resolve := newFuture[*LockToken]()
	key := fmt.Sprintf("%d", uint64(h))
	go func() {
		// ensureToken only restores-and-attaches a token; it never
		// touches the lock count, so every caller here — whether it
		// ran ensureToken itself or piggy-backed on a concurrent
		// in-flight call via singleflight — still needs to post its
		// own reference below.
		v, err, _ := m.restoreSF.Do(key, func() (any, error) {
			inner, resolveInner := newFuture[*LockToken]()
			m.post(func() {
				tok, err := m.ensureToken(h)
				resolveInner(tok, err)
			})
			return inner.Wait()
		})
		if err != nil {
			resolve(nil, err)
			return
		}
		tok := v.(*LockToken)
		done := make(chan struct{})
		m.post(func() {
			i, lookupErr := m.reg.lookup(h)
			if lookupErr == nil {
				i.lockCount++
				i.lastAccess = m.tick()
				m.observe(onLock, h)
			}
			close(done)
		})
		<-done
		resolve(tok, nil)
	}()
	return f
}

// ensureToken makes sure h's buffer is loaded and has a live token,
// restoring it first if necessary, without adjusting the lock count.
func (m *Manager) ensureToken(h Handle) (*LockToken, error) {
	i, err := m.reg.lookup(h)
	if err != nil {
		return nil, err
	}
	if i.token != nil {
		return i.token, nil
	}
	if !i.loaded {
		ok, err := m.doRestore(i)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRestoreFailed, err)
		}
		if !ok {
			return nil, ErrRestoreFailed
		}
	}
	tok := &LockToken{h: h, m: m}
	i.token = tok
	return tok, nil
}

// postUnlock is called by LockToken.Unlock.
func (m *Manager) postUnlock(h Handle) {
	m.post(func() {
		i, err := m.reg.lookup(h)
		if err != nil {
			return
		}
		if i.lockCount == 0 {
			return
		}
		i.lockCount--
		if i.lockCount == 0 {
			i.token = nil
		}
		m.observe(onUnlock, h)
	})
}

// Dump evicts h's buffer to a temporary file. It is a no-op unless
// the buffer is loaded, unlocked and non-empty.
func (m *Manager) Dump(h Handle) *Future[bool] {
	f, resolve := newFuture[bool]()
	m.post(func() {
		i, err := m.reg.lookup(h)
		if err != nil {
			resolve(false, err)
			return
		}
		ok := m.doDump(i)
		resolve(ok, nil)
	})
	return f
}

func (m *Manager) doDump(i *info) bool {
	if !i.loaded || i.lockCount > 0 || i.size == 0 {
		return false
	}
	file, err := os.CreateTemp("", "volcore-buffer-*.raw")
	if err != nil {
		m.log.Error("buffer: dump: create temp file failed", "handle", i.handle, "err", err)
		return false
	}
	path := file.Name()
	if _, err := file.Write(i.region); err != nil {
		file.Close()
		os.Remove(path)
		m.log.Error("buffer: dump: write failed", "handle", i.handle, "err", err)
		return false
	}
	file.Close()

	i.policy.destroy(i.region)

	m.mu.Lock()
	i.region = nil
	i.file = path
	i.format = FormatRaw
	i.autoDelete = true
	i.factory = newRawFileFactory(path, true)
	m.reg.setLoaded(i, false)
	m.mu.Unlock()

	m.reg.stats.DumpCount++
	m.observe(onDumpSuccess, i.handle)
	m.log.Debug("buffer: dumped", "handle", i.handle, "size", i.size, "file", path)
	return true
}

// Restore reloads h's buffer from its stream factory.
func (m *Manager) Restore(h Handle) *Future[bool] {
	f, resolve := newFuture[bool]()
	m.post(func() {
		i, err := m.reg.lookup(h)
		if err != nil {
			resolve(false, err)
			return
		}
		ok, err := m.doRestore(i)
		resolve(ok, err)
	})
	return f
}

func (m *Manager) doRestore(i *info) (bool, error) {
	if i.loaded {
		return true, nil
	}
	if i.factory == nil {
		return false, nil
	}
	sz := i.size
	region, err := i.policy.allocate(sz)
	if err != nil {
		return false, fmt.Errorf("%w", ErrOutOfMemory)
	}
	stream, err := i.factory.open(sz)
	if err != nil {
		return false, err
	}
	n, err := io.ReadFull(stream, region)
	stream.Close()
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return false, err
	}
	if int64(n) < sz {
		return false, fmt.Errorf("%w: got %d want %d", ErrShortRead, n, sz)
	}

	if rf, ok := i.factory.(*rawFileFactory); ok {
		rf.remove()
	}

	m.mu.Lock()
	i.region = region
	i.factory = newMemoryFactory(region)
	i.file = ""
	m.reg.setLoaded(i, true)
	i.lastAccess = m.tick()
	m.mu.Unlock()

	m.reg.stats.RestoreCount++
	m.observe(onRestoreSuccess, i.handle)
	m.log.Debug("buffer: restored", "handle", i.handle, "size", sz)
	return true, nil
}

// SetIStreamFactory attaches a caller-supplied or raw-file factory to
// h. In Direct loading mode the buffer is restored inline; in Lazy
// mode it is dumped (or left dumped) until something locks it.
func (m *Manager) SetIStreamFactory(h Handle, factory StreamFactory, size int64, path string, format FileFormat, policy AllocPolicy) *Future[struct{}] {
	f, resolve := newFuture[struct{}]()
	m.post(func() {
		i, err := m.reg.lookup(h)
		if err != nil {
			resolve(struct{}{}, err)
			return
		}
		m.mu.Lock()
		i.policy = policy
		i.factory = &userFactory{factory}
		i.userStream = true
		i.file = path
		i.format = format
		m.reg.setSize(i, size)
		m.mu.Unlock()

		switch m.loadingMode {
		case Direct:
			m.doRestore(i)
		case Lazy:
			if i.loaded {
				m.doDump(i)
			}
		}
		resolve(struct{}{}, nil)
	})
	return f
}

// StreamInfo opens a stream over h's current contents.
func (m *Manager) StreamInfo(h Handle) *Future[StreamInfo] {
	f, resolve := newFuture[StreamInfo]()
	m.post(func() {
		i, err := m.reg.lookup(h)
		if err != nil {
			resolve(StreamInfo{}, err)
			return
		}
		factory := i.factory
		var tok *LockToken
		if factory == nil || i.loaded {
			// Reading live, in-memory contents: pin the buffer for
			// the stream's lifetime so a concurrent dump cannot run
			// out from under the reader, per the memory factory's
			// contract in component D. Running inline here (rather
			// than via m.post) avoids deadlocking this very worker
			// closure.
			var lockErr error
			tok, lockErr = m.ensureToken(h)
			if lockErr != nil {
				resolve(StreamInfo{}, lockErr)
				return
			}
			i.lockCount++
			i.lastAccess = m.tick()
			m.observe(onLock, h)
			factory = newMemoryFactory(i.region)
		}
		stream, err := factory.open(i.size)
		if err != nil {
			if tok != nil {
				tok.Unlock()
			}
			resolve(StreamInfo{}, err)
			return
		}
		if tok != nil {
			stream = &pinnedStream{ReadCloser: stream, tok: tok}
		}
		resolve(StreamInfo{
			Size:       i.size,
			Stream:     stream,
			File:       i.file,
			Format:     i.format,
			UserStream: i.userStream,
		}, nil)
	})
	return f
}

// SetDumpPolicy installs p, calling its refresh hook.
func (m *Manager) SetDumpPolicy(p DumpPolicy) *Future[struct{}] {
	f, resolve := newFuture[struct{}]()
	m.post(func() {
		m.dumpPolicy = p
		p.refresh(m)
		resolve(struct{}{}, nil)
	})
	return f
}

// DumpPolicy returns the manager's current dump policy.
func (m *Manager) DumpPolicy() *Future[DumpPolicy] {
	f, resolve := newFuture[DumpPolicy]()
	m.post(func() { resolve(m.dumpPolicy, nil) })
	return f
}

// Info returns a snapshot of h's metadata.
func (m *Manager) Info(h Handle) *Future[BufferInfo] {
	f, resolve := newFuture[BufferInfo]()
	m.post(func() {
		m.mu.RLock()
		defer m.mu.RUnlock()
		info, err := m.reg.info(h)
		resolve(info, err)
	})
	return f
}

// Stats returns a snapshot of registry-wide totals.
func (m *Manager) Stats() *Future[Stats] {
	f, resolve := newFuture[Stats]()
	m.post(func() {
		m.mu.RLock()
		defer m.mu.RUnlock()
		resolve(m.reg.statsSnapshot(), nil)
	})
	return f
}

// ForEach calls fn with every currently-managed buffer's snapshot.
func (m *Manager) ForEach(fn func(BufferInfo)) *Future[struct{}] {
	f, resolve := newFuture[struct{}]()
	m.post(func() {
		m.mu.RLock()
		defer m.mu.RUnlock()
		m.reg.forEach(func(i *info) { fn(i.snapshot()) })
		resolve(struct{}{}, nil)
	})
	return f
}

// IsLoaded reports whether h's buffer is currently resident in
// memory.
func (m *Manager) IsLoaded(h Handle) *Future[bool] {
	f, resolve := newFuture[bool]()
	m.post(func() {
		i, err := m.reg.lookup(h)
		if err != nil {
			resolve(false, err)
			return
		}
		resolve(i.loaded, nil)
	})
	return f
}

// DumpedFilePath returns the path of h's dump file, or "" if it is
// not currently dumped to a file.
func (m *Manager) DumpedFilePath(h Handle) *Future[string] {
	f, resolve := newFuture[string]()
	m.post(func() {
		i, err := m.reg.lookup(h)
		if err != nil {
			resolve("", err)
			return
		}
		resolve(i.file, nil)
	})
	return f
}

// DumpedFileFormat returns the format of h's dump file.
func (m *Manager) DumpedFileFormat(h Handle) *Future[FileFormat] {
	f, resolve := newFuture[FileFormat]()
	m.post(func() {
		i, err := m.reg.lookup(h)
		if err != nil {
			resolve(FormatOther, err)
			return
		}
		resolve(i.format, nil)
	})
	return f
}

// --- process-wide default singleton ------------------------------

var (
	defaultOnce sync.Once
	defaultMgr  *Manager
)

// Default returns the process-wide default Manager, creating it on
// first use. Teardown is not required: leaking the worker goroutine
// on process exit is acceptable, matching the spec's singleton
// design note.
func Default() *Manager {
	defaultOnce.Do(func() {
		defaultMgr = NewManager()
	})
	return defaultMgr
}
