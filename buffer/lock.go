package buffer

// LockToken is the Arc<LockGuard>-equivalent shared handle returned
// by Manager.Lock. While any token exists for a buffer, the buffer
// cannot be dumped (I3). Concurrent Lock calls on the same handle
// share one underlying token, the same way multiple Arc clones share
// one allocation; each Lock call's returned token must be paired with
// exactly one Unlock call, which decrements the buffer's shared lock
// count rather than invalidating the token itself. Go has no
// destructor-based Drop, so this pairing is the caller's
// responsibility, the same discipline as sync.Mutex or os.File.
type LockToken struct {
	h Handle
	m *Manager
}

// Handle returns the buffer this token pins.
func (t *LockToken) Handle() Handle { return t.h }

// Unlock releases this reference to the token, posting an unlock op
// to the manager.
func (t *LockToken) Unlock() {
	t.m.postUnlock(t.h)
}
