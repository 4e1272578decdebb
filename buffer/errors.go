package buffer

import "errors"

const prefix = "buffer: "

// Sentinel errors returned through an Op's future. Locked is not in
// this list: a lock-safety violation is a programming error, not a
// recoverable condition, and panics instead (see manager.go).
var (
	// ErrOutOfMemory is returned when an allocation policy refuses a
	// request.
	ErrOutOfMemory = errors.New(prefix + "out of memory")

	// ErrShortRead is returned when restore reads fewer bytes than
	// the buffer's size from its stream factory.
	ErrShortRead = errors.New(prefix + "short read")

	// ErrFileMoved is returned when a raw-file stream factory's path
	// no longer resolves.
	ErrFileMoved = errors.New(prefix + "file moved")

	// ErrNotManaged is returned when a Handle is not present in the
	// registry.
	ErrNotManaged = errors.New(prefix + "not managed")

	// ErrRestoreFailed is returned by lock when a dumped buffer could
	// not be restored.
	ErrRestoreFailed = errors.New(prefix + "restore failed")
)

// lockedPanic is the value passed to panic when unregister or destroy
// is attempted on a buffer with an outstanding lock token. The spec
// treats this as a fatal assertion, not a recoverable error.
type lockedPanic struct{ handle Handle }

func (p lockedPanic) Error() string {
	return prefix + "locked buffer mutated"
}
