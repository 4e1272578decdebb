package buffer

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// StreamFactory is a lazy, re-entrant producer of a readable byte
// stream over a buffer's contents. open must produce exactly size
// bytes when the buffer is not loaded.
type StreamFactory interface {
	open(size int64) (io.ReadCloser, error)
}

// memoryFactory wraps an already-loaded region. It does not itself
// pin the buffer; Manager.StreamInfo is responsible for taking out a
// LockToken around a memory-backed read so that "read the current
// contents" never races a concurrent dump (see pinnedStream).
type memoryFactory struct {
	data []byte
}

func newMemoryFactory(data []byte) *memoryFactory {
	return &memoryFactory{data: data}
}

func (f *memoryFactory) open(size int64) (io.ReadCloser, error) {
	n := int64(len(f.data))
	if n > size {
		n = size
	}
	return &memoryStream{r: bytes.NewReader(f.data[:n])}, nil
}

type memoryStream struct {
	r *bytes.Reader
}

func (s *memoryStream) Read(p []byte) (int, error) { return s.r.Read(p) }
func (s *memoryStream) Close() error                { return nil }

// rawFileFactory opens a plain binary file by path on every call to
// open. It fails with ErrFileMoved if the path no longer resolves.
type rawFileFactory struct {
	path       string
	autoDelete bool
}

func newRawFileFactory(path string, autoDelete bool) *rawFileFactory {
	return &rawFileFactory{path: path, autoDelete: autoDelete}
}

func (f *rawFileFactory) open(size int64) (io.ReadCloser, error) {
	file, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileMoved, f.path)
		}
		return nil, err
	}
	return &rawFileStream{file: file, remaining: size}, nil
}

type rawFileStream struct {
	file      *os.File
	remaining int64
}

func (s *rawFileStream) Read(p []byte) (int, error) {
	if int64(len(p)) > s.remaining {
		p = p[:s.remaining]
	}
	if len(p) == 0 {
		return 0, io.EOF
	}
	n, err := s.file.Read(p)
	s.remaining -= int64(n)
	return n, err
}

func (s *rawFileStream) Close() error { return s.file.Close() }

// remove deletes the backing file; called by the manager after a
// successful restore of an autoDelete raw-file factory. Destroying the
// owning buffer does not call it.
func (f *rawFileFactory) remove() error {
	if !f.autoDelete {
		return nil
	}
	return os.Remove(f.path)
}

// userFactory wraps a StreamFactory supplied by the caller through
// Manager.SetIStreamFactory. It exists only as a marker so the
// registry can report UserStream == true via BufferInfo.
type userFactory struct {
	StreamFactory
}
