package archive

import (
	"archive/zip"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/chacha20poly1305"
)

// Format selects the archive container (§6.2).
type Format int

const (
	// Filesystem writes the tree directly to the named path and
	// blobs to a sibling directory; it never encrypts.
	Filesystem Format = iota
	// Zip writes a ZSTD-compressed, optionally AEAD-encrypted archive.
	Zip
)

// zstdMethod is the archive/zip custom compression method id used for
// every entry, registered once at package init so the standard
// library's zip reader/writer can stream through a ZSTD codec instead
// of the built-in Deflate (§6.2 "written with ZSTD compression").
const zstdMethod = 93

func init() {
	zip.RegisterCompressor(zstdMethod, func(w io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(w)
	})
	zip.RegisterDecompressor(zstdMethod, func(r io.Reader) io.ReadCloser {
		dec, err := zstd.NewReader(r)
		if err != nil {
			return io.NopCloser(&errReader{err})
		}
		return dec.IOReadCloser()
	})
}

type errReader struct{ err error }

func (e *errReader) Read([]byte) (int, error) { return 0, e.err }

// container abstracts over the two archive backends: a blob is a
// named binary entry (path "<uuid>/<name>"), and the index is the
// single root tree document.
type container interface {
	writeBlob(path string, data []byte) error
	readBlob(path string) ([]byte, error)
	writeIndex(data []byte) error
	readIndex() ([]byte, error)
	close() error
}

// --- filesystem container -------------------------------------------------

type fsContainer struct {
	indexPath string
	blobDir   string
}

func openFSWriter(path string) (*fsContainer, error) {
	blobDir := path + ".blobs"
	if err := os.MkdirAll(blobDir, 0o755); err != nil {
		return nil, err
	}
	return &fsContainer{indexPath: path, blobDir: blobDir}, nil
}

func openFSReader(path string) (*fsContainer, error) {
	return &fsContainer{indexPath: path, blobDir: path + ".blobs"}, nil
}

func (c *fsContainer) writeBlob(path string, data []byte) error {
	full := filepath.Join(c.blobDir, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, data, 0o644)
}

func (c *fsContainer) readBlob(path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(c.blobDir, filepath.FromSlash(path)))
}

func (c *fsContainer) writeIndex(data []byte) error {
	return os.WriteFile(c.indexPath, data, 0o644)
}

func (c *fsContainer) readIndex() ([]byte, error) {
	return os.ReadFile(c.indexPath)
}

func (c *fsContainer) close() error { return nil }

// --- zip container ---------------------------------------------------------

const indexEntryName = "index.json"

type zipWriteContainer struct {
	f *os.File
	w *zip.Writer
}

func createZipWriter(path string) (*zipWriteContainer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &zipWriteContainer{f: f, w: zip.NewWriter(f)}, nil
}

func (c *zipWriteContainer) writeEntry(name string, data []byte) error {
	hdr := &zip.FileHeader{Name: name, Method: zstdMethod}
	w, err := c.w.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func (c *zipWriteContainer) writeBlob(path string, data []byte) error { return c.writeEntry(path, data) }
func (c *zipWriteContainer) writeIndex(data []byte) error             { return c.writeEntry(indexEntryName, data) }
func (c *zipWriteContainer) readBlob(string) ([]byte, error) {
	return nil, fmt.Errorf("archive: zip container opened for writing cannot read")
}
func (c *zipWriteContainer) readIndex() ([]byte, error) {
	return nil, fmt.Errorf("archive: zip container opened for writing cannot read")
}

func (c *zipWriteContainer) close() error {
	if err := c.w.Close(); err != nil {
		c.f.Close()
		return err
	}
	return c.f.Close()
}

type zipReadContainer struct {
	f *os.File
	r *zip.Reader
}

func openZipReader(path string) (*zipReadContainer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	r, err := zip.NewReader(f, fi.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	return &zipReadContainer{f: f, r: r}, nil
}

func (c *zipReadContainer) readEntry(name string) ([]byte, error) {
	f, err := c.r.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (c *zipReadContainer) readBlob(path string) ([]byte, error) { return c.readEntry(path) }
func (c *zipReadContainer) readIndex() ([]byte, error)           { return c.readEntry(indexEntryName) }
func (c *zipReadContainer) writeBlob(string, []byte) error {
	return fmt.Errorf("archive: zip container opened for reading cannot write")
}
func (c *zipReadContainer) writeIndex([]byte) error {
	return fmt.Errorf("archive: zip container opened for reading cannot write")
}
func (c *zipReadContainer) close() error { return c.f.Close() }

// --- AEAD framing for the index entry --------------------------------------
//
// sealIndex/openIndex wrap the plain index bytes with a random
// nonce-prefixed ChaCha20-Poly1305 seal when a non-empty key is in
// play; an empty key means "no encryption" and the bytes pass through
// unchanged. The zip layer compresses the sealed bytes afterwards.

func sealIndex(plain []byte, key []byte) ([]byte, error) {
	if len(key) == 0 {
		return plain, nil
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plain, nil), nil
}

func openIndex(sealed []byte, key []byte) ([]byte, error) {
	if len(key) == 0 {
		return sealed, nil
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, fmt.Errorf("archive: encrypted index truncated")
	}
	nonce, ct := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	return aead.Open(nil, nonce, ct, nil)
}
