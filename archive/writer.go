package archive

import "github.com/google/uuid"

// Writer is the per-serialize-call context threaded through every
// node's Codec.Serialize: it lets a codec write binary blobs into the
// archive under its own node's namespace and exposes the pickled
// password for that node, should the codec need to encrypt a blob
// itself.
type Writer struct {
	c        container
	override *Registry
	policy   Policy

	rawPassword  string
	buildDefault string
}

// WriteBlob stores data at "<uuid>/<name>" inside the archive.
func (w *Writer) WriteBlob(id uuid.UUID, name string, data []byte) error {
	return w.c.writeBlob(id.String()+"/"+name, data)
}

// Password returns this node's pickled password per the active
// Policy (§4.F "Password discipline"), for codecs that encrypt their
// own blobs.
func (w *Writer) Password(id uuid.UUID) string {
	return pickle(w.rawPassword, id, w.policy, w.buildDefault)
}

// Reader is the deserialize-call counterpart of Writer.
type Reader struct {
	c        container
	override *Registry
	policy   Policy

	rawPassword  string
	buildDefault string
}

// ReadBlob reads back a blob written by the matching Writer call.
func (r *Reader) ReadBlob(id uuid.UUID, name string) ([]byte, error) {
	return r.c.readBlob(id.String() + "/" + name)
}

// Password mirrors Writer.Password for deserialization.
func (r *Reader) Password(id uuid.UUID) string {
	return pickle(r.rawPassword, id, r.policy, r.buildDefault)
}
