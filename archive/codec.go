package archive

import (
	"fmt"
	"sync"
)

// Codec is the pair of functions a class name is registered under
// (§4.F "Codec registry", §9 "a registry ... maps a string class name
// to a pair of function pointers").
//
// Serialize receives the live object and returns the scalar fields to
// write into its tree node and the named sub-objects to recurse into
// as children; it may also write binary blobs through w. Deserialize
// receives a blank object (already cache-inserted under its UUID, so
// cyclic/shared references resolve correctly), the fields and already
// -deserialized children read from the tree, and applies them to obj.
type Codec struct {
	New         func() Object
	Serialize   func(obj Object, w *Writer) (fields map[string]any, children map[string]Object, err error)
	Deserialize func(obj Object, fields map[string]any, children map[string]Object, r *Reader) error
}

// Registry maps class names to codecs. The package keeps one default,
// process-wide Registry; a Writer or Reader may additionally carry a
// per-call override Registry consulted first (§4.F).
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Codec
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{codecs: map[string]Codec{}}
}

// Register binds class to c, replacing any existing binding.
func (r *Registry) Register(class string, c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[class] = c
}

func (r *Registry) lookup(class string) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[class]
	return c, ok
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide codec registry.
func DefaultRegistry() *Registry { return defaultRegistry }

// Register binds class to c in the process-wide default registry.
func Register(class string, c Codec) { defaultRegistry.Register(class, c) }

func lookupCodec(override *Registry, class string) (Codec, error) {
	if override != nil {
		if c, ok := override.lookup(class); ok {
			return c, nil
		}
	}
	if c, ok := defaultRegistry.lookup(class); ok {
		return c, nil
	}
	return Codec{}, fmt.Errorf("%w: %s", ErrNoSerializer, class)
}

// NodeCodec returns a Codec that round-trips a *Node's own
// Fields/Children verbatim, the generic case for application graphs
// that don't need a dedicated Go type per class name: register it
// under every class name NewNode is called with, e.g.
// archive.Register("Study", archive.NodeCodec()).
func NodeCodec() Codec {
	return Codec{
		New: func() Object { return &Node{Fields: map[string]any{}, Children: map[string]Object{}} },
		Serialize: func(obj Object, w *Writer) (map[string]any, map[string]Object, error) {
			n := obj.(*Node)
			return n.Fields, n.Children, nil
		},
		Deserialize: func(obj Object, fields map[string]any, children map[string]Object, r *Reader) error {
			n := obj.(*Node)
			n.Fields = fields
			n.Children = children
			return nil
		},
	}
}
