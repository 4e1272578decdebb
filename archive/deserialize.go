package archive

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// deserializeGraph is the mirror of serializeGraph: nodes already in
// cache are returned as-is (by UUID), so shared sub-graphs deserialize
// to the same Go value (P8). A new node is constructed and inserted
// into the cache *before* recursing into its children, so a cycle or a
// forward shared reference resolves without infinite recursion (§4.F).
func deserializeGraph(ct classTree, r *Reader) (Object, error) {
	cache := map[uuid.UUID]Object{}
	return deserializeNode(ct, cache, r)
}

func deserializeNode(ct classTree, cache map[uuid.UUID]Object, r *Reader) (Object, error) {
	class, tn, ok := ct.single()
	if !ok {
		return nil, fmt.Errorf("archive: empty class tree")
	}
	id, err := uuid.Parse(tn.UUID)
	if err != nil {
		return nil, fmt.Errorf("archive: invalid uuid %q: %w", tn.UUID, err)
	}

	if obj, ok := cache[id]; ok {
		return obj, nil
	}

	codec, err := lookupCodec(r.override, class)
	if err != nil {
		log.Warn("archive: no codec for class, returning stub", "class", class, "uuid", id, "err", err)
		stub := &Stub{id: id, class: class, desc: tn.Description}
		cache[id] = stub
		return stub, nil
	}
	obj := codec.New()
	obj.SetUUID(id)
	if n, ok := obj.(*Node); ok {
		n.class = class
	}
	cache[id] = obj

	var children map[string]Object
	if len(tn.Children) > 0 {
		children = make(map[string]Object, len(tn.Children))
		for key, sub := range tn.Children {
			child, err := deserializeNode(sub, cache, r)
			if err != nil {
				return nil, err
			}
			children[key] = child
		}
	}

	if err := codec.Deserialize(obj, tn.Fields, children, r); err != nil {
		return nil, err
	}
	obj.SetDescription(tn.Description)
	return obj, nil
}

// Deserialize reads the archive at path (written by Serialize in the
// same Format) and reconstructs its root object graph.
func Deserialize(path string, format Format, password string, policy Policy, opts ...Option) (Object, error) {
	cfg := callConfig{}
	for _, o := range opts {
		o(&cfg)
	}

	var c container
	switch format {
	case Filesystem:
		fc, err := openFSReader(path)
		if err != nil {
			return nil, err
		}
		c = fc
	case Zip:
		zc, err := openZipReader(path)
		if err != nil {
			return nil, err
		}
		c = zc
	default:
		return nil, ErrUnknownFormat
	}
	defer c.close()

	raw, err := c.readIndex()
	if err != nil {
		return nil, err
	}

	plain := raw
	if format == Zip {
		key, err := indexKey(password, policy, cfg.buildDefault)
		if err != nil {
			return nil, err
		}
		plain, err = openIndex(raw, key)
		if err != nil {
			return nil, err
		}
	}

	var tree classTree
	if err := json.Unmarshal(plain, &tree); err != nil {
		return nil, err
	}

	r := &Reader{c: c, override: cfg.registry, policy: policy, rawPassword: password, buildDefault: cfg.buildDefault}
	return deserializeGraph(tree, r)
}
