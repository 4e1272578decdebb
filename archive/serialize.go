package archive

import (
	"encoding/json"

	"github.com/google/uuid"
)

// serializeGraph walks root and every reachable node exactly once,
// emitting a stub classTree for any node whose UUID was already
// written (§4.F steps 1-3).
func serializeGraph(root Object, w *Writer) (classTree, error) {
	emitted := map[uuid.UUID]bool{}
	return serializeNode(root, emitted, w)
}

func serializeNode(obj Object, emitted map[uuid.UUID]bool, w *Writer) (classTree, error) {
	id := obj.UUID()
	if emitted[id] {
		return classTree{obj.ClassName(): {UUID: id.String()}}, nil
	}
	emitted[id] = true

	codec, err := lookupCodec(w.override, obj.ClassName())
	if err != nil {
		return nil, err
	}
	fields, children, err := codec.Serialize(obj, w)
	if err != nil {
		return nil, err
	}

	var childTrees map[string]classTree
	if len(children) > 0 {
		childTrees = make(map[string]classTree, len(children))
		for key, child := range children {
			ct, err := serializeNode(child, emitted, w)
			if err != nil {
				return nil, err
			}
			childTrees[key] = ct
		}
	}

	return classTree{obj.ClassName(): {
		UUID:        id.String(),
		Description: obj.Description(),
		Children:    childTrees,
		Fields:      fields,
	}}, nil
}

// Option configures a Serialize/Deserialize call.
type Option func(*callConfig)

type callConfig struct {
	registry     *Registry
	buildDefault string
}

// WithRegistry installs a per-call codec registry consulted before the
// process-wide default (§4.F "override registry").
func WithRegistry(r *Registry) Option {
	return func(c *callConfig) { c.registry = r }
}

// WithBuildDefaultPassword sets the build-time default password used
// by PolicyForced when the caller supplies none (§4.F).
func WithBuildDefaultPassword(p string) Option {
	return func(c *callConfig) { c.buildDefault = p }
}

// Serialize writes root's reachable graph to path in the given
// Format, under the given encryption Policy and password (§4.F, §6.2).
func Serialize(path string, root Object, format Format, password string, policy Policy, opts ...Option) error {
	cfg := callConfig{}
	for _, o := range opts {
		o(&cfg)
	}

	if format == Filesystem && password != "" {
		log.Warn("archive: password ignored, filesystem format never encrypts", "path", path)
	}

	var c container
	switch format {
	case Filesystem:
		fc, err := openFSWriter(path)
		if err != nil {
			return err
		}
		c = fc
	case Zip:
		zc, err := createZipWriter(path)
		if err != nil {
			return err
		}
		c = zc
	default:
		return ErrUnknownFormat
	}
	defer c.close()

	w := &Writer{c: c, override: cfg.registry, policy: policy, rawPassword: password, buildDefault: cfg.buildDefault}
	tree, err := serializeGraph(root, w)
	if err != nil {
		return err
	}

	plain, err := json.Marshal(tree)
	if err != nil {
		return err
	}

	if format == Filesystem {
		return c.writeIndex(plain)
	}

	key, err := indexKey(password, policy, cfg.buildDefault)
	if err != nil {
		return err
	}
	sealed, err := sealIndex(plain, key)
	if err != nil {
		return err
	}
	return c.writeIndex(sealed)
}

// indexKey derives the AEAD key for the whole index document. The
// index is pickled against the nil UUID rather than the root node's
// own UUID: the key must be derivable before the (possibly encrypted)
// index has been read, so it cannot depend on anything stored inside
// it. An empty return means "no encryption" (policy PolicyPassword
// with an empty caller password).
func indexKey(password string, policy Policy, buildDefault string) ([]byte, error) {
	pickled := pickle(password, uuid.Nil, policy, buildDefault)
	if pickled == "" {
		return nil, nil
	}
	return deriveKey(pickled, uuid.Nil[:])
}
