// Package archive implements component F: recursive serialization of a
// session graph to a filesystem tree or a compressed, optionally
// encrypted container, mirroring (and sharing node identity with) a
// live object graph across a round-trip.
package archive

import (
	"github.com/google/uuid"
)

// Object is a session-graph node: anything with a stable identity, a
// class name under which its codec is registered, and a free-text
// description carried alongside the tree (§4.F step 3, "write
// {uuid, description}").
type Object interface {
	UUID() uuid.UUID
	ClassName() string
	Description() string
	SetDescription(string)
	// SetUUID assigns the identity read from an archive tree to a
	// freshly constructed blank object, before deserialize recurses
	// into its children (§4.F "pre-insert-then-recurse").
	SetUUID(uuid.UUID)
}

// Node is the concrete graph node archive itself walks. Real
// application types may instead implement Object directly and
// register their own Codec; Node plus NodeCodec cover the common case
// of a generic, untyped graph.
type Node struct {
	id    uuid.UUID
	class string
	desc  string

	Fields   map[string]any
	Children map[string]Object
}

// NewNode creates a Node with a fresh UUID under the given class name.
// The class name is the key the codec registry and the archive tree
// use to identify this node's type.
func NewNode(class string) *Node {
	return &Node{id: uuid.New(), class: class, Fields: map[string]any{}, Children: map[string]Object{}}
}

// UUID returns n's stable identity, preserved across a round-trip.
func (n *Node) UUID() uuid.UUID { return n.id }

// ClassName returns n's codec class.
func (n *Node) ClassName() string { return n.class }

// Description returns n's free-text description.
func (n *Node) Description() string { return n.desc }

// SetDescription replaces n's free-text description.
func (n *Node) SetDescription(s string) { n.desc = s }

// SetUUID implements Object for deserialize's pre-insert step.
func (n *Node) SetUUID(id uuid.UUID) { n.id = id }

// Stub stands in for a node whose class has no registered codec
// during deserialization: its identity, class name and description
// are preserved but its fields and children are unavailable. It lets
// deserialize tolerate an unknown class and return a partial graph
// instead of aborting entirely (§7).
type Stub struct {
	id    uuid.UUID
	class string
	desc  string
}

// UUID returns the stub's preserved identity.
func (s *Stub) UUID() uuid.UUID { return s.id }

// ClassName returns the stub's preserved, unresolved class name.
func (s *Stub) ClassName() string { return s.class }

// Description returns the stub's preserved description.
func (s *Stub) Description() string { return s.desc }

// SetDescription implements Object.
func (s *Stub) SetDescription(d string) { s.desc = d }

// SetUUID implements Object.
func (s *Stub) SetUUID(id uuid.UUID) { s.id = id }
