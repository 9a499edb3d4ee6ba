package domain

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// NodeID identifies a node within one Tree. It is the node's index in the arena.
type NodeID int

// NoParent is the Parent value of a root node.
const NoParent NodeID = -1

// Node is a classified semantic node. Children are owned by the Tree.
type Node struct {
	ID         NodeID            `json:"id"`
	Kind       string            `json:"kind"`
	Role       string            `json:"role,omitempty"`
	Content    string            `json:"content,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Children   []NodeID          `json:"children,omitempty"`
	Parent     NodeID            `json:"parent"`
}

// Attr returns the named attribute and whether it is set.
func (n *Node) Attr(name string) (string, bool) {
	v, ok := n.Attributes[name]
	return v, ok
}

// Tree is an arena of semantic nodes. It is treated as read-only once handed to the engine.
type Tree struct {
	ID    string
	nodes []Node
	root  NodeID
}

// NewTree creates an empty tree with a random identity.
func NewTree() *Tree {
	return &Tree{ID: uuid.NewString(), root: NoParent}
}

// NewTreeWithID creates an empty tree with a caller supplied identity.
// Callers sharing a cache across processes should pick ids that are unique per tree.
func NewTreeWithID(id string) *Tree {
	return &Tree{ID: id, root: NoParent}
}

// Add appends a root-less node and returns its id. The first node added becomes the root.
func (t *Tree) Add(kind, role, content string, attrs map[string]string) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, Node{
		ID:         id,
		Kind:       kind,
		Role:       role,
		Content:    content,
		Attributes: attrs,
		Parent:     NoParent,
	})
	if t.root == NoParent {
		t.root = id
	}
	return id
}

// AddChild appends a node under parent and returns its id.
func (t *Tree) AddChild(parent NodeID, kind, role, content string, attrs map[string]string) (NodeID, error) {
	if !t.Has(parent) {
		return NoParent, fmt.Errorf("parent %d: %w", parent, ErrNodeNotFound)
	}
	id := t.Add(kind, role, content, attrs)
	t.nodes[id].Parent = parent
	t.nodes[parent].Children = append(t.nodes[parent].Children, id)
	return id, nil
}

// Link appends an existing node as a child of parent without touching the child's Parent.
// It exists so hosts can build shared or synthetic structures; the engine guards against
// the cycles this makes possible.
func (t *Tree) Link(parent, child NodeID) error {
	if !t.Has(parent) {
		return fmt.Errorf("parent %d: %w", parent, ErrNodeNotFound)
	}
	if !t.Has(child) {
		return fmt.Errorf("child %d: %w", child, ErrNodeNotFound)
	}
	t.nodes[parent].Children = append(t.nodes[parent].Children, child)
	return nil
}

// Root returns the root node id, or NoParent for an empty tree.
func (t *Tree) Root() NodeID {
	return t.root
}

// Has reports whether id belongs to the tree.
func (t *Tree) Has(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes)
}

// Node returns the node with the given id.
func (t *Tree) Node(id NodeID) (*Node, error) {
	if !t.Has(id) {
		return nil, fmt.Errorf("node %d: %w", id, ErrNodeNotFound)
	}
	return &t.nodes[id], nil
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Position returns the index of id among its parent's children, or -1 for a root.
func (t *Tree) Position(id NodeID) int {
	n, err := t.Node(id)
	if err != nil || n.Parent == NoParent {
		return -1
	}
	for i, c := range t.nodes[n.Parent].Children {
		if c == id {
			return i
		}
	}
	return -1
}

// nestedNode is the wire shape accepted by DecodeTree.
type nestedNode struct {
	Kind       string            `json:"kind"`
	Type       string            `json:"type"` // alias for kind
	Role       string            `json:"role"`
	Content    json.RawMessage   `json:"content"`
	Text       string            `json:"text"` // alias for content
	Attributes map[string]string `json:"attributes"`
	Children   []nestedNode      `json:"children"`
}

func (n nestedNode) kind() string {
	if n.Kind != "" {
		return n.Kind
	}
	if n.Type != "" {
		return n.Type
	}
	return KindUnknown
}

func (n nestedNode) content() (string, error) {
	if len(n.Content) == 0 || string(n.Content) == "null" {
		return n.Text, nil
	}
	var s string
	if err := json.Unmarshal(n.Content, &s); err == nil {
		return s, nil
	}
	// Numeric content is kept in its literal form.
	var num json.Number
	if err := json.Unmarshal(n.Content, &num); err != nil {
		return "", fmt.Errorf("content must be a string or number: %w", err)
	}
	return num.String(), nil
}

// DecodeTree builds a Tree from the nested JSON shape
// {"kind", "role", "content", "attributes", "children": [...]}.
func DecodeTree(data []byte) (*Tree, error) {
	var root nestedNode
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to decode tree: %w", err)
	}
	t := NewTree()
	if err := t.addNested(NoParent, root, 0); err != nil {
		return nil, err
	}
	return t, nil
}

const maxDecodeDepth = 1024

func (t *Tree) addNested(parent NodeID, n nestedNode, depth int) error {
	if depth > maxDecodeDepth {
		return fmt.Errorf("tree nesting exceeds %d levels", maxDecodeDepth)
	}
	content, err := n.content()
	if err != nil {
		return fmt.Errorf("node at depth %d: %w", depth, err)
	}
	var id NodeID
	if parent == NoParent {
		id = t.Add(n.kind(), n.Role, content, n.Attributes)
	} else {
		id, err = t.AddChild(parent, n.kind(), n.Role, content, n.Attributes)
		if err != nil {
			return err
		}
	}
	for _, c := range n.Children {
		if err := t.addNested(id, c, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// String renders a compact s-expression, handy in test failures.
func (t *Tree) String() string {
	if t.root == NoParent {
		return "()"
	}
	return t.sexp(t.root, 0)
}

func (t *Tree) sexp(id NodeID, depth int) string {
	n := &t.nodes[id]
	s := "(" + n.Kind
	if n.Content != "" {
		s += " " + strconv.Quote(n.Content)
	}
	if depth > maxDecodeDepth {
		return s + " ...)"
	}
	for _, c := range n.Children {
		s += " " + t.sexp(c, depth+1)
	}
	return s + ")"
}
