package domain

import "fmt"

// ComponentType tags the variant of an action Component.
type ComponentType string

const (
	// ComponentText appends a literal, the node content or an attribute value.
	ComponentText ComponentType = "text"
	// ComponentNode recurses into the selected node(s) and splices the result.
	ComponentNode ComponentType = "node"
	// ComponentPause attaches a pause to the adjacent description.
	ComponentPause ComponentType = "pause"
	// ComponentPersonality attaches prosody to the output of the next component.
	ComponentPersonality ComponentType = "personality"
)

// TextSource selects where a text component reads its value from.
type TextSource string

const (
	SourceLiteral TextSource = "literal"
	SourceContent TextSource = "content"
	SourceAttr    TextSource = "attr"
)

// SelectorKind names which node(s) a node component recurses into.
type SelectorKind string

const (
	SelectSelf     SelectorKind = "self"
	SelectChild    SelectorKind = "child"
	SelectChildren SelectorKind = "children"
	SelectParent   SelectorKind = "parent"
)

// Selector picks nodes relative to the node being expanded.
type Selector struct {
	Kind  SelectorKind `json:"kind"`
	Index int          `json:"index,omitempty"` // Used by SelectChild, zero based
}

// Select returns the node ids chosen relative to id. Out of range selections yield nothing.
func (s Selector) Select(t *Tree, id NodeID) []NodeID {
	n, err := t.Node(id)
	if err != nil {
		return nil
	}
	switch s.Kind {
	case SelectSelf:
		return []NodeID{id}
	case SelectChild:
		if s.Index < 0 || s.Index >= len(n.Children) {
			return nil
		}
		return []NodeID{n.Children[s.Index]}
	case SelectChildren:
		return append([]NodeID(nil), n.Children...)
	case SelectParent:
		if n.Parent == NoParent {
			return nil
		}
		return []NodeID{n.Parent}
	}
	return nil
}

func (s Selector) String() string {
	if s.Kind == SelectChild {
		return fmt.Sprintf("child:%d", s.Index)
	}
	return string(s.Kind)
}

// Component is one step of a rule action.
type Component struct {
	Type ComponentType `json:"type"`

	// Text components.
	Text   string     `json:"text,omitempty"`
	Source TextSource `json:"source,omitempty"`
	Attr   string     `json:"attr,omitempty"`

	// Node components.
	Selector Selector `json:"selector,omitempty"`
	// Separator is spoken between the results of a multi-node selection.
	Separator string `json:"separator,omitempty"`

	// Prosody applies to every description this component produces. For pause and
	// personality components it is the payload.
	Prosody Prosody `json:"prosody,omitempty"`
}

// Literal builds a text component.
func Literal(text string) Component {
	return Component{Type: ComponentText, Source: SourceLiteral, Text: text}
}

// ContentOf builds a text component that speaks the node content.
func ContentOf() Component {
	return Component{Type: ComponentText, Source: SourceContent}
}

// AttrOf builds a text component that speaks an attribute value.
func AttrOf(name string) Component {
	return Component{Type: ComponentText, Source: SourceAttr, Attr: name}
}

// Recurse builds a node component for a single selector.
func Recurse(sel Selector) Component {
	return Component{Type: ComponentNode, Selector: sel}
}

// Child selects the child at index.
func Child(index int) Selector {
	return Selector{Kind: SelectChild, Index: index}
}

// Children selects every child in order.
func Children() Selector {
	return Selector{Kind: SelectChildren}
}

// Self selects the node being expanded.
func Self() Selector {
	return Selector{Kind: SelectSelf}
}

// Pause builds a pause component of ms milliseconds.
func Pause(ms float64) Component {
	return Component{Type: ComponentPause, Prosody: Prosody{ProsodyPause: ms}}
}

// Personality builds a personality component.
func Personality(p Prosody) Component {
	return Component{Type: ComponentPersonality, Prosody: p}
}

// Validate checks the component is well formed.
func (c Component) Validate() error {
	switch c.Type {
	case ComponentText:
		switch c.Source {
		case "", SourceLiteral:
			if c.Text == "" {
				return fmt.Errorf("literal text is empty")
			}
		case SourceContent:
		case SourceAttr:
			if c.Attr == "" {
				return fmt.Errorf("attribute text needs an attribute name")
			}
		default:
			return fmt.Errorf("unknown text source %q", c.Source)
		}
	case ComponentNode:
		switch c.Selector.Kind {
		case SelectSelf, SelectChildren, SelectParent:
		case SelectChild:
			if c.Selector.Index < 0 {
				return fmt.Errorf("child index %d is negative", c.Selector.Index)
			}
		default:
			return fmt.Errorf("unknown selector %q", c.Selector.Kind)
		}
	case ComponentPause:
		if c.Prosody[ProsodyPause] <= 0 {
			return fmt.Errorf("pause needs a positive duration")
		}
	case ComponentPersonality:
		if len(c.Prosody) == 0 {
			return fmt.Errorf("personality carries no prosody")
		}
	default:
		return fmt.Errorf("unknown component type %q", c.Type)
	}
	return nil
}
