package domain

import (
	"maps"
	"slices"
)

// Prosody maps a property (pitch, rate, volume, pause) to its value.
// Pitch, rate and volume are relative deltas; pause is in milliseconds.
type Prosody map[string]float64

// Merge returns a new Prosody combining p with other. Pauses keep the larger value,
// every other key is additive.
func (p Prosody) Merge(other Prosody) Prosody {
	if len(other) == 0 {
		return p.Clone()
	}
	out := p.Clone()
	if out == nil {
		out = make(Prosody, len(other))
	}
	for k, v := range other {
		if k == ProsodyPause {
			out[k] = max(out[k], v)
			continue
		}
		out[k] += v
	}
	return out
}

// Clone returns a copy of p, or nil for an empty map.
func (p Prosody) Clone() Prosody {
	if len(p) == 0 {
		return nil
	}
	return maps.Clone(p)
}

// Equal compares two prosody maps, ignoring the pause key when ignorePause is set.
func (p Prosody) Equal(other Prosody, ignorePause bool) bool {
	for k, v := range p {
		if ignorePause && k == ProsodyPause {
			continue
		}
		if other[k] != v {
			return false
		}
	}
	for k, v := range other {
		if ignorePause && k == ProsodyPause {
			continue
		}
		if p[k] != v {
			return false
		}
	}
	return true
}

// Keys returns the property names in sorted order.
func (p Prosody) Keys() []string {
	return slices.Sorted(maps.Keys(p))
}

// Description is one auditory fragment attributable to a source node.
type Description struct {
	Text    string  `json:"text"`
	Node    *NodeID `json:"node,omitempty"`
	Prosody Prosody `json:"prosody,omitempty"`
}

// NewDescription creates a description attributed to node.
func NewDescription(text string, node NodeID) Description {
	return Description{Text: text, Node: &node}
}

// WithProsody returns a copy of d carrying the merged prosody.
func (d Description) WithProsody(p Prosody) Description {
	d.Prosody = d.Prosody.Merge(p)
	if d.Node != nil {
		n := *d.Node
		d.Node = &n
	}
	return d
}

// SameNode reports whether both descriptions reference the same node.
func (d Description) SameNode(o Description) bool {
	if d.Node == nil || o.Node == nil {
		return d.Node == nil && o.Node == nil
	}
	return *d.Node == *o.Node
}

// CloneDescriptions deep-copies a sequence so callers cannot reach shared state.
func CloneDescriptions(seq []Description) []Description {
	if seq == nil {
		return nil
	}
	out := make([]Description, len(seq))
	for i, d := range seq {
		out[i] = Description{Text: d.Text, Prosody: d.Prosody.Clone()}
		if d.Node != nil {
			n := *d.Node
			out[i].Node = &n
		}
	}
	return out
}

// Texts returns the text of each description, in order.
func Texts(seq []Description) []string {
	out := make([]string, len(seq))
	for i, d := range seq {
		out[i] = d.Text
	}
	return out
}

// CacheKey identifies a cached evaluation. Tree and Node make the node identity,
// Generation pins the rule base the value was computed against.
type CacheKey struct {
	Tree       string
	Node       NodeID
	Constraint Constraint
	Generation uint64
}
