package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Predicate operators.
const (
	OpEq     = "eq"
	OpNe     = "ne"
	OpExists = "exists"
	OpAbsent = "absent"
	OpIn     = "in"
)

// Predicate fields. Attribute fields use the AttrPrefix followed by the attribute name.
const (
	FieldKind       = "kind"
	FieldRole       = "role"
	FieldContent    = "content"
	FieldParentKind = "parent.kind"
	FieldParentRole = "parent.role"
	FieldChildren   = "children"
	FieldIndex      = "index"
	AttrPrefix      = "attr."
	// ChildPrefix addresses a child by index, e.g. child.1.content.
	ChildPrefix = "child."
)

// Predicate is a single fact a node must satisfy.
type Predicate struct {
	Field string `json:"field" yaml:"field" mapstructure:"field"`
	Op    string `json:"op,omitempty" yaml:"op,omitempty" mapstructure:"op"`
	Value string `json:"value,omitempty" yaml:"value,omitempty" mapstructure:"value"`
}

// Validate checks the field and operator are known.
func (p Predicate) Validate() error {
	switch p.Field {
	case FieldKind, FieldRole, FieldContent, FieldParentKind, FieldParentRole, FieldChildren, FieldIndex:
	default:
		if strings.HasPrefix(p.Field, ChildPrefix) {
			_, sub, err := splitChildField(p.Field)
			if err != nil {
				return err
			}
			return Predicate{Field: sub, Op: p.Op, Value: p.Value}.Validate()
		}
		if !strings.HasPrefix(p.Field, AttrPrefix) || len(p.Field) == len(AttrPrefix) {
			return fmt.Errorf("unknown predicate field %q", p.Field)
		}
	}
	switch p.op() {
	case OpEq, OpNe, OpExists, OpAbsent, OpIn:
	default:
		return fmt.Errorf("unknown predicate operator %q", p.Op)
	}
	if p.Field == FieldChildren || p.Field == FieldIndex {
		if p.op() == OpEq || p.op() == OpNe {
			if _, err := strconv.Atoi(p.Value); err != nil {
				return fmt.Errorf("predicate %s needs an integer value, got %q", p.Field, p.Value)
			}
		}
	}
	return nil
}

func (p Predicate) op() string {
	if p.Op == "" {
		return OpEq
	}
	return p.Op
}

// Match evaluates the predicate against node id of tree.
func (p Predicate) Match(t *Tree, id NodeID) bool {
	n, err := t.Node(id)
	if err != nil {
		return false
	}
	val, ok := p.lookup(t, n)
	switch p.op() {
	case OpExists:
		return ok
	case OpAbsent:
		return !ok
	case OpNe:
		return !ok || val != p.Value
	case OpIn:
		if !ok {
			return false
		}
		for _, v := range strings.Split(p.Value, ",") {
			if strings.TrimSpace(v) == val {
				return true
			}
		}
		return false
	default:
		return ok && val == p.Value
	}
}

func (p Predicate) lookup(t *Tree, n *Node) (string, bool) {
	switch p.Field {
	case FieldKind:
		return n.Kind, true
	case FieldRole:
		return n.Role, n.Role != ""
	case FieldContent:
		return n.Content, n.Content != ""
	case FieldChildren:
		return strconv.Itoa(len(n.Children)), true
	case FieldIndex:
		pos := t.Position(n.ID)
		return strconv.Itoa(pos), pos >= 0
	case FieldParentKind, FieldParentRole:
		parent, err := t.Node(n.Parent)
		if err != nil {
			return "", false
		}
		if p.Field == FieldParentKind {
			return parent.Kind, true
		}
		return parent.Role, parent.Role != ""
	}
	if strings.HasPrefix(p.Field, ChildPrefix) {
		idx, field, err := splitChildField(p.Field)
		if err != nil || idx >= len(n.Children) {
			return "", false
		}
		child, err := t.Node(n.Children[idx])
		if err != nil {
			return "", false
		}
		return Predicate{Field: field}.lookup(t, child)
	}
	return n.Attr(strings.TrimPrefix(p.Field, AttrPrefix))
}

// splitChildField parses child.<index>.<field> where field is any non-child field.
func splitChildField(field string) (int, string, error) {
	rest := strings.TrimPrefix(field, ChildPrefix)
	idxStr, sub, ok := strings.Cut(rest, ".")
	if !ok {
		return 0, "", fmt.Errorf("predicate field %q needs child.<index>.<field>", field)
	}
	idx, err := strconv.Atoi(idxStr)
	if err != nil || idx < 0 {
		return 0, "", fmt.Errorf("bad child index in predicate field %q", field)
	}
	if strings.HasPrefix(sub, ChildPrefix) {
		return 0, "", fmt.Errorf("nested child fields are not supported: %q", field)
	}
	return idx, sub, nil
}

// Query selects the nodes a rule applies to. Kind is the index key; Wildcard matches any kind.
type Query struct {
	Kind       string      `json:"kind" yaml:"kind" mapstructure:"kind"`
	Predicates []Predicate `json:"predicates,omitempty" yaml:"predicates,omitempty" mapstructure:"predicates"`
}

// Match reports whether every fact of the query holds for the node.
func (q Query) Match(t *Tree, id NodeID) bool {
	n, err := t.Node(id)
	if err != nil {
		return false
	}
	if q.Kind != Wildcard && q.Kind != n.Kind {
		return false
	}
	for _, p := range q.Predicates {
		if !p.Match(t, id) {
			return false
		}
	}
	return true
}

// Specificity counts the facts the query requires. A concrete kind counts as one.
func (q Query) Specificity() int {
	s := len(q.Predicates)
	if q.Kind != Wildcard {
		s++
	}
	return s
}

// Rule is an immutable record governing how one class of nodes is spoken.
type Rule struct {
	Name       string     `json:"name"`
	Query      Query      `json:"query"`
	Constraint Constraint `json:"constraint"`
	// Preconditions are auxiliary facts beyond the query; each adds to specificity.
	Preconditions []Predicate `json:"preconditions,omitempty"`
	// Priority breaks ties between equally specific rules before definition order does.
	Priority int         `json:"priority,omitempty"`
	Action   []Component `json:"action"`
	// Seq is the registration order assigned by the rule base.
	Seq int `json:"-"`
}

// Specificity is the rank used to choose between matching rules.
func (r *Rule) Specificity() int {
	return r.Query.Specificity() + len(r.Preconditions)
}

// Match reports whether the rule's query and preconditions hold for the node.
func (r *Rule) Match(t *Tree, id NodeID) bool {
	if !r.Query.Match(t, id) {
		return false
	}
	for _, p := range r.Preconditions {
		if !p.Match(t, id) {
			return false
		}
	}
	return true
}

// Outranks reports whether r should be selected over o.
// Higher specificity wins, then higher priority, then the later registration.
func (r *Rule) Outranks(o *Rule) bool {
	if rs, os := r.Specificity(), o.Specificity(); rs != os {
		return rs > os
	}
	if r.Priority != o.Priority {
		return r.Priority > o.Priority
	}
	return r.Seq > o.Seq
}
