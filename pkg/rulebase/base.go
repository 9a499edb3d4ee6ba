package rulebase

import (
	"fmt"
	"sync"

	"github.com/aretw0/mathspeak/pkg/domain"
)

type kindIndex map[string][]*domain.Rule

// Base is an indexed, versioned set of rules. Safe for concurrent use.
type Base struct {
	mu         sync.RWMutex
	rules      []*domain.Rule
	index      map[domain.Constraint]kindIndex
	generation uint64
	nextSeq    int
}

// New creates an empty rule base.
func New() *Base {
	return &Base{index: make(map[domain.Constraint]kindIndex)}
}

// Load replaces the active rules. On error the previous rules stay in effect.
func (b *Base) Load(rules ...domain.Rule) error {
	if err := Validate(rules); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rules = nil
	b.index = make(map[domain.Constraint]kindIndex)
	b.nextSeq = 0
	b.add(rules)
	b.generation++
	return nil
}

// LoadLayers replaces the active rules with layers applied in order, as if the first
// were loaded and the rest extended it, under a single generation. Every layer is
// validated before anything changes.
func (b *Base) LoadLayers(layers ...[]domain.Rule) error {
	var errs []error
	for _, layer := range layers {
		if err := Validate(layer); err != nil {
			if nested := domain.RuleErrors(err); nested != nil {
				errs = append(errs, nested...)
			} else {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return &domain.InvalidRuleBaseError{Errors: errs}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rules = nil
	b.index = make(map[domain.Constraint]kindIndex)
	b.nextSeq = 0
	for _, layer := range layers {
		b.add(layer)
	}
	b.generation++
	return nil
}

// Extend adds rules on top of the active ones. Later rules override earlier ones
// of equal rank. On error nothing is added.
func (b *Base) Extend(rules ...domain.Rule) error {
	if err := Validate(rules); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.add(rules)
	b.generation++
	return nil
}

func (b *Base) add(rules []domain.Rule) {
	for _, r := range rules {
		r := copyRule(r)
		r.Constraint = r.Constraint.Normalize()
		r.Seq = b.nextSeq
		b.nextSeq++

		byKind, ok := b.index[r.Constraint]
		if !ok {
			byKind = make(kindIndex)
			b.index[r.Constraint] = byKind
		}
		byKind[r.Query.Kind] = append(byKind[r.Query.Kind], r)
		b.rules = append(b.rules, r)
	}
}

// Lookup returns the rules under c whose query kind is kind or the wildcard.
// Order is registration order. The returned rules must not be modified.
func (b *Base) Lookup(kind string, c domain.Constraint) []*domain.Rule {
	b.mu.RLock()
	defer b.mu.RUnlock()
	byKind, ok := b.index[c.Normalize()]
	if !ok {
		return nil
	}
	exact := byKind[kind]
	wild := byKind[domain.Wildcard]
	if kind == domain.Wildcard || len(wild) == 0 {
		return exact
	}
	if len(exact) == 0 {
		return wild
	}
	out := make([]*domain.Rule, 0, len(exact)+len(wild))
	out = append(out, exact...)
	return append(out, wild...)
}

// Select returns the best rule under c for the node, or nil when none matches.
func (b *Base) Select(t *domain.Tree, id domain.NodeID, c domain.Constraint) *domain.Rule {
	n, err := t.Node(id)
	if err != nil {
		return nil
	}
	var best *domain.Rule
	for _, r := range b.Lookup(n.Kind, c) {
		if !r.Match(t, id) {
			continue
		}
		if best == nil || r.Outranks(best) {
			best = r
		}
	}
	return best
}

// Constraints returns the constraints that have at least one rule, sorted.
func (b *Base) Constraints() []domain.Constraint {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]domain.Constraint, 0, len(b.index))
	for c := range b.index {
		out = append(out, c)
	}
	return domain.SortConstraints(out)
}

// Count returns the number of rules registered under c.
func (b *Base) Count(c domain.Constraint) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, rs := range b.index[c.Normalize()] {
		n += len(rs)
	}
	return n
}

// Generation returns the load counter. It starts at zero for an empty base.
func (b *Base) Generation() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.generation
}

// Len returns the total number of rules.
func (b *Base) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rules)
}

// Rules returns copies of every rule in registration order.
func (b *Base) Rules() []domain.Rule {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]domain.Rule, len(b.rules))
	for i, r := range b.rules {
		out[i] = *copyRule(*r)
	}
	return out
}

// Find returns the rule registered under c with the given name.
func (b *Base) Find(name string, c domain.Constraint) (domain.Rule, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c = c.Normalize()
	for i := len(b.rules) - 1; i >= 0; i-- {
		if r := b.rules[i]; r.Name == name && r.Constraint == c {
			return *copyRule(*r), nil
		}
	}
	return domain.Rule{}, fmt.Errorf("rule %q not found under %s", name, c)
}

// copyRule detaches slices and maps so the stored rule cannot be changed by the caller.
func copyRule(r domain.Rule) *domain.Rule {
	out := r
	out.Query.Predicates = append([]domain.Predicate(nil), r.Query.Predicates...)
	out.Preconditions = append([]domain.Predicate(nil), r.Preconditions...)
	out.Action = make([]domain.Component, len(r.Action))
	for i, c := range r.Action {
		c.Prosody = c.Prosody.Clone()
		out.Action[i] = c
	}
	return &out
}
