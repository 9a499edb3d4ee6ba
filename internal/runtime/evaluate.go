package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/mathspeak/pkg/domain"
)

// TraceEntry records how one node was spoken.
type TraceEntry struct {
	Node   domain.NodeID     `json:"node"`
	Kind   string            `json:"kind"`
	Depth  int               `json:"depth"`
	Rule   string            `json:"rule,omitempty"` // Empty when the default action ran
	Level  domain.Constraint `json:"level"`
	Cached bool              `json:"cached,omitempty"`
}

// evaluation is the state of one top-level Evaluate call.
type evaluation struct {
	engine     *Engine
	ctx        context.Context
	tree       *domain.Tree
	resolution domain.Resolution
	generation uint64
	tracing    bool
	trace      []TraceEntry
}

func (ev *evaluation) key(id domain.NodeID) domain.CacheKey {
	return domain.CacheKey{
		Tree:       ev.tree.ID,
		Node:       id,
		Constraint: ev.resolution.Requested,
		Generation: ev.generation,
	}
}

func (ev *evaluation) base(t domain.EventType) domain.EventBase {
	return domain.EventBase{Timestamp: time.Now(), Type: t, TreeID: ev.tree.ID}
}

func (ev *evaluation) node(id domain.NodeID, depth int) ([]domain.Description, error) {
	e := ev.engine
	if err := ev.ctx.Err(); err != nil {
		return nil, err
	}
	n, err := ev.tree.Node(id)
	if err != nil {
		return nil, err
	}
	if depth > e.maxDepth {
		return nil, &domain.RecursionLimitError{Node: id, Limit: e.maxDepth}
	}

	key := ev.key(id)
	if e.CacheEnabled() {
		if seq, ok := ev.lookup(key); ok {
			if ev.tracing {
				ev.trace = append(ev.trace, TraceEntry{Node: id, Kind: n.Kind, Depth: depth, Level: key.Constraint, Cached: true})
			}
			return seq, nil
		}
	}

	rule, level := ev.selectRule(id)
	if ev.tracing {
		entry := TraceEntry{Node: id, Kind: n.Kind, Depth: depth, Level: level}
		if rule != nil {
			entry.Rule = rule.Name
		}
		ev.trace = append(ev.trace, entry)
	}

	var seq []domain.Description
	if rule == nil {
		seq = defaultAction(n)
		if e.hooks.OnFallback != nil {
			e.hooks.OnFallback(ev.ctx, &domain.RuleEvent{EventBase: ev.base(domain.EventFallback), NodeID: id, Kind: n.Kind, Level: level})
		}
		e.logger.Debug("no rule matched", "node", id, "kind", n.Kind, "constraint", ev.resolution.Resolved.String())
	} else {
		if e.hooks.OnRuleSelected != nil {
			e.hooks.OnRuleSelected(ev.ctx, &domain.RuleEvent{EventBase: ev.base(domain.EventRuleSelected), NodeID: id, Kind: n.Kind, Rule: rule.Name, Level: level})
		}
		seq, err = ev.expand(rule, id, depth)
		if err != nil {
			var limit *domain.RecursionLimitError
			if errors.As(err, &limit) && limit.Rule == "" {
				limit.Rule = rule.Name
			}
			return nil, err
		}
	}

	if e.CacheEnabled() {
		if err := e.cache.Put(ev.ctx, key, seq); err != nil {
			e.logger.Warn("cache store failed", "node", id, "err", err)
		}
	}
	return seq, nil
}

func (ev *evaluation) lookup(key domain.CacheKey) ([]domain.Description, bool) {
	e := ev.engine
	seq, ok, err := e.cache.Get(ev.ctx, key)
	if err != nil {
		e.logger.Warn("cache lookup failed", "node", key.Node, "err", err)
		ok = false
	}
	if ok {
		if e.hooks.OnCacheHit != nil {
			e.hooks.OnCacheHit(ev.ctx, &domain.CacheEvent{EventBase: ev.base(domain.EventCacheHit), Key: key})
		}
		return seq, true
	}
	if e.hooks.OnCacheMiss != nil {
		e.hooks.OnCacheMiss(ev.ctx, &domain.CacheEvent{EventBase: ev.base(domain.EventCacheMiss), Key: key})
	}
	return nil, false
}

// selectRule walks the fallback order and returns the best rule of the first level
// with a match, together with that level. It returns a nil rule and the last level
// when nothing matches.
func (ev *evaluation) selectRule(id domain.NodeID) (*domain.Rule, domain.Constraint) {
	order := ev.resolution.Order
	for _, level := range order {
		if r := ev.engine.rules.Select(ev.tree, id, level); r != nil {
			return r, level
		}
	}
	return nil, order[len(order)-1]
}

// defaultAction speaks the literal content of a node no rule covers.
func defaultAction(n *domain.Node) []domain.Description {
	if n.Content == "" {
		return []domain.Description{}
	}
	return []domain.Description{domain.NewDescription(n.Content, n.ID)}
}

// expand runs the action of rule for node id.
//
// A pause attaches to the last description emitted so far, or to the first one emitted
// after it. A personality attaches to everything the next producing component emits.
func (ev *evaluation) expand(rule *domain.Rule, id domain.NodeID, depth int) ([]domain.Description, error) {
	n, err := ev.tree.Node(id)
	if err != nil {
		return nil, err
	}

	out := []domain.Description{}
	var personality domain.Prosody
	var pendingPause float64

	for _, comp := range rule.Action {
		var produced []domain.Description

		switch comp.Type {
		case domain.ComponentText:
			if text := textOf(comp, n); text != "" {
				produced = append(produced, domain.NewDescription(text, id))
			}

		case domain.ComponentNode:
			for i, sel := range comp.Selector.Select(ev.tree, id) {
				if i > 0 && comp.Separator != "" {
					produced = append(produced, domain.NewDescription(comp.Separator, id))
				}
				sub, err := ev.node(sel, depth+1)
				if err != nil {
					return nil, err
				}
				produced = append(produced, sub...)
			}

		case domain.ComponentPause:
			pause := domain.Prosody{domain.ProsodyPause: comp.Prosody[domain.ProsodyPause]}
			if len(out) > 0 {
				out[len(out)-1] = out[len(out)-1].WithProsody(pause)
			} else {
				pendingPause = max(pendingPause, pause[domain.ProsodyPause])
			}
			continue

		case domain.ComponentPersonality:
			personality = personality.Merge(comp.Prosody)
			continue
		}

		if len(produced) == 0 {
			continue
		}
		extra := comp.Prosody.Merge(personality)
		if len(extra) > 0 {
			for i := range produced {
				produced[i] = produced[i].WithProsody(extra)
			}
		}
		personality = nil
		if pendingPause > 0 {
			produced[0] = produced[0].WithProsody(domain.Prosody{domain.ProsodyPause: pendingPause})
			pendingPause = 0
		}
		out = append(out, produced...)
	}
	return out, nil
}

func textOf(c domain.Component, n *domain.Node) string {
	switch c.Source {
	case domain.SourceContent:
		return n.Content
	case domain.SourceAttr:
		v, _ := n.Attr(c.Attr)
		return v
	}
	return c.Text
}
