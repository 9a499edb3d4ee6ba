package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventRuleSelected EventType = "rule_selected"
	EventFallback     EventType = "fallback"
	EventCacheHit     EventType = "cache_hit"
	EventCacheMiss    EventType = "cache_miss"
	EventEvaluated    EventType = "evaluated"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	TreeID    string    `json:"tree_id"`
}

// RuleEvent reports the rule chosen for a node, or a fallback when Rule is empty.
type RuleEvent struct {
	EventBase
	NodeID NodeID     `json:"node_id"`
	Kind   string     `json:"kind"`
	Rule   string     `json:"rule,omitempty"`
	Level  Constraint `json:"level"`
}

// CacheEvent reports a cache lookup.
type CacheEvent struct {
	EventBase
	Key CacheKey `json:"key"`
}

// EvaluationEvent reports a finished top-level evaluation.
type EvaluationEvent struct {
	EventBase
	Constraint   Constraint    `json:"constraint"`
	Descriptions int           `json:"descriptions"`
	Duration     time.Duration `json:"duration"`
	Err          error         `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnRuleSelected func(context.Context, *RuleEvent)
	OnFallback     func(context.Context, *RuleEvent)
	OnCacheHit     func(context.Context, *CacheEvent)
	OnCacheMiss    func(context.Context, *CacheEvent)
	OnEvaluated    func(context.Context, *EvaluationEvent)
}
