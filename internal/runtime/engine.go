package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/mathspeak/pkg/domain"
	"github.com/aretw0/mathspeak/pkg/ports"
	"github.com/aretw0/mathspeak/pkg/rulebase"
)

// DefaultMaxDepth bounds node recursion when no limit is configured.
const DefaultMaxDepth = 256

// Engine selects and expands speech rules against semantic nodes.
//
// The rule base is guarded by a read/write lock: evaluations share the read side
// for their whole duration and a reload takes the write side, so no evaluation
// straddles two rule sets.
type Engine struct {
	mu           sync.RWMutex
	rules        *rulebase.Base
	cache        ports.ResultCache
	cacheEnabled bool
	maxDepth     int
	hooks        domain.LifecycleHooks
	logger       *slog.Logger
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithResultCache sets the cache backing evaluations.
func WithResultCache(c ports.ResultCache) EngineOption {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithCacheEnabled toggles caching. When disabled lookups always miss and stores are skipped.
func WithCacheEnabled(enabled bool) EngineOption {
	return func(e *Engine) {
		e.cacheEnabled = enabled
	}
}

// WithMaxDepth sets the recursion bound. Values <= 0 select DefaultMaxDepth.
func WithMaxDepth(depth int) EngineOption {
	return func(e *Engine) {
		e.maxDepth = depth
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an engine over rules. A nil rule base starts empty.
func NewEngine(rules *rulebase.Base, opts ...EngineOption) *Engine {
	if rules == nil {
		rules = rulebase.New()
	}
	e := &Engine{
		rules:        rules,
		cacheEnabled: true,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.maxDepth <= 0 {
		e.maxDepth = DefaultMaxDepth
	}
	return e
}

// CacheEnabled reports whether results are cached.
func (e *Engine) CacheEnabled() bool {
	return e.cacheEnabled && e.cache != nil
}

// MaxDepth returns the configured recursion bound.
func (e *Engine) MaxDepth() int {
	return e.maxDepth
}

// LoadRules replaces the rule base and invalidates the cache.
// On validation failure the previous rules stay active and the cache is untouched.
func (e *Engine) LoadRules(ctx context.Context, rules ...domain.Rule) error {
	return e.reload(ctx, "load", func() error { return e.rules.Load(rules...) })
}

// LoadLayers replaces the rule base with layers, later layers overriding earlier ones.
func (e *Engine) LoadLayers(ctx context.Context, layers ...[]domain.Rule) error {
	return e.reload(ctx, "load", func() error { return e.rules.LoadLayers(layers...) })
}

// ExtendRules adds rules on top of the active set and invalidates the cache.
func (e *Engine) ExtendRules(ctx context.Context, rules ...domain.Rule) error {
	return e.reload(ctx, "extend", func() error { return e.rules.Extend(rules...) })
}

func (e *Engine) reload(ctx context.Context, op string, apply func() error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := apply(); err != nil {
		e.logger.Warn("rule base rejected", "op", op, "err", err)
		return err
	}
	if e.cache != nil {
		// Entries are keyed by generation, so a failed clear cannot serve stale results.
		if err := e.cache.Clear(ctx); err != nil {
			e.logger.Warn("cache clear after reload failed", "err", err)
		}
	}
	e.logger.Info("rule base loaded",
		"op", op,
		"rules", e.rules.Len(),
		"constraints", len(e.rules.Constraints()),
		"generation", e.rules.Generation(),
	)
	return nil
}

// ClearCache drops every cached result.
func (e *Engine) ClearCache(ctx context.Context) error {
	if e.cache == nil {
		return nil
	}
	if err := e.cache.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// Resolve returns the fallback order for c under the active rule base.
func (e *Engine) Resolve(c domain.Constraint) domain.Resolution {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return domain.Resolve(c, e.rules.Constraints())
}

// Constraints lists the constraints present in the active rule base.
func (e *Engine) Constraints() []domain.Constraint {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rules.Constraints()
}

// Generation returns the active rule-base generation.
func (e *Engine) Generation() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rules.Generation()
}

// RuleCount returns the number of rules under c.
func (e *Engine) RuleCount(c domain.Constraint) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rules.Count(c)
}

// Rules returns a snapshot of the active rules.
func (e *Engine) Rules() []domain.Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rules.Rules()
}

// Evaluate produces the auditory descriptions for node id of tree under constraint c.
func (e *Engine) Evaluate(ctx context.Context, tree *domain.Tree, id domain.NodeID, c domain.Constraint) ([]domain.Description, error) {
	seq, _, err := e.evaluate(ctx, tree, id, c, false)
	return seq, err
}

// Explain evaluates like Evaluate and also returns the per-node selection trace.
func (e *Engine) Explain(ctx context.Context, tree *domain.Tree, id domain.NodeID, c domain.Constraint) ([]domain.Description, []TraceEntry, error) {
	return e.evaluate(ctx, tree, id, c, true)
}

func (e *Engine) evaluate(ctx context.Context, tree *domain.Tree, id domain.NodeID, c domain.Constraint, trace bool) ([]domain.Description, []TraceEntry, error) {
	if tree == nil {
		return nil, nil, fmt.Errorf("evaluate: nil tree")
	}
	if !tree.Has(id) {
		return nil, nil, fmt.Errorf("evaluate: node %d: %w", id, domain.ErrNodeNotFound)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	start := time.Now()
	ev := &evaluation{
		engine:     e,
		ctx:        ctx,
		tree:       tree,
		resolution: domain.Resolve(c, e.rules.Constraints()),
		generation: e.rules.Generation(),
		tracing:    trace,
	}
	seq, err := ev.node(id, 0)

	if e.hooks.OnEvaluated != nil {
		e.hooks.OnEvaluated(ctx, &domain.EvaluationEvent{
			EventBase:    domain.EventBase{Timestamp: time.Now(), Type: domain.EventEvaluated, TreeID: tree.ID},
			Constraint:   ev.resolution.Resolved,
			Descriptions: len(seq),
			Duration:     time.Since(start),
			Err:          err,
		})
	}
	if err != nil {
		e.logger.Debug("evaluation failed", "tree", tree.ID, "node", id, "err", err)
		return nil, ev.trace, err
	}
	return domain.CloneDescriptions(seq), ev.trace, nil
}
