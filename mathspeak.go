package mathspeak

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/mathspeak/internal/runtime"
	"github.com/aretw0/mathspeak/pkg/adapters/file"
	"github.com/aretw0/mathspeak/pkg/adapters/memory"
	"github.com/aretw0/mathspeak/pkg/domain"
	"github.com/aretw0/mathspeak/pkg/ports"
	"github.com/aretw0/mathspeak/pkg/rulebase"
	"github.com/aretw0/mathspeak/pkg/speech"
	"github.com/aretw0/mathspeak/rulesets"
)

// Engine is the high-level entry point for the mathspeak library.
// It wraps the internal runtime and provides a simplified API for consumers.
type Engine struct {
	runtime    *runtime.Engine
	constraint domain.Constraint
	rules      []domain.Rule
	loaders    []ports.RuleLoader
	builtin    bool
	cache      ports.ResultCache
	cacheOn    bool
	cacheSize  int
	maxDepth   int
	timeout    time.Duration
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithDomain sets the default domain used by Speak.
func WithDomain(d string) Option {
	return func(e *Engine) {
		e.constraint.Domain = d
	}
}

// WithStyle sets the default style used by Speak.
func WithStyle(s string) Option {
	return func(e *Engine) {
		e.constraint.Style = s
	}
}

// WithCache enables or disables result caching. Enabled by default.
func WithCache(enabled bool) Option {
	return func(e *Engine) {
		e.cacheOn = enabled
	}
}

// WithResultCache replaces the in-process LRU cache, e.g. with a Redis cache.
func WithResultCache(c ports.ResultCache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithCacheSize bounds the in-process cache. Ignored with WithResultCache.
func WithCacheSize(n int) Option {
	return func(e *Engine) {
		e.cacheSize = n
	}
}

// WithMaxDepth sets the recursion depth guard.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		e.maxDepth = depth
	}
}

// WithRules adds rules loaded after the built-in sets.
func WithRules(rules ...domain.Rule) Option {
	return func(e *Engine) {
		e.rules = append(e.rules, rules...)
	}
}

// WithLoader adds a rule source loaded by New after the WithRules rules. Each loader
// is its own layer and may override earlier rules by name.
func WithLoader(l ports.RuleLoader) Option {
	return func(e *Engine) {
		e.loaders = append(e.loaders, l)
	}
}

// WithoutBuiltinRules skips the embedded rule sets.
func WithoutBuiltinRules() Option {
	return func(e *Engine) {
		e.builtin = false
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithEvaluationTimeout bounds every top-level evaluation. Zero means no bound.
func WithEvaluationTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// New initializes a new Engine with the built-in rules and any WithRules rules.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{
		constraint: domain.DefaultConstraint,
		builtin:    true,
		cacheOn:    true,
		maxDepth:   runtime.DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(eng)
	}
	eng.constraint = eng.constraint.Normalize()

	if eng.logger == nil {
		eng.logger = slog.New(slog.DiscardHandler)
	}
	if eng.cache == nil && eng.cacheOn {
		c, err := memory.NewCache(eng.cacheSize)
		if err != nil {
			return nil, err
		}
		eng.cache = c
	}

	sources := append([]ports.RuleLoader{memory.NewLoader(eng.rules...)}, eng.loaders...)
	layers, err := eng.layers(context.Background(), sources)
	if err != nil {
		return nil, err
	}
	base := rulebase.New()
	if err := base.LoadLayers(layers...); err != nil {
		return nil, err
	}

	eng.runtime = runtime.NewEngine(base,
		runtime.WithResultCache(eng.cache),
		runtime.WithCacheEnabled(eng.cacheOn),
		runtime.WithMaxDepth(eng.maxDepth),
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
	)
	return eng, nil
}

// layers reads each source into its own layer, on top of the built-in rules, so a
// user rule may reuse an earlier name to override it.
func (e *Engine) layers(ctx context.Context, sources []ports.RuleLoader) ([][]domain.Rule, error) {
	if e.builtin {
		sources = append([]ports.RuleLoader{rulesets.Loader()}, sources...)
	}
	layers := make([][]domain.Rule, 0, len(sources))
	for _, src := range sources {
		rules, err := src.LoadRules(ctx)
		if err != nil {
			return nil, err
		}
		layers = append(layers, rules)
	}
	return layers, nil
}

func (e *Engine) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout > 0 {
		return context.WithTimeout(ctx, e.timeout)
	}
	return ctx, func() {}
}

// Evaluate speaks node id of tree under constraint c.
func (e *Engine) Evaluate(ctx context.Context, tree *domain.Tree, id domain.NodeID, c domain.Constraint) ([]domain.Description, error) {
	ctx, cancel := e.bound(ctx)
	defer cancel()
	return e.runtime.Evaluate(ctx, tree, id, c)
}

// Explain is Evaluate plus the per-node record of which rule spoke and at which level.
func (e *Engine) Explain(ctx context.Context, tree *domain.Tree, id domain.NodeID, c domain.Constraint) ([]domain.Description, []runtime.TraceEntry, error) {
	ctx, cancel := e.bound(ctx)
	defer cancel()
	return e.runtime.Explain(ctx, tree, id, c)
}

// Speak renders the whole tree as plain text under the default constraint.
func (e *Engine) Speak(ctx context.Context, tree *domain.Tree) (string, error) {
	return e.SpeakAs(ctx, tree, speech.FormatText)
}

// SpeakAs renders the whole tree in format under the default constraint.
func (e *Engine) SpeakAs(ctx context.Context, tree *domain.Tree, format speech.Format) (string, error) {
	renderer, err := speech.For(format)
	if err != nil {
		return "", err
	}
	if tree == nil {
		return "", fmt.Errorf("nil tree")
	}
	seq, err := e.Evaluate(ctx, tree, tree.Root(), e.constraint)
	if err != nil {
		return "", err
	}
	return renderer.Render(seq)
}

// LoadRuleBase replaces the rule base with the built-in rules overlaid by rules.
// Rules given to New are dropped. On a validation error the previous rule base
// stays active.
func (e *Engine) LoadRuleBase(ctx context.Context, rules ...domain.Rule) error {
	return e.LoadFrom(ctx, memory.NewLoader(rules...))
}

// LoadRuleFiles replaces the rule base with the built-in rules overlaid by the rule
// files of each dir in turn. A later dir may override rules of an earlier one by name.
func (e *Engine) LoadRuleFiles(ctx context.Context, dirs ...string) error {
	loaders, err := e.fileLoaders(dirs)
	if err != nil {
		return err
	}
	return e.LoadFrom(ctx, loaders...)
}

// LoadFrom replaces the rule base with the built-in rules overlaid by each loader.
func (e *Engine) LoadFrom(ctx context.Context, loaders ...ports.RuleLoader) error {
	layers, err := e.layers(ctx, loaders)
	if err != nil {
		return err
	}
	return e.runtime.LoadLayers(ctx, layers...)
}

func (e *Engine) fileLoaders(dirs []string) ([]ports.RuleLoader, error) {
	loaders := make([]ports.RuleLoader, 0, len(dirs))
	for _, dir := range dirs {
		l, err := file.New(dir, file.WithLogger(e.logger))
		if err != nil {
			return nil, err
		}
		loaders = append(loaders, l)
	}
	return loaders, nil
}

// ClearCache drops every cached result.
func (e *Engine) ClearCache(ctx context.Context) error {
	return e.runtime.ClearCache(ctx)
}

// Constraint returns the default constraint used by Speak.
func (e *Engine) Constraint() domain.Constraint {
	return e.constraint
}

// Resolve reports how c falls back against the loaded rule base.
func (e *Engine) Resolve(c domain.Constraint) domain.Resolution {
	return e.runtime.Resolve(c)
}

// Constraints lists the constraints with at least one rule, sorted.
func (e *Engine) Constraints() []domain.Constraint {
	return e.runtime.Constraints()
}

// RuleCount returns how many rules belong to c.
func (e *Engine) RuleCount(c domain.Constraint) int {
	return e.runtime.RuleCount(c)
}

// Rules returns a copy of every loaded rule in definition order.
func (e *Engine) Rules() []domain.Rule {
	return e.runtime.Rules()
}

// Generation increments on every successful load.
func (e *Engine) Generation() uint64 {
	return e.runtime.Generation()
}
