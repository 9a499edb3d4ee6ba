package observability

import (
	"context"

	"github.com/aretw0/mathspeak/pkg/domain"
)

// Chain fans every event out to each set of hooks in order. Nil callbacks are skipped.
func Chain(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRuleSelected: fan(hooks, func(h domain.LifecycleHooks) func(context.Context, *domain.RuleEvent) { return h.OnRuleSelected }),
		OnFallback:     fan(hooks, func(h domain.LifecycleHooks) func(context.Context, *domain.RuleEvent) { return h.OnFallback }),
		OnCacheHit:     fan(hooks, func(h domain.LifecycleHooks) func(context.Context, *domain.CacheEvent) { return h.OnCacheHit }),
		OnCacheMiss:    fan(hooks, func(h domain.LifecycleHooks) func(context.Context, *domain.CacheEvent) { return h.OnCacheMiss }),
		OnEvaluated:    fan(hooks, func(h domain.LifecycleHooks) func(context.Context, *domain.EvaluationEvent) { return h.OnEvaluated }),
	}
}

func fan[E any](hooks []domain.LifecycleHooks, pick func(domain.LifecycleHooks) func(context.Context, E)) func(context.Context, E) {
	var fns []func(context.Context, E)
	for _, h := range hooks {
		if fn := pick(h); fn != nil {
			fns = append(fns, fn)
		}
	}
	if len(fns) == 0 {
		return nil
	}
	return func(ctx context.Context, e E) {
		for _, fn := range fns {
			fn(ctx, e)
		}
	}
}
