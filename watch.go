package mathspeak

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/mathspeak/pkg/ports"
)

// ReloadFunc receives the outcome of a hot reload.
type ReloadFunc func(generation uint64, err error)

// WatchRuleFiles reloads the rule files under dirs whenever one of them changes,
// until ctx is done. The initial load is the caller's job, see LoadRuleFiles.
func (e *Engine) WatchRuleFiles(ctx context.Context, onReload ReloadFunc, dirs ...string) error {
	loaders, err := e.fileLoaders(dirs)
	if err != nil {
		return err
	}
	return e.Watch(ctx, onReload, loaders...)
}

// Watch reloads the rule base from loaders whenever one of them signals a change,
// until ctx is done. Every loader must implement ports.Watchable. A failed reload
// keeps the previous rule base. onReload may be nil.
func (e *Engine) Watch(ctx context.Context, onReload ReloadFunc, loaders ...ports.RuleLoader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	watchers := make([]ports.Watchable, len(loaders))
	for i, l := range loaders {
		w, ok := l.(ports.Watchable)
		if !ok {
			return fmt.Errorf("loader %d does not support watching", i)
		}
		watchers[i] = w
	}

	merged := make(chan struct{}, 1)
	var wg sync.WaitGroup
	for _, w := range watchers {
		events, err := w.Watch(ctx)
		if err != nil {
			cancel()
			wg.Wait()
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range events {
				select {
				case merged <- struct{}{}:
				default:
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil
		case <-merged:
			err := e.LoadFrom(ctx, loaders...)
			if err != nil {
				e.logger.Warn("rule reload failed, keeping previous rules", "err", err)
			} else {
				e.logger.Info("rules reloaded", "generation", e.Generation())
			}
			if onReload != nil {
				onReload(e.Generation(), err)
			}
		}
	}
}
