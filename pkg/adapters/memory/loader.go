package memory

import (
	"context"
	"fmt"

	"github.com/aretw0/mathspeak/pkg/domain"
	"github.com/aretw0/mathspeak/pkg/ports"
)

// Loader implements ports.RuleLoader over rules held in memory.
type Loader struct {
	rules []domain.Rule
}

// NewLoader creates a loader returning rules in the given order.
func NewLoader(rules ...domain.Rule) *Loader {
	return &Loader{rules: append([]domain.Rule(nil), rules...)}
}

// LoadRules returns the held rules.
func (l *Loader) LoadRules(ctx context.Context) ([]domain.Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("load canceled: %w", err)
	}
	return append([]domain.Rule(nil), l.rules...), nil
}

// Chain concatenates the output of several loaders, preserving order so later
// loaders override earlier ones.
type Chain []ports.RuleLoader

// LoadRules runs each loader in turn.
func (c Chain) LoadRules(ctx context.Context) ([]domain.Rule, error) {
	var out []domain.Rule
	for i, l := range c {
		rules, err := l.LoadRules(ctx)
		if err != nil {
			return nil, fmt.Errorf("loader %d: %w", i, err)
		}
		out = append(out, rules...)
	}
	return out, nil
}
