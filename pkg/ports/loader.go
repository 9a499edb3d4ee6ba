package ports

import (
	"context"

	"github.com/aretw0/mathspeak/pkg/domain"
)

// RuleLoader produces a batch of rules in definition order.
type RuleLoader interface {
	LoadRules(ctx context.Context) ([]domain.Rule, error)
}

// Watchable defines an interface for loaders that can notify about source changes.
type Watchable interface {
	// Watch returns a channel that is signaled when the rules should be reloaded.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
