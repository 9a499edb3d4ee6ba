package ports

import (
	"context"

	"github.com/aretw0/mathspeak/pkg/domain"
)

// ResultCache stores evaluated description sequences.
// Implementations must return sequences equal to what was stored and must be safe
// for concurrent use.
type ResultCache interface {
	// Get returns the stored sequence and true, or false on a miss.
	Get(ctx context.Context, key domain.CacheKey) ([]domain.Description, bool, error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key domain.CacheKey, value []domain.Description) error

	// Clear removes every entry.
	Clear(ctx context.Context) error
}
