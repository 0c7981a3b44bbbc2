package driven

import (
	"context"

	"github.com/ericfisherdev/reviewsync/internal/domain/model"
)

// CacheStore defines the driven port for persisting resource cache entries.
// Put on an immutable key supersedes every other version of the same resource.
type CacheStore interface {
	// Get returns (nil, nil) on a miss.
	Get(ctx context.Context, key model.CacheKey) (*model.CacheEntry, error)
	Put(ctx context.Context, entry model.CacheEntry) error
	// DeletePrefix removes every entry whose storage key starts with prefix.
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
	Purge(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (model.CacheStats, error)
}
