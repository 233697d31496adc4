package offline

import "context"

// Cache is a single named store of responses keyed by request identity.
type Cache interface {
	Name() string
	Get(ctx context.Context, key string) (*Response, bool, error)
	Put(ctx context.Context, key string, resp *Response) error
	Keys(ctx context.Context) ([]string, error)
}

// Store holds named caches. Implementations must be safe for concurrent use.
type Store interface {
	// Open returns the named cache, creating it if needed.
	Open(ctx context.Context, name string) (Cache, error)
	// Match searches every cache, oldest first, and returns the first hit.
	Match(ctx context.Context, key string) (*Response, bool, error)
	// Delete removes a cache and its entries. It reports whether the cache existed.
	Delete(ctx context.Context, name string) (bool, error)
	// Names lists caches in creation order.
	Names(ctx context.Context) ([]string, error)
}
