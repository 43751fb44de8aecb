package quarry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Cache is the interface for caching query results.
// Users should implement this interface with their preferred caching solution
// (e.g., Redis, Memcached, in-memory). Nothing in this module requires a
// cache to function.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// If ttl is 0, the value should not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all values with the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

// CacheKey identifies the result set of one compiled statement. Two keys
// built from the same SQL text and the same ordered arguments are equal.
type CacheKey struct {
	Table string
	SQL   string
	Args  []any
}

// String returns the string representation of the cache key: the table name
// followed by a digest of the statement and its arguments, so that a whole
// table can be invalidated with DeletePrefix(Table + ":").
func (k CacheKey) String() string {
	h := sha256.New()
	h.Write([]byte(k.SQL))
	h.Write([]byte{0})
	b, err := msgpack.Marshal(k.Args)
	if err != nil {
		// Arguments of exotic types fall back to their printed form.
		b = fmt.Appendf(nil, "%#v", k.Args)
	}
	h.Write(b)
	return k.Table + ":" + hex.EncodeToString(h.Sum(nil))
}
