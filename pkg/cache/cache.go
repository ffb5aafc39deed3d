// Package cache provides the durable tier of the package cache.
//
// The install engine keeps extracted package contents in two tiers: an
// in-process map owned by [github.com/matzehuels/nodevfs/pkg/fetch.Store]
// and a slower durable tier behind the [Cache] interface defined here. The
// durable tier is a best-effort optimization: callers log and ignore its
// errors, and a lost write only costs a re-download.
//
// # Backends
//
//   - [FileCache]: one JSON file per key under a directory (CLI default)
//   - [RedisCache]: Redis, for servers sharing a cache across instances
//   - [MongoCache]: a MongoDB collection with a TTL index
//   - [NullCache]: never stores anything (--no-cache, tests)
//
// # Keys
//
// Keys are built by a [Keyer]. [DefaultKeyer] produces "pkg:name@version";
// [ScopedKeyer] prefixes another keyer so several deployments can share one
// Redis or Mongo instance.
package cache

import (
	"context"
	"time"
)

// Default durations.
const (
	// TTLPackage is how long extracted package contents stay in the durable
	// tier. Published npm versions are immutable, so this is long.
	TTLPackage = 7 * 24 * time.Hour
)

// Cache is a byte-oriented key-value store with per-entry expiration.
type Cache interface {
	// Get returns the value for key. A missing or expired key is a miss
	// (nil, false, nil), not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend's resources.
	Close() error
}

// Keyer builds cache keys.
type Keyer interface {
	// PackageKey returns the key for the extracted contents of name@version.
	PackageKey(name, version string) string
}

// DefaultKeyer produces unprefixed keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns a DefaultKeyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// PackageKey returns "pkg:name@version".
func (DefaultKeyer) PackageKey(name, version string) string {
	return "pkg:" + PackageID(name, version)
}

// PackageID returns the canonical "name@version" identifier used as the
// session visited-set key and as the base of every package cache key.
func PackageID(name, version string) string {
	return name + "@" + version
}
