package registry

import (
	"context"
	"regexp"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/nodevfs/pkg/cache"
)

var exactVersion = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// IsExactVersion reports whether spec is a plain major.minor.patch literal.
func IsExactVersion(spec string) bool {
	return exactVersion.MatchString(spec)
}

// VersionLookup performs one uncached specifier resolution.
// *Client implements it.
type VersionLookup interface {
	ResolveVersion(ctx context.Context, name, specifier string) (string, error)
}

// Resolver memoizes specifier resolution for its whole lifetime.
//
// The memo is keyed by name@specifier: for one registry snapshot the same
// specifier always selects the same version. Concurrent lookups of the
// same key share a single request. Failures are not memoized.
type Resolver struct {
	lookup VersionLookup

	mu    sync.RWMutex
	memo  map[string]string
	group singleflight.Group
}

// NewResolver creates a Resolver backed by lookup.
func NewResolver(lookup VersionLookup) *Resolver {
	return &Resolver{lookup: lookup, memo: make(map[string]string)}
}

// Resolve returns the concrete version that specifier selects for name.
// Exact versions are returned unchanged without a lookup, and an empty
// specifier means "latest".
func (r *Resolver) Resolve(ctx context.Context, name, specifier string) (string, error) {
	if IsExactVersion(specifier) {
		return specifier, nil
	}
	if specifier == "" {
		specifier = "latest"
	}

	key := cache.PackageID(name, specifier)
	if v, ok := r.memoized(key); ok {
		return v, nil
	}
	return r.lookupShared(ctx, key, name, specifier)
}

func (r *Resolver) memoized(key string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.memo[key]
	return v, ok
}

// lookupShared runs one lookup per key at a time. A caller that missed the
// memo just before another caller's lookup finished finds the result in
// the memo instead of starting a new request.
func (r *Resolver) lookupShared(ctx context.Context, key, name, specifier string) (string, error) {
	res, err, _ := r.group.Do(key, func() (any, error) {
		if v, ok := r.memoized(key); ok {
			return v, nil
		}
		version, err := r.lookup.ResolveVersion(ctx, name, specifier)
		if err != nil {
			return "", err
		}
		r.mu.Lock()
		r.memo[key] = version
		r.mu.Unlock()
		return version, nil
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

// Len returns the number of memoized specifiers.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.memo)
}
