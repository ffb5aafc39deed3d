package cache

import (
	"context"
	"time"
)

// NullCache is the durable tier behind --no-cache and backend = "none".
// Writes are discarded and every read misses, so a Store built on it keeps
// packages only in its memory tier for the life of the process.
type NullCache struct{}

// NewNullCache returns a NullCache.
func NewNullCache() Cache { return &NullCache{} }

func (*NullCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (*NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (*NullCache) Delete(context.Context, string) error { return nil }

func (*NullCache) Close() error { return nil }
