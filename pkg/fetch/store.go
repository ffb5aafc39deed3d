package fetch

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"

	"github.com/matzehuels/nodevfs/pkg/cache"
	"github.com/matzehuels/nodevfs/pkg/observability"
)

const (
	tierMemory  = "memory"
	tierDurable = "durable"
)

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil)
)

// StoreConfig configures a Store.
type StoreConfig struct {
	// Durable is the slow tier. Nil means memory only.
	Durable cache.Cache
	// Keyer builds durable keys. Defaults to cache.DefaultKeyer.
	Keyer cache.Keyer
	// TTL of durable entries. Defaults to cache.TTLPackage.
	TTL time.Duration
	// Logger receives durable-tier failures at debug level.
	Logger *log.Logger
}

// Store is the two-tier cache of extracted packages, keyed by name@version.
//
// The memory tier is authoritative for the life of the process. The durable
// tier is consulted on a memory miss and its hits are promoted. Durable
// errors never surface to callers.
type Store struct {
	mu  sync.RWMutex
	mem map[string]map[string]string

	durable cache.Cache
	keyer   cache.Keyer
	ttl     time.Duration
	logger  *log.Logger
}

// NewStore creates a Store.
func NewStore(cfg StoreConfig) *Store {
	if cfg.Durable == nil {
		cfg.Durable = cache.NewNullCache()
	}
	if cfg.Keyer == nil {
		cfg.Keyer = cache.NewDefaultKeyer()
	}
	if cfg.TTL == 0 {
		cfg.TTL = cache.TTLPackage
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Store{
		mem:     make(map[string]map[string]string),
		durable: cfg.Durable,
		keyer:   cfg.Keyer,
		ttl:     cfg.TTL,
		logger:  cfg.Logger,
	}
}

// Get returns the files of name@version from the fastest tier that has them.
func (s *Store) Get(ctx context.Context, name, version string) (map[string]string, bool) {
	id := cache.PackageID(name, version)
	hooks := observability.Cache()

	s.mu.RLock()
	files, ok := s.mem[id]
	s.mu.RUnlock()
	if ok {
		hooks.OnCacheHit(ctx, tierMemory)
		return files, true
	}
	hooks.OnCacheMiss(ctx, tierMemory)

	data, ok, err := s.durable.Get(ctx, s.keyer.PackageKey(name, version))
	if err != nil {
		s.logger.Debug("durable cache read failed", "package", id, "err", err)
		hooks.OnCacheError(ctx, tierDurable, err)
		return nil, false
	}
	if !ok {
		hooks.OnCacheMiss(ctx, tierDurable)
		return nil, false
	}

	files, err = decodeFiles(data)
	if err != nil {
		s.logger.Debug("durable cache entry unreadable", "package", id, "err", err)
		hooks.OnCacheError(ctx, tierDurable, err)
		return nil, false
	}
	hooks.OnCacheHit(ctx, tierDurable)

	s.mu.Lock()
	s.mem[id] = files
	s.mu.Unlock()
	return files, true
}

// memory looks id up in the memory tier only, without reporting a hit or
// miss.
func (s *Store) memory(id string) (map[string]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	files, ok := s.mem[id]
	return files, ok
}

// Put stores files under name@version in both tiers.
func (s *Store) Put(ctx context.Context, name, version string, files map[string]string) {
	id := cache.PackageID(name, version)
	hooks := observability.Cache()

	s.mu.Lock()
	s.mem[id] = files
	s.mu.Unlock()
	hooks.OnCacheSet(ctx, tierMemory, len(files))

	data, err := encodeFiles(files)
	if err != nil {
		s.logger.Debug("encode cache entry", "package", id, "err", err)
		return
	}
	if err := s.durable.Set(ctx, s.keyer.PackageKey(name, version), data, s.ttl); err != nil {
		s.logger.Debug("durable cache write failed", "package", id, "err", err)
		hooks.OnCacheError(ctx, tierDurable, err)
		return
	}
	hooks.OnCacheSet(ctx, tierDurable, len(data))
}

// Len returns the number of packages in the memory tier.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.mem)
}

func encodeFiles(files map[string]string) ([]byte, error) {
	raw, err := json.Marshal(files)
	if err != nil {
		return nil, err
	}
	return encoder.EncodeAll(raw, nil), nil
}

func decodeFiles(data []byte) (map[string]string, error) {
	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, err
	}
	var files map[string]string
	if err := json.Unmarshal(raw, &files); err != nil {
		return nil, err
	}
	if files == nil {
		files = map[string]string{}
	}
	return files, nil
}
