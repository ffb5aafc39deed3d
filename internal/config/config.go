// Package config loads nodevfs settings from a TOML file.
//
// The file is optional. Lookup order: an explicit path (the --config
// flag), $NODEVFS_CONFIG, then $XDG_CONFIG_HOME/nodevfs/config.toml
// (~/.config/nodevfs/config.toml). Missing keys keep their defaults.
//
//	[registry]
//	resolve_url    = "https://data.jsdelivr.com/v1"
//	tarball_url    = "https://registry.npmjs.org"
//	timeout        = "30s"
//	retry_attempts = 3
//	retry_delay    = "1s"
//
//	[install]
//	max_depth   = 10
//	concurrency = 6
//
//	[cache]
//	backend = "file"   # file, redis, mongo or none
//	ttl     = "168h"
//
//	[server]
//	addr = ":8080"
package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/nodevfs/pkg/cache"
	"github.com/matzehuels/nodevfs/pkg/errors"
	"github.com/matzehuels/nodevfs/pkg/install"
	"github.com/matzehuels/nodevfs/pkg/registry"
)

const appName = "nodevfs"

// EnvConfig names the environment variable holding a config file path.
const EnvConfig = "NODEVFS_CONFIG"

// Cache backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendMongo = "mongo"
	BackendNone  = "none"
)

// Config is the complete configuration.
type Config struct {
	Registry RegistryConfig `toml:"registry"`
	Install  InstallConfig  `toml:"install"`
	Cache    CacheConfig    `toml:"cache"`
	Server   ServerConfig   `toml:"server"`
}

type RegistryConfig struct {
	ResolveURL    string        `toml:"resolve_url"`
	TarballURL    string        `toml:"tarball_url"`
	Timeout       time.Duration `toml:"timeout"`
	RetryAttempts int           `toml:"retry_attempts"`
	RetryDelay    time.Duration `toml:"retry_delay"`
}

type InstallConfig struct {
	MaxDepth    int `toml:"max_depth"`
	Concurrency int `toml:"concurrency"`
}

type CacheConfig struct {
	Backend string        `toml:"backend"`
	Dir     string        `toml:"dir"`
	TTL     time.Duration `toml:"ttl"`

	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`

	MongoURI        string `toml:"mongo_uri"`
	MongoDatabase   string `toml:"mongo_database"`
	MongoCollection string `toml:"mongo_collection"`

	// Prefix scopes keys so deployments can share a backend.
	Prefix string `toml:"prefix"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Registry: RegistryConfig{
			ResolveURL:    registry.DefaultResolveURL,
			TarballURL:    registry.DefaultTarballURL,
			Timeout:       registry.DefaultTimeout,
			RetryAttempts: registry.DefaultBackoff.Attempts,
			RetryDelay:    registry.DefaultBackoff.Delay,
		},
		Install: InstallConfig{
			MaxDepth:    install.DefaultMaxDepth,
			Concurrency: install.DefaultConcurrency,
		},
		Cache: CacheConfig{
			Backend:         BackendFile,
			TTL:             cache.TTLPackage,
			RedisAddr:       "localhost:6379",
			MongoURI:        "mongodb://localhost:27017",
			MongoDatabase:   appName,
			MongoCollection: "packages",
		},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// Load reads the configuration. An empty path uses the lookup order; a
// missing file at a looked-up location yields the defaults, while a
// missing explicit path is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfig)
		explicit = path != ""
	}
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if os.IsNotExist(err) {
			if explicit {
				return cfg, errors.Wrap(errors.ErrCodeFileNotFound, err, "config %s not found", path)
			}
			return Default(), nil
		}
		return cfg, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, errors.New(errors.ErrCodeInvalidInput, "config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	return cfg, cfg.Validate()
}

// DefaultPath returns $XDG_CONFIG_HOME/nodevfs/config.toml.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// DefaultCacheDir returns $XDG_CACHE_HOME/nodevfs (~/.cache/nodevfs).
func DefaultCacheDir() (string, error) {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	for _, u := range []string{c.Registry.ResolveURL, c.Registry.TarballURL} {
		if err := errors.ValidateURL(u); err != nil {
			return err
		}
	}
	if c.Registry.Timeout < 0 || c.Registry.RetryDelay < 0 || c.Registry.RetryAttempts < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "registry timeout and retry settings must not be negative")
	}
	if c.Install.MaxDepth <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "install.max_depth must be positive, got %d", c.Install.MaxDepth)
	}
	if c.Install.Concurrency <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "install.concurrency must be positive, got %d", c.Install.Concurrency)
	}
	switch c.Cache.Backend {
	case BackendFile, BackendRedis, BackendMongo, BackendNone:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown cache backend %q (want file, redis, mongo or none)", c.Cache.Backend)
	}
	if c.Cache.TTL < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "cache.ttl must not be negative")
	}
	return nil
}

// RegistryClient builds the registry client configuration.
func (c Config) RegistryClient() registry.Config {
	return registry.Config{
		ResolveURL: c.Registry.ResolveURL,
		TarballURL: c.Registry.TarballURL,
		Timeout:    c.Registry.Timeout,
		Retry: registry.Backoff{
			Attempts: c.Registry.RetryAttempts,
			Delay:    c.Registry.RetryDelay,
		},
	}
}

// InstallOptions builds installer options.
func (c Config) InstallOptions(logger *log.Logger) install.Options {
	return install.Options{
		MaxDepth:    c.Install.MaxDepth,
		Concurrency: c.Install.Concurrency,
		Logger:      logger,
	}
}

// OpenCache connects the configured durable backend.
func (c CacheConfig) OpenCache(ctx context.Context) (cache.Cache, error) {
	switch c.Backend {
	case BackendNone:
		return cache.NewNullCache(), nil
	case BackendRedis:
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		return rc, nil
	case BackendMongo:
		mc, err := cache.NewMongoCache(ctx, cache.MongoConfig{
			URI:        c.MongoURI,
			Database:   c.MongoDatabase,
			Collection: c.MongoCollection,
		})
		if err != nil {
			return nil, err
		}
		return mc, nil
	default:
		dir := c.Dir
		if dir == "" {
			d, err := DefaultCacheDir()
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeInternal, err, "locate cache directory")
			}
			dir = d
		}
		fc, err := cache.NewFileCache(dir)
		if err != nil {
			return nil, err
		}
		return fc, nil
	}
}

// Keyer returns the durable key builder, scoped when Prefix is set.
func (c CacheConfig) Keyer() cache.Keyer {
	if c.Prefix == "" {
		return cache.NewDefaultKeyer()
	}
	return cache.NewScopedKeyer(cache.NewDefaultKeyer(), c.Prefix)
}
