package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matzehuels/nodevfs/pkg/cache"
	"github.com/matzehuels/nodevfs/pkg/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[registry]
resolve_url = "https://resolve.example.com/v1"
timeout = "5s"
retry_attempts = 1

[install]
concurrency = 3

[cache]
backend = "none"
ttl = "1h"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Registry.ResolveURL != "https://resolve.example.com/v1" {
		t.Errorf("resolve_url = %q", cfg.Registry.ResolveURL)
	}
	if cfg.Registry.Timeout != 5*time.Second {
		t.Errorf("timeout = %v", cfg.Registry.Timeout)
	}
	if cfg.Install.Concurrency != 3 {
		t.Errorf("concurrency = %d", cfg.Install.Concurrency)
	}
	if cfg.Install.MaxDepth != 10 {
		t.Errorf("max_depth = %d, want default 10", cfg.Install.MaxDepth)
	}
	if cfg.Cache.Backend != BackendNone || cfg.Cache.TTL != time.Hour {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Registry.TarballURL == "" {
		t.Error("tarball_url default lost")
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code errors.Code
	}{
		{"syntax", "[install\nmax_depth = 1", errors.ErrCodeInvalidInput},
		{"unknown key", "[install]\nworkers = 4", errors.ErrCodeInvalidInput},
		{"bad backend", "[cache]\nbackend = \"memcached\"", errors.ErrCodeInvalidInput},
		{"zero concurrency", "[install]\nconcurrency = 0", errors.ErrCodeInvalidInput},
		{"bad url", "[registry]\ntarball_url = \"ftp://x\"", errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if !errors.Is(err, tt.code) {
				t.Errorf("expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestLoadLookup(t *testing.T) {
	t.Run("explicit missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
		if !errors.Is(err, errors.ErrCodeFileNotFound) {
			t.Errorf("expected FILE_NOT_FOUND, got %v", err)
		}
	})

	t.Run("env variable", func(t *testing.T) {
		path := writeConfig(t, "[server]\naddr = \":9999\"")
		t.Setenv(EnvConfig, path)
		cfg, err := Load("")
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Server.Addr != ":9999" {
			t.Errorf("addr = %q", cfg.Server.Addr)
		}
	})

	t.Run("xdg default missing", func(t *testing.T) {
		t.Setenv(EnvConfig, "")
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		cfg, err := Load("")
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Server.Addr != ":8080" {
			t.Errorf("addr = %q, want default", cfg.Server.Addr)
		}
	})

	t.Run("xdg default present", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv(EnvConfig, "")
		t.Setenv("XDG_CONFIG_HOME", dir)
		if err := os.MkdirAll(filepath.Join(dir, "nodevfs"), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "nodevfs", "config.toml"), []byte("[install]\nmax_depth = 4"), 0o644); err != nil {
			t.Fatal(err)
		}
		cfg, err := Load("")
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Install.MaxDepth != 4 {
			t.Errorf("max_depth = %d", cfg.Install.MaxDepth)
		}
	})
}

func TestDefaultPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	t.Setenv("XDG_CACHE_HOME", "/cache")

	if p, _ := DefaultPath(); p != filepath.Join("/cfg", "nodevfs", "config.toml") {
		t.Errorf("DefaultPath = %q", p)
	}
	if p, _ := DefaultCacheDir(); p != filepath.Join("/cache", "nodevfs") {
		t.Errorf("DefaultCacheDir = %q", p)
	}
}

func TestOpenCache(t *testing.T) {
	ctx := context.Background()

	c, err := CacheConfig{Backend: BackendNone}.OpenCache(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(*cache.NullCache); !ok {
		t.Errorf("none backend = %T", c)
	}

	dir := t.TempDir()
	c, err = CacheConfig{Backend: BackendFile, Dir: dir}.OpenCache(ctx)
	if err != nil {
		t.Fatal(err)
	}
	fc, ok := c.(*cache.FileCache)
	if !ok || fc.Dir() != dir {
		t.Errorf("file backend = %T", c)
	}
}

func TestKeyer(t *testing.T) {
	if got := (CacheConfig{}).Keyer().PackageKey("a", "1.0.0"); got != "pkg:a@1.0.0" {
		t.Errorf("default key = %q", got)
	}
	if got := (CacheConfig{Prefix: "eu:"}).Keyer().PackageKey("a", "1.0.0"); got != "eu:pkg:a@1.0.0" {
		t.Errorf("scoped key = %q", got)
	}
}

func TestConversions(t *testing.T) {
	cfg := Default()
	rc := cfg.RegistryClient()
	if rc.ResolveURL != cfg.Registry.ResolveURL || rc.Retry.Attempts != cfg.Registry.RetryAttempts {
		t.Errorf("registry config = %+v", rc)
	}
	opts := cfg.InstallOptions(nil)
	if opts.MaxDepth != cfg.Install.MaxDepth || opts.Concurrency != cfg.Install.Concurrency {
		t.Errorf("install options = %+v", opts)
	}
}
