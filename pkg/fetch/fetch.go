// Package fetch downloads, extracts, and caches npm package archives.
//
// A [Fetcher] turns name@version into a [Package]: the extracted file
// mapping plus its parsed manifest. Results are kept in a two-tier [Store]
// so each archive is downloaded at most once per process and, with a
// durable backend, once per cache lifetime.
package fetch

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/nodevfs/pkg/cache"
	"github.com/matzehuels/nodevfs/pkg/errors"
	"github.com/matzehuels/nodevfs/pkg/manifest"
	"github.com/matzehuels/nodevfs/pkg/observability"
	"github.com/matzehuels/nodevfs/pkg/tarball"
)

// Source opens package archives. *registry.Client implements it.
type Source interface {
	Tarball(ctx context.Context, name, version string) (io.ReadCloser, error)
}

// Package is one extracted name@version.
type Package struct {
	Name     string
	Version  string
	Files    map[string]string
	Manifest manifest.Manifest
}

func newPackage(name, version string, files map[string]string) *Package {
	return &Package{
		Name:     name,
		Version:  version,
		Files:    files,
		Manifest: manifest.FromFiles(files),
	}
}

// Fetcher retrieves packages through a Store.
type Fetcher struct {
	source Source
	store  *Store
	logger *log.Logger
	group  singleflight.Group
}

// NewFetcher creates a Fetcher. A nil store gets a memory-only Store.
func NewFetcher(source Source, store *Store, logger *log.Logger) *Fetcher {
	if logger == nil {
		logger = log.Default()
	}
	if store == nil {
		store = NewStore(StoreConfig{Logger: logger})
	}
	return &Fetcher{source: source, store: store, logger: logger}
}

// Store returns the Fetcher's cache.
func (f *Fetcher) Store() *Store { return f.store }

// FetchPackage returns name@version, downloading and extracting it on a
// cache miss. Failures leave both cache tiers untouched.
func (f *Fetcher) FetchPackage(ctx context.Context, name, version string) (*Package, error) {
	if files, ok := f.store.Get(ctx, name, version); ok {
		return newPackage(name, version, files), nil
	}

	files, err := f.fetchShared(ctx, name, version)
	if err != nil {
		return nil, err
	}
	return newPackage(name, version, files), nil
}

// fetchShared downloads name@version once per concurrent burst of callers.
func (f *Fetcher) fetchShared(ctx context.Context, name, version string) (map[string]string, error) {
	id := cache.PackageID(name, version)
	v, err, _ := f.group.Do(id, func() (any, error) {
		// A download that finished between the caller's Get and Do has
		// already filled the memory tier.
		if files, ok := f.store.memory(id); ok {
			return files, nil
		}
		return f.download(ctx, name, version)
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]string), nil
}

func (f *Fetcher) download(ctx context.Context, name, version string) (map[string]string, error) {
	start := time.Now()

	body, err := f.source.Tarball(ctx, name, version)
	if err != nil {
		if errors.GetCode(err) == "" {
			err = errors.Fetch(name, version, err)
		}
		return nil, err
	}
	defer body.Close()

	files, err := tarball.Extract(body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "extract %s", cache.PackageID(name, version))
	}

	f.store.Put(ctx, name, version, files)
	elapsed := time.Since(start)
	f.logger.Debug("fetched", "package", cache.PackageID(name, version), "files", len(files), "took", elapsed)
	observability.Install().OnPackageFetched(ctx, name, version, len(files), elapsed)
	return files, nil
}
