// Package pkg provides the core libraries for nodevfs.
//
// # Overview
//
// nodevfs installs npm dependencies into a virtual file tree. Instead of
// writing node_modules to disk, it produces a flat mapping from virtual path
// ("node_modules/react/index.js") to file content that an in-memory bundler
// or sandbox can consume directly.
//
// # Architecture
//
// The data flow through one install session:
//
//	package.json dependencies
//	         ↓
//	    [registry] (specifier → concrete version)
//	         ↓
//	    [fetch] (download archive, two-tier cache)
//	         ↓
//	    [tarball] (gzip + tar → file map)
//	         ↓
//	    [install] (crawl the tree, hoist into node_modules paths)
//	         ↓
//	    map[string]string
//
// # Quick Start
//
//	client := registry.NewClient(registry.Config{})
//	store := fetch.NewStore(fetch.StoreConfig{Durable: cache.NewNullCache()})
//	inst := install.New(
//	    registry.NewResolver(client),
//	    fetch.NewFetcher(client, store, nil),
//	    install.Options{},
//	)
//
//	res, err := inst.Install(ctx, map[string]string{"react": "^18.2.0"})
//	if err != nil {
//	    return err
//	}
//	src := res.Files["node_modules/react/index.js"]
//
// # Main Packages
//
// [install] - The engine. Crawls the dependency tree with a bounded worker
// pool, prunes subtrees that fail to resolve or download, and hoists the
// result so the most common version of each package wins the top-level slot.
// Reports progress through a [install.Tracker].
//
// [registry] - HTTP client for version resolution and archive download, with
// retry and a deduplicating resolver.
//
// [fetch] - Package downloads behind an in-memory tier and a durable
// [cache.Cache] tier. Concurrent requests for one package share a download.
//
// [tarball] - Streaming extraction of npm archives into text file maps.
//
// [manifest] - package.json parsing and name@specifier arguments.
//
// [cache] - Durable cache backends: file, Redis, MongoDB, and a no-op cache.
//
// [render] - Graphviz diagrams of a resolved tree.
//
// [errors] - Structured error codes and input validation.
//
// [observability] - Hooks for install, cache, and HTTP events.
//
// # Testing
//
//	go test ./pkg/...                    # All tests
//	go test -tags integration ./pkg/...  # Include Redis/MongoDB tests
//
// [install]: https://pkg.go.dev/github.com/matzehuels/nodevfs/pkg/install
// [install.Tracker]: https://pkg.go.dev/github.com/matzehuels/nodevfs/pkg/install#Tracker
// [registry]: https://pkg.go.dev/github.com/matzehuels/nodevfs/pkg/registry
// [fetch]: https://pkg.go.dev/github.com/matzehuels/nodevfs/pkg/fetch
// [tarball]: https://pkg.go.dev/github.com/matzehuels/nodevfs/pkg/tarball
// [manifest]: https://pkg.go.dev/github.com/matzehuels/nodevfs/pkg/manifest
// [cache]: https://pkg.go.dev/github.com/matzehuels/nodevfs/pkg/cache
// [cache.Cache]: https://pkg.go.dev/github.com/matzehuels/nodevfs/pkg/cache#Cache
// [render]: https://pkg.go.dev/github.com/matzehuels/nodevfs/pkg/render
// [errors]: https://pkg.go.dev/github.com/matzehuels/nodevfs/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/nodevfs/pkg/observability
package pkg
