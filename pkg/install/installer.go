package install

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/matzehuels/nodevfs/pkg/errors"
	"github.com/matzehuels/nodevfs/pkg/fetch"
	"github.com/matzehuels/nodevfs/pkg/observability"
)

// Resolver maps a version specifier to a concrete version.
// *registry.Resolver implements it.
type Resolver interface {
	Resolve(ctx context.Context, name, specifier string) (string, error)
}

// Fetcher retrieves an extracted package. *fetch.Fetcher implements it.
type Fetcher interface {
	FetchPackage(ctx context.Context, name, version string) (*fetch.Package, error)
}

// Result is the outcome of one session.
type Result struct {
	// Files is the flattened mapping from virtual path to file content.
	Files map[string]string

	// Roots is the resolved forest, keyed by root name.
	Roots map[string]*Node

	Stats Stats
}

// Stats summarizes a session.
type Stats struct {
	Packages int
	Links    int
	Failed   int
	Files    int
	Duration time.Duration
}

// Installer runs install sessions. Sessions are serialized: a call to
// Install waits for the previous one to finish.
type Installer struct {
	resolver Resolver
	fetcher  Fetcher
	opts     Options
	tracker  *Tracker

	mu       sync.Mutex
	lastHash uint64
	last     *Result
}

// New creates an Installer.
func New(resolver Resolver, fetcher Fetcher, opts Options) *Installer {
	return &Installer{
		resolver: resolver,
		fetcher:  fetcher,
		opts:     opts.WithDefaults(),
		tracker:  NewTracker(),
	}
}

// Progress returns the tracker of the current session.
func (i *Installer) Progress() *Tracker { return i.tracker }

// Install resolves deps and returns the flattened file mapping.
//
// If deps is identical to the mapping of the last successful call, that
// Result is returned again without any network activity.
func (i *Installer) Install(ctx context.Context, deps map[string]string) (*Result, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	hash := Fingerprint(deps)
	if i.last != nil && hash == i.lastHash {
		i.opts.Logger.Debug("dependency set unchanged, reusing previous result")
		return i.last, nil
	}

	res, err := i.run(ctx, deps)
	if err != nil {
		return nil, err
	}
	i.last, i.lastHash = res, hash
	return res, nil
}

func (i *Installer) run(ctx context.Context, deps map[string]string) (*Result, error) {
	id := uuid.NewString()
	start := time.Now()
	logger := i.opts.Logger.With("session", id[:8])
	hooks := observability.Install()

	i.tracker.reset(Progress{ID: id, Status: StatusResolving, TotalPackages: len(deps)})
	hooks.OnSessionStart(ctx, id, len(deps))

	fail := func(err error) (*Result, error) {
		i.tracker.update(func(p *Progress) {
			p.Status = StatusError
			p.CurrentPackage = ""
			p.Error = errors.UserMessage(err)
		})
		hooks.OnSessionComplete(ctx, id, 0, time.Since(start), err)
		return nil, err
	}

	for name, spec := range deps {
		if err := errors.ValidatePackageName(name); err != nil {
			return fail(err)
		}
		if spec != "" {
			if err := errors.ValidateSpecifier(spec); err != nil {
				return fail(errors.Wrap(errors.ErrCodeInvalidInput, err, "dependency %s", name))
			}
		}
	}

	s := newSession(ctx, i, logger)
	roots, err := s.run(deps)
	if err != nil {
		return fail(err)
	}

	i.tracker.update(func(p *Progress) {
		p.Status = StatusInstalling
		p.CurrentPackage = ""
	})
	files := Hoist(roots)

	res := &Result{
		Files: files,
		Roots: roots,
		Stats: Stats{
			Packages: len(s.nodes),
			Links:    s.links,
			Failed:   s.failed,
			Files:    len(files),
			Duration: time.Since(start),
		},
	}

	i.tracker.update(func(p *Progress) { p.Status = StatusDone })
	hooks.OnSessionComplete(ctx, id, res.Stats.Packages, res.Stats.Duration, nil)
	logger.Info("install complete",
		"packages", res.Stats.Packages,
		"files", res.Stats.Files,
		"failed", res.Stats.Failed,
		"took", res.Stats.Duration.Round(time.Millisecond))
	return res, nil
}

// Fingerprint hashes a dependency mapping independently of map order.
func Fingerprint(deps map[string]string) uint64 {
	h := xxhash.New()
	for _, name := range slices.Sorted(maps.Keys(deps)) {
		_, _ = h.WriteString(name)
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(deps[name])
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}
