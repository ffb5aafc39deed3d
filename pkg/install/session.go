package install

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/nodevfs/pkg/cache"
	"github.com/matzehuels/nodevfs/pkg/errors"
	"github.com/matzehuels/nodevfs/pkg/observability"
)

// session crawls one dependency mapping. Workers resolve and fetch; the
// goroutine running collect owns every Node and attaches results to the
// tree.
type session struct {
	ctx      context.Context
	opts     Options
	logger   *log.Logger
	resolver Resolver
	fetcher  Fetcher
	tracker  *Tracker
	visited  *visitedSet

	jobs    chan job
	results chan result
	pending int

	roots     map[string]*Node
	nodes     map[string]*Node // by name@version
	rootLinks map[string]string
	links     int
	failed    int
}

type job struct {
	name      string
	specifier string
	depth     int
	parent    *Node // nil for roots
}

type result struct {
	job
	version string
	node    *Node
	linked  bool
	err     error
}

func newSession(ctx context.Context, i *Installer, logger *log.Logger) *session {
	return &session{
		ctx:       ctx,
		opts:      i.opts,
		logger:    logger,
		resolver:  i.resolver,
		fetcher:   i.fetcher,
		tracker:   i.tracker,
		visited:   newVisitedSet(),
		jobs:      make(chan job, i.opts.Concurrency*2),
		results:   make(chan result, i.opts.Concurrency*2),
		roots:     make(map[string]*Node),
		nodes:     make(map[string]*Node),
		rootLinks: make(map[string]string),
	}
}

func (s *session) run(deps map[string]string) (map[string]*Node, error) {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for range s.opts.Concurrency {
		g.Go(func() error {
			s.worker(gctx)
			return nil
		})
	}

	for _, name := range sortedKeys(deps) {
		s.enqueue(gctx, job{name: name, specifier: deps[name]})
	}

	err := s.collect(ctx)
	cancel()
	_ = g.Wait()
	if err != nil {
		return nil, err
	}

	s.link()
	return s.roots, nil
}

func (s *session) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.jobs:
			r := s.process(ctx, j)
			select {
			case s.results <- r:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *session) process(ctx context.Context, j job) result {
	version, err := s.resolver.Resolve(ctx, j.name, j.specifier)
	if err != nil {
		return result{job: j, err: err}
	}

	if !s.visited.add(cache.PackageID(j.name, version)) {
		return result{job: j, version: version, linked: true}
	}

	s.tracker.update(func(p *Progress) {
		p.Status = StatusDownloading
		p.CurrentPackage = cache.PackageID(j.name, version)
	})

	pkg, err := s.fetcher.FetchPackage(ctx, j.name, version)
	if err != nil {
		return result{job: j, version: version, err: err}
	}
	return result{
		job:     j,
		version: version,
		node:    newNode(j.name, version, pkg.Manifest.Dependencies, pkg.Files),
	}
}

func (s *session) enqueue(ctx context.Context, j job) {
	s.pending++
	go func() {
		select {
		case s.jobs <- j:
		case <-ctx.Done():
		}
	}()
}

func (s *session) collect(ctx context.Context) error {
	if s.pending == 0 {
		return nil
	}
	for {
		select {
		case r := <-s.results:
			if err := s.handle(ctx, r); err != nil {
				return err
			}
			s.pending--
			if s.pending == 0 {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *session) handle(ctx context.Context, r result) error {
	if r.err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if r.parent == nil && errors.Is(r.err, errors.ErrCodeResolution) {
			return r.err
		}
		s.failed++
		s.logger.Warn("skipping package", "package", r.name, "specifier", r.specifier, "err", errors.UserMessage(r.err))
		observability.Install().OnPackageFailed(ctx, r.name, r.specifier, r.err)
		return nil
	}

	if r.linked {
		s.links++
		if r.parent == nil {
			s.rootLinks[r.name] = r.version
		} else {
			r.parent.Links[r.name] = r.version
		}
		return nil
	}

	n := r.node
	s.nodes[n.ID()] = n
	if r.parent == nil {
		s.roots[n.Name] = n
	} else {
		r.parent.Children[n.Name] = n
	}

	visited := s.visited.len()
	s.tracker.update(func(p *Progress) {
		p.DownloadedPackages++
		p.TotalPackages = max(p.TotalPackages, visited)
	})

	s.enqueueDeps(ctx, r)
	return nil
}

func (s *session) enqueueDeps(ctx context.Context, r result) {
	next := r.depth + 1
	for _, name := range sortedKeys(r.node.Dependencies) {
		if next > s.opts.MaxDepth {
			s.logger.Debug("depth limit reached", "package", r.node.ID(), "dependency", name, "depth", next)
			continue
		}
		if err := errors.ValidatePackageName(name); err != nil {
			s.failed++
			s.logger.Warn("skipping dependency", "package", r.node.ID(), "dependency", name, "err", errors.UserMessage(err))
			continue
		}
		s.enqueue(ctx, job{name: name, specifier: r.node.Dependencies[name], depth: next, parent: r.node})
	}
}

// link resolves links once every fetch has settled. Links to packages
// that failed to fetch are dropped, and a root whose name@version was
// first fetched as a transitive dependency shares that node.
func (s *session) link() {
	for name, version := range s.rootLinks {
		if n, ok := s.nodes[cache.PackageID(name, version)]; ok {
			s.roots[name] = n
		}
	}
	for _, n := range s.nodes {
		for name, version := range n.Links {
			if _, ok := s.nodes[cache.PackageID(name, version)]; !ok {
				delete(n.Links, name)
			}
		}
	}
}

// visitedSet is the session's set of fetched name@version identifiers.
type visitedSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func newVisitedSet() *visitedSet {
	return &visitedSet{ids: make(map[string]struct{})}
}

// add inserts id and reports whether it was absent.
func (v *visitedSet) add(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.ids[id]; ok {
		return false
	}
	v.ids[id] = struct{}{}
	return true
}

func (v *visitedSet) len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.ids)
}
