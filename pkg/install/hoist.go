package install

import (
	"strings"

	"github.com/matzehuels/nodevfs/pkg/cache"
)

const nodeModules = "node_modules"

// Hoist flattens a resolved forest into a node_modules file mapping.
//
// For each package name one version is chosen for the top-level slot
// node_modules/<name>: a root always takes its own slot, otherwise the
// version with the most occurrences (nodes plus links) wins, ties going to
// the version encountered first.
//
// A dependency is placed the way Node resolves it from its requirer: if a
// directory on the requirer's lookup path already holds the same version,
// nothing is written; if the nearest one holds another version, or the
// dependency did not win the top-level slot, it is nested under the
// requirer; otherwise it is lifted to node_modules/<name>. A (path,
// version) pair is written once.
func Hoist(roots map[string]*Node) map[string]string {
	h := &hoister{
		roots:   roots,
		counts:  make(map[string]map[string]int),
		order:   make(map[string]int),
		nodes:   make(map[string]*Node),
		placed:  map[string]map[string]string{"": {}},
		written: make(map[string]bool),
		files:   make(map[string]string),
	}
	h.count()
	h.pickWinners()

	names := sortedKeys(roots)
	for _, name := range names {
		h.placed[""][name] = roots[name].Version
	}
	for _, name := range names {
		h.write(roots[name], nodeModules+"/"+name, map[*Node]int{})
	}
	return h.files
}

type hoister struct {
	roots   map[string]*Node
	counts  map[string]map[string]int // name -> version -> occurrences
	order   map[string]int            // name@version -> first encounter
	nodes   map[string]*Node          // name@version -> node
	winners map[string]string

	// placed maps a package directory ("" for the top level) to the
	// name -> version entries of its node_modules.
	placed  map[string]map[string]string
	written map[string]bool
	files   map[string]string
}

func (h *hoister) count() {
	Walk(h.roots, func(n *Node, _ int) {
		h.nodes[n.ID()] = n
		h.occur(n.Name, n.Version)
		for _, name := range sortedKeys(n.Links) {
			h.occur(name, n.Links[name])
		}
	})
}

func (h *hoister) occur(name, version string) {
	byVersion, ok := h.counts[name]
	if !ok {
		byVersion = make(map[string]int)
		h.counts[name] = byVersion
	}
	byVersion[version]++
	id := cache.PackageID(name, version)
	if _, ok := h.order[id]; !ok {
		h.order[id] = len(h.order)
	}
}

func (h *hoister) pickWinners() {
	h.winners = make(map[string]string, len(h.counts))
	for name, byVersion := range h.counts {
		if root, ok := h.roots[name]; ok {
			h.winners[name] = root.Version
			continue
		}
		best, bestCount := "", 0
		for version, count := range byVersion {
			switch {
			case count > bestCount:
				best, bestCount = version, count
			case count == bestCount && h.first(name, version, best):
				best = version
			}
		}
		h.winners[name] = best
	}
}

func (h *hoister) first(name, a, b string) bool {
	return h.order[cache.PackageID(name, a)] < h.order[cache.PackageID(name, b)]
}

// parentDir returns the package directory whose node_modules holds base,
// "" for the top level.
func parentDir(base string) string {
	if i := strings.LastIndex(base, "/"+nodeModules+"/"); i >= 0 {
		return base[:i]
	}
	return ""
}

// place decides where dependency dep of the package at base goes. It
// returns "" when the requirer already resolves dep's version.
func (h *hoister) place(dep *Node, base string) string {
	for dir := base; ; dir = parentDir(dir) {
		if v, ok := h.placed[dir][dep.Name]; ok {
			if v == dep.Version {
				return ""
			}
			return h.put(base, dep)
		}
		if dir == "" {
			break
		}
	}
	if h.winners[dep.Name] == dep.Version {
		return h.put("", dep)
	}
	return h.put(base, dep)
}

func (h *hoister) put(dir string, dep *Node) string {
	entries, ok := h.placed[dir]
	if !ok {
		entries = make(map[string]string)
		h.placed[dir] = entries
	}
	entries[dep.Name] = dep.Version
	if dir == "" {
		return nodeModules + "/" + dep.Name
	}
	return dir + "/" + nodeModules + "/" + dep.Name
}

// write places n at base and then its dependencies. path counts the nodes
// on the current branch so cyclic links stop after one copy.
func (h *hoister) write(n *Node, base string, path map[*Node]int) {
	key := base + "@" + n.Version
	if h.written[key] || path[n] > 1 {
		return
	}
	h.written[key] = true

	for rel, content := range n.Files {
		h.files[base+"/"+rel] = content
	}

	path[n]++
	defer func() { path[n]-- }()

	// Every dependency of n is placed before any is descended into, so
	// nested lookups see the complete contents of n's node_modules.
	type placement struct {
		node *Node
		base string
	}
	var next []placement
	for _, name := range sortedKeys(n.Dependencies) {
		dep := n.Children[name]
		if dep == nil {
			version, ok := n.Links[name]
			if !ok {
				continue
			}
			if dep = h.nodes[cache.PackageID(name, version)]; dep == nil {
				continue
			}
		}
		if depBase := h.place(dep, base); depBase != "" {
			next = append(next, placement{dep, depBase})
		}
	}
	for _, p := range next {
		h.write(p.node, p.base, path)
	}
}
