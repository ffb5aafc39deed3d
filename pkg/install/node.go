package install

import (
	"maps"
	"slices"

	"github.com/matzehuels/nodevfs/pkg/cache"
)

// Node is one resolved and fetched package.
type Node struct {
	Name    string
	Version string

	// Dependencies are the declared dependencies from the package manifest.
	Dependencies map[string]string

	// Children are the dependencies this node caused to be fetched, keyed
	// by name. A child belongs to exactly one parent.
	Children map[string]*Node

	// Links are dependencies whose name@version was already fetched
	// elsewhere in the session, keyed by name with the resolved version.
	Links map[string]string

	// Files is the extracted archive content keyed by path relative to the
	// package root.
	Files map[string]string
}

func newNode(name, version string, deps, files map[string]string) *Node {
	if deps == nil {
		deps = map[string]string{}
	}
	return &Node{
		Name:         name,
		Version:      version,
		Dependencies: deps,
		Children:     make(map[string]*Node),
		Links:        make(map[string]string),
		Files:        files,
	}
}

// ID returns name@version.
func (n *Node) ID() string { return cache.PackageID(n.Name, n.Version) }

// Walk visits every node reachable from roots through Children exactly
// once, in sorted name order, depth first.
func Walk(roots map[string]*Node, fn func(n *Node, depth int)) {
	seen := make(map[*Node]bool)
	var visit func(n *Node, depth int)
	visit = func(n *Node, depth int) {
		if seen[n] {
			return
		}
		seen[n] = true
		fn(n, depth)
		for _, name := range sortedKeys(n.Children) {
			visit(n.Children[name], depth+1)
		}
	}
	for _, name := range sortedKeys(roots) {
		visit(roots[name], 0)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
