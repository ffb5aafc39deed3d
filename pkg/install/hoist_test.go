package install

import "testing"

func pkg(name, version string) *Node {
	return newNode(name, version, nil, map[string]string{"index.js": name + "@" + version})
}

func withChildren(n *Node, children ...*Node) *Node {
	for _, c := range children {
		n.Children[c.Name] = c
		n.Dependencies[c.Name] = c.Version
	}
	return n
}

func withLink(n *Node, name, version string) *Node {
	n.Links[name] = version
	n.Dependencies[name] = version
	return n
}

func TestHoistMostCommonVersionWins(t *testing.T) {
	x1 := pkg("x", "1.0.0")
	x2 := pkg("x", "2.0.0")
	roots := map[string]*Node{
		"a": withChildren(pkg("a", "1.0.0"), x1),
		"b": withLink(pkg("b", "1.0.0"), "x", "1.0.0"),
		"c": withLink(pkg("c", "1.0.0"), "x", "1.0.0"),
		"d": withChildren(pkg("d", "1.0.0"), x2),
	}

	files := Hoist(roots)

	want := map[string]string{
		"node_modules/a/index.js":                "a@1.0.0",
		"node_modules/b/index.js":                "b@1.0.0",
		"node_modules/c/index.js":                "c@1.0.0",
		"node_modules/d/index.js":                "d@1.0.0",
		"node_modules/x/index.js":                "x@1.0.0",
		"node_modules/d/node_modules/x/index.js": "x@2.0.0",
	}
	assertFiles(t, files, want)
}

func TestHoistTieGoesToFirstEncountered(t *testing.T) {
	roots := map[string]*Node{
		"a": withChildren(pkg("a", "1.0.0"), pkg("x", "1.0.0")),
		"b": withChildren(pkg("b", "1.0.0"), pkg("x", "2.0.0")),
	}

	files := Hoist(roots)

	if got := files["node_modules/x/index.js"]; got != "x@1.0.0" {
		t.Errorf("top-level x = %q, want x@1.0.0", got)
	}
	if got := files["node_modules/b/node_modules/x/index.js"]; got != "x@2.0.0" {
		t.Errorf("nested x = %q, want x@2.0.0", got)
	}
}

func TestHoistRootOwnsItsSlot(t *testing.T) {
	roots := map[string]*Node{
		"x": pkg("x", "1.0.0"),
		"a": withChildren(pkg("a", "1.0.0"), pkg("x", "2.0.0")),
		"b": withLink(pkg("b", "1.0.0"), "x", "2.0.0"),
	}

	files := Hoist(roots)

	want := map[string]string{
		"node_modules/x/index.js":                "x@1.0.0",
		"node_modules/a/index.js":                "a@1.0.0",
		"node_modules/a/node_modules/x/index.js": "x@2.0.0",
		"node_modules/b/index.js":                "b@1.0.0",
		"node_modules/b/node_modules/x/index.js": "x@2.0.0",
	}
	assertFiles(t, files, want)
}

func TestHoistCopiesNonWinningLinks(t *testing.T) {
	x1 := pkg("x", "1.0.0")
	x2 := pkg("x", "2.0.0")
	roots := map[string]*Node{
		"a": withChildren(pkg("a", "1.0.0"), x2),
		"b": withChildren(pkg("b", "1.0.0"), x1),
		"c": withLink(pkg("c", "1.0.0"), "x", "2.0.0"),
		"d": withLink(pkg("d", "1.0.0"), "x", "1.0.0"),
		"e": withLink(pkg("e", "1.0.0"), "x", "2.0.0"),
	}

	files := Hoist(roots)

	if got := files["node_modules/x/index.js"]; got != "x@2.0.0" {
		t.Errorf("top-level x = %q, want x@2.0.0", got)
	}
	for _, path := range []string{
		"node_modules/b/node_modules/x/index.js",
		"node_modules/d/node_modules/x/index.js",
	} {
		if got := files[path]; got != "x@1.0.0" {
			t.Errorf("%s = %q, want x@1.0.0", path, got)
		}
	}
	for _, path := range []string{
		"node_modules/a/node_modules/x/index.js",
		"node_modules/c/node_modules/x/index.js",
		"node_modules/e/node_modules/x/index.js",
	} {
		if _, ok := files[path]; ok {
			t.Errorf("unexpected %s: winner must not be nested", path)
		}
	}
}

func TestHoistCyclicLinkTerminates(t *testing.T) {
	x1 := pkg("x", "1.0.0")
	y := withLink(pkg("y", "1.0.0"), "x", "1.0.0")
	withChildren(x1, y)
	roots := map[string]*Node{
		"r1": withChildren(pkg("r1", "1.0.0"), x1),
		"r2": withChildren(pkg("r2", "1.0.0"), pkg("x", "2.0.0")),
		"r3": withLink(pkg("r3", "1.0.0"), "x", "2.0.0"),
		"r4": withLink(pkg("r4", "1.0.0"), "x", "2.0.0"),
	}

	files := Hoist(roots)

	if got := files["node_modules/r1/node_modules/x/index.js"]; got != "x@1.0.0" {
		t.Errorf("nested x = %q", got)
	}
	if got := files["node_modules/y/index.js"]; got != "y@1.0.0" {
		t.Errorf("hoisted y = %q", got)
	}
	if got := files["node_modules/y/node_modules/x/index.js"]; got != "x@1.0.0" {
		t.Errorf("x under hoisted y = %q, want x@1.0.0", got)
	}
	if _, ok := files["node_modules/y/node_modules/x/node_modules/y/index.js"]; ok {
		t.Error("cycle was copied more than once")
	}
}

func TestHoistKeepsNestedVersionBehindShadowingAncestor(t *testing.T) {
	x1 := withChildren(pkg("x", "1.0.0"), pkg("p", "1.0.0"))
	roots := map[string]*Node{
		"a": withChildren(pkg("a", "1.0.0"), pkg("p", "2.0.0"), x1),
		"b": withLink(pkg("b", "1.0.0"), "p", "1.0.0"),
		"x": pkg("x", "2.0.0"),
	}

	files := Hoist(roots)

	// p@1 wins the top-level slot, but x@1 would resolve a's p@2 first,
	// so x@1 keeps its own copy.
	want := map[string]string{
		"node_modules/a/index.js":                               "a@1.0.0",
		"node_modules/a/node_modules/p/index.js":                "p@2.0.0",
		"node_modules/a/node_modules/x/index.js":                "x@1.0.0",
		"node_modules/a/node_modules/x/node_modules/p/index.js": "p@1.0.0",
		"node_modules/b/index.js":                               "b@1.0.0",
		"node_modules/p/index.js":                               "p@1.0.0",
		"node_modules/x/index.js":                               "x@2.0.0",
	}
	assertFiles(t, files, want)
}

func TestHoistSkipsVersionResolvedByAncestor(t *testing.T) {
	q := withLink(pkg("q", "1.0.0"), "p", "2.0.0")
	roots := map[string]*Node{
		"a": withChildren(pkg("a", "1.0.0"), pkg("p", "2.0.0"), q),
		"b": withChildren(pkg("b", "1.0.0"), pkg("p", "1.0.0")),
		"c": withLink(pkg("c", "1.0.0"), "p", "1.0.0"),
		"e": withLink(pkg("e", "1.0.0"), "p", "1.0.0"),
		"q": pkg("q", "2.0.0"),
	}

	files := Hoist(roots)

	want := map[string]string{
		"node_modules/a/index.js":                "a@1.0.0",
		"node_modules/a/node_modules/p/index.js": "p@2.0.0",
		"node_modules/a/node_modules/q/index.js": "q@1.0.0",
		"node_modules/b/index.js":                "b@1.0.0",
		"node_modules/c/index.js":                "c@1.0.0",
		"node_modules/e/index.js":                "e@1.0.0",
		"node_modules/p/index.js":                "p@1.0.0",
		"node_modules/q/index.js":                "q@2.0.0",
	}
	assertFiles(t, files, want)
}

func TestHoistSharedRootWrittenOnce(t *testing.T) {
	shared := pkg("a", "1.0.0")
	roots := map[string]*Node{
		"a": shared,
		"b": withChildren(pkg("b", "1.0.0"), shared),
	}

	files := Hoist(roots)

	want := map[string]string{
		"node_modules/a/index.js": "a@1.0.0",
		"node_modules/b/index.js": "b@1.0.0",
	}
	assertFiles(t, files, want)
}

func TestHoistEmpty(t *testing.T) {
	if files := Hoist(nil); len(files) != 0 {
		t.Errorf("got %d files from an empty forest", len(files))
	}
}

func TestWalkVisitsOnceInOrder(t *testing.T) {
	shared := pkg("s", "1.0.0")
	roots := map[string]*Node{
		"b": withChildren(pkg("b", "1.0.0"), shared),
		"a": withChildren(pkg("a", "1.0.0"), shared),
	}

	var got []string
	Walk(roots, func(n *Node, depth int) {
		got = append(got, n.ID())
	})

	want := []string{"a@1.0.0", "s@1.0.0", "b@1.0.0"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func assertFiles(t *testing.T, got, want map[string]string) {
	t.Helper()
	for path, content := range want {
		if got[path] != content {
			t.Errorf("%s = %q, want %q", path, got[path], content)
		}
	}
	for path := range got {
		if _, ok := want[path]; !ok {
			t.Errorf("unexpected file %s", path)
		}
	}
}
