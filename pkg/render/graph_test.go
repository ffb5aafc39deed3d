package render

import (
	"strings"
	"testing"

	"github.com/matzehuels/nodevfs/pkg/install"
)

func forest() map[string]*install.Node {
	x := &install.Node{Name: "x", Version: "1.0.0", Files: map[string]string{"index.js": ""}}
	a := &install.Node{
		Name: "a", Version: "1.0.0",
		Dependencies: map[string]string{"x": "^1"},
		Children:     map[string]*install.Node{"x": x},
	}
	b := &install.Node{
		Name: "b", Version: "2.0.0",
		Dependencies: map[string]string{"x": "^1"},
		Links:        map[string]string{"x": "1.0.0"},
	}
	return map[string]*install.Node{"a": a, "b": b}
}

func TestToDOT(t *testing.T) {
	dot := ToDOT(forest(), Options{})

	for _, want := range []string{
		"digraph G {",
		`"a@1.0.0" [label="a@1.0.0", penwidth=3];`,
		`"x@1.0.0" [label="x@1.0.0"];`,
		`"a@1.0.0" -> "x@1.0.0";`,
		`"b@2.0.0" -> "x@1.0.0" [style=dashed];`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}
	if strings.Count(dot, `"x@1.0.0" [`) != 1 {
		t.Errorf("x declared more than once:\n%s", dot)
	}
}

func TestToDOTHideLinks(t *testing.T) {
	dot := ToDOT(forest(), Options{HideLinks: true})
	if strings.Contains(dot, "dashed") {
		t.Errorf("links rendered despite HideLinks:\n%s", dot)
	}
}

func TestToDOTDetailed(t *testing.T) {
	dot := ToDOT(forest(), Options{Detailed: true})
	if !strings.Contains(dot, `files: 1`) {
		t.Errorf("detailed label missing file count:\n%s", dot)
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="10pt" height="20pt" viewBox="0.00 0.00 100.00 50.00" xmlns="http://www.w3.org/2000/svg"><g/></svg>`)
	out := string(normalizeViewBox(in))
	if !strings.Contains(out, `viewBox="0 0 100.00 50.00" width="100" height="50"`) {
		t.Errorf("got %s", out)
	}
	if got := normalizeViewBox([]byte("<svg>")); string(got) != "<svg>" {
		t.Errorf("input without viewBox changed: %s", got)
	}
}
