package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/nodevfs/pkg/errors"
)

func TestParse(t *testing.T) {
	m := Parse([]byte(`{
		"name": "demo",
		"version": "1.2.3",
		"main": "index.js",
		"exports": {".": "./index.js"},
		"dependencies": {"react": "^18.2.0", "scheduler": "0.23.0"},
		"devDependencies": {"typescript": "^5"}
	}`))

	if m.Name != "demo" || m.Version != "1.2.3" || m.Main != "index.js" {
		t.Errorf("unexpected identity fields: %+v", m)
	}
	if got := m.Dependencies["react"]; got != "^18.2.0" {
		t.Errorf("react = %q, want ^18.2.0", got)
	}
	if len(m.Exports) == 0 {
		t.Error("expected exports to be preserved")
	}
	if names := m.DependencyNames(); len(names) != 2 || names[0] != "react" || names[1] != "scheduler" {
		t.Errorf("DependencyNames = %v", names)
	}
}

func TestParseLenient(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"malformed", "{not json"},
		{"wrong types", `{"dependencies": ["react"]}`},
		{"no dependencies", `{"name": "x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Parse([]byte(tt.data))
			if m.Dependencies == nil {
				t.Fatal("Dependencies must never be nil")
			}
			if len(m.Dependencies) != 0 {
				t.Errorf("expected no dependencies, got %v", m.Dependencies)
			}
		})
	}
}

func TestParseKeepsDependenciesBesideBadFields(t *testing.T) {
	tests := []struct {
		name string
		data string
		want map[string]string
	}{
		{"numeric main", `{"main": 5, "dependencies": {"x": "^1"}}`, map[string]string{"x": "^1"}},
		{"array version", `{"version": ["1"], "dependencies": {"x": "^1", "y": "2.0.0"}}`, map[string]string{"x": "^1", "y": "2.0.0"}},
		{"bad peer map", `{"peerDependencies": "react", "dependencies": {"x": "^1"}}`, map[string]string{"x": "^1"}},
		{"non-string entry", `{"dependencies": {"x": "^1", "y": 5, "z": null}}`, map[string]string{"x": "^1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Parse([]byte(tt.data))
			if len(m.Dependencies) != len(tt.want) {
				t.Fatalf("Dependencies = %v, want %v", m.Dependencies, tt.want)
			}
			for name, spec := range tt.want {
				if m.Dependencies[name] != spec {
					t.Errorf("%s = %q, want %q", name, m.Dependencies[name], spec)
				}
			}
		})
	}
}

func TestParseSkipsOnlyTheBadField(t *testing.T) {
	m := Parse([]byte(`{"name": "demo", "main": {"x": 1}, "module": "esm.js"}`))
	if m.Name != "demo" || m.Module != "esm.js" {
		t.Errorf("identity = %+v", m)
	}
	if m.Main != "" {
		t.Errorf("main = %q, want empty", m.Main)
	}
}

func TestFromFiles(t *testing.T) {
	m := FromFiles(map[string]string{"package.json": `{"dependencies":{"a":"1.0.0"}}`, "index.js": ""})
	if m.Dependencies["a"] != "1.0.0" {
		t.Errorf("got %v", m.Dependencies)
	}
	if m := FromFiles(map[string]string{"index.js": ""}); len(m.Dependencies) != 0 {
		t.Errorf("expected empty manifest, got %v", m.Dependencies)
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "package.json")
	if err := os.WriteFile(good, []byte(`{"dependencies":{"lodash":"^4"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := ReadFile(good)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if m.Dependencies["lodash"] != "^4" {
		t.Errorf("got %v", m.Dependencies)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFile(bad); !errors.Is(err, errors.ErrCodeInvalidManifest) {
		t.Errorf("malformed: expected INVALID_MANIFEST, got %v", err)
	}

	if _, err := ReadFile(filepath.Join(dir, "missing.json")); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("missing: expected FILE_NOT_FOUND, got %v", err)
	}
}

func TestParseSpec(t *testing.T) {
	tests := []struct {
		arg     string
		name    string
		spec    string
		wantErr bool
	}{
		{arg: "react@^18", name: "react", spec: "^18"},
		{arg: "react", name: "react", spec: "latest"},
		{arg: "react@", name: "react", spec: "latest"},
		{arg: "@babel/core@7.24.0", name: "@babel/core", spec: "7.24.0"},
		{arg: "@babel/core", name: "@babel/core", spec: "latest"},
		{arg: "React@1", wantErr: true},
		{arg: "", wantErr: true},
		{arg: "../evil@1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			name, spec, err := ParseSpec(tt.arg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s@%s", name, spec)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSpec: %v", err)
			}
			if name != tt.name || spec != tt.spec {
				t.Errorf("got %s / %s, want %s / %s", name, spec, tt.name, tt.spec)
			}
		})
	}
}
