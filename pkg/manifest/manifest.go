// Package manifest models the subset of package.json that the installer
// and the CLI read.
package manifest

import (
	"encoding/json"
	"os"
	"sort"
	"strings"

	"github.com/matzehuels/nodevfs/pkg/errors"
)

// FileName is the manifest file inside every npm package.
const FileName = "package.json"

// Manifest is a parsed package.json. Only Dependencies drive installation;
// the remaining fields are kept for callers that inspect entry points.
type Manifest struct {
	Name             string            `json:"name,omitempty"`
	Version          string            `json:"version,omitempty"`
	Main             string            `json:"main,omitempty"`
	Module           string            `json:"module,omitempty"`
	Exports          json.RawMessage   `json:"exports,omitempty"`
	Dependencies     map[string]string `json:"dependencies,omitempty"`
	DevDependencies  map[string]string `json:"devDependencies,omitempty"`
	PeerDependencies map[string]string `json:"peerDependencies,omitempty"`
}

// Parse decodes data leniently, field by field. Malformed JSON yields an
// empty manifest; a field with an unexpected type is left zero, and so is a
// dependency entry whose specifier is not a string. Dependencies is never
// nil.
func Parse(data []byte) Manifest {
	m := Manifest{Dependencies: map[string]string{}}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return m
	}

	decodeString(fields["name"], &m.Name)
	decodeString(fields["version"], &m.Version)
	decodeString(fields["main"], &m.Main)
	decodeString(fields["module"], &m.Module)
	if raw := fields["exports"]; len(raw) > 0 && string(raw) != "null" {
		m.Exports = raw
	}
	if deps := decodeStringMap(fields["dependencies"]); deps != nil {
		m.Dependencies = deps
	}
	m.DevDependencies = decodeStringMap(fields["devDependencies"])
	m.PeerDependencies = decodeStringMap(fields["peerDependencies"])
	return m
}

func decodeString(raw json.RawMessage, dst *string) {
	if len(raw) == 0 {
		return
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		*dst = s
	}
}

func decodeStringMap(raw json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var entries map[string]json.RawMessage
	if json.Unmarshal(raw, &entries) != nil || entries == nil {
		return nil
	}
	out := make(map[string]string, len(entries))
	for name, value := range entries {
		var spec string
		if string(value) != "null" && json.Unmarshal(value, &spec) == nil {
			out[name] = spec
		}
	}
	return out
}

// FromFiles parses the package.json in an extracted file mapping.
func FromFiles(files map[string]string) Manifest {
	return Parse([]byte(files[FileName]))
}

// ReadFile reads and strictly parses a package.json from disk.
func ReadFile(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, errors.Wrap(errors.ErrCodeFileNotFound, err, "manifest %s not found", path)
		}
		return Manifest{}, errors.Wrap(errors.ErrCodeInvalidManifest, err, "read %s", path)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, errors.Wrap(errors.ErrCodeInvalidManifest, err, "parse %s", path)
	}
	if m.Dependencies == nil {
		m.Dependencies = map[string]string{}
	}
	return m, nil
}

// DependencyNames returns the declared dependency names in sorted order.
func (m Manifest) DependencyNames() []string {
	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseSpec splits "name@specifier" into its parts. Scoped names keep their
// leading "@". A missing specifier is returned as "latest".
func ParseSpec(arg string) (name, specifier string, err error) {
	arg = strings.TrimSpace(arg)
	at := strings.LastIndex(arg, "@")
	if at > 0 {
		name, specifier = arg[:at], arg[at+1:]
	} else {
		name = arg
	}
	if specifier == "" {
		specifier = "latest"
	}
	if err := errors.ValidatePackageName(name); err != nil {
		return "", "", err
	}
	if err := errors.ValidateSpecifier(specifier); err != nil {
		return "", "", err
	}
	return name, specifier, nil
}
