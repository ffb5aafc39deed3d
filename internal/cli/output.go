package cli

import (
	"encoding/json"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/matzehuels/nodevfs/pkg/errors"
)

// writeTree materializes files under dir and returns how many were written.
// Every path is validated before anything touches the disk.
func writeTree(dir string, files map[string]string) (int, error) {
	paths := slices.Sorted(maps.Keys(files))
	for _, p := range paths {
		if err := errors.ValidatePath(p); err != nil {
			return 0, errors.Wrap(errors.ErrCodeInvalidPath, err, "refusing to write %q", p)
		}
	}

	for _, p := range paths {
		target := filepath.Join(dir, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return 0, err
		}
		if err := os.WriteFile(target, []byte(files[p]), 0o644); err != nil {
			return 0, err
		}
	}
	return len(paths), nil
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
