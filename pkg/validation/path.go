// Package validation guards filesystem paths assembled from container
// labels. Database names and target names end up in artifact paths, so a
// value like "../../etc" must never escape the backup directory.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SafeJoin joins name onto dir and rejects results that land outside dir.
func SafeJoin(dir, name string) (string, error) {
	path := filepath.Join(dir, name)
	if err := WithinRoot(dir, path); err != nil {
		return "", fmt.Errorf("unsafe artifact name %q: %w", name, err)
	}
	return path, nil
}

// WithinRoot reports an error when path does not stay under root after
// cleaning. The root itself is allowed.
func WithinRoot(root, path string) error {
	cleanRoot := filepath.Clean(root)
	cleanPath := filepath.Clean(path)

	if cleanPath != cleanRoot && !strings.HasPrefix(cleanPath, cleanRoot+string(filepath.Separator)) {
		return fmt.Errorf("path %q escapes %q", cleanPath, cleanRoot)
	}
	return nil
}
