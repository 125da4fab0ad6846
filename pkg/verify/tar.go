// Package verify checks backup artifacts for structural integrity.
package verify

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
)

// TarArchive walks every header in the tar file at path, catching
// truncated or corrupt archives before they are kept as backups.
func TarArchive(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	tr := tar.NewReader(f)
	for {
		_, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("invalid tar archive %s: %w", path, err)
		}
	}
}
