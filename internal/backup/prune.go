package backup

import (
	"os"
	"path/filepath"
	"time"

	"github.com/bnema/stevedore/pkg/logger"
)

// pruneExpired removes regular files in dir whose modification time is
// strictly older than the retention window. A zero or negative retention
// keeps everything. Removal problems are logged, never fatal.
func pruneExpired(dir string, retentionDays int, now time.Time) int {
	if retentionDays <= 0 {
		return 0
	}
	cutoff := now.AddDate(0, 0, -retentionDays)

	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("failed to read backup directory for pruning", "dir", dir, "error", err)
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			logger.Warn("failed to remove expired backup", "file", path, "error", err)
			continue
		}
		logger.Info("removed expired backup", "file", path)
		removed++
	}
	return removed
}
