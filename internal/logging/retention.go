package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// PruneLogFiles deletes rotated log files in dir matching pattern whose
// modification time is before cutoff. The live log file is never touched.
// It returns the number of files removed.
func PruneLogFiles(logger *slog.Logger, dir, pattern string, cutoff time.Time) int {
	if dir == "" || pattern == "" {
		return 0
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0
	}
	live := filepath.Join(dir, LogFileName)
	removed := 0
	for _, path := range matches {
		if path == live {
			continue
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "old log file could not be removed", "log_file_prune_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check ownership of the log directory"),
				String(FieldImpact, "file stays on disk until the next retention run"),
			)
			continue
		}
		removed++
	}
	if removed > 0 && logger != nil {
		logger.Info("log files pruned",
			String(FieldEventType, "log_files_pruned"),
			Int("removed", removed),
			String("dir", dir),
		)
	}
	return removed
}
