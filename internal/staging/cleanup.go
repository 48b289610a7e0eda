package staging

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"ac3mux/internal/logging"
)

// DefaultMaxAge is how old a run directory must be before CleanStale removes it.
const DefaultMaxAge = 24 * time.Hour

// Dir describes one run directory under the temp dir.
type Dir struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	ModTime time.Time `json:"modified"`
	Size    int64     `json:"size_bytes"`
}

// Failure is a directory CleanStale could not remove.
type Failure struct {
	Path string
	Err  error
}

// Report is the outcome of CleanStale.
type Report struct {
	Removed []string
	Failed  []Failure
}

// ListDirectories returns the directories in tempDir whose names start with
// prefix, oldest first. A blank or missing tempDir lists nothing.
func ListDirectories(tempDir, prefix string) ([]Dir, error) {
	tempDir = strings.TrimSpace(tempDir)
	if tempDir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(tempDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var dirs []Dir
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(tempDir, entry.Name())
		dirs = append(dirs, Dir{Name: entry.Name(), Path: path, ModTime: info.ModTime(), Size: treeSize(path)})
	}
	slices.SortFunc(dirs, func(a, b Dir) int { return a.ModTime.Compare(b.ModTime) })
	return dirs, nil
}

// TotalSize sums the sizes of dirs.
func TotalSize(dirs []Dir) int64 {
	var total int64
	for _, d := range dirs {
		total += d.Size
	}
	return total
}

// CleanStale removes prefix-matching run directories in tempDir last modified
// more than maxAge ago. maxAge 0 removes all of them. Anything not matching
// prefix is left alone, so tempDir may be shared with other tools.
func CleanStale(ctx context.Context, tempDir, prefix string, maxAge time.Duration, logger *slog.Logger) Report {
	var report Report
	if logger == nil {
		logger = logging.NewNop()
	}
	dirs, err := ListDirectories(tempDir, prefix)
	if err != nil {
		report.Failed = append(report.Failed, Failure{Path: tempDir, Err: err})
		return report
	}

	cutoff := time.Now().Add(-maxAge)
	for _, dir := range dirs {
		if ctx.Err() != nil {
			break
		}
		if maxAge > 0 && dir.ModTime.After(cutoff) {
			continue
		}
		if err := os.RemoveAll(dir.Path); err != nil {
			report.Failed = append(report.Failed, Failure{Path: dir.Path, Err: err})
			logger.Warn("stale staging directory not removed",
				logging.String("path", dir.Path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "staging_cleanup_failed"),
				logging.String(logging.FieldErrorHint, "check convert.temp_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		report.Removed = append(report.Removed, dir.Path)
		logger.Info("stale staging directory removed",
			logging.String("path", dir.Path),
			logging.Duration("age", time.Since(dir.ModTime).Round(time.Second)),
			logging.String(logging.FieldEventType, "staging_cleanup"),
		)
	}
	return report
}

// treeSize is the total size of the regular files below root. Unreadable
// entries are skipped.
func treeSize(root string) int64 {
	var size int64
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil && info.Mode().IsRegular() {
			size += info.Size()
		}
		return nil
	})
	return size
}
