package convert

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ac3mux/internal/swap"
)

// StagingPrefix starts the name of every per-run temp directory.
const StagingPrefix = "ac3mux-"

// RunStagingDir returns the per-run directory under tempDir.
func RunStagingDir(tempDir, runID string) string {
	return filepath.Join(tempDir, StagingPrefix+runID)
}

// outputPath is where ffmpeg writes for path. Without a temp dir this is the
// sibling staged path. Inside the temp dir each source gets its own
// subdirectory keyed by its full path so files sharing a name never collide.
func outputPath(runDir, path string) (string, error) {
	staged := swap.StagedPath(path)
	if runDir == "" {
		return staged, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	sum := sha256.Sum256([]byte(abs))
	dir := filepath.Join(runDir, hex.EncodeToString(sum[:6]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	return filepath.Join(dir, filepath.Base(staged)), nil
}

// removeStagingDir removes the per-file subdirectory around output when it
// lives under runDir.
func removeStagingDir(runDir, output string) {
	if runDir == "" {
		return
	}
	dir := filepath.Dir(output)
	if strings.HasPrefix(dir, runDir+string(filepath.Separator)) {
		_ = os.RemoveAll(dir)
	}
}
