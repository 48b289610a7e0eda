package swap

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
)

// MarkerSuffix ends the name of every swap journal file.
const MarkerSuffix = ".ac3mux-swap"

// Journal is the on-disk record of a swap in progress.
type Journal struct {
	Original  string    `json:"original"`
	Backup    string    `json:"backup"`
	Staged    string    `json:"staged"`
	RunID     string    `json:"run_id,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// MarkerPath returns the hidden journal path for original.
func MarkerPath(original string) string {
	return filepath.Join(filepath.Dir(original), "."+filepath.Base(original)+MarkerSuffix)
}

// IsMarker reports whether name is a swap journal file name.
func IsMarker(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(base, ".") && strings.HasSuffix(base, MarkerSuffix)
}

func writeJournal(path string, j Journal) error {
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return fmt.Errorf("encode swap journal: %w", err)
	}
	if err := renameio.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write swap journal: %w", err)
	}
	return nil
}

func readJournal(path string) (Journal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Journal{}, err
	}
	var j Journal
	if err := json.Unmarshal(data, &j); err != nil {
		return Journal{}, fmt.Errorf("decode swap journal %s: %w", filepath.Base(path), err)
	}
	if j.Original == "" || j.Backup == "" || j.Staged == "" {
		return Journal{}, fmt.Errorf("swap journal %s is incomplete", filepath.Base(path))
	}
	return j, nil
}
