package swap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"ac3mux/internal/fileutil"
	"ac3mux/internal/logging"
	"ac3mux/internal/services"
)

// Resolution is the action Recover took for one journal.
type Resolution string

const (
	// ResolutionRolledBack means the swap never started; the staged file was removed.
	ResolutionRolledBack Resolution = "rolled_back"
	// ResolutionCompleted means the staged file was promoted into place.
	ResolutionCompleted Resolution = "completed"
	// ResolutionCleared means the swap had finished; only the marker was left.
	ResolutionCleared Resolution = "cleared"
	// ResolutionNeedsAttention means the state is ambiguous and was left alone.
	ResolutionNeedsAttention Resolution = "needs_attention"
)

// Recovery reports what happened to one journal.
type Recovery struct {
	Marker     string
	Journal    Journal
	Resolution Resolution
	Detail     string
}

// Recover scans root for swap journals left by an interrupted run and
// resolves each one. Ambiguous states are reported and keep their marker.
func (s *Swapper) Recover(ctx context.Context, root string) ([]Recovery, error) {
	var markers []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.IsDir() && IsMarker(d.Name()) {
			markers = append(markers, path)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrCancelled, "recover", "scan", "", err)
		}
		return nil, services.Wrap(services.ErrSwap, "recover", "scan", root, err)
	}
	slices.Sort(markers)

	logger := logging.WithContext(ctx, s.logger)
	recoveries := make([]Recovery, 0, len(markers))
	for _, marker := range markers {
		rec := s.resolve(marker)
		attrs := []logging.Attr{
			logging.String("marker", marker),
			logging.String("resolution", string(rec.Resolution)),
		}
		if rec.Detail != "" {
			attrs = append(attrs, logging.String("detail", rec.Detail))
		}
		if rec.Resolution == ResolutionNeedsAttention {
			attrs = append(attrs, logging.Alert("swap_needs_attention"))
			logger.Warn("interrupted swap needs attention", logging.Args(attrs...)...)
		} else {
			logger.Info("recovered interrupted swap", logging.Args(attrs...)...)
		}
		recoveries = append(recoveries, rec)
	}
	return recoveries, nil
}

func (s *Swapper) resolve(marker string) Recovery {
	rec := Recovery{Marker: marker, Resolution: ResolutionNeedsAttention}
	journal, err := readJournal(marker)
	if err != nil {
		rec.Detail = err.Error()
		return rec
	}
	rec.Journal = journal

	original := fileutil.Exists(journal.Original)
	backup := fileutil.Exists(journal.Backup)
	staged := fileutil.Exists(journal.Staged)

	switch {
	case original && !backup:
		if err := fileutil.RemoveIfExists(journal.Staged); err != nil {
			rec.Detail = fmt.Sprintf("remove staged file: %v", err)
			return rec
		}
		rec.Resolution = ResolutionRolledBack
	case !original && backup && staged:
		if err := s.rename(journal.Staged, journal.Original); err != nil {
			rec.Detail = fmt.Sprintf("promote staged file: %v", err)
			return rec
		}
		rec.Resolution = ResolutionCompleted
	case original && backup && !staged:
		rec.Resolution = ResolutionCleared
	default:
		rec.Detail = fmt.Sprintf("original present=%t backup present=%t staged present=%t", original, backup, staged)
		return rec
	}

	if err := os.Remove(marker); err != nil && !errors.Is(err, os.ErrNotExist) {
		rec.Detail = fmt.Sprintf("remove marker: %v", err)
	}
	return rec
}
