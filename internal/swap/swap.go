package swap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ac3mux/internal/fileutil"
	"ac3mux/internal/logging"
	"ac3mux/internal/services"
)

const (
	backupSuffix    = "_old"
	stagedSuffix    = "_converted"
	timestampLayout = "20060102T150405Z"
)

// Phase names the step of a swap that failed.
type Phase string

const (
	PhaseJournal Phase = "journal"
	PhaseBackup  Phase = "backup"
	PhasePromote Phase = "promote"
	PhaseCleanup Phase = "cleanup"
)

// Error is a failed swap. RolledBack reports whether the original was moved
// back into place after a failed promote.
type Error struct {
	Phase      Phase
	Original   string
	RolledBack bool
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("swap %s: %s failed: %v", filepath.Base(e.Original), e.Phase, e.Err)
	if e.Phase == PhasePromote && !e.RolledBack {
		msg += " (original left at backup path)"
	}
	return msg
}

func (e *Error) Unwrap() []error { return []error{services.ErrSwap, e.Err} }

// Result describes a completed swap.
type Result struct {
	Original string
	Backup   string
}

// StagedPath returns the sibling path a converted file is promoted from.
func StagedPath(original string) string {
	return suffixed(original, stagedSuffix)
}

// IsArtifact reports whether name looks like a file produced by a swap:
// a staged conversion, a backup, or a journal marker.
func IsArtifact(name string) bool {
	if IsMarker(name) {
		return true
	}
	base := filepath.Base(name)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if strings.HasSuffix(stem, stagedSuffix) || strings.HasSuffix(stem, backupSuffix) {
		return true
	}
	// Timestamped backups: <stem>_old.<timestamp><ext>
	if i := strings.LastIndex(stem, backupSuffix+"."); i >= 0 {
		_, err := time.Parse(timestampLayout, stem[i+len(backupSuffix)+1:])
		return err == nil
	}
	return false
}

// BackupPath returns the free backup name for original. The plain
// `<stem>_old<ext>` name is preferred; when it is taken a UTC timestamp is
// inserted.
func BackupPath(original string, now time.Time) string {
	plain := suffixed(original, backupSuffix)
	if !fileutil.Exists(plain) {
		return plain
	}
	ext := filepath.Ext(original)
	stem := strings.TrimSuffix(original, ext)
	return stem + backupSuffix + "." + now.UTC().Format(timestampLayout) + ext
}

func suffixed(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}

// Swapper performs journaled swaps.
type Swapper struct {
	logger *slog.Logger
	now    func() time.Time
	rename func(oldpath, newpath string) error
}

// New returns a Swapper logging through logger.
func New(logger *slog.Logger) *Swapper {
	return &Swapper{
		logger: logging.NewComponentLogger(logger, "swap"),
		now:    time.Now,
		rename: os.Rename,
	}
}

// Swap moves original to its backup name and staged into original's place.
// A failed promote rolls the backup back. The swap runs to completion once
// the journal is written, even if ctx is cancelled in between.
func (s *Swapper) Swap(ctx context.Context, original, staged string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, services.Wrap(services.ErrCancelled, "swap", "start", "swap not started", err)
	}
	logger := logging.WithContext(ctx, s.logger)

	if ok, err := fileutil.NonEmpty(staged); err != nil || !ok {
		if err == nil {
			err = fmt.Errorf("staged file %s missing or empty", filepath.Base(staged))
		}
		return Result{}, &Error{Phase: PhaseJournal, Original: original, Err: err}
	}

	journal := Journal{
		Original:  original,
		Backup:    BackupPath(original, s.now()),
		Staged:    staged,
		StartedAt: s.now().UTC(),
	}
	if id, ok := services.RunIDFromContext(ctx); ok {
		journal.RunID = id
	}
	marker := MarkerPath(original)
	if err := writeJournal(marker, journal); err != nil {
		return Result{}, &Error{Phase: PhaseJournal, Original: original, Err: err}
	}

	if err := s.rename(original, journal.Backup); err != nil {
		_ = os.Remove(marker)
		return Result{}, &Error{Phase: PhaseBackup, Original: original, Err: err}
	}

	if err := s.rename(staged, original); err != nil {
		swapErr := &Error{Phase: PhasePromote, Original: original, Err: err}
		if rbErr := s.rename(journal.Backup, original); rbErr != nil {
			// Marker stays so Recover can finish the job.
			logger.Error("swap rollback failed",
				logging.String("backup", journal.Backup),
				logging.Error(rbErr),
				logging.Alert("swap_inconsistent"),
				logging.String(logging.FieldErrorHint, "run ac3mux recover on the directory"),
			)
			return Result{}, swapErr
		}
		swapErr.RolledBack = true
		_ = os.Remove(marker)
		return Result{}, swapErr
	}

	if err := os.Remove(marker); err != nil {
		logger.Warn("swap marker not removed",
			logging.String("marker", marker),
			logging.Error(err),
			logging.String(logging.FieldImpact, "recover will clear it on the next run"),
		)
	}
	logger.Debug("swap complete", logging.String("backup", journal.Backup))
	return Result{Original: original, Backup: journal.Backup}, nil
}
