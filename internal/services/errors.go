package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrProbe               = errors.New("probe error")
	ErrSelectionImpossible = errors.New("selection impossible")
	ErrPlan                = errors.New("plan error")
	ErrTranscode           = errors.New("transcode error")
	ErrSwap                = errors.New("swap error")
	ErrExternalTool        = errors.New("external tool error")
	ErrValidation          = errors.New("validation error")
	ErrConfiguration       = errors.New("configuration error")
	ErrNotFound            = errors.New("not found")
	ErrCancelled           = errors.New("cancelled")
)

// Status is the per-file outcome recorded for a batch run.
type Status string

const (
	StatusConverted Status = "converted"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later status classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureStatus maps a processing error to the status recorded for the file.
// Selection failures and cancellations are skips; everything else fails.
func FailureStatus(err error) Status {
	switch {
	case err == nil:
		return StatusConverted
	case errors.Is(err, ErrSelectionImpossible), errors.Is(err, ErrCancelled):
		return StatusSkipped
	default:
		return StatusFailed
	}
}

// Kind returns a short classification label for err, used in result records
// and history rows.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSwap):
		return "swap"
	case errors.Is(err, ErrProbe):
		return "probe"
	case errors.Is(err, ErrSelectionImpossible):
		return "selection"
	case errors.Is(err, ErrPlan):
		return "plan"
	case errors.Is(err, ErrTranscode):
		return "transcode"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "external_tool"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
