package convert

import (
	"errors"
	"strings"
	"time"

	"ac3mux/internal/plan"
	"ac3mux/internal/services"
)

// Result is the outcome of processing one file.
type Result struct {
	Path     string
	Status   services.Status
	Strategy plan.Strategy
	Reason   string
	// Kind classifies the error for skipped and failed files.
	Kind     string
	Duration time.Duration
	// Backup is the `_old` path of the replaced original.
	Backup string
	Err    error
}

// Summary aggregates a batch.
type Summary struct {
	RunID     string
	Results   []Result
	Converted int
	Skipped   int
	Failed    int
	// SwapFailures counts failed results that may have left a file in an
	// intermediate state.
	SwapFailures int
	Duration     time.Duration
}

// Summarize builds a Summary from results.
func Summarize(runID string, results []Result, elapsed time.Duration) Summary {
	s := Summary{RunID: runID, Results: results, Duration: elapsed}
	for _, r := range results {
		switch r.Status {
		case services.StatusConverted:
			s.Converted++
		case services.StatusSkipped:
			s.Skipped++
		default:
			s.Failed++
			if errors.Is(r.Err, services.ErrSwap) {
				s.SwapFailures++
			}
		}
	}
	return s
}

// OK reports whether no file failed.
func (s Summary) OK() bool { return s.Failed == 0 }

func newResult(path string, start time.Time, strategy plan.Strategy, reason string, err error) Result {
	res := Result{
		Path:     path,
		Status:   services.FailureStatus(err),
		Strategy: strategy,
		Reason:   reason,
		Kind:     services.Kind(err),
		Duration: time.Since(start),
		Err:      err,
	}
	if res.Reason == "" && err != nil {
		res.Reason = err.Error()
	}
	return res
}

// Describe renders a short status line for a result.
func (r Result) Describe() string {
	parts := []string{string(r.Status)}
	if r.Strategy != "" {
		parts = append(parts, string(r.Strategy))
	}
	if r.Reason != "" {
		parts = append(parts, r.Reason)
	}
	return strings.Join(parts, " | ")
}
