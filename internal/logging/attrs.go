package logging

import (
	"errors"
	"log/slog"
	"time"

	"ac3mux/internal/services"
)

// Attr aliases slog.Attr so call sites only import this package.
type Attr = slog.Attr

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Float64(key string, value float64) Attr { return slog.Float64(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

// Alert marks a line that needs a human, e.g. a swap that left a file half done.
func Alert(value string) Attr { return slog.String(FieldAlert, value) }

// Error records err together with its classification so JSON logs can be
// filtered by failure kind.
func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	kind := services.Kind(err)
	if kind == "external_tool" && !errors.Is(err, services.ErrExternalTool) {
		return slog.Any("error", err)
	}
	return slog.Group("", slog.Any("error", err), slog.String(FieldErrorKind, kind))
}

// Args converts attrs for the variadic ...any slog methods.
func Args(attrs ...Attr) []any {
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}
	return args
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// NewComponentLogger tags every line with the component name. A nil logger
// yields a no-op logger.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// DecisionAttrs builds the attributes of a decision line (audio pick, strategy).
func DecisionAttrs(decisionType, result, reason string) []Attr {
	return []Attr{
		String(FieldDecisionType, decisionType),
		String("decision_result", result),
		String("decision_reason", reason),
	}
}
