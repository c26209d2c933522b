package logging

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

type Attr = slog.Attr

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}

// maxQueryValue bounds how much of a single query value reaches the log.
// Share links carry the whole compressed timeline in ?data=.
const maxQueryValue = 48

// URL logs a gateway or share link with oversized query values elided.
func URL(key, raw string) Attr {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.RawQuery == "" {
		return slog.String(key, raw)
	}
	query := parsed.Query()
	changed := false
	for name, values := range query {
		for i, v := range values {
			if len(v) > maxQueryValue {
				values[i] = v[:maxQueryValue] + "..."
				changed = true
			}
		}
		query[name] = values
	}
	if !changed {
		return slog.String(key, raw)
	}
	parsed.RawQuery = query.Encode()
	return slog.String(key, parsed.String())
}

// Transition records an entry moving from one status to another.
func Transition(from, to string) Attr {
	return slog.Group(FieldStatus, slog.String("from", from), slog.String("to", to))
}

func Args(attrs ...Attr) []any {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return args
}

func NewNop() *slog.Logger {
	return slog.New(discardHandler{})
}

// NewComponentLogger creates a logger with a standardized component attribute.
// If logger is nil, a no-op logger is used as the base.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// WarnWithContext logs a warning tagged with eventType. A missing error_hint
// gets a generic one.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	logEvent(logger, slog.LevelWarn, msg, eventType, attrs)
}

// ErrorWithContext is WarnWithContext at error level.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	logEvent(logger, slog.LevelError, msg, eventType, attrs)
}

func logEvent(logger *slog.Logger, level slog.Level, msg, eventType string, attrs []Attr) {
	if logger == nil {
		return
	}
	var hasEvent, hasHint bool
	for _, a := range attrs {
		switch a.Key {
		case FieldEventType:
			hasEvent = true
		case FieldErrorHint:
			hasHint = strings.TrimSpace(a.Value.String()) != ""
		}
	}
	if !hasEvent {
		attrs = append(attrs, String(FieldEventType, eventType))
	}
	if !hasHint {
		attrs = append(attrs, String(FieldErrorHint, "check logs for details"))
	}
	logger.LogAttrs(context.Background(), level, msg, attrs...)
}
