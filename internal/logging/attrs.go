package logging

import (
	"context"
	"log/slog"
	"time"
)

type Attr = slog.Attr

// FieldLanguagePair is the key for "src→tgt" language pairs.
const FieldLanguagePair = "language_pair"

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Float64(key string, value float64) Attr { return slog.Float64(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

// Project tags a record with the owning project.
func Project(id string) Attr { return slog.String(FieldProjectID, id) }

// Pair tags a record with a source and target language.
func Pair(source, target string) Attr {
	return slog.String(FieldLanguagePair, source+"→"+target)
}

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

func attrsToArgs(attrs []Attr) []any {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return args
}

func NewNop() *slog.Logger {
	return slog.New(nopHandler{})
}

// NewComponentLogger returns logger tagged with component. A nil logger
// yields a no-op base.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

func hasKey(attrs []Attr, key string) bool {
	for _, a := range attrs {
		if a.Key == key {
			return true
		}
	}
	return false
}

// withErrorKind adds error_kind when attrs carry an error but no kind yet.
func withErrorKind(attrs []Attr) []Attr {
	if hasKey(attrs, FieldErrorKind) {
		return attrs
	}
	for _, a := range attrs {
		if a.Key != "error" || a.Value.Kind() != slog.KindAny {
			continue
		}
		if err, ok := a.Value.Any().(error); ok {
			return append(attrs, ErrorKind(err))
		}
	}
	return attrs
}

// WarnWithContext logs a warning that always carries event_type, error_hint
// and impact. Missing fields get defaults so every warning names the cause
// and the next step.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	if !hasKey(attrs, FieldEventType) {
		attrs = append(attrs, String(FieldEventType, eventType))
	}
	if !hasKey(attrs, FieldErrorHint) {
		attrs = append(attrs, String(FieldErrorHint, "check tmengine.log for details"))
	}
	if !hasKey(attrs, FieldImpact) {
		attrs = append(attrs, String(FieldImpact, "operation completed with warnings"))
	}
	logger.Warn(msg, attrsToArgs(withErrorKind(attrs))...)
}

// ErrorWithContext logs an error with event_type, error_hint and, when an
// error attribute is present, its tmerr classification.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	if !hasKey(attrs, FieldEventType) {
		attrs = append(attrs, String(FieldEventType, eventType))
	}
	if !hasKey(attrs, FieldErrorHint) {
		attrs = append(attrs, String(FieldErrorHint, "check tmengine.log for details"))
	}
	logger.Error(msg, attrsToArgs(withErrorKind(attrs))...)
}

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (nopHandler) Handle(context.Context, slog.Record) error { return nil }

func (nopHandler) WithAttrs([]slog.Attr) slog.Handler { return nopHandler{} }

func (nopHandler) WithGroup(string) slog.Handler { return nopHandler{} }
