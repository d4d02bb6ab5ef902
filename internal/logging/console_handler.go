package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

// prettyHandler writes one line per record:
//
//	2026-01-02T15:04:05Z INFO match: [book en→es] search complete results=3
type prettyHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     *slog.LevelVar
	attrs     []slog.Attr
	groups    []string
	addSource bool
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &prettyHandler{mu: &sync.Mutex{}, writer: w, level: lvl, addSource: addSource}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	if !h.Enabled(context.Background(), record.Level) {
		return nil
	}
	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	fields := make([]kv, 0, record.NumAttrs()+len(h.attrs))
	for _, attr := range h.attrs {
		fields = flatten(fields, h.groups, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		fields = flatten(fields, h.groups, attr)
		return true
	})

	var subj subject
	fields = slices.DeleteFunc(lastWins(fields), func(f kv) bool {
		return f.key == "" || subj.take(f.key, attrString(f.value))
	})

	var buf bytes.Buffer
	buf.Grow(128 + len(fields)*24)
	fmt.Fprintf(&buf, "%s %s ", ts.UTC().Format(time.RFC3339), levelLabel(record.Level))
	if subj.component != "" {
		buf.WriteString(subj.component + ": ")
	}
	if s := subj.String(); s != "" {
		buf.WriteString("[" + s + "] ")
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	buf.WriteString(msg)
	if src := record.Source(); h.addSource && src != nil {
		fmt.Fprintf(&buf, " [%s:%d]", filepath.Base(src.File), src.Line)
	}
	for _, f := range fields {
		buf.WriteString(" " + f.key + "=" + formatValue(f.value))
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(slices.Clip(h.attrs), attrs...)
	return &next
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.groups = append(slices.Clip(h.groups), name)
	return &next
}

type kv struct {
	key   string
	value slog.Value
}

// lastWins keeps the final value for repeated keys at the key's first
// position, so WithAttrs defaults can be overridden per record.
func lastWins(fields []kv) []kv {
	index := make(map[string]int, len(fields))
	out := make([]kv, 0, len(fields))
	for _, f := range fields {
		if pos, ok := index[f.key]; ok {
			out[pos] = f
			continue
		}
		index[f.key] = len(out)
		out = append(out, f)
	}
	return out
}

// flatten appends attr to dst, expanding groups into dotted keys.
func flatten(dst []kv, prefix []string, attr slog.Attr) []kv {
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		if attr.Key != "" {
			prefix = append(slices.Clip(prefix), attr.Key)
		}
		for _, child := range attr.Value.Group() {
			dst = flatten(dst, prefix, child)
		}
		return dst
	}
	key := attr.Key
	if len(prefix) > 0 && key != "" {
		key = strings.Join(prefix, ".") + "." + key
	}
	return append(dst, kv{key: key, value: attr.Value})
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
