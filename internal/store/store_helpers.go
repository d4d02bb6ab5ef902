package store

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw sql.NullString) time.Time {
	if !raw.Valid || raw.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

func newID() string {
	return uuid.NewString()
}

// stamp assigns missing id and timestamps before an insert.
func stamp(id *string, created, updated *time.Time) {
	if strings.TrimSpace(*id) == "" {
		*id = newID()
	}
	now := nowUTC()
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() || updated.Before(*created) {
		*updated = *created
	}
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func encodeJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}

func decodeStrings(raw sql.NullString) []string {
	var out []string
	if raw.Valid && raw.String != "" {
		_ = json.Unmarshal([]byte(raw.String), &out)
	}
	if out == nil {
		out = []string{}
	}
	return out
}

func decodeInts(raw sql.NullString) []int {
	var out []int
	if raw.Valid && raw.String != "" {
		_ = json.Unmarshal([]byte(raw.String), &out)
	}
	if out == nil {
		out = []int{}
	}
	return out
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nonNilInts(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike escapes LIKE wildcards so pattern matches literally.
func escapeLike(pattern string) string {
	return likeEscaper.Replace(pattern)
}
