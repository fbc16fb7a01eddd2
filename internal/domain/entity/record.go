// Package entity defines the resolvable entity kinds, their candidate records
// and the rows returned by the stores.
package entity

import (
	"fmt"
	"strings"
	"time"
)

// Record maps column names to values. Validated records hold typed values:
// string, int64, bool, time.Time, []float64 or arbitrary JSON values.
type Record map[string]any

// Row is a stored entity row.
type Row struct {
	Kind     string
	IDColumn string
	ID       int64
	Values   Record
}

// Fields returns the row values with the id column included, suitable for
// serialization.
func (r *Row) Fields() map[string]any {
	out := make(map[string]any, len(r.Values)+1)
	for k, v := range r.Values {
		out[k] = v
	}
	out[r.IDColumn] = r.ID
	return out
}

// KeyValues extracts the uniqueness key values of rec in key order.
func KeyValues(rec Record, key []string) ([]any, error) {
	values := make([]any, len(key))
	for i, col := range key {
		v, ok := rec[col]
		if !ok || v == nil {
			return nil, fmt.Errorf("uniqueness key column %s must be set", col)
		}
		values[i] = v
	}
	return values, nil
}

// KeyString renders key values into a comparable string. Values of stored rows
// and of validated candidates render identically.
func KeyString(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		switch t := v.(type) {
		case time.Time:
			parts[i] = t.UTC().Format(time.RFC3339Nano)
		case int:
			parts[i] = fmt.Sprintf("%d", t)
		case int32:
			parts[i] = fmt.Sprintf("%d", t)
		default:
			parts[i] = fmt.Sprintf("%v", t)
		}
	}
	return strings.Join(parts, "\x1f")
}

// KeyMap pairs key columns with their values, for error reporting.
func KeyMap(key []string, values []any) map[string]any {
	m := make(map[string]any, len(key))
	for i, col := range key {
		if i < len(values) {
			m[col] = values[i]
		}
	}
	return m
}

// Match is one similar-content result.
type Match struct {
	ContentID     int64   `json:"content_id"`
	SourceLocalID string  `json:"source_local_id,omitempty"`
	Text          string  `json:"text"`
	Similarity    float64 `json:"similarity"`
}
