package entity

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"dgsync/internal/domain/errors/domain"
)

// Normalize validates a candidate against the kind schema and returns a
// record holding typed values with defaults applied. It never touches a store.
func (k *Kind) Normalize(candidate Record) (Record, error) {
	verr := &domain.ValidationError{}
	if len(candidate) == 0 {
		verr.Add("", "candidate must be a non-empty object")
		return nil, verr
	}

	unknown := make([]string, 0)
	for name := range candidate {
		if _, ok := k.Column(name); ok {
			continue
		}
		if k.GeneratedID && name == k.IDColumn {
			verr.Add(name, "is generated by the store and cannot be supplied")
			continue
		}
		unknown = append(unknown, name)
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		verr.Add(name, "is not a column of "+k.Name)
	}

	out := make(Record, len(k.Columns))
	for _, col := range k.Columns {
		raw, present := candidate[col.Name]
		if !present || raw == nil {
			switch {
			case col.Default != nil:
				v, err := coerce(col, col.Default)
				if err != nil {
					verr.Add(col.Name, "invalid default: "+err.Error())
					continue
				}
				out[col.Name] = v
			case col.Required:
				verr.Add(col.Name, "is required")
			}
			continue
		}
		v, err := coerce(col, raw)
		if err != nil {
			verr.Add(col.Name, err.Error())
			continue
		}
		out[col.Name] = v
	}

	if verr.HasErrors() {
		return nil, verr
	}
	return out, nil
}

func coerce(col Column, raw any) (any, error) {
	switch col.Type {
	case ColumnText:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("must be a string")
		}
		if col.MaxLength > 0 && utf8.RuneCountInString(s) > col.MaxLength {
			return nil, fmt.Errorf("must be at most %d characters", col.MaxLength)
		}
		return s, nil
	case ColumnEnum:
		s, ok := raw.(string)
		if !ok || !slices.Contains(col.Values, s) {
			return nil, fmt.Errorf("must be one of %s", strings.Join(col.Values, ", "))
		}
		return s, nil
	case ColumnInteger:
		return toInt64(raw)
	case ColumnBoolean:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("must be a boolean")
		}
		return b, nil
	case ColumnTimestamp:
		return toTime(raw)
	case ColumnJSON:
		if _, err := json.Marshal(raw); err != nil {
			return nil, fmt.Errorf("must be JSON-encodable: %w", err)
		}
		return raw, nil
	case ColumnVector:
		return toVector(raw, col.Dimensions)
	default:
		return nil, fmt.Errorf("unsupported column type %s", col.Type)
	}
}

func toInt64(raw any) (int64, error) {
	switch n := raw.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.Abs(n) > 1<<53 {
			return 0, fmt.Errorf("must be an integer")
		}
		return int64(n), nil
	case json.Number:
		v, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("must be an integer")
		}
		return v, nil
	default:
		return 0, fmt.Errorf("must be an integer")
	}
}

func toFloat64(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		v, err := n.Float64()
		return v, err == nil
	default:
		return 0, false
	}
}

// Timestamps are kept at microsecond precision, the precision both stores keep,
// so uniqueness keys compare equal after a round trip.
func toTime(raw any) (time.Time, error) {
	switch t := raw.(type) {
	case time.Time:
		return t.UTC().Truncate(time.Microsecond), nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, fmt.Errorf("must be an RFC 3339 timestamp")
		}
		return parsed.UTC().Truncate(time.Microsecond), nil
	default:
		return time.Time{}, fmt.Errorf("must be an RFC 3339 timestamp")
	}
}

func toVector(raw any, dims int) ([]float64, error) {
	var out []float64
	switch v := raw.(type) {
	case []float64:
		out = slices.Clone(v)
	case []float32:
		out = make([]float64, len(v))
		for i, f := range v {
			out[i] = float64(f)
		}
	case []any:
		out = make([]float64, len(v))
		for i, item := range v {
			f, ok := toFloat64(item)
			if !ok {
				return nil, fmt.Errorf("must be an array of numbers")
			}
			out[i] = f
		}
	default:
		return nil, fmt.Errorf("must be an array of numbers")
	}
	if len(out) != dims {
		return nil, fmt.Errorf("must have %d dimensions, got %d", dims, len(out))
	}
	for _, f := range out {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("must contain finite numbers")
		}
	}
	return out, nil
}
