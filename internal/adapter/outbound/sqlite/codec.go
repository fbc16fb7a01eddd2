package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"dgsync/internal/domain/entity"
)

// timeLayout is fixed width so stored timestamps sort and compare as text.
const timeLayout = "2006-01-02T15:04:05.000000Z"

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func decodeTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case string:
		return time.Parse(timeLayout, t)
	case []byte:
		return time.Parse(timeLayout, string(t))
	case time.Time:
		return t.UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unexpected timestamp value %T", v)
	}
}

func encodeTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func decodeTimePtr(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := decodeTime(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// encodeValue converts a validated record value to its stored form.
func encodeValue(col entity.Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch col.Type {
	case entity.ColumnBoolean:
		if b, _ := v.(bool); b {
			return int64(1), nil
		}
		return int64(0), nil
	case entity.ColumnTimestamp:
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("column %s: expected time, got %T", col.Name, v)
		}
		return encodeTime(t), nil
	case entity.ColumnJSON, entity.ColumnVector:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		return string(data), nil
	default:
		return v, nil
	}
}

// decodeValue converts a scanned value back to the validated record form.
func decodeValue(col entity.Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch col.Type {
	case entity.ColumnInteger:
		n, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("column %s: expected integer, got %T", col.Name, v)
		}
		return n, nil
	case entity.ColumnBoolean:
		n, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("column %s: expected integer, got %T", col.Name, v)
		}
		return n != 0, nil
	case entity.ColumnTimestamp:
		return decodeTime(v)
	case entity.ColumnJSON:
		var out any
		if err := json.Unmarshal([]byte(fmt.Sprint(v)), &out); err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		return out, nil
	case entity.ColumnVector:
		var out []float64
		if err := json.Unmarshal([]byte(fmt.Sprint(v)), &out); err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		return out, nil
	default:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("column %s: expected text, got %T", col.Name, v)
		}
		return s, nil
	}
}

// columnByName resolves a stored column, including a generated id.
func columnByName(kind *entity.Kind, name string) entity.Column {
	if col, ok := kind.Column(name); ok {
		return col
	}
	return entity.Column{Name: name, Type: entity.ColumnInteger}
}

// scanRow decodes one row selected with kind.ColumnNames().
func scanRow(kind *entity.Kind, scanner interface{ Scan(...any) error }) (*entity.Row, error) {
	names := kind.ColumnNames()
	raw := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := scanner.Scan(ptrs...); err != nil {
		return nil, err
	}
	values := make(entity.Record, len(names))
	for i, name := range names {
		v, err := decodeValue(columnByName(kind, name), raw[i])
		if err != nil {
			return nil, err
		}
		if v != nil {
			values[name] = v
		}
	}
	return kind.RowFrom(values)
}
