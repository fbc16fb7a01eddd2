package repository

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"dgsync/internal/domain/entity"
)

// selectList renders the stored columns of kind for SELECT and RETURNING.
// JSON and vector columns are read back as text and decoded here.
func selectList(kind *entity.Kind, alias string) string {
	prefix := ""
	if alias != "" {
		prefix = alias + "."
	}
	names := kind.ColumnNames()
	exprs := make([]string, len(names))
	for i, name := range names {
		col := columnByName(kind, name)
		switch col.Type {
		case entity.ColumnJSON, entity.ColumnVector:
			exprs[i] = fmt.Sprintf("%s%s::text", prefix, name)
		default:
			exprs[i] = prefix + name
		}
	}
	return strings.Join(exprs, ", ")
}

// placeholder renders parameter n with the cast its column needs.
func placeholder(col entity.Column, n int) string {
	switch col.Type {
	case entity.ColumnJSON:
		return fmt.Sprintf("$%d::jsonb", n)
	case entity.ColumnVector:
		return fmt.Sprintf("$%d::vector", n)
	default:
		return fmt.Sprintf("$%d", n)
	}
}

// encodeValue converts a validated record value to a query argument.
func encodeValue(col entity.Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch col.Type {
	case entity.ColumnJSON:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		return string(data), nil
	case entity.ColumnVector:
		vec, ok := v.([]float64)
		if !ok {
			return nil, fmt.Errorf("column %s: expected vector, got %T", col.Name, v)
		}
		return pgVector(vec).String(), nil
	default:
		return v, nil
	}
}

// decodeValue converts a scanned value back to the validated record form.
func decodeValue(col entity.Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch col.Type {
	case entity.ColumnInteger:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int32:
			return int64(n), nil
		}
		return nil, fmt.Errorf("column %s: expected integer, got %T", col.Name, v)
	case entity.ColumnTimestamp:
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("column %s: expected timestamp, got %T", col.Name, v)
		}
		return t.UTC(), nil
	case entity.ColumnJSON:
		var out any
		if err := json.Unmarshal([]byte(fmt.Sprint(v)), &out); err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		return out, nil
	case entity.ColumnVector:
		vec, err := parsePGVector(fmt.Sprint(v))
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		return []float64(vec), nil
	default:
		return v, nil
	}
}

func columnByName(kind *entity.Kind, name string) entity.Column {
	if col, ok := kind.Column(name); ok {
		return col
	}
	return entity.Column{Name: name, Type: entity.ColumnInteger}
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRow decodes a row selected with selectList, followed by extra
// destinations for any trailing expressions.
func scanRow(kind *entity.Kind, row scanner, extra ...any) (*entity.Row, error) {
	names := kind.ColumnNames()
	raw := make([]any, len(names))
	dest := make([]any, 0, len(names)+len(extra))
	for i := range raw {
		dest = append(dest, &raw[i])
	}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
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
