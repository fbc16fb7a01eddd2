package entity

import (
	"fmt"
	"slices"
	"strings"
)

// ColumnType is the logical type of an entity column.
type ColumnType string

// Column types understood by validation and by the stores.
const (
	ColumnText      ColumnType = "text"
	ColumnInteger   ColumnType = "integer"
	ColumnBoolean   ColumnType = "boolean"
	ColumnTimestamp ColumnType = "timestamp"
	ColumnJSON      ColumnType = "json"
	ColumnEnum      ColumnType = "enum"
	ColumnVector    ColumnType = "vector"
)

// DefaultIDColumn is the generated identity column used by most kinds.
const DefaultIDColumn = "id"

// Column describes one column of a kind.
type Column struct {
	Name       string     `yaml:"name"`
	Type       ColumnType `yaml:"type"`
	Required   bool       `yaml:"required"`
	Default    any        `yaml:"default"`
	Values     []string   `yaml:"values"`
	Dimensions int        `yaml:"dimensions"`
	MaxLength  int        `yaml:"max_length"`
	References string     `yaml:"references"`
}

// NotNull reports whether the stored column can never be NULL.
func (c Column) NotNull() bool {
	return c.Required || c.Default != nil
}

// Kind is the declarative schema of one entity table.
type Kind struct {
	Name        string     `yaml:"name"`
	Table       string     `yaml:"table"`
	IDColumn    string     `yaml:"id_column"`
	GeneratedID bool       `yaml:"generated_id"`
	Columns     []Column   `yaml:"columns"`
	UniqueKeys  [][]string `yaml:"unique_keys"`

	// Set by the catalog after loading.
	referenced map[string]*Kind
}

// Column returns the named column.
func (k *Kind) Column(name string) (Column, bool) {
	for _, c := range k.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns every stored column in declaration order, id first.
func (k *Kind) ColumnNames() []string {
	names := make([]string, 0, len(k.Columns)+1)
	if k.GeneratedID {
		names = append(names, k.IDColumn)
	}
	for _, c := range k.Columns {
		names = append(names, c.Name)
	}
	return names
}

// ReferencedKind returns the kind a referencing column points at.
func (k *Kind) ReferencedKind(column string) (*Kind, bool) {
	ref, ok := k.referenced[column]
	return ref, ok
}

// References returns the referencing columns of k in declaration order.
func (k *Kind) References() []Column {
	var refs []Column
	for _, c := range k.Columns {
		if c.References != "" {
			refs = append(refs, c)
		}
	}
	return refs
}

// UniqueKey resolves the uniqueness key a caller asked for. An empty request
// selects the first declared key. A non-empty request must name the columns
// of a declared key, in any order; the declared order is returned.
func (k *Kind) UniqueKey(requested []string) ([]string, error) {
	if len(requested) == 0 {
		if len(k.UniqueKeys) == 0 {
			return nil, nil
		}
		return k.UniqueKeys[0], nil
	}

	want := slices.Clone(requested)
	slices.Sort(want)
	for _, key := range k.UniqueKeys {
		have := slices.Clone(key)
		slices.Sort(have)
		if slices.Equal(want, have) {
			return key, nil
		}
	}
	return nil, fmt.Errorf("%s has no uniqueness key on (%s)", k.Name, strings.Join(requested, ", "))
}

func (k *Kind) validate() error {
	if k.Name == "" {
		return fmt.Errorf("kind name is required")
	}
	if k.Table == "" {
		return fmt.Errorf("kind %s: table is required", k.Name)
	}
	if k.IDColumn == "" {
		k.IDColumn = DefaultIDColumn
	}
	seen := make(map[string]bool, len(k.Columns))
	for _, c := range k.Columns {
		if c.Name == "" {
			return fmt.Errorf("kind %s: column name is required", k.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("kind %s: duplicate column %s", k.Name, c.Name)
		}
		seen[c.Name] = true
		switch c.Type {
		case ColumnText, ColumnInteger, ColumnBoolean, ColumnTimestamp, ColumnJSON:
		case ColumnEnum:
			if len(c.Values) == 0 {
				return fmt.Errorf("kind %s: enum column %s has no values", k.Name, c.Name)
			}
		case ColumnVector:
			if c.Dimensions <= 0 {
				return fmt.Errorf("kind %s: vector column %s needs dimensions", k.Name, c.Name)
			}
		default:
			return fmt.Errorf("kind %s: column %s has unknown type %q", k.Name, c.Name, c.Type)
		}
	}
	if k.GeneratedID && seen[k.IDColumn] {
		return fmt.Errorf("kind %s: generated id column %s must not be declared", k.Name, k.IDColumn)
	}
	if !k.GeneratedID {
		c, ok := k.Column(k.IDColumn)
		if !ok || c.Type != ColumnInteger {
			return fmt.Errorf("kind %s: id column %s must be a declared integer column", k.Name, k.IDColumn)
		}
	}
	for _, key := range k.UniqueKeys {
		if len(key) == 0 {
			return fmt.Errorf("kind %s: empty uniqueness key", k.Name)
		}
		for _, name := range key {
			c, ok := k.Column(name)
			if !ok {
				return fmt.Errorf("kind %s: uniqueness key column %s is not declared", k.Name, name)
			}
			if c.Type == ColumnJSON || c.Type == ColumnVector {
				return fmt.Errorf("kind %s: %s columns cannot be part of a uniqueness key", k.Name, c.Type)
			}
		}
	}
	return nil
}

// RowFrom builds a row from decoded column values. The id column must hold an int64.
func (k *Kind) RowFrom(values Record) (*Row, error) {
	id, ok := values[k.IDColumn].(int64)
	if !ok {
		return nil, fmt.Errorf("%s row has no %s", k.Name, k.IDColumn)
	}
	if k.GeneratedID {
		delete(values, k.IDColumn)
	}
	return &Row{Kind: k.Name, IDColumn: k.IDColumn, ID: id, Values: values}, nil
}
