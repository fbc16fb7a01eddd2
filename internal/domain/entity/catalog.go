package entity

import (
	_ "embed"
	"fmt"
	"strings"

	"dgsync/internal/domain/errors/domain"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Catalog holds the entity kinds that can be resolved.
type Catalog struct {
	kinds []*Kind
	index map[string]*Kind
}

type catalogFile struct {
	Kinds []*Kind `yaml:"kinds"`
}

// LoadCatalog parses and validates a YAML catalog.
func LoadCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse entity catalog: %w", err)
	}
	if len(file.Kinds) == 0 {
		return nil, fmt.Errorf("entity catalog declares no kinds")
	}

	c := &Catalog{index: make(map[string]*Kind, len(file.Kinds)*2)}
	for _, k := range file.Kinds {
		if err := k.validate(); err != nil {
			return nil, err
		}
		for _, name := range []string{strings.ToLower(k.Name), strings.ToLower(k.Table)} {
			if other, dup := c.index[name]; dup && other != k {
				return nil, fmt.Errorf("entity catalog: duplicate kind %s", k.Name)
			}
			c.index[name] = k
		}
		c.kinds = append(c.kinds, k)
	}

	// References may only point at kinds declared earlier (or the kind itself),
	// so the declaration order is also a valid table creation order.
	declared := make(map[string]*Kind, len(c.kinds))
	for _, k := range c.kinds {
		declared[k.Name] = k
		k.referenced = make(map[string]*Kind)
		for _, col := range k.References() {
			ref, ok := declared[col.References]
			if !ok {
				return nil, fmt.Errorf("kind %s: column %s references %s, which is not declared before it",
					k.Name, col.Name, col.References)
			}
			if col.Type != ColumnInteger {
				return nil, fmt.Errorf("kind %s: reference column %s must be an integer", k.Name, col.Name)
			}
			k.referenced[col.Name] = ref
		}
	}
	return c, nil
}

// DefaultCatalog returns the built-in catalog. It panics if the embedded
// catalog is invalid.
func DefaultCatalog() *Catalog {
	c, err := LoadCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Errorf("invalid embedded entity catalog: %w", err))
	}
	return c
}

// Kind looks a kind up by name or table name, ignoring case.
func (c *Catalog) Kind(name string) (*Kind, error) {
	k, ok := c.index[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownKind, name)
	}
	return k, nil
}

// Kinds returns every kind in declaration order.
func (c *Catalog) Kinds() []*Kind {
	out := make([]*Kind, len(c.kinds))
	copy(out, c.kinds)
	return out
}
