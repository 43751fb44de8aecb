package schema

import (
	"fmt"
	"slices"

	"github.com/go-openapi/inflect"

	"github.com/syssam/quarry/schema/field"
)

// Catalog is an immutable Registry built from entity definitions.
type Catalog struct {
	entities map[string]*Entity
	names    []string
}

var _ Registry = (*Catalog)(nil)

// NewCatalog validates the given entities and returns a catalog holding them.
// Entities without a table are mapped to the underscored plural of their name
// (BlogPost => blog_posts). Fields without a semantic type get one inferred
// from their physical type.
func NewCatalog(entities ...*Entity) (*Catalog, error) {
	c := &Catalog{entities: make(map[string]*Entity, len(entities))}
	for _, e := range entities {
		if e == nil || e.Name == "" {
			return nil, fmt.Errorf("schema: entity name is required")
		}
		if _, ok := c.entities[e.Name]; ok {
			return nil, fmt.Errorf("schema: duplicate entity %q", e.Name)
		}
		if e.Table == "" {
			e.Table = DefaultTableName(e.Name)
		}
		if err := applyMixins(e); err != nil {
			return nil, err
		}
		for _, f := range e.Fields {
			if f.Type == field.TypeInvalid {
				f.Type = field.FromPhysical(f.PhysicalType)
			}
		}
		c.entities[e.Name] = e
		c.names = append(c.names, e.Name)
	}
	slices.Sort(c.names)
	if err := c.check(); err != nil {
		return nil, err
	}
	return c, nil
}

// MustCatalog is like NewCatalog but panics on error.
func MustCatalog(entities ...*Entity) *Catalog {
	c, err := NewCatalog(entities...)
	if err != nil {
		panic(err)
	}
	return c
}

// DefaultTableName returns the table name used for an entity that does not
// declare one.
func DefaultTableName(name string) string {
	return inflect.Underscore(inflect.Pluralize(name))
}

func (c *Catalog) check() error {
	for _, name := range c.names {
		e := c.entities[name]
		for _, pk := range e.PrimaryKey {
			if _, ok := e.Field(pk); !ok {
				return fmt.Errorf("schema: %s: primary key column %q is not a field", name, pk)
			}
		}
		for alias, target := range e.Aliases {
			if _, ok := e.Field(target); !ok {
				return fmt.Errorf("schema: %s: alias %q refers to unknown field %q", name, alias, target)
			}
		}
		seen := make(map[string]bool, len(e.Relations))
		for _, r := range e.Relations {
			switch {
			case r.Alias == "":
				return fmt.Errorf("schema: %s: relation alias is required", name)
			case seen[r.Alias]:
				return fmt.Errorf("schema: %s: duplicate relation %q", name, r.Alias)
			}
			seen[r.Alias] = true
			target, ok := c.entities[r.Type]
			if !ok {
				return fmt.Errorf("schema: %s.%s: unknown related type %q", name, r.Alias, r.Type)
			}
			if _, ok := e.Field(r.Local); !ok {
				return fmt.Errorf("schema: %s.%s: unknown local field %q", name, r.Alias, r.Local)
			}
			if _, ok := target.Field(r.Foreign); !ok {
				return fmt.Errorf("schema: %s.%s: unknown foreign field %q", name, r.Alias, r.Foreign)
			}
			if r.Cardinality == 0 {
				r.Cardinality = One
			}
		}
	}
	return nil
}

// Entities returns the registered entity names in sorted order.
func (c *Catalog) Entities() []string {
	return slices.Clone(c.names)
}

// Entity returns the definition of typ.
func (c *Catalog) Entity(typ string) (*Entity, bool) {
	e, ok := c.entities[typ]
	return e, ok
}

// HasType implements Registry.
func (c *Catalog) HasType(typ string) bool {
	_, ok := c.entities[typ]
	return ok
}

// TableName implements Registry.
func (c *Catalog) TableName(typ string) (string, bool) {
	e, ok := c.entities[typ]
	if !ok {
		return "", false
	}
	return e.Table, true
}

// Fields implements Registry.
func (c *Catalog) Fields(typ string) []*Field {
	if e, ok := c.entities[typ]; ok {
		return e.Fields
	}
	return nil
}

// Field implements Registry.
func (c *Catalog) Field(typ, name string) (*Field, bool) {
	e, ok := c.entities[typ]
	if !ok {
		return nil, false
	}
	return e.Field(name)
}

// FieldAlias implements Registry.
func (c *Catalog) FieldAlias(typ, alias string) (string, bool) {
	e, ok := c.entities[typ]
	if !ok {
		return "", false
	}
	name, ok := e.Aliases[alias]
	return name, ok
}

// PrimaryKey implements Registry.
func (c *Catalog) PrimaryKey(typ string) []string {
	if e, ok := c.entities[typ]; ok {
		return e.PrimaryKey
	}
	return nil
}

// PrimaryKeyType implements Registry.
func (c *Catalog) PrimaryKeyType(typ string) field.Type {
	e, ok := c.entities[typ]
	if !ok || len(e.PrimaryKey) != 1 {
		return field.TypeInvalid
	}
	f, _ := e.Field(e.PrimaryKey[0])
	return f.Type
}

// Relation implements Registry.
func (c *Catalog) Relation(typ, alias string) (*Relation, bool) {
	e, ok := c.entities[typ]
	if !ok {
		return nil, false
	}
	return e.Relation(alias)
}
