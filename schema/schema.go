package schema

import (
	"github.com/syssam/quarry/schema/field"
)

// Registry is the read-only metadata source consulted while parsing,
// compiling and hydrating queries. All methods are safe for concurrent use.
type Registry interface {
	// HasType reports whether typ names a registered entity.
	HasType(typ string) bool
	// TableName returns the physical table of typ.
	TableName(typ string) (string, bool)
	// Fields returns the fields of typ in declaration order.
	Fields(typ string) []*Field
	// Field returns the named field of typ.
	Field(typ, name string) (*Field, bool)
	// FieldAlias resolves an alternate field name of typ to the real one.
	FieldAlias(typ, alias string) (string, bool)
	// PrimaryKey returns the primary key columns of typ. A nil result means
	// typ has no primary key.
	PrimaryKey(typ string) []string
	// PrimaryKeyType returns the type of a single-column primary key, or
	// field.TypeInvalid when the key is composite or absent.
	PrimaryKeyType(typ string) field.Type
	// Relation returns the relation declared on typ under alias.
	Relation(typ, alias string) (*Relation, bool)
}

// Field describes one column of an entity.
type Field struct {
	Name         string
	PhysicalType string
	Type         field.Type
	Nullable     bool
	Default      any
}

// Cardinality of a relation seen from its owner.
type Cardinality uint8

// Relation cardinalities.
const (
	One Cardinality = iota + 1
	Many
)

// String implements fmt.Stringer.
func (c Cardinality) String() string {
	switch c {
	case One:
		return "one"
	case Many:
		return "many"
	default:
		return "invalid"
	}
}

// Criterion is an extra join condition attached to a relation. An empty Key
// marks Value as a raw SQL predicate.
type Criterion struct {
	Key   string
	Value any
}

// Relation describes how an entity reaches a related entity. The join
// predicate is "owner.Local = related.Foreign", extended by LocalCriteria
// applied to the owner and ForeignCriteria applied to the related entity.
type Relation struct {
	Alias           string
	Type            string
	Local           string
	Foreign         string
	Cardinality     Cardinality
	LocalCriteria   []Criterion
	ForeignCriteria []Criterion
}

// Entity is the registered metadata of one entity type.
type Entity struct {
	Name       string
	Table      string
	PrimaryKey []string
	Fields     []*Field
	// Aliases maps alternate field names to declared field names.
	Aliases   map[string]string
	Relations []*Relation
	// Mixins contribute fields ahead of the entity's own when the catalog
	// is built.
	Mixins []Mixin
}

// Field returns the named field.
func (e *Entity) Field(name string) (*Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// Relation returns the relation declared under alias.
func (e *Entity) Relation(alias string) (*Relation, bool) {
	for _, r := range e.Relations {
		if r.Alias == alias {
			return r, true
		}
	}
	return nil, false
}
