package query

import (
	"encoding/json"
	"fmt"
	"iter"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/quarry/schema"
	"github.com/syssam/quarry/schema/field"
)

// Entity is one hydrated instance with its related instances attached.
type Entity struct {
	Type   string
	key    string
	names  []string
	values map[string]any
	one    map[string]*Entity
	many   map[string]*Collection
}

func newEntity(typ string) *Entity {
	return &Entity{Type: typ, values: make(map[string]any)}
}

// ID returns the primary key of the entity. Composite keys are joined
// with "-".
func (e *Entity) ID() string { return e.key }

// Get returns the value of a field, or nil.
func (e *Entity) Get(name string) any { return e.values[name] }

// Value returns the value of a field and whether the row carried it.
func (e *Entity) Value(name string) (any, bool) {
	v, ok := e.values[name]
	return v, ok
}

// Fields returns the field names in column order.
func (e *Entity) Fields() []string { return slices.Clone(e.names) }

// Map returns a copy of the field values.
func (e *Entity) Map() map[string]any { return maps.Clone(e.values) }

// One returns the to-one related entity loaded under alias, or nil.
func (e *Entity) One(alias string) *Entity { return e.one[alias] }

// Many returns the to-many related entities loaded under alias. It never
// returns nil.
func (e *Entity) Many(alias string) *Collection {
	if c, ok := e.many[alias]; ok {
		return c
	}
	return &Collection{}
}

func (e *Entity) set(name string, v any) {
	if _, ok := e.values[name]; !ok {
		e.names = append(e.names, name)
	}
	e.values[name] = v
}

func (e *Entity) setOne(alias string, child *Entity) *Entity {
	if e.one == nil {
		e.one = make(map[string]*Entity)
	}
	// A repeated row of the same child keeps the instance already holding
	// its own relations.
	if cur, ok := e.one[alias]; ok && cur.key == child.key {
		return cur
	}
	e.one[alias] = child
	return child
}

func (e *Entity) addMany(alias string, child *Entity) *Entity {
	if e.many == nil {
		e.many = make(map[string]*Collection)
	}
	c, ok := e.many[alias]
	if !ok {
		c = &Collection{}
		e.many[alias] = c
	}
	return c.add(child)
}

// Collection is a set of entities keyed by primary key, in order of first
// appearance.
type Collection struct {
	keys  []string
	items map[string]*Entity
}

// Len returns the number of entities.
func (c *Collection) Len() int { return len(c.keys) }

// Get returns the entity with the given primary key.
func (c *Collection) Get(key string) (*Entity, bool) {
	e, ok := c.items[key]
	return e, ok
}

// All iterates over the entities by key.
func (c *Collection) All() iter.Seq2[string, *Entity] {
	return func(yield func(string, *Entity) bool) {
		for _, k := range c.keys {
			if !yield(k, c.items[k]) {
				return
			}
		}
	}
}

// Entities returns the entities in order.
func (c *Collection) Entities() []*Entity {
	out := make([]*Entity, len(c.keys))
	for i, k := range c.keys {
		out[i] = c.items[k]
	}
	return out
}

// First returns the first entity, or nil.
func (c *Collection) First() *Entity {
	if len(c.keys) == 0 {
		return nil
	}
	return c.items[c.keys[0]]
}

// add inserts e unless an entity with the same key exists, and returns the
// entity kept under that key.
func (c *Collection) add(e *Entity) *Entity {
	if cur, ok := c.items[e.key]; ok {
		return cur
	}
	if c.items == nil {
		c.items = make(map[string]*Entity)
	}
	c.keys = append(c.keys, e.key)
	c.items[e.key] = e
	return e
}

// Hydrate rebuilds the entity graph from flat result rows. Root fields are
// read from "<alias>_<field>" columns, or from bare "<field>" columns when
// the prefixed one is absent. Rows repeating a root, as produced by joins,
// collapse into one instance.
//
// Without a bound graph, rows lacking a primary key are keyed by position.
func (c *Criteria) Hydrate(rows []map[string]any) (*Collection, error) {
	h := hydrator{reg: c.env.reg, prefixes: c.joinPrefixes()}
	out := &Collection{}
	for i, row := range rows {
		root, err := h.entity(c.typ, c.alias, row, true)
		if err != nil {
			return nil, err
		}
		if root.key == "" {
			if len(c.graph) > 0 {
				return nil, fmt.Errorf("query: hydrate %s: row %d has no primary key", c.typ, i)
			}
			root.key = strconv.Itoa(i)
		}
		root = out.add(root)
		if err := h.children(root, c.graph, row); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *Criteria) joinPrefixes() []string {
	prefixes := make([]string, len(c.joins))
	for i, j := range c.joins {
		prefixes[i] = j.alias + "_"
	}
	return prefixes
}

type hydrator struct {
	reg      schema.Registry
	prefixes []string // column prefixes of joined tables
}

func (h hydrator) children(parent *Entity, nodes []*boundNode, row map[string]any) error {
	for _, n := range nodes {
		if row[n.alias+"_"+n.rel.Foreign] == nil {
			continue
		}
		child, err := h.entity(n.rel.Type, n.alias, row, false)
		if err != nil {
			return err
		}
		if child.key == "" {
			continue
		}
		if n.rel.Cardinality == schema.Many {
			child = parent.addMany(n.rel.Alias, child)
		} else {
			child = parent.setOne(n.rel.Alias, child)
		}
		if err := h.children(child, n.children, row); err != nil {
			return err
		}
	}
	return nil
}

// entity reads the fields of typ from the columns prefixed by alias. For
// the root, bare field columns and columns of no joined table are read too.
func (h hydrator) entity(typ, alias string, row map[string]any, root bool) (*Entity, error) {
	e := newEntity(typ)
	prefix := alias + "_"
	used := make(map[string]bool)
	for _, f := range h.reg.Fields(typ) {
		col := prefix + f.Name
		v, ok := row[col]
		if !ok && root {
			col = f.Name
			v, ok = row[col]
		}
		if !ok {
			continue
		}
		used[col] = true
		cv, err := convert(v, f.Type)
		if err != nil {
			return nil, fmt.Errorf("query: hydrate %s.%s: %w", typ, f.Name, err)
		}
		e.set(f.Name, cv)
	}
	if root {
		for _, col := range slices.Sorted(maps.Keys(row)) {
			if used[col] || h.joined(col) {
				continue
			}
			e.set(strings.TrimPrefix(col, prefix), row[col])
		}
	}
	pk := h.reg.PrimaryKey(typ)
	parts := make([]string, 0, len(pk))
	for _, name := range pk {
		v := e.values[name]
		if v == nil {
			return e, nil
		}
		parts = append(parts, keyString(v))
	}
	e.key = strings.Join(parts, "-")
	return e, nil
}

func (h hydrator) joined(col string) bool {
	for _, p := range h.prefixes {
		if strings.HasPrefix(col, p) {
			return true
		}
	}
	return false
}

func keyString(v any) string {
	switch v := v.(type) {
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	time.DateTime,
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

// convert maps a driver value to the Go type of a field. Nil stays nil.
func convert(v any, t field.Type) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch {
	case t.Integer():
		return toInt64(v)
	case t.Float():
		return toFloat64(v)
	}
	switch t {
	case field.TypeBool:
		return toBool(v)
	case field.TypeTime:
		return toTime(v)
	case field.TypeBytes:
		if s, ok := v.(string); ok {
			return []byte(s), nil
		}
		if b, ok := v.([]byte); ok {
			return b, nil
		}
	case field.TypeUUID:
		return toUUID(v)
	case field.TypeJSON:
		switch v := v.(type) {
		case []byte:
			return json.RawMessage(v), nil
		case string:
			return json.RawMessage(v), nil
		}
		b, err := json.Marshal(v)
		return json.RawMessage(b), err
	case field.TypeString, field.TypeEnum:
		switch v := v.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		case time.Time:
			return v.Format(time.DateTime), nil
		}
		return fmt.Sprint(v), nil
	}
	return v, nil
}

func toInt64(v any) (int64, error) {
	switch v := v.(type) {
	case []byte:
		return strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	case float64:
		return int64(v), nil
	case float32:
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	if n, ok := asInt64(v); ok {
		return n, nil
	}
	return 0, fmt.Errorf("cannot convert %T to int64", v)
}

func toFloat64(v any) (float64, error) {
	switch v := v.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	}
	if n, ok := asInt64(v); ok {
		return float64(n), nil
	}
	return 0, fmt.Errorf("cannot convert %T to float64", v)
}

func toBool(v any) (bool, error) {
	switch v := v.(type) {
	case bool:
		return v, nil
	case []byte:
		return strconv.ParseBool(strings.TrimSpace(string(v)))
	case string:
		return strconv.ParseBool(strings.TrimSpace(v))
	}
	if n, ok := asInt64(v); ok {
		return n != 0, nil
	}
	return false, fmt.Errorf("cannot convert %T to bool", v)
}

func toTime(v any) (time.Time, error) {
	var s string
	switch v := v.(type) {
	case time.Time:
		return v, nil
	case []byte:
		s = string(v)
	case string:
		s = v
	default:
		if n, ok := asInt64(v); ok {
			return time.Unix(n, 0).UTC(), nil
		}
		return time.Time{}, fmt.Errorf("cannot convert %T to time.Time", v)
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

func toUUID(v any) (uuid.UUID, error) {
	switch v := v.(type) {
	case uuid.UUID:
		return v, nil
	case [16]byte:
		return uuid.UUID(v), nil
	case []byte:
		if len(v) == 16 {
			return uuid.FromBytes(v)
		}
		return uuid.ParseBytes(v)
	case string:
		return uuid.Parse(v)
	}
	return uuid.Nil, fmt.Errorf("cannot convert %T to uuid.UUID", v)
}
