package query

import (
	"maps"
	"slices"
	"strings"
)

// Conjunction joins a condition to the one before it.
type Conjunction string

// Conjunctions.
const (
	And Conjunction = "AND"
	Or  Conjunction = "OR"
)

func parseConjunction(s string) (Conjunction, bool) {
	switch Conjunction(strings.ToUpper(strings.TrimSpace(s))) {
	case And:
		return And, true
	case Or:
		return Or, true
	default:
		return "", false
	}
}

// BindType tells the driver how to send a bound value.
type BindType uint8

// Binding types.
const (
	BindString BindType = iota
	BindInt
	BindNull
)

func (t BindType) String() string {
	switch t {
	case BindInt:
		return "int"
	case BindNull:
		return "null"
	default:
		return "string"
	}
}

// Binding is a value bound to one positional placeholder.
type Binding struct {
	Value  any
	Type   BindType
	Length int
}

// A Node is a condition tree node: either a *Leaf or a *Group.
type Node interface {
	node()
}

// Leaf is a single SQL predicate with zero or one placeholder.
type Leaf struct {
	SQL     string
	Binding *Binding
	Conj    Conjunction
	atom    bool // a field predicate with no top-level OR
}

// Group is an ordered list of condition nodes rendered together.
type Group struct {
	Members []Node
}

func (*Leaf) node()  {}
func (*Group) node() {}

// Pair is one entry of an ordered field mapping. An empty Key marks a
// positional entry.
type Pair struct {
	Key   string
	Value any
}

// Fields is an ordered field-keyed condition mapping:
//
//	query.Fields{
//		{Key: "status", Value: "active"},
//		{Key: "age:>=", Value: 18},
//		{Key: "OR:role:IN", Value: []string{"admin", "owner"}},
//	}
type Fields []Pair

// fieldsOf returns the entries of m ordered by key.
func fieldsOf(m map[string]any) Fields {
	keys := slices.Sorted(maps.Keys(m))
	f := make(Fields, len(keys))
	for i, k := range keys {
		f[i] = Pair{Key: k, Value: m[k]}
	}
	return f
}

// Clause holds condition trees by group identifier. Groups render in the
// order they were first used.
type Clause struct {
	ids    []int
	groups map[int][]Node
}

func (c *Clause) add(group int, n Node) {
	if c.groups == nil {
		c.groups = make(map[int][]Node)
	}
	if _, ok := c.groups[group]; !ok {
		c.ids = append(c.ids, group)
	}
	c.groups[group] = append(c.groups[group], n)
}

// Empty reports whether no condition was added.
func (c *Clause) Empty() bool {
	return len(c.ids) == 0
}

// Groups returns the condition groups in render order.
func (c *Clause) Groups() []*Group {
	gs := make([]*Group, len(c.ids))
	for i, id := range c.ids {
		gs[i] = &Group{Members: c.groups[id]}
	}
	return gs
}

func (c *Clause) clone() Clause {
	cp := Clause{ids: slices.Clone(c.ids)}
	if c.groups != nil {
		cp.groups = make(map[int][]Node, len(c.groups))
		for id, nodes := range c.groups {
			cp.groups[id] = slices.Clone(nodes)
		}
	}
	return cp
}
