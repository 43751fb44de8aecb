package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
	"gopkg.in/yaml.v3"

	"github.com/syssam/quarry"
	"github.com/syssam/quarry/schema"
)

// GraphNode names one relation to eager-load, and the relations to load
// beneath it.
type GraphNode struct {
	Alias    string `json:"alias" yaml:"alias"`
	Children Graph  `json:"children,omitempty" yaml:"children,omitempty"`
}

// Equal reports whether n and m load the same relations.
func (n GraphNode) Equal(m GraphNode) bool {
	return n.Alias == m.Alias && slices.EqualFunc(n.Children, m.Children, GraphNode.Equal)
}

// Graph is an ordered eager-load specification.
type Graph []GraphNode

// G is shorthand for building a GraphNode.
func G(alias string, children ...GraphNode) GraphNode {
	return GraphNode{Alias: alias, Children: children}
}

// boundNode is a graph node resolved against the registry and joined into a
// statement.
type boundNode struct {
	rel      *schema.Relation
	alias    string // statement alias of the joined table
	children []*boundNode
}

// Join adds a join to typ under alias. Without conditions, the ON clause is
// derived from the relation of the root type named alias. A relation that
// cannot be resolved produces a join without an ON clause.
func (c *Criteria) Join(typ, alias string, kind JoinType, conds ...any) *Criteria {
	name, ok := c.env.reg.TableName(typ)
	if !ok {
		return c.fail(quarry.NewQueryExpressionError(typ, "unknown entity type"))
	}
	if alias = c.d.Trim(alias); alias == "" {
		alias = typ
	}
	switch kind {
	case JoinInner, JoinLeft, JoinRight:
	case "":
		kind = JoinInner
	default:
		return c.fail(quarry.NewQueryExpressionError(string(kind), "unsupported join type"))
	}
	j := &join{table: table{typ: typ, name: name, alias: alias}, kind: kind}
	c.aliases[alias] = typ
	if len(conds) > 0 {
		for _, cond := range conds {
			n, err := c.parse(cond, And, modeWhere)
			if err != nil {
				return c.fail(err)
			}
			if n != nil {
				j.on.add(0, n)
			}
		}
		c.joins = append(c.joins, j)
		return c
	}
	rel, ok := c.env.reg.Relation(c.typ, alias)
	if !ok || rel.Type != typ {
		c.env.logger.Warn("relation not found; join has no ON clause", "type", c.typ, "alias", alias, "target", typ)
		c.joins = append(c.joins, j)
		return c
	}
	if err := c.relate(j, c.qualifier(), rel); err != nil {
		return c.fail(err)
	}
	c.joins = append(c.joins, j)
	return c
}

// InnerJoin adds an inner join.
func (c *Criteria) InnerJoin(typ, alias string, conds ...any) *Criteria {
	return c.Join(typ, alias, JoinInner, conds...)
}

// LeftJoin adds a left outer join.
func (c *Criteria) LeftJoin(typ, alias string, conds ...any) *Criteria {
	return c.Join(typ, alias, JoinLeft, conds...)
}

// RightJoin adds a right outer join.
func (c *Criteria) RightJoin(typ, alias string, conds ...any) *Criteria {
	return c.Join(typ, alias, JoinRight, conds...)
}

// relate builds the ON clause of j from rel, where parent is the statement
// alias of the relation's owner.
func (c *Criteria) relate(j *join, parent string, rel *schema.Relation) error {
	j.on.add(0, &Leaf{
		SQL:  c.d.Qualify(parent, rel.Local) + " = " + c.d.Qualify(j.alias, rel.Foreign),
		Conj: And,
	})
	for _, set := range []struct {
		alias    string
		criteria []schema.Criterion
	}{
		{parent, rel.LocalCriteria},
		{j.alias, rel.ForeignCriteria},
	} {
		for _, cr := range set.criteria {
			var expr any = Fields{{Key: qualifyKey(cr.Key, set.alias), Value: cr.Value}}
			if cr.Key == "" {
				expr = cr.Value
			}
			n, err := c.parse(expr, And, modeWhere)
			if err != nil {
				return err
			}
			if n != nil {
				j.on.add(0, n)
			}
		}
	}
	return nil
}

// qualifyKey prefixes the field part of a condition key with alias, unless
// it is already qualified.
func qualifyKey(key, alias string) string {
	parts := strings.Split(key, ":")
	i := 0
	if len(parts) == 3 {
		i = 1
	}
	if !strings.Contains(parts[i], ".") {
		parts[i] = alias + "." + strings.TrimSpace(parts[i])
	}
	return strings.Join(parts, ":")
}

// BindGraph eager-loads g: every root field and every field of each
// related entity is projected under its alias prefix, each relation is
// LEFT JOINed, and rows are ordered by the root primary key so that the
// hydrator sees each root contiguously. Nodes that are already bound are
// skipped, so binding the same graph twice changes nothing.
func (c *Criteria) BindGraph(g Graph) *Criteria {
	if !c.projects(c.alias) {
		c.selectFields(c.typ, c.alias)
	}
	first := len(c.bound) == 0
	for _, n := range g {
		if slices.ContainsFunc(c.bound, n.Equal) {
			continue
		}
		b, err := c.bind(c.typ, c.qualifier(), n)
		if err != nil {
			return c.fail(err)
		}
		c.graph = append(c.graph, b)
		c.bound = append(c.bound, n)
	}
	if first && len(c.bound) > 0 {
		for _, pk := range c.env.reg.PrimaryKey(c.typ) {
			c.SortBy(c.d.Qualify(c.qualifier(), pk))
		}
	}
	return c
}

func (c *Criteria) bind(parentType, parentAlias string, n GraphNode) (*boundNode, error) {
	rel, ok := c.env.reg.Relation(parentType, n.Alias)
	if !ok {
		return nil, quarry.NewQueryExpressionError(n.Alias, "unknown relation of "+parentType)
	}
	name, ok := c.env.reg.TableName(rel.Type)
	if !ok {
		return nil, quarry.NewQueryExpressionError(rel.Type, "unknown entity type")
	}
	alias := n.Alias
	if _, taken := c.aliases[alias]; taken {
		alias = parentAlias + "_" + n.Alias
	}
	j := &join{table: table{typ: rel.Type, name: name, alias: alias}, kind: JoinLeft}
	c.aliases[alias] = rel.Type
	if err := c.relate(j, parentAlias, rel); err != nil {
		return nil, err
	}
	c.joins = append(c.joins, j)
	c.selectFields(rel.Type, alias)
	b := &boundNode{rel: rel, alias: alias}
	for _, child := range n.Children {
		cb, err := c.bind(rel.Type, alias, child)
		if err != nil {
			return nil, err
		}
		b.children = append(b.children, cb)
	}
	return b, nil
}

// projects reports whether the fields of alias are already projected.
func (c *Criteria) projects(alias string) bool {
	for _, col := range c.columns {
		if col.table == alias {
			return true
		}
	}
	return false
}

// ParseGraph decodes a graph from YAML or JSON. Three shapes are accepted
// and may be mixed:
//
//	[posts, profile]
//	{posts: [comments], profile: null}
//	[{alias: posts, children: [comments]}]
func ParseGraph(data []byte) (Graph, error) {
	var g Graph
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("query: parse graph: %w", err)
	}
	return g, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (g *Graph) UnmarshalYAML(value *yaml.Node) error {
	out, err := graphOf(value)
	if err != nil {
		return err
	}
	*g = out
	return nil
}

func graphOf(n *yaml.Node) (Graph, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return graphOf(n.Alias)
	case yaml.ScalarNode:
		if n.Tag == "!!null" || n.Value == "" {
			return nil, nil
		}
		return Graph{{Alias: n.Value}}, nil
	case yaml.MappingNode:
		if node, ok, err := explicitNode(n); ok || err != nil {
			return Graph{node}, err
		}
		var g Graph
		for i := 0; i+1 < len(n.Content); i += 2 {
			children, err := graphOf(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			g = append(g, GraphNode{Alias: n.Content[i].Value, Children: children})
		}
		return g, nil
	case yaml.SequenceNode:
		var g Graph
		for _, item := range n.Content {
			sub, err := graphOf(item)
			if err != nil {
				return nil, err
			}
			g = append(g, sub...)
		}
		return g, nil
	default:
		return nil, fmt.Errorf("line %d: unexpected graph node", n.Line)
	}
}

// explicitNode decodes the {alias: ..., children: ...} form.
func explicitNode(n *yaml.Node) (GraphNode, bool, error) {
	var node GraphNode
	for i := 0; i+1 < len(n.Content); i += 2 {
		switch k, v := n.Content[i].Value, n.Content[i+1]; k {
		case "alias":
			if v.Kind != yaml.ScalarNode {
				return node, false, nil
			}
			node.Alias = v.Value
		case "children":
			children, err := graphOf(v)
			if err != nil {
				return node, true, err
			}
			node.Children = children
		default:
			return node, false, nil
		}
	}
	return node, node.Alias != "", nil
}

// ParseGraphQL reads a graph from the selection set of a GraphQL query
// document. Every selected field names a relation; field arguments and
// directives are ignored.
//
//	{ posts { comments } profile }
func ParseGraphQL(src string) (Graph, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: "graph", Input: src})
	if err != nil {
		return nil, fmt.Errorf("query: parse graphql graph: %w", err)
	}
	var g Graph
	for _, op := range doc.Operations {
		g = append(g, selections(doc, op.SelectionSet)...)
	}
	return g, nil
}

func selections(doc *ast.QueryDocument, set ast.SelectionSet) Graph {
	var g Graph
	for _, sel := range set {
		switch sel := sel.(type) {
		case *ast.Field:
			g = append(g, GraphNode{Alias: sel.Name, Children: selections(doc, sel.SelectionSet)})
		case *ast.InlineFragment:
			g = append(g, selections(doc, sel.SelectionSet)...)
		case *ast.FragmentSpread:
			if def := doc.Fragments.ForName(sel.Name); def != nil {
				g = append(g, selections(doc, def.SelectionSet)...)
			}
		}
	}
	return g
}
