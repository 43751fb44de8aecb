package query

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/syssam/quarry"
	"github.com/syssam/quarry/dialect"
	"github.com/syssam/quarry/schema/field"
)

// Command is the SQL verb of a statement.
type Command string

// Supported commands.
const (
	Select Command = "SELECT"
	Update Command = "UPDATE"
	Delete Command = "DELETE"
)

// JoinType is the SQL join operator.
type JoinType string

// Join types.
const (
	JoinInner JoinType = "JOIN"
	JoinLeft  JoinType = "LEFT JOIN"
	JoinRight JoinType = "RIGHT JOIN"
)

// priorities are the MySQL SELECT modifiers accepted by Priority.
var priorities = []string{
	"HIGH_PRIORITY", "STRAIGHT_JOIN", "SQL_SMALL_RESULT", "SQL_BIG_RESULT",
	"SQL_BUFFER_RESULT", "SQL_NO_CACHE", "SQL_CALC_FOUND_ROWS",
}

var directions = []string{"ASC", "DESC", "ASCENDING", "DESCENDING"}

type (
	// column is one projection item.
	column struct {
		expr  string // raw expression, or the field name of a generated column
		as    string
		table string // alias qualifying a generated column
	}
	table struct {
		typ   string
		name  string
		alias string
	}
	join struct {
		table
		kind JoinType
		on   Clause
	}
	assignment struct {
		field string
		value any
		typ   field.Type
		raw   bool
	}
	order struct {
		expr string
		dir  string
	}
)

// Criteria describes one statement over an entity type: its projection,
// joins, conditions, grouping, ordering and limits, plus the eager-load
// graph used to hydrate the result.
//
// A Criteria is not safe for concurrent mutation. Compiling does not modify
// it, so a fully built Criteria may be compiled and executed concurrently.
type Criteria struct {
	env      *Env
	d        dialect.Dialect
	command  Command
	typ      string
	alias    string
	distinct bool
	priority string
	columns  []column
	tables   []table
	aliases  map[string]string // alias => entity type
	joins    []*join
	set      []assignment
	where    Clause
	filters  []Node // ANDed with the whole WHERE clause
	having   Clause
	groupBy  []order
	orderBy  []order
	limit    *int
	offset   int
	graph    []*boundNode
	bound    Graph
	errs     []error
	failed   bool
}

func newCriteria(env *Env, typ string, alias ...string) *Criteria {
	d, ok := dialect.Get(env.dialect)
	if !ok {
		d, _ = dialect.Get(dialect.MySQL)
	}
	c := &Criteria{
		env:     env,
		d:       d,
		command: Select,
		typ:     typ,
		alias:   typ,
		aliases: make(map[string]string),
	}
	if len(alias) > 0 && alias[0] != "" {
		c.alias = d.Trim(alias[0])
	}
	c.aliases[c.alias] = typ
	name, _ := env.reg.TableName(typ)
	c.tables = append(c.tables, table{typ: typ, name: name, alias: c.alias})
	return c
}

// Type returns the root entity type.
func (c *Criteria) Type() string { return c.typ }

// Alias returns the alias of the root entity.
func (c *Criteria) Alias() string { return c.alias }

// Verb returns the statement command.
func (c *Criteria) Verb() Command { return c.command }

// Command sets the statement verb. UPDATE and DELETE statements address
// the root table by name, so the command should be set before adding
// conditions.
func (c *Criteria) Command(cmd Command) *Criteria {
	cmd = Command(toUpper(strings.TrimSpace(string(cmd))))
	switch cmd {
	case Select, Update, Delete:
	default:
		c.env.logger.Error("unsupported command ignored", "type", c.typ, "command", string(cmd))
		return c
	}
	c.command = cmd
	return c
}

// qualifier is the name conditions use for the root entity.
func (c *Criteria) qualifier() string {
	if c.command == Select {
		return c.alias
	}
	return c.tables[0].name
}

// Distinct toggles SELECT DISTINCT, or sets it when on is given.
func (c *Criteria) Distinct(on ...bool) *Criteria {
	if len(on) == 0 {
		c.distinct = !c.distinct
	} else {
		c.distinct = on[0]
	}
	return c
}

// Priority sets a MySQL SELECT modifier such as HIGH_PRIORITY or
// SQL_NO_CACHE. Unknown modifiers are ignored.
func (c *Criteria) Priority(p string) *Criteria {
	p = toUpper(strings.TrimSpace(p))
	if p != "" && !slices.Contains(priorities, p) {
		c.env.logger.Error("unsupported select modifier ignored", "type", c.typ, "priority", p)
		return c
	}
	c.priority = p
	return c
}

// Select adds projection items. "*" and "<alias>.*" expand to every field
// of the root entity, aliased "<alias>_<field>". Other items are used as
// given; plain identifiers are escaped.
func (c *Criteria) Select(columns ...string) *Criteria {
	for _, col := range columns {
		col = strings.TrimSpace(col)
		switch {
		case col == "":
		case col == "*" || col == c.alias+".*" || col == c.d.Escape(c.alias)+".*":
			c.selectFields(c.typ, c.alias)
		case !ValidClause(col):
			c.fail(injection(col))
		default:
			c.columns = append(c.columns, column{expr: col})
		}
	}
	return c
}

// SelectAs adds an aliased projection item.
func (c *Criteria) SelectAs(expr, as string) *Criteria {
	if !ValidClause(expr) {
		return c.fail(injection(expr))
	}
	c.columns = append(c.columns, column{expr: strings.TrimSpace(expr), as: as})
	return c
}

// selectFields projects every field of typ under alias.
func (c *Criteria) selectFields(typ, alias string) {
	for _, f := range c.env.reg.Fields(typ) {
		c.columns = append(c.columns, column{expr: f.Name, as: alias + "_" + f.Name, table: alias})
	}
}

// Set adds UPDATE assignments. Keys are field names or field aliases;
// unknown keys are skipped.
func (c *Criteria) Set(values any) *Criteria {
	pairs, ok := pairsOf(values)
	if !ok {
		return c.fail(quarry.NewQueryExpressionError("", fmt.Sprintf("unsupported SET values %T", values)))
	}
	for _, p := range pairs {
		name := p.Key
		f, ok := c.env.reg.Field(c.typ, name)
		if !ok {
			if alias, aok := c.env.reg.FieldAlias(c.typ, name); aok {
				name = alias
				f, ok = c.env.reg.Field(c.typ, name)
			}
		}
		if !ok {
			c.env.logger.Warn("unknown field skipped in SET", "type", c.typ, "field", p.Key)
			continue
		}
		a := assignment{field: name, value: p.Value, typ: f.Type}
		if s, isStr := p.Value.(string); isStr && f.Type.Quotable() {
			raw, err := conditional(s)
			if err != nil {
				return c.fail(err)
			}
			a.raw = raw || strings.Contains(s, "(")
		}
		c.set = append(c.set, a)
	}
	return c
}

// From adds another entity table to the FROM list.
func (c *Criteria) From(typ string, alias ...string) *Criteria {
	name, ok := c.env.reg.TableName(typ)
	if !ok {
		return c.fail(quarry.NewQueryExpressionError(typ, "unknown entity type"))
	}
	a := typ
	if len(alias) > 0 && alias[0] != "" {
		a = c.d.Trim(alias[0])
	}
	c.tables = append(c.tables, table{typ: typ, name: name, alias: a})
	c.aliases[a] = typ
	return c
}

// Where adds conditions to group 0, joined with conj (AND by default).
func (c *Criteria) Where(expr any, conj ...Conjunction) *Criteria {
	cj := And
	if len(conj) > 0 && conj[0] != "" {
		cj = conj[0]
	}
	return c.WhereGroup(0, expr, cj)
}

// OrWhere adds conditions to group 0 joined with OR.
func (c *Criteria) OrWhere(expr any) *Criteria {
	return c.WhereGroup(0, expr, Or)
}

// WhereGroup adds conditions to the given group. Groups render in the
// order they are first used and are joined by the conjunction of their
// first condition.
func (c *Criteria) WhereGroup(group int, expr any, conj Conjunction) *Criteria {
	n, err := c.parse(expr, conj, modeWhere)
	if err != nil {
		return c.fail(err)
	}
	if n != nil {
		c.where.add(group, n)
	}
	return c
}

// Restrict ANDs expr with the whole WHERE clause, whatever conditions are
// added before or after it. Policies and scopes use it to narrow a query
// so that no OR of the caller can widen it again.
func (c *Criteria) Restrict(expr any) *Criteria {
	n, err := c.parse(expr, And, modeWhere)
	if err != nil {
		return c.fail(err)
	}
	if n != nil {
		c.filters = append(c.filters, n)
	}
	return c
}

// Having adds a HAVING condition. Names that are not fields of the root
// entity are taken as projection aliases.
func (c *Criteria) Having(expr any) *Criteria {
	n, err := c.parse(expr, And, modeHaving)
	if err != nil {
		return c.fail(err)
	}
	if n != nil {
		c.having.add(0, n)
	}
	return c
}

// GroupBy adds a GROUP BY item.
func (c *Criteria) GroupBy(col string, dir ...string) *Criteria {
	if o, ok := c.order("GROUP BY", col, dir); ok {
		c.groupBy = append(c.groupBy, o)
	}
	return c
}

// SortBy adds an ORDER BY item. Directions other than ASC, DESC,
// ASCENDING and DESCENDING are dropped.
func (c *Criteria) SortBy(col string, dir ...string) *Criteria {
	if o, ok := c.order("ORDER BY", col, dir); ok {
		c.orderBy = append(c.orderBy, o)
	}
	return c
}

func (c *Criteria) order(clause, col string, dir []string) (order, bool) {
	col = strings.TrimSpace(col)
	if col == "" {
		return order{}, false
	}
	if !ValidClause(col) {
		c.env.logger.Error("sql injection attempt detected in "+clause+" column; clause rejected", "type", c.typ, "clause", col)
		return order{}, false
	}
	o := order{expr: col}
	if len(dir) > 0 {
		if d := toUpper(strings.TrimSpace(dir[0])); slices.Contains(directions, d) {
			o.dir = d
		}
	}
	return o, true
}

// Limit sets the maximum number of rows and the optional offset. Negative
// values are treated as zero.
func (c *Criteria) Limit(limit int, offset ...int) *Criteria {
	limit = max(limit, 0)
	c.limit = &limit
	c.offset = 0
	if len(offset) > 0 {
		c.offset = max(offset[0], 0)
	}
	return c
}

// Paginate is Limit for untrusted input: both values are coerced to
// integers, and anything that is not a number counts as zero.
func (c *Criteria) Paginate(limit, offset any) *Criteria {
	return c.Limit(coerceInt(limit), coerceInt(offset))
}

var leadingInt = regexp.MustCompile(`^\s*[+-]?\d+`)

// coerceInt converts v to an int the way a loosely typed request parameter
// would be read: "12abc" is 12, "x" is 0.
func coerceInt(v any) int {
	switch v := v.(type) {
	case nil:
		return 0
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(leadingInt.FindString(v)))
		return n
	case float32:
		return floatInt(float64(v))
	case float64:
		return floatInt(v)
	}
	if n, ok := asInt64(v); ok {
		return int(n)
	}
	return 0
}

func floatInt(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(f)
}

// Wrap replaces the definition of c with a copy of other's.
func (c *Criteria) Wrap(other *Criteria) *Criteria {
	*c = *other.Clone()
	return c
}

// Clone returns a deep copy of the criteria.
func (c *Criteria) Clone() *Criteria {
	cp := *c
	cp.columns = slices.Clone(c.columns)
	cp.tables = slices.Clone(c.tables)
	cp.aliases = make(map[string]string, len(c.aliases))
	for k, v := range c.aliases {
		cp.aliases[k] = v
	}
	cp.joins = make([]*join, len(c.joins))
	for i, j := range c.joins {
		jc := *j
		jc.on = j.on.clone()
		cp.joins[i] = &jc
	}
	cp.set = slices.Clone(c.set)
	cp.where = c.where.clone()
	cp.filters = slices.Clone(c.filters)
	cp.having = c.having.clone()
	cp.groupBy = slices.Clone(c.groupBy)
	cp.orderBy = slices.Clone(c.orderBy)
	if c.limit != nil {
		l := *c.limit
		cp.limit = &l
	}
	cp.graph = slices.Clone(c.graph)
	cp.bound = slices.Clone(c.bound)
	cp.errs = slices.Clone(c.errs)
	return &cp
}

// Err returns the errors recorded while building the criteria, or nil.
func (c *Criteria) Err() error {
	return quarry.NewAggregateError(c.errs...)
}

// Failed reports whether a condition was rejected. A failed criteria still
// compiles, but its WHERE clause can never match.
func (c *Criteria) Failed() bool {
	return c.failed
}

// fail records err. The compiler ANDs an always-false predicate with the
// WHERE clause of a failed criteria, so a rejected filter never widens the
// result.
func (c *Criteria) fail(err error) *Criteria {
	c.env.logger.Error("invalid query criteria", "type", c.typ, "alias", c.alias, "err", err)
	c.errs = append(c.errs, err)
	c.failed = true
	return c
}
