package query

import (
	"regexp"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/syssam/quarry"
	"github.com/syssam/quarry/dialect"
)

// Statement is a compiled SQL statement and its positional bindings.
type Statement struct {
	SQL      string
	Bindings []Binding
	// Table is the root table, used to scope cached results.
	Table string
}

// Args returns the bound values in placeholder order.
func (s *Statement) Args() []any {
	args := make([]any, len(s.Bindings))
	for i, b := range s.Bindings {
		if b.Type != BindNull {
			args[i] = b.Value
		}
	}
	return args
}

// Query returns the SQL text and its arguments.
func (s *Statement) Query() (string, []any) {
	return s.SQL, s.Args()
}

// Compiler renders a Criteria as a statement of one SQL dialect.
type Compiler interface {
	Dialect() string
	Compile(*Criteria) (*Statement, error)
}

// NewCompiler returns the compiler of the named dialect.
func NewCompiler(name string) (Compiler, error) {
	d, ok := dialect.Get(name)
	if !ok {
		return nil, quarry.NewCompileError(name, "unsupported dialect")
	}
	switch d.Name {
	case dialect.MySQL:
		return &MySQLCompiler{base{d}}, nil
	case dialect.Postgres:
		return &PostgresCompiler{base{d}}, nil
	default:
		return &SQLiteCompiler{base{d}}, nil
	}
}

// MySQLCompiler compiles MySQL statements. It supports SELECT modifiers
// and renders limits as "LIMIT offset, count".
type MySQLCompiler struct{ base }

// Compile implements Compiler.
func (m *MySQLCompiler) Compile(c *Criteria) (*Statement, error) {
	return m.build(c, true, func(limit, offset int) string {
		if offset > 0 {
			return "LIMIT " + strconv.Itoa(offset) + ", " + strconv.Itoa(limit)
		}
		return "LIMIT " + strconv.Itoa(limit)
	})
}

// SQLiteCompiler compiles SQLite statements.
type SQLiteCompiler struct{ base }

// Compile implements Compiler.
func (s *SQLiteCompiler) Compile(c *Criteria) (*Statement, error) {
	return s.build(c, false, limitOffset)
}

// PostgresCompiler compiles PostgreSQL statements with numbered
// placeholders.
type PostgresCompiler struct{ base }

// Compile implements Compiler.
func (p *PostgresCompiler) Compile(c *Criteria) (*Statement, error) {
	st, err := p.build(c, false, limitOffset)
	if err != nil {
		return nil, err
	}
	if st.SQL, err = sq.Dollar.ReplacePlaceholders(escapeQuoted(st.SQL)); err != nil {
		return nil, quarry.NewCompileError(c.typ, err.Error())
	}
	return st, nil
}

// escapeQuoted doubles every '?' inside a string literal or a quoted
// identifier, which placeholder numbering turns back into a single '?'.
func escapeQuoted(s string) string {
	var (
		b     strings.Builder
		quote byte
	)
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote != 0 && ch == '?':
			b.WriteByte('?')
		case quote != 0 && ch == quote:
			quote = 0
		case quote == 0 && (ch == '\'' || ch == '"'):
			quote = ch
		}
		b.WriteByte(ch)
	}
	return b.String()
}

func limitOffset(limit, offset int) string {
	s := "LIMIT " + strconv.Itoa(limit)
	if offset > 0 {
		s += " OFFSET " + strconv.Itoa(offset)
	}
	return s
}

var asRe = regexp.MustCompile(`(?i)\bAS\b`)

type base struct {
	d dialect.Dialect
}

// Dialect returns the dialect name.
func (b base) Dialect() string { return b.d.Name }

// build assembles the statement clause by clause. Bindings are collected
// in the order their placeholders appear.
func (b base) build(c *Criteria, modifiers bool, limit func(limit, offset int) string) (*Statement, error) {
	for _, t := range c.tables {
		if t.name == "" {
			return nil, quarry.NewCompileError(t.typ, "no table is defined for the entity type")
		}
	}
	var (
		r   renderer
		sql strings.Builder
	)
	sql.WriteString(string(c.command))
	switch c.command {
	case Select:
		if c.distinct {
			sql.WriteString(" DISTINCT")
		}
		if modifiers && c.priority != "" {
			sql.WriteString(" " + c.priority)
		}
		sql.WriteString(" " + b.projection(c) + " FROM ")
	case Delete:
		sql.WriteString(" FROM ")
	default:
		sql.WriteString(" ")
	}
	for i, t := range c.tables {
		if i > 0 {
			sql.WriteString(", ")
		}
		sql.WriteString(b.d.Escape(t.name))
		if c.command == Select {
			sql.WriteString(" AS " + b.d.Escape(t.alias))
		}
	}
	for _, j := range c.joins {
		sql.WriteString(" " + string(j.kind) + " " + b.d.Escape(j.name) + " " + b.d.Escape(j.alias))
		if on := r.clause(&j.on); on != "" {
			sql.WriteString(" ON " + on)
		}
	}
	if c.command == Update {
		if len(c.set) == 0 {
			return nil, quarry.NewCompileError(c.typ, "UPDATE without assignments")
		}
		items := make([]string, len(c.set))
		for i, a := range c.set {
			items[i] = b.d.Escape(a.field) + " = " + b.value(a)
		}
		sql.WriteString(" SET " + strings.Join(items, ", "))
	}
	if where := b.where(&r, c); where != "" {
		sql.WriteString(" WHERE " + where)
	}
	if len(c.groupBy) > 0 {
		sql.WriteString(" GROUP BY " + b.orders(c.groupBy))
	}
	if having := r.clause(&c.having); having != "" {
		sql.WriteString(" HAVING " + having)
	}
	if c.command == Select {
		if len(c.orderBy) > 0 {
			sql.WriteString(" ORDER BY " + b.orders(c.orderBy))
		}
		if c.limit != nil {
			sql.WriteString(" " + limit(*c.limit, c.offset))
		}
	}
	return &Statement{SQL: sql.String(), Bindings: r.bindings, Table: c.tables[0].name}, nil
}

// where renders the WHERE clause followed by the restrictions, each ANDed
// with everything before it. A failed criteria never matches.
func (b base) where(r *renderer, c *Criteria) string {
	sql, closed := r.scope(&c.where)
	parts := []part{{sql: sql, closed: closed}}
	for _, f := range c.filters {
		sql, _, closed := r.node(f)
		parts = append(parts, part{sql: sql, closed: closed})
	}
	if c.failed {
		parts = append(parts, part{sql: "2 = 1", closed: true})
	}
	return conjoin(parts...)
}

// projection renders the select list. An empty list selects every field
// of the root entity.
func (b base) projection(c *Criteria) string {
	cols := c.columns
	if len(cols) == 0 {
		for _, f := range c.env.reg.Fields(c.typ) {
			cols = append(cols, column{expr: f.Name, as: c.alias + "_" + f.Name, table: c.alias})
		}
	}
	if len(cols) == 0 {
		return "*"
	}
	items := make([]string, len(cols))
	for i, col := range cols {
		var s string
		if col.table != "" {
			s = b.d.Qualify(col.table, col.expr)
		} else {
			s = b.expr(col.expr)
		}
		if col.as != "" {
			s += " AS " + b.d.Escape(col.as)
		}
		items[i] = s
	}
	return strings.Join(items, ", ")
}

// expr escapes a plain identifier. Qualified names, function calls and
// aliased expressions are used as given.
func (b base) expr(s string) string {
	if strings.ContainsAny(s, ".(") || asRe.MatchString(s) {
		return s
	}
	return b.d.Escape(s)
}

func (b base) orders(os []order) string {
	items := make([]string, len(os))
	for i, o := range os {
		items[i] = b.expr(o.expr)
		if o.dir != "" {
			items[i] += " " + o.dir
		}
	}
	return strings.Join(items, ", ")
}

// value renders an assignment value as a literal.
func (b base) value(a assignment) string {
	switch v := a.value.(type) {
	case nil:
		return "NULL"
	case string:
		if a.raw {
			return v
		}
	}
	if !a.typ.Quotable() {
		return strconv.Itoa(coerceInt(a.value))
	}
	return b.d.Quote(literal(a.value))
}
