package query

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/syssam/quarry"
	"github.com/syssam/quarry/schema/field"
)

type parseMode uint8

const (
	modeWhere parseMode = iota
	modeHaving
)

// comparison operators accepted in "field:OP" keys.
var comparisons = map[string]bool{
	"=": true, "!=": true, "<>": true, "<": true, "<=": true, ">": true, ">=": true, "<=>": true,
	"LIKE": true, "NOT LIKE": true, "IN": true, "NOT IN": true, "IS": true, "IS NOT": true,
}

// parse turns a condition expression into a condition tree. It returns a
// nil node for empty expressions.
//
// Accepted expressions, in order of precedence:
//   - an integer (or numeric string) matching a single integer primary key,
//     or a plain string matching a single string primary key
//   - a sequence of scalars matching a composite primary key
//   - a raw SQL predicate string
//   - a Fields or map[string]any keyed by "field", "field:OP",
//     "CONJ:field:OP" or "alias.field"
//   - a sequence of nested expressions and raw predicates
func (c *Criteria) parse(expr any, conj Conjunction, mode parseMode) (Node, error) {
	switch v := expr.(type) {
	case nil:
		return nil, nil
	case Node:
		return v, nil
	case string:
		return c.parseString(v, conj)
	case Fields:
		return c.parseFields(v, conj, mode)
	case []Pair:
		return c.parseFields(v, conj, mode)
	case map[string]any:
		return c.parseFields(fieldsOf(v), conj, mode)
	case []any:
		return c.parseList(v, conj, mode)
	}
	if n, ok := asInt64(expr); ok {
		return c.parseKey(n, conj)
	}
	if list, ok := asList(expr); ok {
		return c.parseList(list, conj, mode)
	}
	if pairs, ok := pairsOf(expr); ok {
		return c.parseFields(pairs, conj, mode)
	}
	return nil, quarry.NewQueryExpressionError(fmt.Sprint(expr), fmt.Sprintf("unsupported condition type %T", expr))
}

func (c *Criteria) parseString(s string, conj Conjunction) (Node, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	raw, err := conditional(s)
	if err != nil {
		return nil, err
	}
	if raw {
		return &Leaf{SQL: trimClause(s), Conj: conj}, nil
	}
	pk := c.env.reg.PrimaryKey(c.typ)
	pkType := c.env.reg.PrimaryKeyType(c.typ)
	switch {
	case pkType.Integer():
		if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return c.pkLeaf(pk[0], n, BindInt, conj), nil
		}
	case len(pk) == 1 && stringKey(pkType):
		return c.pkLeaf(pk[0], s, BindString, conj), nil
	}
	return &Leaf{SQL: trimClause(s), Conj: conj}, nil
}

func stringKey(t field.Type) bool {
	return t == field.TypeString || t == field.TypeEnum || t == field.TypeUUID
}

func (c *Criteria) parseKey(n int64, conj Conjunction) (Node, error) {
	pk := c.env.reg.PrimaryKey(c.typ)
	if !c.env.reg.PrimaryKeyType(c.typ).Integer() {
		return nil, quarry.NewQueryExpressionError(strconv.FormatInt(n, 10), "scalar condition needs a single integer primary key on "+c.typ)
	}
	return c.pkLeaf(pk[0], n, BindInt, conj), nil
}

func (c *Criteria) pkLeaf(col string, v any, t BindType, conj Conjunction) *Leaf {
	return &Leaf{
		SQL:     c.d.Qualify(c.qualifier(), col) + " = ?",
		Binding: &Binding{Value: v, Type: t},
		Conj:    conj,
		atom:    true,
	}
}

func (c *Criteria) parseList(list []any, conj Conjunction, mode parseMode) (Node, error) {
	if len(list) == 0 {
		return nil, nil
	}
	pk := c.env.reg.PrimaryKey(c.typ)
	if len(pk) > 1 && len(list) == len(pk) && scalar(list[0]) {
		raw := false
		if s, ok := list[0].(string); ok {
			var err error
			if raw, err = conditional(s); err != nil {
				return nil, err
			}
		}
		if !raw {
			g := &Group{}
			for i, col := range pk {
				t := BindInt
				if f, ok := c.env.reg.Field(c.typ, col); ok && f.Type.Quotable() {
					t = BindString
				}
				g.Members = append(g.Members, c.pkLeaf(col, list[i], t, conj))
			}
			return g, nil
		}
	}
	pairs := make(Fields, len(list))
	for i, v := range list {
		pairs[i] = Pair{Value: v}
	}
	return c.parseFields(pairs, conj, mode)
}

func (c *Criteria) parseFields(pairs Fields, conj Conjunction, mode parseMode) (Node, error) {
	g := &Group{}
	for i, p := range pairs {
		var (
			n   Node
			err error
		)
		if p.Key == "" {
			n, err = c.parseEntry(i, p.Value, conj, mode)
		} else {
			n, err = c.parseField(p.Key, p.Value, conj, mode)
		}
		if err != nil {
			return nil, err
		}
		if n != nil {
			g.Members = append(g.Members, n)
		}
	}
	if len(g.Members) == 0 {
		return nil, nil
	}
	return g, nil
}

// parseEntry handles a positional entry: a nested expression or a raw
// predicate. Anything else is logged and skipped.
func (c *Criteria) parseEntry(i int, v any, conj Conjunction, mode parseMode) (Node, error) {
	switch v := v.(type) {
	case Node:
		return v, nil
	case string:
		raw, err := conditional(v)
		if err != nil {
			return nil, err
		}
		if raw {
			return &Leaf{SQL: trimClause(v), Conj: conj}, nil
		}
	case []any, Fields, []Pair, map[string]any:
		return c.parse(v, conj, mode)
	default:
		if list, ok := asList(v); ok {
			return c.parseList(list, conj, mode)
		}
	}
	c.env.logger.Error("malformed condition entry skipped", "type", c.typ, "entry", i, "value", v)
	return nil, nil
}

// parseField handles a keyed entry.
func (c *Criteria) parseField(key string, val any, conj Conjunction, mode parseMode) (Node, error) {
	if !scalar(val) && val != nil {
		if _, ok := asList(val); !ok {
			return nil, quarry.NewQueryExpressionError(key, fmt.Sprintf("unsupported value type %T", val))
		}
	}
	name, op := key, "="
	switch parts := strings.Split(key, ":"); len(parts) {
	case 1:
	case 2:
		name, op = parts[0], parts[1]
		// "field:OR" sets the conjunction of an equality test.
		if cj, ok := parseConjunction(op); ok {
			conj, op = cj, "="
		}
	case 3:
		cj, ok := parseConjunction(parts[0])
		if !ok {
			return nil, quarry.NewQueryExpressionError(key, "unknown conjunction "+parts[0])
		}
		conj, name, op = cj, parts[1], parts[2]
	default:
		return nil, quarry.NewQueryExpressionError(key, "too many ':' separators")
	}
	op = strings.Join(strings.Fields(toUpper(op)), " ")
	if !comparisons[op] {
		return nil, quarry.NewQueryExpressionError(key, "unsupported operator "+op)
	}
	name = strings.TrimSpace(name)
	raw, err := conditional(name)
	if err != nil {
		return nil, err
	}
	if raw {
		return c.rawKey(name, val, conj), nil
	}
	alias, typ := c.qualifier(), c.typ
	if i := strings.Index(name, "."); i >= 0 {
		alias, name = c.d.Trim(name[:i]), c.d.Trim(name[i+1:])
		typ = c.aliasType(alias)
	}
	if name == "" {
		return nil, quarry.NewQueryExpressionError(key, "missing field name")
	}
	f, ok := c.resolveField(typ, name)
	var col string
	switch {
	case ok:
		col = c.d.Qualify(alias, f.Name)
	case typ == "" && mode == modeWhere:
		return nil, quarry.NewQueryExpressionError(key, "unknown alias "+alias)
	case mode == modeHaving && alias == c.qualifier():
		col = c.d.Escape(name)
	case mode == modeHaving:
		col = c.d.Qualify(alias, name)
	default:
		return nil, quarry.NewQueryExpressionError(key, "unknown field of "+typ)
	}
	if val == nil {
		switch op {
		case "!=", "<>", "IS NOT":
			op = "IS NOT"
		default:
			op = "IS"
		}
		return &Leaf{SQL: col + " " + op + " NULL", Conj: conj, atom: true}, nil
	}
	bt := bindTypeOf(val)
	if ok {
		bt = BindString
		if !f.Type.Quotable() {
			bt = BindInt
		}
	}
	if list, isList := asList(val); isList {
		if op != "IN" && op != "NOT IN" {
			return nil, quarry.NewQueryExpressionError(key, "list values need IN or NOT IN")
		}
		return &Leaf{SQL: col + " " + op + " (" + c.inList(key, list, bt) + ")", Conj: conj, atom: true}, nil
	}
	placeholder := "?"
	if op == "IN" || op == "NOT IN" {
		placeholder = "(?)"
	}
	return &Leaf{
		SQL:     col + " " + op + " " + placeholder,
		Binding: &Binding{Value: val, Type: bt},
		Conj:    conj,
		atom:    true,
	}, nil
}

// rawKey turns a predicate used as a mapping key into a leaf. A single
// placeholder in the key binds the value.
func (c *Criteria) rawKey(clause string, val any, conj Conjunction) *Leaf {
	l := &Leaf{SQL: trimClause(clause), Conj: conj}
	if strings.Count(clause, "?") == 1 {
		if val == nil {
			l.Binding = &Binding{Type: BindNull}
		} else {
			l.Binding = &Binding{Value: val, Type: bindTypeOf(val)}
		}
	}
	return l
}

// aliasType returns the entity type bound to alias, or "" if none is.
func (c *Criteria) aliasType(alias string) string {
	if alias == c.qualifier() || alias == c.alias {
		return c.typ
	}
	return c.aliases[alias]
}

func (c *Criteria) resolveField(typ, name string) (*fieldRef, bool) {
	if typ == "" {
		return nil, false
	}
	if f, ok := c.env.reg.Field(typ, name); ok {
		return &fieldRef{Name: f.Name, Type: f.Type}, true
	}
	if real, ok := c.env.reg.FieldAlias(typ, name); ok {
		if f, ok := c.env.reg.Field(typ, real); ok {
			return &fieldRef{Name: f.Name, Type: f.Type}, true
		}
	}
	return nil, false
}

type fieldRef struct {
	Name string
	Type field.Type
}

// inList renders the literal list of an IN predicate.
func (c *Criteria) inList(key string, list []any, bt BindType) string {
	items := make([]string, 0, len(list))
	for _, v := range list {
		switch {
		case v == nil:
			items = append(items, "NULL")
		case bt == BindInt:
			items = append(items, strconv.FormatInt(int64(coerceInt(v)), 10))
		default:
			items = append(items, c.d.Quote(literal(v)))
		}
	}
	if len(items) == 0 {
		c.env.logger.Error("empty list in condition", "type", c.typ, "clause", key)
	}
	return strings.Join(items, ",")
}

// literal formats v for inlining into a quoted SQL string.
func literal(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.DateTime)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func bindTypeOf(v any) BindType {
	switch v.(type) {
	case nil:
		return BindNull
	case bool:
		return BindInt
	}
	if _, ok := asInt64(v); ok {
		return BindInt
	}
	return BindString
}

// scalar reports whether v is a single value rather than a collection.
func scalar(v any) bool {
	if v == nil {
		return false
	}
	switch v.(type) {
	case []byte, time.Time, fmt.Stringer:
		return true
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct, reflect.Func, reflect.Chan:
		return false
	}
	return true
}

// asInt64 converts Go integer kinds.
func asInt64(v any) (int64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > 1<<63-1 {
			return 0, false
		}
		return int64(u), true
	}
	return 0, false
}

// asList converts any slice or array, except byte slices and fixed-size
// byte arrays such as UUIDs, to []any.
func asList(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if l, ok := v.([]any); ok {
		return l, true
	}
	if _, ok := v.(fmt.Stringer); ok {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return nil, false
		}
	default:
		return nil, false
	}
	list := make([]any, rv.Len())
	for i := range list {
		list[i] = rv.Index(i).Interface()
	}
	return list, true
}

// pairsOf converts supported mapping types to Fields.
func pairsOf(v any) (Fields, bool) {
	switch v := v.(type) {
	case Fields:
		return v, true
	case []Pair:
		return v, true
	case map[string]any:
		return fieldsOf(v), true
	}
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	m := make(map[string]any, rv.Len())
	for it := rv.MapRange(); it.Next(); {
		m[it.Key().String()] = it.Value().Interface()
	}
	return fieldsOf(m), true
}
