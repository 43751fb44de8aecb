package query

import "strings"

// renderer accumulates the bindings of rendered conditions in placeholder
// order.
type renderer struct {
	bindings []Binding
}

// clause renders every group of c. It returns "" for an empty clause.
func (r *renderer) clause(c *Clause) string {
	sql, _ := r.scope(c)
	return sql
}

// scope renders c like clause and reports whether the result is closed:
// a parenthesised group or a single field predicate, which another
// predicate can be ANDed with without changing its meaning.
func (r *renderer) scope(c *Clause) (string, bool) {
	if c.Empty() {
		return "", false
	}
	top := &Group{}
	for _, g := range c.Groups() {
		top.Members = append(top.Members, g)
	}
	sql, _, closed := r.node(top)
	return sql, closed
}

// part is a rendered predicate and whether it is closed.
type part struct {
	sql    string
	closed bool
}

// conjoin ANDs the non-empty parts. When there is more than one, the parts
// that are not closed are parenthesised.
func conjoin(parts ...part) string {
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.sql != "" {
			items = append(items, p.sql)
		}
	}
	if len(items) < 2 {
		return strings.Join(items, "")
	}
	items = items[:0]
	for _, p := range parts {
		switch {
		case p.sql == "":
		case p.closed:
			items = append(items, p.sql)
		default:
			items = append(items, "("+p.sql+")")
		}
	}
	return strings.Join(items, " AND ")
}

// node renders n and reports the conjunction joining it to its previous
// sibling, and whether the result is closed. Empty nodes render "".
func (r *renderer) node(n Node) (string, Conjunction, bool) {
	switch n := n.(type) {
	case *Leaf:
		sql := strings.TrimSpace(n.SQL)
		if sql == "" {
			return "", n.Conj, false
		}
		if n.Binding != nil {
			r.bindings = append(r.bindings, *n.Binding)
		}
		return sql, n.Conj, n.atom
	case *Group:
		return r.group(n)
	default:
		return "", And, false
	}
}

func (r *renderer) group(g *Group) (string, Conjunction, bool) {
	var (
		b      strings.Builder
		conj   Conjunction
		count  int
		closed bool
	)
	for _, m := range g.Members {
		sql, cj, cl := r.node(m)
		if sql == "" {
			continue
		}
		if count == 0 {
			conj = cj
			closed = cl
		} else {
			if cj == "" {
				cj = And
			}
			b.WriteString(" " + string(cj) + " ")
		}
		b.WriteString(sql)
		count++
	}
	switch count {
	case 0:
		return "", And, false
	case 1:
		return b.String(), conj, closed
	default:
		return "(" + b.String() + ")", conj, true
	}
}

// RenderClause renders a condition tree the way the WHERE clause of a
// statement renders it, returning the SQL and its bindings.
func RenderClause(n Node) (string, []Binding) {
	var r renderer
	sql, _, _ := r.node(n)
	return sql, r.bindings
}
