package query

import (
	"context"
	"errors"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/quarry"
	"github.com/syssam/quarry/dialect/sql"
	"github.com/syssam/quarry/dialect/sql/sqlgraph"
)

// ErrNoDriver is returned when a criteria is executed by an Env without a
// driver.
var ErrNoDriver = errors.New("query: no driver configured")

// Statement compiles the criteria after the Env policy has run on a copy
// of it. The criteria itself is never modified.
func (c *Criteria) Statement(ctx context.Context) (*Statement, error) {
	q := c
	if c.env.policy != nil {
		q = c.Clone()
		if err := c.env.policy.EvalQuery(ctx, q); err != nil {
			return nil, err
		}
	}
	return c.env.Compile(q)
}

// Rows runs the statement and returns the result rows as column maps.
// Results are served from the Env cache when one is configured.
func (c *Criteria) Rows(ctx context.Context) ([]map[string]any, error) {
	st, err := c.Statement(ctx)
	if err != nil {
		return nil, err
	}
	return c.rows(ctx, "select", st)
}

// All runs the statement and hydrates the result. With a bound graph the
// related entities are attached to their parents.
func (c *Criteria) All(ctx context.Context) (*Collection, error) {
	rows, err := c.Rows(ctx)
	if err != nil {
		return nil, err
	}
	return c.Hydrate(rows)
}

// First returns the first entity of the result. It returns a NotFoundError
// when the result is empty. Without a bound graph only one row is fetched.
func (c *Criteria) First(ctx context.Context) (*Entity, error) {
	q := c
	if len(c.graph) == 0 {
		q = c.Clone()
		q.Limit(1, c.offset)
	}
	all, err := q.All(ctx)
	if err != nil {
		return nil, err
	}
	e := all.First()
	if e == nil {
		return nil, quarry.NewNotFoundError(c.typ)
	}
	return e, nil
}

// Count returns the number of rows the statement selects. With a bound
// graph it counts distinct root entities, not joined rows.
func (c *Criteria) Count(ctx context.Context) (int, error) {
	q := c
	if len(c.graph) > 0 {
		q = c.Clone()
		q.columns = nil
		for _, pk := range c.env.reg.PrimaryKey(c.typ) {
			q.columns = append(q.columns, column{expr: pk, table: c.qualifier()})
		}
		q.distinct = true
		q.orderBy = nil
		q.graph, q.bound = nil, nil
	}
	st, err := q.Statement(ctx)
	if err != nil {
		return 0, err
	}
	d := c.d
	count := &Statement{
		SQL:      "SELECT COUNT(*) AS " + d.Escape("count") + " FROM (" + st.SQL + ") AS " + d.Escape("q"),
		Bindings: st.Bindings,
		Table:    st.Table,
	}
	rows, err := c.rows(ctx, "count", count)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := toInt64(rows[0]["count"])
	if err != nil {
		return 0, quarry.NewExecutionError(c.typ, "count", err)
	}
	return int(n), nil
}

// Exec runs an UPDATE or DELETE statement and returns the number of
// affected rows. Cached results of the root table are dropped.
func (c *Criteria) Exec(ctx context.Context) (int64, error) {
	if c.command == Select {
		return 0, quarry.NewCompileError(c.typ, "Exec needs an UPDATE or DELETE command")
	}
	st, err := c.Statement(ctx)
	if err != nil {
		return 0, err
	}
	op := toLower(string(c.command))
	if c.env.driver == nil {
		return 0, quarry.NewExecutionError(c.typ, op, ErrNoDriver)
	}
	var res sql.Result
	query, args := st.Query()
	if err := c.env.driver.Exec(ctx, query, args, &res); err != nil {
		return 0, quarry.NewExecutionError(c.typ, op, sqlgraph.Wrap(err))
	}
	if c.env.cache != nil {
		if err := c.env.cache.DeletePrefix(ctx, st.Table+":"); err != nil {
			c.env.logger.Warn("cache invalidation failed", "type", c.typ, "table", st.Table, "err", err)
		}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, quarry.NewExecutionError(c.typ, op, err)
	}
	return n, nil
}

func (c *Criteria) rows(ctx context.Context, op string, st *Statement) ([]map[string]any, error) {
	if c.env.driver == nil {
		return nil, quarry.NewExecutionError(c.typ, op, ErrNoDriver)
	}
	query, args := st.Query()
	if c.env.cache == nil {
		return c.query(ctx, op, query, args)
	}
	key := quarry.CacheKey{Table: st.Table, SQL: query, Args: args}.String()
	if b, err := c.env.cache.Get(ctx, key); err != nil {
		c.env.logger.Warn("cache read failed", "type", c.typ, "err", err)
	} else if b != nil {
		var rows []map[string]any
		if err := msgpack.Unmarshal(b, &rows); err == nil {
			return rows, nil
		}
		c.env.logger.Warn("cached rows discarded", "type", c.typ, "err", err)
	}
	// Concurrent misses on one key share a single round trip.
	v, err, _ := c.env.flight.Do(key, func() (any, error) {
		rows, err := c.query(ctx, op, query, args)
		if err != nil {
			return nil, err
		}
		b, err := msgpack.Marshal(rows)
		if err == nil {
			err = c.env.cache.Set(ctx, key, b, c.env.ttl)
		}
		if err != nil {
			c.env.logger.Warn("cache write failed", "type", c.typ, "err", err)
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]map[string]any), nil
}

func (c *Criteria) query(ctx context.Context, op, query string, args []any) ([]map[string]any, error) {
	var rows sql.Rows
	if err := c.env.driver.Query(ctx, query, args, &rows); err != nil {
		return nil, quarry.NewExecutionError(c.typ, op, sqlgraph.Wrap(err))
	}
	maps, err := sql.ScanMaps(rows)
	if err != nil {
		return nil, quarry.NewExecutionError(c.typ, op, err)
	}
	return maps, nil
}
