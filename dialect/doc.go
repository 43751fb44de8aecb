// Package dialect describes the SQL dialects quarry compiles for and the
// driver interfaces statements run through.
//
// Three dialects are supported:
//
//	dialect.MySQL    = "mysql"
//	dialect.Postgres = "postgres"
//	dialect.SQLite   = "sqlite"
//
// Get returns the identifier escaping and string quoting rules of a
// dialect:
//
//	d, _ := dialect.Get(dialect.Postgres)
//	d.Qualify("u", "email") // "u"."email"
//	d.Quote("it's")         // 'it''s'
//
// A Driver runs statements. The dialect/sql package provides the
// database/sql backed implementation along with statistics and debug
// wrappers:
//
//	drv, err := sql.Open(dialect.Postgres, "postgres://...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//	env := query.NewEnv(catalog, query.WithDriver(sql.NewStatsDriver(drv)))
package dialect
