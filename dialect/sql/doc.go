// Package sql runs compiled statements against database/sql connections.
//
// Open resolves a dialect name to the database/sql driver registered for it
// (go-sql-driver/mysql, lib/pq or modernc.org/sqlite) and returns a Driver
// implementing dialect.Driver:
//
//	drv, err := sql.Open(dialect.SQLite, "file:app.db")
//	if err != nil {
//		return err
//	}
//	defer drv.Close()
//
// NewStatsDriver and NewDebugDriver wrap any dialect.Driver with statement
// counters and statement logging. ScanMaps turns a result set into ordered
// column maps, the input format of the hydrator.
package sql
