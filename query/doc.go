// Package query builds SQL statements from composable criteria over the
// entity types of a schema registry, and rebuilds entity graphs from the
// rows those statements return.
//
// # Criteria
//
// A Criteria is created from an Env and describes one statement:
//
//	env := query.NewEnv(catalog, query.WithDriver(drv))
//	users := env.Query("User", "u").
//		Where(query.Fields{
//			{Key: "status", Value: "active"},
//			{Key: "age:>=", Value: 18},
//		}).
//		OrWhere("u.role = 'admin'").
//		SortBy("u.created_at", "DESC").
//		Limit(20)
//
// Conditions are accepted as primary key shortcuts (an integer, a string or
// a composite key sequence), raw predicate strings, field-keyed mappings
// ("field", "field:OP", "OR:field:OP", "alias.field") and nested sequences
// of those. Raw fragments go through an injection guard. A rejected
// condition is logged, recorded in Err, and forces the WHERE clause to a
// predicate that never matches.
//
// # Graphs
//
// BindGraph eager-loads relations with LEFT JOINs and prefixed columns:
//
//	g, _ := query.ParseGraphQL(`{ posts { comments } profile }`)
//	all, err := env.Query("User").BindGraph(g).All(ctx)
//
// The result is a Collection of entities keyed by primary key, with
// related entities reachable through One and Many.
//
// # Dialects
//
// Statements compile for MySQL, SQLite and PostgreSQL. Compile is pure:
// compiling a criteria twice yields the same SQL and bindings.
package query
