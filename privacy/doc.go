// Package privacy provides rules that decide whether a statement may run,
// and may narrow it before it is compiled.
//
// A Policy is an ordered list of rules and implements query.Policy, so it
// is installed on an environment with query.WithPolicy:
//
//	env := query.NewEnv(catalog,
//	    query.WithDriver(drv),
//	    query.WithPolicy(privacy.Policies{
//	        "Post": {
//	            privacy.DenyIfNoViewer(),
//	            privacy.DenyCommandRule(query.Delete),
//	            privacy.HasRole("admin"),
//	            privacy.TenantRule("tenant_id"),
//	        },
//	    }),
//	)
//
// # Rule Evaluation
//
// Rules are evaluated in order until one returns a final decision:
//
//   - Allow: the statement runs and evaluation stops
//   - Deny: the statement is rejected and evaluation stops
//   - Skip (or nil): evaluation continues with the next rule
//
// A policy whose rules all skip lets the statement run. End the chain with
// AlwaysDenyRule to deny by default.
//
// Rules receive the criteria the statement is compiled from. Filter rules
// such as OwnerRule and TenantRule restrict it with a condition ANDed with
// the whole WHERE clause and skip, so the statement only reaches the rows
// the viewer may see or change. The
// executor hands rules a copy, so the caller's criteria is left untouched.
//
// # Viewer
//
// The viewer is stored in the context and read by the built-in rules:
//
//	ctx := privacy.WithViewer(ctx, &privacy.SimpleViewer{
//	    UserID:   "42",
//	    Roles:    []string{"user"},
//	    TenantID: "acme",
//	})
//	posts, err := env.Query("Post").All(ctx)
//
// A decision attached with DecisionContext bypasses the rules entirely,
// which is useful for internal jobs that must see every row.
package privacy
