package privacy

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/syssam/quarry/query"
)

// Policy decision sentinel errors.
//
// These errors are used as return values from rules to indicate how the
// policy evaluation should proceed. Use errors.Is() to check for them:
//
//	if errors.Is(err, privacy.Allow) { ... }
//	if errors.Is(err, privacy.Deny) { ... }
//	if errors.Is(err, privacy.Skip) { ... }
var (
	// Allow may be returned by rules to indicate that the policy
	// evaluation should terminate with an allow decision.
	Allow = errors.New("quarry/privacy: allow rule")

	// Deny may be returned by rules to indicate that the policy
	// evaluation should terminate with a deny decision.
	Deny = errors.New("quarry/privacy: deny rule")

	// Skip may be returned by rules to indicate that the policy
	// evaluation should continue to the next rule in the chain.
	Skip = errors.New("quarry/privacy: skip rule")
)

// Allowf returns a formatted wrapped Allow decision.
func Allowf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Allow)...)
}

// Denyf returns a formatted wrapped Deny decision.
func Denyf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Deny)...)
}

// Skipf returns a formatted wrapped Skip decision.
func Skipf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Skip)...)
}

// QueryRule decides whether a statement may run, and may narrow it by
// adding conditions to the criteria it receives.
type QueryRule interface {
	EvalQuery(context.Context, *query.Criteria) error
}

// QueryRuleFunc type is an adapter which allows the use of ordinary
// functions as query rules.
type QueryRuleFunc func(context.Context, *query.Criteria) error

// EvalQuery returns f(ctx, c).
func (f QueryRuleFunc) EvalQuery(ctx context.Context, c *query.Criteria) error {
	return f(ctx, c)
}

// AlwaysAllowRule returns a rule that always returns an Allow decision.
func AlwaysAllowRule() QueryRule {
	return fixedDecision{Allow}
}

// AlwaysDenyRule returns a rule that always returns a Deny decision.
func AlwaysDenyRule() QueryRule {
	return fixedDecision{Deny}
}

// ContextQueryRule creates a rule from a context evaluation function.
// Returning nil is equivalent to returning Skip.
func ContextQueryRule(eval func(context.Context) error) QueryRule {
	return QueryRuleFunc(func(ctx context.Context, _ *query.Criteria) error {
		return eval(ctx)
	})
}

// OnCommand evaluates the given rule only for statements with one of the
// given commands.
func OnCommand(rule QueryRule, cmds ...query.Command) QueryRule {
	return QueryRuleFunc(func(ctx context.Context, c *query.Criteria) error {
		if slices.Contains(cmds, c.Verb()) {
			return rule.EvalQuery(ctx, c)
		}
		return Skip
	})
}

// OnType evaluates the given rule only for criteria over the given entity
// types.
func OnType(rule QueryRule, types ...string) QueryRule {
	return QueryRuleFunc(func(ctx context.Context, c *query.Criteria) error {
		if slices.Contains(types, c.Type()) {
			return rule.EvalQuery(ctx, c)
		}
		return Skip
	})
}

// DenyCommandRule returns a rule denying the given command.
func DenyCommandRule(cmd query.Command) QueryRule {
	rule := QueryRuleFunc(func(_ context.Context, c *query.Criteria) error {
		return Denyf("quarry/privacy: %s on %s is not allowed", cmd, c.Type())
	})
	return OnCommand(rule, cmd)
}

// AllowCommandRule returns a rule allowing the given command.
func AllowCommandRule(cmd query.Command) QueryRule {
	return OnCommand(AlwaysAllowRule(), cmd)
}

// Policy is an ordered chain of rules. It implements query.Policy: the
// first Allow decision stops the evaluation with a nil error, the first
// Deny (or any other error) rejects the statement. A chain without a
// decision allows the statement.
type Policy []QueryRule

var _ query.Policy = Policy(nil)

// EvalQuery evaluates the rules against c.
func (p Policy) EvalQuery(ctx context.Context, c *query.Criteria) error {
	if decision, ok := DecisionFromContext(ctx); ok {
		return decision
	}
	for _, rule := range p {
		switch decision := rule.EvalQuery(ctx, c); {
		case decision == nil || errors.Is(decision, Skip):
		case errors.Is(decision, Allow):
			return nil
		default:
			return decision
		}
	}
	return nil
}

// Policies combines per-type policies into a single query.Policy. Criteria
// over a type without a policy are allowed.
type Policies map[string]Policy

var _ query.Policy = Policies(nil)

// EvalQuery evaluates the policy registered for the criteria's type.
func (p Policies) EvalQuery(ctx context.Context, c *query.Criteria) error {
	return p[c.Type()].EvalQuery(ctx, c)
}

type decisionCtxKey struct{}

// DecisionContext creates a new context from the given parent context with
// a policy decision attached to it.
func DecisionContext(parent context.Context, decision error) context.Context {
	if decision == nil || errors.Is(decision, Skip) {
		return parent
	}
	return context.WithValue(parent, decisionCtxKey{}, decision)
}

// DecisionFromContext retrieves the policy decision from the context.
func DecisionFromContext(ctx context.Context) (error, bool) {
	decision, ok := ctx.Value(decisionCtxKey{}).(error)
	if ok && errors.Is(decision, Allow) {
		decision = nil
	}
	return decision, ok
}

type fixedDecision struct {
	decision error
}

func (f fixedDecision) EvalQuery(context.Context, *query.Criteria) error {
	return f.decision
}

// Filter is the part of a criteria a filter rule may use to narrow it.
// Restrict ANDs a condition with the whole WHERE clause; Where joins the
// caller's own conditions and can be widened by an OR.
type Filter interface {
	Type() string
	Where(expr any, conj ...query.Conjunction) *query.Criteria
	Restrict(expr any) *query.Criteria
}

var _ Filter = (*query.Criteria)(nil)

// FilterFunc is an adapter that allows using ordinary functions as rules
// that add conditions to the statement.
//
//	privacy.FilterFunc(func(ctx context.Context, f privacy.Filter) error {
//		f.Restrict(query.Fields{{Key: "workspace_id", Value: workspaceID}})
//		return privacy.Skip
//	})
type FilterFunc func(context.Context, Filter) error

// EvalQuery calls f(ctx, c).
func (f FilterFunc) EvalQuery(ctx context.Context, c *query.Criteria) error {
	return f(ctx, c)
}
