package privacy

import (
	"context"
	"slices"

	"github.com/syssam/quarry/query"
)

// Viewer represents the authenticated user making a request.
// This interface should be implemented by application-specific user types.
type Viewer interface {
	// GetID returns the viewer's unique identifier.
	GetID() string
	// GetRoles returns the viewer's roles.
	GetRoles() []string
	// GetTenantID returns the viewer's tenant identifier for multi-tenancy.
	// Returns empty string if not applicable.
	GetTenantID() string
}

type viewerCtxKey struct{}

// WithViewer returns a new context with the viewer attached.
func WithViewer(ctx context.Context, viewer Viewer) context.Context {
	return context.WithValue(ctx, viewerCtxKey{}, viewer)
}

// ViewerFromContext retrieves the viewer from the context.
// Returns nil if no viewer is present.
func ViewerFromContext(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerCtxKey{}).(Viewer)
	return v
}

// SimpleViewer is a basic implementation of the Viewer interface.
type SimpleViewer struct {
	UserID   string
	Roles    []string
	TenantID string
}

// GetID returns the user ID.
func (v *SimpleViewer) GetID() string { return v.UserID }

// GetRoles returns the user's roles.
func (v *SimpleViewer) GetRoles() []string { return v.Roles }

// GetTenantID returns the tenant ID.
func (v *SimpleViewer) GetTenantID() string { return v.TenantID }

// DenyIfNoViewer returns a rule that denies access if no viewer is present
// in the context. It is typically the first rule of a policy.
func DenyIfNoViewer() QueryRule {
	return ContextQueryRule(func(ctx context.Context) error {
		if ViewerFromContext(ctx) == nil {
			return Denyf("quarry/privacy: viewer required")
		}
		return Skip
	})
}

// HasRole returns a rule that allows the statement if the viewer has the
// given role, and skips otherwise.
//
//	privacy.Policy{
//	    privacy.DenyIfNoViewer(),
//	    privacy.HasRole("admin"),
//	    privacy.AlwaysDenyRule(),
//	}
func HasRole(role string) QueryRule {
	return HasAnyRole(role)
}

// HasAnyRole returns a rule that allows the statement if the viewer has any
// of the given roles, and skips otherwise.
func HasAnyRole(roles ...string) QueryRule {
	return ContextQueryRule(func(ctx context.Context) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		if slices.ContainsFunc(roles, func(role string) bool {
			return slices.Contains(viewer.GetRoles(), role)
		}) {
			return Allow
		}
		return Skip
	})
}

// OwnerRule returns a filter rule restricting the statement to rows whose
// field holds the viewer's ID. Statements without a viewer are denied.
//
//	privacy.Policy{
//	    privacy.HasRole("admin"),
//	    privacy.OwnerRule("author_id"),
//	}
func OwnerRule(field string) QueryRule {
	return FilterFunc(func(ctx context.Context, f Filter) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Denyf("quarry/privacy: viewer required for owner-filtered %s", f.Type())
		}
		f.Restrict(query.Fields{{Key: field, Value: viewer.GetID()}})
		return Skip
	})
}

// TenantRule returns a filter rule restricting the statement to rows whose
// field holds the viewer's tenant. Statements without a viewer or a tenant
// are denied.
func TenantRule(field string) QueryRule {
	return FilterFunc(func(ctx context.Context, f Filter) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Denyf("quarry/privacy: viewer required for tenant-filtered %s", f.Type())
		}
		tenant := viewer.GetTenantID()
		if tenant == "" {
			return Denyf("quarry/privacy: tenant required")
		}
		f.Restrict(query.Fields{{Key: field, Value: tenant}})
		return Skip
	})
}
