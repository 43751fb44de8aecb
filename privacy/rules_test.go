package privacy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/quarry/privacy"
	"github.com/syssam/quarry/query"
)

func TestSimpleViewer(t *testing.T) {
	viewer := &privacy.SimpleViewer{
		UserID:   "user-123",
		Roles:    []string{"admin", "user"},
		TenantID: "tenant-abc",
	}
	assert.Equal(t, "user-123", viewer.GetID())
	assert.Equal(t, []string{"admin", "user"}, viewer.GetRoles())
	assert.Equal(t, "tenant-abc", viewer.GetTenantID())
}

func TestViewerContext(t *testing.T) {
	t.Run("WithViewer_and_ViewerFromContext", func(t *testing.T) {
		ctx := privacy.WithViewer(context.Background(), &privacy.SimpleViewer{UserID: "user-123"})
		retrieved := privacy.ViewerFromContext(ctx)
		require.NotNil(t, retrieved)
		assert.Equal(t, "user-123", retrieved.GetID())
	})
	t.Run("ViewerFromContext_returns_nil_without_viewer", func(t *testing.T) {
		assert.Nil(t, privacy.ViewerFromContext(context.Background()))
	})
	t.Run("ViewerFromContext_returns_nil_with_wrong_type", func(t *testing.T) {
		type wrongKey struct{}
		ctx := context.WithValue(context.Background(), wrongKey{}, "not a viewer")
		assert.Nil(t, privacy.ViewerFromContext(ctx))
	})
}

func TestDenyIfNoViewer(t *testing.T) {
	rule := privacy.DenyIfNoViewer()
	c := testEnv().Query("Post")
	err := rule.EvalQuery(context.Background(), c)
	assert.ErrorIs(t, err, privacy.Deny)
	assert.ErrorContains(t, err, "viewer required")

	ctx := privacy.WithViewer(context.Background(), &privacy.SimpleViewer{UserID: "1"})
	assert.ErrorIs(t, rule.EvalQuery(ctx, c), privacy.Skip)
}

func TestHasRole(t *testing.T) {
	c := testEnv().Query("Post")
	tests := []struct {
		name   string
		viewer privacy.Viewer
		rule   privacy.QueryRule
		want   error
	}{
		{name: "no_viewer", rule: privacy.HasRole("admin"), want: privacy.Skip},
		{name: "has_role", viewer: &privacy.SimpleViewer{Roles: []string{"user", "admin"}}, rule: privacy.HasRole("admin"), want: privacy.Allow},
		{name: "missing_role", viewer: &privacy.SimpleViewer{Roles: []string{"user"}}, rule: privacy.HasRole("admin"), want: privacy.Skip},
		{name: "any_role", viewer: &privacy.SimpleViewer{Roles: []string{"moderator"}}, rule: privacy.HasAnyRole("admin", "moderator"), want: privacy.Allow},
		{name: "none_of_roles", viewer: &privacy.SimpleViewer{Roles: []string{"user"}}, rule: privacy.HasAnyRole("admin", "moderator"), want: privacy.Skip},
		{name: "no_roles", viewer: &privacy.SimpleViewer{}, rule: privacy.HasAnyRole(), want: privacy.Skip},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.viewer != nil {
				ctx = privacy.WithViewer(ctx, tt.viewer)
			}
			assert.ErrorIs(t, tt.rule.EvalQuery(ctx, c), tt.want)
		})
	}
}

func TestOwnerRule(t *testing.T) {
	env := testEnv(query.WithPolicy(privacy.Policy{privacy.OwnerRule("author_id")}))

	_, err := env.Query("Post").Statement(context.Background())
	assert.ErrorIs(t, err, privacy.Deny)
	assert.ErrorContains(t, err, "owner-filtered Post")

	ctx := privacy.WithViewer(context.Background(), &privacy.SimpleViewer{UserID: "42"})
	st, err := env.Query("Post").Command(query.Delete).Where(7).Statement(ctx)
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM `posts` WHERE `posts`.`id` = ? AND `posts`.`author_id` = ?", st.SQL)
	assert.Equal(t, []any{int64(7), "42"}, st.Args())

	st, err = env.Query("Post").Select("id").
		Where(query.Fields{{Key: "id", Value: 1}}).
		OrWhere(query.Fields{{Key: "author_id", Value: "7"}}).
		Statement(ctx)
	require.NoError(t, err)
	assert.Equal(t, "SELECT `id` FROM `posts` AS `Post` WHERE (`Post`.`id` = ? OR `Post`.`author_id` = ?) AND `Post`.`author_id` = ?", st.SQL)
	assert.Equal(t, []any{1, "7", "42"}, st.Args())
}

func TestTenantRule(t *testing.T) {
	env := testEnv(query.WithPolicy(privacy.Policy{privacy.TenantRule("tenant_id")}))
	tests := []struct {
		name   string
		viewer privacy.Viewer
		deny   string
	}{
		{name: "no_viewer", deny: "viewer required for tenant-filtered Post"},
		{name: "no_tenant", viewer: &privacy.SimpleViewer{UserID: "1"}, deny: "tenant required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.viewer != nil {
				ctx = privacy.WithViewer(ctx, tt.viewer)
			}
			_, err := env.Query("Post").Statement(ctx)
			assert.ErrorIs(t, err, privacy.Deny)
			assert.ErrorContains(t, err, tt.deny)
		})
	}
	t.Run("filters_by_tenant", func(t *testing.T) {
		ctx := privacy.WithViewer(context.Background(), &privacy.SimpleViewer{UserID: "1", TenantID: "acme"})
		st, err := env.Query("Post").Command(query.Update).Set(query.Fields{{Key: "author_id", Value: "2"}}).Statement(ctx)
		require.NoError(t, err)
		assert.Equal(t, "UPDATE `posts` SET `author_id` = '2' WHERE `posts`.`tenant_id` = ?", st.SQL)
		assert.Equal(t, []any{"acme"}, st.Args())
	})
	t.Run("or_stays_inside_tenant", func(t *testing.T) {
		ctx := privacy.WithViewer(context.Background(), &privacy.SimpleViewer{UserID: "1", TenantID: "t1"})
		st, err := env.Query("Post").Select("id").Where("1 = 1").OrWhere("2 = 2").Statement(ctx)
		require.NoError(t, err)
		assert.Equal(t, "SELECT `id` FROM `posts` AS `Post` WHERE (1 = 1 OR 2 = 2) AND `Post`.`tenant_id` = ?", st.SQL)
		assert.Equal(t, []any{"t1"}, st.Args())

		st, err = env.Query("Post").Select("id").Where("tenant_id = 't2' OR 1 = 1").Statement(ctx)
		require.NoError(t, err)
		assert.Equal(t, "SELECT `id` FROM `posts` AS `Post` WHERE (tenant_id = 't2' OR 1 = 1) AND `Post`.`tenant_id` = ?", st.SQL)
	})
}

func TestIntegratedPolicyChain(t *testing.T) {
	policy := privacy.Policies{
		"Post": {
			privacy.DenyIfNoViewer(),
			privacy.DenyCommandRule(query.Delete),
			privacy.HasRole("admin"),
			privacy.TenantRule("tenant_id"),
		},
	}
	env := testEnv(query.WithPolicy(policy))
	admin := privacy.WithViewer(context.Background(), &privacy.SimpleViewer{UserID: "1", Roles: []string{"admin"}, TenantID: "acme"})
	member := privacy.WithViewer(context.Background(), &privacy.SimpleViewer{UserID: "2", Roles: []string{"user"}, TenantID: "acme"})

	_, err := env.Query("Post").Statement(context.Background())
	assert.ErrorIs(t, err, privacy.Deny)

	_, err = env.Query("Post").Command(query.Delete).Statement(admin)
	assert.ErrorIs(t, err, privacy.Deny, "delete is denied before roles are checked")

	st, err := env.Query("Post").Select("id").Statement(admin)
	require.NoError(t, err)
	assert.Equal(t, "SELECT `id` FROM `posts` AS `Post`", st.SQL)

	st, err = env.Query("Post").Select("id").Statement(member)
	require.NoError(t, err)
	assert.Equal(t, "SELECT `id` FROM `posts` AS `Post` WHERE `Post`.`tenant_id` = ?", st.SQL)

	st, err = env.Query("Tag").Select("id").Command(query.Delete).Statement(context.Background())
	require.NoError(t, err, "types without a policy are allowed")
	assert.Equal(t, "DELETE FROM `tags`", st.SQL)

	st, err = env.Query("Post").Select("id").Statement(privacy.DecisionContext(context.Background(), privacy.Allow))
	require.NoError(t, err)
	assert.NotContains(t, st.SQL, "WHERE")
}
