package mixin_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/quarry/query"
	"github.com/syssam/quarry/schema"
	"github.com/syssam/quarry/schema/field"
	"github.com/syssam/quarry/schema/mixin"
)

func names(fields []*schema.Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}

func TestMixins(t *testing.T) {
	tests := []struct {
		m    schema.Mixin
		want []string
	}{
		{mixin.CreateTime{}, []string{"created_at"}},
		{mixin.UpdateTime{}, []string{"updated_at"}},
		{mixin.Time{}, []string{"created_at", "updated_at"}},
		{mixin.SoftDelete{}, []string{"deleted_at"}},
		{mixin.TenantID{}, []string{"tenant_id"}},
		{mixin.ID{}, []string{"id"}},
		{mixin.Fields{{Name: "created_by", Type: field.TypeString}}, []string{"created_by"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, names(tt.m.Fields()))
	}
	assert.True(t, mixin.SoftDelete{}.Fields()[0].Nullable)
	assert.Equal(t, field.TypeUUID, mixin.ID{}.Fields()[0].Type)
}

func TestRegistered(t *testing.T) {
	for _, name := range []string{"create_time", "update_time", "time", "soft_delete", "tenant", "uuid"} {
		_, ok := schema.LookupMixin(name)
		assert.True(t, ok, name)
	}
	assert.Panics(t, func() { schema.RegisterMixin("time", mixin.Time{}) })
}

func TestCatalog(t *testing.T) {
	c, err := schema.Parse([]byte(`
entities:
  Post:
    primary_key: id
    mixins: [uuid, time, soft_delete]
    fields:
      - {name: title, type: string}
      - {name: created_at, type: date}
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "updated_at", "deleted_at", "title", "created_at"}, names(c.Fields("Post")))
	assert.Equal(t, field.TypeUUID, c.PrimaryKeyType("Post"))
	f, ok := c.Field("Post", "created_at")
	require.True(t, ok)
	assert.Equal(t, field.TypeTime, f.Type, "the entity's own field wins")

	_, err = schema.Parse([]byte("entities:\n  Post:\n    mixins: [audit]\n"))
	assert.ErrorContains(t, err, `unknown mixin "audit"`)

	_, err = schema.NewCatalog(&schema.Entity{Name: "Post", Mixins: []schema.Mixin{mixin.Time{}, mixin.CreateTime{}}})
	assert.ErrorContains(t, err, `field "created_at" declared by two mixins`)
}

func TestSoftDelete(t *testing.T) {
	env := query.NewEnv(schema.MustCatalog(&schema.Entity{
		Name:       "Post",
		PrimaryKey: []string{"id"},
		Mixins:     []schema.Mixin{mixin.SoftDelete{}},
		Fields:     []*schema.Field{{Name: "id", Type: field.TypeInt64}},
	}))
	ctx := context.Background()

	c := env.Query("Post").Select("id")
	mixin.SoftDelete{}.Scope(c)
	st, err := c.Statement(ctx)
	require.NoError(t, err)
	assert.Equal(t, "SELECT `id` FROM `posts` AS `Post` WHERE `Post`.`deleted_at` IS NULL", st.SQL)

	c = env.Query("Post").Select("id").Where(query.Fields{{Key: "id", Value: 1}}).OrWhere(query.Fields{{Key: "id", Value: 2}})
	mixin.SoftDelete{}.Scope(c)
	c.OrWhere(query.Fields{{Key: "id", Value: 3}})
	st, err = c.Statement(ctx)
	require.NoError(t, err)
	assert.Equal(t, "SELECT `id` FROM `posts` AS `Post` WHERE (`Post`.`id` = ? OR `Post`.`id` = ? OR `Post`.`id` = ?) AND `Post`.`deleted_at` IS NULL", st.SQL)
	assert.Equal(t, []any{1, 2, 3}, st.Args())

	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	st, err = mixin.SoftDelete{}.Trash(env.Query("Post"), at).Where(7).Statement(ctx)
	require.NoError(t, err)
	assert.Equal(t, "UPDATE `posts` SET `deleted_at` = '2024-03-01 12:30:00' WHERE `posts`.`id` = ?", st.SQL)
	assert.Equal(t, []any{int64(7)}, st.Args())
}
