package query

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/quarry"
	"github.com/syssam/quarry/dialect"
	"github.com/syssam/quarry/schema"
	"github.com/syssam/quarry/schema/field"
)

// testCatalog is a small blog schema shared by the package tests.
func testCatalog() *schema.Catalog {
	return schema.MustCatalog(
		&schema.Entity{
			Name:       "User",
			Table:      "users",
			PrimaryKey: []string{"id"},
			Fields: []*schema.Field{
				{Name: "id", Type: field.TypeInt64},
				{Name: "email", Type: field.TypeString},
				{Name: "name", Type: field.TypeString, Nullable: true},
				{Name: "age", Type: field.TypeInt},
				{Name: "status", Type: field.TypeEnum},
			},
			Aliases: map[string]string{"login": "email"},
			Relations: []*schema.Relation{
				{
					Alias: "posts", Type: "Post", Local: "id", Foreign: "author_id",
					Cardinality:     schema.Many,
					ForeignCriteria: []schema.Criterion{{Key: "deleted", Value: 0}},
				},
				{Alias: "profile", Type: "Profile", Local: "id", Foreign: "user_id"},
			},
		},
		&schema.Entity{
			Name:       "Post",
			Table:      "posts",
			PrimaryKey: []string{"id"},
			Fields: []*schema.Field{
				{Name: "id", Type: field.TypeInt64},
				{Name: "author_id", Type: field.TypeInt64},
				{Name: "title", Type: field.TypeString},
				{Name: "deleted", Type: field.TypeInt},
			},
			Relations: []*schema.Relation{
				{Alias: "comments", Type: "Comment", Local: "id", Foreign: "post_id", Cardinality: schema.Many},
				{Alias: "author", Type: "User", Local: "author_id", Foreign: "id"},
			},
		},
		&schema.Entity{
			Name:       "Comment",
			Table:      "comments",
			PrimaryKey: []string{"id"},
			Fields: []*schema.Field{
				{Name: "id", Type: field.TypeInt64},
				{Name: "post_id", Type: field.TypeInt64},
				{Name: "body", Type: field.TypeString},
			},
		},
		&schema.Entity{
			Name:       "Profile",
			Table:      "profiles",
			PrimaryKey: []string{"user_id"},
			Fields: []*schema.Field{
				{Name: "user_id", Type: field.TypeInt64},
				{Name: "bio", Type: field.TypeString},
			},
		},
		&schema.Entity{
			Name:       "Tag",
			Table:      "tags",
			PrimaryKey: []string{"code"},
			Fields: []*schema.Field{
				{Name: "code", Type: field.TypeString},
				{Name: "label", Type: field.TypeString},
			},
		},
		&schema.Entity{
			Name:       "PostTag",
			Table:      "post_tags",
			PrimaryKey: []string{"post_id", "tag"},
			Fields: []*schema.Field{
				{Name: "post_id", Type: field.TypeInt64},
				{Name: "tag", Type: field.TypeString},
			},
		},
	)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEnv(opts ...Option) *Env {
	return NewEnv(testCatalog(), append([]Option{WithLogger(discard())}, opts...)...)
}

// compile compiles c and fails the test on error.
func compile(t *testing.T, c *Criteria) (string, []any) {
	t.Helper()
	st, err := c.env.Compile(c)
	require.NoError(t, err)
	return st.Query()
}

func TestNewEnv(t *testing.T) {
	env := NewEnv(testCatalog())
	assert.Equal(t, dialect.MySQL, env.Dialect())
	assert.Equal(t, slog.Default(), env.Logger())
	assert.NotNil(t, env.Registry())

	env = testEnv(WithDialect(dialect.Postgres))
	assert.Equal(t, dialect.Postgres, env.Dialect())
	assert.IsType(t, &PostgresCompiler{}, env.compiler)

	env = testEnv(WithDialect("sqlite3"))
	assert.IsType(t, &SQLiteCompiler{}, env.compiler)
}

func TestNewEnv_UnknownDialect(t *testing.T) {
	env := testEnv(WithDialect("oracle"))
	_, err := env.Compile(env.Query("User"))
	require.Error(t, err)
	assert.True(t, quarry.IsCompileError(err))
}

func TestEnv_Query(t *testing.T) {
	env := testEnv()
	c := env.Query("User")
	assert.Equal(t, "User", c.Type())
	assert.Equal(t, "User", c.Alias())

	c = env.Query("User", "`u`")
	assert.Equal(t, "u", c.Alias())
	sql, _ := compile(t, c.Select("id"))
	assert.Equal(t, "SELECT `id` FROM `users` AS `u`", sql)
}
