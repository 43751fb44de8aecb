package query

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/quarry"
	"github.com/syssam/quarry/dialect"
)

func TestBindGraph_Golden(t *testing.T) {
	g := goldie.New(t)
	for _, name := range []string{dialect.MySQL, dialect.SQLite, dialect.Postgres} {
		t.Run(name, func(t *testing.T) {
			env := testEnv(WithDialect(name))
			c := env.Query("User").BindGraph(Graph{G("posts", G("comments")), G("profile")})
			require.NoError(t, c.Err())
			sql, args := compile(t, c)
			g.Assert(t, "graph_"+name, []byte(sql+"\n"))
			assert.Equal(t, []any{0}, args)
		})
	}
}

func TestBindGraph(t *testing.T) {
	env := testEnv()
	t.Run("UnknownRelation", func(t *testing.T) {
		c := env.Query("User").BindGraph(Graph{G("followers")})
		assert.True(t, c.Failed())
		assert.True(t, quarry.IsQueryExpressionError(c.Err()))
	})
	t.Run("KeepsProjection", func(t *testing.T) {
		c := env.Query("Post", "p").Select("*").BindGraph(Graph{G("author")})
		sql, _ := compile(t, c)
		assert.Equal(t, "SELECT `p`.`id` AS `p_id`, `p`.`author_id` AS `p_author_id`, `p`.`title` AS `p_title`, `p`.`deleted` AS `p_deleted`, "+
			"`author`.`id` AS `author_id`, `author`.`email` AS `author_email`, `author`.`name` AS `author_name`, `author`.`age` AS `author_age`, `author`.`status` AS `author_status` "+
			"FROM `posts` AS `p` LEFT JOIN `users` `author` ON `p`.`author_id` = `author`.`id` ORDER BY `p`.`id`", sql)
	})
	t.Run("AliasCollision", func(t *testing.T) {
		c := env.Query("Post", "author").BindGraph(Graph{G("author")})
		require.NoError(t, c.Err())
		require.Len(t, c.graph, 1)
		assert.Equal(t, "author_author", c.graph[0].alias)
	})
	t.Run("Rebind", func(t *testing.T) {
		g := Graph{G("posts", G("comments")), G("profile")}
		c := env.Query("User").BindGraph(g)
		want, _ := compile(t, c)
		c.BindGraph(Graph{G("posts", G("comments")), G("profile")})
		require.NoError(t, c.Err())
		got, _ := compile(t, c)
		assert.Equal(t, want, got)
		assert.Len(t, c.graph, 2)

		c.BindGraph(Graph{G("posts")})
		assert.Len(t, c.graph, 3, "a different node is still bound")
	})
}

func TestGraphNode_Equal(t *testing.T) {
	assert.True(t, G("posts", G("comments")).Equal(G("posts", G("comments"))))
	assert.False(t, G("posts", G("comments")).Equal(G("posts")))
	assert.False(t, G("posts").Equal(G("profile")))
}

func TestJoin(t *testing.T) {
	env := testEnv()
	tests := []struct {
		name string
		c    *Criteria
		sql  string
		args []any
	}{
		{
			name: "Relation",
			c:    env.Query("User").Select("User.id").InnerJoin("Post", "posts"),
			sql:  "SELECT User.id FROM `users` AS `User` JOIN `posts` `posts` ON (`User`.`id` = `posts`.`author_id` AND `posts`.`deleted` = ?)",
			args: []any{0},
		},
		{
			name: "Conditions",
			c: env.Query("User").Select("User.id").
				LeftJoin("Profile", "p", "p.user_id = User.id", Fields{{Key: "p.bio:!=", Value: nil}}),
			sql:  "SELECT User.id FROM `users` AS `User` LEFT JOIN `profiles` `p` ON (p.user_id = User.id AND `p`.`bio` IS NOT NULL)",
			args: []any{},
		},
		{
			name: "Right",
			c:    env.Query("User").Select("User.id").RightJoin("Profile", "profile"),
			sql:  "SELECT User.id FROM `users` AS `User` RIGHT JOIN `profiles` `profile` ON `User`.`id` = `profile`.`user_id`",
			args: []any{},
		},
		{
			name: "Unresolved",
			c:    env.Query("User").Select("User.id").InnerJoin("Comment", "c"),
			sql:  "SELECT User.id FROM `users` AS `User` JOIN `comments` `c`",
			args: []any{},
		},
		{
			name: "JoinedFieldCondition",
			c: env.Query("User").Select("User.id").
				InnerJoin("Post", "posts").
				Where(Fields{{Key: "posts.title:LIKE", Value: "go%"}}),
			sql:  "SELECT User.id FROM `users` AS `User` JOIN `posts` `posts` ON (`User`.`id` = `posts`.`author_id` AND `posts`.`deleted` = ?) WHERE `posts`.`title` LIKE ?",
			args: []any{0, "go%"},
		},
		{
			name: "DefaultKind",
			c:    env.Query("User").Select("User.id").Join("Comment", "", ""),
			sql:  "SELECT User.id FROM `users` AS `User` JOIN `comments` `Comment`",
			args: []any{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.c.Err())
			sql, args := compile(t, tt.c)
			assert.Equal(t, tt.sql, sql)
			assert.Equal(t, tt.args, args)
		})
	}
	t.Run("UnknownType", func(t *testing.T) {
		c := env.Query("User").InnerJoin("Ghost", "g")
		assert.True(t, c.Failed())
		assert.True(t, quarry.IsQueryExpressionError(c.Err()))
	})
	t.Run("UnknownKind", func(t *testing.T) {
		c := env.Query("User").Join("Post", "posts", "CROSS JOIN")
		assert.True(t, c.Failed())
	})
}

func TestQualifyKey(t *testing.T) {
	tests := []struct{ key, want string }{
		{"status", "p.status"},
		{"status:!=", "p.status:!="},
		{"OR:status:IN", "OR:p.status:IN"},
		{"x.status", "x.status"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, qualifyKey(tt.key, "p"))
	}
}

func TestParseGraph(t *testing.T) {
	want := Graph{G("posts", G("comments"), G("tags")), G("profile")}
	tests := []struct {
		name string
		src  string
	}{
		{"Sequence", `[{posts: [comments, tags]}, profile]`},
		{"Mapping", "posts:\n  comments:\n  tags:\nprofile:\n"},
		{"Explicit", `[{"alias": "posts", "children": [{"alias": "comments"}, {"alias": "tags"}]}, {"alias": "profile"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := ParseGraph([]byte(tt.src))
			require.NoError(t, err)
			assert.Equal(t, want, g)
		})
	}
	_, err := ParseGraph([]byte("[posts"))
	assert.Error(t, err)
}

func TestParseGraphQL(t *testing.T) {
	g, err := ParseGraphQL(`{ posts { comments tags } profile }`)
	require.NoError(t, err)
	assert.Equal(t, Graph{G("posts", G("comments"), G("tags")), G("profile")}, g)

	g, err = ParseGraphQL(`
		query { posts(first: 5) { ...PostRels } }
		fragment PostRels on Post { comments ... on Post { tags } }
	`)
	require.NoError(t, err)
	assert.Equal(t, Graph{G("posts", G("comments"), G("tags"))}, g)

	_, err = ParseGraphQL(`{ posts `)
	assert.Error(t, err)
}
