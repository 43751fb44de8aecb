package sql

import (
	"context"
	"errors"
	"testing"

	"github.com/syssam/quarry/dialect"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverName(t *testing.T) {
	tests := []struct {
		dialect string
		want    string
		ok      bool
	}{
		{dialect.MySQL, "mysql", true},
		{dialect.Postgres, "postgres", true},
		{dialect.SQLite, "sqlite", true},
		{"sqlite3", "sqlite", true},
		{"oracle", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.dialect, func(t *testing.T) {
			name, ok := DriverName(tt.dialect)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, name)
		})
	}
}

func TestOpen(t *testing.T) {
	_, err := Open("oracle", "")
	require.Error(t, err)

	drv, err := Open(dialect.SQLite, ":memory:")
	require.NoError(t, err)
	defer drv.Close()
	assert.Equal(t, dialect.SQLite, drv.Dialect())
	require.NoError(t, drv.DB().Ping())
}

func TestOpenDB(t *testing.T) {
	for _, name := range []string{dialect.Postgres, dialect.MySQL, dialect.SQLite} {
		t.Run(name, func(t *testing.T) {
			db, _, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			drv := OpenDB(name, db)
			assert.Equal(t, name, drv.Dialect())
			assert.Same(t, db, drv.DB())
		})
	}
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, dialect.SQLite, OpenDB("sqlite3", db).Dialect())
	assert.Equal(t, "oracle", OpenDB("oracle", db).Dialect())
}

func TestDriverQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.MySQL, db)
	ctx := context.Background()

	t.Run("Rows", func(t *testing.T) {
		mock.ExpectQuery("SELECT `id`, `name` FROM `users` WHERE `id` = ?").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "a8m"))
		rows := &Rows{}
		require.NoError(t, drv.Query(ctx, "SELECT `id`, `name` FROM `users` WHERE `id` = ?", []any{1}, rows))
		maps, err := ScanMaps(rows)
		require.NoError(t, err)
		assert.Equal(t, []map[string]any{{"id": int64(1), "name": "a8m"}}, maps)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NilArgs", func(t *testing.T) {
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
		rows := &Rows{}
		require.NoError(t, drv.Query(ctx, "SELECT 1", nil, rows))
		require.NoError(t, rows.Close())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("BadDestination", func(t *testing.T) {
		err := drv.Query(ctx, "SELECT 1", []any{}, new(int))
		require.EqualError(t, err, "dialect/sql: invalid type *int. expect *sql.Rows")
	})

	t.Run("BadArgs", func(t *testing.T) {
		err := drv.Query(ctx, "SELECT 1", map[string]any{}, &Rows{})
		require.EqualError(t, err, "dialect/sql: invalid type map[string]interface {}. expect []any for args")
	})

	t.Run("Error", func(t *testing.T) {
		mock.ExpectQuery("SELECT").WillReturnError(errors.New("boom"))
		err := drv.Query(ctx, "SELECT", []any{}, &Rows{})
		require.EqualError(t, err, "dialect/sql: query: boom")
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDriverExec(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.Postgres, db)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE "users" SET "name" = 'a8m' WHERE "id" = \$1`).
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 2))
	var res Result
	require.NoError(t, drv.Exec(ctx, `UPDATE "users" SET "name" = 'a8m' WHERE "id" = $1`, []any{1}, &res))
	affected, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)

	mock.ExpectExec(`DELETE FROM "users"`).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, drv.Exec(ctx, `DELETE FROM "users"`, []any{}, nil))

	mock.ExpectExec(`DELETE FROM "users"`).WillReturnResult(sqlmock.NewResult(0, 0))
	err = drv.Exec(ctx, `DELETE FROM "users"`, []any{}, new(int))
	require.EqualError(t, err, "dialect/sql: invalid type *int. expect *sql.Result")

	mock.ExpectExec(`DELETE FROM "users"`).WillReturnError(errors.New("locked"))
	err = drv.Exec(ctx, `DELETE FROM "users"`, []any{}, nil)
	require.EqualError(t, err, "dialect/sql: exec: locked")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.SQLite, db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "posts"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	tx, err := drv.Tx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Exec(ctx, `DELETE FROM "posts"`, []any{}, nil))
	require.NoError(t, tx.Commit())

	mock.ExpectBegin().WillReturnError(errors.New("busy"))
	_, err = drv.Tx(ctx)
	require.EqualError(t, err, "busy")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScanMaps(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.SQLite, db)

	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"u_id", "p_id", "p_title"}).
			AddRow(int64(1), int64(10), []byte("hello")).
			AddRow(int64(1), nil, nil),
	)
	rows := &Rows{}
	require.NoError(t, drv.Query(context.Background(), "SELECT", []any{}, rows))
	maps, err := ScanMaps(rows)
	require.NoError(t, err)
	require.Len(t, maps, 2)
	assert.Equal(t, int64(10), maps[0]["p_id"])
	assert.Equal(t, []byte("hello"), maps[0]["p_title"])
	assert.Nil(t, maps[1]["p_id"])
	_, ok := maps[1]["p_title"]
	assert.True(t, ok, "null columns are kept")

	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"id"}).AddRow(1).RowError(0, errors.New("broken row")),
	)
	require.NoError(t, drv.Query(context.Background(), "SELECT", []any{}, rows))
	_, err = ScanMaps(rows)
	require.ErrorContains(t, err, "broken row")
	require.NoError(t, mock.ExpectationsWereMet())
}
