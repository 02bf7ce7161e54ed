package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cesardraw2/zeppelin/db"
	"github.com/cesardraw2/zeppelin/protocol/query"
)

func setupConn(t *testing.T) *sql.Conn {
	t.Helper()
	sqlDB, err := sql.Open(db.SQLiteDriverName, filepath.Join(t.TempDir(), "exec.db"))
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	conn, err := sqlDB.Conn(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Close()
		sqlDB.Close()
	})
	return conn
}

func newExecutor(t *testing.T) *Executor {
	t.Helper()
	c, err := query.NewClassifier(db.FamilySQLite, 64)
	require.NoError(t, err)
	return New(c)
}

func seed(t *testing.T, conn *sql.Conn, n int) {
	t.Helper()
	ctx := context.Background()
	_, err := conn.ExecContext(ctx, "CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT, note TEXT)")
	require.NoError(t, err)
	for i := 1; i <= n; i++ {
		_, err := conn.ExecContext(ctx, "INSERT INTO items (id, name) VALUES (?, ?)", i, fmt.Sprintf("item-%d", i))
		require.NoError(t, err)
	}
}

func TestExecute_RowSet(t *testing.T) {
	conn := setupConn(t)
	seed(t, conn, 2)
	e := newExecutor(t)

	out := e.Execute(context.Background(), conn, Request{SQL: "SELECT id, name, note FROM items ORDER BY id", MaxRows: 10})
	rs, ok := out.(*RowSet)
	require.True(t, ok, "expected row set, got %T", out)

	require.Equal(t, []string{"id", "name", "note"}, rs.Columns)
	require.Len(t, rs.Rows, 2)
	require.False(t, rs.Truncated)
	require.Equal(t, "1", *rs.Rows[0][0])
	require.Equal(t, "item-1", *rs.Rows[0][1])
	require.Nil(t, rs.Rows[0][2], "NULL cell should be nil")
}

func TestExecute_MaxRows(t *testing.T) {
	conn := setupConn(t)
	seed(t, conn, 25)
	e := newExecutor(t)

	tests := []struct {
		maxRows   int
		wantRows  int
		truncated bool
	}{
		{maxRows: 10, wantRows: 10, truncated: true},
		{maxRows: 25, wantRows: 25, truncated: false},
		{maxRows: 100, wantRows: 25, truncated: false},
		{maxRows: 1, wantRows: 1, truncated: true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("max_%d", tt.maxRows), func(t *testing.T) {
			out := e.Execute(context.Background(), conn, Request{SQL: "SELECT * FROM items", MaxRows: tt.maxRows})
			rs, ok := out.(*RowSet)
			require.True(t, ok)
			require.Len(t, rs.Rows, tt.wantRows)
			require.Equal(t, tt.truncated, rs.Truncated)
		})
	}
}

func TestExecute_EmptyResultKeepsColumns(t *testing.T) {
	conn := setupConn(t)
	seed(t, conn, 0)
	e := newExecutor(t)

	out := e.Execute(context.Background(), conn, Request{SQL: "SELECT id, name FROM items", MaxRows: 5})
	rs, ok := out.(*RowSet)
	require.True(t, ok)
	require.Equal(t, []string{"id", "name"}, rs.Columns)
	require.Empty(t, rs.Rows)
}

func TestExecute_UpdateCount(t *testing.T) {
	conn := setupConn(t)
	seed(t, conn, 3)
	e := newExecutor(t)
	ctx := context.Background()

	out := e.Execute(ctx, conn, Request{SQL: "UPDATE items SET note = 'x'"})
	require.Equal(t, &UpdateCount{Count: 3}, out)

	out = e.Execute(ctx, conn, Request{SQL: "DELETE FROM items WHERE id = 1"})
	require.Equal(t, &UpdateCount{Count: 1}, out)

	// DDL reports zero even though sqlite remembers the last DML count
	out = e.Execute(ctx, conn, Request{SQL: "CREATE TABLE other (id INTEGER)"})
	require.Equal(t, &UpdateCount{Count: 0}, out)

	out = e.Execute(ctx, conn, Request{SQL: "BEGIN"})
	require.Equal(t, &UpdateCount{Count: -1}, out)
	out = e.Execute(ctx, conn, Request{SQL: "COMMIT"})
	require.Equal(t, &UpdateCount{Count: -1}, out)
}

func TestExecute_ReturningKeywordInLiteral(t *testing.T) {
	conn := setupConn(t)
	seed(t, conn, 3)
	e := newExecutor(t)
	ctx := context.Background()

	out := e.Execute(ctx, conn, Request{SQL: "UPDATE items SET note = 'RETURNING soon'"})
	require.Equal(t, &UpdateCount{Count: 3}, out)

	out = e.Execute(ctx, conn, Request{SQL: "UPDATE items SET note = 'done' WHERE id = 2 RETURNING id", MaxRows: 10})
	rs, ok := out.(*RowSet)
	require.True(t, ok, "expected row set, got %T", out)
	require.Equal(t, []string{"id"}, rs.Columns)
	require.Equal(t, "2", *rs.Rows[0][0])
}

func TestExecute_UnknownWithoutColumns(t *testing.T) {
	conn := setupConn(t)
	e := newExecutor(t)

	out := e.Execute(context.Background(), conn, Request{SQL: "PRAGMA user_version = 7"})
	require.Equal(t, &UpdateCount{Count: -1}, out)

	out = e.Execute(context.Background(), conn, Request{SQL: "PRAGMA user_version"})
	rs, ok := out.(*RowSet)
	require.True(t, ok)
	require.Equal(t, "7", *rs.Rows[0][0])
}

func TestExecute_Failure(t *testing.T) {
	conn := setupConn(t)
	e := newExecutor(t)

	out := e.Execute(context.Background(), conn, Request{SQL: "SELECT * FROM missing_table"})
	f, ok := out.(*Failure)
	require.True(t, ok)
	require.Contains(t, f.Message, "no such table")

	var execErr *ExecutionError
	require.True(t, errors.As(f.Err, &execErr))
	require.False(t, execErr.Cancelled())

	// The connection stays usable
	out = e.Execute(context.Background(), conn, Request{SQL: "SELECT 1"})
	require.IsType(t, &RowSet{}, out)
	require.False(t, e.InFlight())
}

func TestCancel_Idempotent(t *testing.T) {
	e := New(nil)

	require.False(t, e.Cancel())
	require.False(t, e.Cancel())
	require.False(t, e.InFlight())

	h := e.Handle()
	require.False(t, h.Cancel())
	require.False(t, h.InFlight())
}

func TestCancel_InFlight(t *testing.T) {
	conn := setupConn(t)
	e := newExecutor(t)

	done := make(chan Outcome, 1)
	go func() {
		done <- e.Execute(context.Background(), conn, Request{
			SQL:     "WITH RECURSIVE c(x) AS (SELECT 1 UNION ALL SELECT x + 1 FROM c) SELECT count(*) FROM c",
			MaxRows: 10,
		})
	}()

	require.Eventually(t, e.InFlight, 5*time.Second, time.Millisecond)
	require.True(t, e.Cancel())
	require.False(t, e.Cancel(), "second cancel is a no-op")

	select {
	case out := <-done:
		require.IsType(t, &Failure{}, out)
	case <-time.After(10 * time.Second):
		t.Fatal("statement did not stop after cancel")
	}
	require.False(t, e.InFlight())

	// Next statement on the same connection runs normally
	out := e.Execute(context.Background(), conn, Request{SQL: "SELECT 42"})
	rs, ok := out.(*RowSet)
	require.True(t, ok)
	require.Equal(t, "42", *rs.Rows[0][0])
}

func TestKind(t *testing.T) {
	require.Equal(t, "rows", Kind(&RowSet{}))
	require.Equal(t, "update", Kind(&UpdateCount{}))
	require.Equal(t, "failure", Kind(&Failure{}))
	require.Equal(t, "none", Kind(nil))
}
