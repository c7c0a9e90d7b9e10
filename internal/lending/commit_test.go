package lending

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bibliogoya-backend/internal/platform/db"
	"bibliogoya-backend/internal/platform/db/dbtest"
)

const commitHookDriver = "sqlite3_lending_commit_hook"

// onCommit, when set, fires once from inside the next SQLite COMMIT.
var onCommit atomic.Pointer[func()]

func init() {
	sql.Register(commitHookDriver, &sqlite3.SQLiteDriver{
		ConnectHook: func(c *sqlite3.SQLiteConn) error {
			c.RegisterCommitHook(func() int {
				if fn := onCommit.Swap(nil); fn != nil {
					(*fn)()
				}
				return 0
			})
			return nil
		},
	})
}

func openCommitHookDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn, err := db.DSN(db.DatabaseConfig{Driver: db.DriverSQLite, Path: filepath.Join(t.TempDir(), "hook.db")})
	require.NoError(t, err)
	raw, err := sql.Open(commitHookDriver, dsn)
	require.NoError(t, err)
	// 1 接続に固定して、COMMIT 以外で hook が走らないようにする
	raw.SetMaxOpenConns(1)
	conn := sqlx.NewDb(raw, db.DriverSQLite)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Migrate(context.Background(), conn))
	return conn
}

// Once the borrow Tx commits, every later read on the caller's context fails.
// Borrow must still report the committed loan instead of an error.
func TestBorrow_SucceedsWhenContextEndsRightAfterCommit(t *testing.T) {
	conn := openCommitHookDB(t)
	svc := NewService(conn, WithClock(fixedClock{testNow}), WithIDGen(&seqIDGen{}))
	book := dbtest.InsertBook(t, conn, "Misericordia", true)
	member := dbtest.InsertMember(t, conn, "benina", "Member")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fire := func() { cancel() }
	onCommit.Store(&fire)

	res, err := svc.Borrow(ctx, book, member)
	require.NoError(t, err)
	assert.Error(t, ctx.Err(), "commit hook did not run")
	assert.Equal(t, "Misericordia", res.Loan.Book.Title)
	assert.Equal(t, StatusPending, res.Reservation.Status)

	var loans int
	require.NoError(t, conn.Get(&loans, `SELECT COUNT(*) FROM loans WHERE book_id = ?`, book))
	assert.Equal(t, 1, loans)
	assert.False(t, bookAvailable(t, conn, book))
}
