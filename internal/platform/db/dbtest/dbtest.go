// Package dbtest opens throwaway SQLite databases with the production schema applied.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"bibliogoya-backend/internal/platform/db"
)

// New returns a migrated SQLite database living in t.TempDir().
func New(t *testing.T) *sqlx.DB {
	t.Helper()

	ctx := context.Background()
	conn, err := db.Connect(ctx, db.DatabaseConfig{
		Driver: db.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err, "open sqlite")
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, db.Migrate(ctx, conn), "migrate")
	return conn
}

// InsertBook adds a book row directly, bypassing the catalog service.
func InsertBook(t *testing.T, conn *sqlx.DB, title string, available bool) int64 {
	t.Helper()
	id, err := db.InsertReturningID(context.Background(), conn,
		`INSERT INTO books (title, author, genre, available) VALUES (?, ?, ?, ?)`,
		title, "Anon", "Novel", available)
	require.NoError(t, err, "insert book")
	return id
}

// InsertMember adds a member row directly; email and national id are derived from name.
func InsertMember(t *testing.T, conn *sqlx.DB, name, role string) int64 {
	t.Helper()
	id, err := db.InsertReturningID(context.Background(), conn,
		`INSERT INTO members (name, surname, email, national_id, phone, role) VALUES (?, ?, ?, ?, ?, ?)`,
		name, "Test", name+"@example.com", "ID-"+name, "", role)
	require.NoError(t, err, "insert member")
	return id
}
