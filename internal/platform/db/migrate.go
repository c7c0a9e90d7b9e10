package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// migrations[i] brings the schema to version i+1.
var migrations = []map[string][]string{
	{DriverMySQL: mysqlSchema, DriverSQLite: sqliteSchema, DriverPostgres: postgresSchema},
	{DriverMySQL: mysqlGenres, DriverSQLite: sqliteGenres, DriverPostgres: postgresGenres},
}

// SchemaVersion is the version Migrate brings a database to.
var SchemaVersion = len(migrations)

// Migrate creates or upgrades the schema for the connected dialect.
// Each version runs in its own Tx; already-applied versions are skipped.
func Migrate(ctx context.Context, conn *sqlx.DB) error {
	if _, err := conn.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER NOT NULL PRIMARY KEY
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := conn.GetContext(ctx, &current, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for v := current + 1; v <= SchemaVersion; v++ {
		stmts, ok := migrations[v-1][conn.DriverName()]
		if !ok {
			return fmt.Errorf("no schema for driver %q", conn.DriverName())
		}
		err := RunInTx(ctx, conn, nil, func(ctx context.Context, tx DBTX) error {
			for _, stmt := range stmts {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("apply migration %d: %w", v, err)
				}
			}
			_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO schema_migrations (version) VALUES (?)`), v)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// loans.book_id is UNIQUE: a book has at most one live loan row.
// Reservations are history and go away with their book/member; loans block deletion.

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS members (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		surname VARCHAR(150) NOT NULL,
		email VARCHAR(255) NOT NULL,
		national_id VARCHAR(32) NOT NULL,
		phone VARCHAR(32) NOT NULL DEFAULT '',
		role VARCHAR(20) NOT NULL DEFAULT 'Member',
		password_hash VARCHAR(100) NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_members_email (email),
		UNIQUE KEY uq_members_national_id (national_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS books (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		author VARCHAR(255) NOT NULL,
		genre VARCHAR(100) NOT NULL,
		published_on DATE NULL,
		available BOOLEAN NOT NULL DEFAULT TRUE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS loans (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		loan_ulid CHAR(26) NOT NULL,
		book_id BIGINT NOT NULL,
		member_id BIGINT NOT NULL,
		loan_date DATETIME NOT NULL,
		due_date DATETIME NOT NULL,
		UNIQUE KEY uq_loans_ulid (loan_ulid),
		UNIQUE KEY uq_loans_book (book_id),
		KEY idx_loans_member (member_id),
		CONSTRAINT fk_loans_book FOREIGN KEY (book_id) REFERENCES books (id),
		CONSTRAINT fk_loans_member FOREIGN KEY (member_id) REFERENCES members (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		reservation_ulid CHAR(26) NOT NULL,
		book_id BIGINT NOT NULL,
		member_id BIGINT NOT NULL,
		reserved_at DATETIME NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'Pending',
		UNIQUE KEY uq_reservations_ulid (reservation_ulid),
		KEY idx_reservations_member (member_id),
		CONSTRAINT fk_reservations_book FOREIGN KEY (book_id) REFERENCES books (id) ON DELETE CASCADE,
		CONSTRAINT fk_reservations_member FOREIGN KEY (member_id) REFERENCES members (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS members (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		surname TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		national_id TEXT NOT NULL UNIQUE,
		phone TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'Member',
		password_hash TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS books (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		author TEXT NOT NULL,
		genre TEXT NOT NULL,
		published_on DATE,
		available BOOLEAN NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS loans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		loan_ulid TEXT NOT NULL UNIQUE,
		book_id INTEGER NOT NULL UNIQUE REFERENCES books (id),
		member_id INTEGER NOT NULL REFERENCES members (id),
		loan_date DATETIME NOT NULL,
		due_date DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_loans_member ON loans (member_id)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		reservation_ulid TEXT NOT NULL UNIQUE,
		book_id INTEGER NOT NULL REFERENCES books (id) ON DELETE CASCADE,
		member_id INTEGER NOT NULL REFERENCES members (id) ON DELETE CASCADE,
		reserved_at DATETIME NOT NULL,
		status TEXT NOT NULL DEFAULT 'Pending'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_member ON reservations (member_id)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS members (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		surname VARCHAR(150) NOT NULL,
		email VARCHAR(255) NOT NULL UNIQUE,
		national_id VARCHAR(32) NOT NULL UNIQUE,
		phone VARCHAR(32) NOT NULL DEFAULT '',
		role VARCHAR(20) NOT NULL DEFAULT 'Member',
		password_hash VARCHAR(100),
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS books (
		id BIGSERIAL PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		author VARCHAR(255) NOT NULL,
		genre VARCHAR(100) NOT NULL,
		published_on DATE,
		available BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS loans (
		id BIGSERIAL PRIMARY KEY,
		loan_ulid CHAR(26) NOT NULL UNIQUE,
		book_id BIGINT NOT NULL UNIQUE REFERENCES books (id),
		member_id BIGINT NOT NULL REFERENCES members (id),
		loan_date TIMESTAMPTZ NOT NULL,
		due_date TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_loans_member ON loans (member_id)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id BIGSERIAL PRIMARY KEY,
		reservation_ulid CHAR(26) NOT NULL UNIQUE,
		book_id BIGINT NOT NULL REFERENCES books (id) ON DELETE CASCADE,
		member_id BIGINT NOT NULL REFERENCES members (id) ON DELETE CASCADE,
		reserved_at TIMESTAMPTZ NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'Pending'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_member ON reservations (member_id)`,
}

// v2: ジャンルのマスタ。books.genre は名前をそのまま持つ（FK なし）
var mysqlGenres = []string{
	`CREATE TABLE IF NOT EXISTS genres (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		code VARCHAR(32) NOT NULL,
		name VARCHAR(100) NOT NULL,
		is_disabled BOOLEAN NOT NULL DEFAULT FALSE,
		UNIQUE KEY uq_genres_code (code),
		UNIQUE KEY uq_genres_name (name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var sqliteGenres = []string{
	`CREATE TABLE IF NOT EXISTS genres (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL UNIQUE,
		is_disabled BOOLEAN NOT NULL DEFAULT 0
	)`,
}

var postgresGenres = []string{
	`CREATE TABLE IF NOT EXISTS genres (
		id BIGSERIAL PRIMARY KEY,
		code VARCHAR(32) NOT NULL UNIQUE,
		name VARCHAR(100) NOT NULL UNIQUE,
		is_disabled BOOLEAN NOT NULL DEFAULT FALSE
	)`,
}
