package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// Account is the login view of a member row.
type Account struct {
	MemberID     int64          `db:"id"`
	Email        string         `db:"email"`
	PasswordHash sql.NullString `db:"password_hash"`
	Role         string         `db:"role"`
}

type AccountStore interface {
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByID(ctx context.Context, memberID int64) (*Account, error)
	SetPasswordHash(ctx context.Context, memberID int64, hash string) (int64, error)
}

type Store struct{ db *sqlx.DB }

func NewStore(db *sqlx.DB) AccountStore {
	return &Store{db: db}
}

// GetByEmail returns nil, nil when no member has that address.
func (s *Store) GetByEmail(ctx context.Context, email string) (*Account, error) {
	const q = `SELECT id, email, password_hash, role FROM members WHERE email = ?`
	return s.get(ctx, q, email)
}

func (s *Store) GetByID(ctx context.Context, memberID int64) (*Account, error) {
	const q = `SELECT id, email, password_hash, role FROM members WHERE id = ?`
	return s.get(ctx, q, memberID)
}

func (s *Store) get(ctx context.Context, q string, arg any) (*Account, error) {
	var a Account
	err := s.db.GetContext(ctx, &a, s.db.Rebind(q), arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) SetPasswordHash(ctx context.Context, memberID int64, hash string) (int64, error) {
	const q = `UPDATE members SET password_hash = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, s.db.Rebind(q), hash, memberID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
