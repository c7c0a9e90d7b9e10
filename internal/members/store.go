package members

import (
	"context"
	"database/sql"
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"bibliogoya-backend/internal/platform/db"
)

type Store struct {
	db *sqlx.DB
}

func NewStore(conn *sqlx.DB) *Store { return &Store{db: conn} }

func memberSelect(d goqu.DialectWrapper) *goqu.SelectDataset {
	return d.From("members").Prepared(true)
}

var memberColumns = []any{
	"id", "name", "surname", "email", "national_id", "phone", "role",
	goqu.L("password_hash IS NOT NULL").As("has_login"), "created_at",
}

// mapConstraint turns unique-key violations into ErrDuplicate.
func mapConstraint(err error) error {
	if errors.Is(db.Classify(err), db.ErrDuplicate) {
		return ErrDuplicate
	}
	return err
}

func (s *Store) Insert(ctx context.Context, m Member, passwordHash sql.NullString) (int64, error) {
	id, err := db.InsertReturningID(ctx, s.db,
		`INSERT INTO members (name, surname, email, national_id, phone, role, password_hash) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.Name, m.Surname, m.Email, m.NationalID, m.Phone, m.Role, passwordHash)
	if err != nil {
		return 0, mapConstraint(err)
	}
	return id, nil
}

func getMember(ctx context.Context, x db.DBTX, id int64) (Member, error) {
	q, args, err := db.Build(memberSelect(db.Goqu(x)).Select(memberColumns...).Where(goqu.C("id").Eq(id)))
	if err != nil {
		return Member{}, err
	}
	var m Member
	if err := x.GetContext(ctx, &m, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Member{}, ErrMemberNotFound
		}
		return Member{}, err
	}
	return m, nil
}

func (s *Store) Get(ctx context.Context, id int64) (Member, error) {
	return getMember(ctx, s.db, id)
}

func (s *Store) List(ctx context.Context, f MemberFilter, p Page) ([]Member, int64, error) {
	var (
		out   []Member
		total int64
	)
	err := db.ReadOnly(ctx, s.db, func(ctx context.Context, tx db.DBTX) error {
		ds := memberSelect(db.Goqu(tx))
		if f.Role != nil {
			ds = ds.Where(goqu.C("role").Eq(*f.Role))
		}
		if f.Q != "" {
			like := f.Q + "%"
			ds = ds.Where(goqu.Or(
				goqu.C("name").ILike(like),
				goqu.C("surname").ILike(like),
				goqu.C("email").ILike(like),
			))
		}

		cq, cargs, err := db.Build(ds.Select(goqu.COUNT(goqu.Star())))
		if err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &total, cq, cargs...); err != nil {
			return err
		}

		ds = ds.Select(memberColumns...).Order(goqu.C("surname").Asc(), goqu.C("name").Asc(), goqu.C("id").Asc())
		if p.Limit > 0 {
			ds = ds.Limit(uint(p.Limit)).Offset(uint(p.Offset))
		}
		q, args, err := db.Build(ds)
		if err != nil {
			return err
		}
		out = []Member{}
		return tx.SelectContext(ctx, &out, q, args...)
	})
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *Store) Update(ctx context.Context, id int64, rec goqu.Record) (Member, error) {
	var out Member
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		if _, err := getMember(ctx, tx, id); err != nil {
			return err
		}
		if len(rec) > 0 {
			q, args, err := db.Build(db.Goqu(tx).Update("members").Set(rec).Where(goqu.C("id").Eq(id)).Prepared(true))
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, q, args...); err != nil {
				return mapConstraint(err)
			}
		}
		var err error
		out, err = getMember(ctx, tx, id)
		return err
	})
	return out, err
}

// Delete removes a member without live loans; their reservation history cascades.
func (s *Store) Delete(ctx context.Context, id int64) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		if _, err := getMember(ctx, tx, id); err != nil {
			return err
		}
		var loans int
		if err := tx.GetContext(ctx, &loans, tx.Rebind(`SELECT COUNT(*) FROM loans WHERE member_id = ?`), id); err != nil {
			return err
		}
		if loans > 0 {
			return ErrMemberHasLoans
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM members WHERE id = ?`), id); err != nil {
			if errors.Is(db.Classify(err), db.ErrForeignKey) {
				return ErrMemberHasLoans
			}
			return err
		}
		return nil
	})
}

func (s *Store) SetPasswordHash(ctx context.Context, id int64, hash string) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		if _, err := getMember(ctx, tx, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE members SET password_hash = ? WHERE id = ?`), hash, id)
		return err
	})
}
