package genres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"bibliogoya-backend/internal/platform/db"
)

type Store struct{ db *sqlx.DB }

func NewStore(conn *sqlx.DB) *Store { return &Store{db: conn} }

// genre 列は名前の文字列なので JOIN も名前で
func genreSelect(d goqu.DialectWrapper) *goqu.SelectDataset {
	return d.From(goqu.T("genres").As("g")).
		LeftJoin(goqu.T("books").As("b"), goqu.On(goqu.I("b.genre").Eq(goqu.I("g.name")))).
		Select(
			goqu.I("g.id").As("id"),
			goqu.I("g.name").As("name"),
			goqu.I("g.code").As("code"),
			goqu.I("g.is_disabled").As("is_disabled"),
			goqu.COUNT(goqu.I("b.id")).As("book_count"),
		).
		GroupBy(goqu.I("g.id"), goqu.I("g.name"), goqu.I("g.code"), goqu.I("g.is_disabled")).
		Prepared(true)
}

// GET /genres?all=1
func (s *Store) List(ctx context.Context, includeDisabled bool) ([]Genre, error) {
	ds := genreSelect(db.Goqu(s.db)).Order(goqu.I("g.name").Asc())
	if !includeDisabled {
		ds = ds.Where(goqu.I("g.is_disabled").Eq(false))
	}
	q, args, err := db.Build(ds)
	if err != nil {
		return nil, err
	}
	res := make([]Genre, 0, 16)
	if err := s.db.SelectContext(ctx, &res, q, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func getGenre(ctx context.Context, x db.DBTX, id int64) (Genre, error) {
	q, args, err := db.Build(genreSelect(db.Goqu(x)).Where(goqu.I("g.id").Eq(id)))
	if err != nil {
		return Genre{}, err
	}
	var g Genre
	if err := x.GetContext(ctx, &g, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Genre{}, ErrGenreNotFound
		}
		return Genre{}, err
	}
	return g, nil
}

func (s *Store) Get(ctx context.Context, id int64) (Genre, error) {
	return getGenre(ctx, s.db, id)
}

func (s *Store) Create(ctx context.Context, name, code string) (int64, error) {
	return db.InsertReturningID(ctx, s.db,
		`INSERT INTO genres (name, code, is_disabled) VALUES (?, ?, ?)`, name, code, false)
}

// Update returns how many books were moved to the new name.
func (s *Store) Update(ctx context.Context, id int64, name, code string, disabled bool) (int64, error) {
	var renamed int64
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		old, err := getGenre(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			tx.Rebind(`UPDATE genres SET name = ?, code = ?, is_disabled = ? WHERE id = ?`),
			name, code, disabled, id); err != nil {
			return err
		}
		if old.Name == name {
			return nil
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE books SET genre = ? WHERE genre = ?`), name, old.Name)
		if err != nil {
			return err
		}
		renamed, err = res.RowsAffected()
		return err
	})
	return renamed, err
}

// DELETE: is_disabled=true にする
func (s *Store) Disable(ctx context.Context, id int64) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		if _, err := getGenre(ctx, tx, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE genres SET is_disabled = ? WHERE id = ?`), true, id)
		return err
	})
}
