package catalog

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

const bookColumns = `id, title, author, genre, published_on, available`

func (s *Store) Insert(ctx context.Context, b *Book) error {
	id, err := db.InsertReturningID(ctx, s.db,
		`INSERT INTO books (title, author, genre, published_on, available) VALUES (?, ?, ?, ?, ?)`,
		b.Title, b.Author, b.Genre, b.PublishedOn, true)
	if err != nil {
		return err
	}
	b.ID, b.Available = id, true
	return nil
}

func getBook(ctx context.Context, x db.DBTX, id int64) (Book, error) {
	var b Book
	if err := x.GetContext(ctx, &b, x.Rebind(`SELECT `+bookColumns+` FROM books WHERE id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Book{}, ErrBookNotFound
		}
		return Book{}, err
	}
	return b, nil
}

func (s *Store) Get(ctx context.Context, id int64) (Book, error) {
	return getBook(ctx, s.db, id)
}

// Update writes the non-nil fields of rec and returns the row as stored afterwards.
func (s *Store) Update(ctx context.Context, id int64, rec goqu.Record) (Book, error) {
	var out Book
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		if _, err := getBook(ctx, tx, id); err != nil {
			return err
		}
		if len(rec) > 0 {
			q, args, err := db.Build(db.Goqu(tx).Update("books").Set(rec).Where(goqu.C("id").Eq(id)).Prepared(true))
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, q, args...); err != nil {
				return err
			}
		}
		var err error
		out, err = getBook(ctx, tx, id)
		return err
	})
	return out, err
}

// Delete removes a book that has no live loan. Its reservation history goes with it.
func (s *Store) Delete(ctx context.Context, id int64) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		if _, err := getBook(ctx, tx, id); err != nil {
			return err
		}
		var loans int
		if err := tx.GetContext(ctx, &loans, tx.Rebind(`SELECT COUNT(*) FROM loans WHERE book_id = ?`), id); err != nil {
			return err
		}
		if loans > 0 {
			return ErrBookOnLoan
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM books WHERE id = ?`), id); err != nil {
			if errors.Is(db.Classify(err), db.ErrForeignKey) {
				return ErrBookOnLoan
			}
			return err
		}
		return nil
	})
}

// List returns books ordered by id, optionally restricted to one genre.
func (s *Store) List(ctx context.Context, genre *string) ([]Book, error) {
	ds := db.Goqu(s.db).From("books").
		Select("id", "title", "author", "genre", "published_on", "available").
		Order(goqu.C("id").Asc()).
		Prepared(true)
	if genre != nil {
		ds = ds.Where(goqu.C("genre").Eq(*genre))
	}
	q, args, err := db.Build(ds)
	if err != nil {
		return nil, err
	}
	books := []Book{}
	if err := s.db.SelectContext(ctx, &books, q, args...); err != nil {
		return nil, err
	}
	return books, nil
}
