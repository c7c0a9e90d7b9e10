package reports

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"

	"bibliogoya-backend/internal/platform/db"
)

type Store struct {
	db *sqlx.DB
}

func NewStore(conn *sqlx.DB) *Store { return &Store{db: conn} }

// 返却で loans は消えるため、累計の貸出回数は reservations（Borrow ごとに1行）で数える
var borrows = goqu.COUNT(goqu.I("r.id")).As("borrows")

func loanLines(d goqu.DialectWrapper) *goqu.SelectDataset {
	return d.From(goqu.T("loans").As("l")).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("l.book_id")))).
		Join(goqu.T("members").As("m"), goqu.On(goqu.I("m.id").Eq(goqu.I("l.member_id")))).
		Select(
			goqu.I("l.id").As("loan_id"),
			goqu.I("l.book_id").As("book_id"),
			goqu.I("b.title").As("title"),
			goqu.I("l.member_id").As("member_id"),
			goqu.I("m.name").As("member_name"),
			goqu.I("l.loan_date").As("loan_date"),
			goqu.I("l.due_date").As("due_date"),
		).
		Prepared(true)
}

func (s *Store) selectLines(ctx context.Context, where exp.Expression) ([]LoanLine, error) {
	q, args, err := db.Build(loanLines(db.Goqu(s.db)).Where(where).Order(goqu.I("l.loan_date").Asc(), goqu.I("l.id").Asc()))
	if err != nil {
		return nil, err
	}
	out := []LoanLine{}
	if err := s.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, err
	}
	return utcLines(out), nil
}

// LoansBetween は loan_date が [from, to) の貸出中レコード
func (s *Store) LoansBetween(ctx context.Context, from, to time.Time) ([]LoanLine, error) {
	return s.selectLines(ctx, goqu.And(
		goqu.I("l.loan_date").Gte(from),
		goqu.I("l.loan_date").Lt(to),
	))
}

func (s *Store) Overdue(ctx context.Context, asOf time.Time) ([]LoanLine, error) {
	return s.selectLines(ctx, goqu.I("l.due_date").Lt(asOf))
}

func (s *Store) TopMembers(ctx context.Context, limit uint) ([]MemberRank, error) {
	ds := db.Goqu(s.db).From(goqu.T("members").As("m")).
		Join(goqu.T("reservations").As("r"), goqu.On(goqu.I("r.member_id").Eq(goqu.I("m.id")))).
		Select(goqu.I("m.id").As("member_id"), goqu.I("m.name").As("name"), goqu.I("m.surname").As("surname"), borrows).
		GroupBy(goqu.I("m.id"), goqu.I("m.name"), goqu.I("m.surname")).
		Order(goqu.I("borrows").Desc(), goqu.I("m.id").Asc()).
		Limit(limit).
		Prepared(true)
	q, args, err := db.Build(ds)
	if err != nil {
		return nil, err
	}
	out := []MemberRank{}
	if err := s.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) PopularBooks(ctx context.Context, limit uint) ([]BookRank, error) {
	ds := db.Goqu(s.db).From(goqu.T("books").As("b")).
		Join(goqu.T("reservations").As("r"), goqu.On(goqu.I("r.book_id").Eq(goqu.I("b.id")))).
		Select(goqu.I("b.id").As("book_id"), goqu.I("b.title").As("title"), goqu.I("b.author").As("author"), borrows).
		GroupBy(goqu.I("b.id"), goqu.I("b.title"), goqu.I("b.author")).
		Order(goqu.I("borrows").Desc(), goqu.I("b.id").Asc()).
		Limit(limit).
		Prepared(true)
	q, args, err := db.Build(ds)
	if err != nil {
		return nil, err
	}
	out := []BookRank{}
	if err := s.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GenreTrends(ctx context.Context) ([]GenreCount, error) {
	ds := db.Goqu(s.db).From(goqu.T("books").As("b")).
		Join(goqu.T("reservations").As("r"), goqu.On(goqu.I("r.book_id").Eq(goqu.I("b.id")))).
		Select(goqu.I("b.genre").As("genre"), borrows).
		GroupBy(goqu.I("b.genre")).
		Order(goqu.I("borrows").Desc(), goqu.I("b.genre").Asc()).
		Prepared(true)
	q, args, err := db.Build(ds)
	if err != nil {
		return nil, err
	}
	out := []GenreCount{}
	if err := s.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, err
	}
	return out, nil
}
