package lending

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

// ---------- primitives (run inside a Tx) ----------

// claimBook flips available true -> false. Zero affected rows means either the book
// does not exist or somebody else holds it.
func claimBook(ctx context.Context, tx db.DBTX, bookID int64) error {
	res, err := tx.ExecContext(ctx,
		tx.Rebind(`UPDATE books SET available = ? WHERE id = ? AND available = ?`),
		false, bookID, true)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 1 {
		return nil
	}

	ok, err := exists(ctx, tx, `SELECT COUNT(*) FROM books WHERE id = ?`, bookID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrBookNotFound
	}
	return ErrBookUnavailable
}

func releaseBook(ctx context.Context, tx db.DBTX, bookID int64) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE books SET available = ? WHERE id = ?`), true, bookID)
	return err
}

func exists(ctx context.Context, tx db.DBTX, query string, id int64) (bool, error) {
	var n int
	if err := tx.GetContext(ctx, &n, tx.Rebind(query), id); err != nil {
		return false, err
	}
	return n > 0, nil
}

func insertLoan(ctx context.Context, tx db.DBTX, l *Loan) error {
	id, err := db.InsertReturningID(ctx, tx,
		`INSERT INTO loans (loan_ulid, book_id, member_id, loan_date, due_date) VALUES (?, ?, ?, ?, ?)`,
		l.ULID, l.BookID, l.MemberID, l.LoanDate, l.DueDate)
	if err != nil {
		// loans.book_id is unique; a second live loan loses here even if the flag was bypassed
		if errors.Is(db.Classify(err), db.ErrDuplicate) {
			return ErrBookUnavailable
		}
		return err
	}
	l.ID = id
	return nil
}

func insertReservation(ctx context.Context, tx db.DBTX, r *Reservation) error {
	id, err := db.InsertReturningID(ctx, tx,
		`INSERT INTO reservations (reservation_ulid, book_id, member_id, reserved_at, status) VALUES (?, ?, ?, ?, ?)`,
		r.ULID, r.BookID, r.MemberID, r.ReservedAt, r.Status)
	if err != nil {
		return err
	}
	r.ID = id
	return nil
}

// ---------- transactional flows ----------

// ExecBorrow claims the book and records both the loan and the reservation, or nothing.
// The joined rows are read inside the same Tx, so a committed borrow is never reported as failed.
func (s *Store) ExecBorrow(ctx context.Context, l *Loan, r *Reservation) (loanRow, reservationRow, error) {
	var (
		lr loanRow
		rr reservationRow
	)
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		if err := claimBook(ctx, tx, l.BookID); err != nil {
			return err
		}
		ok, err := exists(ctx, tx, `SELECT COUNT(*) FROM members WHERE id = ?`, l.MemberID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrMemberNotFound
		}
		if err := insertLoan(ctx, tx, l); err != nil {
			return err
		}
		if err := insertReservation(ctx, tx, r); err != nil {
			return err
		}
		if lr, err = getLoan(ctx, tx, l.ID); err != nil {
			return err
		}
		rr, err = getReservation(ctx, tx, r.ID)
		return err
	})
	if err != nil {
		return loanRow{}, reservationRow{}, err
	}
	return lr, rr, nil
}

// ExecReturn removes the live loan of (book, member) and makes the book available again.
// Reservations are left as they are.
func (s *Store) ExecReturn(ctx context.Context, bookID, memberID int64) (Loan, error) {
	var l Loan
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		const q = `SELECT id, loan_ulid, book_id, member_id, loan_date, due_date
			FROM loans WHERE book_id = ? AND member_id = ?`
		if err := tx.GetContext(ctx, &l, tx.Rebind(q), bookID, memberID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrLoanNotFound
			}
			return err
		}
		if err := deleteLoanByID(ctx, tx, l.ID); err != nil {
			return err
		}
		return releaseBook(ctx, tx, bookID)
	})
	return l, err
}

// DeleteLoan removes a loan row by id. The book's availability flag is not touched.
func (s *Store) DeleteLoan(ctx context.Context, loanID int64) (Loan, error) {
	var l Loan
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		const q = `SELECT id, loan_ulid, book_id, member_id, loan_date, due_date FROM loans WHERE id = ?`
		if err := tx.GetContext(ctx, &l, tx.Rebind(q), loanID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrLoanNotFound
			}
			return err
		}
		return deleteLoanByID(ctx, tx, loanID)
	})
	return l, err
}

func deleteLoanByID(ctx context.Context, tx db.DBTX, loanID int64) error {
	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM loans WHERE id = ?`), loanID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return ErrLoanNotFound
	}
	return nil
}

// UpdateReservationStatus writes the status column only and returns the updated row.
func (s *Store) UpdateReservationStatus(ctx context.Context, id int64, status ReservationStatus) (reservationRow, error) {
	var row reservationRow
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		var err error
		row, err = getReservation(ctx, tx, id)
		if err != nil {
			return err
		}
		// MySQL reports 0 affected rows for a no-op UPDATE, so existence is decided by the SELECT above
		if row.Status == status {
			return nil
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE reservations SET status = ? WHERE id = ?`), status, id); err != nil {
			return err
		}
		row.Status = status
		return nil
	})
	return row, err
}

// ---------- queries ----------

func loanSelect(d goqu.DialectWrapper) *goqu.SelectDataset {
	return d.From(goqu.T("loans").As("l")).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("l.book_id")))).
		Join(goqu.T("members").As("m"), goqu.On(goqu.I("m.id").Eq(goqu.I("l.member_id")))).
		Prepared(true)
}

var loanColumns = []any{
	goqu.I("l.id").As("loan_id"), goqu.I("l.loan_ulid"), goqu.I("l.book_id"), goqu.I("l.member_id"),
	goqu.I("l.loan_date"), goqu.I("l.due_date"),
	goqu.I("b.title"), goqu.I("b.author"), goqu.I("b.genre"),
	goqu.I("m.name"), goqu.I("m.surname"), goqu.I("m.email"),
}

func reservationSelect(d goqu.DialectWrapper) *goqu.SelectDataset {
	return d.From(goqu.T("reservations").As("r")).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("r.book_id")))).
		Join(goqu.T("members").As("m"), goqu.On(goqu.I("m.id").Eq(goqu.I("r.member_id")))).
		Prepared(true)
}

var reservationColumns = []any{
	goqu.I("r.id").As("reservation_id"), goqu.I("r.reservation_ulid"), goqu.I("r.book_id"), goqu.I("r.member_id"),
	goqu.I("r.reserved_at"), goqu.I("r.status"),
	goqu.I("b.title"), goqu.I("b.author"), goqu.I("b.genre"),
	goqu.I("m.name"), goqu.I("m.surname"), goqu.I("m.email"),
}

func paginate(ds *goqu.SelectDataset, p Page) *goqu.SelectDataset {
	if p.Limit > 0 {
		ds = ds.Limit(uint(p.Limit))
		if p.Offset > 0 {
			ds = ds.Offset(uint(p.Offset))
		}
	}
	return ds
}

func count(ctx context.Context, x db.DBTX, ds *goqu.SelectDataset) (int64, error) {
	q, args, err := db.Build(ds.Select(goqu.COUNT(goqu.Star())))
	if err != nil {
		return 0, err
	}
	var total int64
	if err := x.GetContext(ctx, &total, q, args...); err != nil {
		return 0, err
	}
	return total, nil
}

func getLoan(ctx context.Context, x db.DBTX, loanID int64) (loanRow, error) {
	q, args, err := db.Build(loanSelect(db.Goqu(x)).Select(loanColumns...).Where(goqu.I("l.id").Eq(loanID)))
	if err != nil {
		return loanRow{}, err
	}
	var row loanRow
	if err := x.GetContext(ctx, &row, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return loanRow{}, ErrLoanNotFound
		}
		return loanRow{}, err
	}
	return row, nil
}

func (s *Store) GetLoan(ctx context.Context, loanID int64) (loanRow, error) {
	return getLoan(ctx, s.db, loanID)
}

func (s *Store) ListLoans(ctx context.Context, f LoanFilter, p Page) ([]loanRow, int64, error) {
	var (
		rows  []loanRow
		total int64
	)
	err := db.ReadOnly(ctx, s.db, func(ctx context.Context, tx db.DBTX) error {
		ds := loanSelect(db.Goqu(tx))
		if f.MemberID != nil {
			ds = ds.Where(goqu.I("l.member_id").Eq(*f.MemberID))
		}
		if f.BookID != nil {
			ds = ds.Where(goqu.I("l.book_id").Eq(*f.BookID))
		}

		var err error
		if total, err = count(ctx, tx, ds); err != nil {
			return err
		}

		q, args, err := db.Build(paginate(ds.Select(loanColumns...).Order(goqu.I("l.id").Asc()), p))
		if err != nil {
			return err
		}
		return tx.SelectContext(ctx, &rows, q, args...)
	})
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func getReservation(ctx context.Context, x db.DBTX, id int64) (reservationRow, error) {
	q, args, err := db.Build(reservationSelect(db.Goqu(x)).Select(reservationColumns...).Where(goqu.I("r.id").Eq(id)))
	if err != nil {
		return reservationRow{}, err
	}
	var row reservationRow
	if err := x.GetContext(ctx, &row, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return reservationRow{}, ErrReservationNotFound
		}
		return reservationRow{}, err
	}
	return row, nil
}

func (s *Store) GetReservation(ctx context.Context, id int64) (reservationRow, error) {
	return getReservation(ctx, s.db, id)
}

func (s *Store) ListReservations(ctx context.Context, f ReservationFilter, p Page) ([]reservationRow, int64, error) {
	var (
		rows  []reservationRow
		total int64
	)
	err := db.ReadOnly(ctx, s.db, func(ctx context.Context, tx db.DBTX) error {
		ds := reservationSelect(db.Goqu(tx))
		if f.MemberID != nil {
			ds = ds.Where(goqu.I("r.member_id").Eq(*f.MemberID))
		}
		if f.BookID != nil {
			ds = ds.Where(goqu.I("r.book_id").Eq(*f.BookID))
		}
		if f.Status != nil {
			ds = ds.Where(goqu.I("r.status").Eq(string(*f.Status)))
		}

		var err error
		if total, err = count(ctx, tx, ds); err != nil {
			return err
		}

		q, args, err := db.Build(paginate(ds.Select(reservationColumns...).Order(goqu.I("r.id").Asc()), p))
		if err != nil {
			return err
		}
		return tx.SelectContext(ctx, &rows, q, args...)
	})
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (s *Store) ListBooks(ctx context.Context, a Availability, p Page) ([]Book, error) {
	ds := db.Goqu(s.db).From("books").
		Select("id", "title", "author", "genre", "published_on", "available").
		Order(goqu.C("id").Asc()).
		Prepared(true)
	switch a {
	case AvailabilityAvailable:
		ds = ds.Where(goqu.C("available").Eq(true))
	case AvailabilityUnavailable:
		ds = ds.Where(goqu.C("available").Eq(false))
	}

	q, args, err := db.Build(paginate(ds, p))
	if err != nil {
		return nil, err
	}
	books := []Book{}
	if err := s.db.SelectContext(ctx, &books, q, args...); err != nil {
		return nil, err
	}
	return books, nil
}

func (s *Store) GetBook(ctx context.Context, id int64) (Book, error) {
	var b Book
	const q = `SELECT id, title, author, genre, published_on, available FROM books WHERE id = ?`
	if err := s.db.GetContext(ctx, &b, s.db.Rebind(q), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Book{}, ErrBookNotFound
		}
		return Book{}, err
	}
	return b, nil
}

// BookLoanCounts returns every book with the number of loan rows that reference it.
func (s *Store) BookLoanCounts(ctx context.Context) ([]bookLoanCount, error) {
	ds := db.Goqu(s.db).From(goqu.T("books").As("b")).
		LeftJoin(goqu.T("loans").As("l"), goqu.On(goqu.I("l.book_id").Eq(goqu.I("b.id")))).
		Select(goqu.I("b.id"), goqu.I("b.available"), goqu.COUNT(goqu.I("l.id")).As("live_loans")).
		GroupBy(goqu.I("b.id"), goqu.I("b.available")).
		Order(goqu.I("b.id").Asc()).
		Prepared(true)

	q, args, err := db.Build(ds)
	if err != nil {
		return nil, err
	}
	var out []bookLoanCount
	if err := s.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, err
	}
	return out, nil
}
