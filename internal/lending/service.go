package lending

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/jmoiron/sqlx"
	ulid "github.com/oklog/ulid/v2"

	"bibliogoya-backend/internal/platform/logging"
)

// -------------- Clock & ID --------------

type Clock interface{ Now() time.Time }
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type IDGen interface{ NewULID(t time.Time) string }
type ulidGen struct{}

func (ulidGen) NewULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// -------------- Service --------------

// Service is the lending engine. Every state change runs as one transaction.
// It never authorizes: callers decide who may invoke what.
type Service struct {
	store *Store
	clock Clock
	id    IDGen
	log   logging.Logger
}

type Option func(*Service)

func WithClock(c Clock) Option          { return func(s *Service) { s.clock = c } }
func WithIDGen(g IDGen) Option          { return func(s *Service) { s.id = g } }
func WithLogger(l logging.Logger) Option { return func(s *Service) { s.log = l } }

func NewService(conn *sqlx.DB, opts ...Option) *Service {
	s := &Service{
		store: NewStore(conn),
		clock: realClock{},
		id:    ulidGen{},
		log:   logging.Discard(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// POST /books/:book_id/borrow
// Borrow and reserve are the same action: an available book yields a loan plus a Pending reservation.
func (s *Service) Borrow(ctx context.Context, bookID, memberID int64) (BorrowResponse, error) {
	return s.borrow(ctx, bookID, memberID, "member")
}

// AdminCreateLoanDirect is Borrow invoked from the administrative surface.
func (s *Service) AdminCreateLoanDirect(ctx context.Context, bookID, memberID int64) (BorrowResponse, error) {
	return s.borrow(ctx, bookID, memberID, "admin")
}

func (s *Service) borrow(ctx context.Context, bookID, memberID int64, origin string) (BorrowResponse, error) {
	if bookID <= 0 {
		return BorrowResponse{}, ErrInvalid("book_id must be > 0")
	}
	if memberID <= 0 {
		return BorrowResponse{}, ErrInvalid("member_id must be > 0")
	}

	now := s.now()
	l := &Loan{
		ULID:     s.id.NewULID(now),
		BookID:   bookID,
		MemberID: memberID,
		LoanDate: now,
		DueDate:  DueDateFor(now),
	}
	r := &Reservation{
		ULID:       s.id.NewULID(now),
		BookID:     bookID,
		MemberID:   memberID,
		ReservedAt: now,
		Status:     StatusPending,
	}

	loan, res, err := s.store.ExecBorrow(ctx, l, r)
	if err != nil {
		s.log.WarnContext(ctx, "borrow rejected", append(logging.Actor(ctx),
			"origin", origin, "book_id", bookID, "member_id", memberID, "error", err)...)
		return BorrowResponse{}, asAPIError(err)
	}
	s.log.InfoContext(ctx, "book lent", append(logging.Actor(ctx),
		"origin", origin, "book_id", bookID, "member_id", memberID,
		"loan_ulid", l.ULID, "due_date", l.DueDate)...)
	return BorrowResponse{Loan: loan.toResponse(), Reservation: res.toResponse()}, nil
}

// POST /books/:book_id/return
// The reservation created at borrow time keeps its status.
func (s *Service) Return(ctx context.Context, bookID, memberID int64) (ReturnResponse, error) {
	if bookID <= 0 || memberID <= 0 {
		return ReturnResponse{}, ErrInvalid("book_id and member_id must be > 0")
	}
	l, err := s.store.ExecReturn(ctx, bookID, memberID)
	if err != nil {
		s.log.WarnContext(ctx, "return rejected", append(logging.Actor(ctx),
			"book_id", bookID, "member_id", memberID, "error", err)...)
		return ReturnResponse{}, asAPIError(err)
	}
	now := s.now()
	s.log.InfoContext(ctx, "book returned", append(logging.Actor(ctx),
		"book_id", bookID, "member_id", memberID, "loan_ulid", l.ULID)...)

	return ReturnResponse{
		LoanULID:   l.ULID,
		BookID:     l.BookID,
		MemberID:   l.MemberID,
		LoanDate:   l.LoanDate.UTC(),
		ReturnedAt: now,
	}, nil
}

// EditReservationStatus changes the status field and nothing else: loans and availability stay as they are.
func (s *Service) EditReservationStatus(ctx context.Context, reservationID int64, status ReservationStatus) (ReservationResponse, error) {
	if !status.Valid() {
		return ReservationResponse{}, ErrInvalid("status must be one of Pending, Completed, Cancelled")
	}
	row, err := s.store.UpdateReservationStatus(ctx, reservationID, status)
	if err != nil {
		return ReservationResponse{}, asAPIError(err)
	}
	s.log.InfoContext(ctx, "reservation status changed", append(logging.Actor(ctx),
		"reservation_id", reservationID, "status", status)...)
	return row.toResponse(), nil
}

// POST /admin/reservations/:id/cancel
func (s *Service) CancelReservation(ctx context.Context, reservationID int64) (ReservationResponse, error) {
	return s.EditReservationStatus(ctx, reservationID, StatusCancelled)
}

// DeleteLoan removes the loan record only. Unlike Return it leaves the book marked unavailable.
func (s *Service) DeleteLoan(ctx context.Context, loanID int64) error {
	l, err := s.store.DeleteLoan(ctx, loanID)
	if err != nil {
		return asAPIError(err)
	}
	s.log.WarnContext(ctx, "loan deleted without return; book availability unchanged", append(logging.Actor(ctx),
		"loan_id", loanID, "loan_ulid", l.ULID, "book_id", l.BookID, "member_id", l.MemberID)...)
	return nil
}

func (s *Service) GetLoan(ctx context.Context, loanID int64) (LoanResponse, error) {
	row, err := s.store.GetLoan(ctx, loanID)
	if err != nil {
		return LoanResponse{}, asAPIError(err)
	}
	return row.toResponse(), nil
}

func (s *Service) GetReservation(ctx context.Context, reservationID int64) (ReservationResponse, error) {
	row, err := s.store.GetReservation(ctx, reservationID)
	if err != nil {
		return ReservationResponse{}, asAPIError(err)
	}
	return row.toResponse(), nil
}

func (s *Service) GetBook(ctx context.Context, bookID int64) (BookResponse, error) {
	b, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return BookResponse{}, asAPIError(err)
	}
	return toBookResponse(b), nil
}

func (s *Service) ListBooks(ctx context.Context, a Availability, p Page) ([]BookResponse, error) {
	books, err := s.store.ListBooks(ctx, a, p)
	if err != nil {
		return nil, asAPIError(err)
	}
	out := make([]BookResponse, 0, len(books))
	for _, b := range books {
		out = append(out, toBookResponse(b))
	}
	return out, nil
}

func (s *Service) ListUnavailableBooks(ctx context.Context) ([]BookResponse, error) {
	return s.ListBooks(ctx, AvailabilityUnavailable, Page{})
}

type ListLoansResult struct {
	Items      []LoanResponse `json:"items"`
	Total      int64          `json:"total"`
	NextOffset int            `json:"next_offset"`
}

func (s *Service) ListLoans(ctx context.Context, f LoanFilter, p Page) (ListLoansResult, error) {
	rows, total, err := s.store.ListLoans(ctx, f, p)
	if err != nil {
		return ListLoansResult{}, asAPIError(err)
	}
	items := make([]LoanResponse, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.toResponse())
	}
	return ListLoansResult{Items: items, Total: total, NextOffset: nextOffset(p, total)}, nil
}

func (s *Service) ListLoansForMember(ctx context.Context, memberID int64) ([]LoanResponse, error) {
	res, err := s.ListLoans(ctx, LoanFilter{MemberID: &memberID}, Page{})
	return res.Items, err
}

// ListAllLoansWithOwners is the administrator's view: every live loan with its book and member.
func (s *Service) ListAllLoansWithOwners(ctx context.Context) ([]LoanResponse, error) {
	res, err := s.ListLoans(ctx, LoanFilter{}, Page{})
	return res.Items, err
}

type ListReservationsResult struct {
	Items      []ReservationResponse `json:"items"`
	Total      int64                 `json:"total"`
	NextOffset int                   `json:"next_offset"`
}

func (s *Service) ListReservations(ctx context.Context, f ReservationFilter, p Page) (ListReservationsResult, error) {
	if f.Status != nil && !f.Status.Valid() {
		return ListReservationsResult{}, ErrInvalid("unknown reservation status")
	}
	rows, total, err := s.store.ListReservations(ctx, f, p)
	if err != nil {
		return ListReservationsResult{}, asAPIError(err)
	}
	items := make([]ReservationResponse, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.toResponse())
	}
	return ListReservationsResult{Items: items, Total: total, NextOffset: nextOffset(p, total)}, nil
}

// CheckInvariant lists books whose availability flag disagrees with their loan rows:
// an available book must have no loan, an unavailable one exactly one.
// DeleteLoan deliberately produces unavailable books with zero loans; they show up here.
func (s *Service) CheckInvariant(ctx context.Context) ([]InvariantViolation, error) {
	counts, err := s.store.BookLoanCounts(ctx)
	if err != nil {
		return nil, asAPIError(err)
	}
	out := []InvariantViolation{}
	for _, c := range counts {
		if (c.Available && c.LiveLoans == 0) || (!c.Available && c.LiveLoans == 1) {
			continue
		}
		out = append(out, InvariantViolation{BookID: c.BookID, Available: c.Available, LiveLoans: c.LiveLoans})
	}
	return out, nil
}

// helpers

// 秒未満は切り捨て（DBの精度に揃える）
func (s *Service) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Second)
}

func nextOffset(p Page, total int64) int {
	if p.Limit <= 0 {
		return 0
	}
	next := p.Offset + p.Limit
	if next >= int(total) {
		next = 0
	} // 0=終端
	return next
}
