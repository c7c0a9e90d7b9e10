package lending

import (
	"database/sql"
	"strings"
	"time"
)

// Book は books テーブルの1行を表す
type Book struct {
	ID          int64        `db:"id"`
	Title       string       `db:"title"`
	Author      string       `db:"author"`
	Genre       string       `db:"genre"`
	PublishedOn sql.NullTime `db:"published_on"`
	Available   bool         `db:"available"`
}

// Loan は loans テーブルの1行を表す。行が存在する間が「貸出中」
type Loan struct {
	ID       int64     `db:"id"`
	ULID     string    `db:"loan_ulid"`
	BookID   int64     `db:"book_id"`
	MemberID int64     `db:"member_id"`
	LoanDate time.Time `db:"loan_date"`
	DueDate  time.Time `db:"due_date"`
}

// Reservation は reservations テーブルの1行を表す
type Reservation struct {
	ID         int64             `db:"id"`
	ULID       string            `db:"reservation_ulid"`
	BookID     int64             `db:"book_id"`
	MemberID   int64             `db:"member_id"`
	ReservedAt time.Time         `db:"reserved_at"`
	Status     ReservationStatus `db:"status"`
}

type ReservationStatus string

const (
	StatusPending   ReservationStatus = "Pending"
	StatusCompleted ReservationStatus = "Completed"
	StatusCancelled ReservationStatus = "Cancelled"
)

func (s ReservationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ParseReservationStatus accepts the canonical names case-insensitively.
func ParseReservationStatus(s string) (ReservationStatus, error) {
	for _, st := range []ReservationStatus{StatusPending, StatusCompleted, StatusCancelled} {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, nil
		}
	}
	return "", ErrInvalid("status must be one of Pending, Completed, Cancelled")
}

// Availability selects which books ListBooks returns.
type Availability string

const (
	AvailabilityAll         Availability = "all"
	AvailabilityAvailable   Availability = "available"
	AvailabilityUnavailable Availability = "unavailable"
)

func ParseAvailability(s string) (Availability, error) {
	switch Availability(strings.ToLower(strings.TrimSpace(s))) {
	case "", AvailabilityAll:
		return AvailabilityAll, nil
	case AvailabilityAvailable:
		return AvailabilityAvailable, nil
	case AvailabilityUnavailable:
		return AvailabilityUnavailable, nil
	}
	return "", ErrInvalid("filter must be one of all, available, unavailable")
}

// 貸出一覧の検索条件
type LoanFilter struct {
	MemberID *int64
	BookID   *int64
}

// 予約一覧の検索条件
type ReservationFilter struct {
	MemberID *int64
	BookID   *int64
	Status   *ReservationStatus
}

type Page struct {
	Limit  int // 0 = 全件
	Offset int
}

// loanRow is a loan joined with its book and member.
type loanRow struct {
	LoanID   int64     `db:"loan_id"`
	LoanULID string    `db:"loan_ulid"`
	BookID   int64     `db:"book_id"`
	MemberID int64     `db:"member_id"`
	LoanDate time.Time `db:"loan_date"`
	DueDate  time.Time `db:"due_date"`
	Title    string    `db:"title"`
	Author   string    `db:"author"`
	Genre    string    `db:"genre"`
	Name     string    `db:"name"`
	Surname  string    `db:"surname"`
	Email    string    `db:"email"`
}

// reservationRow is a reservation joined with its book and member.
type reservationRow struct {
	ReservationID   int64             `db:"reservation_id"`
	ReservationULID string            `db:"reservation_ulid"`
	BookID          int64             `db:"book_id"`
	MemberID        int64             `db:"member_id"`
	ReservedAt      time.Time         `db:"reserved_at"`
	Status          ReservationStatus `db:"status"`
	Title           string            `db:"title"`
	Author          string            `db:"author"`
	Genre           string            `db:"genre"`
	Name            string            `db:"name"`
	Surname         string            `db:"surname"`
	Email           string            `db:"email"`
}

// bookLoanCount pairs a book's availability flag with the number of loan rows referencing it.
type bookLoanCount struct {
	BookID    int64 `db:"id"`
	Available bool  `db:"available"`
	LiveLoans int   `db:"live_loans"`
}

// DueDateFor returns loanDate plus one calendar month, clamped to the last day of that month
// (Jan 31 -> Feb 28/29).
func DueDateFor(loanDate time.Time) time.Time {
	y, m, d := loanDate.Date()
	firstOfNext := time.Date(y, m+1, 1, 0, 0, 0, 0, loanDate.Location())
	lastDay := firstOfNext.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(firstOfNext.Year(), firstOfNext.Month(), d,
		loanDate.Hour(), loanDate.Minute(), loanDate.Second(), loanDate.Nanosecond(), loanDate.Location())
}
