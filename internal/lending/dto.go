package lending

import "time"

// 管理者による直接貸出リクエスト
type CreateLoanRequest struct {
	BookID   int64 `json:"book_id" binding:"required"`
	MemberID int64 `json:"member_id" binding:"required"`
}

// 予約ステータス変更リクエスト
type UpdateReservationRequest struct {
	Status string `json:"status" binding:"required"`
}

type BookResponse struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Genre       string  `json:"genre"`
	PublishedOn *string `json:"published_on,omitempty"` // "2006-01-02"
	Available   bool    `json:"available"`
}

type BookSummary struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Genre  string `json:"genre"`
}

type MemberSummary struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Email   string `json:"email"`
}

// 貸出レスポンス
type LoanResponse struct {
	LoanID   int64         `json:"loan_id"`
	LoanULID string        `json:"loan_ulid"`
	Book     BookSummary   `json:"book"`
	Member   MemberSummary `json:"member"`
	LoanDate time.Time     `json:"loan_date"`
	DueDate  time.Time     `json:"due_date"`
}

type ReservationResponse struct {
	ReservationID   int64             `json:"reservation_id"`
	ReservationULID string            `json:"reservation_ulid"`
	Book            BookSummary       `json:"book"`
	Member          MemberSummary     `json:"member"`
	ReservedAt      time.Time         `json:"reserved_at"`
	Status          ReservationStatus `json:"status"`
}

// BorrowResponse is what a successful borrow/reserve produced.
type BorrowResponse struct {
	Loan        LoanResponse        `json:"loan"`
	Reservation ReservationResponse `json:"reservation"`
}

// 返却レスポンス
type ReturnResponse struct {
	LoanULID   string    `json:"loan_ulid"`
	BookID     int64     `json:"book_id"`
	MemberID   int64     `json:"member_id"`
	LoanDate   time.Time `json:"loan_date"`
	ReturnedAt time.Time `json:"returned_at"`
}

// InvariantViolation describes a book whose availability flag disagrees with its loan rows.
type InvariantViolation struct {
	BookID    int64 `json:"book_id"`
	Available bool  `json:"available"`
	LiveLoans int   `json:"live_loans"`
}

func toBookResponse(b Book) BookResponse {
	resp := BookResponse{
		ID:        b.ID,
		Title:     b.Title,
		Author:    b.Author,
		Genre:     b.Genre,
		Available: b.Available,
	}
	if b.PublishedOn.Valid {
		v := b.PublishedOn.Time.Format("2006-01-02")
		resp.PublishedOn = &v
	}
	return resp
}

func (r loanRow) toResponse() LoanResponse {
	return LoanResponse{
		LoanID:   r.LoanID,
		LoanULID: r.LoanULID,
		Book:     BookSummary{ID: r.BookID, Title: r.Title, Author: r.Author, Genre: r.Genre},
		Member:   MemberSummary{ID: r.MemberID, Name: r.Name, Surname: r.Surname, Email: r.Email},
		LoanDate: r.LoanDate.UTC(),
		DueDate:  r.DueDate.UTC(),
	}
}

func (r reservationRow) toResponse() ReservationResponse {
	return ReservationResponse{
		ReservationID:   r.ReservationID,
		ReservationULID: r.ReservationULID,
		Book:            BookSummary{ID: r.BookID, Title: r.Title, Author: r.Author, Genre: r.Genre},
		Member:          MemberSummary{ID: r.MemberID, Name: r.Name, Surname: r.Surname, Email: r.Email},
		ReservedAt:      r.ReservedAt.UTC(),
		Status:          r.Status,
	}
}
