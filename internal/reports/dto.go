package reports

import "time"

// LoanLine は貸出期間レポートの1行
type LoanLine struct {
	LoanID     int64     `db:"loan_id" json:"loan_id"`
	BookID     int64     `db:"book_id" json:"book_id"`
	Title      string    `db:"title" json:"title"`
	MemberID   int64     `db:"member_id" json:"member_id"`
	MemberName string    `db:"member_name" json:"member_name"`
	LoanDate   time.Time `db:"loan_date" json:"loan_date"`
	DueDate    time.Time `db:"due_date" json:"due_date"`
}

type MemberRank struct {
	MemberID int64  `db:"member_id" json:"member_id"`
	Name     string `db:"name" json:"name"`
	Surname  string `db:"surname" json:"surname"`
	Borrows  int64  `db:"borrows" json:"borrows"`
}

type BookRank struct {
	BookID  int64  `db:"book_id" json:"book_id"`
	Title   string `db:"title" json:"title"`
	Author  string `db:"author" json:"author"`
	Borrows int64  `db:"borrows" json:"borrows"`
}

type GenreCount struct {
	Genre   string `db:"genre" json:"genre"`
	Borrows int64  `db:"borrows" json:"borrows"`
}

// ===== Responses =====

type LoansReport struct {
	From  time.Time  `json:"from"`
	To    time.Time  `json:"to"`
	Items []LoanLine `json:"items"`
}

type OverdueReport struct {
	AsOf  time.Time  `json:"as_of"`
	Items []LoanLine `json:"items"`
}

type TopMembersReport struct {
	Items []MemberRank `json:"items"`
}

type PopularBooksReport struct {
	Items []BookRank `json:"items"`
}

type GenreTrendsReport struct {
	Items []GenreCount `json:"items"`
}

func utcLines(in []LoanLine) []LoanLine {
	for i := range in {
		in[i].LoanDate = in[i].LoanDate.UTC()
		in[i].DueDate = in[i].DueDate.UTC()
	}
	return in
}
