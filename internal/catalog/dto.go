package catalog

import (
	"database/sql"
	"strings"
	"time"
)

// Book は books テーブルの1行
type Book struct {
	ID          int64        `db:"id"`
	Title       string       `db:"title"`
	Author      string       `db:"author"`
	Genre       string       `db:"genre"`
	PublishedOn sql.NullTime `db:"published_on"`
	Available   bool         `db:"available"`
}

// ===== Requests =====

type CreateBookRequest struct {
	Title       string  `json:"title" binding:"required"`
	Author      string  `json:"author" binding:"required"`
	Genre       string  `json:"genre" binding:"required"`
	PublishedOn *string `json:"published_on,omitempty"` // YYYY-MM-DD
}

// availability is owned by the lending engine and cannot be patched here
type UpdateBookRequest struct {
	Title       *string `json:"title,omitempty"`
	Author      *string `json:"author,omitempty"`
	Genre       *string `json:"genre,omitempty"`
	PublishedOn *string `json:"published_on,omitempty"` // "" clears the date
}

// ===== Responses =====

type BookResponse struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Genre       string  `json:"genre"`
	PublishedOn *string `json:"published_on,omitempty"`
	Available   bool    `json:"available"`
}

type ListBooksResult struct {
	Items      []BookResponse `json:"items"`
	Total      int64          `json:"total"`
	NextOffset int            `json:"next_offset"`
}

type ImportBooksResponse struct {
	Encoding string            `json:"encoding"`
	Total    int               `json:"total"`
	OkCount  int               `json:"ok_count"`
	NgCount  int               `json:"ng_count"`
	Results  []ImportRowResult `json:"results"`
}

type ImportRowResult struct {
	Row    int     `json:"row"` // 1-based, header excluded
	Ok     bool    `json:"ok"`
	Error  *string `json:"error,omitempty"`
	BookID *int64  `json:"book_id,omitempty"`
	Title  *string `json:"title,omitempty"`
}

// ===== Listing helpers =====

type Page struct {
	Limit  int // 0 = all
	Offset int
}

type SearchQuery struct {
	Q     string  // matched against title and author, accent and case insensitive
	Genre *string // exact match
}

const dateLayout = "2006-01-02"

func parseDate(s *string) (sql.NullTime, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return sql.NullTime{}, nil
	}
	t, err := time.Parse(dateLayout, strings.TrimSpace(*s))
	if err != nil {
		return sql.NullTime{}, ErrInvalid("published_on must be YYYY-MM-DD")
	}
	return sql.NullTime{Time: t, Valid: true}, nil
}

func toResponse(b Book) BookResponse {
	resp := BookResponse{ID: b.ID, Title: b.Title, Author: b.Author, Genre: b.Genre, Available: b.Available}
	if b.PublishedOn.Valid {
		v := b.PublishedOn.Time.Format(dateLayout)
		resp.PublishedOn = &v
	}
	return resp
}
