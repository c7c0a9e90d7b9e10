package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"bibliogoya-backend/internal/platform/logging"
)

type Service struct {
	store *Store
	log   logging.Logger
}

func NewService(conn *sqlx.DB, log logging.Logger) *Service {
	if log == nil {
		log = logging.Discard()
	}
	return &Service{store: NewStore(conn), log: log}
}

func validate(title, author, genre string) error {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(author) == "" || strings.TrimSpace(genre) == "" {
		return ErrInvalid("title, author, genre are required")
	}
	return nil
}

// New books always start available.
func (s *Service) CreateBook(ctx context.Context, in CreateBookRequest) (BookResponse, error) {
	if err := validate(in.Title, in.Author, in.Genre); err != nil {
		return BookResponse{}, err
	}
	pub, err := parseDate(in.PublishedOn)
	if err != nil {
		return BookResponse{}, err
	}
	b := Book{
		Title:       strings.TrimSpace(in.Title),
		Author:      strings.TrimSpace(in.Author),
		Genre:       strings.TrimSpace(in.Genre),
		PublishedOn: pub,
	}
	if err := s.store.Insert(ctx, &b); err != nil {
		return BookResponse{}, wrapInternal(err)
	}
	s.log.InfoContext(ctx, "book created", append(logging.Actor(ctx), "book_id", b.ID, "title", b.Title)...)
	return toResponse(b), nil
}

func (s *Service) GetBook(ctx context.Context, id int64) (BookResponse, error) {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return BookResponse{}, wrapInternal(err)
	}
	return toResponse(b), nil
}

func (s *Service) UpdateBook(ctx context.Context, id int64, in UpdateBookRequest) (BookResponse, error) {
	rec := goqu.Record{}
	for col, v := range map[string]*string{"title": in.Title, "author": in.Author, "genre": in.Genre} {
		if v == nil {
			continue
		}
		if strings.TrimSpace(*v) == "" {
			return BookResponse{}, ErrInvalid(col + " must not be empty")
		}
		rec[col] = strings.TrimSpace(*v)
	}
	if in.PublishedOn != nil {
		pub, err := parseDate(in.PublishedOn)
		if err != nil {
			return BookResponse{}, err
		}
		rec["published_on"] = pub
	}

	b, err := s.store.Update(ctx, id, rec)
	if err != nil {
		return BookResponse{}, wrapInternal(err)
	}
	s.log.InfoContext(ctx, "book updated", append(logging.Actor(ctx), "book_id", id)...)
	return toResponse(b), nil
}

// DeleteBook is refused while the book is lent.
func (s *Service) DeleteBook(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return wrapInternal(err)
	}
	s.log.InfoContext(ctx, "book deleted", append(logging.Actor(ctx), "book_id", id)...)
	return nil
}

// Search filters the catalog by genre and by a folded substring of title or author.
func (s *Service) Search(ctx context.Context, q SearchQuery, p Page) (ListBooksResult, error) {
	books, err := s.store.List(ctx, q.Genre)
	if err != nil {
		return ListBooksResult{}, wrapInternal(err)
	}

	needle := fold(strings.TrimSpace(q.Q))
	matched := make([]BookResponse, 0, len(books))
	for _, b := range books {
		if needle != "" && !strings.Contains(fold(b.Title), needle) && !strings.Contains(fold(b.Author), needle) {
			continue
		}
		matched = append(matched, toResponse(b))
	}

	total := int64(len(matched))
	if p.Offset > len(matched) {
		p.Offset = len(matched)
	}
	items := matched[p.Offset:]
	next := 0
	if p.Limit > 0 && len(items) > p.Limit {
		items = items[:p.Limit]
		next = p.Offset + p.Limit
	}
	return ListBooksResult{Items: items, Total: total, NextOffset: next}, nil
}

var importHeader = []string{"title", "author", "genre", "published_on"}

// ImportCSV adds one book per data row. Rows are independent: a bad row is reported
// and the rest are still imported. The header row names the columns; published_on is optional.
func (s *Service) ImportCSV(ctx context.Context, raw []byte, encodingName string) (ImportBooksResponse, error) {
	r, enc, err := decodeInput(raw, encodingName)
	if err != nil {
		return ImportBooksResponse{}, err
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return ImportBooksResponse{}, ErrInvalid("empty csv")
		}
		return ImportBooksResponse{}, ErrInvalid("unreadable csv: " + err.Error())
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range importHeader[:3] {
		if _, ok := idx[col]; !ok {
			return ImportBooksResponse{}, ErrInvalid("csv header must contain " + strings.Join(importHeader, ","))
		}
	}
	field := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	out := ImportBooksResponse{Encoding: enc, Results: []ImportRowResult{}}
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		res := ImportRowResult{Row: row}
		if err != nil {
			msg := err.Error()
			res.Error = &msg
			out.Results = append(out.Results, res)
			out.NgCount++
			continue
		}

		pub := field(rec, "published_on")
		b, err := s.CreateBook(ctx, CreateBookRequest{
			Title:       field(rec, "title"),
			Author:      field(rec, "author"),
			Genre:       field(rec, "genre"),
			PublishedOn: &pub,
		})
		if err != nil {
			msg := err.Error()
			res.Error = &msg
			out.NgCount++
		} else {
			res.Ok = true
			res.BookID = &b.ID
			res.Title = &b.Title
			out.OkCount++
		}
		out.Results = append(out.Results, res)
	}
	out.Total = len(out.Results)

	s.log.InfoContext(ctx, "catalog import finished", append(logging.Actor(ctx),
		"encoding", enc, "ok", out.OkCount, "ng", out.NgCount)...)
	return out, nil
}

// ExportCSV writes the whole catalog with the import header, in the named encoding ("" = UTF-8).
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, encodingName string) error {
	ew, err := encodeOutput(w, encodingName)
	if err != nil {
		return err
	}
	books, err := s.store.List(ctx, nil)
	if err != nil {
		return wrapInternal(err)
	}

	cw := csv.NewWriter(ew)
	if err := cw.Write(append(append([]string{}, importHeader...), "available")); err != nil {
		return err
	}
	for _, b := range books {
		r := toResponse(b)
		pub := ""
		if r.PublishedOn != nil {
			pub = *r.PublishedOn
		}
		if err := cw.Write([]string{r.Title, r.Author, r.Genre, pub, fmt.Sprintf("%t", r.Available)}); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	if c, ok := ew.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
