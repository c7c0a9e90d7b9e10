package genres

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jmoiron/sqlx"

	"bibliogoya-backend/internal/platform/db"
	"bibliogoya-backend/internal/platform/logging"
)

// ===== Error model =====
type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string      { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func ErrInvalid(msg string) *APIError  { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrConflict(msg string) *APIError { return &APIError{Code: CodeConflict, Message: msg} }
func ErrInternal(msg string) *APIError { return &APIError{Code: CodeInternal, Message: msg} }

var ErrGenreNotFound = ErrNotFound("genre not found")

func toHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return http.StatusBadRequest
		case CodeNotFound:
			return http.StatusNotFound
		case CodeConflict:
			return http.StatusConflict
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}

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

func parseBoolish(s string) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	return s == "1" || s == "true" || s == "yes" || s == "all"
}

// コードは大文字に揃える（"nov" と "NOV" を同一視）
func normalizeCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", ErrInvalid("code is required")
	}
	return code, nil
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalid("name is required")
	}
	return name, nil
}

func storeError(err error, what string) error {
	var api *APIError
	switch {
	case errors.As(err, &api):
		return err
	case errors.Is(db.Classify(err), db.ErrDuplicate):
		return ErrConflict("genre name or code already exists")
	}
	return ErrInternal("failed to " + what)
}

// ListGenres returns enabled genres, or every genre when all is truthy ("1", "true", "all").
func (s *Service) ListGenres(ctx context.Context, all string) ([]Genre, error) {
	out, err := s.store.List(ctx, parseBoolish(all))
	if err != nil {
		return nil, storeError(err, "list genres")
	}
	return out, nil
}

func (s *Service) GetGenre(ctx context.Context, id int64) (Genre, error) {
	g, err := s.store.Get(ctx, id)
	if err != nil {
		return Genre{}, storeError(err, "get genre")
	}
	return g, nil
}

func (s *Service) CreateGenre(ctx context.Context, name, code string) (Genre, error) {
	n, err := normalizeName(name)
	if err != nil {
		return Genre{}, err
	}
	c, err := normalizeCode(code)
	if err != nil {
		return Genre{}, err
	}
	id, err := s.store.Create(ctx, n, c)
	if err != nil {
		return Genre{}, storeError(err, "create genre")
	}
	s.log.InfoContext(ctx, "genre created", append(logging.Actor(ctx), "genre_id", id, "code", c)...)
	return s.GetGenre(ctx, id)
}

// UpdateGenre renames books filed under the old name in the same Tx.
func (s *Service) UpdateGenre(ctx context.Context, id int64, name, code string, disabled bool) (Genre, error) {
	n, err := normalizeName(name)
	if err != nil {
		return Genre{}, err
	}
	c, err := normalizeCode(code)
	if err != nil {
		return Genre{}, err
	}
	renamed, err := s.store.Update(ctx, id, n, c, disabled)
	if err != nil {
		return Genre{}, storeError(err, "update genre")
	}
	s.log.InfoContext(ctx, "genre updated", append(logging.Actor(ctx), "genre_id", id, "books_renamed", renamed)...)
	return s.GetGenre(ctx, id)
}

// DeleteGenre only disables the genre; books keep their genre name.
func (s *Service) DeleteGenre(ctx context.Context, id int64) error {
	if err := s.store.Disable(ctx, id); err != nil {
		return storeError(err, "delete genre")
	}
	s.log.InfoContext(ctx, "genre disabled", append(logging.Actor(ctx), "genre_id", id)...)
	return nil
}
