package lending

import (
	"errors"
	"fmt"
	"net/http"
)

// -------------- Error model & mapping --------------

type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT" // 貸出中・二重貸出など
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

func ErrInvalid(msg string) *APIError  { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrConflict(msg string) *APIError { return &APIError{Code: CodeConflict, Message: msg} }
func ErrInternal(msg string) *APIError { return &APIError{Code: CodeInternal, Message: msg} }

// ErrStore wraps a persistence failure; the transaction it happened in has been rolled back.
func ErrStore(err error) *APIError {
	return &APIError{Code: CodeInternal, Message: "store failure", Err: err}
}

// Sentinels for the engine's named failure conditions. Compare with errors.Is.
var (
	ErrBookNotFound        = ErrNotFound("book not found")
	ErrMemberNotFound      = ErrNotFound("member not found")
	ErrLoanNotFound        = ErrNotFound("no live loan for this book and member")
	ErrReservationNotFound = ErrNotFound("reservation not found")
	ErrBookUnavailable     = ErrConflict("book is already lent")
)

// asAPIError leaves engine errors alone and wraps anything else as a store failure.
func asAPIError(err error) error {
	if err == nil {
		return nil
	}
	var api *APIError
	if errors.As(err, &api) {
		return err
	}
	return ErrStore(err)
}

// -------------- Error helpers for handler --------------

func ToHTTPStatus(err error) int {
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
