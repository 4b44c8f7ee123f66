// Package apperr defines the error kinds shared by the ingestion and query
// pipelines. Callers classify with errors.Is against the sentinels.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrClientInput     = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrCorruptDocument = errors.New("document is corrupted or unreadable")
	ErrProvider        = errors.New("provider failure")
)

// kindError carries a human message while matching its sentinel kind.
type kindError struct {
	kind error
	msg  string
	err  error
}

func (e *kindError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *kindError) Is(target error) bool { return target == e.kind }

func (e *kindError) Unwrap() error { return e.err }

func ClientInput(msg string) error {
	return &kindError{kind: ErrClientInput, msg: msg}
}

func NotFound(msg string) error {
	return &kindError{kind: ErrNotFound, msg: msg}
}

func Corrupt(err error) error {
	return &kindError{kind: ErrCorruptDocument, msg: "uploaded document is corrupted or unreadable", err: err}
}

// Provider wraps a failed call to an external provider (embedding, completion,
// transcription, storage). op names the call, e.g. "embed chunks".
func Provider(op string, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: ErrProvider, msg: op, err: err}
}

// Status maps an error kind to the HTTP status the API reports.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrClientInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrCorruptDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
