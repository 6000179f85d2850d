// Package v1 holds cross-cutting types shared by every v1 handler group:
// the request-error wrapper handlers use to carry an HTTP status alongside
// a domain error, without every handler re-deriving status codes itself.
package v1

import (
	"errors"
	"net/http"

	"github.com/coreledger/node/foundation/blockchain/database"
)

// RequestError wraps a domain error with the HTTP status it should produce.
// Handlers return *RequestError (via NewRequestError) instead of encoding
// status decisions inline; cmd/node's errorMiddleware is the single place
// that reads it back out.
type RequestError struct {
	Err    error
	Status int
}

func (re *RequestError) Error() string {
	return re.Err.Error()
}

func (re *RequestError) Unwrap() error {
	return re.Err
}

// NewRequestError wraps err so it carries status through the handler
// return path.
func NewRequestError(err error, status int) error {
	return &RequestError{Err: err, Status: status}
}

// IsRequestError unwraps err looking for a *RequestError.
func IsRequestError(err error) (*RequestError, bool) {
	var re *RequestError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// statusFor maps a domain error from foundation/blockchain/database to the
// status code its rejection reason deserves, per SPEC_FULL.md §7. Errors
// not in this table (decode failures, missing routes, ...) are left for
// the caller to classify.
func statusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, database.ErrInvalidSignature),
		errors.Is(err, database.ErrBadNonce),
		errors.Is(err, database.ErrInsufficientBalance),
		errors.Is(err, database.ErrUnknownSender):
		return http.StatusBadRequest, true

	case errors.Is(err, database.ErrMissingParent),
		errors.Is(err, database.ErrPoWUnsatisfied),
		errors.Is(err, database.ErrDifficultyMismatch):
		return http.StatusUnprocessableEntity, true

	case errors.Is(err, database.ErrDuplicateBlock):
		return http.StatusConflict, true
	}

	return 0, false
}

// NewDomainError wraps a domain error from the blockchain packages with the
// status code SPEC_FULL.md §7 assigns its class, falling back to 422 for
// any domain error this table doesn't recognize.
func NewDomainError(err error) error {
	status, ok := statusFor(err)
	if !ok {
		status = http.StatusUnprocessableEntity
	}
	return NewRequestError(err, status)
}
