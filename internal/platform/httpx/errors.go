// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/depot/internal/shared"
)

// ErrMalformedBody is returned when a request body is not valid JSON.
var ErrMalformedBody = shared.NewError(shared.ErrValidation, "malformed_body", "request body is not valid JSON")

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		Problem(w, http.StatusBadRequest, "Validation Failed", verrs.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrPreconditionFailed):
		Problem(w, http.StatusUnprocessableEntity, "Precondition Failed", err.Error())
	case errors.Is(err, shared.ErrInvariantViolation):
		Problem(w, http.StatusUnprocessableEntity, "Invariant Violation", err.Error())
	case errors.Is(err, shared.ErrIllegalTransition):
		Problem(w, http.StatusConflict, "Illegal State Transition", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// IsClientError reports whether RespondError answers err with a 4xx status.
func IsClientError(err error) bool {
	var verrs validator.ValidationErrors
	return errors.As(err, &verrs) || shared.KindOf(err) != nil
}
