package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/depot/internal/shared"
)

func TestRespondErrorMapsKinds(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{"not found", shared.NewError(shared.ErrNotFound, "x", "order 4 not found"), http.StatusNotFound, "order 4 not found"},
		{"precondition", fmt.Errorf("cannot complete delivery: %w", shared.NewError(shared.ErrPreconditionFailed, "stock", "insufficient stock for product 7, available 3, required 5")), http.StatusUnprocessableEntity, "cannot complete delivery: insufficient stock for product 7, available 3, required 5"},
		{"invariant", shared.NewError(shared.ErrInvariantViolation, "wallet", "negative"), http.StatusUnprocessableEntity, "negative"},
		{"transition", shared.NewError(shared.ErrIllegalTransition, "np", "handover is not pending"), http.StatusConflict, "handover is not pending"},
		{"conflict", shared.ErrLockHeld, http.StatusConflict, "operation already in progress"},
		{"validation", ErrMalformedBody, http.StatusBadRequest, "request body is not valid JSON"},
		{"internal", errors.New("dial tcp: refused"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondError(rec, tc.err)
			require.Equal(t, tc.status, rec.Code)
			var problem ProblemDetail
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			require.Equal(t, tc.status, problem.Status)
			require.Equal(t, tc.detail, problem.Detail)
		})
	}
}
