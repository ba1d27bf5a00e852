package handover

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (http.Handler, *memoryRepo) {
	t.Helper()
	svc, repo := newTestService(t, ServiceConfig{})
	r := chi.NewRouter()
	r.Route("/handovers", NewHandler(slog.Default(), svc).MountRoutes)
	return r, repo
}

func TestHandlerSubmitAndResolve(t *testing.T) {
	router, repo := newTestRouter(t)
	fiveOrders(repo)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/handovers/", strings.NewReader(`{"driver_id":4,"actual_cash":"950"}`)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created Handover
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	require.Equal(t, "50", created.Discrepancy.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/handovers/", strings.NewReader(`{"driver_id":4,"actual_cash":"1"}`)))
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/handovers/1/resolve", strings.NewReader(`{"decision":"MAYBE"}`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/handovers/1/resolve", strings.NewReader(`{"decision":"VERIFIED"}`)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Contains(t, rr.Body.String(), `"SHORTAGE"`)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/handovers/1/cancel", nil))
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestHandlerSnapshotAndNotFound(t *testing.T) {
	router, repo := newTestRouter(t)
	fiveOrders(repo)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/handovers/drivers/4/snapshot", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"expected_cash":"1000"`)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/handovers/42", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/handovers/abc", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
