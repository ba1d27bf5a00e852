package ledger

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/depot/internal/platform/httpx"
	"github.com/odyssey-erp/depot/internal/shared"
)

// Handler exposes ledger statements over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountCustomerRoutes registers routes below /customers/{customerID}.
func (h *Handler) MountCustomerRoutes(r chi.Router) {
	r.Get("/ledger", h.statement(ScopeCustomer, "customerID"))
	r.Get("/ledger/verify", h.verify(ScopeCustomer, "customerID"))
}

// MountDriverRoutes registers routes below /drivers/{driverID}.
func (h *Handler) MountDriverRoutes(r chi.Router) {
	r.Get("/ledger", h.statement(ScopeDriver, "driverID"))
	r.Get("/ledger/verify", h.verify(ScopeDriver, "driverID"))
}

func (h *Handler) statement(scope Scope, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := httpx.IDParam(r, param)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		page, perPage := shared.PageParams(r)
		stmt, err := h.service.Statement(r.Context(), EntryFilter{
			Scope:   scope,
			OwnerID: ownerID,
			Limit:   perPage,
			Offset:  (page - 1) * perPage,
		})
		if err != nil {
			h.logger.Error("ledger statement", slog.String("scope", string(scope)), slog.Int64("owner_id", ownerID), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, stmt)
	}
}

func (h *Handler) verify(scope Scope, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := httpx.IDParam(r, param)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		report, err := h.service.Verify(r.Context(), scope, ownerID)
		if err != nil {
			h.logger.Error("ledger verify", slog.Int64("owner_id", ownerID), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, report)
	}
}
