package expenses

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/depot/internal/platform/httpx"
	"github.com/odyssey-erp/depot/internal/shared"
)

// Handler exposes /expenses.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the expense routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{expenseID}", h.show)
	r.Post("/{expenseID}/approve", h.approve)
	r.Post("/{expenseID}/reject", h.reject)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageParams(r)
	req := ListRequest{Limit: perPage, Offset: (page - 1) * perPage}
	if v := r.URL.Query().Get("driver_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid driver_id")
			return
		}
		req.DriverID = &id
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := Status(v)
		req.Status = &status
	}
	items, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.fail(w, "list expenses", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"expenses":   items,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	created, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.fail(w, "create expense", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "expenseID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	e, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get expense", err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.service.Approve)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.service.Reject)
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id, actorID int64) (Expense, error)) {
	id, err := httpx.IDParam(r, "expenseID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	e, err := fn(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "review expense", err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
