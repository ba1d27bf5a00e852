package inventory

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/depot/internal/platform/httpx"
	"github.com/odyssey-erp/depot/internal/shared"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.listStock)
	r.Get("/products/{productID}", h.showStock)
	r.Get("/products/{productID}/movements", h.listMovements)

	r.Post("/restock", h.handleRestock)
	r.Post("/refill", h.handleRefill)
	r.Post("/write-off", h.handleWriteOff)
	r.Post("/adjust", h.handleAdjust)
}

func (h *Handler) listStock(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.service.ListStock(r.Context())
	if err != nil {
		h.logger.Error("list stock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if stocks == nil {
		stocks = []Stock{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": stocks})
}

func (h *Handler) showStock(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.IDParam(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	stock, err := h.service.GetStock(r.Context(), productID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stock)
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.IDParam(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := MovementFilter{ProductID: productID, Limit: 500}
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		from, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid from date")
			return
		}
		filter.From = from
	}
	if v := q.Get("to"); v != "" {
		to, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid to date")
			return
		}
		filter.To = to.Add(24*time.Hour - time.Nanosecond)
	}
	movements, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		h.logger.Error("list movements", slog.Int64("product_id", productID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if movements == nil {
		movements = []Movement{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"product_id": productID, "movements": movements})
}

func (h *Handler) handleRestock(w http.ResponseWriter, r *http.Request) {
	var input RestockInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input.ActorID = shared.ActorFromContext(r.Context())
	input.IdempotencyKey = r.Header.Get("Idempotency-Key")
	h.respond(w, r, "restock", func(ctx context.Context) (Result, error) { return h.service.Restock(ctx, input) })
}

func (h *Handler) handleRefill(w http.ResponseWriter, r *http.Request) {
	var input RefillInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input.ActorID = shared.ActorFromContext(r.Context())
	input.IdempotencyKey = r.Header.Get("Idempotency-Key")
	h.respond(w, r, "refill", func(ctx context.Context) (Result, error) { return h.service.Refill(ctx, input) })
}

func (h *Handler) handleWriteOff(w http.ResponseWriter, r *http.Request) {
	var input WriteOffInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input.ActorID = shared.ActorFromContext(r.Context())
	input.IdempotencyKey = r.Header.Get("Idempotency-Key")
	h.respond(w, r, "write-off", func(ctx context.Context) (Result, error) { return h.service.WriteOff(ctx, input) })
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var input AdjustInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input.ActorID = shared.ActorFromContext(r.Context())
	input.IdempotencyKey = r.Header.Get("Idempotency-Key")
	h.respond(w, r, "adjust", func(ctx context.Context) (Result, error) { return h.service.Adjust(ctx, input) })
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context) (Result, error)) {
	result, err := fn(r.Context())
	if err != nil {
		if !httpx.IsClientError(err) {
			h.logger.Error("inventory "+op, slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}
