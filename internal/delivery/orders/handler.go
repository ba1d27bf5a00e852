package orders

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/depot/internal/platform/httpx"
	"github.com/odyssey-erp/depot/internal/shared"
)

// Handler manages delivery order HTTP endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Post("/generate", h.generate)
	r.Post("/assign", h.assign)

	r.Route("/{orderID}", func(r chi.Router) {
		r.Get("/", h.show)
		r.Patch("/", h.update)
		r.Post("/start", h.start)
		r.Post("/complete", h.complete)
		r.Post("/cancel", h.cancel)
		r.Post("/reschedule", h.reschedule)
	})
}

// list handles GET /delivery/orders
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, perPage := shared.PageParams(r)
	req := ListRequest{Limit: perPage, Offset: (page - 1) * perPage}

	if v := q.Get("customer_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid customer_id")
			return
		}
		req.CustomerID = &id
	}
	if v := q.Get("driver_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid driver_id")
			return
		}
		req.DriverID = &id
	}
	if v := q.Get("status"); v != "" {
		status := Status(v)
		if !status.IsValid() {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid status")
			return
		}
		req.Status = &status
	}
	for key, target := range map[string]**time.Time{"date_from": &req.DateFrom, "date_to": &req.DateTo} {
		if v := q.Get(key); v != "" {
			d, err := time.Parse("2006-01-02", v)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid "+key)
				return
			}
			*target = &d
		}
	}

	resp, err := h.service.List(r.Context(), req)
	if err != nil {
		h.fail(w, "list orders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

// show handles GET /delivery/orders/{orderID}
func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "orderID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

// create handles POST /delivery/orders
func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req.ActorID = shared.ActorFromContext(r.Context())
	order, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.fail(w, "create order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

// update handles PATCH /delivery/orders/{orderID}
func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "orderID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req UpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.fail(w, "update order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

// start handles POST /delivery/orders/{orderID}/start
func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "orderID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.Start(r.Context(), id)
	if err != nil {
		h.fail(w, "start order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

// complete handles POST /delivery/orders/{orderID}/complete
func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "orderID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req CompleteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req.ActorID = shared.ActorFromContext(r.Context())
	req.IdempotencyKey = r.Header.Get("Idempotency-Key")

	result, err := h.service.Complete(r.Context(), id, req)
	if err != nil {
		h.fail(w, "complete order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

// cancel handles POST /delivery/orders/{orderID}/cancel
func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "orderID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req CancelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req.ActorID = shared.ActorFromContext(r.Context())
	order, err := h.service.Cancel(r.Context(), id, req)
	if err != nil {
		h.fail(w, "cancel order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

// reschedule handles POST /delivery/orders/{orderID}/reschedule
func (h *Handler) reschedule(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "orderID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req RescheduleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req.ActorID = shared.ActorFromContext(r.Context())
	result, err := h.service.Reschedule(r.Context(), id, req)
	if err != nil {
		h.fail(w, "reschedule order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

// assign handles POST /delivery/orders/assign
func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req.ActorID = shared.ActorFromContext(r.Context())
	result, err := h.service.AssignDriver(r.Context(), req)
	if err != nil {
		h.fail(w, "assign orders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

// generate handles POST /delivery/orders/generate. Large runs should go
// through the orders:generate job instead.
func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req.ActorID = shared.ActorFromContext(r.Context())
	result, err := h.service.Generate(r.Context(), req)
	if err != nil {
		h.logger.Error("generate orders", slog.String("batch_id", result.BatchID), slog.Int("batches", result.Batches), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
