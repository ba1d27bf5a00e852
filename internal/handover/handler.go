package handover

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/depot/internal/platform/httpx"
	"github.com/odyssey-erp/depot/internal/shared"
)

// Handler exposes the handover endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers routes under /handovers.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.submit)
	r.Get("/drivers/{driverID}/snapshot", h.snapshot)
	r.Get("/drivers/{driverID}/summary", h.summary)

	r.Route("/{handoverID}", func(r chi.Router) {
		r.Get("/", h.show)
		r.Post("/resolve", h.resolve)
		r.Post("/cancel", h.cancel)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, perPage := shared.PageParams(r)
	req := ListRequest{Limit: perPage, Offset: (page - 1) * perPage}

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
	for key, target := range map[string]**time.Time{"from": &req.From, "to": &req.To} {
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
		h.fail(w, "list handovers", err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req.ActorID = shared.ActorFromContext(r.Context())
	created, err := h.service.Submit(r.Context(), req)
	if err != nil {
		h.fail(w, "submit handover", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	driverID, err := httpx.IDParam(r, "driverID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	snap, err := h.service.PendingSnapshot(r.Context(), driverID)
	if err != nil {
		h.fail(w, "handover snapshot", err)
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	driverID, err := httpx.IDParam(r, "driverID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	summary, err := h.service.DriverSummary(r.Context(), driverID)
	if err != nil {
		h.fail(w, "driver cash summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "handoverID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	found, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get handover", err)
		return
	}
	httpx.JSON(w, http.StatusOK, found)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "handoverID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req ResolveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req.ActorID = shared.ActorFromContext(r.Context())
	result, err := h.service.Resolve(r.Context(), id, req)
	if err != nil {
		h.fail(w, "resolve handover", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "handoverID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Cancel(r.Context(), id, shared.ActorFromContext(r.Context())); err != nil {
		h.fail(w, "cancel handover", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
