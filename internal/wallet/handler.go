package wallet

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/depot/internal/platform/httpx"
)

// Lister reads wallets.
type Lister interface {
	ListByCustomer(ctx context.Context, customerID int64) ([]Wallet, error)
}

// Handler exposes wallet balances.
type Handler struct {
	logger *slog.Logger
	repo   Lister
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, repo Lister) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers routes below /customers/{customerID}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/wallets", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	customerID, err := httpx.IDParam(r, "customerID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	wallets, err := h.repo.ListByCustomer(r.Context(), customerID)
	if err != nil {
		h.logger.Error("list wallets", slog.Int64("customer_id", customerID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if wallets == nil {
		wallets = []Wallet{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"customer_id": customerID, "wallets": wallets})
}
