package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/depot/internal/delivery/orders"
	"github.com/odyssey-erp/depot/internal/expenses"
	"github.com/odyssey-erp/depot/internal/handover"
	"github.com/odyssey-erp/depot/internal/inventory"
	"github.com/odyssey-erp/depot/internal/ledger"
	"github.com/odyssey-erp/depot/internal/observability"
	"github.com/odyssey-erp/depot/internal/platform/httpx"
	"github.com/odyssey-erp/depot/internal/wallet"
	"github.com/odyssey-erp/depot/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	OrdersHandler    *orders.Handler
	HandoverHandler  *handover.Handler
	ExpensesHandler  *expenses.Handler
	InventoryHandler *inventory.Handler
	LedgerHandler    *ledger.Handler
	WalletHandler    *wallet.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with depot defaults. Nil handlers are
// not mounted.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if params.OrdersHandler != nil {
		r.Route("/delivery/orders", params.OrdersHandler.MountRoutes)
	}
	if params.HandoverHandler != nil {
		r.Route("/handovers", params.HandoverHandler.MountRoutes)
	}
	if params.ExpensesHandler != nil {
		r.Route("/expenses", params.ExpensesHandler.MountRoutes)
	}
	if params.InventoryHandler != nil {
		r.Route("/inventory", params.InventoryHandler.MountRoutes)
	}
	r.Route("/customers/{customerID}", func(r chi.Router) {
		if params.LedgerHandler != nil {
			params.LedgerHandler.MountCustomerRoutes(r)
		}
		if params.WalletHandler != nil {
			params.WalletHandler.MountRoutes(r)
		}
	})
	if params.LedgerHandler != nil {
		r.Route("/drivers/{driverID}", params.LedgerHandler.MountDriverRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
