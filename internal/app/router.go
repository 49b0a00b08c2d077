package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/odyssey-stock/internal/bom"
	"github.com/odyssey-erp/odyssey-stock/internal/catalog"
	"github.com/odyssey-erp/odyssey-stock/internal/ledger"
	"github.com/odyssey-erp/odyssey-stock/internal/observability"
	"github.com/odyssey-erp/odyssey-stock/internal/procurement"
	"github.com/odyssey-erp/odyssey-stock/internal/production"
	"github.com/odyssey-erp/odyssey-stock/internal/reorder"
	"github.com/odyssey-erp/odyssey-stock/internal/sales"
	"github.com/odyssey-erp/odyssey-stock/internal/shared"
	"github.com/odyssey-erp/odyssey-stock/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger      *slog.Logger
	Config      *Config
	Metrics     *observability.Metrics
	Idempotency shared.IdempotencyGuard

	CatalogHandler     *catalog.Handler
	LedgerHandler      *ledger.Handler
	BOMHandler         *bom.Handler
	ProductionHandler  *production.Handler
	ProcurementHandler *procurement.Handler
	SalesHandler       *sales.Handler
	ReorderHandler     *reorder.Handler
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with Odyssey defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:      params.Logger,
		Config:      params.Config,
		Metrics:     params.Metrics,
		Idempotency: params.Idempotency,
	}) {
		r.Use(mw)
	}

	if params.Config == nil || !params.Config.IsProduction() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		if params.CatalogHandler != nil {
			params.CatalogHandler.MountRoutes(r)
		}
		if params.LedgerHandler != nil {
			r.Route("/ledger", params.LedgerHandler.MountRoutes)
		}
		if params.BOMHandler != nil {
			r.Route("/bom", params.BOMHandler.MountRoutes)
		}
		if params.ProductionHandler != nil {
			r.Route("/production", params.ProductionHandler.MountRoutes)
		}
		if params.ProcurementHandler != nil {
			r.Route("/purchases", params.ProcurementHandler.MountRoutes)
		}
		if params.SalesHandler != nil {
			r.Route("/sales", params.SalesHandler.MountRoutes)
		}
		if params.ReorderHandler != nil {
			r.Route("/reorder", params.ReorderHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
