package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/oceangate/oceangate/internal/auth"
	"github.com/oceangate/oceangate/internal/categories"
	"github.com/oceangate/oceangate/internal/dashboard"
	"github.com/oceangate/oceangate/internal/doa"
	"github.com/oceangate/oceangate/internal/invoices"
	"github.com/oceangate/oceangate/internal/observability"
	"github.com/oceangate/oceangate/internal/platform/httpx"
	"github.com/oceangate/oceangate/internal/stock"
	"github.com/oceangate/oceangate/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	AuthHandler      *auth.Handler
	AuthMiddleware   func(http.Handler) http.Handler
	CategoryHandler  *categories.Handler
	StockHandler     *stock.Handler
	DOAHandler       *doa.Handler
	InvoiceHandler   *invoices.Handler
	DashboardHandler *dashboard.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics

	// Idempotency backs the Idempotency-Key header on POST /doa and
	// /invoices. Nil disables the check.
	Idempotency httpx.KeyStore

	// Ready reports backing service health for /healthz. Nil means always ready.
	Ready func(ctx context.Context) error
}

// NewRouter constructs the chi.Router with Oceangate defaults.
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
		if params.Ready != nil {
			if err := params.Ready(r.Context()); err != nil {
				if params.Logger != nil {
					params.Logger.Warn("readiness check", slog.Any("error", err))
				}
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			httpx.Message(w, http.StatusOK, "Server is running")
		})
		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}

		r.Group(func(r chi.Router) {
			if params.AuthMiddleware != nil {
				r.Use(params.AuthMiddleware)
			}
			if params.CategoryHandler != nil {
				r.Route("/categories", params.CategoryHandler.MountRoutes)
			}
			if params.StockHandler != nil {
				r.Route("/stock", params.StockHandler.MountRoutes)
			}
			if params.DOAHandler != nil {
				r.Route("/doa", func(r chi.Router) {
					r.Use(httpx.Idempotent(params.Idempotency, "doa", params.Logger))
					params.DOAHandler.MountRoutes(r)
				})
			}
			if params.InvoiceHandler != nil {
				r.Route("/invoices", func(r chi.Router) {
					r.Use(httpx.Idempotent(params.Idempotency, "invoices", params.Logger))
					params.InvoiceHandler.MountRoutes(r)
				})
			}
			if params.DashboardHandler != nil {
				r.Route("/dashboard", params.DashboardHandler.MountRoutes)
			}
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			httpx.JSON(w, http.StatusNotFound, httpx.Envelope{Success: false, Message: "Route not found"})
		})
	})

	return r
}
