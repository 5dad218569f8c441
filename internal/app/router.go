package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/inspectra-app/inspectra/internal/auth"
	"github.com/inspectra-app/inspectra/internal/clients"
	"github.com/inspectra-app/inspectra/internal/documents"
	"github.com/inspectra-app/inspectra/internal/equipment"
	"github.com/inspectra-app/inspectra/internal/instruments"
	"github.com/inspectra-app/inspectra/internal/observability"
	"github.com/inspectra-app/inspectra/internal/orgs"
	"github.com/inspectra-app/inspectra/internal/reports"
	"github.com/inspectra-app/inspectra/internal/shared"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	SessionManager     *shared.SessionManager
	AuthHandler        *auth.Handler
	AuthMiddleware     *auth.Middleware
	OrgsHandler        *orgs.Handler
	ClientsHandler     *clients.Handler
	EquipmentHandler   *equipment.Handler
	InstrumentsHandler *instruments.Handler
	ReportsHandler     *reports.Handler
	DocumentsHandler   *documents.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with Inspectra defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		params.AuthHandler.MountRoutes(r)
		r.With(params.AuthMiddleware.RequireActor).Get("/me", params.AuthHandler.Me)
	})

	r.Group(func(r chi.Router) {
		r.Use(params.AuthMiddleware.RequireActor)

		r.Route("/orgs", params.OrgsHandler.MountRoutes)
		r.Route("/clients", params.ClientsHandler.MountRoutes)
		r.Route("/equipment", params.EquipmentHandler.MountRoutes)
		r.Route("/instruments", params.InstrumentsHandler.MountRoutes)
		r.Route("/reports", params.ReportsHandler.MountRoutes)
		r.Route("/documents", params.DocumentsHandler.MountRoutes)
	})

	return r
}
