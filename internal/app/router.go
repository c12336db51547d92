package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-bms/meridian-bms/internal/audit"
	"github.com/meridian-bms/meridian-bms/internal/auth"
	"github.com/meridian-bms/meridian-bms/internal/authz"
	"github.com/meridian-bms/meridian-bms/internal/invoicing"
	"github.com/meridian-bms/meridian-bms/internal/masterdata"
	"github.com/meridian-bms/meridian-bms/internal/payables"
	"github.com/meridian-bms/meridian-bms/internal/shared"
	"github.com/meridian-bms/meridian-bms/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	AuthHandler       *auth.Handler
	AuthzHandler      *authz.Handler
	UsersHandler      *users.Handler
	MasterDataHandler *masterdata.Handler
	PayablesHandler   *payables.Handler
	InvoicingHandler  *invoicing.Handler
	AuditHandler      *audit.Handler
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)
		r.Route("/authz", params.AuthzHandler.MountRoutes)
		r.Route("/users", params.UsersHandler.MountRoutes)
		r.Route("/clients", params.MasterDataHandler.MountClientRoutes)
		r.Route("/projects", params.MasterDataHandler.MountProjectRoutes)
		r.Route("/payables", params.PayablesHandler.MountRoutes)
		r.Route("/invoices", params.InvoicingHandler.MountRoutes)
		r.Route("/audit", params.AuditHandler.MountRoutes)
	})

	return r
}
