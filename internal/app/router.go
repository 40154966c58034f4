package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/staffdesk/staffdesk/internal/auth"
	"github.com/staffdesk/staffdesk/internal/dynamic"
	"github.com/staffdesk/staffdesk/internal/fiscal"
	"github.com/staffdesk/staffdesk/internal/menu"
	"github.com/staffdesk/staffdesk/internal/navigation"
	"github.com/staffdesk/staffdesk/internal/observability"
	"github.com/staffdesk/staffdesk/internal/platform/httpx"
	"github.com/staffdesk/staffdesk/internal/rbac"
	"github.com/staffdesk/staffdesk/internal/shared"
	"github.com/staffdesk/staffdesk/internal/users"
	"github.com/staffdesk/staffdesk/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	Metrics        *observability.Metrics

	AuthHandler        *auth.Handler
	NavigationHandler  *navigation.Handler
	UsersHandler       *users.Handler
	PermissionsHandler *rbac.Handler
	FiscalHandler      *fiscal.Handler
	MenuHandler        *menu.Handler
	DynamicHandler     *dynamic.Handler
	JobHandler         *jobs.Handler
}

// NewMetricsServer exposes the Prometheus registry on an internal address,
// apart from the public router.
func NewMetricsServer(addr string, metrics *observability.Metrics) *http.Server {
	mux := chi.NewRouter()
	mux.Method(http.MethodGet, "/metrics", metrics.Handler())
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

// NewRouter constructs the chi.Router with staffdesk defaults.
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

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}
	if params.NavigationHandler != nil {
		r.Route("/menu", params.NavigationHandler.MountRoutes)
	}
	if params.UsersHandler != nil {
		r.Route("/users", params.UsersHandler.MountRoutes)
	}
	if params.PermissionsHandler != nil {
		r.Route("/permissions", params.PermissionsHandler.MountRoutes)
	}
	if params.FiscalHandler != nil {
		r.Route("/fiscal-years", params.FiscalHandler.MountRoutes)
	}
	if params.MenuHandler != nil {
		r.Route("/menu-nodes", params.MenuHandler.MountRoutes)
	}
	if params.DynamicHandler != nil {
		r.Route("/dynamic", params.DynamicHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
	})
	return r
}
