package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tempus-hq/tempus/internal/accounts"
	"github.com/tempus-hq/tempus/internal/auth"
	"github.com/tempus-hq/tempus/internal/authz"
	"github.com/tempus-hq/tempus/internal/memberships"
	"github.com/tempus-hq/tempus/internal/roles"
	"github.com/tempus-hq/tempus/internal/shared"
	"github.com/tempus-hq/tempus/internal/users"
	"github.com/tempus-hq/tempus/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	SessionManager     *shared.SessionManager
	CSRFManager        *shared.CSRFManager
	AuthHandler        *auth.Handler
	AuthzHandler       *authz.Handler
	AccountsHandler    *accounts.Handler
	RolesHandler       *roles.Handler
	MembershipsHandler *memberships.Handler
	UsersHandler       *users.Handler
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with Tempus defaults.
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

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			params.AuthHandler.MountRoutes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuthenticated(params.Logger))

			params.AuthzHandler.MountRoutes(r)

			r.Route("/accounts", func(r chi.Router) {
				params.AccountsHandler.MountRoutes(r)
				r.Route("/{accountID}/members", func(r chi.Router) {
					params.MembershipsHandler.MountAccountRoutes(r)
				})
			})
			r.Route("/roles", func(r chi.Router) {
				params.RolesHandler.MountRoutes(r)
			})
			r.Route("/users", func(r chi.Router) {
				params.UsersHandler.MountRoutes(r)
				r.Route("/{userID}/system-roles", func(r chi.Router) {
					params.MembershipsHandler.MountSystemRoutes(r)
				})
			})
			if params.JobHandler != nil {
				r.Route("/jobs", func(r chi.Router) {
					params.JobHandler.MountRoutes(r)
				})
			}
		})
	})

	return r
}

// requireAuthenticated rejects requests that carry no logged-in session.
// Permission checks happen further down; this gate only establishes who.
func requireAuthenticated(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			if sess == nil || sess.User() == "" {
				w.Header().Set("Content-Type", "application/problem+json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"title":"Unauthorized","status":401,"detail":"authentication required"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
