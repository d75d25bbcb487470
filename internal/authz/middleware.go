package authz

import (
	"context"
	"errors"
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Checker is the narrow check surface the middleware depends on.
type Checker interface {
	HasPermission(ctx context.Context, userID uuid.UUID, resource, action string, accountID uuid.UUID) (bool, error)
}

// Middleware wires authorization helpers for HTTP handlers.
type Middleware struct {
	Checker Checker
	Logger  *slog.Logger
}

// Require ensures the current user holds resource:action at system level.
func (m Middleware) Require(resource, action string) func(http.Handler) http.Handler {
	return m.require(resource, action, "")
}

// RequireAccount ensures the current user holds resource:action within the
// account named by the given chi URL parameter.
func (m Middleware) RequireAccount(resource, action, urlParam string) func(http.Handler) http.Handler {
	return m.require(resource, action, urlParam)
}

func (m Middleware) require(resource, action, urlParam string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := SessionUserID(r)
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			accountID := uuid.Nil
			if urlParam != "" {
				raw := chi.URLParam(r, urlParam)
				parsed, err := uuid.Parse(raw)
				if err != nil {
					http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
					return
				}
				accountID = parsed
			}
			allowed, err := m.Checker.HasPermission(r.Context(), userID, resource, action, accountID)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("authz require", slog.String("resource", resource), slog.String("action", action), slog.Any("error", err))
				}
				status := http.StatusInternalServerError
				if errors.Is(err, ErrStoreUnavailable) {
					status = http.StatusServiceUnavailable
				}
				http.Error(w, http.StatusText(status), status)
				return
			}
			if !allowed {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
