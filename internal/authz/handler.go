package authz

import (
	"errors"
	"net/http"
	"strings"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/tempus-hq/tempus/internal/platform/httpx"
	"github.com/tempus-hq/tempus/internal/shared"
)

// Handler exposes the permission catalog, effective-permission listings
// and the administrative check endpoint.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	authz    Middleware
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authz Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: authz, validate: validator.New()}
}

// MountRoutes registers permission routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(ResourceRoles, ActionView))
		r.Get("/permissions", h.listCatalog)
		r.Post("/permissions/check", h.check)
	})
	r.Get("/me/permissions", h.myPermissions)
	r.Post("/me/permissions/refresh", h.refresh)
}

func (h *Handler) listCatalog(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": Catalog()})
}

type checkRequest struct {
	UserID    uuid.UUID `json:"user_id" validate:"required"`
	Resource  string    `json:"resource" validate:"required"`
	Action    string    `json:"action" validate:"required"`
	AccountID uuid.UUID `json:"account_id"`
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	allowed, err := h.service.HasPermission(r.Context(), req.UserID, req.Resource, req.Action, req.AccountID)
	if err != nil {
		h.respondErr(w, "permission check", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"allowed": allowed})
}

func (h *Handler) myPermissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := SessionUserID(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	accountID := uuid.Nil
	if raw := r.URL.Query().Get("account"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "account must be a uuid")
			return
		}
		accountID = parsed
	}
	set, err := h.service.Resolve(r.Context(), userID, accountID)
	if err != nil {
		h.respondErr(w, "resolve permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"all":    set.Universal(),
		"tuples": set.Tuples(),
	})
}

// refresh drops the caller's cached snapshots so the next read re-resolves.
func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	userID, ok := SessionUserID(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	if err := h.service.Invalidate(r.Context(), userID); err != nil {
		h.respondErr(w, "invalidate snapshots", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	if errors.Is(err, ErrStoreUnavailable) {
		httpx.Problem(w, http.StatusServiceUnavailable, "Store Unavailable", "permission data could not be loaded")
		return
	}
	httpx.RespondError(w, err)
}

// SessionUserID extracts the authenticated user from the request session.
func SessionUserID(r *http.Request) (uuid.UUID, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return uuid.Nil, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
