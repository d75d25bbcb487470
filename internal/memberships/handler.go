package memberships

import (
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/tempus-hq/tempus/internal/authz"
	"github.com/tempus-hq/tempus/internal/platform/httpx"
)

// Handler manages membership and role assignment endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	authz    authz.Middleware
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: mw, validate: validator.New()}
}

type enrollRequest struct {
	UserID      uuid.UUID   `json:"user_id" validate:"required"`
	TemplateIDs []uuid.UUID `json:"template_ids"`
}

type grantRequest struct {
	TemplateID uuid.UUID `json:"template_id" validate:"required"`
}

// MountAccountRoutes registers member routes under an account.
func (h *Handler) MountAccountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAccount(authz.ResourceMembers, authz.ActionView, "accountID"))
		r.Get("/", h.listMembers)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAccount(authz.ResourceMembers, authz.ActionCreate, "accountID"))
		r.Post("/", h.enroll)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAccount(authz.ResourceMembers, authz.ActionDelete, "accountID"))
		r.Delete("/{membershipID}", h.withdraw)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAccount(authz.ResourceMembers, authz.ActionAssign, "accountID"))
		r.Post("/{membershipID}/roles", h.grantRole)
		r.Delete("/{membershipID}/roles/{templateID}", h.revokeRole)
	})
}

// MountSystemRoutes registers system role assignment routes under a user.
func (h *Handler) MountSystemRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceRoles, authz.ActionAssign))
		r.Get("/", h.listSystemRoles)
		r.Post("/", h.grantSystemRole)
		r.Delete("/{templateID}", h.revokeSystemRole)
	})
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.pathID(w, r, "accountID")
	if !ok {
		return
	}
	members, err := h.service.ListMembers(r.Context(), accountID)
	if err != nil {
		h.respondErr(w, "list members", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"members": members})
}

func (h *Handler) enroll(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.pathID(w, r, "accountID")
	if !ok {
		return
	}
	var req enrollRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	m, err := h.service.Enroll(r.Context(), req.UserID, accountID, req.TemplateIDs)
	if err != nil {
		h.respondErr(w, "enroll member", err)
		return
	}
	httpx.Created(w, m)
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	membershipID, ok := h.pathID(w, r, "membershipID")
	if !ok {
		return
	}
	if err := h.service.Withdraw(r.Context(), membershipID); err != nil {
		h.respondErr(w, "withdraw member", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) grantRole(w http.ResponseWriter, r *http.Request) {
	membershipID, ok := h.pathID(w, r, "membershipID")
	if !ok {
		return
	}
	var req grantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.GrantRole(r.Context(), membershipID, req.TemplateID); err != nil {
		h.respondErr(w, "grant role", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) revokeRole(w http.ResponseWriter, r *http.Request) {
	membershipID, ok := h.pathID(w, r, "membershipID")
	if !ok {
		return
	}
	templateID, ok := h.pathID(w, r, "templateID")
	if !ok {
		return
	}
	if err := h.service.RevokeRole(r.Context(), membershipID, templateID); err != nil {
		h.respondErr(w, "revoke role", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listSystemRoles(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	assignments, err := h.service.ListSystemRoles(r.Context(), userID)
	if err != nil {
		h.respondErr(w, "list system roles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"assignments": assignments})
}

func (h *Handler) grantSystemRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	var req grantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.GrantSystemRole(r.Context(), userID, req.TemplateID); err != nil {
		h.respondErr(w, "grant system role", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) revokeSystemRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	templateID, ok := h.pathID(w, r, "templateID")
	if !ok {
		return
	}
	if err := h.service.RevokeSystemRole(r.Context(), userID, templateID); err != nil {
		h.respondErr(w, "revoke system role", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", name+" must be a uuid")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
