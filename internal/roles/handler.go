package roles

import (
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/tempus-hq/tempus/internal/authz"
	"github.com/tempus-hq/tempus/internal/platform/httpx"
)

// Handler manages role template endpoints.
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

// MountRoutes registers role template routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceRoles, authz.ActionView))
		r.Get("/", h.list)
		r.Get("/{templateID}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceRoles, authz.ActionCreate))
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceRoles, authz.ActionUpdate))
		r.Put("/{templateID}", h.update)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.ResourceRoles, authz.ActionDelete))
		r.Delete("/{templateID}", h.delete)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	templates, err := h.service.List(r.Context())
	if err != nil {
		h.respondErr(w, "list role templates", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"templates": templates})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.templateID(w, r)
	if !ok {
		return
	}
	template, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, "get role template", err)
		return
	}
	httpx.JSON(w, http.StatusOK, template)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}
	template, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.respondErr(w, "create role template", err)
		return
	}
	httpx.Created(w, template)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.templateID(w, r)
	if !ok {
		return
	}
	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}
	template, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.respondErr(w, "update role template", err)
		return
	}
	httpx.JSON(w, http.StatusOK, template)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.templateID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondErr(w, "delete role template", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) templateID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "templateID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "templateID must be a uuid")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decodeInput(w http.ResponseWriter, r *http.Request) (TemplateInput, bool) {
	var in TemplateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return TemplateInput{}, false
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return TemplateInput{}, false
	}
	return in, true
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
