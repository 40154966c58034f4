package dynamic

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/staffdesk/staffdesk/internal/platform/httpx"
	"github.com/staffdesk/staffdesk/internal/rbac"
	"github.com/staffdesk/staffdesk/internal/shared"
)

// Handler exposes dynamic definitions over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers entity and page definition routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequirePage(shared.PageDynamicEntities, rbac.ActionView)).Get("/entities", h.listEntities)
	r.With(h.rbac.RequirePage(shared.PageDynamicEntities, rbac.ActionCreate)).Post("/entities", h.createEntity)
	r.With(h.rbac.RequirePage(shared.PageDynamicEntities, rbac.ActionEdit)).Put("/entities/{id}/active", h.setEntityActive)

	r.With(h.rbac.RequirePage(shared.PageDynamicPages, rbac.ActionView)).Get("/pages", h.listPages)
	r.With(h.rbac.RequirePage(shared.PageDynamicPages, rbac.ActionCreate)).Post("/pages", h.createPage)
	r.With(h.rbac.RequirePage(shared.PageDynamicPages, rbac.ActionEdit)).Put("/pages/{id}/active", h.setPageActive)
}

type activeRequest struct {
	Active bool `json:"active"`
}

func (h *Handler) listEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := h.service.ListEntities(r.Context(), r.URL.Query().Get("active") == "true")
	if err != nil {
		h.logger.Error("list dynamic entities", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entities": entities})
}

func (h *Handler) createEntity(w http.ResponseWriter, r *http.Request) {
	var input EntityInput
	if !h.decode(w, r, &input) {
		return
	}
	e, err := h.service.CreateEntity(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, e)
}

func (h *Handler) setEntityActive(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.IDParam(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req activeRequest
	if !h.decode(w, r, &req) {
		return
	}
	e, err := h.service.SetEntityActive(r.Context(), id, req.Active)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) listPages(w http.ResponseWriter, r *http.Request) {
	pages, err := h.service.ListPages(r.Context(), r.URL.Query().Get("active") == "true")
	if err != nil {
		h.logger.Error("list dynamic pages", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"pages": pages})
}

func (h *Handler) createPage(w http.ResponseWriter, r *http.Request) {
	var input PageInput
	if !h.decode(w, r, &input) {
		return
	}
	p, err := h.service.CreatePage(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) setPageActive(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.IDParam(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req activeRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.service.SetPageActive(r.Context(), id, req.Active)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	return true
}
