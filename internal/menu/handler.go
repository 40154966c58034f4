package menu

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/staffdesk/staffdesk/internal/platform/httpx"
	"github.com/staffdesk/staffdesk/internal/rbac"
	"github.com/staffdesk/staffdesk/internal/shared"
)

// Handler exposes static menu tree maintenance.
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

// MountRoutes registers menu node routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePage(shared.PageMenuNodes, rbac.ActionView))
		r.Get("/", h.tree)
		r.Get("/{id}", h.get)
	})
	r.With(h.rbac.RequirePage(shared.PageMenuNodes, rbac.ActionCreate)).Post("/", h.add)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePage(shared.PageMenuNodes, rbac.ActionEdit))
		r.Put("/{id}", h.edit)
		r.Post("/{id}/move-up", h.moveUp)
		r.Post("/{id}/move-down", h.moveDown)
		r.Post("/{id}/toggle-visibility", h.toggle)
	})
	r.With(h.rbac.RequirePage(shared.PageMenuNodes, rbac.ActionDelete)).Delete("/{id}", h.delete)
}

func (h *Handler) tree(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.service.Tree(r.Context())
	if err != nil {
		h.logger.Error("menu tree", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"nodes": nodes})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	n, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, n)
}

func (h *Handler) add(w http.ResponseWriter, r *http.Request) {
	var input NodeInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	n, err := h.service.AddNode(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, n)
}

func (h *Handler) edit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var input EditInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	n, err := h.service.EditNode(r.Context(), id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, n)
}

func (h *Handler) moveUp(w http.ResponseWriter, r *http.Request) {
	h.reorder(w, r, h.service.MoveUp)
}

func (h *Handler) moveDown(w http.ResponseWriter, r *http.Request) {
	h.reorder(w, r, h.service.MoveDown)
}

func (h *Handler) reorder(w http.ResponseWriter, r *http.Request, move func(context.Context, int64) error) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	if err := move(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	n, err := h.service.ToggleVisibility(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, n)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	removed, err := h.service.DeleteNode(r.Context(), shared.UsernameFromContext(r.Context()), id)
	if err != nil {
		h.logger.Warn("delete menu node", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func (h *Handler) id(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := httpx.IDParam(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
	}
	return id, ok
}
