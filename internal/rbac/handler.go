package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/staffdesk/staffdesk/internal/platform/httpx"
	"github.com/staffdesk/staffdesk/internal/shared"
)

// Handler exposes the permission catalog and capability matrix over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers permission routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePage(shared.PagePermissions, ActionView))
		r.Get("/", h.listPages)
		r.Get("/users/{userID}/rights", h.userRights)
	})
	r.With(h.rbac.RequirePage(shared.PagePermissions, ActionCreate)).Post("/", h.createPage)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePage(shared.PagePermissions, ActionEdit))
		r.Put("/{id}", h.updatePage)
		r.Put("/users/{userID}/rights", h.replaceRights)
	})
	r.With(h.rbac.RequirePage(shared.PagePermissions, ActionDelete)).Delete("/{id}", h.deletePage)
}

type rightsRequest struct {
	Assignments []struct {
		PageID int64  `json:"page_id" validate:"required,gt=0"`
		Rights Rights `json:"rights"`
	} `json:"assignments" validate:"dive"`
}

func (h *Handler) listPages(w http.ResponseWriter, r *http.Request) {
	pages, err := h.service.ListPages(r.Context())
	if err != nil {
		h.fail(w, "list pages", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"pages": pages})
}

func (h *Handler) createPage(w http.ResponseWriter, r *http.Request) {
	var input PageInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, err := h.service.CreatePage(r.Context(), input)
	if err != nil {
		h.fail(w, "create page", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, page)
}

func (h *Handler) updatePage(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.IDParam(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var input PageInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, err := h.service.UpdatePage(r.Context(), id, input)
	if err != nil {
		h.fail(w, "update page", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) deletePage(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.IDParam(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	if err := h.service.DeletePage(r.Context(), id); err != nil {
		h.fail(w, "delete page", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) userRights(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.IDParam(r, "userID")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	rights, err := h.service.UserRights(r.Context(), userID)
	if err != nil {
		h.fail(w, "user rights", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rights": rights})
}

func (h *Handler) replaceRights(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.IDParam(r, "userID")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	var req rightsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	assignments := make([]Assignment, 0, len(req.Assignments))
	for _, a := range req.Assignments {
		assignments = append(assignments, Assignment{UserID: userID, PageID: a.PageID, Rights: a.Rights})
	}
	actor := shared.UsernameFromContext(r.Context())
	if err := h.service.ReplaceUserRights(r.Context(), actor, userID, assignments); err != nil {
		h.fail(w, "replace rights", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
