package fiscal

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

// CopyEnqueuer schedules a copy-forward run on the background worker.
type CopyEnqueuer interface {
	EnqueueCopyForward(ctx context.Context, actor string, yearID int64, includeClientLinks bool) (string, error)
}

// Handler exposes fiscal years and year-scoped activities over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	jobs      CopyEnqueuer
	validator *validator.Validate
}

// NewHandler builds Handler instance. jobs may be nil, in which case async
// copy-forward requests are refused.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, jobs CopyEnqueuer) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, jobs: jobs, validator: validator.New()}
}

// MountRoutes registers fiscal-year routes.
func (h *Handler) MountRoutes(r chi.Router) {
	view := h.rbac.RequirePage(shared.PageFiscalYears, rbac.ActionView)
	r.With(view).Get("/", h.listYears)
	r.With(view).Get("/current", h.currentYear)
	r.With(view).Get("/{id}", h.getYear)
	r.With(h.rbac.RequirePage(shared.PageFiscalYears, rbac.ActionCreate)).Post("/", h.createYear)
	r.With(h.rbac.RequirePage(shared.PageFiscalYears, rbac.ActionEdit)).Put("/{id}", h.updateYear)
	r.With(h.rbac.RequirePage(shared.PageFiscalYears, rbac.ActionEdit)).Post("/{id}/current", h.setCurrent)
	r.With(h.rbac.RequirePage(shared.PageFiscalYears, rbac.ActionDelete)).Delete("/{id}", h.deleteYear)

	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePage(shared.PageActivities, rbac.ActionView))
		r.Get("/{id}/activities", h.listActivities)
		r.Get("/activities/{activityID}/clients", h.listClientLinks)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePage(shared.PageActivities, rbac.ActionCreate))
		r.Post("/{id}/activities", h.createActivity)
		r.Post("/{id}/copy-forward", h.copyForward)
		r.Post("/activities/{activityID}/clients", h.linkClient)
	})
	r.With(h.rbac.RequirePage(shared.PageActivities, rbac.ActionEdit)).Put("/links/{linkID}", h.updateLink)
}

func (h *Handler) listYears(w http.ResponseWriter, r *http.Request) {
	years, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list fiscal years", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"fiscal_years": years})
}

func (h *Handler) currentYear(w http.ResponseWriter, r *http.Request) {
	fy, ok, err := h.service.Current(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if !ok {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no current fiscal year")
		return
	}
	httpx.JSON(w, http.StatusOK, fy)
}

func (h *Handler) getYear(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r, "id")
	if !ok {
		return
	}
	fy, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, fy)
}

func (h *Handler) createYear(w http.ResponseWriter, r *http.Request) {
	var input YearInput
	if !h.decode(w, r, &input) {
		return
	}
	fy, err := h.service.Create(r.Context(), shared.UsernameFromContext(r.Context()), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, fy)
}

func (h *Handler) updateYear(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r, "id")
	if !ok {
		return
	}
	var input YearInput
	if !h.decode(w, r, &input) {
		return
	}
	fy, err := h.service.Update(r.Context(), shared.UsernameFromContext(r.Context()), id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, fy)
}

func (h *Handler) setCurrent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r, "id")
	if !ok {
		return
	}
	fy, err := h.service.SetCurrent(r.Context(), shared.UsernameFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, fy)
}

func (h *Handler) deleteYear(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), shared.UsernameFromContext(r.Context()), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r, "id")
	if !ok {
		return
	}
	activeOnly := r.URL.Query().Get("active") == "true"
	acts, err := h.service.ListActivities(r.Context(), id, activeOnly)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"activities": acts})
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r, "id")
	if !ok {
		return
	}
	var input ActivityInput
	if !h.decode(w, r, &input) {
		return
	}
	a, err := h.service.CreateActivity(r.Context(), id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, a)
}

type copyForwardRequest struct {
	IncludeClientLinks bool `json:"include_client_links"`
	Async              bool `json:"async"`
}

func (h *Handler) copyForward(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r, "id")
	if !ok {
		return
	}
	var req copyForwardRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor := shared.UsernameFromContext(r.Context())
	if req.Async {
		if h.jobs == nil {
			httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "background jobs are not configured")
			return
		}
		if _, err := h.service.Get(r.Context(), id); err != nil {
			httpx.RespondError(w, err)
			return
		}
		taskID, err := h.jobs.EnqueueCopyForward(r.Context(), actor, id, req.IncludeClientLinks)
		if err != nil {
			h.logger.Error("enqueue copy forward", slog.Int64("fiscal_year_id", id), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusAccepted, map[string]any{"task_id": taskID})
		return
	}
	res, err := h.service.CopyForward(r.Context(), actor, id, req.IncludeClientLinks)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) listClientLinks(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r, "activityID")
	if !ok {
		return
	}
	links, err := h.service.ListClientLinks(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"links": links})
}

type linkClientRequest struct {
	ClientID int64 `json:"client_id" validate:"required,gt=0"`
}

func (h *Handler) linkClient(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r, "activityID")
	if !ok {
		return
	}
	var req linkClientRequest
	if !h.decode(w, r, &req) {
		return
	}
	link, err := h.service.LinkClient(r.Context(), id, req.ClientID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, link)
}

type linkStatusRequest struct {
	Status LinkStatus `json:"status" validate:"required"`
}

func (h *Handler) updateLink(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r, "linkID")
	if !ok {
		return
	}
	var req linkStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	link, err := h.service.UpdateLinkStatus(r.Context(), id, req.Status)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, link)
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, ok := httpx.IDParam(r, name)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid "+name)
	}
	return id, ok
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
