package navigation

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/staffdesk/staffdesk/internal/platform/httpx"
	"github.com/staffdesk/staffdesk/internal/shared"
)

// MenuBuilder is satisfied by Composer.
type MenuBuilder interface {
	BuildMenu(ctx context.Context, username string) (Menu, error)
}

// Handler serves the composed menu.
type Handler struct {
	logger  *slog.Logger
	builder MenuBuilder
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, builder MenuBuilder) *Handler {
	return &Handler{logger: logger, builder: builder}
}

// MountRoutes registers the menu route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.menu)
}

func (h *Handler) menu(w http.ResponseWriter, r *http.Request) {
	username := shared.UsernameFromContext(r.Context())
	m, err := h.builder.BuildMenu(r.Context(), username)
	if err != nil {
		if errors.Is(err, shared.ErrAccessDenied) {
			h.logger.Warn("menu denied", slog.String("username", username))
		} else {
			h.logger.Error("build menu", slog.String("username", username), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}
