package rbac

import (
	"log/slog"
	"net/http"

	"github.com/staffdesk/staffdesk/internal/platform/httpx"
	"github.com/staffdesk/staffdesk/internal/shared"
)

// Middleware wires the access decision into HTTP handlers.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequirePage lets the request through only when the session user holds
// action on pageID. Lookup failures never let the request through.
func (m Middleware) RequirePage(pageID string, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username := shared.UsernameFromContext(r.Context())
			allowed, err := m.Service.Allowed(r.Context(), username, pageID, action)
			if err != nil {
				m.logger().Error("rbac decision", slog.String("page", pageID), slog.Any("error", err))
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if !allowed {
				m.logger().Warn("access denied",
					slog.String("user", username),
					slog.String("page", pageID),
					slog.String("action", string(action)))
				httpx.RespondError(w, shared.ErrAccessDenied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}
