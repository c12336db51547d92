package authz

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/meridian-bms/meridian-bms/internal/shared"
)

// Middleware wires authorization checks into HTTP handlers.
type Middleware struct {
	Resolver *Resolver
	Logger   *slog.Logger
}

// Require denies the request unless the session subject resolves to
// allow for (moduleKey, action).
func (m Middleware) Require(moduleKey string, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subjectID, ok := m.currentUserID(r)
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			decision, err := m.Resolver.Resolve(r.Context(), subjectID, moduleKey, action)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("authz resolve", slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !decision.Allow {
				if m.Logger != nil {
					m.Logger.Info("authz deny",
						slog.Int64("subject", subjectID),
						slog.String("module", moduleKey),
						slog.String("action", string(action)),
						slog.String("reason", string(decision.Reason)))
				}
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) currentUserID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("authz parse user id", slog.String("value", raw))
		}
		return 0, false
	}
	return id, true
}
