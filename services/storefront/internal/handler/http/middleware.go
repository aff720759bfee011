package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	apperrors "github.com/akaushop/storefront/pkg/errors"
	"github.com/akaushop/storefront/pkg/logger"
	"github.com/akaushop/storefront/pkg/middleware"
	"github.com/akaushop/storefront/services/storefront/internal/service"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

// sessionKey is the context key for the storefront session.
const sessionKey contextKey = "storefront_session"

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// Sessions resolves the storefront session from its cookie, creating one when
// the cookie is missing or stale, and stores it in the request context. The
// cookie has no expiry, so it lives as long as the browser tab's session.
func Sessions(registry *service.Registry, cookie CookieConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if c, err := r.Cookie(cookie.Name); err == nil {
				id = c.Value
			}

			s, created := registry.Resolve(id)
			if created {
				http.SetCookie(w, &http.Cookie{
					Name:     cookie.Name,
					Value:    s.ID(),
					Path:     "/",
					HttpOnly: true,
					Secure:   cookie.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := context.WithValue(r.Context(), sessionKey, s)
			ctx = logger.WithSessionID(ctx, s.ID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// sessionFromContext returns the session attached by Sessions.
func sessionFromContext(ctx context.Context) (*service.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*service.Session)
	return s, ok && s != nil
}

// sessionKeyOrIP keys rate limits by session, falling back to the client IP.
func sessionKeyOrIP(r *http.Request) string {
	if s, ok := sessionFromContext(r.Context()); ok {
		return "session:" + s.ID()
	}
	return "ip:" + middleware.ClientIP(r)
}

// adminGuard admits requests whose session holds a live admin unlock.
func adminGuard(admin *service.AdminService) middleware.Guard {
	return func(r *http.Request) (context.Context, error) {
		s, ok := sessionFromContext(r.Context())
		if !ok {
			return nil, errors.New("admin sign-in required")
		}
		if _, err := admin.Authorize(s); err != nil {
			var appErr *apperrors.AppError
			if errors.As(err, &appErr) {
				return nil, errors.New(appErr.Message)
			}
			return nil, err
		}
		return r.Context(), nil
	}
}

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnsupportedMediaType)
				_, _ = w.Write([]byte(`{"error":{"code":"UNSUPPORTED_MEDIA_TYPE","message":"Content-Type must be application/json"}}`))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
