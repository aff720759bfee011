package middleware

import (
	"context"
	"net/http"

	"github.com/akaushop/storefront/pkg/httputil"
)

// Guard inspects a request and either returns the context to continue with
// or an error to reject it.
type Guard func(r *http.Request) (context.Context, error)

// RequireAuth rejects requests the guard refuses with 401, using the error
// text as the message. The storefront uses it to fence the admin console
// behind a live admin session.
func RequireAuth(guard Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, err := guard(r)
			if err != nil {
				writeAuthError(w, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, message string) {
	httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
		Error: &httputil.ErrorResponse{Code: "SESSION_INVALID", Message: message},
	})
}
