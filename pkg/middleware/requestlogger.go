package middleware

import (
	"log/slog"
	"net/http"

	"github.com/akaushop/storefront/pkg/logger"
)

// RequestLogger builds a request-scoped logger enriched with correlation_id,
// session_id, trace_id and span_id, and stores it in the context for
// logger.FromContext.
//
// Mount it after RequestLogging, Tracing and whatever middleware attaches the
// storefront session ID, so that every field is present.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			enriched := logger.WithContext(ctx, base)
			next.ServeHTTP(w, r.WithContext(logger.NewContext(ctx, enriched)))
		})
	}
}
