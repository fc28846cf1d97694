package middleware

import (
	"log/slog"
	"net/http"

	"github.com/neargud/catalog/pkg/logger"
)

// ActorHeader carries the admin or vendor identity forwarded by the gateway.
const ActorHeader = "X-Actor-ID"

// RequestLogger stores a logger enriched with correlation ID, actor and trace
// IDs in the request context. Mount it after RequestLogging and Tracing.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if actor := r.Header.Get(ActorHeader); actor != "" {
				ctx = logger.WithActor(ctx, actor)
			}
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
