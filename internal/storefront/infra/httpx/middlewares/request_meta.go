package middlewares

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/jcmexdev/regaloshop/internal/pkg/requestmeta"
)

// AttachRequestMeta copies the chi request id and the idempotency key header
// into the request context and echoes the request id back to the client.
func AttachRequestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())
		if requestID != "" {
			w.Header().Set(requestmeta.HeaderXRequestID, requestID)
		}

		ctx := requestmeta.WithRequestID(r.Context(), requestID)
		if key := requestmeta.IdempotencyKeyFromRequest(r); key != "" {
			ctx = requestmeta.WithIdempotencyKey(ctx, key)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
