package router

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/patient-portal/internal/scheduling"
)

// correlateRequest tags the scheduling context with chi's request id so
// appointment events can be traced back to the HTTP call that caused them.
// The id is echoed in X-Request-ID for the front-end.
func correlateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := middleware.GetReqID(r.Context())
		if reqID == "" {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set(middleware.RequestIDHeader, reqID)
		ctx := scheduling.WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
