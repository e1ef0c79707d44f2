package httpapi

import (
	"fmt"
	"math/rand"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/itskum47/sprinklerd/internal/observability"
)

// corsMiddleware allows a browser-based dashboard served from a different
// origin to call this API directly.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimited wraps a handler with a token-bucket limiter, protecting the
// scheduler from a storm of job submissions (e.g. a misbehaving client
// retry-looping on /jobs). Route is only used to label the rejection metric.
func rateLimited(route string, limiter *rate.Limiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			observability.HTTPRateLimited.WithLabelValues(route).Inc()
			retryAfter := 1 + rand.Intn(2)
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests, slow down")
			return
		}
		next(w, r)
	}
}
