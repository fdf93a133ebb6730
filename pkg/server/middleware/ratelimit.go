package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/de-tools/report-ledger/pkg/models/api"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RateLimit throttles the wrapped routes with a single shared token bucket.
// A non-positive limit disables throttling.
func RateLimit(perSecond float64, burst int) func(http.Handler) http.Handler {
	if perSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !limiter.Allow() {
				zerolog.Ctx(req.Context()).Warn().Msg("request rejected by rate limiter")
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(api.ErrorResponse{Detail: "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}
