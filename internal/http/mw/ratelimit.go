package mw

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitByIP returns a middleware that rate limits by client IP.
// Applied router-wide; the webhook routes are exempted by mounting them
// before this middleware.
func RateLimitByIP(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.LimitByIP(requestsPerMinute, time.Minute)
}

// RateLimitGlobal returns a middleware that applies a single shared limit
// across all clients to protect the database under load.
func RateLimitGlobal(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return "global", nil
		}),
	)
}
