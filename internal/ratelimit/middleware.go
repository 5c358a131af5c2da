package ratelimit

import (
	"context"
	"net"
	"net/http"

	"github.com/accp-conference/api/internal/httputil"
	"github.com/accp-conference/api/internal/logging"
)

// Checker is the subset of Limiter used by the HTTP middleware
type Checker interface {
	AllowIPRequestWithPurpose(ctx context.Context, ip, purpose string) (bool, error)
}

// Middleware rejects requests over the purpose limit with 429. Limiter
// failures are logged and the request is let through.
func Middleware(checker Checker, purpose string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := logging.GetLoggerFromContext(r.Context())
			ip := clientIP(r)

			allowed, err := checker.AllowIPRequestWithPurpose(r.Context(), ip, purpose)
			if err != nil {
				logger.Error("failed to apply IP rate limit", "purpose", purpose, "error", err.Error())
			} else if !allowed {
				logger.Warn("IP rate limit exceeded", "purpose", purpose, "ip", ip)
				httputil.RespondErrorWithCode(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP strips the port from RemoteAddr. chi's RealIP middleware has
// already applied X-Forwarded-For / X-Real-IP when the router is in front.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
