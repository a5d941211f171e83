package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/GrafeoDB/grafeo-server/pkg/auth"
	"github.com/GrafeoDB/grafeo-server/pkg/kindtag"
	"github.com/GrafeoDB/grafeo-server/pkg/ratelimit"
	"github.com/GrafeoDB/grafeo-server/pkg/reqid"
)

// withMiddleware wraps next with the request correlator, rate limiter,
// auth validator, and metrics recorder, applied in that order.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return s.withRequestID(s.withRateLimit(s.withAuth(s.withMetrics(next))))
}

// withRequestID resolves or generates X-Request-Id and echoes it on
// the response.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := reqid.Resolve(r.Header.Get(reqid.Header))
		w.Header().Set(reqid.Header, id)
		next.ServeHTTP(w, r)
	})
}

// withRateLimit enforces the per-peer fixed window.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ratelimit.PeerKey(r.RemoteAddr, r.Header.Get("X-Forwarded-For"))
		result := s.svc.RateLimit.Allow(key)
		if !result.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())+1))
			writeError(w, kindtag.New(kindtag.TooManyRequests, "rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withAuth enforces the configured credential on non-exempt paths.
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.svc.Auth.Active() || auth.ExemptPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		cred := auth.FromHTTPHeader(r.Header.Get("Authorization"), r.Header.Get("X-API-Key"))
		if !s.svc.Auth.Verify(cred) {
			writeError(w, kindtag.New(kindtag.Unauthorized, "invalid credentials"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code a handler wrote, for the
// HTTP-requests-by-status metric.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withMetrics records one HTTP request observation.
func (s *Server) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		_ = time.Since(start)
		s.svc.Metrics.ObserveHTTPRequest(r.Method, statusClass(rec.status))
	})
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
