package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	applog "opsdesk/internal/log"
	"opsdesk/internal/services"
)

type requestIDKey struct{}

// RequestID returns the id assigned to the request carried by ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// statusRecorder captures the status code written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// instrument wraps the mux with tracing, rate limiting, security headers,
// metrics and the per-request event collector.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		logger := s.logger.With(applog.FieldRequestID, requestID)
		ctx = applog.WithContext(ctx, logger)
		ctx, _ = services.WithCollector(ctx)
		r = r.WithContext(ctx)

		w.Header().Set("X-Request-ID", requestID)
		setSecurityHeaders(w.Header())

		if detectSuspiciousRequest(r) {
			logger.WarnContext(ctx, "Suspicious request",
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path,
				applog.FieldClientIP, clientIP,
				applog.FieldUserAgent, r.Header.Get("User-Agent"))
		}

		rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		if isMutating(r.Method) && !s.limiter.allow(clientIP) {
			logger.WarnContext(ctx, "Rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
			rw.Header().Set("Retry-After", "60")
			writeError(rw, r, http.StatusTooManyRequests, "rate limit exceeded, try again later")
		} else {
			next.ServeHTTP(rw, r)
		}

		elapsed := time.Since(start)
		s.metrics.ObserveHTTP(r.Method, r.Pattern, rw.statusCode, elapsed)

		fields := applog.NewFields().
			WithHTTPResponse(rw.statusCode, elapsed.Milliseconds())
		fields[applog.FieldMethod] = r.Method
		fields[applog.FieldPath] = r.URL.Path
		fields[applog.FieldClientIP] = clientIP
		if r.URL.RawQuery != "" {
			fields[applog.FieldQuery] = r.URL.RawQuery
		}
		if rw.statusCode >= http.StatusInternalServerError {
			logger.ErrorContext(ctx, "HTTP request failed", fields.ToSlice()...)
		} else {
			logger.InfoContext(ctx, "HTTP request completed", fields.ToSlice()...)
		}
	})
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
