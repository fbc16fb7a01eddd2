// Package middleware provides HTTP access logging with correlation IDs.
package middleware

import (
	"context"
	"net/http"
	"slices"
	"time"

	"dgsync/internal/adapter/inbound/api/netutil"
	"dgsync/internal/application/common/logging"
	"dgsync/internal/application/common/slogger"

	"github.com/google/uuid"
)

// CorrelationIDHeader carries the correlation ID in requests and responses.
const CorrelationIDHeader = "X-Correlation-ID"

const maxCorrelationIDLength = 128

// LoggingConfig configures the access log.
type LoggingConfig struct {
	// SkipPaths are not logged, e.g. health probes.
	SkipPaths []string
	// SlowRequestThreshold raises successful requests slower than this to WARN.
	SlowRequestThreshold time.Duration
}

// DefaultLoggingConfig skips /health and flags requests slower than a second.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths:            []string{"/health"},
		SlowRequestThreshold: time.Second,
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
	wroteHeader  bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// NewStructuredLoggingMiddleware stores a correlation ID in the request
// context, echoes it in the response and logs one entry per request.
func NewStructuredLoggingMiddleware(config LoggingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			correlationID := r.Header.Get(CorrelationIDHeader)
			if !isValidCorrelationID(correlationID) {
				correlationID = uuid.New().String()
			}
			ctx := logging.WithCorrelationID(r.Context(), correlationID)
			r = r.WithContext(ctx)
			w.Header().Set(CorrelationIDHeader, correlationID)

			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			if slices.Contains(config.SkipPaths, r.URL.Path) {
				return
			}
			logRequest(ctx, config, r, rw, time.Since(start))
		})
	}
}

func logRequest(ctx context.Context, config LoggingConfig, r *http.Request, rw *responseWriter, duration time.Duration) {
	fields := slogger.Fields{
		"method":      r.Method,
		"path":        r.URL.Path,
		"status":      rw.statusCode,
		"duration_ms": duration.Milliseconds(),
		"bytes":       rw.bytesWritten,
		"remote_ip":   netutil.ClientIP(r),
	}
	if r.URL.RawQuery != "" {
		fields["query"] = r.URL.RawQuery
	}
	if ua := r.UserAgent(); ua != "" {
		fields["user_agent"] = ua
	}

	switch {
	case rw.statusCode >= http.StatusInternalServerError:
		slogger.Error(ctx, "HTTP request failed", fields)
	case rw.statusCode >= http.StatusBadRequest:
		slogger.Warn(ctx, "HTTP request rejected", fields)
	case config.SlowRequestThreshold > 0 && duration > config.SlowRequestThreshold:
		slogger.Warn(ctx, "Slow HTTP request", fields)
	default:
		slogger.Info(ctx, "HTTP request completed", fields)
	}
}

func isValidCorrelationID(s string) bool {
	if s == "" || len(s) > maxCorrelationIDLength {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}
