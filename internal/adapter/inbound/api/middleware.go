package api

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"

	"dgsync/internal/application/common/logging"
	"dgsync/internal/application/common/slogger"
	"dgsync/internal/application/dto"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID in requests and responses.
const RequestIDHeader = "X-Request-ID"

// MiddlewareFunc defines the middleware function signature.
type MiddlewareFunc func(http.Handler) http.Handler

type requestIDKey struct{}

// GetRequestID extracts the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// SetRequestID stores the request ID in the context, for handlers and for
// the structured logger.
func SetRequestID(ctx context.Context, id string) context.Context {
	ctx = context.WithValue(ctx, requestIDKey{}, id)
	return logging.WithRequestID(ctx, id)
}

// NewRequestIDMiddleware assigns every request an ID, reusing the caller's
// X-Request-ID when present.
func NewRequestIDMiddleware() MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" || len(requestID) > 128 {
				requestID = uuid.New().String()
			}
			w.Header().Set(RequestIDHeader, requestID)
			next.ServeHTTP(w, r.WithContext(SetRequestID(r.Context(), requestID)))
		})
	}
}

// NewRecoveryMiddleware turns a handler panic into a 500 response.
func NewRecoveryMiddleware() MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}
				slogger.Error(r.Context(), "Panic recovered in HTTP handler", slogger.Fields{
					"method": r.Method,
					"path":   r.URL.Path,
					"panic":  recovered,
					"stack":  string(debug.Stack()),
				})
				_ = WriteJSON(w, http.StatusInternalServerError,
					dto.NewErrorResponse(dto.ErrorCodeInternalError, "An internal error occurred"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// CORSConfig holds CORS middleware configuration.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         string
}

// DefaultCORSConfig allows any origin to call the API.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", RequestIDHeader, "X-Correlation-ID"},
		MaxAge:         "86400",
	}
}

// NewCORSMiddleware adds CORS headers and answers preflight requests.
func NewCORSMiddleware(config CORSConfig) MiddlewareFunc {
	methods := strings.Join(config.AllowedMethods, ", ")
	headers := strings.Join(config.AllowedHeaders, ", ")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := allowedOrigin(config.AllowedOrigins, r.Header.Get("Origin")); origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				if origin != "*" {
					w.Header().Add("Vary", "Origin")
				}
			}
			w.Header().Set("Access-Control-Allow-Methods", methods)
			w.Header().Set("Access-Control-Allow-Headers", headers)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				if config.MaxAge != "" {
					w.Header().Set("Access-Control-Max-Age", config.MaxAge)
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func allowedOrigin(allowed []string, origin string) string {
	for _, o := range allowed {
		if o == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

// NewMiddlewareChain composes middlewares; the first one is outermost.
func NewMiddlewareChain(middlewares ...MiddlewareFunc) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		handler := next
		for i := len(middlewares) - 1; i >= 0; i-- {
			handler = middlewares[i](handler)
		}
		return handler
	}
}
