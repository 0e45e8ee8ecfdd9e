package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"runtime/debug"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type requestIDKey struct{}

const maxLoggedBody = 2048

// secretParams never reach the logs; the sign-in callback carries them in the query.
var secretParams = map[string]bool{
	"code":          true,
	"state":         true,
	"session_state": true,
	"id_token":      true,
	"access_token":  true,
	"token":         true,
}

// loggedQuery is the request query with secret parameter values replaced.
func loggedQuery(u *url.URL) string {
	if u.RawQuery == "" {
		return ""
	}
	q, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return "[unparsable]"
	}
	for key, vals := range q {
		if secretParams[key] {
			for i := range vals {
				vals[i] = "REDACTED"
			}
		}
	}
	return q.Encode()
}

// RequestID ensures every request has a request id in headers and context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-ID")
		if rid == "" {
			rid = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", rid)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, rid)))
	})
}

// GetRequestID returns the id set by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	rid, _ := ctx.Value(requestIDKey{}).(string)
	return rid
}

// RequestLogging logs request start/finish and the body of error responses.
func RequestLogging(logger *zap.SugaredLogger, clientIP func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			body := &bytes.Buffer{}
			ww.Tee(body)

			rid := GetRequestID(r.Context())
			query := loggedQuery(r.URL)
			logger.Infow("request started",
				"request_id", rid,
				"method", r.Method,
				"path", r.URL.Path,
				"query", query,
				"client_ip", clientIP(r),
				"user_agent", r.UserAgent(),
			)

			// Identity runs further down the chain and fills this in.
			info := &requestInfo{}
			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), requestInfoKey{}, info)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []interface{}{
				"request_id", rid,
				"method", r.Method,
				"path", r.URL.Path,
				"query", query,
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"client_ip", clientIP(r),
				"user_uid", info.userID,
			}

			if status >= 400 {
				resp := body.String()
				if len(resp) > maxLoggedBody {
					resp = resp[:maxLoggedBody]
				}
				fields = append(fields, "response", resp)
			}
			switch {
			case status >= 500:
				logger.Errorw("request completed with server error", fields...)
			case status >= 400:
				logger.Warnw("request completed with client error", fields...)
			default:
				logger.Infow("request completed", fields...)
			}
		})
	}
}

// Recovery converts panics to 500 responses and logs the stack trace.
func Recovery(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					rid := GetRequestID(r.Context())
					logger.Errorw("panic recovered",
						"request_id", rid,
						"panic", rec,
						"stack", string(debug.Stack()),
						"method", r.Method,
						"path", r.URL.Path,
						"query", loggedQuery(r.URL),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]interface{}{
						"success":    false,
						"message":    "Internal server error",
						"request_id": rid,
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"message": message,
	})
}
