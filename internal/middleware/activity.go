package middleware

import (
	"context"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const activityTimeout = 2 * time.Second

// PageViewRecorder stores page views. *services.ActivityLog satisfies it.
type PageViewRecorder interface {
	Enabled() bool
	RecordPageView(ctx context.Context, userID, path string) error
}

// Activity records GET page views answered with a 2xx status, after the response is
// written. Redirects and errors are not page views. Recording runs in the background and
// never delays or fails the request.
func Activity(recorder PageViewRecorder, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if recorder == nil || !recorder.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if r.Method != http.MethodGet {
				return
			}
			if status := ww.Status(); status != 0 && (status < 200 || status >= 300) {
				return
			}

			var userID string
			if u, ok := UserFrom(r.Context()); ok {
				userID = u.ID
			}
			path := r.URL.Path
			rid := GetRequestID(r.Context())
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), activityTimeout)
				defer cancel()
				if err := recorder.RecordPageView(ctx, userID, path); err != nil {
					logger.Warnw("failed to record page view", "request_id", rid, "path", path, "error", err)
				}
			}()
		})
	}
}
