package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/AnshRaj112/bookjournal-backend/internal/services"
	"go.uber.org/zap"
)

// SessionCookie carries the session token for browser requests.
const SessionCookie = "bj_session"

// SessionValidator resolves a session token. *services.SessionStore satisfies it.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (services.Session, bool, error)
}

// User is the signed-in reader. ID is the journal partition key.
type User struct {
	ID   string
	Name string
}

type userKey struct{}

type requestInfoKey struct{}

// requestInfo lets Identity report the resolved user back to RequestLogging.
type requestInfo struct {
	userID string
}

func WithUser(ctx context.Context, u User) context.Context {
	if info, ok := ctx.Value(requestInfoKey{}).(*requestInfo); ok {
		info.userID = u.ID
	}
	return context.WithValue(ctx, userKey{}, u)
}

// UserFrom returns the user attached by Identity.
func UserFrom(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey{}).(User)
	return u, ok && u.ID != ""
}

// SessionToken reads the session token from the cookie, then from an Authorization: Bearer header.
func SessionToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// Identity attaches the signed-in user to the request context. With no session store
// (no identity provider configured) every request runs as devUserID.
func Identity(sessions SessionValidator, devUserID string, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			switch {
			case sessions == nil:
				if devUserID != "" {
					ctx = WithUser(ctx, User{ID: devUserID, Name: "Reader"})
				}
			default:
				if token := SessionToken(r); token != "" {
					sess, ok, err := sessions.Validate(ctx, token)
					if err != nil {
						logger.Warnw("session lookup failed", "request_id", GetRequestID(ctx), "error", err)
					} else if ok {
						ctx = WithUser(ctx, User{ID: sess.UserID, Name: sess.Name})
					}
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects anonymous requests: JSON routes get 401, pages are sent to /login.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFrom(r.Context()); !ok {
			if strings.HasPrefix(r.URL.Path, "/api/") {
				writeJSONError(w, http.StatusUnauthorized, "Sign in required")
				return
			}
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
