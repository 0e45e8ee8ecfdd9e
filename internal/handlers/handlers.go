// Package handlers serves the reading journal: server-rendered pages, the JSON API and health checks.
package handlers

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"

	"github.com/AnshRaj112/bookjournal-backend/internal/journal"
	"github.com/AnshRaj112/bookjournal-backend/internal/middleware"
	"github.com/AnshRaj112/bookjournal-backend/internal/models"
	"github.com/AnshRaj112/bookjournal-backend/internal/review"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("").Funcs(template.FuncMap{
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
}).ParseFS(templateFS, "templates/*.html"))

// ReviewComposer writes a review of the given entries.
type ReviewComposer interface {
	Compose(ctx context.Context, entries []models.Entry) (string, error)
}

// ReviewCache keeps composed reviews per user and year. *services.ReviewCache satisfies it.
// Set only stores a review composed under the generation that is still current.
type ReviewCache interface {
	Get(ctx context.Context, userID, year string) (string, bool, error)
	Generation(ctx context.Context, userID string) (int64, error)
	Set(ctx context.Context, userID, year, review string, gen int64) error
	Invalidate(ctx context.Context, userID string) error
}

// SignIn runs the identity provider round trip. *auth.Authenticator satisfies it.
type SignIn interface {
	LoginURL(ctx context.Context) (url, state string, err error)
	Callback(ctx context.Context, state, code string) (string, error)
	Logout(ctx context.Context, token string) error
}

type Options struct {
	Repo     journal.Repository
	Composer ReviewComposer
	Cache    ReviewCache // optional
	Auth     SignIn      // optional; sign-in routes answer 404 without it
	Logger   *zap.SugaredLogger
	// SecureCookies marks the session cookie Secure. Set it whenever the site is served over HTTPS.
	SecureCookies bool
}

type Handler struct {
	repo          journal.Repository
	composer      ReviewComposer
	cache         ReviewCache
	auth          SignIn
	log           *zap.SugaredLogger
	secureCookies bool
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{
		repo:          opts.Repo,
		composer:      opts.Composer,
		cache:         opts.Cache,
		auth:          opts.Auth,
		log:           logger,
		secureCookies: opts.SecureCookies,
	}
}

// APIResponse is the envelope every JSON route answers with.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, APIResponse{Success: false, Message: message})
}

type errorPage struct {
	Status  int
	Message string
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		h.log.Errorw("failed to render page",
			"request_id", middleware.GetRequestID(r.Context()),
			"template", name,
			"error", err,
		)
	}
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.render(w, r, status, "error.html", errorPage{Status: status, Message: message})
}

// failure maps an error from the store or the completion service to a status and a
// message that is safe to show.
func failure(err error) (int, string) {
	switch {
	case errors.Is(err, journal.ErrNotConnected):
		return http.StatusServiceUnavailable, "The journal is temporarily unavailable. Please try again later."
	case errors.Is(err, review.ErrUpstream):
		return http.StatusBadGateway, "The review service did not answer. Please try again later."
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "The request took too long. Please try again later."
	default:
		return http.StatusInternalServerError, "Something went wrong."
	}
}

func (h *Handler) logFailure(r *http.Request, msg string, err error, keysAndValues ...interface{}) {
	fields := append([]interface{}{
		"request_id", middleware.GetRequestID(r.Context()),
		"error", err,
	}, keysAndValues...)
	h.log.Errorw(msg, fields...)
}

// currentUser returns the signed-in user. Routes behind middleware.RequireUser always have one.
func currentUser(r *http.Request) middleware.User {
	u, _ := middleware.UserFrom(r.Context())
	return u
}
