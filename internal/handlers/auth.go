package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/AnshRaj112/bookjournal-backend/internal/auth"
	"github.com/AnshRaj112/bookjournal-backend/internal/middleware"
	"github.com/AnshRaj112/bookjournal-backend/internal/services"
)

// stateCookie binds an in-flight sign-in to the browser that started it.
const stateCookie = "bj_oidc_state"

func (h *Handler) setStateCookie(w http.ResponseWriter, state string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth/callback",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func stateMatches(r *http.Request, state string) bool {
	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" || state == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.Value), []byte(state)) == 1
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// Login sends the browser to the identity provider.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		http.NotFound(w, r)
		return
	}
	url, state, err := h.auth.LoginURL(r.Context())
	if err != nil {
		h.logFailure(r, "failed to start sign-in", err)
		h.renderError(w, r, http.StatusInternalServerError, "Could not start sign-in.")
		return
	}
	h.setStateCookie(w, state, int(services.StateDuration.Seconds()))
	http.Redirect(w, r, url, http.StatusFound)
}

// Callback completes sign-in and sets the session cookie.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		h.log.Warnw("identity provider refused sign-in",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", e,
			"description", q.Get("error_description"),
		)
		h.renderError(w, r, http.StatusUnauthorized, "Sign-in was cancelled or refused.")
		return
	}

	if !stateMatches(r, q.Get("state")) {
		h.log.Warnw("sign-in state does not belong to this browser",
			"request_id", middleware.GetRequestID(r.Context()),
		)
		h.setStateCookie(w, "", -1)
		h.renderError(w, r, http.StatusBadRequest, "Sign-in expired. Please try again.")
		return
	}
	h.setStateCookie(w, "", -1)

	token, err := h.auth.Callback(r.Context(), q.Get("state"), q.Get("code"))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidState) {
			h.renderError(w, r, http.StatusBadRequest, "Sign-in expired. Please try again.")
			return
		}
		h.logFailure(r, "sign-in callback failed", err)
		h.renderError(w, r, http.StatusUnauthorized, "Sign-in failed.")
		return
	}
	h.setSessionCookie(w, token, int(services.SessionDuration.Seconds()))
	http.Redirect(w, r, "/", http.StatusFound)
}

// Logout ends the session and clears the cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if h.auth != nil {
		if token := middleware.SessionToken(r); token != "" {
			if err := h.auth.Logout(r.Context(), token); err != nil {
				h.logFailure(r, "failed to end session", err)
			}
		}
	}
	h.setSessionCookie(w, "", -1)
	http.Redirect(w, r, "/", http.StatusFound)
}
