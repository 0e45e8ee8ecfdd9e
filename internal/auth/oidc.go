// Package auth runs the OpenID Connect authorization-code sign-in and turns a verified
// ID token into a server-side session.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AnshRaj112/bookjournal-backend/internal/services"
	"github.com/AnshRaj112/bookjournal-backend/pkg/utils"
	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

var (
	ErrInvalidState = errors.New("unknown or expired sign-in state")
	ErrNoIDToken    = errors.New("identity provider returned no id_token")
	ErrNoSubject    = errors.New("id_token carries neither oid nor sub")
)

type Config struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Claims are the ID token fields the journal cares about. Azure AD puts the stable
// user object id in "oid"; other providers only have "sub".
type Claims struct {
	OID               string `json:"oid"`
	Subject           string `json:"sub"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
}

// UserID is the partition key for the signed-in user.
func (c Claims) UserID() string {
	if c.OID != "" {
		return c.OID
	}
	return c.Subject
}

func (c Claims) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.PreferredUsername
}

const revokeTimeout = 10 * time.Second

type Authenticator struct {
	oauth    oauth2.Config
	verifier *oidc.IDTokenVerifier
	sessions *services.SessionStore
	sealer   *utils.Sealer
	log      *zap.SugaredLogger

	// revocationURL is the provider's RFC 7009 endpoint, empty when it has none.
	revocationURL string
	httpClient    *http.Client
}

// New discovers the provider configuration from the issuer URL.
func New(ctx context.Context, cfg Config, sessions *services.SessionStore, sealer *utils.Sealer, log *zap.SugaredLogger) (*Authenticator, error) {
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}

	var meta struct {
		RevocationEndpoint string `json:"revocation_endpoint"`
	}
	if err := provider.Claims(&meta); err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}

	return &Authenticator{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", oidc.ScopeOfflineAccess},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		sessions: sessions,
		sealer:   sealer,
		log:      log,

		revocationURL: meta.RevocationEndpoint,
		httpClient:    &http.Client{Timeout: revokeTimeout},
	}, nil
}

// LoginURL starts a sign-in. It returns where to send the browser and the state value,
// which the caller binds to the browser so Callback only accepts the sign-in it started.
func (a *Authenticator) LoginURL(ctx context.Context) (string, string, error) {
	state, err := services.RandomToken()
	if err != nil {
		return "", "", err
	}
	nonce, err := services.RandomToken()
	if err != nil {
		return "", "", err
	}
	if err := a.sessions.SaveState(ctx, state, nonce); err != nil {
		return "", "", fmt.Errorf("save sign-in state: %w", err)
	}
	return a.oauth.AuthCodeURL(state, oidc.Nonce(nonce)), state, nil
}

// Callback finishes a sign-in: it redeems code, verifies the ID token against the
// nonce saved for state and opens a session. It returns the session token.
func (a *Authenticator) Callback(ctx context.Context, state, code string) (string, error) {
	nonce, ok, err := a.sessions.TakeState(ctx, state)
	if err != nil {
		return "", fmt.Errorf("load sign-in state: %w", err)
	}
	if !ok {
		return "", ErrInvalidState
	}

	tok, err := a.oauth.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchange code: %w", err)
	}
	rawID, ok := tok.Extra("id_token").(string)
	if !ok || rawID == "" {
		return "", ErrNoIDToken
	}

	idToken, err := a.verifier.Verify(ctx, rawID)
	if err != nil {
		return "", fmt.Errorf("verify id_token: %w", err)
	}
	if idToken.Nonce != nonce {
		return "", errors.New("id_token nonce mismatch")
	}

	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		return "", fmt.Errorf("decode claims: %w", err)
	}
	if claims.UserID() == "" {
		return "", ErrNoSubject
	}

	tokJSON, err := json.Marshal(tok)
	if err != nil {
		return "", err
	}
	sealed, err := a.sealer.Seal(string(tokJSON))
	if err != nil {
		return "", fmt.Errorf("seal token: %w", err)
	}

	session, err := a.sessions.Create(ctx, services.Session{
		UserID: claims.UserID(),
		Name:   claims.DisplayName(),
		Token:  sealed,
	})
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	a.log.Infow("user signed in", "user_uid", claims.UserID())
	return session, nil
}

// Logout ends the session behind token. When the provider has a revocation endpoint the
// OAuth token cached with the session is revoked there first; a failed revocation is
// logged and does not keep the session alive.
func (a *Authenticator) Logout(ctx context.Context, token string) error {
	if a.revocationURL != "" {
		sess, ok, err := a.sessions.Validate(ctx, token)
		if err != nil {
			a.log.Warnw("session lookup before revocation failed", "error", err)
		} else if ok {
			if err := a.revoke(ctx, sess); err != nil {
				a.log.Warnw("token revocation failed", "user_uid", sess.UserID, "error", err)
			}
		}
	}
	return a.sessions.Invalidate(ctx, token)
}

// revoke sends the session's refresh token (or access token when there is none) to the
// provider's revocation endpoint.
func (a *Authenticator) revoke(ctx context.Context, sess services.Session) error {
	tok, err := a.Token(sess)
	if err != nil {
		return err
	}

	form := url.Values{"client_id": {a.oauth.ClientID}}
	switch {
	case tok.RefreshToken != "":
		form.Set("token", tok.RefreshToken)
		form.Set("token_type_hint", "refresh_token")
	case tok.AccessToken != "":
		form.Set("token", tok.AccessToken)
		form.Set("token_type_hint", "access_token")
	default:
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.revocationURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if a.oauth.ClientSecret != "" {
		req.SetBasicAuth(url.QueryEscape(a.oauth.ClientID), url.QueryEscape(a.oauth.ClientSecret))
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revoke token: provider answered %d", resp.StatusCode)
	}
	return nil
}

// Token opens the OAuth token cached with a session.
func (a *Authenticator) Token(sess services.Session) (*oauth2.Token, error) {
	plain, err := a.sealer.Open(sess.Token)
	if err != nil {
		return nil, err
	}
	if plain == "" {
		return nil, errors.New("session has no cached token")
	}
	var tok oauth2.Token
	if err := json.Unmarshal([]byte(plain), &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}
