// Package auth provides the backend identity attached to translated requests: the
// project and session a request runs under, and the bearer credential used to call
// the internal backend.
package auth

import (
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/zalbiraw/antigravity/internal/config"
)

// Token identifies the backend project and session a request runs under.
// Empty fields are allowed; they are left out of the translated request.
type Token struct {
	ProjectID string
	SessionID string
}

// Authenticator supplies the session Token and signs outgoing backend requests.
// It is safe for concurrent use.
type Authenticator struct {
	token  Token
	source oauth2.TokenSource
}

// New creates an authenticator from the configuration. A random session id is
// generated when none is configured; requests are only signed when an access token
// is configured.
func New(cfg *config.Config) *Authenticator {
	token := Token{
		ProjectID: cfg.ProjectID,
		SessionID: cfg.SessionID,
	}
	if token.SessionID == "" {
		token.SessionID = newSessionID()
	}

	var source oauth2.TokenSource
	if cfg.AccessToken != "" {
		source = oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.AccessToken,
			TokenType:   "Bearer",
		})
	}
	return NewWithTokenSource(token, source)
}

// NewWithTokenSource creates an authenticator that signs with source, which may
// refresh credentials on its own. A nil source disables signing.
func NewWithTokenSource(token Token, source oauth2.TokenSource) *Authenticator {
	return &Authenticator{
		token:  token,
		source: source,
	}
}

// Token returns the session identity for translated requests.
func (a *Authenticator) Token() Token {
	return a.token
}

// SignRequest adds the Authorization header to the given backend request.
func (a *Authenticator) SignRequest(req *http.Request) error {
	if a.source == nil {
		return nil
	}

	tok, err := a.source.Token()
	if err != nil {
		return fmt.Errorf("failed to obtain access token: %w", err)
	}
	tok.SetAuthHeader(req)

	return nil
}
