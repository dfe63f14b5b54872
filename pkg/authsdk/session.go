package authsdk

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// expirySkew refreshes a little before the server would reject the token.
const expirySkew = 30 * time.Second

// SessionHandle is the part of a user session the Manager relies on.
type SessionHandle interface {
	// CheckAuth returns nil if the session's access token is accepted, an
	// *AuthError if the API rejects it, or any other error otherwise.
	CheckAuth(ctx context.Context) error

	// Credential returns a snapshot of the session's current credential.
	Credential() UserCredential

	// UpdateCredential replaces the session's credential after a refresh.
	UpdateCredential(cred UserCredential)
}

// SessionFactory builds a session handle bound to the API base endpoint and a
// user credential. Applications with their own session type plug it in through
// Config.SessionFactory.
type SessionFactory func(baseURL string, cred UserCredential) SessionHandle

// refresher is implemented by Manager.
type refresher interface {
	RefreshUser(ctx context.Context, cred UserCredential) (UserCredential, error)
}

// Session is the default SessionHandle. It tracks one user's credential and
// hands out bearer tokens, refreshing through the Manager once the access
// token is known to be expired.
type Session struct {
	client    *Client
	refresher refresher
	baseURL   string

	mu   sync.RWMutex
	cred UserCredential
}

var _ SessionHandle = (*Session)(nil)

// newSession creates a session for cred. r may be nil, in which case expired
// tokens are handed out as is and the API decides.
func newSession(client *Client, r refresher, baseURL string, cred UserCredential) *Session {
	return &Session{
		client:    client,
		refresher: r,
		baseURL:   baseURL,
		cred:      cred,
	}
}

// BaseURL returns the API endpoint the session is bound to.
func (s *Session) BaseURL() string {
	return s.baseURL
}

// CheckAuth verifies the current access token against the API.
func (s *Session) CheckAuth(ctx context.Context) error {
	return s.client.CheckAuth(ctx, s.AccessToken())
}

// Credential returns a snapshot of the current credential, suitable for
// persisting between runs.
func (s *Session) Credential() UserCredential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred
}

// UpdateCredential swaps in a new credential. Both tokens change together.
func (s *Session) UpdateCredential(cred UserCredential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = cred
}

// AccessToken returns the current access token without checking expiration.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred.AccessToken
}

// TokenContext returns a usable token, refreshing first if the access token is
// known to be expired.
func (s *Session) TokenContext(ctx context.Context) (*oauth2.Token, error) {
	now := time.Now()

	s.mu.RLock()
	if !s.cred.Expired(now, expirySkew) || s.refresher == nil {
		tok := s.cred.Token()
		s.mu.RUnlock()
		return tok, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock (another goroutine may have refreshed)
	if !s.cred.Expired(now, expirySkew) {
		return s.cred.Token(), nil
	}

	if s.cred.RefreshToken == "" {
		return nil, errors.New("access token expired and no refresh token available")
	}

	refreshed, err := s.refresher.RefreshUser(ctx, s.cred)
	if err != nil {
		return nil, err
	}
	s.cred = refreshed

	return s.cred.Token(), nil
}

// Token implements oauth2.TokenSource.
func (s *Session) Token() (*oauth2.Token, error) {
	return s.TokenContext(context.Background())
}

// HTTPClient returns a client that authenticates every request with the
// session's current bearer token, refreshing it when expired. Tokens are read
// from the session per request, so a credential installed later with
// UpdateCredential is picked up. It shares the Manager's transport, so
// requests are logged and carry request ids.
func (s *Session) HTTPClient(ctx context.Context) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: sessionTokenSource{ctx: ctx, s: s},
			Base:   s.client.HTTPClient.Transport,
		},
		Timeout: s.client.HTTPClient.Timeout,
	}
}

type sessionTokenSource struct {
	ctx context.Context
	s   *Session
}

func (ts sessionTokenSource) Token() (*oauth2.Token, error) {
	return ts.s.TokenContext(ts.ctx)
}
