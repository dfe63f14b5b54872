package authsdk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/signauth/pkg/httpx"
	"github.com/aussiebroadwan/signauth/pkg/slogx"
	"golang.org/x/sync/singleflight"
)

// Config holds everything a Manager needs. Only BaseURL, ClientID and
// ClientSecret are required.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string

	// HTTPClient is copied and its transport wrapped with request logging and
	// token endpoint throttling. Defaults to a client with Timeout.
	HTTPClient *http.Client

	// Timeout applies when HTTPClient is nil (default: 10s)
	Timeout time.Duration

	// GrantLimit throttles token endpoint calls. Nil uses httpx.GrantLimit, a
	// pointer to the zero value disables throttling.
	GrantLimit *httpx.RateLimitConfig

	// Logger defaults to slog.Default()
	Logger *slog.Logger

	// SessionFactory builds session handles; defaults to *Session
	SessionFactory SessionFactory
}

// Manager runs the user credential lifecycle: password login, validation of a
// stored credential with a single refresh on invalid_token, explicit refresh,
// and user registration.
//
// A Manager is safe for concurrent use. Concurrent refreshes of the same
// credential share one refresh grant.
type Manager struct {
	client     *Client
	newSession SessionFactory
	logger     *slog.Logger

	refreshes singleflight.Group
}

// NewManager validates cfg and builds a Manager.
func NewManager(cfg Config) (*Manager, error) {
	base, err := parseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("authsdk: client id is required")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("authsdk: client secret is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	limit := httpx.GrantLimit
	if cfg.GrantLimit != nil {
		limit = *cfg.GrantLimit
	}

	var hc http.Client
	if cfg.HTTPClient != nil {
		hc = *cfg.HTTPClient
	} else {
		hc.Timeout = cfg.Timeout
		if hc.Timeout <= 0 {
			hc.Timeout = 10 * time.Second
		}
	}

	// Only the token endpoint is throttled; session traffic is the caller's business
	tokenEndpoint := strings.TrimSuffix(base.Path, "/") + tokenPath
	hc.Transport = slogx.Transport(logger,
		httpx.ThrottleTransport(limit, httpx.PathKeyExtractor(tokenEndpoint), hc.Transport),
	)

	m := &Manager{
		client: NewClient(base.String(), ServiceCredential{
			ClientID:     strings.TrimSpace(cfg.ClientID),
			ClientSecret: cfg.ClientSecret,
		}, &hc),
		logger: logger.With("component", "authsdk", "client_id", strings.TrimSpace(cfg.ClientID)),
	}

	m.newSession = cfg.SessionFactory
	if m.newSession == nil {
		m.newSession = m.defaultSession
	}

	return m, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("authsdk: api url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("authsdk: invalid api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("authsdk: api url must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("authsdk: api url has no host")
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u, nil
}

func (m *Manager) defaultSession(baseURL string, cred UserCredential) SessionHandle {
	return newSession(m.client, m, baseURL, cred)
}

func (m *Manager) log(ctx context.Context) *slog.Logger {
	return slogx.FromContextOr(ctx, m.logger)
}

// BaseURL returns the API base endpoint.
func (m *Manager) BaseURL() string {
	return m.client.BaseURL
}

// Client exposes the underlying API client.
func (m *Manager) Client() *Client {
	return m.client
}

// NewSessionForCredentials logs a user in with the password grant and returns
// a session bound to a fresh credential. Every failure is an *AuthError.
func (m *Manager) NewSessionForCredentials(ctx context.Context, email, password string) (SessionHandle, error) {
	tok, err := m.client.PasswordGrant(ctx, email, password)
	if err != nil {
		m.log(ctx).Info("password grant failed", "err", err)
		return nil, asAuthError(err)
	}

	cred := newUserCredential(email, tok, m.client.now())
	m.log(ctx).Debug("password grant succeeded", "expires_at", cred.ExpiresAt)

	return m.newSession(m.client.BaseURL, cred), nil
}

// NewSessionForUser resumes a session from a stored credential. The credential
// is checked against the API; an invalid_token rejection triggers exactly one
// refresh, after which the session carries the new credential (read it back
// with SessionHandle.Credential to persist it).
//
// Any other rejection is returned as an *AuthError with its kind intact. A
// failed refresh is returned as a *ServiceError wrapping the grant failure.
func (m *Manager) NewSessionForUser(ctx context.Context, cred UserCredential) (SessionHandle, error) {
	sess := m.newSession(m.client.BaseURL, cred)

	err := sess.CheckAuth(ctx)
	if err == nil {
		return sess, nil
	}

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		return nil, &AuthError{Kind: KindUnknown, Message: err.Error(), Err: err}
	}

	m.log(ctx).Warn("session auth check failed",
		"kind", authErr.Kind,
		"status", authErr.StatusCode,
		"message", authErr.Message,
	)

	if !authErr.Retryable() {
		return nil, authErr
	}

	refreshed, err := m.RefreshUser(ctx, sess.Credential())
	if err != nil {
		return nil, err
	}
	sess.UpdateCredential(refreshed)

	return sess, nil
}

// RefreshUser runs the refresh grant for cred and returns the new credential.
// cred itself is left untouched. Failures are *ServiceError values wrapping the
// grant error, so errors.As still reaches an underlying *AuthError.
//
// The grant ignores cancellation of ctx. The API spends the refresh token once
// it accepts the grant, so the new pair must always reach the caller; the HTTP
// client timeout bounds the wait.
func (m *Manager) RefreshUser(ctx context.Context, cred UserCredential) (UserCredential, error) {
	if cred.RefreshToken == "" {
		return UserCredential{}, &ServiceError{Message: "refresh user credential: no refresh token"}
	}

	// Shared by every caller with the same refresh token
	grantCtx := context.WithoutCancel(ctx)
	val, err, shared := m.refreshes.Do(cred.RefreshToken, func() (any, error) {
		tok, err := m.client.RefreshGrant(grantCtx, cred.RefreshToken)
		if err != nil {
			return nil, err
		}
		return cred.withTokens(tok, m.client.now()), nil
	})

	if err != nil {
		m.log(ctx).Warn("refresh grant failed", "err", err)
		return UserCredential{}, &ServiceError{
			Message: fmt.Sprintf("refresh user credential: %v", err),
			Err:     err,
		}
	}

	refreshed := val.(UserCredential)
	m.log(ctx).Info("user credential refreshed", "shared", shared, "expires_at", refreshed.ExpiresAt)
	return refreshed, nil
}

// RegisterUser creates a user and returns its id. Every failure is an
// *AuthError; transport problems are wrapped rather than leaked.
func (m *Manager) RegisterUser(ctx context.Context, email, password string) (string, error) {
	created, err := m.client.CreateUser(ctx, email, password)
	if err != nil {
		m.log(ctx).Info("user registration failed", "err", err)
		return "", asAuthError(err)
	}

	m.log(ctx).Info("user registered", "user_id", created.ID)
	return created.ID, nil
}
