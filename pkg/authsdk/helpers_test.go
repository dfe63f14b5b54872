package authsdk_test

import (
	"context"
	"testing"

	"github.com/aussiebroadwan/signauth/pkg/authsdk"
	"github.com/aussiebroadwan/signauth/pkg/authsdk/authsdktest"
	"github.com/aussiebroadwan/signauth/pkg/httpx"
	"github.com/aussiebroadwan/signauth/pkg/slogx"
	"github.com/stretchr/testify/require"
)

/*
 * Common constants and helper functions for the authsdk tests. Every test
 * talks to an authsdktest.Server through a real Manager.
 */

const (
	testClientID     = "test-client"
	testClientSecret = "test-secret"

	testEmail    = "alice@example.com"
	testPassword = "Alice123!"
)

// setupServer starts a fake API with one known user.
func setupServer(t *testing.T) *authsdktest.Server {
	t.Helper()

	srv := authsdktest.NewServer(t, testClientID, testClientSecret)
	srv.AddUser(testEmail, testPassword)
	return srv
}

// newManager builds a Manager against baseURL with throttling disabled.
func newManager(t *testing.T, baseURL string, opts ...func(*authsdk.Config)) *authsdk.Manager {
	t.Helper()

	cfg := authsdk.Config{
		BaseURL:      baseURL,
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		GrantLimit:   &httpx.RateLimitConfig{},
		Logger:       slogx.Discard(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	mgr, err := authsdk.NewManager(cfg)
	require.NoError(t, err)
	return mgr
}

// login performs a password login and returns the resulting credential.
func login(t *testing.T, mgr *authsdk.Manager) authsdk.UserCredential {
	t.Helper()

	sess, err := mgr.NewSessionForCredentials(t.Context(), testEmail, testPassword)
	require.NoError(t, err)
	return sess.Credential()
}

// stubSession is a SessionHandle whose CheckAuth result is scripted.
type stubSession struct {
	checkErr error
	checks   int
	cred     authsdk.UserCredential
}

func (s *stubSession) CheckAuth(_ context.Context) error {
	s.checks++
	return s.checkErr
}

func (s *stubSession) Credential() authsdk.UserCredential { return s.cred }

func (s *stubSession) UpdateCredential(cred authsdk.UserCredential) { s.cred = cred }

// stubFactory installs a SessionFactory that always hands out sess.
func stubFactory(sess *stubSession) func(*authsdk.Config) {
	return func(cfg *authsdk.Config) {
		cfg.SessionFactory = func(_ string, cred authsdk.UserCredential) authsdk.SessionHandle {
			sess.cred = cred
			return sess
		}
	}
}

// unreachableURL returns the URL of a server that has already been closed.
func unreachableURL(t *testing.T) string {
	t.Helper()

	srv := authsdktest.NewServer(t, testClientID, testClientSecret)
	url := srv.URL
	srv.Close()
	return url
}
