package authsdk_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/aussiebroadwan/signauth/pkg/authsdk"
	"github.com/aussiebroadwan/signauth/pkg/authsdk/authsdktest"
	"github.com/stretchr/testify/require"
)

// resume builds a default *Session for cred through the Manager.
func resume(t *testing.T, mgr *authsdk.Manager, cred authsdk.UserCredential) *authsdk.Session {
	t.Helper()

	handle, err := mgr.NewSessionForUser(t.Context(), cred)
	require.NoError(t, err)

	sess, ok := handle.(*authsdk.Session)
	require.True(t, ok, "default factory builds *authsdk.Session")
	return sess
}

func TestSessionToken(t *testing.T) {
	t.Parallel()

	t.Run("valid token is returned as is", func(t *testing.T) {
		srv := setupServer(t)
		mgr := newManager(t, srv.URL)
		cred := login(t, mgr)
		sess := resume(t, mgr, cred)

		tok, err := sess.TokenContext(t.Context())
		require.NoError(t, err)
		require.Equal(t, cred.AccessToken, tok.AccessToken)
		require.Equal(t, "Bearer", tok.Type())
		require.Equal(t, mgr.BaseURL(), sess.BaseURL())
		require.Equal(t, 0, srv.Count(authsdktest.CountRefreshGrant))
	})

	t.Run("expired token is refreshed", func(t *testing.T) {
		srv := setupServer(t)
		mgr := newManager(t, srv.URL)
		cred := login(t, mgr)
		cred.ExpiresAt = time.Now().Add(-time.Minute)
		sess := resume(t, mgr, cred)

		tok, err := sess.Token()
		require.NoError(t, err)
		require.NotEqual(t, cred.AccessToken, tok.AccessToken)
		require.Equal(t, 1, srv.Count(authsdktest.CountRefreshGrant))

		// Session now holds the rotated pair
		require.Equal(t, tok.AccessToken, sess.AccessToken())
		require.NotEqual(t, cred.RefreshToken, sess.Credential().RefreshToken)

		_, err = sess.Token()
		require.NoError(t, err)
		require.Equal(t, 1, srv.Count(authsdktest.CountRefreshGrant))
	})

	t.Run("expired token without refresh token", func(t *testing.T) {
		srv := setupServer(t)
		mgr := newManager(t, srv.URL)
		cred := login(t, mgr)
		cred.RefreshToken = ""
		cred.ExpiresAt = time.Now().Add(-time.Minute)
		sess := resume(t, mgr, cred)

		_, err := sess.TokenContext(t.Context())
		require.ErrorContains(t, err, "no refresh token")
	})

	t.Run("unknown expiry is never refreshed early", func(t *testing.T) {
		srv := setupServer(t)
		srv.ExpiresIn = 0
		mgr := newManager(t, srv.URL)
		cred := login(t, mgr)
		require.True(t, cred.ExpiresAt.IsZero())

		sess := resume(t, mgr, cred)
		tok, err := sess.TokenContext(t.Context())
		require.NoError(t, err)
		require.Equal(t, cred.AccessToken, tok.AccessToken)
		require.Equal(t, 0, srv.Count(authsdktest.CountRefreshGrant))
	})
}

func TestSessionExpiryFromJWT(t *testing.T) {
	t.Parallel()

	srv := setupServer(t)
	srv.ExpiresIn = 0
	srv.JWTKey = []byte("test-signing-key")
	srv.AccessTTL = 15 * time.Minute
	mgr := newManager(t, srv.URL)

	cred := login(t, mgr)
	require.WithinDuration(t, time.Now().Add(15*time.Minute), cred.ExpiresAt, 5*time.Second)
}

func TestSessionHTTPClient(t *testing.T) {
	t.Parallel()

	t.Run("requests carry the bearer token", func(t *testing.T) {
		srv := setupServer(t)
		mgr := newManager(t, srv.URL)
		sess := resume(t, mgr, login(t, mgr))

		req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+"/user", nil)
		require.NoError(t, err)

		resp, err := sess.HTTPClient(t.Context()).Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("expired token is refreshed before the call", func(t *testing.T) {
		srv := setupServer(t)
		mgr := newManager(t, srv.URL)
		cred := login(t, mgr)
		cred.ExpiresAt = time.Now().Add(-time.Minute)
		sess := resume(t, mgr, cred)

		// Once the old pair is gone only a refreshed token can succeed
		srv.RevokeAccess(cred.AccessToken)

		req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+"/user", nil)
		require.NoError(t, err)

		resp, err := sess.HTTPClient(t.Context()).Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, 1, srv.Count(authsdktest.CountRefreshGrant))
	})

	t.Run("client follows a later credential update", func(t *testing.T) {
		srv := setupServer(t)
		srv.ExpiresIn = 0
		mgr := newManager(t, srv.URL)
		cred := login(t, mgr)
		require.True(t, cred.ExpiresAt.IsZero())

		sess := resume(t, mgr, cred)
		client := sess.HTTPClient(t.Context())

		get := func() int {
			req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+"/user", nil)
			require.NoError(t, err)
			resp, err := client.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			return resp.StatusCode
		}
		require.Equal(t, http.StatusOK, get())

		refreshed, err := mgr.RefreshUser(t.Context(), cred)
		require.NoError(t, err)
		sess.UpdateCredential(refreshed)
		srv.RevokeAccess(cred.AccessToken)

		// Same client, no rebuild: only the new token can succeed
		require.Equal(t, http.StatusOK, get())
	})
}
