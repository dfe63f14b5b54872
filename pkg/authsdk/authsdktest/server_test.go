package authsdktest

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestServerStoresOnlyFingerprints(t *testing.T) {
	t.Parallel()

	srv := NewServer(t, "id", "secret")
	srv.AddUser("a@b.com", "pw")

	srv.mu.Lock()
	resp := srv.issueLocked("a@b.com")
	_, rawAccess := srv.access[resp.AccessToken]
	_, rawRefresh := srv.refresh[resp.RefreshToken]
	srv.mu.Unlock()

	require.False(t, rawAccess)
	require.False(t, rawRefresh)
	require.True(t, srv.ValidAccess(resp.AccessToken))

	srv.RevokeAccess(resp.AccessToken)
	require.False(t, srv.ValidAccess(resp.AccessToken))
}

func TestSetRefreshDelayWhileServing(t *testing.T) {
	t.Parallel()

	srv := NewServer(t, "id", "secret")
	srv.AddUser("a@b.com", "pw")

	srv.mu.Lock()
	tokens := []string{srv.issueLocked("a@b.com").RefreshToken, srv.issueLocked("a@b.com").RefreshToken}
	srv.mu.Unlock()

	var wg sync.WaitGroup
	for _, tok := range tokens {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, _ := http.NewRequest(http.MethodPost, srv.URL+"/oauth2/token", strings.NewReader(url.Values{
				"grant_type":    {"refresh_token"},
				"refresh_token": {tok},
				"scope":         {"*"},
			}.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req.SetBasicAuth("id", "secret")
			resp, err := http.DefaultClient.Do(req)
			if err == nil {
				_ = resp.Body.Close()
			}
		}()
		srv.SetRefreshDelay(time.Millisecond)
	}
	wg.Wait()

	require.Equal(t, 2, srv.Count(CountRefreshGrant))
}
