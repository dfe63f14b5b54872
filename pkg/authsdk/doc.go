/*
Package authsdk manages OAuth2 credentials for a document-signing API on behalf
of a consuming application.

# Overview

The application owns one set of service credentials (a client id and secret).
With them it logs end users in, keeps their token pairs fresh, and registers
new users. The package is organized around three types:

  - Client: the raw API calls (password grant, refresh grant, user
    registration, token check), authenticated with HTTP Basic client credentials
  - Manager: the credential lifecycle built on Client
  - Session: a handle bound to one user's credential

Build a Manager once at start-up and share it:

	mgr, err := authsdk.NewManager(authsdk.Config{
		BaseURL:      "https://api.example.com",
		ClientID:     clientID,
		ClientSecret: clientSecret,
	})

Log a user in:

	sess, err := mgr.NewSessionForCredentials(ctx, "user@example.com", password)
	cred := sess.Credential() // persist this between runs

Resume from a stored credential. If the API answers invalid_token the Manager
refreshes once and the session carries the new token pair:

	sess, err := mgr.NewSessionForUser(ctx, cred)
	cred = sess.Credential() // may hold rotated tokens

Applications that want a single shared instance without plumbing can use Init
once and Default afterwards. Default returns ErrNotConfigured before that.

# Errors

Every operation returns one of three kinds of failure:

  - ErrNotConfigured: Default was called before Init succeeded
  - *AuthError: the API rejected the credentials or token. Kind classifies the
    OAuth2 error code; only KindInvalidToken on a 4xx is ever retried, through
    a single refresh
  - *ServiceError: a 5xx answer, a transport failure or an unreadable body.
    Never retried by this package

Inspect them with errors.As, or use IsInvalidToken:

	var authErr *authsdk.AuthError
	if errors.As(err, &authErr) && authErr.Kind == authsdk.KindInvalidGrant {
		// ask the user to log in again
	}

# Making API calls

Session.HTTPClient returns an *http.Client that sets the bearer token on each
request and refreshes it once it is known to be expired. All traffic goes
through the Manager's transport: requests carry an X-Request-ID, are logged
with log/slog, and token endpoint calls are throttled.

# Concurrency

Manager and Session are safe for concurrent use. Concurrent refreshes of the
same credential share one refresh grant. UserCredential is a plain value; a
refresh returns a new one instead of editing the old.
*/
package authsdk
