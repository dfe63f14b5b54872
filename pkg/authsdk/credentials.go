package authsdk

import (
	"encoding/base64"
	"time"

	"github.com/aussiebroadwan/signauth/pkg/jwtx"
	"golang.org/x/oauth2"
)

// EncodeClientCredentials returns base64(clientID ":" clientSecret), the value
// carried by the Basic Authorization header on token and registration calls.
func EncodeClientCredentials(clientID, clientSecret string) string {
	return base64.StdEncoding.EncodeToString([]byte(clientID + ":" + clientSecret))
}

// ServiceCredential identifies the consuming application to the API.
// It is supplied once and never changes for the lifetime of a Manager.
type ServiceCredential struct {
	ClientID     string
	ClientSecret string
}

// BasicAuth returns the full Authorization header value.
func (c ServiceCredential) BasicAuth() string {
	return "Basic " + EncodeClientCredentials(c.ClientID, c.ClientSecret)
}

// UserCredential is the token pair issued to an end user.
//
// Values are treated as immutable: a refresh produces a new UserCredential
// rather than editing one in place. Callers persist it between process runs
// (it marshals to JSON) and hand it back to Manager.NewSessionForUser.
type UserCredential struct {
	Email        string `json:"email"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`

	// ExpiresAt is when the access token stops being accepted. Zero when the
	// server did not say, in which case the token is assumed valid until the
	// API rejects it.
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// newUserCredential folds a grant result into a credential for email.
func newUserCredential(email string, tok *TokenResponse, now time.Time) UserCredential {
	return UserCredential{
		Email:        email,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.expiry(now),
	}
}

// withTokens returns a copy of c carrying both tokens from tok. Both fields are
// always replaced together.
func (c UserCredential) withTokens(tok *TokenResponse, now time.Time) UserCredential {
	return newUserCredential(c.Email, tok, now)
}

// Expired reports whether the access token is known to be expired at now,
// allowing for the given skew. Unknown expiry is never expired.
func (c UserCredential) Expired(now time.Time, skew time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(skew).Before(c.ExpiresAt)
}

// Token converts the credential into an oauth2 bearer token.
func (c UserCredential) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: c.RefreshToken,
		Expiry:       c.ExpiresAt,
	}
}

// expiry resolves when the access token in r expires: expires_in first, then
// the exp claim of a JWT access token, otherwise unknown.
func (r *TokenResponse) expiry(now time.Time) time.Time {
	if r.ExpiresIn > 0 {
		return now.Add(time.Duration(r.ExpiresIn) * time.Second).UTC()
	}
	if exp, err := jwtx.ExpiresAt(r.AccessToken); err == nil {
		return exp
	}
	return time.Time{}
}
