package jwtx

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNotJWT    = errors.New("jwtx: token is not a jwt")
	ErrNoExpiry  = errors.New("jwtx: token has no exp claim")
	ErrMalformed = errors.New("jwtx: malformed token")
)

// LooksLikeJWT reports whether token has the three dot separated segments of a
// compact JWS. Opaque tokens issued by the API fail this check.
func LooksLikeJWT(token string) bool {
	return strings.Count(token, ".") == 2
}

// ExpiresAt reads the exp claim of an access token without verifying its
// signature. The client never holds the issuer's keys; the value is only used
// to schedule refreshes and the server remains the authority on validity.
func ExpiresAt(token string) (time.Time, error) {
	if !LooksLikeJWT(token) {
		return time.Time{}, ErrNotJWT
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, errors.Join(ErrMalformed, err)
	}

	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time.UTC(), nil
}
