package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyResponse(t *testing.T) {
	t.Parallel()

	t.Run("server error joins envelope", func(t *testing.T) {
		body := `{"errors":[{"code":"E1","message":"m1"},{"code":"E2","message":"m2"}]}`

		err := classifyResponse(http.StatusInternalServerError, []byte(body))

		var svcErr *ServiceError
		require.ErrorAs(t, err, &svcErr)
		require.Equal(t, "E1: m1\nE2: m2", svcErr.Error())
		require.Equal(t, http.StatusInternalServerError, svcErr.StatusCode)

		var authErr *AuthError
		require.False(t, errors.As(err, &authErr), "server failures carry no auth kind")
	})

	t.Run("server error with numeric codes", func(t *testing.T) {
		body := `{"errors":[{"code":65536,"message":"database unavailable"}]}`

		err := classifyResponse(http.StatusServiceUnavailable, []byte(body))
		require.EqualError(t, err, "65536: database unavailable")
	})

	t.Run("server error with unreadable body", func(t *testing.T) {
		err := classifyResponse(http.StatusBadGateway, []byte("<html>bad gateway</html>"))

		var svcErr *ServiceError
		require.ErrorAs(t, err, &svcErr)
		require.Equal(t, "502: Bad Gateway", svcErr.Error())
		require.Error(t, svcErr.Unwrap())
	})

	t.Run("invalid token", func(t *testing.T) {
		err := classifyResponse(http.StatusUnauthorized, []byte(`{"error":"invalid_token"}`))

		var authErr *AuthError
		require.ErrorAs(t, err, &authErr)
		require.Equal(t, KindInvalidToken, authErr.Kind)
		require.Equal(t, "invalid_token", authErr.Code)
		require.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
		require.Equal(t, "401: invalid_token", authErr.Error())
		require.True(t, authErr.Retryable())
		require.True(t, IsInvalidToken(err))
	})

	t.Run("invalid grant is not retryable", func(t *testing.T) {
		err := classifyResponse(http.StatusBadRequest, []byte(`{"error":"invalid_grant","error_description":"bad password"}`))

		var authErr *AuthError
		require.ErrorAs(t, err, &authErr)
		require.Equal(t, KindInvalidGrant, authErr.Kind)
		require.False(t, authErr.Retryable())
		require.False(t, IsInvalidToken(err))
	})

	t.Run("unrecognised error code", func(t *testing.T) {
		err := classifyResponse(http.StatusForbidden, []byte(`{"error":"account_locked"}`))

		var authErr *AuthError
		require.ErrorAs(t, err, &authErr)
		require.Equal(t, KindUnknown, authErr.Kind)
		require.Equal(t, "account_locked", authErr.Code)
	})

	t.Run("client error with envelope body", func(t *testing.T) {
		err := classifyResponse(http.StatusBadRequest, []byte(`{"errors":[{"code":65578,"message":"invalid email"}]}`))

		var authErr *AuthError
		require.ErrorAs(t, err, &authErr)
		require.Equal(t, KindUnknown, authErr.Kind)
		require.Equal(t, "65578", authErr.Code)
		require.Equal(t, "400: invalid email", authErr.Error())
	})

	t.Run("client error with empty body", func(t *testing.T) {
		err := classifyResponse(http.StatusNotFound, nil)
		require.EqualError(t, err, "404: Not Found")
	})

	t.Run("success is not classified", func(t *testing.T) {
		require.NoError(t, classifyResponse(http.StatusOK, []byte(`{"error":"invalid_token"}`)))
		require.NoError(t, classifyResponse(http.StatusFound, nil))
	})
}

func TestParseAuthErrorKind(t *testing.T) {
	t.Parallel()

	require.Equal(t, KindInvalidToken, ParseAuthErrorKind("invalid_token"))
	require.Equal(t, KindInvalidToken, ParseAuthErrorKind(" INVALID_TOKEN "))
	require.Equal(t, KindInvalidGrant, ParseAuthErrorKind("invalid_grant"))
	require.Equal(t, KindInvalidClient, ParseAuthErrorKind("invalid_client"))
	require.Equal(t, KindUnknown, ParseAuthErrorKind(""))
	require.Equal(t, KindUnknown, ParseAuthErrorKind("something_else"))
}

func TestRetryableRequiresClientStatus(t *testing.T) {
	t.Parallel()

	// A kind without a 4xx status did not come from the API
	require.False(t, (&AuthError{Kind: KindInvalidToken}).Retryable())
	require.False(t, (&AuthError{StatusCode: 500, Kind: KindInvalidToken}).Retryable())
	require.True(t, (&AuthError{StatusCode: 403, Kind: KindInvalidToken}).Retryable())
}

func TestAsAuthError(t *testing.T) {
	t.Parallel()

	t.Run("keeps existing auth error", func(t *testing.T) {
		orig := &AuthError{StatusCode: 400, Kind: KindInvalidGrant, Message: "400: invalid_grant"}
		wrapped := fmt.Errorf("login: %w", orig)

		require.Same(t, orig, asAuthError(wrapped))
	})

	t.Run("wraps anything else", func(t *testing.T) {
		cause := &ServiceError{Message: "failed to send request: connection refused"}

		got := asAuthError(cause)
		require.Equal(t, KindUnknown, got.Kind)
		require.Equal(t, cause.Error(), got.Error())
		require.ErrorIs(t, got, cause)
	})
}

func TestErrorCodeUnmarshal(t *testing.T) {
	t.Parallel()

	var env ErrorEnvelope
	err := json.Unmarshal([]byte(`{"errors":[{"code":65536,"message":"a"},{"code":"E2","message":"b"},{"code":null,"message":"c"}]}`), &env)
	require.NoError(t, err)
	require.Len(t, env.Errors, 3)
	require.Equal(t, ErrorCode("65536"), env.Errors[0].Code)
	require.Equal(t, ErrorCode("E2"), env.Errors[1].Code)
	require.Equal(t, ErrorCode(""), env.Errors[2].Code)

	err = json.Unmarshal([]byte(`{"errors":[{"code":{"nested":true},"message":"a"}]}`), &env)
	require.Error(t, err)
}
