package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ============================================================================
// Error Kinds
// ============================================================================

// AuthErrorKind classifies an authentication failure reported by the API.
// Only KindInvalidToken is recoverable, through a single refresh.
type AuthErrorKind string

const (
	KindUnknown              AuthErrorKind = "unknown"
	KindInvalidToken         AuthErrorKind = "invalid_token"
	KindInvalidGrant         AuthErrorKind = "invalid_grant"
	KindInvalidClient        AuthErrorKind = "invalid_client"
	KindInvalidRequest       AuthErrorKind = "invalid_request"
	KindUnauthorizedClient   AuthErrorKind = "unauthorized_client"
	KindUnsupportedGrantType AuthErrorKind = "unsupported_grant_type"
	KindInvalidScope         AuthErrorKind = "invalid_scope"
	KindAccessDenied         AuthErrorKind = "access_denied"
)

var knownKinds = map[string]AuthErrorKind{
	string(KindInvalidToken):         KindInvalidToken,
	string(KindInvalidGrant):         KindInvalidGrant,
	string(KindInvalidClient):        KindInvalidClient,
	string(KindInvalidRequest):       KindInvalidRequest,
	string(KindUnauthorizedClient):   KindUnauthorizedClient,
	string(KindUnsupportedGrantType): KindUnsupportedGrantType,
	string(KindInvalidScope):         KindInvalidScope,
	string(KindAccessDenied):         KindAccessDenied,
}

// ParseAuthErrorKind maps a raw OAuth2 error code to a kind. Matching is case
// insensitive; anything unrecognised is KindUnknown.
func ParseAuthErrorKind(code string) AuthErrorKind {
	if kind, ok := knownKinds[strings.ToLower(strings.TrimSpace(code))]; ok {
		return kind
	}
	return KindUnknown
}

// ============================================================================
// Error Types
// ============================================================================

// ErrNotConfigured is returned by Default when Init has never succeeded.
var ErrNotConfigured = errors.New("authsdk: manager must be initialized with API connection prerequisites")

// AuthError is an authentication failure: the API rejected the credentials or
// token, or an operation that must only ever fail as an authentication failure
// hit something else (carried in Err).
type AuthError struct {
	// StatusCode is the HTTP status, 0 when the failure did not come from a response
	StatusCode int

	// Kind is the classified failure
	Kind AuthErrorKind

	// Code is the raw error string reported by the server
	Code string

	// Message is the human readable description
	Message string

	// Err is the underlying cause, if any
	Err error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "authentication failed"
}

func (e *AuthError) Unwrap() error { return e.Err }

// Retryable reports whether a refresh may recover from e. Only a 4xx
// invalid_token rejection qualifies.
func (e *AuthError) Retryable() bool {
	return e.Kind == KindInvalidToken && e.StatusCode >= 400 && e.StatusCode < 500
}

// ServiceError is a failure that says nothing about the credentials: a 5xx
// response, a transport error, or an unreadable body.
type ServiceError struct {
	// StatusCode is the HTTP status, 0 for transport failures
	StatusCode int

	// Message is the diagnostic text
	Message string

	// Err is the underlying cause, if any
	Err error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "service failure"
}

func (e *ServiceError) Unwrap() error { return e.Err }

// IsInvalidToken reports whether err is a retryable invalid_token rejection.
func IsInvalidToken(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) && authErr.Retryable()
}

// asAuthError returns err when it already is an AuthError, otherwise wraps it
// as one with KindUnknown, keeping err's message and err as the cause.
func asAuthError(err error) *AuthError {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr
	}
	return &AuthError{Kind: KindUnknown, Message: err.Error(), Err: err}
}

// ============================================================================
// Response Classification
// ============================================================================

// classifyResponse turns an error response into a typed error. It returns nil
// for statuses below 400.
//
//   - 5xx: body is an ErrorEnvelope, result is a ServiceError whose message is
//     the newline joined "code: message" list.
//   - 4xx: body is {"error": "..."}, result is an AuthError with the mapped kind
//     and the message "<status>: <error>".
func classifyResponse(status int, body []byte) error {
	switch {
	case status >= 500:
		var env ErrorEnvelope
		if err := json.Unmarshal(body, &env); err != nil || len(env.Errors) == 0 {
			return &ServiceError{
				StatusCode: status,
				Message:    fmt.Sprintf("%d: %s", status, http.StatusText(status)),
				Err:        err,
			}
		}
		return &ServiceError{StatusCode: status, Message: env.String()}

	case status >= 400:
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return &AuthError{
				StatusCode: status,
				Kind:       ParseAuthErrorKind(errResp.Error),
				Code:       errResp.Error,
				Message:    fmt.Sprintf("%d: %s", status, errResp.Error),
			}
		}

		// Some endpoints reject with an envelope instead
		var env ErrorEnvelope
		if err := json.Unmarshal(body, &env); err == nil {
			if first, ok := env.First(); ok {
				return &AuthError{
					StatusCode: status,
					Kind:       KindUnknown,
					Code:       string(first.Code),
					Message:    fmt.Sprintf("%d: %s", status, first.Message),
				}
			}
		}

		return &AuthError{
			StatusCode: status,
			Kind:       KindUnknown,
			Message:    fmt.Sprintf("%d: %s", status, http.StatusText(status)),
		}

	default:
		return nil
	}
}
