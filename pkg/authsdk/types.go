package authsdk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ============================================================================
// Token Types
// ============================================================================

// TokenResponse is the body returned by POST /oauth2/token for both the
// password and refresh_token grants.
type TokenResponse struct {
	// AccessToken authenticates API requests on behalf of the user
	AccessToken string `json:"access_token"`

	// RefreshToken obtains the next token pair; it is rotated on every refresh
	RefreshToken string `json:"refresh_token"`

	// TokenType is "bearer"
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the lifetime in seconds of the access token, 0 if unknown
	ExpiresIn int `json:"expires_in,omitempty"`

	// Scope is the granted scope, "*" for everything
	Scope string `json:"scope,omitempty"`
}

// ============================================================================
// Error Types
// ============================================================================

// ErrorResponse is the single-field body returned with 4xx token responses.
type ErrorResponse struct {
	// Error is the OAuth2 error code (e.g., "invalid_token", "invalid_grant")
	Error string `json:"error"`

	// ErrorDescription is optional human readable detail
	ErrorDescription string `json:"error_description,omitempty"`
}

// ErrorEnvelope is the list of errors the API reports for server failures and
// for rejected registrations.
type ErrorEnvelope struct {
	Errors []ErrorDetail `json:"errors"`
}

// ErrorDetail is a single entry of an ErrorEnvelope.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// String joins every entry as "code: message", one per line.
func (e ErrorEnvelope) String() string {
	lines := make([]string, 0, len(e.Errors))
	for _, d := range e.Errors {
		lines = append(lines, fmt.Sprintf("%s: %s", d.Code, d.Message))
	}
	return strings.Join(lines, "\n")
}

// First returns the first entry, if there is one.
func (e ErrorEnvelope) First() (ErrorDetail, bool) {
	if len(e.Errors) == 0 {
		return ErrorDetail{}, false
	}
	return e.Errors[0], true
}

// ErrorCode is an envelope error code. The API emits numeric codes but string
// codes are accepted too; both are kept in their textual form.
type ErrorCode string

// UnmarshalJSON accepts a JSON string, number or null.
func (c *ErrorCode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*c = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = ErrorCode(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("error code must be a string or number: %w", err)
		}
		*c = ErrorCode(n.String())
		return nil
	}
}

// ============================================================================
// User Types
// ============================================================================

// CreateUserRequest is the body of POST /user.
type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateUserResponse is returned when a user is created.
type CreateUserResponse struct {
	// ID is the identifier of the new user
	ID string `json:"id"`

	// Verified reports whether the email address is already verified
	Verified bool `json:"verified,omitempty"`

	// Email echoes the registered address
	Email string `json:"email,omitempty"`
}
