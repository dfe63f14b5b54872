package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// CreateUser registers a new user under the service client. Any rejection
// (status >= 400) is reported as an *AuthError carrying the first message of
// the error envelope.
func (c *Client) CreateUser(ctx context.Context, email, password string) (*CreateUserResponse, error) {
	payload, err := json.Marshal(CreateUserRequest{Email: email, Password: password})
	if err != nil {
		return nil, &ServiceError{Message: fmt.Sprintf("failed to marshal request: %v", err), Err: err}
	}

	headers := map[string]string{
		"Content-Type":  "application/json",
		"Accept":        "application/json",
		"Authorization": c.basicAuth,
	}

	resp, err := c.doRequest(ctx, http.MethodPost, userPath, bytes.NewReader(payload), headers)
	if err != nil {
		return nil, err
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, registrationError(resp.StatusCode, body)
	}

	var created CreateUserResponse
	if err := decodeJSON(resp.StatusCode, body, &created); err != nil {
		return nil, err
	}

	if created.ID == "" {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Message: "create user response is missing id"}
	}

	return &created, nil
}

// CheckAuth asks the API whether accessToken is still accepted. A 4xx answer
// is a classified *AuthError, anything else unexpected is a *ServiceError.
func (c *Client) CheckAuth(ctx context.Context, accessToken string) error {
	headers := map[string]string{
		"Accept":        "application/json",
		"Authorization": "Bearer " + accessToken,
	}

	resp, err := c.doRequest(ctx, http.MethodGet, userPath, nil, headers)
	if err != nil {
		return err
	}

	body, err := readBody(resp)
	if err != nil {
		return err
	}

	return classifyResponse(resp.StatusCode, body)
}

func registrationError(status int, body []byte) error {
	var env ErrorEnvelope
	if err := json.Unmarshal(body, &env); err == nil {
		if first, ok := env.First(); ok {
			return &AuthError{
				StatusCode: status,
				Kind:       KindUnknown,
				Code:       string(first.Code),
				Message:    first.Message,
			}
		}
	}

	return &AuthError{
		StatusCode: status,
		Kind:       KindUnknown,
		Message:    fmt.Sprintf("user registration failed: %d %s", status, http.StatusText(status)),
	}
}
