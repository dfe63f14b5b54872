package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// grantScope is requested on every grant; the API only knows the full scope.
const grantScope = "*"

// PasswordGrant exchanges an end user's email and password for a token pair.
func (c *Client) PasswordGrant(ctx context.Context, email, password string) (*TokenResponse, error) {
	data := url.Values{
		"grant_type": {"password"},
		"username":   {email},
		"password":   {password},
		"scope":      {grantScope},
	}

	return c.requestToken(ctx, data)
}

// RefreshGrant exchanges a refresh token for a new token pair. The old refresh
// token must not be reused afterwards.
func (c *Client) RefreshGrant(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"scope":         {grantScope},
	}

	return c.requestToken(ctx, data)
}

// requestToken posts a form to the token endpoint. Error responses are
// classified before the body is read as a token.
func (c *Client) requestToken(ctx context.Context, data url.Values) (*TokenResponse, error) {
	headers := map[string]string{
		"Content-Type":  "application/x-www-form-urlencoded",
		"Accept":        "application/json",
		"Authorization": c.basicAuth,
	}

	resp, err := c.doRequest(ctx, http.MethodPost, tokenPath, strings.NewReader(data.Encode()), headers)
	if err != nil {
		return nil, err
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	if err := classifyResponse(resp.StatusCode, body); err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp.StatusCode, body, &tokenResp); err != nil {
		return nil, err
	}

	if tokenResp.AccessToken == "" {
		return nil, &ServiceError{
			StatusCode: resp.StatusCode,
			Message:    "token response is missing access_token",
		}
	}

	return &tokenResp, nil
}
