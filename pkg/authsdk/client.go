package authsdk

import (
	"net/http"
	"strings"
	"time"
)

// API paths relative to the base endpoint.
const (
	tokenPath = "/oauth2/token"
	userPath  = "/user"
)

// Client performs the raw calls against the API: the two token grants, user
// registration and the token check used by sessions. It holds no user state;
// Manager builds on it to run the credential lifecycle.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	service   ServiceCredential
	basicAuth string
	now       func() time.Time
}

// NewClient creates a client for baseURL authenticating as service. A nil
// httpClient gets a plain client with a 10 second timeout.
func NewClient(baseURL string, service ServiceCredential, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: httpClient,
		service:    service,
		basicAuth:  service.BasicAuth(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ClientID returns the service client id.
func (c *Client) ClientID() string {
	return c.service.ClientID
}
