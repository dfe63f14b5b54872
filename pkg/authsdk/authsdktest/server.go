// Package authsdktest provides an in-memory fake of the API's authentication
// endpoints for tests.
package authsdktest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/signauth/pkg/authsdk"
	"github.com/aussiebroadwan/signauth/pkg/idx"
	"github.com/golang-jwt/jwt/v5"
)

// Server fakes POST /oauth2/token, GET /user and POST /user.
//
// Tokens are rotated on every refresh like the real API: a refresh token works
// once. Exported fields may be set before the first request.
type Server struct {
	*httptest.Server

	ClientID     string
	ClientSecret string

	// ExpiresIn is reported with every grant, 0 to omit it
	ExpiresIn int

	// JWTKey, when set, makes access tokens HS256 JWTs expiring after AccessTTL
	JWTKey    []byte
	AccessTTL time.Duration

	t testing.TB

	mu       sync.Mutex
	users    map[string]*user  // by email
	access   map[string]string // access token fingerprint -> email
	refresh  map[string]string // refresh token fingerprint -> email
	failures map[string][]failure
	counts   map[string]int

	refreshDelay time.Duration
}

type user struct {
	id           string
	email        string
	passwordHash string
}

type failure struct {
	status int
	body   any
}

// Counter names reported by Count.
const (
	CountPasswordGrant = "password_grant"
	CountRefreshGrant  = "refresh_grant"
	CountCheckAuth     = "check_auth"
	CountRegistration  = "registration"
)

// NewServer starts a fake server that accepts clientID/clientSecret. It is
// closed when the test ends.
func NewServer(t testing.TB, clientID, clientSecret string) *Server {
	t.Helper()

	s := &Server{
		t:            t,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		ExpiresIn:    3600,
		AccessTTL:    time.Hour,
		users:        make(map[string]*user),
		access:       make(map[string]string),
		refresh:      make(map[string]string),
		failures:     make(map[string][]failure),
		counts:       make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth2/token", s.handleToken)
	mux.HandleFunc("GET /user", s.handleGetUser)
	mux.HandleFunc("POST /user", s.handleCreateUser)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)

	return s
}

// AddUser registers a user directly and returns its id.
func (s *Server) AddUser(email, password string) string {
	s.t.Helper()

	u, err := newUser(email, password)
	if err != nil {
		s.t.Fatalf("authsdktest: add user: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[email] = u
	return u.id
}

func newUser(email, password string) (*user, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	return &user{id: idx.New(), email: email, passwordHash: hash}, nil
}

// RevokeAccess invalidates an access token so that GET /user answers
// invalid_token while the refresh token keeps working.
func (s *Server) RevokeAccess(accessToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.access, fingerprint(accessToken))
}

// RevokeRefresh invalidates a refresh token.
func (s *Server) RevokeRefresh(refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refresh, fingerprint(refreshToken))
}

// SetRefreshDelay makes every following refresh grant sleep for d before
// answering. It is safe to call while requests are in flight.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshDelay = d
}

// RespondNext makes the next request to path answer status with body (encoded as
// JSON, or written verbatim when it is a string). Responses queue per path.
func (s *Server) RespondNext(path string, status int, body any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = append(s.failures[path], failure{status: status, body: body})
}

// Count returns how many requests of the named kind reached the server.
func (s *Server) Count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[name]
}

// ValidAccess reports whether accessToken is currently accepted.
func (s *Server) ValidAccess(accessToken string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.access[fingerprint(accessToken)]
	return ok
}

func (s *Server) count(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[name]++
}

// injected writes a queued failure for r's path, reporting whether it did.
func (s *Server) injected(w http.ResponseWriter, r *http.Request) bool {
	s.mu.Lock()
	queue := s.failures[r.URL.Path]
	if len(queue) == 0 {
		s.mu.Unlock()
		return false
	}
	f := queue[0]
	s.failures[r.URL.Path] = queue[1:]
	s.mu.Unlock()

	if raw, ok := f.body.(string); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(raw))
		return true
	}
	writeJSON(w, f.status, f.body)
	return true
}

func (s *Server) clientAuthorized(r *http.Request) bool {
	id, secret, ok := r.BasicAuth()
	return ok && id == s.ClientID && secret == s.ClientSecret
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		writeJSON(w, http.StatusBadRequest, authsdk.ErrorResponse{Error: "invalid_request"})
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, authsdk.ErrorResponse{Error: "invalid_request"})
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "password":
		s.count(CountPasswordGrant)
	case "refresh_token":
		s.count(CountRefreshGrant)
	}

	if s.injected(w, r) {
		return
	}

	if !s.clientAuthorized(r) {
		writeJSON(w, http.StatusUnauthorized, authsdk.ErrorResponse{Error: "invalid_client"})
		return
	}

	if r.PostForm.Get("scope") != "*" {
		writeJSON(w, http.StatusBadRequest, authsdk.ErrorResponse{Error: "invalid_scope"})
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "password":
		s.handlePasswordGrant(w, r)
	case "refresh_token":
		s.handleRefreshGrant(w, r)
	default:
		writeJSON(w, http.StatusBadRequest, authsdk.ErrorResponse{Error: "unsupported_grant_type"})
	}
}

func (s *Server) handlePasswordGrant(w http.ResponseWriter, r *http.Request) {
	email := r.PostForm.Get("username")
	password := r.PostForm.Get("password")

	s.mu.Lock()
	u, ok := s.users[email]
	s.mu.Unlock()

	if !ok || verifyPassword(password, u.passwordHash) != nil {
		writeJSON(w, http.StatusBadRequest, authsdk.ErrorResponse{Error: "invalid_grant"})
		return
	}

	s.mu.Lock()
	resp := s.issueLocked(email)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefreshGrant(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	delay := s.refreshDelay
	s.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	key := fingerprint(r.PostForm.Get("refresh_token"))

	s.mu.Lock()
	email, ok := s.refresh[key]
	if !ok {
		s.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, authsdk.ErrorResponse{Error: "invalid_grant"})
		return
	}
	delete(s.refresh, key)
	resp := s.issueLocked(email)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) issueLocked(email string) authsdk.TokenResponse {
	accessToken := idx.New()
	if len(s.JWTKey) > 0 {
		claims := jwt.RegisteredClaims{
			Subject:   email,
			ID:        accessToken,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.AccessTTL)),
		}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.JWTKey)
		if err == nil {
			accessToken = signed
		}
	}
	refreshToken := newOpaqueToken()

	s.access[fingerprint(accessToken)] = email
	s.refresh[fingerprint(refreshToken)] = email

	return authsdk.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    s.ExpiresIn,
		Scope:        "*",
	}
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	s.count(CountCheckAuth)
	if s.injected(w, r) {
		return
	}

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		writeJSON(w, http.StatusUnauthorized, authsdk.ErrorResponse{Error: "invalid_token"})
		return
	}

	s.mu.Lock()
	email, ok := s.access[fingerprint(token)]
	var u *user
	if ok {
		u = s.users[email]
	}
	s.mu.Unlock()

	if !ok || u == nil {
		writeJSON(w, http.StatusUnauthorized, authsdk.ErrorResponse{Error: "invalid_token"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"id": u.id, "email": u.email})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	s.count(CountRegistration)
	if s.injected(w, r) {
		return
	}

	if !s.clientAuthorized(r) {
		writeJSON(w, http.StatusUnauthorized, envelope("65536", "invalid client credentials"))
		return
	}

	var req authsdk.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope("65537", "malformed request body"))
		return
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeJSON(w, http.StatusBadRequest, envelope("65578", "invalid email"))
		return
	}
	if len(req.Password) < 2 {
		writeJSON(w, http.StatusBadRequest, envelope("65579", "bad password"))
		return
	}

	u, err := newUser(req.Email, req.Password)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, envelope("1", "failed to hash password"))
		return
	}

	s.mu.Lock()
	if _, exists := s.users[req.Email]; exists {
		s.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, envelope("65580", "user already exists"))
		return
	}
	s.users[req.Email] = u
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, authsdk.CreateUserResponse{ID: u.id, Email: u.email})
}

func envelope(code, message string) authsdk.ErrorEnvelope {
	return authsdk.ErrorEnvelope{Errors: []authsdk.ErrorDetail{{Code: authsdk.ErrorCode(code), Message: message}}}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
