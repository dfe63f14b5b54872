package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aussiebroadwan/signauth/pkg/authsdk"
	"github.com/aussiebroadwan/signauth/pkg/idx"
	"github.com/aussiebroadwan/signauth/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags
	BuildVersion = "v0.1.0"
)

// Application wires configuration, logging and the credential Manager behind
// the snauth commands. Every command writes its result as JSON to the given
// writer; persisting a printed credential is left to the caller.
type Application struct {
	cfg     Config
	logger  *slog.Logger
	manager *authsdk.Manager
}

// New validates cfg and builds an Application.
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "snauth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
			Output:  cfg.LogOutput,
		}),
	}

	limit := cfg.GrantLimit
	manager, err := authsdk.NewManager(authsdk.Config{
		BaseURL:      cfg.APIURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Timeout:      cfg.HTTPTimeout,
		GrantLimit:   &limit,
		Logger:       app.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	app.manager = manager

	return app, nil
}

// Manager exposes the credential manager.
func (app *Application) Manager() *authsdk.Manager {
	return app.manager
}

// command tags ctx with a fresh request id so every log line and outbound call
// of one command correlates.
func (app *Application) command(ctx context.Context, name string) context.Context {
	ctx = slogx.WithContext(ctx, app.logger.With("command", name))
	return slogx.WithRequestID(ctx, idx.New())
}

// Login performs a password login and writes the new credential.
func (app *Application) Login(ctx context.Context, email, password string, w io.Writer) error {
	ctx = app.command(ctx, "login")

	sess, err := app.manager.NewSessionForCredentials(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	slogx.FromContext(ctx).Info("logged in", "email", email)
	return writeJSON(w, sess.Credential())
}

// Check resumes a session from cred and writes the credential the session
// ended up with, which differs from cred when a refresh was needed.
func (app *Application) Check(ctx context.Context, cred authsdk.UserCredential, w io.Writer) error {
	ctx = app.command(ctx, "check")

	sess, err := app.manager.NewSessionForUser(ctx, cred)
	if err != nil {
		return fmt.Errorf("credential check failed: %w", err)
	}

	current := sess.Credential()
	slogx.FromContext(ctx).Info("credential accepted", "refreshed", current.RefreshToken != cred.RefreshToken)
	return writeJSON(w, current)
}

// Refresh exchanges the refresh token of cred and writes the new credential.
func (app *Application) Refresh(ctx context.Context, cred authsdk.UserCredential, w io.Writer) error {
	ctx = app.command(ctx, "refresh")

	refreshed, err := app.manager.RefreshUser(ctx, cred)
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	return writeJSON(w, refreshed)
}

// Register creates a user and writes its id.
func (app *Application) Register(ctx context.Context, email, password string, w io.Writer) error {
	ctx = app.command(ctx, "register")

	id, err := app.manager.RegisterUser(ctx, email, password)
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	return writeJSON(w, struct {
		ID string `json:"id"`
	}{ID: id})
}

// ReadCredential decodes a credential previously written by Login, Check or
// Refresh.
func ReadCredential(r io.Reader) (authsdk.UserCredential, error) {
	var cred authsdk.UserCredential
	if err := json.NewDecoder(r).Decode(&cred); err != nil {
		return authsdk.UserCredential{}, fmt.Errorf("failed to decode credential: %w", err)
	}
	if cred.AccessToken == "" && cred.RefreshToken == "" {
		return authsdk.UserCredential{}, errors.New("credential has no tokens")
	}
	return cred, nil
}

// LoadCredential reads a credential from path, or from stdin when path is "-".
func LoadCredential(path string) (authsdk.UserCredential, error) {
	if path == "-" {
		return ReadCredential(os.Stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		return authsdk.UserCredential{}, fmt.Errorf("failed to open credential: %w", err)
	}
	defer f.Close()

	return ReadCredential(f)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
