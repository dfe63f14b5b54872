package slogx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/signauth/pkg/idx"
)

// RequestIDHeader carries the correlation id on outbound requests.
const RequestIDHeader = "X-Request-ID"

// Transport wraps next so every outbound request carries an X-Request-ID and
// produces an http_request log record. Request bodies and the Authorization
// header are never logged.
func Transport(base *slog.Logger, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if base == nil {
		base = slog.Default()
	}
	return &transport{base: base, next: next}
}

type transport struct {
	base *slog.Logger
	next http.RoundTripper
}

func (t *transport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()

	// Prefer an id pinned on the context, then a caller supplied header
	reqID := RequestID(r.Context())
	if reqID == "" {
		reqID = r.Header.Get(RequestIDHeader)
	}
	if !idx.Valid(reqID) {
		reqID = idx.New()
	}

	// RoundTrippers must not mutate the caller's request
	r = r.Clone(r.Context())
	r.Header.Set(RequestIDHeader, reqID)

	logger := t.base.With(
		"req_id", reqID,
		"method", r.Method,
		"host", r.URL.Host,
		"path", r.URL.Path,
	)

	resp, err := t.next.RoundTrip(r)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		logger.Warn("http_request failed", "duration_ms", duration, "err", err)
		return nil, err
	}

	logger.Debug("http_request",
		"status", resp.StatusCode,
		"duration_ms", duration,
	)
	return resp, nil
}
