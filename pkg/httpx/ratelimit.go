package httpx

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig defines the throttling parameters for outbound calls.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window
	RequestsPerWindow int
	// Window is the time window for rate limiting
	Window time.Duration
	// Burst allows for temporary bursts above the rate limit
	Burst int
}

// GrantLimit throttles calls against the token endpoint. A misbehaving caller
// looping on bad credentials would otherwise hammer the authorization server
// and get the client id locked out.
// Override with: RATELIMIT_GRANT_REQUESTS, RATELIMIT_GRANT_WINDOW_SEC, RATELIMIT_GRANT_BURST
var GrantLimit = RateLimitConfig{
	RequestsPerWindow: 30,
	Window:            time.Minute,
	Burst:             10,
}

// Enabled reports whether the config describes a usable limit.
func (c RateLimitConfig) Enabled() bool {
	return c.RequestsPerWindow > 0 && c.Window > 0 && c.Burst > 0
}

// ParseRateLimitFromEnv reads rate limit configuration from environment variables.
// Environment variables follow the pattern: RATELIMIT_{prefix}_{field}
// For example: RATELIMIT_GRANT_REQUESTS, RATELIMIT_GRANT_WINDOW_SEC, RATELIMIT_GRANT_BURST
func ParseRateLimitFromEnv(prefix string, defaultConfig RateLimitConfig) RateLimitConfig {
	config := defaultConfig

	if val := os.Getenv("RATELIMIT_" + prefix + "_REQUESTS"); val != "" {
		if requests, err := strconv.Atoi(val); err == nil && requests > 0 {
			config.RequestsPerWindow = requests
		}
	}

	if val := os.Getenv("RATELIMIT_" + prefix + "_WINDOW_SEC"); val != "" {
		if windowSec, err := strconv.Atoi(val); err == nil && windowSec > 0 {
			config.Window = time.Duration(windowSec) * time.Second
		}
	}

	if val := os.Getenv("RATELIMIT_" + prefix + "_BURST"); val != "" {
		if burst, err := strconv.Atoi(val); err == nil && burst > 0 {
			config.Burst = burst
		}
	}

	return config
}

// KeyExtractor groups outbound requests for throttling purposes.
// An empty key means the request is not throttled.
type KeyExtractor func(*http.Request) string

// EndpointKeyExtractor throttles per host and path.
func EndpointKeyExtractor(r *http.Request) string {
	return r.URL.Host + r.URL.Path
}

// PathKeyExtractor only throttles requests whose path matches one of paths.
func PathKeyExtractor(paths ...string) KeyExtractor {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return func(r *http.Request) string {
		if _, ok := set[r.URL.Path]; !ok {
			return ""
		}
		return EndpointKeyExtractor(r)
	}
}

// rateLimiter manages limiters for different keys
type rateLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// getLimiter retrieves or creates a rate limiter for the given key
func (rl *rateLimiter) getLimiter(key string) *rate.Limiter {
	if limiter, ok := rl.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(rl.rate, rl.burst)
	actual, _ := rl.limiters.LoadOrStore(key, limiter)
	return actual.(*rate.Limiter)
}

// ThrottleTransport wraps next with a token bucket per extracted key. Unlike a
// server side limiter it never rejects: requests wait for a token and only fail
// if the request context ends first.
func ThrottleTransport(config RateLimitConfig, keyExtractor KeyExtractor, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if !config.Enabled() {
		return next
	}
	if keyExtractor == nil {
		keyExtractor = EndpointKeyExtractor
	}

	ratePerSecond := float64(config.RequestsPerWindow) / config.Window.Seconds()

	return &throttle{
		limiter: &rateLimiter{
			rate:  rate.Limit(ratePerSecond),
			burst: config.Burst,
		},
		key:  keyExtractor,
		next: next,
	}
}

type throttle struct {
	limiter *rateLimiter
	key     KeyExtractor
	next    http.RoundTripper
}

func (t *throttle) RoundTrip(r *http.Request) (*http.Response, error) {
	if key := t.key(r); key != "" {
		if err := t.limiter.getLimiter(key).Wait(r.Context()); err != nil {
			return nil, fmt.Errorf("throttled request to %s: %w", r.URL.Path, err)
		}
	}
	return t.next.RoundTrip(r)
}
