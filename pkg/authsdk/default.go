package authsdk

import (
	"sync"
	"sync/atomic"
)

// The process-wide Manager. Prefer constructing a Manager with NewManager and
// passing it around; this exists for applications that need one shared
// instance without plumbing.
var (
	defaultMu      sync.Mutex
	defaultManager atomic.Pointer[Manager]
)

// Init returns the process-wide Manager, building it from cfg on the first
// successful call. Once built, cfg is ignored. Concurrent first callers all
// observe the same instance.
func Init(cfg Config) (*Manager, error) {
	if m := defaultManager.Load(); m != nil {
		return m, nil
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()

	// Re-check under the lock, another caller may have won the race
	if m := defaultManager.Load(); m != nil {
		return m, nil
	}

	m, err := NewManager(cfg)
	if err != nil {
		return nil, err
	}
	defaultManager.Store(m)

	return m, nil
}

// Default returns the process-wide Manager, or ErrNotConfigured if Init has
// not succeeded yet.
func Default() (*Manager, error) {
	if m := defaultManager.Load(); m != nil {
		return m, nil
	}
	return nil, ErrNotConfigured
}
