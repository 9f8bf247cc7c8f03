// Package handle holds a lazily initialized, process-wide collaborator client.
package handle

import (
	"context"
	"fmt"
	"sync"

	"larkmcp/internal/domain"
)

// Factory builds the client on first use. It returns (zero, false, nil) when it has
// nothing to build from (for example missing credentials).
type Factory[T any] func(ctx context.Context) (T, bool, error)

// Handle is a single-writer slot for a collaborator. Reads are concurrent; the
// first Get after an empty start runs the fallback factory exactly once at a time.
type Handle[T any] struct {
	mu       sync.RWMutex
	name     string
	value    T
	ok       bool
	fallback Factory[T]
}

func New[T any](name string, fallback Factory[T]) *Handle[T] {
	return &Handle[T]{name: name, fallback: fallback}
}

// Set replaces the current value. Explicit initialization always wins over the fallback.
func (h *Handle[T]) Set(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.value = v
	h.ok = true
}

// Reset drops the current value so the next Get consults the fallback again.
func (h *Handle[T]) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	var zero T
	h.value = zero
	h.ok = false
}

// Initialized reports whether a value is set without triggering the fallback.
func (h *Handle[T]) Initialized() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ok
}

// Get returns the current value, building it from the fallback if needed.
// It fails with domain.ErrNotInitialized when neither is available.
func (h *Handle[T]) Get(ctx context.Context) (T, error) {
	h.mu.RLock()
	if h.ok {
		v := h.value
		h.mu.RUnlock()
		return v, nil
	}
	h.mu.RUnlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ok {
		return h.value, nil
	}
	var zero T
	if h.fallback == nil {
		return zero, fmt.Errorf("%s %w", h.name, domain.ErrNotInitialized)
	}
	v, built, err := h.fallback(ctx)
	if err != nil {
		return zero, fmt.Errorf("%s %w: %v", h.name, domain.ErrNotInitialized, err)
	}
	if !built {
		return zero, fmt.Errorf("%s %w", h.name, domain.ErrNotInitialized)
	}
	h.value = v
	h.ok = true
	return v, nil
}

// Static returns a factory that always yields v. Useful for wiring fixed clients.
func Static[T any](v T) Factory[T] {
	return func(context.Context) (T, bool, error) { return v, true, nil }
}
