package executor

import (
	"context"
	"sync"
)

// CancelHandle lets another goroutine stop the statement in flight.
// It holds only the statement's cancel function; the executing goroutine
// keeps ownership of the statement and its cursor.
type CancelHandle struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func (h *CancelHandle) arm(cancel context.CancelFunc) {
	h.mu.Lock()
	h.cancel = cancel
	h.mu.Unlock()
}

func (h *CancelHandle) disarm() {
	h.mu.Lock()
	h.cancel = nil
	h.mu.Unlock()
}

// Cancel stops the in-flight statement and clears the handle. Returns
// false when nothing was running. Safe to call any number of times.
func (h *CancelHandle) Cancel() bool {
	h.mu.Lock()
	cancel := h.cancel
	h.cancel = nil
	h.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	return true
}

// InFlight reports whether a statement is armed on the handle.
func (h *CancelHandle) InFlight() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancel != nil
}
