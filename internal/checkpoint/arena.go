// Package checkpoint holds forward-pass state that operations hand over
// between forward and backward to release memory in the meantime.
//
// An Arena lives for one training step. Handles increase monotonically and are
// never reused, even across Reset, so a handle from a previous step cannot
// silently resolve to another operation's state.
package checkpoint

import (
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownHandle is returned for handles that were never issued, were
// released, or belong to a step that has been reset.
var ErrUnknownHandle = errors.New("unknown checkpoint handle")

// Handle identifies a stored value.
type Handle uint64

// Arena stores values keyed by handle. It is safe for concurrent use.
type Arena struct {
	mu     sync.Mutex
	next   Handle
	values map[Handle]any
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{values: make(map[Handle]any)}
}

// Put stores v and returns its handle.
func (a *Arena) Put(v any) Handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next++
	a.values[a.next] = v
	return a.next
}

// Get returns the value stored under h. The value stays in the arena.
func (a *Arena) Get(h Handle) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.values[h]
	if !ok {
		return nil, fmt.Errorf("checkpoint %d: %w", h, ErrUnknownHandle)
	}
	return v, nil
}

// Release drops the value stored under h.
func (a *Arena) Release(h Handle) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.values[h]; !ok {
		return fmt.Errorf("checkpoint %d: %w", h, ErrUnknownHandle)
	}
	delete(a.values, h)
	return nil
}

// Reset drops every stored value, ending the current step.
func (a *Arena) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.values)
}

// Len returns the number of stored values.
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.values)
}
