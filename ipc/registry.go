package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Handler runs with host privileges. args is the JSON argument object sent by
// the presentation context; the returned value is JSON-encoded for the reply.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Deferred is returned by a handler in place of a result to move long-running
// work off the dispatcher loop. The originating call settles with its outcome.
type Deferred func(ctx context.Context) (any, error)

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	sealed   bool
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Handle binds fn to channel. Each channel takes exactly one handler; a second
// registration fails with ErrChannelCollision and leaves the first in place.
func (r *Registry) Handle(channel string, fn Handler) error {
	if channel == "" {
		return errors.New("ipc: empty channel name")
	}
	if fn == nil {
		return fmt.Errorf("ipc: nil handler for channel %q", channel)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("%w: %q", ErrRegistrySealed, channel)
	}
	if _, exists := r.handlers[channel]; exists {
		return fmt.Errorf("%w: %q", ErrChannelCollision, channel)
	}
	r.handlers[channel] = fn
	return nil
}

// MustHandle is Handle for startup code where a collision is a programming error.
func (r *Registry) MustHandle(channel string, fn Handler) {
	if err := r.Handle(channel, fn); err != nil {
		panic(err)
	}
}

func (r *Registry) Get(channel string) (Handler, bool) {
	r.mu.RLock()
	fn, ok := r.handlers[channel]
	r.mu.RUnlock()
	return fn, ok
}

// Channels returns the registered channel names in sorted order.
func (r *Registry) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Seal rejects all further registrations.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}
