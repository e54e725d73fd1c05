// Package window models the host-owned surfaces that presentation contexts
// render into.
package window

import (
	"errors"
	"sync"
)

var ErrDestroyed = errors.New("window destroyed")

// Option configures a Window at creation time.
type Option func(*Window)

// WithTitle sets the window title.
func WithTitle(title string) Option {
	return func(w *Window) {
		w.title = title
	}
}

// WithFullscreen sets the initial fullscreen state.
func WithFullscreen(flag bool) Option {
	return func(w *Window) {
		w.fullscreen = flag
	}
}

// WithFullscreenListener registers fn to run after every fullscreen
// transition. No-op requests do not reach it.
func WithFullscreenListener(fn func(fullscreen bool)) Option {
	return func(w *Window) {
		w.listeners = append(w.listeners, fn)
	}
}

// Window is safe for concurrent use. It implements ipc.Sender.
type Window struct {
	id    uint64
	title string

	mu         sync.Mutex
	fullscreen bool
	listeners  []func(bool)

	done    chan struct{}
	destroy sync.Once
}

func New(id uint64, opts ...Option) *Window {
	w := &Window{
		id:   id,
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Window) ID() uint64 {
	return w.id
}

func (w *Window) Title() string {
	return w.title
}

// Done is closed when the window is destroyed.
func (w *Window) Done() <-chan struct{} {
	return w.done
}

func (w *Window) Destroyed() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

func (w *Window) IsFullscreen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fullscreen
}

// SetFullscreen moves the window into or out of fullscreen and reports whether
// the state changed. Requesting the current state succeeds without a change.
func (w *Window) SetFullscreen(flag bool) (bool, error) {
	if w.Destroyed() {
		return false, ErrDestroyed
	}

	w.mu.Lock()
	if w.fullscreen == flag {
		w.mu.Unlock()
		return false, nil
	}
	w.fullscreen = flag
	listeners := w.listeners
	w.mu.Unlock()

	for _, fn := range listeners {
		fn(flag)
	}
	return true, nil
}

// Destroy closes the window. Calls it still owes replies to fail.
func (w *Window) Destroy() {
	w.destroy.Do(func() {
		close(w.done)
	})
}
