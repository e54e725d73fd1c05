// Package host is the privileged side of a collider application. An App owns
// the handler registry, the dispatcher that runs handlers, and the windows that
// presentation contexts render into.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/caffeineduck/collider/bridge"
	"github.com/caffeineduck/collider/ipc"
	"github.com/caffeineduck/collider/renderer"
	"github.com/caffeineduck/collider/window"
)

var ErrAppClosed = errors.New("host: app closed")

// Option configures an App at creation time.
type Option func(*App)

// WithLogger sets the logger for the app and its dispatcher.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

type App struct {
	registry   *ipc.Registry
	dispatcher *ipc.Dispatcher
	logger     *slog.Logger

	mu      sync.Mutex
	windows map[uint64]*window.Window
	nextID  uint64
	closed  bool
}

// New starts an app over registry. The registry must implement bridge.API
// exactly; see bridge.Verify.
func New(registry *ipc.Registry, opts ...Option) (*App, error) {
	if err := bridge.Verify(registry); err != nil {
		return nil, fmt.Errorf("host: %w", err)
	}

	a := &App{
		registry: registry,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		windows:  make(map[uint64]*window.Window),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.dispatcher = ipc.NewDispatcher(registry, ipc.WithLogger(a.logger))
	return a, nil
}

// OpenWindow creates a window. The first window seals the registry.
func (a *App) OpenWindow(opts ...window.Option) (*window.Window, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, ErrAppClosed
	}
	a.registry.Seal()

	a.nextID++
	w := window.New(a.nextID, opts...)
	a.windows[w.ID()] = w
	a.logger.Info("window opened", "window", w.ID(), "title", w.Title())
	return w, nil
}

// Invoker returns the channel that presentation code in w calls through.
// Handlers see w as the sender.
func (a *App) Invoker(w *window.Window) bridge.Invoker {
	return bridge.InvokerFunc(func(channel string, args json.RawMessage) *ipc.Call {
		return a.dispatcher.Invoke(w, channel, args)
	})
}

// Load runs page in w using engine. The engine installs the bridge before the
// page executes.
func (a *App) Load(ctx context.Context, w *window.Window, engine renderer.Engine, page renderer.Page, opts ...renderer.Option) renderer.Result {
	if w.Destroyed() {
		return renderer.Result{Error: window.ErrDestroyed}
	}

	opts = append([]renderer.Option{renderer.WithLogger(a.logger)}, opts...)
	a.logger.Debug("loading page", "window", w.ID(), "engine", engine.Name(), "page", page.Name)
	result := engine.Run(ctx, a.Invoker(w), page, opts...)
	if result.Error != nil {
		a.logger.Warn("page failed", "window", w.ID(), "page", page.Name, "error", result.Error)
	}
	return result
}

// CloseWindow destroys w. Calls it is still waiting on fail with
// ipc.ErrWindowDestroyed.
func (a *App) CloseWindow(w *window.Window) {
	a.mu.Lock()
	delete(a.windows, w.ID())
	a.mu.Unlock()

	w.Destroy()
	a.logger.Info("window closed", "window", w.ID())
}

// Windows returns the open windows ordered by ID.
func (a *App) Windows() []*window.Window {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]*window.Window, 0, len(a.windows))
	for _, w := range a.windows {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Close stops the dispatcher, failing outstanding calls with ipc.ErrClosed,
// then destroys every window.
func (a *App) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	windows := a.windows
	a.windows = make(map[uint64]*window.Window)
	a.mu.Unlock()

	err := a.dispatcher.Close()
	for _, w := range windows {
		w.Destroy()
	}
	return err
}
