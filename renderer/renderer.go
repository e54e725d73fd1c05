// Package renderer runs presentation scripts in isolated JavaScript contexts.
//
// A context starts with the bridge preload installed under bridge.WorldKey and
// nothing else from the host. Page scripts run after the preload, and a run
// returns once the context's event loop has no outstanding work.
//
// Engines live in subpackages: [github.com/caffeineduck/collider/renderer/vm]
// runs an in-process interpreter, [github.com/caffeineduck/collider/renderer/quickjs]
// runs a QuickJS WASI guest under wazero.
package renderer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/caffeineduck/collider/bridge"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrSessionBusy   = errors.New("session busy")
)

// Page is the content loaded into a presentation context.
type Page struct {
	// Name identifies the script in stack traces, e.g. "renderer.js".
	Name   string
	Script string
}

// Result holds the output and metadata from running a page.
type Result struct {
	// Output is everything the page wrote to the console.
	Output string
	// Value is the completion value of the script, or the settled value of
	// the promise it evaluated to.
	Value    string
	Duration time.Duration
	Error    error
}

// Engine creates presentation contexts. inv is the only route from a context
// to the host.
type Engine interface {
	// Name returns a unique identifier for this engine (e.g., "vm", "quickjs").
	Name() string

	// Run loads page into a fresh context and returns when the context is idle.
	Run(ctx context.Context, inv bridge.Invoker, page Page, opts ...Option) Result
}

// Session is a presentation context that outlives a single script.
type Session interface {
	Run(ctx context.Context, code string) Result
	Close() error
}

// SessionEngine is an Engine that can keep a context alive between scripts.
type SessionEngine interface {
	Engine
	NewSession(inv bridge.Invoker, opts ...Option) (Session, error)
}

// Option configures a presentation context.
type Option func(*Config)

// Config is the resolved set of Options. Engines read it; callers use Options.
type Config struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewConfig applies opts over the defaults.
func NewConfig(opts ...Option) Config {
	cfg := Config{
		Timeout: 30 * time.Second,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithTimeout sets the maximum time a run may take. Zero disables the limit.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithLogger sets the logger for context lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}
