package vm

import (
	"context"
	"sync"
	"time"

	"github.com/caffeineduck/collider/bridge"
	"github.com/caffeineduck/collider/renderer"
)

// Session keeps one context alive so globals persist between runs.
type Session struct {
	c      *jsContext
	cfg    renderer.Config
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewSession opens a persistent context with the bridge preload installed.
func (e *Engine) NewSession(inv bridge.Invoker, opts ...renderer.Option) (renderer.Session, error) {
	cfg := renderer.NewConfig(opts...)

	ctx, cancel := context.WithCancel(context.Background())
	c := newContext(ctx)
	if err := c.preload(inv); err != nil {
		cancel()
		c.close()
		return nil, err
	}

	cfg.Logger.Debug("session opened", "engine", e.Name())
	return &Session{c: c, cfg: cfg, cancel: cancel}, nil
}

// Run evaluates code in the session's context. Runs are serialised.
func (s *Session) Run(ctx context.Context, code string) renderer.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	if s.closed {
		return renderer.Result{Error: renderer.ErrSessionClosed, Duration: time.Since(start)}
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	value, err := s.c.eval(ctx, "<session>", code, s.cfg.Timeout)
	return renderer.Result{
		Output:   s.c.takeOutput(),
		Value:    value,
		Duration: time.Since(start),
		Error:    err,
	}
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()
	s.c.close()
	return nil
}
