package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// DispatcherOption configures a Dispatcher at creation time.
type DispatcherOption func(*dispatcherConfig)

type dispatcherConfig struct {
	logger *slog.Logger
}

func defaultDispatcherConfig() dispatcherConfig {
	return dispatcherConfig{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithLogger sets the logger used for dispatch events.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(c *dispatcherConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

type invocation struct {
	call   *Call
	sender Sender
	args   json.RawMessage
}

// Dispatcher runs handlers serially, in arrival order, on one goroutine.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
	nextID   atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	queue       []*invocation
	outstanding map[uint64]*Call
	closed      bool

	wake     chan struct{}
	stop     chan struct{}
	loopDone chan struct{}
}

// NewDispatcher starts the dispatch loop over registry.
func NewDispatcher(registry *Registry, opts ...DispatcherOption) *Dispatcher {
	cfg := defaultDispatcherConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		registry:    registry,
		logger:      cfg.logger,
		ctx:         ctx,
		cancel:      cancel,
		outstanding: make(map[uint64]*Call),
		wake:        make(chan struct{}, 1),
		stop:        make(chan struct{}),
		loopDone:    make(chan struct{}),
	}
	go d.loop()
	return d
}

// Invoke queues one invocation and returns its pending result. sender may be
// nil for host-internal calls; otherwise the call fails with
// ErrWindowDestroyed if the sender goes away before the reply.
func (d *Dispatcher) Invoke(sender Sender, channel string, args json.RawMessage) *Call {
	call := newCall(d.nextID.Add(1), channel)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		call.settle(nil, ErrClosed)
		return call
	}
	d.queue = append(d.queue, &invocation{call: call, sender: sender, args: args})
	d.outstanding[call.ID] = call
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}

	if sender != nil {
		go d.watch(call, sender)
	}
	return call
}

func (d *Dispatcher) watch(call *Call, sender Sender) {
	select {
	case <-call.done:
	case <-sender.Done():
		d.untrack(call)
		if call.settle(nil, ErrWindowDestroyed) {
			d.logger.Debug("call abandoned by destroyed window",
				"channel", call.Channel, "call", call.ID, "window", sender.ID())
		}
	}
}

func (d *Dispatcher) loop() {
	defer close(d.loopDone)
	for {
		inv, ok := d.next()
		if !ok {
			return
		}
		d.dispatch(inv)
	}
}

func (d *Dispatcher) next() (*invocation, bool) {
	for {
		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			return nil, false
		}
		if len(d.queue) > 0 {
			inv := d.queue[0]
			d.queue[0] = nil
			d.queue = d.queue[1:]
			d.mu.Unlock()
			return inv, true
		}
		d.mu.Unlock()

		select {
		case <-d.wake:
		case <-d.stop:
		}
	}
}

func (d *Dispatcher) dispatch(inv *invocation) {
	call := inv.call

	select {
	case <-call.done:
		// Settled while queued, e.g. its window was destroyed.
		return
	default:
	}

	fn, ok := d.registry.Get(call.Channel)
	if !ok {
		d.logger.Warn("invocation on unregistered channel", "channel", call.Channel, "call", call.ID)
		d.finish(call, nil, fmt.Errorf("%w %q", ErrNoHandler, call.Channel))
		return
	}

	ctx := d.ctx
	if inv.sender != nil {
		ctx = ContextWithSender(ctx, inv.sender)
	}

	d.logger.Debug("dispatch", "channel", call.Channel, "call", call.ID)
	result, err := d.run(call.Channel, func() (any, error) { return fn(ctx, inv.args) })
	if deferred, ok := result.(Deferred); ok && err == nil {
		go func() {
			result, err := d.run(call.Channel, func() (any, error) { return deferred(ctx) })
			d.finish(call, result, err)
		}()
		return
	}
	d.finish(call, result, err)
}

// run invokes fn, converting a returned error or a panic into a HandlerError
// so nothing escapes the loop.
func (d *Dispatcher) run(channel string, fn func() (any, error)) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &HandlerError{Channel: channel, Panic: r}
		}
	}()

	result, err = fn()
	if err != nil {
		return nil, &HandlerError{Channel: channel, Err: err}
	}
	return result, nil
}

func (d *Dispatcher) finish(call *Call, result any, err error) {
	var data json.RawMessage
	if err == nil && result != nil {
		data, err = json.Marshal(result)
		if err != nil {
			data = nil
			err = &HandlerError{Channel: call.Channel, Err: fmt.Errorf("encode result: %w", err)}
		}
	}
	if err != nil {
		d.logger.Warn("invocation failed", "channel", call.Channel, "call", call.ID, "error", err)
	}

	d.untrack(call)
	call.settle(data, err)
}

func (d *Dispatcher) untrack(call *Call) {
	d.mu.Lock()
	delete(d.outstanding, call.ID)
	d.mu.Unlock()
}

// Close stops the loop and fails every outstanding call with ErrClosed.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	pending := make([]*Call, 0, len(d.outstanding))
	for _, call := range d.outstanding {
		pending = append(pending, call)
	}
	d.outstanding = make(map[uint64]*Call)
	d.queue = nil
	d.mu.Unlock()

	d.cancel()
	close(d.stop)
	<-d.loopDone

	for _, call := range pending {
		call.settle(nil, ErrClosed)
	}
	return nil
}
