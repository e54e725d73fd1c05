// Package vm runs presentation contexts in an in-process JavaScript
// interpreter (goja).
//
// Each context owns one goja.Runtime and drives it from a single goroutine: the
// page script runs first, then the loop services host replies until no bridge
// call is outstanding. Bridge calls are queued on the loop in call order; their
// replies come back as jobs, so awaiting a call never stalls the loop.
//
// The context's globals are the ECMAScript built-ins, a console object, and
// the frozen bridge surface. Nothing else from the host is reachable.
package vm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/caffeineduck/collider/bridge"
	"github.com/caffeineduck/collider/renderer"
)

// Engine implements renderer.SessionEngine.
type Engine struct{}

var _ renderer.SessionEngine = (*Engine)(nil)

// New returns an in-process engine.
func New() *Engine {
	return &Engine{}
}

// Name returns "vm".
func (e *Engine) Name() string {
	return "vm"
}

// Run loads page into a fresh context with the bridge preload installed.
func (e *Engine) Run(ctx context.Context, inv bridge.Invoker, page renderer.Page, opts ...renderer.Option) renderer.Result {
	start := time.Now()
	cfg := renderer.NewConfig(opts...)

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	c := newContext(ctx)
	defer c.close()

	if err := c.preload(inv); err != nil {
		return renderer.Result{Error: err, Duration: time.Since(start)}
	}

	cfg.Logger.Debug("page loading", "engine", e.Name(), "page", page.Name)
	value, err := c.eval(ctx, page.Name, page.Script, cfg.Timeout)
	return renderer.Result{
		Output:   c.takeOutput(),
		Value:    value,
		Duration: time.Since(start),
		Error:    err,
	}
}

// jsContext is one presentation context. Everything that touches rt runs on
// the goroutine currently inside eval.
type jsContext struct {
	rt    *goja.Runtime
	scope bridge.Scope

	// callCtx bounds how long bridge calls wait for replies.
	callCtx context.Context

	jobs    chan func()
	done    chan struct{}
	once    sync.Once
	pending int

	out strings.Builder
}

func newContext(callCtx context.Context) *jsContext {
	c := &jsContext{
		rt:      goja.New(),
		callCtx: callCtx,
		jobs:    make(chan func()),
		done:    make(chan struct{}),
	}
	c.installConsole()
	return c
}

// preload runs the bridge preload and closes the preload phase.
func (c *jsContext) preload(inv bridge.Invoker) error {
	if err := bridge.Preload(c, bridge.NewClient(inv)); err != nil {
		return fmt.Errorf("preload: %w", err)
	}
	c.scope.MarkLoaded()
	return nil
}

// ExposeInMainWorld implements bridge.World.
func (c *jsContext) ExposeInMainWorld(name string, api bridge.API) error {
	install, err := c.scope.Claim(name)
	if err != nil || !install {
		return err
	}

	surface := c.rt.NewObject()
	for _, b := range bridge.Bind(api) {
		if err := surface.Set(b.Name, c.method(b)); err != nil {
			c.scope.Release(name)
			return fmt.Errorf("expose %s.%s: %w", name, b.Name, err)
		}
	}

	freeze, ok := goja.AssertFunction(c.rt.GlobalObject().Get("Object").ToObject(c.rt).Get("freeze"))
	if !ok {
		c.scope.Release(name)
		return errors.New("expose: Object.freeze unavailable")
	}
	if _, err := freeze(goja.Undefined(), surface); err != nil {
		c.scope.Release(name)
		return fmt.Errorf("expose %s: %w", name, err)
	}

	if err := c.rt.GlobalObject().DefineDataProperty(name, surface, goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
		c.scope.Release(name)
		return fmt.Errorf("expose %s: %w", name, err)
	}
	return nil
}

// method wraps a binding as a JS function returning a promise. The invocation
// is queued on the loop, so calls reach the host in the order the page made
// them; only the wait for the reply runs off the loop, and the reply settles
// the promise through a loop job.
func (c *jsContext) method(b bridge.Binding) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		promise, resolve, reject := c.rt.NewPromise()

		args := make([]any, len(call.Arguments))
		for i, v := range call.Arguments {
			args[i] = v.Export()
		}
		pending, err := b.Start(args)
		if err != nil {
			reject(c.rt.NewTypeError(err.Error()))
			return c.rt.ToValue(promise)
		}

		c.pending++
		go func() {
			err := pending(c.callCtx)
			c.post(func() {
				c.pending--
				if err != nil {
					reject(c.rt.NewGoError(err))
					return
				}
				resolve(goja.Undefined())
			})
		}()
		return c.rt.ToValue(promise)
	}
}

// post hands job to the loop. Jobs for a closed context are dropped.
func (c *jsContext) post(job func()) {
	select {
	case c.jobs <- job:
	case <-c.done:
	}
}

func (c *jsContext) installConsole() {
	console := c.rt.NewObject()
	write := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, v := range call.Arguments {
			parts[i] = v.String()
		}
		c.out.WriteString(strings.Join(parts, " "))
		c.out.WriteByte('\n')
		return goja.Undefined()
	}
	for _, name := range []string{"log", "info", "warn", "error", "debug"} {
		_ = console.Set(name, write)
	}
	_ = c.rt.Set("console", console)
}

func (c *jsContext) takeOutput() string {
	s := c.out.String()
	c.out.Reset()
	return s
}

// eval runs src, then services the loop until no bridge call is outstanding.
// If src evaluates to a promise, its settled value becomes the result.
func (c *jsContext) eval(ctx context.Context, name, src string, timeout time.Duration) (string, error) {
	stop := context.AfterFunc(ctx, func() {
		c.rt.Interrupt(ctx.Err())
	})
	defer func() {
		if !stop() {
			c.rt.ClearInterrupt()
		}
	}()

	v, err := c.rt.RunScript(name, src)
	if err != nil {
		return "", c.scriptError(ctx, err, timeout)
	}

	for c.pending > 0 {
		select {
		case job := <-c.jobs:
			job()
		case <-ctx.Done():
			return "", c.scriptError(ctx, ctx.Err(), timeout)
		}
	}

	if p, ok := v.Export().(*goja.Promise); ok {
		switch p.State() {
		case goja.PromiseStateRejected:
			return "", rejection(p.Result())
		case goja.PromiseStateFulfilled:
			v = p.Result()
		default:
			return "", errors.New("script promise never settled")
		}
	}

	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return "", nil
	}
	return v.String(), nil
}

func (c *jsContext) scriptError(ctx context.Context, err error, timeout time.Duration) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("timeout after %v", timeout)
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return cause
		}
	}
	return fmt.Errorf("script error: %w", err)
}

// rejection converts a rejection reason into a Go error, unwrapping errors
// that originated on the host side.
func rejection(reason goja.Value) error {
	if obj, ok := reason.(*goja.Object); ok {
		if v := obj.Get("value"); v != nil {
			if inner, ok := v.Export().(error); ok {
				return inner
			}
		}
	}
	return fmt.Errorf("unhandled rejection: %s", reason.String())
}

func (c *jsContext) close() {
	c.once.Do(func() {
		close(c.done)
	})
}
