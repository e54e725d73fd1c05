// Package quickjs runs presentation contexts as QuickJS WASI guests under
// wazero.
//
// The guest binary is supplied by the caller (any QuickJS build for
// wasi_snapshot_preview1 that accepts `qjs --std -e <script>`). The bridge
// preload runs first in the guest, captures the std and os modules in a
// closure, removes them from the global scope, and installs the frozen
// surface. Page code therefore cannot reach the guest's I/O primitives.
//
// Replies are collected on timer ticks: the guest polls over stderr and the
// host answers on stdin before the poll returns, so reading a reply never
// blocks the guest's event loop.
//
//	engine, err := quickjs.Open("qjs.wasm")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
//	result := engine.Run(ctx, invoker, renderer.Page{Name: "renderer.js", Script: src})
package quickjs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	"github.com/caffeineduck/collider/bridge"
	"github.com/caffeineduck/collider/renderer"
)

// EngineOption configures the Engine at creation time.
type EngineOption func(*engineConfig)

type engineConfig struct {
	cacheDir         string
	memoryLimitPages uint32
}

// WithCompilationCache persists compiled guest code in dir.
func WithCompilationCache(dir string) EngineOption {
	return func(c *engineConfig) {
		c.cacheDir = dir
	}
}

// WithMemoryLimit sets the maximum guest memory in 64KB pages. Zero keeps the
// wazero default (4GB).
func WithMemoryLimit(pages uint32) EngineOption {
	return func(c *engineConfig) {
		c.memoryLimitPages = pages
	}
}

// Engine implements renderer.Engine.
type Engine struct {
	runtime  wazero.Runtime
	cache    wazero.CompilationCache
	compiled wazero.CompiledModule
	preload  string

	mu     sync.Mutex
	closed bool
}

var _ renderer.Engine = (*Engine)(nil)

// Open reads a QuickJS WASI binary from path.
func Open(path string, opts ...EngineOption) (*Engine, error) {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read guest: %w", err)
	}
	return New(wasm, opts...)
}

// New compiles wasm once; every Run instantiates a fresh guest from it.
func New(wasm []byte, opts ...EngineOption) (*Engine, error) {
	var cfg engineConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	preload, err := Preload()
	if err != nil {
		return nil, err
	}

	ctx := context.Background()

	var cache wazero.CompilationCache
	if cfg.cacheDir != "" {
		cache, err = wazero.NewCompilationCacheWithDir(cfg.cacheDir)
		if err != nil {
			return nil, fmt.Errorf("create compilation cache: %w", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	e := &Engine{runtime: rt, cache: cache, preload: preload}

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		e.Close()
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	e.compiled, err = rt.CompileModule(ctx, wasm)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("compile guest: %w", err)
	}
	return e, nil
}

// Name returns "quickjs".
func (e *Engine) Name() string {
	return "quickjs"
}

// Run instantiates a fresh guest, runs the preload and then page, and returns
// when the guest exits.
func (e *Engine) Run(ctx context.Context, inv bridge.Invoker, page renderer.Page, opts ...renderer.Option) renderer.Result {
	start := time.Now()
	cfg := renderer.NewConfig(opts...)

	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return renderer.Result{Error: errors.New("engine closed"), Duration: time.Since(start)}
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	var stdout bytes.Buffer
	stdin := newInbox()
	stop := context.AfterFunc(ctx, func() { stdin.Close() })
	defer stop()
	protocol := newProtocolHandler(inv, stdin, cfg.Logger)

	moduleConfig := wazero.NewModuleConfig().
		WithStdout(&stdout).
		WithStderr(protocol).
		WithStdin(stdin).
		WithArgs("qjs", "--std", "-e", e.preload+"\n"+page.Script).
		WithName("")

	cfg.Logger.Debug("page loading", "engine", e.Name(), "page", page.Name)

	errCh := make(chan error, 1)
	go func() {
		mod, err := e.runtime.InstantiateModule(ctx, e.compiled, moduleConfig)
		if mod != nil {
			mod.Close(context.Background())
		}
		stdin.Close()
		errCh <- err
	}()

	err := <-errCh

	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 0 {
		err = nil
	}

	result := renderer.Result{
		Output:   stdout.String() + protocol.Stderr(),
		Duration: time.Since(start),
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			result.Error = fmt.Errorf("timeout after %v", cfg.Timeout)
		} else {
			result.Error = fmt.Errorf("execution failed: %w", err)
		}
	}
	return result
}

// Close releases the runtime and compilation cache.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	ctx := context.Background()

	var errs []error
	if err := e.runtime.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if e.cache != nil {
		if err := e.cache.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
