// Package ipc carries invocations from a presentation context to handlers that
// run with host privileges.
//
// # Overview
//
// Presentation code never touches host primitives. It sends an invocation on a
// named channel and receives a pending [Call] that settles exactly once with the
// handler's JSON-encoded result or an error.
//
// # Registry
//
// The [Registry] binds each channel to exactly one [Handler]. It is a value
// owned by one host, not a package-level table:
//
//	registry := ipc.NewRegistry()
//	if err := registry.Handle("setFullscreen", fn); err != nil {
//	    return err // ErrChannelCollision on a second registration
//	}
//
// Handlers are registered at startup. Once the host opens its first window the
// registry is sealed and further registrations fail with [ErrRegistrySealed].
//
// # Dispatcher
//
// The [Dispatcher] is the host event loop. Invocations are queued in arrival
// order and handlers run one at a time on a single goroutine, so handlers need
// no locking. A handler with long-running work returns a [Deferred]; the call
// settles when that work finishes off the loop.
//
//	d := ipc.NewDispatcher(registry)
//	defer d.Close()
//
//	call := d.Invoke(win, "setFullscreen", json.RawMessage(`{"flag":true}`))
//	_, err := call.Wait(ctx)
//
// # Failure Model
//
//   - A channel without a handler settles with [ErrNoHandler]; the loop keeps serving.
//   - A handler error or panic settles only the originating call, as a [*HandlerError].
//   - A call whose sender is destroyed before the reply settles with [ErrWindowDestroyed].
//   - Calls still outstanding when the dispatcher closes settle with [ErrClosed].
//
// There is no cancellation: a context passed to [Call.Wait] only stops waiting.
package ipc
