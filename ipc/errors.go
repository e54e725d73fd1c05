package ipc

import (
	"errors"
	"fmt"
)

var (
	ErrChannelCollision = errors.New("ipc: channel already has a handler")
	ErrRegistrySealed   = errors.New("ipc: registry sealed")
	ErrNoHandler        = errors.New("no handler registered for channel")
	ErrWindowDestroyed  = errors.New("ipc: window destroyed before reply")
	ErrClosed           = errors.New("ipc: dispatcher closed")
)

// HandlerError is a failure raised inside a privileged handler, either as a
// returned error or a recovered panic.
type HandlerError struct {
	Channel string
	Err     error
	Panic   any
}

func (e *HandlerError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("handler %q panicked: %v", e.Channel, e.Panic)
	}
	return fmt.Sprintf("handler %q: %v", e.Channel, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
