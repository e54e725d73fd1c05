package ipc

import (
	"context"
	"encoding/json"
	"sync"
)

// Call is the pending result of one invocation. It settles exactly once.
type Call struct {
	ID      uint64
	Channel string

	done chan struct{}
	once sync.Once
	data json.RawMessage
	err  error
}

func newCall(id uint64, channel string) *Call {
	return &Call{
		ID:      id,
		Channel: channel,
		done:    make(chan struct{}),
	}
}

// settle records the outcome. Only the first settlement wins; it reports
// whether this one did.
func (c *Call) settle(data json.RawMessage, err error) bool {
	settled := false
	c.once.Do(func() {
		c.data = data
		c.err = err
		settled = true
		close(c.done)
	})
	return settled
}

// Done is closed once the call has settled.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Result blocks until the call settles.
func (c *Call) Result() (json.RawMessage, error) {
	<-c.done
	return c.data, c.err
}

// Wait blocks until the call settles or ctx is done. Giving up on ctx does not
// cancel the invocation; the handler still runs and the call still settles.
func (c *Call) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-c.done:
		return c.data, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
