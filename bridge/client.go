package bridge

import (
	"context"
	"encoding/json"

	"github.com/caffeineduck/collider/ipc"
)

// Invoker sends one invocation and returns its pending result. It is the only
// privileged primitive a preload holds.
type Invoker interface {
	Invoke(channel string, args json.RawMessage) *ipc.Call
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(channel string, args json.RawMessage) *ipc.Call

func (f InvokerFunc) Invoke(channel string, args json.RawMessage) *ipc.Call {
	return f(channel, args)
}

// Client is the presentation-side API. Every method sends exactly one
// invocation and waits for its reply.
type Client struct {
	inv Invoker
}

var (
	_ API    = (*Client)(nil)
	_ Sender = (*Client)(nil)
)

func NewClient(inv Invoker) *Client {
	return &Client{inv: inv}
}

func (c *Client) SetFullscreen(ctx context.Context, flag bool) error {
	return c.call(ctx, methodSetFullscreen, flag)
}

// Send checks args against m and queues the invocation before returning.
func (c *Client) Send(m Method, args []any) (Pending, error) {
	payload, err := EncodeArgs(m, args)
	if err != nil {
		return nil, err
	}
	call := c.inv.Invoke(m.Channel, payload)
	return func(ctx context.Context) error {
		_, err := call.Wait(ctx)
		return err
	}, nil
}

func (c *Client) call(ctx context.Context, m Method, args ...any) error {
	pending, err := c.Send(m, args)
	if err != nil {
		return err
	}
	return pending(ctx)
}
