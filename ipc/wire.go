package ipc

import (
	"context"
	"encoding/json"
)

// ChannelSetFullscreen toggles the fullscreen state of the calling window.
// Arguments: {"flag": bool}.
const ChannelSetFullscreen = "setFullscreen"

// Request is one invocation as it crosses from a presentation context.
type Request struct {
	ID      uint64          `json:"id"`
	Channel string          `json:"channel"`
	Args    json.RawMessage `json:"args,omitempty"`
}

// Response settles the Request with the same ID.
type Response struct {
	ID    uint64          `json:"id"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// NewResponse converts a settled call into its wire form.
func NewResponse(id uint64, data json.RawMessage, err error) Response {
	resp := Response{ID: id, Data: data}
	if err != nil {
		resp.Data = nil
		resp.Error = err.Error()
	}
	return resp
}

// Sender identifies the window an invocation came from.
type Sender interface {
	ID() uint64
	// Done is closed when the sender is destroyed.
	Done() <-chan struct{}
}

type senderKey struct{}

// ContextWithSender returns a context carrying the invoking sender.
func ContextWithSender(ctx context.Context, s Sender) context.Context {
	return context.WithValue(ctx, senderKey{}, s)
}

// SenderFromContext returns the sender of the invocation being handled.
func SenderFromContext(ctx context.Context) (Sender, bool) {
	s, ok := ctx.Value(senderKey{}).(Sender)
	return s, ok
}
