package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/caffeineduck/collider/ipc"
)

// Register binds a handler for every method in Methods to impl. It fails if any
// channel already has a handler.
func Register(reg *ipc.Registry, impl API) error {
	return reg.Handle(ipc.ChannelSetFullscreen, func(ctx context.Context, args json.RawMessage) (any, error) {
		var in struct {
			Flag *bool `json:"flag"`
		}
		if err := decodeArgs(args, &in); err != nil {
			return nil, fmt.Errorf("%s: %w", methodSetFullscreen.Name, err)
		}
		if in.Flag == nil {
			return nil, fmt.Errorf("%s: argument \"flag\" is required", methodSetFullscreen.Name)
		}
		return nil, impl.SetFullscreen(ctx, *in.Flag)
	})
}

func decodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}

// Verify checks that reg serves exactly the channels in Methods: each method's
// channel has a handler, no two methods share a channel, and no handler exists
// that the surface cannot reach.
func Verify(reg *ipc.Registry) error {
	var errs []error

	expected := make(map[string]string, len(Methods))
	for _, m := range Methods {
		if other, dup := expected[m.Channel]; dup {
			errs = append(errs, fmt.Errorf("methods %q and %q share channel %q", other, m.Name, m.Channel))
			continue
		}
		expected[m.Channel] = m.Name
		if _, ok := reg.Get(m.Channel); !ok {
			errs = append(errs, fmt.Errorf("method %q: %w %q", m.Name, ipc.ErrNoHandler, m.Channel))
		}
	}

	for _, ch := range reg.Channels() {
		if _, ok := expected[ch]; !ok {
			errs = append(errs, fmt.Errorf("handler on channel %q is not reachable from the exposed surface", ch))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("bridge: surface does not match registry: %w", errors.Join(errs...))
	}
	return nil
}
