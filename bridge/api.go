// Package bridge defines the surface a preload installs into a presentation
// context, and the host-side binding that serves it.
//
// The surface is fixed at compile time. [API] lists every operation presentation
// code may request; [Methods] maps each one to its invocation channel. The same
// table drives the host registration ([Register]), the presentation-side client
// ([Client]) and the JavaScript object installed under [WorldKey].
//
//	registry := ipc.NewRegistry()
//	if err := bridge.Register(registry, handlers); err != nil {
//	    return err
//	}
//	if err := bridge.Verify(registry); err != nil {
//	    return err
//	}
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/caffeineduck/collider/ipc"
)

// WorldKey is the global name the surface is installed under.
const WorldKey = "app"

// API is the complete set of operations presentation code may request from the
// host. The presentation side gets a Client; the host side registers a
// privileged implementation with Register.
type API interface {
	// SetFullscreen moves the calling window into or out of fullscreen.
	// Requesting the current state succeeds without effect.
	SetFullscreen(ctx context.Context, flag bool) error
}

// Kind is the JavaScript type a parameter must have.
type Kind string

const KindBoolean Kind = "boolean"

type Param struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Method is one exposed method and the channel it invokes.
type Method struct {
	Name    string  `json:"name"`
	Channel string  `json:"channel"`
	Params  []Param `json:"params"`
}

var methodSetFullscreen = Method{
	Name:    "setFullscreen",
	Channel: ipc.ChannelSetFullscreen,
	Params:  []Param{{Name: "flag", Kind: KindBoolean}},
}

// Methods lists every exposed method, in installation order.
var Methods = []Method{
	methodSetFullscreen,
}

// EncodeArgs checks positional arguments against m and encodes them as the
// JSON object sent on m's channel.
func EncodeArgs(m Method, args []any) (json.RawMessage, error) {
	if len(args) != len(m.Params) {
		return nil, fmt.Errorf("%s: expected %d argument(s), got %d", m.Name, len(m.Params), len(args))
	}

	obj := make(map[string]any, len(m.Params))
	for i, p := range m.Params {
		if err := checkKind(p, args[i]); err != nil {
			return nil, fmt.Errorf("%s: %w", m.Name, err)
		}
		obj[p.Name] = args[i]
	}
	return json.Marshal(obj)
}

func checkKind(p Param, v any) error {
	switch p.Kind {
	case KindBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("argument %q must be a boolean, got %T", p.Name, v)
		}
	default:
		return fmt.Errorf("argument %q has unsupported kind %q", p.Name, p.Kind)
	}
	return nil
}

// Pending is a queued invocation. Waiting on it returns the invocation's
// outcome; giving up on ctx does not cancel it.
type Pending func(ctx context.Context) error

// Sender queues an invocation without waiting for it.
type Sender interface {
	Send(m Method, args []any) (Pending, error)
}

// Binding is an exposed method bound to an API implementation.
//
// Start validates args and queues the invocation before returning, so
// invocations started in order reach the host in that order. Call is Start
// followed by waiting.
type Binding struct {
	Method
	Start func(args []any) (Pending, error)
}

// Call starts the invocation and waits for its outcome.
func (b Binding) Call(ctx context.Context, args []any) error {
	pending, err := b.Start(args)
	if err != nil {
		return err
	}
	return pending(ctx)
}

// Bind returns one Binding per entry in Methods, dispatching to api. When api
// is a Sender the invocation is queued by Start itself; otherwise calls made
// through the returned bindings run one at a time, in start order.
func Bind(api API) []Binding {
	if s, ok := api.(Sender); ok {
		bindings := make([]Binding, len(Methods))
		for i, m := range Methods {
			bindings[i] = Binding{
				Method: m,
				Start: func(args []any) (Pending, error) {
					return s.Send(m, args)
				},
			}
		}
		return bindings
	}

	q := &serial{}
	return []Binding{
		{
			Method: methodSetFullscreen,
			Start: func(args []any) (Pending, error) {
				if _, err := EncodeArgs(methodSetFullscreen, args); err != nil {
					return nil, err
				}
				flag := args[0].(bool)
				return q.enqueue(func(ctx context.Context) error {
					return api.SetFullscreen(ctx, flag)
				}), nil
			},
		},
	}
}

// serial runs queued functions one at a time in enqueue order. Each function
// runs on the goroutine that waits on its Pending, after every earlier one has
// finished.
type serial struct {
	mu   sync.Mutex
	tail chan struct{}
}

func (s *serial) enqueue(fn func(ctx context.Context) error) Pending {
	done := make(chan struct{})

	s.mu.Lock()
	prev := s.tail
	s.tail = done
	s.mu.Unlock()

	var once sync.Once
	var err error
	return func(ctx context.Context) error {
		once.Do(func() {
			defer close(done)
			if prev != nil {
				select {
				case <-prev:
				case <-ctx.Done():
					err = ctx.Err()
					return
				}
			}
			err = fn(ctx)
		})
		return err
	}
}
