package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/caffeineduck/collider/bridge"
	"github.com/caffeineduck/collider/ipc"
	"github.com/caffeineduck/collider/window"
)

var ErrNoWindow = errors.New("host: call has no calling window")

// Handlers is the privileged implementation of bridge.API. Methods run on the
// dispatcher loop and act on the calling window.
type Handlers struct {
	logger *slog.Logger
}

var _ bridge.API = (*Handlers)(nil)

func NewHandlers(logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handlers{logger: logger}
}

func (h *Handlers) SetFullscreen(ctx context.Context, flag bool) error {
	w, err := callingWindow(ctx)
	if err != nil {
		return err
	}

	changed, err := w.SetFullscreen(flag)
	if err != nil {
		return err
	}
	h.logger.Debug("setFullscreen", "window", w.ID(), "flag", flag, "changed", changed)
	return nil
}

func callingWindow(ctx context.Context) (*window.Window, error) {
	sender, ok := ipc.SenderFromContext(ctx)
	if !ok {
		return nil, ErrNoWindow
	}
	w, ok := sender.(*window.Window)
	if !ok {
		return nil, fmt.Errorf("host: sender %d is not a window", sender.ID())
	}
	return w, nil
}

// NewRegistry returns a registry holding the default Handlers.
func NewRegistry(logger *slog.Logger) (*ipc.Registry, error) {
	reg := ipc.NewRegistry()
	if err := bridge.Register(reg, NewHandlers(logger)); err != nil {
		return nil, err
	}
	return reg, nil
}
