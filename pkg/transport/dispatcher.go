package transport

import (
	"context"
	"fmt"

	"github.com/opd-ai/go-cells/pkg/envelope"
)

// Dispatcher implements Receiver by splitting inbound frames between
// whichever components own Routed and Broadcast traffic. A single cell
// process registers one Dispatcher per adapter rather than wiring the
// Router Core and Broadcast Engine to the transport separately.
type Dispatcher struct {
	routed    Receiver
	broadcast Receiver
}

// NewDispatcher builds a Dispatcher that sends FrameRouted frames to
// routed and FrameBroadcast frames to broadcast.
func NewDispatcher(routed, broadcast Receiver) *Dispatcher {
	return &Dispatcher{routed: routed, broadcast: broadcast}
}

// Deliver implements Receiver.
func (d *Dispatcher) Deliver(ctx context.Context, frame envelope.Frame) error {
	switch frame.Kind {
	case envelope.FrameRouted:
		return d.routed.Deliver(ctx, frame)
	case envelope.FrameBroadcast:
		return d.broadcast.Deliver(ctx, frame)
	default:
		return fmt.Errorf("dispatcher: unknown frame kind %q", frame.Kind)
	}
}
