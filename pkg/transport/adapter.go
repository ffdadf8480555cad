// Package transport defines the Transport Adapter boundary the Router
// Core and Broadcast Engine send envelopes through, plus two concrete
// adapters: an in-process adapter for tests and single-binary
// simulations, and an AMQP-backed adapter for a real multi-process
// deployment.
package transport

import (
	"context"

	"github.com/opd-ai/go-cells/pkg/envelope"
	"github.com/opd-ai/go-cells/pkg/topology"
)

// Adapter is the fabric's transport boundary. Every send and delivery
// carries an envelope.Frame, so in-process and AMQP delivery round-trip
// the identical shape regardless of whether real wire serialization
// happens in between.
type Adapter interface {
	// Send delivers frame to a single neighbor cell (sendToCell).
	Send(ctx context.Context, target topology.CellRecord, frame envelope.Frame) error
	// Fanout delivers frame to every target (fanoutToCell), returning the
	// first error encountered, if any, after all sends have been
	// attempted. Local sends to the targets concurrently; AMQP publishes
	// to them one after another.
	Fanout(ctx context.Context, targets []topology.CellRecord, frame envelope.Frame) error
}

// Receiver is implemented by whatever owns inbound dispatch (the Router
// Core). Adapters call Deliver for every frame they receive from the
// wire, regardless of direction.
type Receiver interface {
	Deliver(ctx context.Context, frame envelope.Frame) error
}
