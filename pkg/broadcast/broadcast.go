// Package broadcast implements the Broadcast Engine: hop-bounded fan-out
// of a message to every parent or child cell, followed by local
// processing, mirroring manager.broadcast_message.
package broadcast

import (
	"context"
	"fmt"

	"github.com/opd-ai/go-cells/pkg/cellerrors"
	"github.com/opd-ai/go-cells/pkg/envelope"
	"github.com/opd-ai/go-cells/pkg/logger"
	"github.com/opd-ai/go-cells/pkg/topology"
	"github.com/opd-ai/go-cells/pkg/transport"
)

// Context is what a Handler observes about the broadcast it is serving:
// the hop trail it has traveled, and whether this cell is at the top of
// the tree in the broadcast's direction (no parent cell). Handlers such
// as an instance_update_at_top listener use AtTop to decide whether they
// are the authoritative cell for a write, matching instance_update's
// "only update the DB if we're at the very top" rule.
type Context struct {
	Args      map[string]interface{}
	Path      string
	Direction envelope.Direction
	AtTop     bool
}

// Handler serves one named broadcast method. Unlike a routed Handler, a
// broadcast Handler never produces a Response; errors are logged and
// otherwise swallowed, matching the original's per-handler log-and-move-on
// behavior.
type Handler func(ctx context.Context, bctx Context) error

// Engine is the Broadcast Engine for a single cell.
type Engine struct {
	topo        *topology.Cache
	transport   transport.Adapter
	handlers    map[string]Handler
	maxHopCount int
	log         *logger.Logger
}

// New builds a Broadcast Engine. maxHopCount mirrors
// cell_max_broadcast_hop_count: a broadcast whose incoming hop count
// already exceeds it is dropped without being forwarded or processed.
func New(topo *topology.Cache, adapter transport.Adapter, handlers map[string]Handler, maxHopCount int, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.NewDefault()
	}
	if handlers == nil {
		handlers = make(map[string]Handler)
	}
	if maxHopCount <= 0 {
		maxHopCount = 10
	}
	return &Engine{
		topo:        topo,
		transport:   adapter,
		handlers:    handlers,
		maxHopCount: maxHopCount,
		log:         log.Component("broadcast"),
	}
}

// Deliver implements transport.Receiver for Broadcast frames.
func (e *Engine) Deliver(ctx context.Context, frame envelope.Frame) error {
	if frame.Kind != envelope.FrameBroadcast || frame.Broadcast == nil {
		return cellerrors.InternalError("broadcast engine received a non-broadcast frame", nil)
	}
	return e.process(ctx, *frame.Broadcast)
}

// Broadcast originates a new broadcast from this cell: hop count starts
// at zero and the path trail starts empty, exactly as when
// broadcast_message is invoked with routing_path=None.
func (e *Engine) Broadcast(ctx context.Context, direction envelope.Direction, fanout bool, method string, args map[string]interface{}) error {
	env := envelope.FormBroadcast(direction, "", 0, fanout, method, args)
	return e.process(ctx, env)
}

func (e *Engine) process(ctx context.Context, env envelope.Broadcast) error {
	selfLabel := e.topo.Self().Label()
	path := envelope.AppendPath(env.Path, selfLabel)

	if env.HopCount > e.maxHopCount {
		e.log.Error("broadcast reached max hop count, dropping",
			"method", env.Message.Method, "hop_count", env.HopCount, "max_hop_count", e.maxHopCount)
		return nil
	}

	targets := e.neighborsFor(env.Direction)
	outgoing := envelope.FormBroadcast(env.Direction, path, env.HopCount+1, env.Fanout, env.Message.Method, env.Message.Args)
	frame := envelope.NewBroadcastFrame(outgoing)
	if env.Fanout && len(targets) > 0 {
		if err := e.transport.Fanout(ctx, targets, frame); err != nil {
			e.log.Error("error forwarding broadcast", "method", env.Message.Method, "error", err)
		}
	} else {
		for _, target := range targets {
			if err := e.transport.Send(ctx, target, frame); err != nil {
				e.log.Error("error forwarding broadcast", "method", env.Message.Method, "target", target.Path, "error", err)
			}
		}
	}

	return e.processLocal(ctx, env, path)
}

func (e *Engine) neighborsFor(direction envelope.Direction) []topology.CellRecord {
	if direction == envelope.Up {
		if parent, ok := e.topo.Parent(); ok {
			return []topology.CellRecord{parent}
		}
		return nil
	}
	children := e.topo.Children()
	out := make([]topology.CellRecord, 0, len(children))
	for _, c := range children {
		out = append(out, c)
	}
	return out
}

func (e *Engine) processLocal(ctx context.Context, env envelope.Broadcast, path string) error {
	h, ok := e.handlers[env.Message.Method]
	if !ok {
		return cellerrors.ServiceAPIMethodNotFound(
			fmt.Sprintf("no broadcast handler registered for method %q", env.Message.Method))
	}
	_, atTop := e.topo.Parent()
	bctx := Context{
		Args:      env.Message.Args,
		Path:      path,
		Direction: env.Direction,
		AtTop:     !atTop,
	}
	if err := h(ctx, bctx); err != nil {
		e.log.Error("broadcast handler failed", "method", env.Message.Method, "error", err)
	}
	return nil
}
