// Package router implements the Router Core: point-to-point message
// delivery across the cell tree, response correlation, and the
// immutable handler registry a cell exposes to its neighbors.
//
// Cell paths here are global, absolute dotted identifiers resolved
// against the Topology Cache, rather than the breadcrumbs manager.py
// accumulates relative to whichever cell originates a call. Since
// every cell's absolute path already encodes its full lineage from the
// root, "the path traveled so far" at whichever cell is currently
// holding a message is simply that cell's own absolute path — no
// separate accumulation is needed for forward routing. findNextHop
// still needs to know which of path/dest must prefix the other, which
// depends on direction: descending toward a child requires the current
// path to prefix dest, ascending toward a parent requires dest (an
// ancestor) to prefix the current path. A Routed envelope's Path field
// carries the ORIGINATING cell's absolute path unchanged through every
// forwarding hop, independent of this per-hop "current position" — it
// is the only place the origin's identity survives, and it is what a
// Response is addressed back to.
package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opd-ai/go-cells/pkg/cellerrors"
	"github.com/opd-ai/go-cells/pkg/envelope"
	"github.com/opd-ai/go-cells/pkg/logger"
	"github.com/opd-ai/go-cells/pkg/topology"
	"github.com/opd-ai/go-cells/pkg/trace"
	"github.com/opd-ai/go-cells/pkg/transport"
)

// Handler serves one named method reachable through a Routed envelope.
// It is registered once, before the Router starts serving traffic, and
// never mutated afterward.
type Handler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

const sendResponseMethod = "send_response"

// Router is the Router Core for a single cell.
type Router struct {
	topo      *topology.Cache
	transport transport.Adapter
	handlers  map[string]Handler
	pending   *pendingTable
	log       *logger.Logger
	tracer    *trace.Tracer
}

// New builds a Router for the cell described by topo, sending outbound
// traffic through adapter and serving the given immutable handler
// registry. handlers is not copied; the caller must not mutate it after
// passing it in.
func New(topo *topology.Cache, adapter transport.Adapter, handlers map[string]Handler, log *logger.Logger) *Router {
	if log == nil {
		log = logger.NewDefault()
	}
	if handlers == nil {
		handlers = make(map[string]Handler)
	}
	return &Router{
		topo:      topo,
		transport: adapter,
		handlers:  handlers,
		pending:   newPendingTable(),
		log:       log.Component("router"),
	}
}

// Deliver implements transport.Receiver for Routed frames. Broadcast
// frames are rejected; a Dispatcher should be used to split inbound
// frames between a Router and a Broadcast Engine.
func (r *Router) Deliver(ctx context.Context, frame envelope.Frame) error {
	if frame.Kind != envelope.FrameRouted || frame.Routed == nil {
		return cellerrors.InternalError("router received a non-routed frame", nil)
	}
	return r.RouteMessage(ctx, *frame.Routed)
}

// RouteMessage processes one Routed envelope addressed either to this
// cell or to one of its neighbors, mirroring manager.route_message: a
// RoutingInconsistency or handler failure is packaged into a failure
// Response when the caller asked for one, and always logged.
func (r *Router) RouteMessage(ctx context.Context, env envelope.Routed) error {
	h, err := findNextHop(r.topo, env.Dest, r.topo.SelfPath(), env.Direction)
	if err != nil {
		r.log.Warn("routing inconsistency", "dest", env.Dest, "error", err)
		return r.failIfResponseWanted(ctx, env, err)
	}

	if !h.self {
		frame := envelope.NewRoutedFrame(env)
		if sendErr := r.transport.Send(ctx, h.neighbor, frame); sendErr != nil {
			r.log.Warn("failed to forward routed message", "dest", env.Dest, "next_hop", h.neighbor.Path, "error", sendErr)
			return r.failIfResponseWanted(ctx, env, sendErr)
		}
		return nil
	}

	result, procErr := r.processLocal(ctx, env)
	if !env.NeedResponse || env.ResponseID == "" {
		return procErr
	}
	return r.sendResponse(ctx, env, result, procErr)
}

func (r *Router) failIfResponseWanted(ctx context.Context, env envelope.Routed, cause error) error {
	if env.NeedResponse && env.ResponseID != "" {
		if respErr := r.sendResponse(ctx, env, nil, cause); respErr != nil {
			r.log.Warn("failed to deliver failure response", "response_id", env.ResponseID, "error", respErr)
		}
	}
	return cause
}

// processLocal invokes the handler named by env.Message.Method, or
// completes a pending call if the message is a send_response callback.
func (r *Router) processLocal(ctx context.Context, env envelope.Routed) (interface{}, error) {
	if env.Message.Method == sendResponseMethod {
		r.completeFromArgs(env.Message.Args)
		return nil, nil
	}

	h, ok := r.handlers[env.Message.Method]
	if !ok {
		return nil, cellerrors.ServiceAPIMethodNotFound(
			fmt.Sprintf("no handler registered for method %q", env.Message.Method))
	}
	return h(ctx, env.Message.Args)
}

func (r *Router) completeFromArgs(args map[string]interface{}) {
	responseID, _ := args["responseId"].(string)
	if responseID == "" {
		r.log.Warn("send_response call missing responseId")
		return
	}
	info, _ := args["resultInfo"].(envelope.ResultInfo)
	var err error
	if info.Failure {
		err = remoteErrorFromPayload(info.Result)
	}
	if !r.pending.complete(responseID, info.Result, err) {
		r.log.Debug("dropping response for unknown or expired call", "response_id", responseID)
	}
}

// sendResponse routes a Response back to env.Path (the originating
// cell) as a Routed envelope whose message method is send_response,
// following the same RouteMessage path any other call does.
func (r *Router) sendResponse(ctx context.Context, env envelope.Routed, result interface{}, procErr error) error {
	failure := procErr != nil
	var payload interface{} = result
	if failure {
		payload = remoteErrorPayload(procErr)
	}
	resp := envelope.FormResponse(env.Path, env.Direction.Reverse(), r.topo.SelfPath(), env.ResponseID, payload, failure)
	return r.RouteMessage(ctx, resp)
}

// Call performs a point-to-point call to dest and blocks for its
// Response, or returns cellerrors.Timeout if none arrives within
// timeout.
func (r *Router) Call(ctx context.Context, dest string, direction envelope.Direction, method string, args map[string]interface{}, timeout time.Duration) (interface{}, error) {
	var span *trace.Span
	if r.tracer != nil {
		ctx, span = r.tracer.StartSpan(ctx, "router.Call", trace.SpanKindClient)
		span.SetAttributes(map[string]interface{}{
			"cell.dest":   dest,
			"cell.method": method,
		})
		defer span.End()
	}

	responseID := uuid.NewString()
	pc := r.pending.register(responseID)

	env := envelope.FormRouted(dest, direction, r.topo.SelfPath(), method, args, responseID, true)
	if err := r.RouteMessage(ctx, env); err != nil {
		r.pending.drop(responseID)
		span.RecordError(err)
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case res := <-pc.ch:
		if res.err != nil {
			span.RecordError(res.err)
			return nil, res.err
		}
		return res.value, nil
	case <-timer.C:
		r.pending.drop(responseID)
		err := cellerrors.Timeout(fmt.Sprintf("no response from %q within %s", dest, timeout))
		span.SetStatus(trace.StatusCancelled, "timed out waiting for response")
		return nil, err
	case <-ctx.Done():
		r.pending.drop(responseID)
		span.RecordError(ctx.Err())
		return nil, ctx.Err()
	}
}

// Notify performs a point-to-point call to dest without waiting for a
// Response.
func (r *Router) Notify(ctx context.Context, dest string, direction envelope.Direction, method string, args map[string]interface{}) error {
	env := envelope.FormRouted(dest, direction, r.topo.SelfPath(), method, args, "", false)
	return r.RouteMessage(ctx, env)
}

// SetTracer attaches an optional tracer for annotating originating Calls
// with a span covering the full round trip. A nil tracer (the default)
// disables tracing with no behavior change.
func (r *Router) SetTracer(tracer *trace.Tracer) {
	r.tracer = tracer
}

// PendingCalls reports the number of calls awaiting a Response.
func (r *Router) PendingCalls() int {
	return r.pending.Len()
}

// OldestPendingAge reports how long the oldest in-flight call has been
// outstanding.
func (r *Router) OldestPendingAge() time.Duration {
	return r.pending.OldestAge()
}

func remoteErrorPayload(err error) map[string]interface{} {
	className := "InternalError"
	var ce *cellerrors.CellError
	if errors.As(err, &ce) {
		className = string(ce.Category)
	}
	return map[string]interface{}{
		"className": className,
		"message":   err.Error(),
	}
}

func remoteErrorFromPayload(payload interface{}) error {
	m, ok := payload.(map[string]interface{})
	if !ok {
		return &cellerrors.RemoteError{Message: fmt.Sprintf("%v", payload)}
	}
	className, _ := m["className"].(string)
	message, _ := m["message"].(string)
	return &cellerrors.RemoteError{ClassName: className, Message: message}
}
