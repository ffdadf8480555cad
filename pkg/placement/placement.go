// Package placement implements the Placement Forwarder: given a request
// to run a new instance, it picks one child cell at random (or itself,
// if it has no children) and either creates the instance locally or
// forwards the request one hop further down, mirroring
// scheduler.CellsScheduler.schedule_run_instance.
package placement

import (
	"context"
	"math/rand"

	"github.com/opd-ai/go-cells/pkg/cellerrors"
	"github.com/opd-ai/go-cells/pkg/envelope"
	"github.com/opd-ai/go-cells/pkg/logger"
	"github.com/opd-ai/go-cells/pkg/topology"
)

// Caller is the subset of the Router Core the forwarder needs: a
// fire-and-forget dispatch to the next candidate cell.
type Caller interface {
	Notify(ctx context.Context, dest string, direction envelope.Direction, method string, args map[string]interface{}) error
}

// CreateLocal is invoked when this cell is chosen as the placement
// target: it should record the new instance and hand it to the local
// compute scheduling path.
type CreateLocal func(ctx context.Context, requestSpec map[string]interface{}) error

// Forwarder is the Placement Forwarder for a single cell.
type Forwarder struct {
	topo        *topology.Cache
	caller      Caller
	createLocal CreateLocal
	log         *logger.Logger
}

// New builds a Placement Forwarder.
func New(topo *topology.Cache, caller Caller, createLocal CreateLocal, log *logger.Logger) *Forwarder {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Forwarder{topo: topo, caller: caller, createLocal: createLocal, log: log.Component("placement")}
}

// ScheduleRunInstance chooses a candidate cell for requestSpec and either
// creates the instance here or forwards schedule_run_instance to it. It
// tries candidates in random order, moving to the next only when
// dispatch itself fails (a transport error) — once a candidate is
// successfully handed the request, ScheduleRunInstance returns without
// waiting to see how that cell resolves it, matching the original's
// fire-and-return placement semantics.
func (f *Forwarder) ScheduleRunInstance(ctx context.Context, requestSpec, filterProperties map[string]interface{}) error {
	candidates := f.weightedCandidates()

	var lastErr error
	for _, cand := range candidates {
		var err error
		if cand.IsMe {
			err = f.createLocal(ctx, requestSpec)
		} else {
			err = f.caller.Notify(ctx, cand.Path, envelope.Down, "schedule_run_instance", map[string]interface{}{
				"requestSpec":      requestSpec,
				"filterProperties": filterProperties,
			})
		}
		if err == nil {
			return nil
		}
		f.log.Error("couldn't communicate with cell, trying next candidate", "cell", cand.Path, "error", err)
		lastErr = err
	}
	return cellerrors.Wrap(cellerrors.CategoryTransport, cellerrors.SeverityHigh,
		"couldn't communicate with any cells for placement", lastErr)
}

// weightedCandidates returns the child cells in random order, or this
// cell alone if it has no children — "I must be the only choice."
func (f *Forwarder) weightedCandidates() []topology.CellRecord {
	children := f.topo.Children()
	if len(children) == 0 {
		return []topology.CellRecord{f.topo.Self()}
	}
	candidates := make([]topology.CellRecord, 0, len(children))
	for _, c := range children {
		candidates = append(candidates, c)
	}
	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	return candidates
}
