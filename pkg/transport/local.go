package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/opd-ai/go-cells/pkg/cellerrors"
	"github.com/opd-ai/go-cells/pkg/envelope"
	"github.com/opd-ai/go-cells/pkg/topology"
)

// Local is an in-process Adapter used by tests and by a single binary
// simulating several cells: it dispatches directly to the Receiver
// registered for a target's path, skipping serialization entirely.
type Local struct {
	mu        sync.RWMutex
	receivers map[string]Receiver
}

// NewLocal creates an empty in-process transport.
func NewLocal() *Local {
	return &Local{receivers: make(map[string]Receiver)}
}

// Register associates a cell path with the Receiver that should handle
// envelopes addressed to it. Registering the same path twice replaces
// the previous Receiver.
func (l *Local) Register(path string, r Receiver) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.receivers[path] = r
}

// Unregister removes a previously registered Receiver.
func (l *Local) Unregister(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.receivers, path)
}

func (l *Local) receiver(path string) (Receiver, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.receivers[path]
	return r, ok
}

// Send delivers frame directly to the registered Receiver for target.
func (l *Local) Send(ctx context.Context, target topology.CellRecord, frame envelope.Frame) error {
	r, ok := l.receiver(target.Path)
	if !ok {
		return cellerrors.TransportError(fmt.Sprintf("no local receiver registered for %q", target.Path), nil)
	}
	return r.Deliver(ctx, frame)
}

// Fanout delivers frame to every target concurrently, mirroring
// broadcast_message's per-neighbor try/log/continue: a failed delivery
// to one target does not stop delivery to the others, and the first
// error observed is returned to the caller once every attempt completes.
func (l *Local) Fanout(ctx context.Context, targets []topology.CellRecord, frame envelope.Frame) error {
	errs := make(chan error, len(targets))
	var wg sync.WaitGroup
	for _, target := range targets {
		wg.Add(1)
		go func(t topology.CellRecord) {
			defer wg.Done()
			errs <- l.Send(ctx, t, frame)
		}(target)
	}
	wg.Wait()
	close(errs)

	var first error
	for err := range errs {
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}
