// Package periodic runs a fixed set of named tasks on their own cadence,
// isolating one task's failure from the others — the cell fabric's
// equivalent of the teacher's ticker-driven background loops, used here
// to drive the Topology Cache's periodic Refresh against the Catalog.
package periodic

import (
	"context"
	"sync"
	"time"

	"github.com/opd-ai/go-cells/pkg/logger"
)

// Task is one unit of periodic work. A returned error is logged; it
// never stops the Runner or any other task.
type Task func(ctx context.Context) error

type scheduledTask struct {
	name     string
	interval time.Duration
	fn       Task
}

// Runner drives a set of Tasks, each on its own ticker, until its
// context is cancelled.
type Runner struct {
	mu    sync.Mutex
	tasks []scheduledTask
	log   *logger.Logger
}

// New builds an empty Runner.
func New(log *logger.Logger) *Runner {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Runner{log: log.Component("periodic")}
}

// Register adds a task to be run every interval once Run starts. Tasks
// registered after Run has started are not picked up; register
// everything before calling Run.
func (r *Runner) Register(name string, interval time.Duration, fn Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, scheduledTask{name: name, interval: interval, fn: fn})
}

// Run starts every registered task on its own goroutine and blocks until
// ctx is cancelled, at which point all task goroutines have exited.
func (r *Runner) Run(ctx context.Context) {
	r.mu.Lock()
	tasks := make([]scheduledTask, len(r.tasks))
	copy(tasks, r.tasks)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, t := range tasks {
		wg.Add(1)
		go func(t scheduledTask) {
			defer wg.Done()
			r.runOne(ctx, t)
		}(t)
	}
	wg.Wait()
}

func (r *Runner) runOne(ctx context.Context, t scheduledTask) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.fn(ctx); err != nil {
				r.log.Error("periodic task failed", "task", t.name, "error", err)
			}
		}
	}
}
