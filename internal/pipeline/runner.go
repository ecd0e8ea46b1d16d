package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Task is a long-running pipeline component: it runs until its context
// is done and then returns.
type Task interface {
	Run(ctx context.Context)
}

// TaskFunc adapts a function to the Task interface.
type TaskFunc func(ctx context.Context)

// Run calls f.
func (f TaskFunc) Run(ctx context.Context) { f(ctx) }

type namedTask struct {
	name string
	task Task
}

// Runner owns the goroutines of every worker and scheduler. Start
// launches them; Stop cancels their shared context and waits for each
// loop to exit at its next boundary, letting in-flight items finish.
type Runner struct {
	logger *zap.Logger
	tasks  []namedTask

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunner creates an empty runner.
func NewRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger.Named("runner")}
}

// Add registers a task under a name used in logs. Must be called
// before Start.
func (r *Runner) Add(name string, task Task) {
	r.tasks = append(r.tasks, namedTask{name: name, task: task})
}

// Start launches every registered task on its own goroutine.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)

	for _, nt := range r.tasks {
		nt := nt
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.logger.Info("task started", zap.String("task", nt.name))
			nt.task.Run(ctx)
			r.logger.Info("task stopped", zap.String("task", nt.name))
		}()
	}
}

// Stop requests shutdown and blocks until every task has returned.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	r.wg.Wait()
}
