package task

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"leadgen-engine/internal/logger"
)

const DefaultMaxConcurrent = 4

type Config struct {
	MaxConcurrent int
}

// Orchestrator is the task registry plus a bounded worker pool. Tasks
// live in memory only.
type Orchestrator struct {
	ctx context.Context
	log logger.Logger
	sem *semaphore.Weighted
	now func() time.Time

	mu        sync.RWMutex
	tasks     map[string]*Task
	runners   map[Kind]Runner
	observers []Observer

	wg sync.WaitGroup
}

// New returns an orchestrator whose tasks run under ctx. Cancelling ctx
// fails queued tasks and interrupts running ones.
func New(ctx context.Context, cfg Config, log logger.Logger) *Orchestrator {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Orchestrator{
		ctx:     ctx,
		log:     log.With(logger.String("component", "orchestrator")),
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		now:     func() time.Time { return time.Now().UTC() },
		tasks:   make(map[string]*Task),
		runners: make(map[Kind]Runner),
	}
}

func (o *Orchestrator) Register(r Runner) {
	o.mu.Lock()
	o.runners[r.Kind()] = r
	o.mu.Unlock()
}

func (o *Orchestrator) Observe(obs Observer) {
	o.mu.Lock()
	o.observers = append(o.observers, obs)
	o.mu.Unlock()
}

// Submit validates payload and queues a task. It never waits for the work.
func (o *Orchestrator) Submit(kind Kind, payload any) (string, error) {
	o.mu.RLock()
	r, ok := o.runners[kind]
	o.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err := r.Validate(payload); err != nil {
		return "", err
	}

	t := &Task{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    StatusQueued,
		Progress:  "waiting to start",
		StartedAt: o.now(),
	}
	o.mu.Lock()
	o.tasks[t.ID] = t
	snap := t.clone()
	o.mu.Unlock()

	o.log.Info("task submitted", logger.String("task_id", t.ID), logger.String("kind", string(kind)))
	o.notify(snap)

	o.wg.Add(1)
	go o.run(t.ID, r, payload)
	return t.ID, nil
}

// Status returns a copy of the task's current state.
func (o *Orchestrator) Status(id string) (Task, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	t, ok := o.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t.clone(), nil
}

func (o *Orchestrator) List() []Task {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]Task, 0, len(o.tasks))
	for _, t := range o.tasks {
		out = append(out, t.clone())
	}
	return out
}

// Wait blocks until every submitted task has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Prune drops terminal tasks that finished more than olderThan ago.
func (o *Orchestrator) Prune(olderThan time.Duration) int {
	cutoff := o.now().Add(-olderThan)
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for id, t := range o.tasks {
		if t.Status.Terminal() && t.FinishedAt != nil && t.FinishedAt.Before(cutoff) {
			delete(o.tasks, id)
			n++
		}
	}
	return n
}

func (o *Orchestrator) run(id string, r Runner, payload any) {
	defer o.wg.Done()
	log := o.log.With(logger.String("task_id", id))

	if err := o.sem.Acquire(o.ctx, 1); err != nil {
		o.finish(id, fmt.Errorf("not started: %w", err))
		return
	}
	defer o.sem.Release(1)

	if err := o.transition(id, StatusRunning, ""); err != nil {
		log.Error("start task", logger.Error(err))
		return
	}
	log.Info("task running")

	err := o.safeRun(o.ctx, r, payload, &reporter{o: o, id: id})
	o.finish(id, err)
}

func (o *Orchestrator) safeRun(ctx context.Context, r Runner, payload any, rep Reporter) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			o.log.Error("task panicked",
				logger.Any("panic", rec),
				logger.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return r.Run(ctx, payload, rep)
}

func (o *Orchestrator) finish(id string, runErr error) {
	log := o.log.With(logger.String("task_id", id))
	if runErr != nil {
		if err := o.transition(id, StatusFailed, runErr.Error()); err != nil {
			log.Error("fail task", logger.Error(err))
			return
		}
		log.Error("task failed", logger.Error(runErr))
		return
	}
	if err := o.transition(id, StatusCompleted, ""); err != nil {
		log.Error("complete task", logger.Error(err))
		return
	}
	log.Info("task completed")
}

func (o *Orchestrator) transition(id string, to Status, errText string) error {
	o.mu.Lock()
	t, ok := o.tasks[id]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := validateTransition(t.Status, to); err != nil {
		o.mu.Unlock()
		return err
	}
	t.Status = to
	if to.Terminal() {
		now := o.now()
		t.FinishedAt = &now
		t.Error = errText
	}
	snap := t.clone()
	o.mu.Unlock()

	o.notify(snap)
	return nil
}

// update mutates a running task; terminal tasks are left untouched.
func (o *Orchestrator) update(id string, fn func(*Task)) {
	o.mu.Lock()
	t, ok := o.tasks[id]
	if !ok || t.Status.Terminal() {
		o.mu.Unlock()
		return
	}
	fn(t)
	snap := t.clone()
	o.mu.Unlock()

	o.notify(snap)
}

func (o *Orchestrator) notify(t Task) {
	o.mu.RLock()
	obs := o.observers
	o.mu.RUnlock()
	for _, ob := range obs {
		ob.TaskUpdated(t)
	}
}

type reporter struct {
	o  *Orchestrator
	id string
}

func (r *reporter) Progress(text string) {
	r.o.update(r.id, func(t *Task) { t.Progress = text })
}

func (r *reporter) Count(d Summary) {
	r.o.update(r.id, func(t *Task) { t.Summary.add(d) })
}
