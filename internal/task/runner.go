package task

import "context"

// Reporter is handed to a running task to publish progress.
type Reporter interface {
	Progress(text string)
	Count(delta Summary)
}

// Runner executes one kind of task. Validate is called synchronously by
// Submit; Run on a worker goroutine. Per-unit problems should be counted
// through the Reporter, a returned error fails the whole task.
type Runner interface {
	Kind() Kind
	Validate(payload any) error
	Run(ctx context.Context, payload any, rep Reporter) error
}

// Observer is notified with a snapshot after every change to a task.
type Observer interface {
	TaskUpdated(t Task)
}

type ObserverFunc func(Task)

func (f ObserverFunc) TaskUpdated(t Task) { f(t) }
