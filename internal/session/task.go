package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Task is the runtime handle for a session's background download/upload run.
// Cancellation is cooperative: Cancel interrupts the run at its next
// suspension point, and the run signals completion through Finish.
type Task struct {
	ID     string
	cancel context.CancelFunc

	once sync.Once
	done chan struct{}
}

// NewTask wraps a context cancel function in a task handle.
func NewTask(cancel context.CancelFunc) *Task {
	return &Task{
		ID:     uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Cancel requests cooperative cancellation of the run.
func (t *Task) Cancel() {
	t.cancel()
}

// Finish marks the run as complete. Safe to call more than once.
func (t *Task) Finish() {
	t.once.Do(func() { close(t.done) })
}

// Done is closed once the run has finished or acknowledged cancellation.
func (t *Task) Done() <-chan struct{} {
	return t.done
}
