package upload

import (
	"context"

	"mediaclient/internal/core"
)

// Task is a running upload. Its result is available once Done is closed.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
	result any
	err    error
}

func newTask(cancel context.CancelFunc) *Task {
	return &Task{cancel: cancel, done: make(chan struct{})}
}

func (t *Task) finish(result any, err error) {
	t.result, t.err = result, err
	t.cancel()
	close(t.done)
}

// Cancel aborts every in-flight transfer of the upload and stops scheduling new chunks.
// It is safe to call more than once and after completion.
func (t *Task) Cancel() {
	t.cancel()
}

// Done is closed when the upload finished, failed or was canceled.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the upload ends or ctx is done. A ctx expiring does not cancel the upload.
func (t *Task) Wait(ctx context.Context) (any, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return nil, core.NewCanceledError(ctx.Err())
	}
}
