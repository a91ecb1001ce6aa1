package recognizer

import (
	"context"
	"image"

	"github.com/google/uuid"
)

// Job is a recognition request running in the background.
type Job struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
	report *Report
	err    error
}

// Submit starts a request on its own goroutine and returns immediately. The
// job ends when it finishes, when ctx ends, when the request timeout expires
// or when it is canceled.
func (r *Recognizer) Submit(ctx context.Context, frame image.Image) *Job {
	ctx, cancel := r.withTimeout(ctx)
	j := &Job{id: uuid.NewString(), cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(j.done)
		defer cancel()
		j.report, j.err = r.run(ctx, j.id, frame)
	}()
	return j
}

// ID returns the request id, also used for the debug session.
func (j *Job) ID() string { return j.id }

// Done is closed when the job has finished.
func (j *Job) Done() <-chan struct{} { return j.done }

// Cancel stops the job. In-flight inference observes the cancellation.
func (j *Job) Cancel() { j.cancel() }

// Wait blocks until the job finishes or ctx ends. When ctx ends first the
// job is canceled and a KindCanceled error is returned without waiting for
// the worker to drain.
func (j *Job) Wait(ctx context.Context) (*Report, error) {
	select {
	case <-j.done:
		return j.report, j.err
	case <-ctx.Done():
		j.Cancel()
		return nil, &RequestError{Kind: KindCanceled, Err: ctx.Err()}
	}
}

// Result returns the outcome of a finished job, or ErrJobPending.
func (j *Job) Result() (*Report, error) {
	select {
	case <-j.done:
		return j.report, j.err
	default:
		return nil, ErrJobPending
	}
}
