package recognizer

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sankyuubigan/rivals-counter-peaks/pkg/metrics"
)

// Kind classifies per-request failures.
type Kind int

const (
	// KindInternal is an unexpected pipeline failure.
	KindInternal Kind = iota
	// KindCapture means the frame was absent or unusable.
	KindCapture
	// KindCanceled means the request context ended before a result.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindCapture:
		return "capture"
	case KindCanceled:
		return "canceled"
	default:
		return "internal"
	}
}

func (k Kind) outcome() string {
	switch k {
	case KindCapture:
		return metrics.OutcomeCapture
	case KindCanceled:
		return metrics.OutcomeCanceled
	default:
		return metrics.OutcomeInternal
	}
}

var (
	// ErrNoFrame is returned for a nil or empty frame.
	ErrNoFrame = errors.New("no frame")
	// ErrNoReferences is returned by New for an empty reference library.
	ErrNoReferences = errors.New("reference library is empty")
	// ErrJobPending is returned by Job.Result before the job finishes.
	ErrJobPending = errors.New("job still running")
)

// RequestError is a failed recognition request. Recognizing fewer than six
// heroes is never a RequestError.
type RequestError struct {
	Kind Kind
	Err  error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("recognition failed (%s): %v", e.Kind, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// IsCaptureError reports whether err is a capture failure.
func IsCaptureError(err error) bool { return isKind(err, KindCapture) }

// IsCanceled reports whether err is a canceled or timed-out request.
func IsCanceled(err error) bool { return isKind(err, KindCanceled) }

func isKind(err error, k Kind) bool {
	var re *RequestError
	return errors.As(err, &re) && re.Kind == k
}

// classify wraps err as a RequestError, mapping context errors to KindCanceled.
func classify(err error, fallback Kind) *RequestError {
	var re *RequestError
	if errors.As(err, &re) {
		return re
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &RequestError{Kind: KindCanceled, Err: err}
	}
	return &RequestError{Kind: fallback, Err: err}
}
