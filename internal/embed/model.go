// Package embed turns candidate regions into embedding vectors and scores
// them against the reference library.
//
// The model is a black box behind the Model interface: a batch of
// normalized NCHW tensors in, one vector per image out. Verification runs
// batches on a bounded worker pool; a batch that keeps failing after its
// retries is dropped and the request continues with a partial result.
package embed

import (
	"context"
	"errors"
)

// ErrModelLoad is returned when the model file cannot be loaded.
var ErrModelLoad = errors.New("failed to load embedding model")

// Tensor is a dense float32 batch in NCHW order.
type Tensor struct {
	N, C, H, W int
	Data       []float32
}

// NewTensor allocates a zeroed n x c x h x w tensor.
func NewTensor(n, c, h, w int) *Tensor {
	return &Tensor{N: n, C: c, H: h, W: w, Data: make([]float32, n*c*h*w)}
}

// Image returns the slice holding image i.
func (t *Tensor) Image(i int) []float32 {
	size := t.C * t.H * t.W
	return t.Data[i*size : (i+1)*size]
}

// Model produces one embedding per image of a batch.
type Model interface {
	// InputSize is the side of the square model input.
	InputSize() int
	// Embed returns batch.N vectors.
	Embed(ctx context.Context, batch *Tensor) ([][]float32, error)
	Close() error
}

// Cloner is implemented by models whose handles must not be shared between
// goroutines. The verifier gives every worker its own clone.
type Cloner interface {
	Clone() (Model, error)
}
