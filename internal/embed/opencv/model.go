// Package opencv runs ONNX embedding models with the OpenCV DNN module.
// It requires OpenCV at build time.
package opencv

import (
	"context"
	"fmt"
	"os"

	"gocv.io/x/gocv"

	"github.com/Sankyuubigan/rivals-counter-peaks/internal/embed"
)

// Model is an ONNX network. A gocv.Net is not safe for concurrent use, so
// Model implements embed.Cloner and each verifier worker loads its own copy.
type Model struct {
	net    gocv.Net
	path   string
	size   int
	output string
}

// Load reads the ONNX model at path. size is the square input side; output
// names the layer to read, empty for the network's default output.
func Load(path string, size int, output string) (*Model, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", embed.ErrModelLoad, err)
	}
	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return nil, fmt.Errorf("%w: %s is not a readable ONNX model", embed.ErrModelLoad, path)
	}
	_ = net.SetPreferableBackend(gocv.NetBackendDefault)
	_ = net.SetPreferableTarget(gocv.NetTargetCPU)
	return &Model{net: net, path: path, size: size, output: output}, nil
}

// InputSize implements embed.Model.
func (m *Model) InputSize() int { return m.size }

// Embed implements embed.Model. A 2-D output is read as one row per image;
// a 3-D transformer output [N, tokens, dim] yields the class token.
func (m *Model) Embed(ctx context.Context, batch *embed.Tensor) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	blob := gocv.NewMatWithSizes([]int{batch.N, batch.C, batch.H, batch.W}, gocv.MatTypeCV32F)
	defer blob.Close()
	data, err := blob.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to access input blob: %w", err)
	}
	copy(data, batch.Data)

	m.net.SetInput(blob, "")
	out := m.net.Forward(m.output)
	defer out.Close()
	if out.Empty() {
		return nil, fmt.Errorf("model produced no output")
	}

	vals, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read model output: %w", err)
	}

	dims := out.Size()
	var stride, dim int
	switch len(dims) {
	case 2:
		stride, dim = dims[1], dims[1]
	case 3:
		stride, dim = dims[1]*dims[2], dims[2]
	default:
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}
	if dims[0] != batch.N {
		return nil, fmt.Errorf("output batch %d, want %d", dims[0], batch.N)
	}

	embs := make([][]float32, batch.N)
	for i := range embs {
		v := make([]float32, dim)
		copy(v, vals[i*stride:i*stride+dim])
		embs[i] = v
	}
	return embs, nil
}

// Clone implements embed.Cloner by loading the model again.
func (m *Model) Clone() (embed.Model, error) {
	return Load(m.path, m.size, m.output)
}

// Close releases the network.
func (m *Model) Close() error { return m.net.Close() }
