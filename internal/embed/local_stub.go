//go:build !llamacpp

package embed

import (
	"context"
	"fmt"
)

// Local is a stub implementation used when the llamacpp build tag is not
// set. It returns Available()=false so callers fall back to the hash
// embedder.
type Local struct {
	modelPath string
}

// LocalConfig configures the local embedder.
type LocalConfig struct {
	// LibPath is the directory containing yzma shared libraries (.so/.dylib).
	LibPath string

	// ModelPath is the path to the GGUF embedding model file.
	ModelPath string

	// GPULayers is the number of layers to offload to GPU (0 = CPU only).
	GPULayers int

	// ContextSize is the context window size in tokens.
	ContextSize int
}

// NewLocal creates a local embedder. In the stub build (without llamacpp
// tag), this embedder is always unavailable.
func NewLocal(cfg LocalConfig) *Local {
	return &Local{modelPath: cfg.ModelPath}
}

// Available returns false because the local model is not compiled in
// without the llamacpp build tag.
func (l *Local) Available() bool {
	return false
}

// Embed returns an error because the local embedder is not available in
// stub builds.
func (l *Local) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, fmt.Errorf("local embedder not available: build with -tags llamacpp")
}

// Close is a no-op for the stub embedder.
func (l *Local) Close() error {
	return nil
}
