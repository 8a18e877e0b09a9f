//go:build llamacpp

package embed

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/hybridgroup/yzma/pkg/llama"

	"github.com/mimus-sim/mimus/internal/vecmath"
)

// Package-level library initialization. llama.Load() and llama.Init() are
// process-global operations that must only happen once.
var (
	libOnce    sync.Once
	libLoadErr error
)

func loadLib(libPath string) error {
	libOnce.Do(func() {
		if err := llama.Load(libPath); err != nil {
			libLoadErr = fmt.Errorf("loading yzma shared library from %q: %w", libPath, err)
			return
		}
		llama.LogSet(llama.LogSilent())
		llama.Init()
	})
	return libLoadErr
}

// Local embeds text with a local GGUF model via hybridgroup/yzma
// (purego). Thread-safe: all model access is serialized via mutex.
// Contexts are created per Embed() call and freed immediately.
type Local struct {
	libPath     string
	modelPath   string
	gpuLayers   int
	contextSize int

	mu      sync.Mutex
	model   llama.Model
	vocab   llama.Vocab
	nEmbd   int32
	loaded  bool
	loadErr error
	once    sync.Once
}

// LocalConfig configures the local embedder.
type LocalConfig struct {
	// LibPath is the directory containing yzma shared libraries (.so/.dylib).
	// Falls back to YZMA_LIB env var at runtime.
	LibPath string

	// ModelPath is the path to the GGUF embedding model file.
	ModelPath string

	// GPULayers is the number of layers to offload to GPU (0 = CPU only).
	GPULayers int

	// ContextSize is the context window size in tokens.
	ContextSize int
}

// NewLocal creates a local embedder. The model is not loaded until first use.
func NewLocal(cfg LocalConfig) *Local {
	ctxSize := cfg.ContextSize
	if ctxSize <= 0 {
		ctxSize = 512
	}
	libPath := cfg.LibPath
	if libPath == "" {
		libPath = os.Getenv("YZMA_LIB")
	}
	return &Local{
		libPath:     libPath,
		modelPath:   cfg.ModelPath,
		gpuLayers:   cfg.GPULayers,
		contextSize: ctxSize,
	}
}

// resolveLibPath returns the effective library path, falling back to YZMA_LIB.
func (l *Local) resolveLibPath() string {
	if l.libPath != "" {
		return l.libPath
	}
	return os.Getenv("YZMA_LIB")
}

// loadModel lazy-loads the embedding model on first use.
func (l *Local) loadModel() error {
	l.once.Do(func() {
		if l.modelPath == "" {
			l.loadErr = fmt.Errorf("no model path configured")
			return
		}

		libPath := l.resolveLibPath()
		if libPath == "" {
			l.loadErr = fmt.Errorf("no library path configured (set lib_path or YZMA_LIB)")
			return
		}

		if err := loadLib(libPath); err != nil {
			l.loadErr = err
			return
		}

		modelParams := llama.ModelDefaultParams()
		gpuLayers := l.gpuLayers
		if gpuLayers > math.MaxInt32 {
			gpuLayers = math.MaxInt32
		}
		modelParams.NGpuLayers = int32(gpuLayers)

		model, err := llama.ModelLoadFromFile(l.modelPath, modelParams)
		if err != nil {
			l.loadErr = fmt.Errorf("loading model %s: %w", l.modelPath, err)
			return
		}
		if model == 0 {
			l.loadErr = fmt.Errorf("loading model %s: returned null handle", l.modelPath)
			return
		}

		l.model = model
		l.vocab = llama.ModelGetVocab(model)
		l.nEmbd = int32(llama.ModelNEmbd(model))
		l.loaded = true
	})
	return l.loadErr
}

// Available returns true if both the library directory and model file
// exist on disk. This is a cheap check that does not load the model.
func (l *Local) Available() bool {
	libPath := l.resolveLibPath()
	if libPath == "" || l.modelPath == "" {
		return false
	}
	if info, err := os.Stat(libPath); err != nil || !info.IsDir() {
		return false
	}
	_, err := os.Stat(l.modelPath)
	return err == nil
}

// Embed returns a dense vector embedding for the given text.
// Creates a fresh llama context per call and frees it immediately.
func (l *Local) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := l.loadModel(); err != nil {
		return nil, fmt.Errorf("local embed: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	tokens := llama.Tokenize(l.vocab, text, true, true)

	ctxParams := llama.ContextDefaultParams()
	nTokens := len(tokens) + 64
	if nTokens > math.MaxUint32 {
		nTokens = math.MaxUint32
	}
	ctxParams.NCtx = uint32(nTokens)

	lctx, err := llama.InitFromModel(l.model, ctxParams)
	if err != nil {
		return nil, fmt.Errorf("creating embedding context: %w", err)
	}
	defer func() { _ = llama.Free(lctx) }()

	llama.SetEmbeddings(lctx, true)

	batch := llama.BatchGetOne(tokens)
	if _, err := llama.Decode(lctx, batch); err != nil {
		return nil, fmt.Errorf("decoding tokens: %w", err)
	}

	rawVec, err := llama.GetEmbeddingsSeq(lctx, 0, l.nEmbd)
	if err != nil {
		return nil, fmt.Errorf("getting embeddings: %w", err)
	}

	// Copy + L2 normalize (rawVec points to memory owned by lctx)
	vec := make([]float32, len(rawVec))
	copy(vec, rawVec)
	vecmath.Normalize(vec)

	return vec, nil
}

// Close releases the model resources. Safe to call multiple times.
// Does NOT call llama.Close() — that's process-global.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded {
		_ = llama.ModelFree(l.model)
		l.model = 0
		l.vocab = 0
		l.nEmbd = 0
		l.loaded = false
		l.once = sync.Once{} // allow reloading after close
	}
	return nil
}
