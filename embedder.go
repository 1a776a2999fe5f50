package vecturakit

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Embedder is the collaborator boundary (C9): the facade consumes dense
// embeddings through this capability and never depends on a concrete model.
// Errors are opaque and surfaced unchanged to the caller.
//
// Grounded on pkg/sqvect/embedder.go's Embedder interface.
type Embedder interface {
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// embedBatchMaxConc bounds the default EmbedBatch fan-out helper below; it
// mirrors the file-backed storage's default concurrency window so a caller
// that mixes embedding and persistence doesn't oversubscribe by more than
// one bounded pool's worth of goroutines.
const embedBatchMaxConc = 50

// BaseEmbedder is an Embedder built from two functions, mirroring
// pkg/sqvect/embedder.go's BaseEmbedder. EmbedBatch fans the single-text
// embedFn out across a bounded semaphore window (§4.7's concurrency model
// applied to the embedding collaborator boundary) instead of the teacher's
// unlimited one-goroutine-per-text fan-out.
type BaseEmbedder struct {
	embedFn func(ctx context.Context, text string) ([]float32, error)
	dim     int
}

// NewBaseEmbedder builds an Embedder from a single-text embed function and
// its reported output dimension.
func NewBaseEmbedder(dim int, embedFn func(ctx context.Context, text string) ([]float32, error)) *BaseEmbedder {
	return &BaseEmbedder{embedFn: embedFn, dim: dim}
}

func (e *BaseEmbedder) Dimension() int { return e.dim }

func (e *BaseEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, invalidInput("embed: text must not be empty")
	}
	return e.embedFn(ctx, text)
}

func (e *BaseEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	errs := make([]error, len(texts))

	sem := semaphore.NewWeighted(embedBatchMaxConc)
	g, gctx := errgroup.WithContext(ctx)
	for i, text := range texts {
		i, text := i, text
		if err := sem.Acquire(gctx, 1); err != nil {
			errs[i] = err
			continue
		}
		g.Go(func() error {
			defer sem.Release(1)
			v, err := e.Embed(gctx, text)
			if err != nil {
				errs[i] = err
				return nil
			}
			out[i] = v
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("embed_batch: item %d: %w", i, err)
		}
	}
	return out, nil
}

// mockEmbedder is a trivial deterministic hash-based embedder used by every
// CLI subcommand and by tests that need reproducible vectors
// without a real model (concrete embedders are out of scope per §1).
type mockEmbedder struct {
	dim int
}

// NewMockEmbedder returns a deterministic Embedder: each text hashes to the
// same vector every run, so round-trip and ordering tests are reproducible.
func NewMockEmbedder(dim int) Embedder {
	return &mockEmbedder{dim: dim}
}

func (m *mockEmbedder) Dimension() int { return m.dim }

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, invalidInput("embed: text must not be empty")
	}
	return hashEmbed(text, m.dim), nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// hashEmbed derives a deterministic pseudo-embedding from text using a
// simple rolling hash per dimension so semantically similar short strings
// (sharing tokens) tend to land closer together than unrelated ones -
// enough for exercising search/ranking code paths without a real model.
func hashEmbed(text string, dim int) []float32 {
	toks := tokenize(text)
	v := make([]float32, dim)
	if len(toks) == 0 {
		v[0] = 1
		return v
	}
	for _, tok := range toks {
		var h uint32 = 2166136261
		for i := 0; i < len(tok); i++ {
			h ^= uint32(tok[i])
			h *= 16777619
		}
		for d := 0; d < dim; d++ {
			h ^= h << 13
			h ^= h >> 17
			h ^= h << 5
			v[d] += float32(h%1000) / 1000.0
		}
	}
	return v
}
