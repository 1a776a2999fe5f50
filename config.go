package vecturakit

import (
	"path/filepath"
	"strings"
)

// MemoryMode is the resolved (not declared) memory strategy a facade
// instance runs in, decided once at Open time.
type MemoryMode int

const (
	ModeFullMemory MemoryMode = iota
	ModeIndexed
)

// MemoryStrategy selects how the facade balances RAM residency against
// storage-side candidate filtering. Exactly one of the embedded option
// structs is meaningful, selected by Kind.
type MemoryStrategy struct {
	Kind      MemoryStrategyKind
	Indexed   IndexedParams
	Automatic AutomaticParams
}

type MemoryStrategyKind int

const (
	StrategyFullMemory MemoryStrategyKind = iota
	StrategyIndexed
	StrategyAutomatic
)

// IndexedParams configures two-stage (indexed) search (§4.4, §4.7).
type IndexedParams struct {
	Mult       int // candidate multiplier: prefilter size = topK * Mult
	Batch      int // validated (> 0) but not read by search: stage-2 loads fetch all candidates in one call
	MaxConc    int // validated (> 0) but not read by search: stage-2 loads are not run concurrently
}

// AutomaticParams chooses Indexed vs FullMemory based on corpus size.
type AutomaticParams struct {
	Threshold int64 // switch to indexed once storage.count() >= Threshold
	Indexed   IndexedParams
}

// FullMemoryStrategy is the default: all embeddings resident and
// pre-normalized in RAM.
func FullMemoryStrategy() MemoryStrategy {
	return MemoryStrategy{Kind: StrategyFullMemory}
}

// IndexedStrategy requests two-stage retrieval, falling back to full-memory
// when the storage capability doesn't implement IndexedStorage.
func IndexedStrategy(mult, batch, maxConc int) MemoryStrategy {
	return MemoryStrategy{Kind: StrategyIndexed, Indexed: IndexedParams{Mult: mult, Batch: batch, MaxConc: maxConc}}
}

// AutomaticStrategy selects indexed mode at Open time when the storage
// implements IndexedStorage and already holds at least threshold documents;
// otherwise full-memory mode is used for the life of the instance.
func AutomaticStrategy(threshold int64, mult, batch, maxConc int) MemoryStrategy {
	return MemoryStrategy{
		Kind:      StrategyAutomatic,
		Automatic: AutomaticParams{Threshold: threshold, Indexed: IndexedParams{Mult: mult, Batch: batch, MaxConc: maxConc}},
	}
}

// SearchDefaults holds the fusion and BM25 parameters a database is opened
// with; per-call SearchOptions may still override TopK/Threshold.
type SearchDefaults struct {
	TopK       int     // default top-K, >= 1
	Threshold  *float64 // optional, in [0,1]
	BM25K1     float64 // > 0
	BM25B      float64 // in [0,1]
	FusionW    float64 // vector-side weight in the hybrid planner, in [0,1]
	NormFactor float64 // BM25 score normalization divisor (Open Question (b)), default 10.0
}

// Config is the database-wide configuration validated at Open.
type Config struct {
	Name      string // non-empty, no path separators, <= 255 chars
	Dir       string // optional storage directory; "" picks the platform default
	Dimension int    // optional; 0 means "detect from first embed"

	Search         SearchDefaults
	Strategy       MemoryStrategy
	MaxConcurrentFileOps int // used by the file-backed default's batch I/O; 0 means DefaultConfig's value

	Logger Logger
}

// DefaultConfig returns sane defaults grounded on the teacher's
// Config/DefaultConfig pattern, expanded with the spec's search/strategy
// fields.
func DefaultConfig(name string) Config {
	return Config{
		Name: name,
		Search: SearchDefaults{
			TopK:       10,
			Threshold:  nil,
			BM25K1:     1.2,
			BM25B:      0.75,
			FusionW:    0.5,
			NormFactor: 10.0,
		},
		Strategy:             FullMemoryStrategy(),
		MaxConcurrentFileOps: 50,
		Logger:               NopLogger(),
	}
}

// Validate enforces the DATA MODEL §3 configuration invariants.
func (c Config) Validate() error {
	if c.Name == "" {
		return invalidInput("config: name must not be empty")
	}
	if len(c.Name) > 255 {
		return invalidInput("config: name exceeds 255 characters")
	}
	if strings.ContainsAny(c.Name, "/\\") || c.Name == "." || c.Name == ".." {
		return invalidInput("config: name must not contain path separators or be a reserved name")
	}
	if c.Dimension < 0 || c.Dimension > 100_000 {
		return invalidInput("config: dimension must be in [0, 100000]")
	}
	if c.Search.TopK < 1 {
		return invalidInput("config: search.topK must be >= 1")
	}
	if c.Search.Threshold != nil && (*c.Search.Threshold < 0 || *c.Search.Threshold > 1) {
		return invalidInput("config: search.threshold must be in [0,1]")
	}
	if c.Search.BM25K1 <= 0 {
		return invalidInput("config: search.bm25K1 must be > 0")
	}
	if c.Search.BM25B < 0 || c.Search.BM25B > 1 {
		return invalidInput("config: search.bm25B must be in [0,1]")
	}
	if c.Search.FusionW < 0 || c.Search.FusionW > 1 {
		return invalidInput("config: search.fusionW must be in [0,1]")
	}
	switch c.Strategy.Kind {
	case StrategyIndexed:
		if err := c.Strategy.Indexed.validate(); err != nil {
			return err
		}
	case StrategyAutomatic:
		if c.Strategy.Automatic.Threshold < 0 {
			return invalidInput("config: strategy.automatic.threshold must be >= 0")
		}
		if err := c.Strategy.Automatic.Indexed.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (p IndexedParams) validate() error {
	if p.Mult <= 0 {
		return invalidInput("config: strategy.indexed.mult must be > 0")
	}
	if p.Batch <= 0 {
		return invalidInput("config: strategy.indexed.batch must be > 0")
	}
	if p.MaxConc <= 0 {
		return invalidInput("config: strategy.indexed.maxConc must be > 0")
	}
	return nil
}

// storageDir resolves the on-disk directory for the default file-backed
// storage: <root>/<name>, where root is either the configured Dir or the
// platform per-user document directory under a "VecturaKit" subfolder.
func (c Config) storageDir(defaultRoot string) string {
	root := c.Dir
	if root == "" {
		root = filepath.Join(defaultRoot, "VecturaKit")
	}
	return filepath.Join(root, c.Name)
}
