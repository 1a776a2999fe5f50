package vecturakit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DB is the database facade (C8): a single-instance serialized mutator that
// owns the document cache, the normalized-embedding cache, and the BM25
// index, and holds one Storage reference plus one Embedder reference.
//
// All public methods acquire mu and hold it for the whole call, matching the
// "actor-style serialized mutator" design: goroutines started for internal
// fan-out (batch I/O, hybrid dispatch) do not acquire mu themselves, and
// run while the calling method holds it, so every facade call is
// linearized against the others.
type DB struct {
	mu sync.Mutex

	config   Config
	storage  Storage
	embedder Embedder
	logger   Logger

	dim       int
	dimIsSet  bool
	mode      MemoryMode
	engine    *searchEngine
	bm25      *bm25Index

	cache     map[string]Document  // write-through document cache (full-memory mode only; stays empty in indexed mode)
	normCache map[string][]float32 // id -> normalized embedding (full-memory mode only)

	closed bool
}

// Open validates config, resolves storage (a file-backed default under
// <dir>/<name> when none is supplied), determines the memory mode, and -
// in full-memory mode - eagerly loads and pre-normalizes every document.
// The BM25 index is always built from the full persisted corpus at open
// time regardless of memory mode, since BM25 state is a separate in-memory
// structure the vector memory strategy doesn't govern (§3, "BM25 state").
func Open(ctx context.Context, config Config, embedder Embedder, storage Storage) (*DB, error) {
	if err := config.Validate(); err != nil {
		return nil, wrapError("open", err)
	}
	logger := config.Logger
	if logger == nil {
		logger = NopLogger()
	}

	if storage == nil {
		root, err := defaultDocDir()
		if err != nil {
			return nil, wrapError("open", err)
		}
		storage = NewFileStorage(config.storageDir(root), config.MaxConcurrentFileOps, logger)
	}
	if err := storage.Prepare(ctx); err != nil {
		return nil, wrapError("open", err)
	}

	docs, err := storage.LoadAll(ctx)
	if err != nil {
		return nil, wrapError("open", err)
	}

	dim := config.Dimension
	dimIsSet := dim > 0
	if embedder != nil && embedder.Dimension() > 0 {
		if dimIsSet && dim != embedder.Dimension() {
			return nil, wrapError("open", &DimensionMismatchError{Expected: dim, Actual: embedder.Dimension()})
		}
		dim = embedder.Dimension()
		dimIsSet = true
	}
	for _, d := range docs {
		if !dimIsSet {
			dim = len(d.Embedding)
			dimIsSet = true
		} else if len(d.Embedding) != dim {
			return nil, wrapError("open", &DimensionMismatchError{Expected: dim, Actual: len(d.Embedding)})
		}
	}

	mode, err := resolveMode(ctx, config.Strategy, storage, logger)
	if err != nil {
		return nil, wrapError("open", err)
	}

	db := &DB{
		config:   config,
		storage:  storage,
		embedder: embedder,
		logger:   logger,
		dim:      dim,
		dimIsSet: dimIsSet,
		mode:     mode,
		engine:   &searchEngine{dim: dim},
		bm25:     newBM25Index(config.Search.BM25K1, config.Search.BM25B, docs),
	}

	if mode == ModeFullMemory {
		db.cache = make(map[string]Document, len(docs))
		db.normCache = make(map[string][]float32, len(docs))
		for _, d := range docs {
			db.cache[d.ID] = d
			norm, err := normalize(d.Embedding)
			if err != nil {
				// A persisted document should already satisfy the norm
				// invariant; if it doesn't, skip it from the in-memory
				// cosine cache rather than fail Open outright.
				logger.Warn("skipping document with degenerate norm from cache", "id", d.ID)
				continue
			}
			db.normCache[d.ID] = norm
		}
	} else {
		db.cache = make(map[string]Document)
		db.normCache = make(map[string][]float32)
	}

	return db, nil
}

func resolveMode(ctx context.Context, strategy MemoryStrategy, storage Storage, logger Logger) (MemoryMode, error) {
	_, indexed := asIndexedStorage(storage)
	switch strategy.Kind {
	case StrategyFullMemory:
		return ModeFullMemory, nil
	case StrategyIndexed:
		if indexed {
			return ModeIndexed, nil
		}
		logger.Info("indexed strategy requested but storage does not implement IndexedStorage; falling back to full-memory mode")
		return ModeFullMemory, nil
	case StrategyAutomatic:
		if !indexed {
			return ModeFullMemory, nil
		}
		count, err := storage.Count(ctx)
		if err != nil {
			return ModeFullMemory, err
		}
		if count >= strategy.Automatic.Threshold {
			return ModeIndexed, nil
		}
		return ModeFullMemory, nil
	default:
		return ModeFullMemory, nil
	}
}

func defaultDocDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Documents"), nil
}

// Close releases the facade; it does not close the underlying storage
// unless the storage also implements io.Closer (left to the caller, since
// Storage's minimum contract has no Close method per §6).
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.closed = true
	return nil
}

func (db *DB) checkOpen(op string) error {
	if db.closed {
		return wrapError(op, fmt.Errorf("database is closed"))
	}
	return nil
}

// Add embeds text, validates its dimension against D, persists it, then
// updates the cache and BM25 index (persistence-before-cache, §5). If id is
// "", a fresh UUID is minted; supplying an id that already exists is an
// upsert - "last wins" with the new write's timestamp (Open Question (a),
// grounded on the "Custom ID overwrite" scenario in §8).
func (db *DB) Add(ctx context.Context, text string, id string) (string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkOpen("add"); err != nil {
		return "", err
	}
	if err := validateText(text); err != nil {
		return "", wrapError("add", err)
	}
	if id == "" {
		id = uuid.New().String()
	}

	vec, err := db.embed(ctx, text)
	if err != nil {
		return "", wrapError("add", err)
	}
	if err := db.checkDimension(len(vec)); err != nil {
		return "", wrapError("add", err)
	}
	if err := validateVector(vec); err != nil {
		return "", wrapError("add", err)
	}
	if _, err := normalize(vec); err != nil {
		return "", wrapError("add", err)
	}

	doc := Document{ID: id, Text: text, Embedding: vec, CreatedAt: time.Now()}
	if err := db.storage.Save(ctx, doc); err != nil {
		return "", wrapError("add", err)
	}
	db.indexLocked(doc)
	return id, nil
}

// AddBatch embeds and persists many texts. If ids is non-nil its length
// must equal len(texts); IDs are used verbatim (no auto-minting per entry).
func (db *DB) AddBatch(ctx context.Context, texts []string, ids []string) ([]string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkOpen("add_batch"); err != nil {
		return nil, err
	}
	if ids != nil && len(ids) != len(texts) {
		return nil, wrapError("add_batch", invalidInput("ids length (%d) must equal texts length (%d)", len(ids), len(texts)))
	}
	for _, t := range texts {
		if err := validateText(t); err != nil {
			return nil, wrapError("add_batch", err)
		}
	}

	resolvedIDs := make([]string, len(texts))
	for i := range texts {
		if ids != nil {
			resolvedIDs[i] = ids[i]
		} else {
			resolvedIDs[i] = uuid.New().String()
		}
	}

	vecs, err := db.embedBatch(ctx, texts)
	if err != nil {
		return nil, wrapError("add_batch", err)
	}

	docs := make([]Document, len(texts))
	now := time.Now()
	for i, v := range vecs {
		if err := db.checkDimension(len(v)); err != nil {
			return nil, wrapError("add_batch", err)
		}
		if err := validateVector(v); err != nil {
			return nil, wrapError("add_batch", err)
		}
		if _, err := normalize(v); err != nil {
			return nil, wrapError("add_batch", err)
		}
		docs[i] = Document{ID: resolvedIDs[i], Text: texts[i], Embedding: v, CreatedAt: now}
	}

	if err := db.storage.SaveBatch(ctx, docs); err != nil {
		// Documents whose write succeeded stay on disk, so index them too.
		var be *BatchError
		if errors.As(err, &be) && be.PartialSuccess {
			failed := make(map[string]bool, len(be.FailedIDs))
			for _, id := range be.FailedIDs {
				failed[id] = true
			}
			for _, d := range docs {
				if !failed[d.ID] {
					db.indexLocked(d)
				}
			}
		}
		return nil, wrapError("add_batch", err)
	}
	for _, d := range docs {
		db.indexLocked(d)
	}
	return resolvedIDs, nil
}

// indexLocked updates the cache (full-memory mode) and BM25 index for a
// document that has already been durably persisted. Caller must hold mu.
func (db *DB) indexLocked(doc Document) {
	if db.mode == ModeFullMemory {
		db.cache[doc.ID] = doc
		if norm, err := normalize(doc.Embedding); err == nil {
			db.normCache[doc.ID] = norm
		}
	} else if _, existed := db.cache[doc.ID]; existed {
		db.cache[doc.ID] = doc
	}
	db.bm25.insertOrUpdate(doc)
}

func (db *DB) checkDimension(actual int) error {
	if !db.dimIsSet {
		db.dim = actual
		db.dimIsSet = true
		db.engine.dim = actual
		return nil
	}
	if actual != db.dim {
		return &DimensionMismatchError{Expected: db.dim, Actual: actual}
	}
	return nil
}

func (db *DB) embed(ctx context.Context, text string) ([]float32, error) {
	if db.embedder == nil {
		return nil, invalidInput("no embedder configured")
	}
	return db.embedder.Embed(ctx, text)
}

func (db *DB) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if db.embedder == nil {
		return nil, invalidInput("no embedder configured")
	}
	return db.embedder.EmbedBatch(ctx, texts)
}

// Update fetches the old document (cache, then indexed storage, then a full
// load as last resort) to preserve its creation timestamp, embeds the new
// text, persists, then updates the cache and BM25 index.
func (db *DB) Update(ctx context.Context, id string, newText string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkOpen("update"); err != nil {
		return err
	}
	if err := validateText(newText); err != nil {
		return wrapError("update", err)
	}

	old, err := db.fetchLocked(ctx, id)
	if err != nil {
		return wrapError("update", err)
	}

	vec, err := db.embed(ctx, newText)
	if err != nil {
		return wrapError("update", err)
	}
	if err := db.checkDimension(len(vec)); err != nil {
		return wrapError("update", err)
	}
	if err := validateVector(vec); err != nil {
		return wrapError("update", err)
	}
	if _, err := normalize(vec); err != nil {
		return wrapError("update", err)
	}

	doc := Document{ID: id, Text: newText, Embedding: vec, CreatedAt: old.CreatedAt}
	if err := db.storage.Update(ctx, doc); err != nil {
		return wrapError("update", err)
	}
	db.indexLocked(doc)
	return nil
}

// fetchLocked resolves a document by ID via cache, then IndexedStorage,
// then a full load as a last resort. Caller must hold mu.
func (db *DB) fetchLocked(ctx context.Context, id string) (Document, error) {
	if doc, ok := db.cache[id]; ok {
		return doc, nil
	}
	if is, ok := asIndexedStorage(db.storage); ok {
		docs, err := is.LoadByIDs(ctx, []string{id})
		if err == nil {
			if doc, ok := docs[id]; ok {
				return doc, nil
			}
		}
	}
	all, err := db.storage.LoadAll(ctx)
	if err != nil {
		return Document{}, err
	}
	for _, d := range all {
		if d.ID == id {
			return d, nil
		}
	}
	return Document{}, ErrNotFound
}

// Delete removes ids: BM25 is updated first (subtracting contributions),
// then the cache, then storage (§4.8's ordering for delete/reset).
func (db *DB) Delete(ctx context.Context, ids []string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkOpen("delete"); err != nil {
		return err
	}
	for _, id := range ids {
		db.bm25.remove(id)
		delete(db.cache, id)
		delete(db.normCache, id)
	}
	for _, id := range ids {
		if err := db.storage.Delete(ctx, id); err != nil {
			return wrapError("delete", err)
		}
	}
	return nil
}

// Reset resolves the full set of persisted IDs via storage (not merely the
// in-memory set), clears BM25 and the caches, then deletes every resolved
// ID from storage.
func (db *DB) Reset(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkOpen("reset"); err != nil {
		return err
	}
	all, err := db.storage.LoadAll(ctx)
	if err != nil {
		return wrapError("reset", err)
	}
	db.bm25.unload()
	db.cache = make(map[string]Document)
	db.normCache = make(map[string][]float32)
	for _, d := range all {
		if err := db.storage.Delete(ctx, d.ID); err != nil {
			return wrapError("reset", err)
		}
	}
	return nil
}

// Count returns the number of currently persisted documents.
func (db *DB) Count(ctx context.Context) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkOpen("count"); err != nil {
		return 0, err
	}
	n, err := db.storage.Count(ctx)
	if err != nil {
		return 0, wrapError("count", err)
	}
	return n, nil
}

// List reflects the in-memory cache in full-memory mode; in indexed mode the
// cache is never populated, so it returns an empty slice (the full set in
// indexed mode is reachable by paging IndexedStorage.LoadRange directly).
func (db *DB) List(ctx context.Context) ([]Document, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkOpen("list"); err != nil {
		return nil, err
	}
	out := make([]Document, 0, len(db.cache))
	for _, d := range db.cache {
		out = append(out, d)
	}
	return out, nil
}

// Stats surfaces DatabaseStats mirroring the teacher's StoreStats.
func (db *DB) Stats(ctx context.Context) (DatabaseStats, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkOpen("stats"); err != nil {
		return DatabaseStats{}, err
	}
	n, err := db.storage.Count(ctx)
	if err != nil {
		return DatabaseStats{}, wrapError("stats", err)
	}
	return DatabaseStats{Count: n, Dimension: db.dim}, nil
}

// SearchVector dispatches to the vector engine (C4): full-memory mode
// stacks the cache into a matrix and scores it directly; indexed mode asks
// storage for candidates first and falls back to full-memory scoring over
// the whole corpus if storage can't provide them (§4.4).
func (db *DB) SearchVector(ctx context.Context, query []float32, opts SearchOptions) ([]ScoredDocument, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkOpen("search_vector"); err != nil {
		return nil, err
	}
	hits, err := db.searchVectorLocked(ctx, query, opts)
	if err != nil {
		return nil, wrapError("search_vector", err)
	}
	return db.joinLocked(ctx, hits)
}

func (db *DB) searchVectorLocked(ctx context.Context, query []float32, opts SearchOptions) ([]vectorHit, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = db.config.Search.TopK
	}
	threshold := opts.Threshold
	if threshold == nil {
		threshold = db.config.Search.Threshold
	}
	qNorm, err := normalize(query)
	if err != nil {
		return nil, err
	}

	if db.mode == ModeIndexed {
		if is, ok := asIndexedStorage(db.storage); ok {
			params := db.config.Strategy.Indexed
			if db.config.Strategy.Kind == StrategyAutomatic {
				params = db.config.Strategy.Automatic.Indexed
			}
			// Request topK*Mult candidates from storage (the prefilter size).
			candidates := func(ctx context.Context, q []float32, k, _ int) ([]string, bool, error) {
				return is.SearchCandidates(ctx, q, k, k*params.Mult)
			}
			hits, err := db.engine.searchIndexed(ctx, qNorm, topK, threshold, candidates, is.LoadByIDs)
			if err == nil {
				return hits, nil
			}
			if err != errUnsupportedCandidates {
				return nil, err
			}
			// fall through to full-memory scoring over the whole corpus
		}
	}

	ids := make([]string, 0, len(db.normCache))
	vecs := make([][]float32, 0, len(db.normCache))
	if len(db.normCache) > 0 {
		for id, v := range db.normCache {
			ids = append(ids, id)
			vecs = append(vecs, v)
		}
	} else {
		all, err := db.storage.LoadAll(ctx)
		if err != nil {
			return nil, err
		}
		for _, d := range all {
			norm, err := normalize(d.Embedding)
			if err != nil {
				continue
			}
			ids = append(ids, d.ID)
			vecs = append(vecs, norm)
		}
	}
	return db.engine.searchFullMemory(qNorm, ids, vecs, topK, threshold)
}

// SearchText dispatches to the hybrid planner (C5). When the embedder is
// nil, callers must use SearchVector directly; SearchText always embeds.
func (db *DB) SearchText(ctx context.Context, text string, opts SearchOptions) ([]ScoredDocument, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkOpen("search_text"); err != nil {
		return nil, err
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = db.config.Search.TopK
	}
	threshold := opts.Threshold
	if threshold == nil {
		threshold = db.config.Search.Threshold
	}

	query, err := db.embed(ctx, text)
	if err != nil {
		return nil, wrapError("search_text", err)
	}

	n := db.bm25.len()
	bmK := 2 * topK
	if bmK > n {
		bmK = n
	}
	// The BM25 branch runs concurrently with the vector branch; bm25Index
	// guards its own maps.
	var g errgroup.Group
	var bm25Hits []bm25Hit
	g.Go(func() error {
		bm25Hits = db.bm25.search(text, bmK)
		return nil
	})
	vecHits, err := db.searchVectorLocked(ctx, query, SearchOptions{TopK: 2 * topK})
	_ = g.Wait()
	if err != nil {
		return nil, wrapError("search_text", err)
	}

	fused := fuseHybrid(vecHits, bm25Hits, db.config.Search.FusionW, db.config.Search.NormFactor, topK, threshold)
	out := make([]vectorHit, len(fused))
	for i, h := range fused {
		out[i] = vectorHit{ID: h.ID, Score: h.Score}
	}
	return db.joinLocked(ctx, out)
}

// joinLocked resolves each hit's ID back to its document (cache first, then
// a bounded fetch via IndexedStorage or a full load) and assembles
// ScoredDocument results in the hits' existing order.
func (db *DB) joinLocked(ctx context.Context, hits []vectorHit) ([]ScoredDocument, error) {
	if len(hits) == 0 {
		return nil, nil
	}
	missing := make([]string, 0)
	for _, h := range hits {
		if _, ok := db.cache[h.ID]; !ok {
			missing = append(missing, h.ID)
		}
	}
	resolved := make(map[string]Document, len(missing))
	if len(missing) > 0 {
		if is, ok := asIndexedStorage(db.storage); ok {
			docs, err := is.LoadByIDs(ctx, missing)
			if err == nil {
				resolved = docs
			}
		}
		stillMissing := make([]string, 0)
		for _, id := range missing {
			if _, ok := resolved[id]; !ok {
				stillMissing = append(stillMissing, id)
			}
		}
		if len(stillMissing) > 0 {
			all, err := db.storage.LoadAll(ctx)
			if err != nil {
				return nil, err
			}
			for _, d := range all {
				resolved[d.ID] = d
			}
		}
	}

	out := make([]ScoredDocument, 0, len(hits))
	for _, h := range hits {
		doc, ok := db.cache[h.ID]
		if !ok {
			doc, ok = resolved[h.ID]
		}
		if !ok {
			continue
		}
		out = append(out, ScoredDocument{Document: doc, Score: h.Score})
	}
	return out, nil
}
