package vecturakit

import "context"

// Storage is the minimum persistence capability the facade consumes (C6).
// Implementations are resolved by composition at Open, not subclassing
// (DESIGN NOTES, "Capability abstraction"). The file-backed default lives in
// filestorage.go; sqlstorage/ ships a SQL-backed alternative exercising the
// same contract.
type Storage interface {
	// Prepare is idempotent; it ensures the backing location exists.
	Prepare(ctx context.Context) error

	// LoadAll returns every persisted document. The default file-backed
	// implementation logs per-document decode failures but fails the
	// overall call if any document failed to load.
	LoadAll(ctx context.Context) ([]Document, error)

	// Save creates or replaces doc atomically.
	Save(ctx context.Context, doc Document) error

	// SaveBatch persists many documents; implementations may optimize for
	// bounded concurrency. There is no shared default: FileStorage writes
	// with a bounded concurrent window, sqlstorage uses one transaction.
	SaveBatch(ctx context.Context, docs []Document) error

	// Delete removes a document by ID. Not an error if absent.
	Delete(ctx context.Context, id string) error

	// Update is equivalent to Save on the default; implementations may
	// optimize (e.g. an UPDATE statement instead of INSERT OR REPLACE).
	Update(ctx context.Context, doc Document) error

	// Count returns the total document count. FileStorage counts the *.json
	// entries in its directory; sqlstorage runs a native COUNT(*).
	Count(ctx context.Context) (int64, error)
}

// IndexedStorage is the optional extension a Storage may additionally
// implement to support two-stage (indexed) search and pagination.
type IndexedStorage interface {
	Storage

	// LoadRange returns a page of documents, for listing without loading
	// the entire corpus.
	LoadRange(ctx context.Context, offset, limit int) ([]Document, error)

	// LoadByIDs performs a sparse fetch of specific documents, keyed by ID.
	// IDs absent from storage are simply omitted from the result map.
	LoadByIDs(ctx context.Context, ids []string) (map[string]Document, error)

	// SearchCandidates asks for an approximate prefilter of at most
	// prefilterSize candidate IDs for query. supported=false signals the
	// capability is unavailable for this call (e.g. the ANN structure
	// hasn't been built yet); supported=true with an empty slice is a
	// valid "no candidates" answer. The two are deliberately distinguished
	// by a named return rather than nil-vs-empty-slice (Open Question (c)).
	SearchCandidates(ctx context.Context, query []float32, topK, prefilterSize int) (candidates []string, supported bool, err error)
}

// asIndexedStorage is a small helper used by the facade to probe whether a
// configured Storage also satisfies IndexedStorage, without every caller
// needing to repeat the type assertion.
func asIndexedStorage(s Storage) (IndexedStorage, bool) {
	is, ok := s.(IndexedStorage)
	return is, ok
}
