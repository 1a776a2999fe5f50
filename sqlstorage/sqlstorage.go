// Package sqlstorage is a reference alternative Storage/IndexedStorage
// implementation backed by modernc.org/sqlite (pure Go, no cgo). Concrete
// alternative storage back-ends are out of scope for the core per
// spec §1, but the IndexedStorage capability must be exercised by
// something concrete to prove out the contract - this is that something.
//
// Grounded on the teacher's store.go/pkg/core/store_init.go: WAL journal
// mode, a bounded busy timeout, and a bounded connection pool, adapted from
// the teacher's multi-table RAG schema (collections/documents/embeddings/
// sessions/messages) down to the single flat documents table this core's
// simpler per-document model needs. Candidate search is backed by an
// in-memory internal/annindex HNSW graph rebuilt from the table at Prepare
// time, since SQLite itself has no native ANN operator.
package sqlstorage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vecturakit/vecturakit"
	"github.com/vecturakit/vecturakit/internal/annindex"
)

// Store is a SQLite-backed Storage and IndexedStorage implementation. It
// satisfies vecturakit.Storage and vecturakit.IndexedStorage directly (the
// root package has no dependency on this one, so the import is one-way).
type Store struct {
	db       *sql.DB
	ann      *annindex.HNSW
	annReady bool
}

var (
	_ vecturakit.Storage        = (*Store)(nil)
	_ vecturakit.IndexedStorage = (*Store)(nil)
)

// Document is an alias so the rest of this file can read naturally without
// qualifying every reference with the root package name.
type Document = vecturakit.Document

// Open opens (creating if absent) a SQLite database at path with the
// connection settings the teacher's store_init.go uses: WAL journal mode,
// a busy timeout so concurrent writers block instead of failing outright,
// and a bounded pool sized for an embedded, single-process workload.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstorage: open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(2 * time.Hour)

	s := &Store{db: db, ann: annindex.New(16, 200, 1)}
	if err := s.createTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) createTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	text       TEXT NOT NULL,
	embedding  BLOB NOT NULL,
	metadata   TEXT,
	created_at TEXT NOT NULL
);`)
	return err
}

// Prepare rebuilds the in-memory ANN graph from the documents table; it is
// idempotent and safe to call repeatedly (e.g. after bulk loads).
func (s *Store) Prepare(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding FROM documents`)
	if err != nil {
		return fmt.Errorf("sqlstorage: prepare: %w", err)
	}
	defer rows.Close()

	s.ann = annindex.New(16, 200, 1)
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return fmt.Errorf("sqlstorage: prepare: %w", err)
		}
		s.ann.Insert(id, decodeVector(blob))
	}
	s.annReady = true
	return rows.Err()
}

func encodeVector(v []float32) []byte {
	b, _ := json.Marshal(v)
	return b
}

func decodeVector(b []byte) []float32 {
	var v []float32
	_ = json.Unmarshal(b, &v)
	return v
}

func encodeMetadata(m map[string]string) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

func decodeMetadata(b []byte) (map[string]string, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Save creates or replaces doc, and keeps the ANN graph in sync.
func (s *Store) Save(ctx context.Context, doc Document) error {
	meta, err := encodeMetadata(doc.Metadata)
	if err != nil {
		return fmt.Errorf("sqlstorage: save: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO documents (id, text, embedding, metadata, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET text=excluded.text, embedding=excluded.embedding, metadata=excluded.metadata, created_at=excluded.created_at`,
		doc.ID, doc.Text, encodeVector(doc.Embedding), meta, doc.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("sqlstorage: save: %w", err)
	}
	if s.annReady {
		s.ann.Insert(doc.ID, doc.Embedding)
	}
	return nil
}

// Update is equivalent to Save for this backend; a real production store
// might prefer a plain UPDATE to avoid the upsert's extra index lookup, but
// at this scale (hundreds to ~100K rows) the difference is not worth a
// second code path.
func (s *Store) Update(ctx context.Context, doc Document) error {
	return s.Save(ctx, doc)
}

// SaveBatch wraps the batch in a single transaction so a partial failure
// doesn't leave some of the batch committed.
func (s *Store) SaveBatch(ctx context.Context, docs []Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstorage: save_batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO documents (id, text, embedding, metadata, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET text=excluded.text, embedding=excluded.embedding, metadata=excluded.metadata, created_at=excluded.created_at`)
	if err != nil {
		return fmt.Errorf("sqlstorage: save_batch: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		meta, err := encodeMetadata(doc.Metadata)
		if err != nil {
			return fmt.Errorf("sqlstorage: save_batch: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, doc.ID, doc.Text, encodeVector(doc.Embedding), meta, doc.CreatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("sqlstorage: save_batch: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstorage: save_batch: %w", err)
	}
	if s.annReady {
		for _, doc := range docs {
			s.ann.Insert(doc.ID, doc.Embedding)
		}
	}
	return nil
}

// Delete removes id from both the table and the ANN graph.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlstorage: delete: %w", err)
	}
	if s.annReady {
		_ = s.ann.Delete(id)
	}
	return nil
}

// Count returns a native row count.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlstorage: count: %w", err)
	}
	return n, nil
}

// LoadAll returns every row; SQLite backs this with a native query rather
// than the file-backed default's directory scan + bounded fan-out.
func (s *Store) LoadAll(ctx context.Context) ([]Document, error) {
	return s.loadWhere(ctx, `SELECT id, text, embedding, metadata, created_at FROM documents ORDER BY created_at`)
}

// LoadRange pages through documents ordered by creation time.
func (s *Store) LoadRange(ctx context.Context, offset, limit int) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, text, embedding, metadata, created_at FROM documents ORDER BY created_at LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("sqlstorage: load_range: %w", err)
	}
	return scanDocuments(rows)
}

func (s *Store) loadWhere(ctx context.Context, query string, args ...any) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstorage: load: %w", err)
	}
	return scanDocuments(rows)
}

func scanDocuments(rows *sql.Rows) ([]Document, error) {
	defer rows.Close()
	var docs []Document
	for rows.Next() {
		var (
			id, text, createdAt string
			embBlob, metaBlob   []byte
		)
		if err := rows.Scan(&id, &text, &embBlob, &metaBlob, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlstorage: scan: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("sqlstorage: scan: invalid created_at: %w", err)
		}
		meta, err := decodeMetadata(metaBlob)
		if err != nil {
			return nil, fmt.Errorf("sqlstorage: scan: invalid metadata: %w", err)
		}
		docs = append(docs, Document{ID: id, Text: text, Embedding: decodeVector(embBlob), Metadata: meta, CreatedAt: ts})
	}
	return docs, rows.Err()
}

// LoadByIDs performs a sparse fetch keyed by ID; IDs not found are simply
// absent from the returned map.
func (s *Store) LoadByIDs(ctx context.Context, ids []string) (map[string]Document, error) {
	out := make(map[string]Document, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := make([]any, len(ids))
	query := `SELECT id, text, embedding, metadata, created_at FROM documents WHERE id IN (`
	for i, id := range ids {
		if i > 0 {
			query += ","
		}
		query += "?"
		placeholders[i] = id
	}
	query += ")"
	docs, err := s.loadWhere(ctx, query, placeholders...)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		out[d.ID] = d
	}
	return out, nil
}

// SearchCandidates returns an approximate prefilter from the in-memory ANN
// graph. supported is false only if Prepare hasn't run yet - once it has,
// this backend always answers (possibly with zero candidates on an empty
// table), distinguishing "unsupported" from "no candidates" per the
// IndexedStorage contract.
func (s *Store) SearchCandidates(ctx context.Context, query []float32, topK, prefilterSize int) ([]string, bool, error) {
	if !s.annReady {
		return nil, false, nil
	}
	n := prefilterSize
	if n <= 0 {
		n = topK
	}
	ef := n * 2
	if ef < 50 {
		ef = 50
	}
	return s.ann.Search(query, n, ef), true, nil
}

// Close releases the underlying *sql.DB.
func (s *Store) Close() error {
	return s.db.Close()
}
