package vecturakit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// fileMode/dirMode are the most restrictive per-user protection the file
// format calls for: owner read/write for files, owner rwx for a directory
// this package creates.
const (
	fileMode = 0o600
	dirMode  = 0o700
)

// fileDocument is the on-disk JSON shape for the default storage: field
// names and types match §6's persisted file format exactly so files remain
// readable (and writable) independent of this struct's Go-side layout.
type fileDocument struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Embedding []float32         `json:"embedding"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt string            `json:"createdAt"`
}

// FileStorage is the default Storage implementation: one JSON file per
// document at <dir>/<uuid>.json. Writes are atomic (temp file + rename);
// SaveBatch and LoadAll use a bounded sliding-window concurrency pattern
// (§4.7) rather than one goroutine per file.
type FileStorage struct {
	dir        string
	maxConcurrentFileOps int
	logger     Logger
}

// NewFileStorage returns a FileStorage rooted at dir. maxConcurrentFileOps
// bounds SaveBatch/LoadAll fan-out; values <= 0 fall back to 50, matching
// the file-backed default's documented default (§4.7).
func NewFileStorage(dir string, maxConcurrentFileOps int, logger Logger) *FileStorage {
	if maxConcurrentFileOps <= 0 {
		maxConcurrentFileOps = 50
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &FileStorage{dir: dir, maxConcurrentFileOps: maxConcurrentFileOps, logger: logger}
}

var _ Storage = (*FileStorage)(nil)

func (s *FileStorage) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Prepare ensures the backing directory exists; idempotent.
func (s *FileStorage) Prepare(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, dirMode); err != nil {
		return wrapError("prepare", err)
	}
	info, err := os.Stat(s.dir)
	if err != nil {
		return wrapError("prepare", err)
	}
	if info.Mode().Perm()&0o077 != 0 {
		s.logger.Warn("storage directory permissions wider than expected", "dir", s.dir, "mode", info.Mode().Perm())
	}
	return nil
}

// Save atomically creates or replaces the file for doc.
func (s *FileStorage) Save(ctx context.Context, doc Document) error {
	if err := s.writeFile(doc); err != nil {
		return wrapError("save", err)
	}
	return nil
}

// Update is equivalent to Save on the default storage.
func (s *FileStorage) Update(ctx context.Context, doc Document) error {
	return s.Save(ctx, doc)
}

func (s *FileStorage) writeFile(doc Document) error {
	fd := fileDocument{
		ID:        doc.ID,
		Text:      doc.Text,
		Embedding: doc.Embedding,
		Metadata:  doc.Metadata,
		CreatedAt: doc.CreatedAt.UTC().Format(rfc3339Nano),
	}
	data, err := json.MarshalIndent(fd, "", "  ")
	if err != nil {
		return err
	}

	final := s.path(doc.ID)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, fileMode); err != nil {
		return err
	}
	if err := os.Chmod(tmp, fileMode); err != nil {
		os.Remove(tmp)
		return err
	}
	if info, err := os.Stat(tmp); err == nil && info.Mode().Perm() != fileMode {
		s.logger.Warn("file permissions mismatch after write", "path", tmp, "mode", info.Mode().Perm())
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

const rfc3339Nano = "2006-01-02T15:04:05.999999999Z07:00"

// Delete removes the file for id; not an error if absent.
func (s *FileStorage) Delete(ctx context.Context, id string) error {
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return wrapError("delete", err)
	}
	return nil
}

// Count lists the directory and counts *.json entries; a native count is
// not available for a flat-file backend so this is the override point §4.6
// describes as optional (directory listing qualifies as "native" here).
func (s *FileStorage) Count(ctx context.Context) (int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, wrapError("count", err)
	}
	var n int64
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			n++
		}
	}
	return n, nil
}

// LoadAll scans the directory for *.json files and decodes each in bounded
// concurrency batches. Per-file failures are logged; the call fails overall
// if any file failed to decode (§4.6, default policy).
func (s *FileStorage) LoadAll(ctx context.Context) ([]Document, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, wrapError("load_all", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	docs := make([]Document, len(names))
	failures := make([]error, len(names))
	failedIDs := make([]string, 0)

	sem := semaphore.NewWeighted(int64(s.maxConcurrentFileOps))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		i, name := i, name
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			doc, err := s.readFile(name)
			if err != nil {
				failures[i] = err
				return nil // collected, not propagated: partial results retained
			}
			docs[i] = doc
			return nil
		})
	}
	_ = g.Wait()

	var ok []Document
	var failedCount int
	for i, d := range docs {
		if failures[i] != nil {
			failedCount++
			failedIDs = append(failedIDs, strings.TrimSuffix(names[i], ".json"))
			s.logger.Warn("failed to decode document", "file", names[i], "error", failures[i])
			continue
		}
		ok = append(ok, d)
	}
	if failedCount > 0 {
		return ok, wrapError("load_all", &LoadFailedError{
			Reason:    "one or more documents failed to decode",
			Failed:    failedCount,
			Attempted: len(names),
		})
	}
	return ok, nil
}

func (s *FileStorage) readFile(name string) (Document, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return Document{}, err
	}
	var fd fileDocument
	if err := json.Unmarshal(data, &fd); err != nil {
		return Document{}, err
	}
	createdAt, err := parseTimestamp(fd.CreatedAt)
	if err != nil {
		return Document{}, fmt.Errorf("invalid createdAt: %w", err)
	}
	return Document{
		ID:        fd.ID,
		Text:      fd.Text,
		Embedding: fd.Embedding,
		Metadata:  fd.Metadata,
		CreatedAt: createdAt,
	}, nil
}

// SaveBatch persists docs in bounded-concurrency batches (§4.7): it seeds
// exactly maxConcurrentFileOps tasks and starts a new one each time one
// completes, until the input is exhausted.
func (s *FileStorage) SaveBatch(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	errs := make([]error, len(docs))
	sem := semaphore.NewWeighted(int64(s.maxConcurrentFileOps))
	g, gctx := errgroup.WithContext(ctx)
	for i, doc := range docs {
		i, doc := i, doc
		if err := sem.Acquire(gctx, 1); err != nil {
			errs[i] = err
			continue
		}
		g.Go(func() error {
			defer sem.Release(1)
			if err := s.writeFile(doc); err != nil {
				errs[i] = err
			}
			return nil
		})
	}
	_ = g.Wait()

	var failedIDs []string
	var collected []error
	successCount := 0
	for i, err := range errs {
		if err != nil {
			failedIDs = append(failedIDs, docs[i].ID)
			collected = append(collected, err)
		} else {
			successCount++
		}
	}
	if len(collected) > 0 {
		return wrapError("save_batch", &BatchError{
			FailedIDs:      failedIDs,
			Errors:         collected,
			PartialSuccess: successCount > 0,
		})
	}
	return nil
}
