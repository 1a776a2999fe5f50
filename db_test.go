package vecturakit

import (
	"context"
	"errors"
	"testing"
)

func openTestDB(t *testing.T, dim int) *DB {
	t.Helper()
	cfg := DefaultConfig("testdb")
	cfg.Dir = t.TempDir()
	cfg.Dimension = dim
	storage := NewFileStorage(cfg.storageDir(t.TempDir()), 4, NopLogger())
	db, err := Open(context.Background(), cfg, NewMockEmbedder(dim), storage)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return db
}

func TestDBAddAndSearchVector(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, 16)

	id, err := db.Add(ctx, "hello world", "")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if id == "" {
		t.Fatal("Add returned empty id")
	}

	query, err := db.embed(ctx, "hello world")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	results, err := db.SearchVector(ctx, query, SearchOptions{TopK: 5})
	if err != nil {
		t.Fatalf("SearchVector: %v", err)
	}
	if len(results) != 1 || results[0].ID != id {
		t.Errorf("SearchVector results = %+v, want the added document first", results)
	}
}

func TestDBAddUpsertLastWins(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, 16)

	if _, err := db.Add(ctx, "first version", "custom-id"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := db.Add(ctx, "second version", "custom-id"); err != nil {
		t.Fatalf("Add (overwrite): %v", err)
	}

	n, err := db.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("Count = %d, want 1 after upsert", n)
	}

	docs, err := db.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(docs) != 1 || docs[0].Text != "second version" {
		t.Errorf("docs = %+v, want last-wins overwrite", docs)
	}
}

func TestDBUpdatePreservesCreatedAt(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, 16)

	id, err := db.Add(ctx, "original", "")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	before, err := db.fetchLocked(ctx, id)
	if err != nil {
		t.Fatalf("fetchLocked: %v", err)
	}

	if err := db.Update(ctx, id, "updated text"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	after, err := db.fetchLocked(ctx, id)
	if err != nil {
		t.Fatalf("fetchLocked: %v", err)
	}
	if after.Text != "updated text" {
		t.Errorf("Text = %q, want %q", after.Text, "updated text")
	}
	if !after.CreatedAt.Equal(before.CreatedAt) {
		t.Errorf("CreatedAt changed on Update: before=%v after=%v", before.CreatedAt, after.CreatedAt)
	}
}

func TestDBDeleteRemovesFromBM25AndStorage(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, 16)

	id, err := db.Add(ctx, "hello world", "")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !db.bm25.contains(id) {
		t.Fatal("expected document indexed in BM25 after Add")
	}
	if err := db.Delete(ctx, []string{id}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if db.bm25.contains(id) {
		t.Error("document still present in BM25 after Delete")
	}
	n, err := db.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Errorf("Count = %d, want 0 after Delete", n)
	}
}

func TestDBReset(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, 16)

	if _, err := db.AddBatch(ctx, []string{"a", "b", "c"}, nil); err != nil {
		t.Fatalf("AddBatch: %v", err)
	}
	if err := db.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	n, err := db.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Errorf("Count = %d, want 0 after Reset", n)
	}
	if db.bm25.len() != 0 {
		t.Errorf("bm25.len() = %d, want 0 after Reset", db.bm25.len())
	}
}

func TestDBSearchTextHybrid(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, 16)

	if _, err := db.AddBatch(ctx, []string{
		"the quick brown fox",
		"a slow green turtle",
		"quick quick quick",
	}, nil); err != nil {
		t.Fatalf("AddBatch: %v", err)
	}

	results, err := db.SearchText(ctx, "quick", SearchOptions{TopK: 3})
	if err != nil {
		t.Fatalf("SearchText: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("SearchText returned no results")
	}
	for i := 1; i < len(results); i++ {
		if results[i-1].Score < results[i].Score {
			t.Errorf("results not sorted descending: %+v", results)
		}
	}
}

func TestDBClosedRejectsOperations(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, 16)
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := db.Add(ctx, "text", ""); err == nil {
		t.Error("Add after Close should fail")
	}
}

func TestDBCheckDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, 16)
	if _, err := db.Add(ctx, "hello", ""); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := db.checkDimension(8); err == nil {
		t.Fatal("expected dimension mismatch error")
	} else if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("error chain missing ErrDimensionMismatch: %v", err)
	}
}

func TestDBFetchLockedNotFound(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, 16)
	if _, err := db.fetchLocked(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("fetchLocked(missing) error = %v, want ErrNotFound", err)
	}
}
