package vecturakit

import (
	"context"
	"testing"
	"time"
)

func mustOpenFileStorage(t *testing.T) *FileStorage {
	t.Helper()
	fs := NewFileStorage(t.TempDir(), 4, NopLogger())
	if err := fs.Prepare(context.Background()); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	return fs
}

func TestFileStorageSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	fs := mustOpenFileStorage(t)

	want := Document{
		ID:        "doc-1",
		Text:      "hello world",
		Embedding: []float32{0.1, 0.2, 0.3},
		Metadata:  map[string]string{"lang": "en"},
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := fs.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	docs, err := fs.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("len(docs) = %d, want 1", len(docs))
	}
	got := docs[0]
	if got.ID != want.ID || got.Text != want.Text || got.Metadata["lang"] != "en" {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
	if len(got.Embedding) != 3 {
		t.Errorf("embedding length = %d, want 3", len(got.Embedding))
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
	}
}

func TestFileStorageUpdateOverwrites(t *testing.T) {
	ctx := context.Background()
	fs := mustOpenFileStorage(t)

	doc := Document{ID: "doc-1", Text: "v1", CreatedAt: time.Now()}
	if err := fs.Save(ctx, doc); err != nil {
		t.Fatalf("Save: %v", err)
	}
	doc.Text = "v2"
	if err := fs.Update(ctx, doc); err != nil {
		t.Fatalf("Update: %v", err)
	}

	docs, err := fs.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(docs) != 1 || docs[0].Text != "v2" {
		t.Errorf("docs = %+v, want single doc with text v2", docs)
	}
}

func TestFileStorageDeleteIsNotErrorIfAbsent(t *testing.T) {
	ctx := context.Background()
	fs := mustOpenFileStorage(t)
	if err := fs.Delete(ctx, "does-not-exist"); err != nil {
		t.Errorf("Delete of absent id should not error: %v", err)
	}
}

func TestFileStorageCount(t *testing.T) {
	ctx := context.Background()
	fs := mustOpenFileStorage(t)

	n, err := fs.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Fatalf("Count = %d, want 0", n)
	}

	docs := []Document{
		{ID: "a", Text: "a", CreatedAt: time.Now()},
		{ID: "b", Text: "b", CreatedAt: time.Now()},
	}
	if err := fs.SaveBatch(ctx, docs); err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}
	n, err = fs.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}
}

func TestFileStorageSaveBatchAndDelete(t *testing.T) {
	ctx := context.Background()
	fs := mustOpenFileStorage(t)

	docs := make([]Document, 0, 10)
	for i := 0; i < 10; i++ {
		docs = append(docs, Document{ID: string(rune('a' + i)), Text: "x", CreatedAt: time.Now()})
	}
	if err := fs.SaveBatch(ctx, docs); err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}

	loaded, err := fs.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(loaded) != 10 {
		t.Fatalf("len(loaded) = %d, want 10", len(loaded))
	}

	if err := fs.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	loaded, err = fs.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(loaded) != 9 {
		t.Errorf("len(loaded) = %d, want 9 after delete", len(loaded))
	}
}

func TestFileStorageLoadAllOnMissingDirectory(t *testing.T) {
	fs := NewFileStorage(t.TempDir()+"/does-not-exist", 4, NopLogger())
	docs, err := fs.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll on missing dir should not error: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("docs = %+v, want empty", docs)
	}
}
