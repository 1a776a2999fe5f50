// Package vecturakit is an embeddable, on-device vector database for
// semantic and hybrid retrieval over a moderate text corpus (hundreds to
// ~100K documents). A caller supplies raw text; the facade embeds it,
// stores the text and embedding, and answers nearest-neighbor
// queries by cosine similarity, BM25 lexical scoring, or a weighted fusion
// of both.
//
// # Quick Start
//
//	import (
//	    "context"
//	    "github.com/vecturakit/vecturakit"
//	)
//
//	func main() {
//	    ctx := context.Background()
//	    cfg := vecturakit.DefaultConfig("notes")
//	    db, _ := vecturakit.Open(ctx, cfg, vecturakit.NewMockEmbedder(128), nil)
//	    defer db.Close()
//
//	    id, _ := db.Add(ctx, "Go is an open source programming language", "")
//	    results, _ := db.SearchText(ctx, "open source languages", vecturakit.SearchOptions{TopK: 5})
//	    _ = id
//	    _ = results
//	}
//
// # Storage and memory strategy
//
// The default storage is one JSON file per document under the platform's
// per-user document directory; a SQLite-backed alternative lives in
// sqlstorage/. Config.Strategy picks between keeping every normalized
// embedding resident (FullMemoryStrategy) and a two-stage indexed mode
// that asks storage for an approximate candidate set first
// (IndexedStrategy, AutomaticStrategy).
//
// # Capabilities
//
// Embedder, Storage, and IndexedStorage are small interfaces resolved by
// composition at Open - the core never depends on a concrete model or a
// concrete backend.
package vecturakit
