package vecturakit

import "testing"

func TestFuseHybridCombinesAndRanks(t *testing.T) {
	vectorHits := []vectorHit{
		{ID: "a", Score: 0.9},
		{ID: "b", Score: 0.5},
	}
	bm25Hits := []bm25Hit{
		{ID: "a", Score: 5.0},
		{ID: "c", Score: 10.0},
	}
	hits := fuseHybrid(vectorHits, bm25Hits, 0.5, 10.0, 10, nil)
	if len(hits) != 3 {
		t.Fatalf("len(hits) = %d, want 3", len(hits))
	}

	byID := make(map[string]float64, len(hits))
	for _, h := range hits {
		byID[h.ID] = h.Score
	}

	wantA := 0.5*0.9 + 0.5*0.5 // normBM25(a) = 5/10 = 0.5
	if diff := byID["a"] - wantA; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("score[a] = %v, want %v", byID["a"], wantA)
	}
	wantB := 0.5 * 0.5 // no bm25 hit for b -> normBM25 = 0
	if diff := byID["b"] - wantB; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("score[b] = %v, want %v", byID["b"], wantB)
	}
	wantC := 0.5 * 1.0 // normBM25(c) = min(10/10,1) = 1, bm25-only hit
	if diff := byID["c"] - wantC; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("score[c] = %v, want %v", byID["c"], wantC)
	}

	if hits[0].ID != "c" && hits[0].ID != "a" {
		t.Errorf("unexpected top hit: %s", hits[0].ID)
	}
}

func TestFuseHybridNormalizationClampsToUnitRange(t *testing.T) {
	bm25Hits := []bm25Hit{{ID: "x", Score: 1000.0}}
	hits := fuseHybrid(nil, bm25Hits, 0.5, 10.0, 10, nil)
	if len(hits) != 1 {
		t.Fatalf("len(hits) = %d, want 1", len(hits))
	}
	want := 0.5 * 1.0
	if diff := hits[0].Score - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("score = %v, want %v (clamped to 1)", hits[0].Score, want)
	}
}

func TestFuseHybridThresholdFilters(t *testing.T) {
	vectorHits := []vectorHit{{ID: "a", Score: 0.1}, {ID: "b", Score: 0.9}}
	th := 0.5
	hits := fuseHybrid(vectorHits, nil, 1.0, 10.0, 10, &th)
	if len(hits) != 1 || hits[0].ID != "b" {
		t.Errorf("hits = %+v, want only b", hits)
	}
}

func TestFuseHybridTopKTruncation(t *testing.T) {
	vectorHits := []vectorHit{
		{ID: "a", Score: 0.9},
		{ID: "b", Score: 0.8},
		{ID: "c", Score: 0.7},
	}
	hits := fuseHybrid(vectorHits, nil, 1.0, 10.0, 2, nil)
	if len(hits) != 2 {
		t.Errorf("len(hits) = %d, want 2", len(hits))
	}
}

func TestFuseHybridEmptyInputs(t *testing.T) {
	hits := fuseHybrid(nil, nil, 0.5, 10.0, 10, nil)
	if len(hits) != 0 {
		t.Errorf("hits = %+v, want empty", hits)
	}
}
