package vecturakit

import "sort"

// hybridHit is the fused result of the vector and BM25 branches before it is
// joined back with document text.
type hybridHit struct {
	ID    string
	Score float64
}

// fuseHybrid implements C5's score fusion (§4.5, steps 4-7): normalize BM25
// scores into [0,1], combine with the vector scores under weight w, include
// BM25-only hits that the vector stage missed, apply the optional
// threshold, sort descending, and return the first topK.
//
// Grounded on pkg/semantic-router/hybrid.go's HybridRouter.alpha weighting
// (combinedScore = alpha*dense + (1-alpha)*sparse), generalized here from
// route-matching to top-K retrieval fusion over a document corpus.
func fuseHybrid(vectorHits []vectorHit, bm25Hits []bm25Hit, w, normFactor float64, topK int, threshold *float64) []hybridHit {
	normBM25 := make(map[string]float64, len(bm25Hits))
	for _, h := range bm25Hits {
		v := h.Score / normFactor
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		normBM25[h.ID] = v
	}

	seen := make(map[string]bool, len(vectorHits))
	hits := make([]hybridHit, 0, len(vectorHits)+len(bm25Hits))

	for _, v := range vectorHits {
		seen[v.ID] = true
		score := w*v.Score + (1-w)*normBM25[v.ID]
		hits = append(hits, hybridHit{ID: v.ID, Score: score})
	}
	for _, b := range bm25Hits {
		if seen[b.ID] {
			continue
		}
		score := (1 - w) * normBM25[b.ID]
		hits = append(hits, hybridHit{ID: b.ID, Score: score})
	}

	if threshold != nil {
		filtered := hits[:0]
		for _, h := range hits {
			if h.Score >= *threshold {
				filtered = append(filtered, h)
			}
		}
		hits = filtered
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if topK >= 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}
