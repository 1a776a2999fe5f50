package vecturakit

import (
	"context"
	"errors"
	"sort"
)

// searchEngine implements C4: single-stage cosine search over a fully
// resident, pre-normalized corpus, and two-stage indexed search when the
// configured storage supports IndexedStorage.SearchCandidates.
type searchEngine struct {
	dim int
}

// vectorHit is an internal (id, score) pair before it's joined back with
// document text for the final ScoredDocument result.
type vectorHit struct {
	ID    string
	Score float64
}

// searchFullMemory computes cosine similarity of query against every row in
// docs (both assumed pre-normalized), filters by threshold, sorts
// descending, and returns the first topK. Ties preserve the input order
// (stable sort), matching the "stable tiebreak" invariant.
func (e *searchEngine) searchFullMemory(query []float32, ids []string, vectors [][]float32, topK int, threshold *float64) ([]vectorHit, error) {
	if len(query) != e.dim {
		return nil, wrapError("search_vector", &DimensionMismatchError{Expected: e.dim, Actual: len(query)})
	}
	n := len(ids)
	if n == 0 {
		return nil, nil
	}

	buf := make([]float32, n*e.dim)
	for i, v := range vectors {
		copy(buf[i*e.dim:(i+1)*e.dim], v)
	}
	scores := cosineBatch(buf, n, e.dim, query, nil)

	hits := make([]vectorHit, 0, n)
	for i, id := range ids {
		s := float64(scores[i])
		if threshold != nil && s < *threshold {
			continue
		}
		hits = append(hits, vectorHit{ID: id, Score: s})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if topK >= 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// candidateLoader abstracts the stage-2 document load so searchIndexed
// doesn't need to know about storage's concrete fetch.
type candidateLoader func(ctx context.Context, ids []string) (map[string]Document, error)

// searchIndexed performs the two-stage indexed search (§4.4): ask
// searchCandidates for candidate IDs (the facade's callback requests
// topK*mult of them), load those documents with a single call to load (the
// load is not split into batches), rescore exactly, then apply the same
// filter/sort/truncate as full-memory mode. The caller is responsible for falling back to
// searchFullMemory when storage doesn't support IndexedStorage at all; this
// function assumes the capability exists.
func (e *searchEngine) searchIndexed(
	ctx context.Context,
	query []float32,
	topK int,
	threshold *float64,
	searchCandidates func(ctx context.Context, query []float32, topK, prefilterSize int) ([]string, bool, error),
	load candidateLoader,
) ([]vectorHit, error) {
	if len(query) != e.dim {
		return nil, wrapError("search_vector", &DimensionMismatchError{Expected: e.dim, Actual: len(query)})
	}

	candidateIDs, supported, err := searchCandidates(ctx, query, topK, topK)
	if err != nil {
		return nil, wrapError("search_vector", err)
	}
	if !supported {
		return nil, errUnsupportedCandidates
	}
	if len(candidateIDs) == 0 {
		return nil, nil
	}

	docs, err := load(ctx, candidateIDs)
	if err != nil {
		return nil, wrapError("search_vector", err)
	}

	hits := make([]vectorHit, 0, len(docs))
	for _, id := range candidateIDs {
		doc, ok := docs[id]
		if !ok {
			continue
		}
		s := float64(cosineSimilarity(query, doc.Embedding))
		if threshold != nil && s < *threshold {
			continue
		}
		hits = append(hits, vectorHit{ID: id, Score: s})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if topK >= 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// errUnsupportedCandidates signals the engine must fall back to full-memory
// search over the whole corpus; it is sentinel-compared by the facade, not
// surfaced to callers.
var errUnsupportedCandidates = errors.New("search: candidates unsupported")
