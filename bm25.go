package vecturakit

import (
	"math"
	"sort"
	"sync"
)

// bm25Index is the per-database BM25 lexical index (C3). All operations are
// safe to call concurrently since the facade already serializes mutation,
// but the index itself additionally guards its maps with a mutex so search
// (read) and insert/remove (write) can be reasoned about independently of
// facade locking.
//
// Grounded on pkg/semantic-router/sparse.go's BM25Encoder, restructured from
// a one-shot Fit() into an incremental index: tokens and lengths are cached
// per document so insert_or_update/remove never retokenize a surviving
// document, and document-frequency/mean-length bookkeeping is maintained
// incrementally rather than recomputed over the whole corpus.
type bm25Index struct {
	mu sync.RWMutex

	k1 float64
	b  float64

	tokens  map[string][]string // docID -> cached token sequence
	length  map[string]int      // docID -> token count
	docFreq map[string]int      // term -> number of documents containing it
	totalLen int64
	n        int // number of indexed documents
}

// newBM25Index builds state from an initial document set. Duplicate IDs
// resolve "last wins" (Open Question (a)); tokens are cached at construction
// so later removal doesn't retokenize.
func newBM25Index(k1, b float64, docs []Document) *bm25Index {
	idx := &bm25Index{
		k1:      k1,
		b:       b,
		tokens:  make(map[string][]string),
		length:  make(map[string]int),
		docFreq: make(map[string]int),
	}
	for _, d := range docs {
		idx.insertOrUpdateLocked(d)
	}
	return idx
}

// insertOrUpdate is an idempotent upsert: if id already exists, its term
// contributions are subtracted before the new ones are added.
func (idx *bm25Index) insertOrUpdate(doc Document) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.insertOrUpdateLocked(doc)
}

func (idx *bm25Index) insertOrUpdateLocked(doc Document) {
	if _, exists := idx.tokens[doc.ID]; exists {
		idx.removeLocked(doc.ID)
	}
	toks := tokenize(doc.Text)
	idx.tokens[doc.ID] = toks
	idx.length[doc.ID] = len(toks)
	idx.totalLen += int64(len(toks))
	idx.n++

	seen := make(map[string]bool, len(toks))
	for _, t := range toks {
		if !seen[t] {
			seen[t] = true
			idx.docFreq[t]++
		}
	}
}

// remove deletes a document's contribution; a no-op if id is absent.
func (idx *bm25Index) remove(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(id)
}

func (idx *bm25Index) removeLocked(id string) {
	toks, exists := idx.tokens[id]
	if !exists {
		return
	}
	delete(idx.tokens, id)
	idx.totalLen -= int64(idx.length[id])
	delete(idx.length, id)
	idx.n--

	seen := make(map[string]bool, len(toks))
	for _, t := range toks {
		if seen[t] {
			continue
		}
		seen[t] = true
		if df := idx.docFreq[t]; df <= 1 {
			delete(idx.docFreq, t)
		} else {
			idx.docFreq[t] = df - 1
		}
	}
}

// contains reports whether id is currently indexed.
func (idx *bm25Index) contains(id string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.tokens[id]
	return ok
}

// len reports the number of indexed documents.
func (idx *bm25Index) len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.n
}

// unload clears all maps; the index must be rebuilt (via newBM25Index or a
// sequence of insertOrUpdate calls) before it is useful again.
func (idx *bm25Index) unload() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.tokens = make(map[string][]string)
	idx.length = make(map[string]int)
	idx.docFreq = make(map[string]int)
	idx.totalLen = 0
	idx.n = 0
}

type bm25Hit struct {
	ID    string
	Score float64
}

// clampLog is the floor applied to the argument of log() in the IDF
// formula so a term present in every document doesn't produce -Inf, and
// avgLenFloor is the floor applied to len_avg in the denominator (§4.3,
// "Numerical edge rules").
const (
	clampLog    = 1e-9
	avgLenFloor = 1e-9
)

// search tokenizes the query and scores every indexed document by BM25,
// returning the top_k highest-scoring hits with score > 0, descending.
func (idx *bm25Index) search(query string, topK int) []bm25Hit {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.n == 0 {
		return nil
	}
	avgLen := float64(idx.totalLen) / float64(idx.n)
	if avgLen == 0 {
		return nil
	}
	if avgLen < avgLenFloor {
		avgLen = avgLenFloor
	}

	qTerms := tokenize(query)
	if len(qTerms) == 0 {
		return nil
	}
	qFreq := make(map[string]int, len(qTerms))
	for _, t := range qTerms {
		qFreq[t]++
	}

	n := float64(idx.n)
	idf := make(map[string]float64, len(qFreq))
	for t := range qFreq {
		df := float64(idx.docFreq[t])
		arg := (n - df + 0.5) / (df + 0.5)
		if arg < clampLog {
			arg = clampLog
		}
		// log(1 + arg) keeps idf positive, so a term present in most or all
		// documents still contributes a positive score.
		idf[t] = math.Log(1 + arg)
	}

	hits := make([]bm25Hit, 0, idx.n)
	for id, toks := range idx.tokens {
		docLen := float64(idx.length[id])
		var score float64
		if len(toks) > 0 {
			freq := make(map[string]int, len(qFreq))
			for _, t := range toks {
				if _, want := qFreq[t]; want {
					freq[t]++
				}
			}
			for t, tf := range freq {
				if tf == 0 {
					continue
				}
				num := float64(tf) * (idx.k1 + 1)
				den := float64(tf) + idx.k1*(1-idx.b+idx.b*(docLen/avgLen))
				score += idf[t] * (num / den)
			}
		}
		if score > 0 {
			hits = append(hits, bm25Hit{ID: id, Score: score})
		}
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if topK >= 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}
