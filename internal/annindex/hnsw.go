// Package annindex is a from-scratch, pure-Go approximate nearest-neighbor
// candidate index. It backs sqlstorage's SearchCandidates hook - the "does
// not mandate a specific ANN algorithm" extension point the storage
// capability contract leaves open.
//
// Adapted from pkg/index/hnsw.go, trimmed to the subset the
// IndexedStorage.SearchCandidates contract needs: insert, delete (soft,
// matching the teacher), and approximate top-K by ID. Quantization and
// gob (de)serialization were dropped - the reference storage rebuilds the
// index from the documents table on each process start rather than
// persisting the graph itself.
package annindex

import (
	"container/heap"
	"errors"
	"math"
	"math/rand"
	"sync"
)

// Node is a single point in the graph.
type Node struct {
	ID        string
	Vector    []float32
	Deleted   bool
	Level     int
	Neighbors [][]string
}

// HNSW is a Hierarchical Navigable Small World index over cosine distance.
type HNSW struct {
	M              int
	MaxM           int
	EfConstruction int

	mu         sync.RWMutex
	nodes      map[string]*Node
	entryPoint string
	rng        *rand.Rand
}

// New builds an index with the given fan-out (M) and construction-time
// candidate list size (efConstruction).
func New(m, efConstruction int, seed int64) *HNSW {
	return &HNSW{
		M:              m,
		MaxM:           m * 2,
		EfConstruction: efConstruction,
		nodes:          make(map[string]*Node),
		rng:            rand.New(rand.NewSource(seed)),
	}
}

func (h *HNSW) distance(query []float32, node *Node) float32 {
	return cosineDistance(query, node.Vector)
}

func cosineDistance(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return float32(1 - dot/(math.Sqrt(na)*math.Sqrt(nb)))
}

func (h *HNSW) selectLevel() int {
	level := 0
	for h.rng.Float64() < 0.5 && level < 16 {
		level++
	}
	return level
}

// Insert adds id/vector to the graph. Re-inserting an existing id replaces
// its node with one holding the new vector.
func (h *HNSW) Insert(id string, vector []float32) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.nodes[id]; exists {
		h.deleteLocked(id)
	}

	level := h.selectLevel()
	node := &Node{ID: id, Vector: vector, Level: level, Neighbors: make([][]string, level+1)}
	for i := range node.Neighbors {
		node.Neighbors[i] = []string{}
	}
	h.nodes[id] = node

	if h.entryPoint == "" {
		h.entryPoint = id
		return
	}

	entry := h.nodes[h.entryPoint]
	curr := []string{h.entryPoint}
	for lc := entry.Level; lc > level; lc-- {
		curr = h.searchLayer(vector, curr, 1, lc)
	}
	for lc := level; lc >= 0; lc-- {
		m := h.M
		if lc == 0 {
			m = h.MaxM
		}
		candidates := h.searchLayer(vector, curr, h.EfConstruction, lc)
		neighbors := h.selectNeighbors(vector, candidates, m)
		node.Neighbors[lc] = neighbors
		for _, nb := range neighbors {
			h.connect(nb, id, lc)
		}
		curr = neighbors
	}
	if level > h.nodes[h.entryPoint].Level {
		h.entryPoint = id
	}
}

func (h *HNSW) connect(from, to string, layer int) {
	node, ok := h.nodes[from]
	if !ok || layer >= len(node.Neighbors) {
		return
	}
	for _, n := range node.Neighbors[layer] {
		if n == to {
			return
		}
	}
	node.Neighbors[layer] = append(node.Neighbors[layer], to)
}

func (h *HNSW) searchLayer(query []float32, entryPoints []string, ef, layer int) []string {
	visited := make(map[string]bool)
	candidates := &distHeap{}
	dynamic := &distHeap{}

	for _, p := range entryPoints {
		node, ok := h.nodes[p]
		if !ok {
			continue
		}
		d := h.distance(query, node)
		heap.Push(candidates, &heapItem{id: p, dist: d})
		heap.Push(dynamic, &heapItem{id: p, dist: -d})
		visited[p] = true
	}

	for candidates.Len() > 0 {
		if dynamic.Len() > 0 && (*candidates)[0].dist > -(*dynamic)[0].dist {
			break
		}
		current := heap.Pop(candidates).(*heapItem)
		node, ok := h.nodes[current.id]
		if !ok || layer >= len(node.Neighbors) {
			continue
		}
		for _, nb := range node.Neighbors[layer] {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			nbNode, ok := h.nodes[nb]
			if !ok {
				continue
			}
			d := h.distance(query, nbNode)
			if dynamic.Len() < ef || d < -(*dynamic)[0].dist {
				heap.Push(candidates, &heapItem{id: nb, dist: d})
				heap.Push(dynamic, &heapItem{id: nb, dist: -d})
				if dynamic.Len() > ef {
					heap.Pop(dynamic)
				}
			}
		}
	}

	result := make([]string, 0, dynamic.Len())
	for dynamic.Len() > 0 {
		result = append(result, heap.Pop(dynamic).(*heapItem).id)
	}
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result
}

func (h *HNSW) selectNeighbors(query []float32, candidates []string, m int) []string {
	if len(candidates) <= m {
		return candidates
	}
	type pair struct {
		id   string
		dist float32
	}
	pairs := make([]pair, len(candidates))
	for i, c := range candidates {
		pairs[i] = pair{id: c, dist: h.distance(query, h.nodes[c])}
	}
	for i := 0; i < len(pairs)-1; i++ {
		for j := i + 1; j < len(pairs); j++ {
			if pairs[j].dist < pairs[i].dist {
				pairs[i], pairs[j] = pairs[j], pairs[i]
			}
		}
	}
	out := make([]string, m)
	for i := 0; i < m; i++ {
		out[i] = pairs[i].id
	}
	return out
}

// Search returns up to k approximate nearest IDs to query, closest first.
func (h *HNSW) Search(query []float32, k, ef int) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.entryPoint == "" {
		return nil
	}
	entry := h.nodes[h.entryPoint]
	curr := []string{h.entryPoint}
	for layer := entry.Level; layer > 0; layer-- {
		curr = h.searchLayer(query, curr, 1, layer)
	}
	candidates := h.searchLayer(query, curr, ef, 0)

	type result struct {
		id   string
		dist float32
	}
	results := make([]result, 0, len(candidates))
	for _, c := range candidates {
		if node, ok := h.nodes[c]; ok && !node.Deleted {
			results = append(results, result{id: c, dist: h.distance(query, node)})
		}
	}
	for i := 0; i < len(results)-1; i++ {
		for j := i + 1; j < len(results); j++ {
			if results[j].dist < results[i].dist {
				results[i], results[j] = results[j], results[i]
			}
		}
	}
	if k > len(results) {
		k = len(results)
	}
	ids := make([]string, k)
	for i := 0; i < k; i++ {
		ids[i] = results[i].id
	}
	return ids
}

// Delete soft-deletes id: it stays in the graph for traversal but is
// excluded from Search results.
func (h *HNSW) Delete(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.deleteLocked(id)
}

func (h *HNSW) deleteLocked(id string) error {
	node, ok := h.nodes[id]
	if !ok {
		return errors.New("annindex: node not found")
	}
	node.Deleted = true
	if h.entryPoint == id {
		h.entryPoint = ""
		for nodeID, n := range h.nodes {
			if !n.Deleted {
				h.entryPoint = nodeID
				break
			}
		}
	}
	return nil
}

// Size returns the number of non-deleted nodes.
func (h *HNSW) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, node := range h.nodes {
		if !node.Deleted {
			n++
		}
	}
	return n
}

type heapItem struct {
	id   string
	dist float32
}

type distHeap []*heapItem

func (d distHeap) Len() int            { return len(d) }
func (d distHeap) Less(i, j int) bool  { return d[i].dist < d[j].dist }
func (d distHeap) Swap(i, j int)       { d[i], d[j] = d[j], d[i] }
func (d *distHeap) Push(x interface{}) { *d = append(*d, x.(*heapItem)) }
func (d *distHeap) Pop() interface{} {
	old := *d
	n := len(old)
	item := old[n-1]
	*d = old[:n-1]
	return item
}
