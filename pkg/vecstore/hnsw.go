package vecstore

import (
	"container/heap"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
)

// HNSWOptions configures a new [HNSW] index.
type HNSWOptions struct {
	// Dim is the vector dimension. Required; must be positive.
	Dim int

	// M is the maximum number of links per node per level (level 0 allows
	// 2*M). Higher values improve recall at the cost of memory and
	// insertion time. Default: 16.
	M int

	// EfConstruction is the beam width while building the graph. Higher
	// values produce a better graph at the cost of slower inserts.
	// Default: 64.
	EfConstruction int

	// EfSearch is the beam width during queries. Raised automatically to
	// topK when a query asks for more. Default: 50.
	EfSearch int
}

func (o *HNSWOptions) defaults() {
	if o.M < 2 {
		o.M = 16
	}
	if o.EfConstruction <= 0 {
		o.EfConstruction = 64
	}
	if o.EfSearch <= 0 {
		o.EfSearch = 50
	}
}

// capacity returns the link capacity at a level.
func (o *HNSWOptions) capacity(level int) int {
	if level == 0 {
		return o.M * 2
	}
	return o.M
}

// node is a single vector in the graph. links[l] holds the neighbor slots
// at level l; a node appears on levels 0..len(links)-1.
type node struct {
	id     string
	vector []float32
	links  [][]uint32
}

func (n *node) top() int { return len(n.links) - 1 }

// HNSW is a hierarchical navigable-small-world Index.
//
// Vectors are organized into a multi-level graph: each level is a
// navigable neighborhood graph over a sample of the collection, with
// level 0 holding every vector. A query greedily descends the sparse
// upper levels, then runs a beam search on level 0. Search cost grows
// logarithmically with collection size; results are approximate.
//
// All methods are safe for concurrent use.
type HNSW struct {
	mu    sync.RWMutex
	opts  HNSWOptions
	nodes []*node           // slot → node; nil marks a recycled slot
	slots map[string]uint32 // external ID → slot
	spare []uint32          // recycled slots
	entry int32             // entry slot, -1 when empty
	size  int
	mul   float64 // level multiplier: 1/ln(M)
}

var _ Index = (*HNSW)(nil)

// NewHNSW creates an empty HNSW index. Panics if opts.Dim is not positive.
func NewHNSW(opts HNSWOptions) *HNSW {
	if opts.Dim <= 0 {
		panic("vecstore: dimension must be positive")
	}
	opts.defaults()
	return &HNSW{
		opts:  opts,
		slots: make(map[string]uint32),
		entry: -1,
		mul:   1.0 / math.Log(float64(opts.M)),
	}
}

// Options returns the index configuration.
func (h *HNSW) Options() HNSWOptions {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.opts
}

// Len returns the number of vectors in the index.
func (h *HNSW) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

// Close is a no-op for the in-memory graph. The index should not be used
// after Close.
func (h *HNSW) Close() error { return nil }

// Insert adds or replaces the vector with the given ID.
func (h *HNSW) Insert(id string, vector []float32) error {
	if err := checkDim(vector, h.opts.Dim); err != nil {
		return err
	}
	cp := make([]float32, len(vector))
	copy(cp, vector)

	h.mu.Lock()
	defer h.mu.Unlock()

	if slot, ok := h.slots[id]; ok {
		h.unlink(slot)
	}
	h.insert(id, cp, h.randomLevel())
	return nil
}

// BatchInsert adds or replaces multiple vectors.
func (h *HNSW) BatchInsert(ids []string, vectors [][]float32) error {
	if err := checkBatch(ids, vectors); err != nil {
		return err
	}
	for i, id := range ids {
		if err := h.Insert(id, vectors[i]); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a vector by ID. No error if the ID does not exist.
func (h *HNSW) Delete(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if slot, ok := h.slots[id]; ok {
		h.unlink(slot)
	}
	return nil
}

// Search returns the top-k nearest vectors to the query, ordered by
// ascending distance.
func (h *HNSW) Search(query []float32, topK int) ([]Match, error) {
	if err := checkDim(query, h.opts.Dim); err != nil {
		return nil, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.size == 0 || topK <= 0 || h.entry < 0 {
		return nil, nil
	}

	ef := h.opts.EfSearch
	if ef < topK {
		ef = topK
	}

	start := h.descend(query, uint32(h.entry), 0)
	found := h.searchLevel(query, []uint32{start}, ef, 0)

	matches := make([]Match, 0, len(found))
	for _, slot := range found {
		nd := h.nodes[slot]
		if nd == nil {
			continue
		}
		matches = append(matches, Match{ID: nd.id, Distance: CosineDistance(query, nd.vector)})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// randomLevel draws a level from the exponential distribution
// P(level >= l) = M^-l, capping pathological draws.
func (h *HNSW) randomLevel() int {
	r := max(rand.Float64(), math.SmallestNonzeroFloat64)
	level := int(-math.Log(r) * h.mul)
	if level > 30 {
		level = 30
	}
	return level
}

// insert places a prepared vector into the graph at the given level.
// Caller holds the write lock.
func (h *HNSW) insert(id string, vector []float32, level int) {
	var slot uint32
	if n := len(h.spare); n > 0 {
		slot = h.spare[n-1]
		h.spare = h.spare[:n-1]
	} else {
		slot = uint32(len(h.nodes))
		h.nodes = append(h.nodes, nil)
	}
	nd := &node{
		id:     id,
		vector: vector,
		links:  make([][]uint32, level+1),
	}
	h.nodes[slot] = nd
	h.slots[id] = slot
	h.size++

	if h.entry < 0 {
		h.entry = int32(slot)
		return
	}

	entry := h.nodes[h.entry]
	graphTop := entry.top()

	// Walk greedily down the levels above the new node's top level.
	cur := h.descend(vector, uint32(h.entry), level+1)

	// From the first shared level down to 0: beam-search the level,
	// choose diverse neighbors, and connect both ways.
	from := min(level, graphTop)
	beam := []uint32{cur}
	for lv := from; lv >= 0; lv-- {
		beam = h.searchLevel(vector, beam, h.opts.EfConstruction, lv)

		limit := h.opts.capacity(lv)
		chosen := h.selectNeighbors(vector, beam, limit)
		nd.links[lv] = chosen

		for _, other := range chosen {
			on := h.nodes[other]
			if on == nil || lv >= len(on.links) {
				continue
			}
			on.links[lv] = append(on.links[lv], slot)
			if len(on.links[lv]) > limit {
				on.links[lv] = h.selectNeighbors(on.vector, on.links[lv], limit)
			}
		}
	}

	if level > graphTop {
		h.entry = int32(slot)
	}
}

// descend walks greedily from the given slot down to (but not into)
// stopLevel, always moving to the closest neighbor, and returns the slot
// reached just above stopLevel.
func (h *HNSW) descend(query []float32, from uint32, stopLevel int) uint32 {
	cur := from
	nd := h.nodes[cur]
	if nd == nil {
		return cur
	}
	best := CosineDistance(query, nd.vector)

	for lv := nd.top(); lv >= stopLevel; lv-- {
		for moved := true; moved; {
			moved = false
			cn := h.nodes[cur]
			if cn == nil || lv >= len(cn.links) {
				break
			}
			for _, nb := range cn.links[lv] {
				bn := h.nodes[nb]
				if bn == nil {
					continue
				}
				if d := CosineDistance(query, bn.vector); d < best {
					cur, best = nb, d
					moved = true
				}
			}
		}
	}
	return cur
}

// searchLevel runs a beam search of width ef on one level, seeded by the
// given entry slots, and returns up to ef slots nearest the query.
func (h *HNSW) searchLevel(query []float32, seeds []uint32, ef, level int) []uint32 {
	visited := make(map[uint32]struct{}, 2*ef)
	var frontier nearQueue // expansion frontier, closest first
	var best farQueue      // current best set, farthest on top

	for _, s := range seeds {
		nd := h.nodes[s]
		if nd == nil {
			continue
		}
		if _, ok := visited[s]; ok {
			continue
		}
		visited[s] = struct{}{}
		d := CosineDistance(query, nd.vector)
		heap.Push(&frontier, cand{s, d})
		heap.Push(&best, cand{s, d})
	}

	for frontier.Len() > 0 {
		next := heap.Pop(&frontier).(cand)
		if best.Len() >= ef && next.dist > best[0].dist {
			break
		}
		nd := h.nodes[next.slot]
		if nd == nil || level >= len(nd.links) {
			continue
		}
		for _, nb := range nd.links[level] {
			if _, ok := visited[nb]; ok {
				continue
			}
			visited[nb] = struct{}{}
			bn := h.nodes[nb]
			if bn == nil {
				continue
			}
			d := CosineDistance(query, bn.vector)
			if best.Len() < ef || d < best[0].dist {
				heap.Push(&frontier, cand{nb, d})
				heap.Push(&best, cand{nb, d})
				if best.Len() > ef {
					heap.Pop(&best)
				}
			}
		}
	}

	out := make([]uint32, best.Len())
	for i := range out {
		out[i] = best[i].slot
	}
	return out
}

// selectNeighbors picks up to limit diverse links from candidates using
// the classic HNSW heuristic: walk candidates in ascending distance and
// keep one only if it is closer to the query than to everything already
// kept. This avoids clustering all links on one side of the query.
func (h *HNSW) selectNeighbors(query []float32, candidates []uint32, limit int) []uint32 {
	ranked := make([]cand, 0, len(candidates))
	for _, c := range candidates {
		nd := h.nodes[c]
		if nd == nil {
			continue
		}
		ranked = append(ranked, cand{c, CosineDistance(query, nd.vector)})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].dist < ranked[j].dist })

	kept := make([]uint32, 0, limit)
	for _, rc := range ranked {
		if len(kept) >= limit {
			break
		}
		ok := true
		for _, k := range kept {
			if CosineDistance(h.nodes[rc.slot].vector, h.nodes[k].vector) < rc.dist {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, rc.slot)
		}
	}

	// Backfill with the nearest rejected candidates if diversity pruning
	// left the node under-connected.
	if len(kept) < limit && len(kept) < len(ranked) {
		seen := make(map[uint32]struct{}, len(kept))
		for _, k := range kept {
			seen[k] = struct{}{}
		}
		for _, rc := range ranked {
			if len(kept) >= limit {
				break
			}
			if _, ok := seen[rc.slot]; !ok {
				kept = append(kept, rc.slot)
			}
		}
	}
	return kept
}

// unlink removes the node in the given slot from the graph and recycles
// the slot. Caller holds the write lock.
func (h *HNSW) unlink(slot uint32) {
	nd := h.nodes[slot]
	if nd == nil {
		return
	}
	for lv := range nd.links {
		for _, nb := range nd.links[lv] {
			bn := h.nodes[nb]
			if bn == nil || lv >= len(bn.links) {
				continue
			}
			bn.links[lv] = cut(bn.links[lv], slot)
		}
	}

	delete(h.slots, nd.id)
	h.nodes[slot] = nil
	h.spare = append(h.spare, slot)
	h.size--

	if h.entry == int32(slot) {
		h.electEntry()
	}
}

// electEntry picks the highest node as the new entry point after the
// previous one was removed.
func (h *HNSW) electEntry() {
	h.entry = -1
	top := -1
	for i, nd := range h.nodes {
		if nd != nil && nd.top() > top {
			h.entry = int32(i)
			top = nd.top()
		}
	}
}

// cut removes the first occurrence of v from s.
func cut(s []uint32, v uint32) []uint32 {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

// cand pairs a slot with its distance to the current query.
type cand struct {
	slot uint32
	dist float32
}

// nearQueue is a min-heap by distance.
type nearQueue []cand

func (q nearQueue) Len() int           { return len(q) }
func (q nearQueue) Less(i, j int) bool { return q[i].dist < q[j].dist }
func (q nearQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *nearQueue) Push(x any)        { *q = append(*q, x.(cand)) }
func (q *nearQueue) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}

// farQueue is a max-heap by distance.
type farQueue []cand

func (q farQueue) Len() int           { return len(q) }
func (q farQueue) Less(i, j int) bool { return q[i].dist > q[j].dist }
func (q farQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *farQueue) Push(x any)        { *q = append(*q, x.(cand)) }
func (q *farQueue) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}
