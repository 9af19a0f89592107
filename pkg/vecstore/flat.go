package vecstore

import (
	"sort"
	"sync"
)

// Flat is an exact brute-force Index. Every search scans the whole
// collection, so results are never approximate. Intended for tests and
// small collections (low thousands of vectors).
//
// It is safe for concurrent use.
type Flat struct {
	mu      sync.RWMutex
	dim     int
	vectors map[string][]float32
	closed  bool
}

var _ Index = (*Flat)(nil)

// NewFlat creates an empty brute-force index for vectors of the given
// dimension. Panics if dim is not positive.
func NewFlat(dim int) *Flat {
	if dim <= 0 {
		panic("vecstore: dimension must be positive")
	}
	return &Flat{
		dim:     dim,
		vectors: make(map[string][]float32),
	}
}

func (f *Flat) Insert(id string, vector []float32) error {
	if err := checkDim(vector, f.dim); err != nil {
		return err
	}
	cp := make([]float32, len(vector))
	copy(cp, vector)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	f.vectors[id] = cp
	return nil
}

func (f *Flat) BatchInsert(ids []string, vectors [][]float32) error {
	if err := checkBatch(ids, vectors); err != nil {
		return err
	}
	for i := range vectors {
		if err := checkDim(vectors[i], f.dim); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	for i, id := range ids {
		cp := make([]float32, len(vectors[i]))
		copy(cp, vectors[i])
		f.vectors[id] = cp
	}
	return nil
}

func (f *Flat) Search(query []float32, topK int) ([]Match, error) {
	if err := checkDim(query, f.dim); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, ErrClosed
	}
	if len(f.vectors) == 0 || topK <= 0 {
		return nil, nil
	}

	matches := make([]Match, 0, len(f.vectors))
	for id, vec := range f.vectors {
		matches = append(matches, Match{ID: id, Distance: CosineDistance(query, vec)})
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

func (f *Flat) Delete(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	delete(f.vectors, id)
	return nil
}

func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

func (f *Flat) Close() error {
	f.mu.Lock()
	f.closed = true
	f.vectors = nil
	f.mu.Unlock()
	return nil
}
