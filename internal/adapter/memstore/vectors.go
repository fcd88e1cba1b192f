package memstore

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"perfaudit/internal/port"
)

// VectorStore is a brute-force in-memory port.VectorStore.
type VectorStore struct {
	mu      sync.RWMutex
	vectors map[string]port.VectorItem
}

var _ port.VectorStore = (*VectorStore)(nil)

func NewVectorStore() *VectorStore {
	return &VectorStore{vectors: make(map[string]port.VectorItem)}
}

func (s *VectorStore) Upsert(items []port.VectorItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		if item.ID == "" {
			return fmt.Errorf("vector item has no id")
		}
		s.vectors[item.ID] = item
	}
	return nil
}

func (s *VectorStore) Search(query []float32, k int, match map[string]string) ([]port.VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []port.VectorResult
	for id, item := range s.vectors {
		if !matches(item.Metadata, match) {
			continue
		}
		results = append(results, port.VectorResult{
			ID:       id,
			Score:    cosine(query, item.Vector),
			Metadata: item.Metadata,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func (s *VectorStore) Delete(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.vectors, id)
	}
	return nil
}

func (s *VectorStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors), nil
}

func matches(meta, match map[string]string) bool {
	for k, v := range match {
		if meta[k] != v {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
