package visual

import (
	"context"
	"sync"
	"time"

	"github.com/visualgpt/visualgpt/compositor/internal/layer"
)

// MemStore is an in-process Store used when no database is configured.
type MemStore struct {
	mu      sync.RWMutex
	visuals map[string]*Visual
}

func NewMemStore() *MemStore {
	return &MemStore{visuals: make(map[string]*Visual)}
}

func (s *MemStore) Create(_ context.Context, v *Visual) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	v.CreatedAt, v.UpdatedAt = now, now
	s.visuals[v.ID] = cloneVisual(v)
	return nil
}

func (s *MemStore) Get(_ context.Context, id string) (*Visual, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.visuals[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneVisual(v), nil
}

func (s *MemStore) SaveLayers(_ context.Context, id string, layers layer.List) error {
	return s.update(id, func(v *Visual) {
		v.Layers = layers.Clone()
	})
}

func (s *MemStore) SaveFlattened(_ context.Context, id, flattenedURL string, layers layer.List) error {
	return s.update(id, func(v *Visual) {
		v.FlattenedURL = flattenedURL
		v.Layers = layers.Clone()
	})
}

func (s *MemStore) Reset(_ context.Context, id string) error {
	return s.update(id, func(v *Visual) {
		v.BaseURL = v.OriginalURL
		v.FlattenedURL = ""
		v.Layers = layer.List{}
	})
}

func (s *MemStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.visuals[id]; !ok {
		return ErrNotFound
	}
	delete(s.visuals, id)
	return nil
}

func (s *MemStore) update(id string, fn func(*Visual)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.visuals[id]
	if !ok {
		return ErrNotFound
	}
	fn(v)
	v.UpdatedAt = time.Now().UTC()
	return nil
}

func cloneVisual(v *Visual) *Visual {
	out := *v
	out.Layers = v.Layers.Clone()
	return &out
}
