package store

import (
	"context"
	"sort"
	"sync"

	"github.com/textcritica/collate/pkg/errors"
)

// MemoryStore keeps projects in a map. Contents are lost on restart,
// which is fine for tests and local single-process servers.
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string]*Project
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{projects: make(map[string]*Project)}
}

// Get retrieves a project by ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeProjectNotFound, "project %q not found", id)
	}
	cp := *p
	return &cp, nil
}

// Put stores a project.
func (s *MemoryStore) Put(ctx context.Context, p *Project) error {
	if p.ID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "project has no ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.projects[p.ID] = &cp
	return nil
}

// Delete removes a project.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.projects, id)
	return nil
}

// List returns all projects ordered by creation time.
func (s *MemoryStore) List(ctx context.Context) ([]*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Project, 0, len(s.projects))
	for _, p := range s.projects {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Close does nothing for the memory store.
func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
