package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/rl1809/digital-kanban/internal/core/domain"
	"github.com/rl1809/digital-kanban/internal/port"
)

// MemoryKanbans keeps kanbans in a map and remembers insertion order for listing.
type MemoryKanbans struct {
	mu    sync.RWMutex
	byID  map[string]domain.Kanban
	order []string
}

func NewMemoryKanbans() *MemoryKanbans {
	return &MemoryKanbans{byID: make(map[string]domain.Kanban)}
}

var _ port.KanbanRepository = (*MemoryKanbans)(nil)

func (m *MemoryKanbans) SaveKanban(ctx context.Context, k domain.Kanban) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[k.ID]; !ok {
		m.order = append(m.order, k.ID)
	}
	m.byID[k.ID] = k.Clone()
	return nil
}

func (m *MemoryKanbans) GetKanban(ctx context.Context, id string) (*domain.Kanban, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	k, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrKanbanNotFound, id)
	}
	out := k.Clone()
	return &out, nil
}

func (m *MemoryKanbans) ListKanbans(ctx context.Context, filter port.KanbanFilter) ([]domain.Kanban, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Kanban, 0, len(m.order))
	for _, id := range m.order {
		k := m.byID[id]
		if filter.Match(k) {
			out = append(out, k.Clone())
		}
	}
	return out, nil
}

func (m *MemoryKanbans) DeleteKanban(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[id]; !ok {
		return nil
	}
	delete(m.byID, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}
