package port

import (
	"context"

	"github.com/rl1809/digital-kanban/internal/core/domain"
)

// KanbanFilter narrows ListKanbans; empty fields match everything.
type KanbanFilter struct {
	Type   domain.KanbanType
	Status domain.KanbanStatus
}

func (f KanbanFilter) Match(k domain.Kanban) bool {
	if f.Type != "" && k.Type != f.Type {
		return false
	}
	if f.Status != "" && k.Status != f.Status {
		return false
	}
	return true
}

type KanbanRepository interface {
	// SaveKanban inserts or replaces a kanban by id
	SaveKanban(ctx context.Context, kanban domain.Kanban) error

	// GetKanban returns domain.ErrKanbanNotFound for unknown ids
	GetKanban(ctx context.Context, id string) (*domain.Kanban, error)

	// ListKanbans returns kanbans in creation order
	ListKanbans(ctx context.Context, filter KanbanFilter) ([]domain.Kanban, error)

	DeleteKanban(ctx context.Context, id string) error
}
