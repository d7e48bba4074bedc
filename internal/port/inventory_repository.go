package port

import (
	"context"

	"github.com/rl1809/digital-kanban/internal/core/domain"
)

type InventoryRepository interface {
	// GetInventory returns the inventory record of a part, or domain.ErrInventoryNotFound
	GetInventory(ctx context.Context, partNumber string) (*domain.Inventory, error)

	// ListInventory returns every inventory record
	ListInventory(ctx context.Context) ([]domain.Inventory, error)

	// UpdateInventory replaces the record if its version still matches, and bumps the version
	UpdateInventory(ctx context.Context, inventory domain.Inventory) error

	// ListContainers returns the containers of all parts
	ListContainers(ctx context.Context) ([]domain.Container, error)

	// FindContainer resolves a serial number, or returns domain.ErrContainerNotFound
	FindContainer(ctx context.Context, serialNumber string) (*domain.Container, error)
}
