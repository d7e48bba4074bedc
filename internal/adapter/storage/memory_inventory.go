package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rl1809/digital-kanban/internal/core/domain"
	"github.com/rl1809/digital-kanban/internal/port"
)

// MemoryInventory is an in-process stand-in for the ERP inventory API. Reads
// and writes copy records, so callers only ever see snapshots.
type MemoryInventory struct {
	mu    sync.RWMutex
	parts map[string]domain.Inventory
}

func NewMemoryInventory(records ...domain.Inventory) *MemoryInventory {
	m := &MemoryInventory{parts: make(map[string]domain.Inventory, len(records))}
	for _, inv := range records {
		m.parts[inv.PartNumber] = inv.Clone()
	}
	return m
}

var _ port.InventoryRepository = (*MemoryInventory)(nil)

func (m *MemoryInventory) GetInventory(ctx context.Context, partNumber string) (*domain.Inventory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inv, ok := m.parts[partNumber]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrInventoryNotFound, partNumber)
	}
	out := inv.Clone()
	return &out, nil
}

func (m *MemoryInventory) ListInventory(ctx context.Context) ([]domain.Inventory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Inventory, 0, len(m.parts))
	for _, pn := range m.sortedParts() {
		out = append(out, m.parts[pn].Clone())
	}
	return out, nil
}

func (m *MemoryInventory) UpdateInventory(ctx context.Context, inv domain.Inventory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.parts[inv.PartNumber]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrInventoryNotFound, inv.PartNumber)
	}
	if current.Version != inv.Version {
		return domain.ErrOptimisticLock
	}

	next := inv.Clone()
	next.Version++
	m.parts[inv.PartNumber] = next
	return nil
}

func (m *MemoryInventory) ListContainers(ctx context.Context) ([]domain.Container, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.Container
	for _, pn := range m.sortedParts() {
		for _, c := range m.parts[pn].Containers {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func (m *MemoryInventory) FindContainer(ctx context.Context, serialNumber string) (*domain.Container, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, inv := range m.parts {
		if idx := inv.IndexOf(serialNumber); idx >= 0 {
			c := inv.Containers[idx].Clone()
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrContainerNotFound, serialNumber)
}

// AddInventory inserts or replaces a part's record, keeping the stored version.
func (m *MemoryInventory) AddInventory(inv domain.Inventory) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := inv.Clone()
	if current, ok := m.parts[inv.PartNumber]; ok {
		next.Version = current.Version + 1
	}
	m.parts[inv.PartNumber] = next
}

func (m *MemoryInventory) sortedParts() []string {
	keys := make([]string, 0, len(m.parts))
	for pn := range m.parts {
		keys = append(keys, pn)
	}
	sort.Strings(keys)
	return keys
}
