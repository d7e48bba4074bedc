package service

import (
	"fmt"
	"sort"

	"github.com/rl1809/digital-kanban/internal/core/domain"
)

// SelectForWithdrawal picks containers largest-first until their summed quantity
// reaches quantityNeeded. Containers are taken whole. The input must already be
// filtered to one location and to active containers; it is not modified.
func SelectForWithdrawal(containers []domain.Container, quantityNeeded int) ([]domain.Container, error) {
	if quantityNeeded <= 0 {
		return []domain.Container{}, nil
	}

	sorted := make([]domain.Container, len(containers))
	copy(sorted, containers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Quantity > sorted[j].Quantity
	})

	selected := make([]domain.Container, 0, len(sorted))
	total := 0
	for _, c := range sorted {
		if total >= quantityNeeded {
			break
		}
		selected = append(selected, c)
		total += c.Quantity
	}

	if total < quantityNeeded {
		return nil, fmt.Errorf("%w: need %d, available %d", domain.ErrInsufficientInventory, quantityNeeded, total)
	}

	return selected, nil
}
