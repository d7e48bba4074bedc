package service

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rl1809/digital-kanban/internal/core/domain"
	"github.com/rl1809/digital-kanban/internal/metrics"
	"github.com/rl1809/digital-kanban/internal/port"
)

var (
	ErrInvalidSplitRequest  = fmt.Errorf("%w: split", domain.ErrInvalidRequest)
	ErrInvalidMergeRequest  = fmt.Errorf("%w: merge", domain.ErrInvalidRequest)
	ErrInvalidContainer     = fmt.Errorf("%w: container", domain.ErrInvalidRequest)
	ErrUnknownMergeStrategy = fmt.Errorf("%w: merge strategy", domain.ErrUnknownOperation)
)

type MergeStrategy string

const (
	MergeNewNumber MergeStrategy = "new_number"
	MergeKeepFirst MergeStrategy = "keep_first"
	MergeKeepLast  MergeStrategy = "keep_last"
)

// ContainerService splits, merges and relocates containers. Every mutation holds
// the part lock for the whole read-modify-write.
type ContainerService struct {
	inventory port.InventoryRepository
	locker    port.Locker
	newSerial func(prefix string) string
}

func NewContainerService(inventory port.InventoryRepository, locker port.Locker) *ContainerService {
	return &ContainerService{
		inventory: inventory,
		locker:    locker,
		newSerial: newSerial,
	}
}

func (s *ContainerService) ListContainers(ctx context.Context) ([]domain.Container, error) {
	return s.inventory.ListContainers(ctx)
}

func (s *ContainerService) ListInventory(ctx context.Context) ([]domain.Inventory, error) {
	return s.inventory.ListInventory(ctx)
}

// Split divides one active container into len(quantities) new containers named
// <serial>-SPLIT-<n>. The parent keeps its quantity as history and is marked split.
func (s *ContainerService) Split(ctx context.Context, serialNumber string, quantities []int) (children []domain.Container, err error) {
	ctx, span := startSpan(ctx, "ContainerService.Split", attribute.String("container.serial", serialNumber))
	defer func() {
		metrics.RecordContainerOperation("split", err)
		endSpan(span, err)
	}()

	if len(quantities) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 quantities, got %d", ErrInvalidSplitRequest, len(quantities))
	}
	sum := 0
	for _, q := range quantities {
		if q <= 0 {
			return nil, fmt.Errorf("%w: quantities must be positive, got %d", ErrInvalidSplitRequest, q)
		}
		sum += q
	}

	found, err := s.inventory.FindContainer(ctx, serialNumber)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", serialNumber, err)
	}

	unlock, err := s.locker.Lock(ctx, partLockKey(found.PartNumber))
	if err != nil {
		return nil, fmt.Errorf("lock part %s: %w", found.PartNumber, err)
	}
	defer unlock()

	inv, err := s.inventory.GetInventory(ctx, found.PartNumber)
	if err != nil {
		return nil, err
	}

	idx := inv.IndexOf(serialNumber)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrContainerNotFound, serialNumber)
	}
	parent := &inv.Containers[idx]
	if parent.Status != domain.ContainerStatusActive {
		return nil, fmt.Errorf("%w: container %s is %s", ErrInvalidSplitRequest, serialNumber, parent.Status)
	}
	if sum != parent.Quantity {
		return nil, fmt.Errorf("%w: quantities sum to %d, container holds %d", ErrInvalidSplitRequest, sum, parent.Quantity)
	}

	children = make([]domain.Container, len(quantities))
	childSerials := make([]string, len(quantities))
	for i, q := range quantities {
		serial := fmt.Sprintf("%s-SPLIT-%d", serialNumber, i+1)
		if inv.IndexOf(serial) >= 0 {
			return nil, fmt.Errorf("%w: serial %s already exists", ErrInvalidSplitRequest, serial)
		}
		children[i] = domain.Container{
			SerialNumber:    serial,
			PartNumber:      parent.PartNumber,
			Quantity:        q,
			Location:        parent.Location,
			Status:          domain.ContainerStatusActive,
			ParentContainer: serialNumber,
		}
		childSerials[i] = serial
	}

	parent.Status = domain.ContainerStatusSplit
	parent.ChildContainers = childSerials
	inv.Containers = append(inv.Containers, children...)

	if err := s.inventory.UpdateInventory(ctx, *inv); err != nil {
		return nil, fmt.Errorf("save split of %s: %w", serialNumber, err)
	}

	log.WithFields(log.Fields{
		"serial":   serialNumber,
		"children": childSerials,
	}).Info("container split")

	return children, nil
}

// Merge replaces two or more active containers of one part with a single
// container holding their summed quantity. The serial of the result depends on
// strategy and on the caller's order of serialNumbers.
func (s *ContainerService) Merge(ctx context.Context, serialNumbers []string, strategy MergeStrategy) (merged *domain.Container, err error) {
	ctx, span := startSpan(ctx, "ContainerService.Merge",
		attribute.StringSlice("container.serials", serialNumbers),
		attribute.String("merge.strategy", string(strategy)),
	)
	defer func() {
		metrics.RecordContainerOperation("merge", err)
		endSpan(span, err)
	}()

	if len(serialNumbers) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 containers, got %d", ErrInvalidMergeRequest, len(serialNumbers))
	}
	switch strategy {
	case MergeNewNumber, MergeKeepFirst, MergeKeepLast:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMergeStrategy, strategy)
	}
	seen := make(map[string]struct{}, len(serialNumbers))
	for _, sn := range serialNumbers {
		if _, dup := seen[sn]; dup {
			return nil, fmt.Errorf("%w: container %s listed twice", ErrInvalidMergeRequest, sn)
		}
		seen[sn] = struct{}{}
	}

	first, err := s.inventory.FindContainer(ctx, serialNumbers[0])
	if err != nil {
		return nil, fmt.Errorf("merge %s: %w", serialNumbers[0], err)
	}

	unlock, err := s.locker.Lock(ctx, partLockKey(first.PartNumber))
	if err != nil {
		return nil, fmt.Errorf("lock part %s: %w", first.PartNumber, err)
	}
	defer unlock()

	inv, err := s.inventory.GetInventory(ctx, first.PartNumber)
	if err != nil {
		return nil, err
	}

	sources := make([]domain.Container, 0, len(serialNumbers))
	total := 0
	for _, sn := range serialNumbers {
		idx := inv.IndexOf(sn)
		if idx < 0 {
			other, err := s.inventory.FindContainer(ctx, sn)
			if err != nil {
				return nil, fmt.Errorf("merge %s: %w", sn, err)
			}
			return nil, fmt.Errorf("%w: %s holds part %s, %s holds part %s",
				ErrInvalidMergeRequest, serialNumbers[0], first.PartNumber, sn, other.PartNumber)
		}
		c := inv.Containers[idx]
		if c.Status != domain.ContainerStatusActive {
			return nil, fmt.Errorf("%w: container %s is %s", ErrInvalidMergeRequest, sn, c.Status)
		}
		sources = append(sources, c)
		total += c.Quantity
	}

	var serial string
	switch strategy {
	case MergeNewNumber:
		serial = s.newSerial("CONT-MERGE")
	case MergeKeepFirst:
		serial = serialNumbers[0]
	case MergeKeepLast:
		serial = serialNumbers[len(serialNumbers)-1]
	}

	result := domain.Container{
		SerialNumber: serial,
		PartNumber:   sources[0].PartNumber,
		Quantity:     total,
		Location:     sources[0].Location,
		Status:       domain.ContainerStatusMerged,
	}

	kept := make([]domain.Container, 0, len(inv.Containers)-len(sources)+1)
	for _, c := range inv.Containers {
		if _, gone := seen[c.SerialNumber]; !gone {
			kept = append(kept, c)
		}
	}
	inv.Containers = append(kept, result)

	if err := s.inventory.UpdateInventory(ctx, *inv); err != nil {
		return nil, fmt.Errorf("save merge into %s: %w", serial, err)
	}

	log.WithFields(log.Fields{
		"sources":  serialNumbers,
		"serial":   serial,
		"quantity": total,
	}).Info("containers merged")

	return &result, nil
}

// CreateContainer registers a new active container under its part's inventory.
// An empty serial number is generated.
func (s *ContainerService) CreateContainer(ctx context.Context, c domain.Container) (*domain.Container, error) {
	if c.PartNumber == "" {
		return nil, fmt.Errorf("%w: part number required", ErrInvalidContainer)
	}
	if c.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidContainer, c.Quantity)
	}
	if c.Location == "" {
		c.Location = domain.LocationEndOfLine
	}
	if c.Status == "" {
		c.Status = domain.ContainerStatusActive
	}
	if c.SerialNumber == "" {
		c.SerialNumber = s.newSerial("CONT")
	}
	c.ParentContainer = ""
	c.ChildContainers = nil

	unlock, err := s.locker.Lock(ctx, partLockKey(c.PartNumber))
	if err != nil {
		return nil, fmt.Errorf("lock part %s: %w", c.PartNumber, err)
	}
	defer unlock()

	if _, err := s.inventory.FindContainer(ctx, c.SerialNumber); err == nil {
		return nil, fmt.Errorf("%w: serial %s already exists", ErrInvalidContainer, c.SerialNumber)
	}

	inv, err := s.inventory.GetInventory(ctx, c.PartNumber)
	if err != nil {
		return nil, err
	}
	inv.Containers = append(inv.Containers, c)
	if err := s.inventory.UpdateInventory(ctx, *inv); err != nil {
		return nil, fmt.Errorf("save container %s: %w", c.SerialNumber, err)
	}

	return &c, nil
}

// MoveContainers relocates active containers of one part to a new location.
func (s *ContainerService) MoveContainers(ctx context.Context, partNumber string, serialNumbers []string, to domain.Location) error {
	if to == "" {
		return fmt.Errorf("%w: destination location required", ErrInvalidContainer)
	}

	unlock, err := s.locker.Lock(ctx, partLockKey(partNumber))
	if err != nil {
		return fmt.Errorf("lock part %s: %w", partNumber, err)
	}
	defer unlock()

	inv, err := s.inventory.GetInventory(ctx, partNumber)
	if err != nil {
		return err
	}
	for _, sn := range serialNumbers {
		idx := inv.IndexOf(sn)
		if idx < 0 {
			return fmt.Errorf("%w: %s in part %s", domain.ErrContainerNotFound, sn, partNumber)
		}
		if inv.Containers[idx].Status != domain.ContainerStatusActive {
			return fmt.Errorf("%w: container %s is %s", ErrInvalidContainer, sn, inv.Containers[idx].Status)
		}
	}

	return relocate(ctx, s.inventory, inv, serialNumbers, to)
}

type movedContainer struct {
	serial string
	from   domain.Location
}

// relocate writes one version-checked inventory update per container, in order.
// If an update fails, the containers already moved are put back in one update.
// Callers hold the part lock.
func relocate(ctx context.Context, repo port.InventoryRepository, inv *domain.Inventory, serialNumbers []string, to domain.Location) error {
	moved := make([]movedContainer, 0, len(serialNumbers))
	for _, sn := range serialNumbers {
		idx := inv.IndexOf(sn)
		if idx < 0 {
			restore(ctx, repo, inv, moved)
			return fmt.Errorf("%w: %s", domain.ErrContainerNotFound, sn)
		}

		from := inv.Containers[idx].Location
		inv.Containers[idx].Location = to
		if err := repo.UpdateInventory(ctx, *inv); err != nil {
			inv.Containers[idx].Location = from
			restore(ctx, repo, inv, moved)
			return fmt.Errorf("move container %s to %s: %w", sn, to, err)
		}
		inv.Version++
		moved = append(moved, movedContainer{serial: sn, from: from})
	}

	metrics.RecordContainersMoved(string(to), len(moved))
	return nil
}

func restore(ctx context.Context, repo port.InventoryRepository, inv *domain.Inventory, moved []movedContainer) {
	if len(moved) == 0 {
		return
	}
	for _, m := range moved {
		if idx := inv.IndexOf(m.serial); idx >= 0 {
			inv.Containers[idx].Location = m.from
		}
	}
	if err := repo.UpdateInventory(ctx, *inv); err != nil {
		log.WithError(err).WithField("part_number", inv.PartNumber).Error("CRITICAL: failed to restore container locations")
		return
	}
	inv.Version++
}
