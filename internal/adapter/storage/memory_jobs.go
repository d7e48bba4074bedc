package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/rl1809/digital-kanban/internal/core/domain"
	"github.com/rl1809/digital-kanban/internal/port"
)

// MemoryJobs is the in-process job registry with its work centers.
type MemoryJobs struct {
	mu          sync.RWMutex
	jobs        []domain.Job
	workCenters []domain.WorkCenter
}

func NewMemoryJobs(jobs []domain.Job, workCenters []domain.WorkCenter) *MemoryJobs {
	return &MemoryJobs{
		jobs:        append([]domain.Job(nil), jobs...),
		workCenters: append([]domain.WorkCenter(nil), workCenters...),
	}
}

var _ port.JobRepository = (*MemoryJobs)(nil)

func (m *MemoryJobs) ListJobs(ctx context.Context) ([]domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := append([]domain.Job(nil), m.jobs...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SortOrder < out[j].SortOrder
	})
	return out, nil
}

func (m *MemoryJobs) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx := m.indexOf(id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	job := m.jobs[idx]
	return &job, nil
}

func (m *MemoryJobs) CreateJob(ctx context.Context, job domain.Job) (domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.ID = "job-" + uuid.NewString()[:8]
	job.Version = 0
	m.jobs = append(m.jobs, job)
	return job, nil
}

func (m *MemoryJobs) UpdateJob(ctx context.Context, id string, patch domain.JobPatch) (domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexOf(id)
	if idx < 0 {
		return domain.Job{}, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	patch.Apply(&m.jobs[idx])
	m.jobs[idx].Version++
	return m.jobs[idx], nil
}

func (m *MemoryJobs) DeleteJob(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if idx := m.indexOf(id); idx >= 0 {
		m.jobs = append(m.jobs[:idx], m.jobs[idx+1:]...)
	}
	return nil
}

func (m *MemoryJobs) ReorderJobs(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, id := range ids {
		if idx := m.indexOf(id); idx >= 0 {
			m.jobs[idx].SortOrder = i + 1
			m.jobs[idx].Version++
		}
	}
	return nil
}

func (m *MemoryJobs) ListWorkCenters(ctx context.Context) ([]domain.WorkCenter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.WorkCenter(nil), m.workCenters...), nil
}

func (m *MemoryJobs) indexOf(id string) int {
	for i := range m.jobs {
		if m.jobs[i].ID == id {
			return i
		}
	}
	return -1
}

// MemoryOrders holds customer orders.
type MemoryOrders struct {
	mu     sync.RWMutex
	orders []domain.CustomerOrder
}

func NewMemoryOrders(orders []domain.CustomerOrder) *MemoryOrders {
	return &MemoryOrders{orders: append([]domain.CustomerOrder(nil), orders...)}
}

var _ port.OrderRepository = (*MemoryOrders)(nil)

func (m *MemoryOrders) ListOrders(ctx context.Context) ([]domain.CustomerOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.CustomerOrder(nil), m.orders...), nil
}

func (m *MemoryOrders) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.CustomerOrder, error) {
	if !status.Valid() {
		return domain.CustomerOrder{}, fmt.Errorf("%w: order status %q", domain.ErrInvalidRequest, status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.orders {
		if m.orders[i].ID == id {
			m.orders[i].Status = status
			return m.orders[i], nil
		}
	}
	return domain.CustomerOrder{}, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
}
