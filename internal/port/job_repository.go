package port

import (
	"context"

	"github.com/rl1809/digital-kanban/internal/core/domain"
)

type JobRepository interface {
	ListJobs(ctx context.Context) ([]domain.Job, error)

	// GetJob returns domain.ErrJobNotFound for unknown ids
	GetJob(ctx context.Context, id string) (*domain.Job, error)

	// CreateJob assigns the id and stores the job
	CreateJob(ctx context.Context, job domain.Job) (domain.Job, error)

	UpdateJob(ctx context.Context, id string, patch domain.JobPatch) (domain.Job, error)

	// DeleteJob removes a job; deleting an unknown id is not an error
	DeleteJob(ctx context.Context, id string) error

	// ReorderJobs sets sortOrder to the 1-based position of each id; unknown ids are skipped
	ReorderJobs(ctx context.Context, ids []string) error

	ListWorkCenters(ctx context.Context) ([]domain.WorkCenter, error)
}

type OrderRepository interface {
	ListOrders(ctx context.Context) ([]domain.CustomerOrder, error)

	// UpdateOrderStatus returns domain.ErrOrderNotFound for unknown ids
	UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.CustomerOrder, error)
}
