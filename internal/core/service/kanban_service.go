package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rl1809/digital-kanban/internal/core/domain"
	"github.com/rl1809/digital-kanban/internal/metrics"
	"github.com/rl1809/digital-kanban/internal/port"
)

var (
	ErrInvalidKanban         = fmt.Errorf("%w: kanban", domain.ErrInvalidRequest)
	ErrNoAvailableContainers = fmt.Errorf("no available containers: %w", domain.ErrInsufficientInventory)
)

const (
	defaultPriority = 1
	jobLeadTime     = 7 * 24 * time.Hour
	productionTeam  = "production"
)

// CreateKanbanRequest is everything a caller may set on a new kanban. Id,
// creation time and status are always assigned by the service.
type CreateKanbanRequest struct {
	Type            domain.KanbanType     `json:"type"`
	PartNumber      string                `json:"partNumber"`
	PartDescription string                `json:"partDescription"`
	Quantity        int                   `json:"quantity"`
	ContainerIDs    []string              `json:"containerIds,omitempty"`
	WithdrawalType  domain.WithdrawalType `json:"withdrawalType,omitempty"`
	WorkCenter      string                `json:"workCenter,omitempty"`
	Priority        int                   `json:"priority,omitempty"`
	JobID           string                `json:"jobId,omitempty"`
	CustomerID      string                `json:"customerId,omitempty"`
	Route           string                `json:"route,omitempty"`
}

func (r CreateKanbanRequest) validate() error {
	if !r.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidKanban, r.Type)
	}
	if r.PartNumber == "" {
		return fmt.Errorf("%w: part number required", ErrInvalidKanban)
	}
	if r.Type == domain.KanbanTypeWithdrawal {
		if _, _, ok := r.WithdrawalType.Route(); !ok {
			return fmt.Errorf("%w: unknown withdrawal type %q", ErrInvalidKanban, r.WithdrawalType)
		}
		if r.Quantity <= 0 {
			return fmt.Errorf("%w: withdrawal quantity must be positive, got %d", ErrInvalidKanban, r.Quantity)
		}
	}
	if r.Quantity < 0 {
		return fmt.Errorf("%w: negative quantity %d", ErrInvalidKanban, r.Quantity)
	}
	return nil
}

// KanbanService creates kanbans and drives them through
// pending -> active -> completed, with cancelled reachable from pending and active.
type KanbanService struct {
	kanbans   port.KanbanRepository
	inventory port.InventoryRepository
	jobs      port.JobRepository
	locker    port.Locker
	notifier  port.Notifier

	now   func() time.Time
	newID func() string
}

func NewKanbanService(
	kanbans port.KanbanRepository,
	inventory port.InventoryRepository,
	jobs port.JobRepository,
	locker port.Locker,
	notifier port.Notifier,
) *KanbanService {
	return &KanbanService{
		kanbans:   kanbans,
		inventory: inventory,
		jobs:      jobs,
		locker:    locker,
		notifier:  notifier,
		now:       time.Now,
		newID: func() string {
			return "kanban-" + uuid.NewString()
		},
	}
}

// CreateKanban stores a pending kanban and runs its type's processor before
// returning. A failed processor removes the kanban again, so either the kanban
// exists with its effects applied or the error is returned and nothing remains.
// The kanban lock is held from the first save to the last, so no transition can
// interleave with processing.
func (s *KanbanService) CreateKanban(ctx context.Context, req CreateKanbanRequest) (kanban *domain.Kanban, err error) {
	ctx, span := startSpan(ctx, "KanbanService.CreateKanban",
		attribute.String("kanban.type", string(req.Type)),
		attribute.String("kanban.part_number", req.PartNumber),
	)
	defer func() { endSpan(span, err) }()

	if err := req.validate(); err != nil {
		return nil, err
	}

	k := domain.Kanban{
		ID:              s.newID(),
		Type:            req.Type,
		Status:          domain.KanbanStatusPending,
		CreatedAt:       s.now(),
		PartNumber:      req.PartNumber,
		PartDescription: req.PartDescription,
		Quantity:        req.Quantity,
		ContainerIDs:    append([]string{}, req.ContainerIDs...),
		WithdrawalType:  req.WithdrawalType,
		WorkCenter:      req.WorkCenter,
		Priority:        req.Priority,
		JobID:           req.JobID,
		CustomerID:      req.CustomerID,
		Route:           req.Route,
	}
	span.SetAttributes(attribute.String("kanban.id", k.ID))

	unlock, err := s.locker.Lock(ctx, kanbanLockKey(k.ID))
	if err != nil {
		return nil, fmt.Errorf("lock kanban %s: %w", k.ID, err)
	}
	defer unlock()

	if err := s.kanbans.SaveKanban(ctx, k); err != nil {
		return nil, fmt.Errorf("save kanban: %w", err)
	}

	var undo func(context.Context)
	switch k.Type {
	case domain.KanbanTypeWithdrawal:
		if err = s.processWithdrawal(ctx, &k); err == nil {
			undo = func(ctx context.Context) { s.undoWithdrawal(ctx, k) }
		}
	case domain.KanbanTypeProduction:
		undo, err = s.processProduction(ctx, &k)
	}
	if err == nil {
		if err = s.kanbans.SaveKanban(ctx, k); err != nil {
			undo(ctx)
		}
	}

	logger := log.WithFields(log.Fields{
		"kanban_id":   k.ID,
		"kanban_type": k.Type,
		"part_number": k.PartNumber,
	})
	if err != nil {
		metrics.RecordKanbanFailure(string(k.Type))
		if delErr := s.kanbans.DeleteKanban(ctx, k.ID); delErr != nil {
			logger.WithError(delErr).Error("failed to roll back kanban")
		}
		logger.WithError(err).Warn("kanban processing failed")
		return nil, fmt.Errorf("process %s kanban for %s: %w", k.Type, k.PartNumber, err)
	}

	metrics.RecordKanbanCreated(string(k.Type))
	metrics.RecordKanbanTransition(string(k.Status))
	logger.WithField("status", k.Status).Info("kanban created")
	return &k, nil
}

// processWithdrawal moves whole containers from the withdrawal's source location
// to its destination. The part lock spans the read and every patch, so two
// withdrawals on one part can never pick the same container.
func (s *KanbanService) processWithdrawal(ctx context.Context, k *domain.Kanban) error {
	from, to, _ := k.WithdrawalType.Route()
	metrics.RecordWithdrawalQuantity(k.Quantity)

	unlock, err := s.locker.Lock(ctx, partLockKey(k.PartNumber))
	if err != nil {
		return fmt.Errorf("lock part %s: %w", k.PartNumber, err)
	}
	defer unlock()

	inv, err := s.inventory.GetInventory(ctx, k.PartNumber)
	if err != nil {
		return err
	}
	if k.PartDescription == "" {
		k.PartDescription = inv.PartDescription
	}

	available := inv.ActiveAt(from)
	if len(available) == 0 {
		return fmt.Errorf("%w: part %s at %s", ErrNoAvailableContainers, k.PartNumber, from)
	}

	selected, err := SelectForWithdrawal(available, k.Quantity)
	if err != nil {
		return err
	}

	serials := make([]string, len(selected))
	for i, c := range selected {
		serials[i] = c.SerialNumber
	}
	if err := relocate(ctx, s.inventory, inv, serials, to); err != nil {
		return err
	}

	k.Status = domain.KanbanStatusActive
	k.ContainerIDs = serials
	k.FromLocation = from
	k.ToLocation = to
	return nil
}

// undoWithdrawal puts the containers of a withdrawal back at its source location.
func (s *KanbanService) undoWithdrawal(ctx context.Context, k domain.Kanban) {
	logger := log.WithFields(log.Fields{"kanban_id": k.ID, "part_number": k.PartNumber})

	unlock, err := s.locker.Lock(ctx, partLockKey(k.PartNumber))
	if err != nil {
		logger.WithError(err).Error("CRITICAL: cannot lock part to undo withdrawal")
		return
	}
	defer unlock()

	inv, err := s.inventory.GetInventory(ctx, k.PartNumber)
	if err == nil {
		err = relocate(ctx, s.inventory, inv, k.ContainerIDs, k.FromLocation)
	}
	if err != nil {
		logger.WithError(err).Error("CRITICAL: failed to undo withdrawal")
	}
}

// processProduction starts the kanban's job, creating one due in seven days
// when none is linked, and tells the production team. The returned func
// reverts the job change.
func (s *KanbanService) processProduction(ctx context.Context, k *domain.Kanban) (func(context.Context), error) {
	priority := k.Priority
	if priority == 0 {
		priority = defaultPriority
	}

	var undo func(context.Context)
	if k.JobID != "" {
		prior, err := s.jobs.GetJob(ctx, k.JobID)
		if err != nil {
			return nil, fmt.Errorf("start job %s: %w", k.JobID, err)
		}
		status := domain.JobStatusInProgress
		if _, err := s.jobs.UpdateJob(ctx, k.JobID, domain.JobPatch{
			Status:   &status,
			Priority: &priority,
		}); err != nil {
			return nil, fmt.Errorf("start job %s: %w", k.JobID, err)
		}
		undo = func(ctx context.Context) { s.restoreJob(ctx, *prior) }
	} else {
		job, err := s.jobs.CreateJob(ctx, domain.Job{
			PartNumber:     k.PartNumber,
			Quantity:       k.Quantity,
			CompletionDate: s.now().Add(jobLeadTime),
			SortOrder:      priority,
			WorkCenter:     k.WorkCenter,
			Status:         domain.JobStatusPending,
			Priority:       priority,
		})
		if err != nil {
			return nil, fmt.Errorf("create job: %w", err)
		}
		k.JobID = job.ID
		undo = func(ctx context.Context) { s.removeJob(ctx, job.ID) }
	}

	k.Status = domain.KanbanStatusActive

	if err := s.notifier.Notify(ctx, port.Notification{
		Team:       productionTeam,
		Message:    "Production kanban created",
		KanbanID:   k.ID,
		PartNumber: k.PartNumber,
		WorkCenter: k.WorkCenter,
		JobID:      k.JobID,
		Priority:   k.Priority,
	}); err != nil {
		undo(ctx)
		return nil, fmt.Errorf("notify %s team: %w", productionTeam, err)
	}
	return undo, nil
}

// restoreJob puts back the status and priority a linked job had before the
// kanban started it.
func (s *KanbanService) restoreJob(ctx context.Context, prior domain.Job) {
	if _, err := s.jobs.UpdateJob(ctx, prior.ID, domain.JobPatch{
		Status:   &prior.Status,
		Priority: &prior.Priority,
	}); err != nil {
		log.WithError(err).WithField("job_id", prior.ID).Error("CRITICAL: failed to restore job")
	}
}

func (s *KanbanService) removeJob(ctx context.Context, id string) {
	if err := s.jobs.DeleteJob(ctx, id); err != nil {
		log.WithError(err).WithField("job_id", id).Error("CRITICAL: failed to remove job")
	}
}

// CompleteKanban marks an active kanban completed. Completing an already
// completed kanban returns it unchanged.
func (s *KanbanService) CompleteKanban(ctx context.Context, id string) (*domain.Kanban, error) {
	return s.transition(ctx, id, domain.KanbanStatusCompleted)
}

// CancelKanban cancels a pending or active kanban. Cancelling twice is a no-op.
func (s *KanbanService) CancelKanban(ctx context.Context, id string) (*domain.Kanban, error) {
	return s.transition(ctx, id, domain.KanbanStatusCancelled)
}

func (s *KanbanService) transition(ctx context.Context, id string, target domain.KanbanStatus) (kanban *domain.Kanban, err error) {
	ctx, span := startSpan(ctx, "KanbanService.transition",
		attribute.String("kanban.id", id),
		attribute.String("kanban.target_status", string(target)),
	)
	defer func() { endSpan(span, err) }()

	unlock, err := s.locker.Lock(ctx, kanbanLockKey(id))
	if err != nil {
		return nil, fmt.Errorf("lock kanban %s: %w", id, err)
	}
	defer unlock()

	k, err := s.kanbans.GetKanban(ctx, id)
	if err != nil {
		return nil, err
	}
	if k.Status == target {
		return k, nil
	}
	if !canTransition(k.Status, target) {
		return nil, fmt.Errorf("%w: kanban %s is %s, cannot become %s", domain.ErrInvalidTransition, id, k.Status, target)
	}

	now := s.now()
	k.Status = target
	switch target {
	case domain.KanbanStatusCompleted:
		k.CompletedAt = &now
	case domain.KanbanStatusCancelled:
		k.CancelledAt = &now
	}

	if err := s.kanbans.SaveKanban(ctx, *k); err != nil {
		return nil, fmt.Errorf("save kanban %s: %w", id, err)
	}

	metrics.RecordKanbanTransition(string(target))
	log.WithFields(log.Fields{"kanban_id": id, "status": target}).Info("kanban transitioned")
	return k, nil
}

// AssignWorkCenter records the work center a kanban's job was scheduled on.
func (s *KanbanService) AssignWorkCenter(ctx context.Context, id, workCenter string) (*domain.Kanban, error) {
	unlock, err := s.locker.Lock(ctx, kanbanLockKey(id))
	if err != nil {
		return nil, fmt.Errorf("lock kanban %s: %w", id, err)
	}
	defer unlock()

	k, err := s.kanbans.GetKanban(ctx, id)
	if err != nil {
		return nil, err
	}
	if k.Status.Terminal() {
		return nil, fmt.Errorf("%w: kanban %s is %s", domain.ErrInvalidTransition, id, k.Status)
	}

	k.WorkCenter = workCenter
	if err := s.kanbans.SaveKanban(ctx, *k); err != nil {
		return nil, fmt.Errorf("save kanban %s: %w", id, err)
	}
	return k, nil
}

func canTransition(from, to domain.KanbanStatus) bool {
	switch to {
	case domain.KanbanStatusActive:
		return from == domain.KanbanStatusPending
	case domain.KanbanStatusCompleted:
		return from == domain.KanbanStatusActive
	case domain.KanbanStatusCancelled:
		return from == domain.KanbanStatusPending || from == domain.KanbanStatusActive
	}
	return false
}

func (s *KanbanService) GetKanban(ctx context.Context, id string) (*domain.Kanban, error) {
	return s.kanbans.GetKanban(ctx, id)
}

func (s *KanbanService) ListKanbans(ctx context.Context, filter port.KanbanFilter) ([]domain.Kanban, error) {
	return s.kanbans.ListKanbans(ctx, filter)
}

func (s *KanbanService) ListKanbansByType(ctx context.Context, t domain.KanbanType) ([]domain.Kanban, error) {
	return s.kanbans.ListKanbans(ctx, port.KanbanFilter{Type: t})
}

func (s *KanbanService) ListKanbansByStatus(ctx context.Context, status domain.KanbanStatus) ([]domain.Kanban, error) {
	return s.kanbans.ListKanbans(ctx, port.KanbanFilter{Status: status})
}
