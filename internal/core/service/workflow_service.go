package service

import (
	"context"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rl1809/digital-kanban/internal/core/domain"
	"github.com/rl1809/digital-kanban/internal/metrics"
	"github.com/rl1809/digital-kanban/internal/port"
)

var (
	ErrWorkflowInactive    = fmt.Errorf("%w: workflow is not active", domain.ErrInvalidRequest)
	ErrMissingKanbanFields = fmt.Errorf("%w: missing required fields for kanban creation", domain.ErrInvalidRequest)
	ErrInvalidStep         = fmt.Errorf("%w: workflow step", domain.ErrInvalidRequest)
	ErrUnknownMoveAction   = fmt.Errorf("%w: move_inventory action", domain.ErrUnknownOperation)
)

// WorkflowRun reports what an execution did.
type WorkflowRun struct {
	WorkflowID string          `json:"workflowId"`
	Steps      []string        `json:"steps"`
	Kanbans    []domain.Kanban `json:"kanbans"`
}

func (r *WorkflowRun) lastKanban() *domain.Kanban {
	if len(r.Kanbans) == 0 {
		return nil
	}
	return &r.Kanbans[len(r.Kanbans)-1]
}

// WorkflowService runs the configured workflows. The workflow set is fixed at
// construction.
type WorkflowService struct {
	workflows  map[string]domain.Workflow
	order      []string
	kanbans    *KanbanService
	containers *ContainerService
	inventory  port.InventoryRepository
	jobs       port.JobRepository
	orders     port.OrderRepository
	notifier   port.Notifier
}

func NewWorkflowService(
	workflows []domain.Workflow,
	kanbans *KanbanService,
	containers *ContainerService,
	inventory port.InventoryRepository,
	jobs port.JobRepository,
	orders port.OrderRepository,
	notifier port.Notifier,
) *WorkflowService {
	s := &WorkflowService{
		workflows:  make(map[string]domain.Workflow, len(workflows)),
		kanbans:    kanbans,
		containers: containers,
		inventory:  inventory,
		jobs:       jobs,
		orders:     orders,
		notifier:   notifier,
	}
	for _, wf := range workflows {
		if _, dup := s.workflows[wf.ID]; !dup {
			s.order = append(s.order, wf.ID)
		}
		s.workflows[wf.ID] = wf
	}
	return s
}

func (s *WorkflowService) ListWorkflows() []domain.Workflow {
	out := make([]domain.Workflow, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.workflows[id])
	}
	return out
}

func (s *WorkflowService) GetWorkflow(id string) (*domain.Workflow, error) {
	wf, ok := s.workflows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrWorkflowNotFound, id)
	}
	return &wf, nil
}

// ExecuteWorkflow runs the steps of a workflow in ascending order; steps with
// equal order keep their declared sequence. The first failing step aborts the
// run. Effects of earlier steps are kept.
func (s *WorkflowService) ExecuteWorkflow(ctx context.Context, id string, input domain.WorkflowInput) (run *WorkflowRun, err error) {
	ctx, span := startSpan(ctx, "WorkflowService.ExecuteWorkflow", attribute.String("workflow.id", id))
	defer func() { endSpan(span, err) }()

	wf, err := s.GetWorkflow(id)
	if err != nil {
		return nil, err
	}
	if !wf.Active {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowInactive, id)
	}

	steps := append([]domain.WorkflowStep(nil), wf.Steps...)
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Order < steps[j].Order
	})

	run = &WorkflowRun{WorkflowID: id}
	for _, step := range steps {
		stepType := "unknown"
		if step.Params != nil {
			stepType = string(step.Params.StepType())
		}

		err := s.executeStep(ctx, step, input, run)
		metrics.RecordWorkflowStep(stepType, err)
		if err != nil {
			return run, fmt.Errorf("workflow %s step %s: %w", id, step.ID, err)
		}
		run.Steps = append(run.Steps, step.ID)
	}

	log.WithFields(log.Fields{
		"workflow_id": id,
		"steps":       run.Steps,
	}).Info("workflow executed")
	return run, nil
}

func (s *WorkflowService) executeStep(ctx context.Context, step domain.WorkflowStep, input domain.WorkflowInput, run *WorkflowRun) error {
	switch p := step.Params.(type) {
	case domain.CreateKanbanParams:
		return s.createKanban(ctx, p, input, run)
	case domain.MoveInventoryParams:
		return s.moveInventory(ctx, p, input, run)
	case domain.UpdateJobParams:
		return s.updateJob(ctx, p, input, run)
	case domain.NotifyTeamParams:
		return s.notifyTeam(ctx, p, input, run)
	default:
		return fmt.Errorf("%w: %T", domain.ErrUnknownStepType, step.Params)
	}
}

// mergeKanbanParams overlays the non-zero runtime input on the step's own parameters.
func mergeKanbanParams(p domain.CreateKanbanParams, in domain.WorkflowInput) CreateKanbanRequest {
	req := CreateKanbanRequest{
		Type:            p.Type,
		WithdrawalType:  p.WithdrawalType,
		PartNumber:      p.PartNumber,
		PartDescription: p.PartDescription,
		Quantity:        p.Quantity,
		WorkCenter:      p.WorkCenter,
		Priority:        p.Priority,
		JobID:           p.JobID,
		CustomerID:      p.CustomerID,
		Route:           p.Route,
	}
	if in.Type != "" {
		req.Type = in.Type
	}
	if in.WithdrawalType != "" {
		req.WithdrawalType = in.WithdrawalType
	}
	if in.PartNumber != "" {
		req.PartNumber = in.PartNumber
	}
	if in.PartDescription != "" {
		req.PartDescription = in.PartDescription
	}
	if in.Quantity != 0 {
		req.Quantity = in.Quantity
	}
	if in.WorkCenter != "" {
		req.WorkCenter = in.WorkCenter
	}
	if in.Priority != 0 {
		req.Priority = in.Priority
	}
	if in.JobID != "" {
		req.JobID = in.JobID
	}
	if in.CustomerID != "" {
		req.CustomerID = in.CustomerID
	}
	if in.Route != "" {
		req.Route = in.Route
	}
	if len(in.ContainerIDs) > 0 {
		req.ContainerIDs = append([]string(nil), in.ContainerIDs...)
	}
	return req
}

func (s *WorkflowService) createKanban(ctx context.Context, p domain.CreateKanbanParams, in domain.WorkflowInput, run *WorkflowRun) error {
	req := mergeKanbanParams(p, in)

	var missing []string
	if req.Type == "" {
		missing = append(missing, "type")
	}
	if req.PartNumber == "" {
		missing = append(missing, "partNumber")
	}
	if req.PartDescription == "" {
		missing = append(missing, "partDescription")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrMissingKanbanFields, missing)
	}

	k, err := s.kanbans.CreateKanban(ctx, req)
	if err != nil {
		return err
	}
	run.Kanbans = append(run.Kanbans, *k)
	return nil
}

func (s *WorkflowService) moveInventory(ctx context.Context, p domain.MoveInventoryParams, in domain.WorkflowInput, run *WorkflowRun) error {
	switch p.Action {
	case domain.MoveActionCheckAvailability:
		if in.PartNumber == "" {
			return fmt.Errorf("%w: check_availability needs a part number", ErrInvalidStep)
		}
		from := p.Location
		if from == "" {
			from = domain.LocationEndOfLine
			if src, _, ok := in.WithdrawalType.Route(); ok {
				from = src
			}
		}

		inv, err := s.inventory.GetInventory(ctx, in.PartNumber)
		if err != nil {
			return err
		}
		available := 0
		for _, c := range inv.ActiveAt(from) {
			available += c.Quantity
		}
		if available < in.Quantity {
			return fmt.Errorf("%w: part %s at %s, need %d, available %d",
				domain.ErrInsufficientInventory, in.PartNumber, from, in.Quantity, available)
		}
		return nil

	case domain.MoveActionMove:
		partNumber, serials := in.PartNumber, in.ContainerIDs
		if len(serials) == 0 {
			if k := run.lastKanban(); k != nil {
				partNumber, serials = k.PartNumber, k.ContainerIDs
			}
		}
		if partNumber == "" || len(serials) == 0 {
			return fmt.Errorf("%w: move needs a part number and containers", ErrInvalidStep)
		}
		return s.containers.MoveContainers(ctx, partNumber, serials, p.To)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownMoveAction, p.Action)
	}
}

func (s *WorkflowService) updateJob(ctx context.Context, p domain.UpdateJobParams, in domain.WorkflowInput, run *WorkflowRun) error {
	if p.OrderStatus != "" {
		if in.OrderID == "" {
			return fmt.Errorf("%w: order status update needs an order id", ErrInvalidStep)
		}
		if _, err := s.orders.UpdateOrderStatus(ctx, in.OrderID, p.OrderStatus); err != nil {
			return fmt.Errorf("update order %s: %w", in.OrderID, err)
		}
	}

	if p.JobStatus == "" && !p.AssignWorkCenter {
		return nil
	}

	jobID := in.JobID
	if jobID == "" {
		if k := run.lastKanban(); k != nil {
			jobID = k.JobID
		}
	}
	if jobID == "" {
		return fmt.Errorf("%w: no job to update", ErrInvalidStep)
	}

	var patch domain.JobPatch
	if p.JobStatus != "" {
		status := p.JobStatus
		patch.Status = &status
	}
	if p.AssignWorkCenter {
		wc, err := s.leastLoadedWorkCenter(ctx)
		if err != nil {
			return err
		}
		patch.WorkCenter = &wc.ID
	}

	job, err := s.jobs.UpdateJob(ctx, jobID, patch)
	if err != nil {
		return fmt.Errorf("update job %s: %w", jobID, err)
	}
	if !p.AssignWorkCenter {
		return nil
	}
	for i := range run.Kanbans {
		if run.Kanbans[i].JobID != job.ID {
			continue
		}
		k, err := s.kanbans.AssignWorkCenter(ctx, run.Kanbans[i].ID, job.WorkCenter)
		if err != nil {
			return fmt.Errorf("assign work center to kanban %s: %w", run.Kanbans[i].ID, err)
		}
		run.Kanbans[i] = *k
	}
	return nil
}

func (s *WorkflowService) leastLoadedWorkCenter(ctx context.Context) (*domain.WorkCenter, error) {
	centers, err := s.jobs.ListWorkCenters(ctx)
	if err != nil {
		return nil, err
	}
	if len(centers) == 0 {
		return nil, fmt.Errorf("%w: no work centers", domain.ErrNotFound)
	}
	best := centers[0]
	for _, wc := range centers[1:] {
		if wc.Utilization() < best.Utilization() {
			best = wc
		}
	}
	return &best, nil
}

func (s *WorkflowService) notifyTeam(ctx context.Context, p domain.NotifyTeamParams, in domain.WorkflowInput, run *WorkflowRun) error {
	if p.Team == "" {
		return fmt.Errorf("%w: notify_team needs a team", ErrInvalidStep)
	}
	n := port.Notification{
		Team:       p.Team,
		Message:    p.Message,
		PartNumber: in.PartNumber,
		JobID:      in.JobID,
		WorkCenter: in.WorkCenter,
		Priority:   in.Priority,
	}
	if k := run.lastKanban(); k != nil {
		n.KanbanID = k.ID
		n.PartNumber = k.PartNumber
		n.JobID = k.JobID
		n.WorkCenter = k.WorkCenter
		n.Priority = k.Priority
	}
	return s.notifier.Notify(ctx, n)
}
