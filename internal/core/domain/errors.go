package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Specific errors below wrap one of these so callers can classify
// with errors.Is.
var (
	ErrNotFound              = errors.New("not found")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrInvalidRequest        = errors.New("invalid request")
	ErrUnknownOperation      = errors.New("unknown operation")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrOptimisticLock        = errors.New("optimistic lock conflict")
)

var (
	ErrKanbanNotFound    = fmt.Errorf("kanban %w", ErrNotFound)
	ErrContainerNotFound = fmt.Errorf("container %w", ErrNotFound)
	ErrInventoryNotFound = fmt.Errorf("inventory %w", ErrNotFound)
	ErrJobNotFound       = fmt.Errorf("job %w", ErrNotFound)
	ErrOrderNotFound     = fmt.Errorf("order %w", ErrNotFound)
	ErrWorkflowNotFound  = fmt.Errorf("workflow %w", ErrNotFound)

	ErrUnknownStepType = fmt.Errorf("%w: workflow step type", ErrUnknownOperation)
)
