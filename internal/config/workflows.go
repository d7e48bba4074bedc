package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rl1809/digital-kanban/internal/core/domain"
)

//go:embed default_workflows.yaml
var defaultWorkflows []byte

// YAMLWorkflowFile is the top-level structure of a workflow definition file.
type YAMLWorkflowFile struct {
	Workflows []YAMLWorkflow `yaml:"workflows"`
}

type YAMLWorkflow struct {
	ID          string     `yaml:"id"`
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Active      *bool      `yaml:"active"`
	Steps       []YAMLStep `yaml:"steps"`
}

// YAMLStep keeps its params undecoded until the step type is known.
type YAMLStep struct {
	ID     string          `yaml:"id"`
	Name   string          `yaml:"name"`
	Type   domain.StepType `yaml:"type"`
	Order  int             `yaml:"order"`
	Params yaml.Node       `yaml:"params"`
}

// DefaultWorkflows returns the built-in customer-order and production workflows.
func DefaultWorkflows() ([]domain.Workflow, error) {
	return ParseWorkflows(defaultWorkflows)
}

// LoadWorkflows reads definitions from path, or the built-in ones when path is empty.
func LoadWorkflows(path string) ([]domain.Workflow, error) {
	if path == "" {
		return DefaultWorkflows()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}
	return ParseWorkflows(data)
}

func ParseWorkflows(data []byte) ([]domain.Workflow, error) {
	var file YAMLWorkflowFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse workflows: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Workflows))
	out := make([]domain.Workflow, 0, len(file.Workflows))
	for _, yw := range file.Workflows {
		if yw.ID == "" {
			return nil, errors.New("workflow id is required")
		}
		if _, dup := seen[yw.ID]; dup {
			return nil, fmt.Errorf("duplicate workflow id %q", yw.ID)
		}
		seen[yw.ID] = struct{}{}

		wf := domain.Workflow{
			ID:          yw.ID,
			Name:        yw.Name,
			Description: yw.Description,
			Active:      yw.Active == nil || *yw.Active,
			Steps:       make([]domain.WorkflowStep, 0, len(yw.Steps)),
		}
		for _, ys := range yw.Steps {
			step, err := ys.toStep()
			if err != nil {
				return nil, fmt.Errorf("workflow %s: %w", yw.ID, err)
			}
			wf.Steps = append(wf.Steps, step)
		}
		out = append(out, wf)
	}
	return out, nil
}

func (ys YAMLStep) toStep() (domain.WorkflowStep, error) {
	if ys.ID == "" {
		return domain.WorkflowStep{}, errors.New("step id is required")
	}

	var (
		params domain.StepParams
		err    error
	)
	switch ys.Type {
	case domain.StepCreateKanban:
		var p domain.CreateKanbanParams
		err = decodeParams(ys.Params, &p)
		if err == nil && p.Type != "" && !p.Type.Valid() {
			err = fmt.Errorf("unknown kanban type %q", p.Type)
		}
		params = p
	case domain.StepMoveInventory:
		var p domain.MoveInventoryParams
		err = decodeParams(ys.Params, &p)
		if err == nil && p.Action != domain.MoveActionCheckAvailability && p.Action != domain.MoveActionMove {
			err = fmt.Errorf("unknown move_inventory action %q", p.Action)
		}
		params = p
	case domain.StepUpdateJob:
		var p domain.UpdateJobParams
		err = decodeParams(ys.Params, &p)
		params = p
	case domain.StepNotifyTeam:
		var p domain.NotifyTeamParams
		err = decodeParams(ys.Params, &p)
		params = p
	default:
		return domain.WorkflowStep{}, fmt.Errorf("step %s: %w %q", ys.ID, domain.ErrUnknownStepType, ys.Type)
	}
	if err != nil {
		return domain.WorkflowStep{}, fmt.Errorf("step %s: %w", ys.ID, err)
	}

	return domain.WorkflowStep{
		ID:     ys.ID,
		Name:   ys.Name,
		Order:  ys.Order,
		Params: params,
	}, nil
}

func decodeParams(node yaml.Node, out interface{}) error {
	if node.Kind == 0 {
		return nil
	}
	return node.Decode(out)
}
