package domain

type StepType string

const (
	StepCreateKanban  StepType = "create_kanban"
	StepMoveInventory StepType = "move_inventory"
	StepUpdateJob     StepType = "update_job"
	StepNotifyTeam    StepType = "notify_team"
)

// StepParams is the typed parameter set of one workflow step. The concrete type
// is the step's tag.
type StepParams interface {
	StepType() StepType
}

type CreateKanbanParams struct {
	Type            KanbanType     `yaml:"type" json:"type,omitempty"`
	WithdrawalType  WithdrawalType `yaml:"withdrawal_type" json:"withdrawalType,omitempty"`
	PartNumber      string         `yaml:"part_number" json:"partNumber,omitempty"`
	PartDescription string         `yaml:"part_description" json:"partDescription,omitempty"`
	Quantity        int            `yaml:"quantity" json:"quantity,omitempty"`
	WorkCenter      string         `yaml:"work_center" json:"workCenter,omitempty"`
	Priority        int            `yaml:"priority" json:"priority,omitempty"`
	JobID           string         `yaml:"job_id" json:"jobId,omitempty"`
	CustomerID      string         `yaml:"customer_id" json:"customerId,omitempty"`
	Route           string         `yaml:"route" json:"route,omitempty"`
}

func (CreateKanbanParams) StepType() StepType { return StepCreateKanban }

type MoveAction string

const (
	MoveActionCheckAvailability MoveAction = "check_availability"
	MoveActionMove              MoveAction = "move"
)

type MoveInventoryParams struct {
	Action   MoveAction `yaml:"action" json:"action,omitempty"`
	Location Location   `yaml:"location" json:"location,omitempty"` // source for check_availability
	To       Location   `yaml:"to" json:"to,omitempty"`             // destination for move
}

func (MoveInventoryParams) StepType() StepType { return StepMoveInventory }

type UpdateJobParams struct {
	OrderStatus      OrderStatus `yaml:"order_status" json:"orderStatus,omitempty"`
	JobStatus        JobStatus   `yaml:"job_status" json:"jobStatus,omitempty"`
	AssignWorkCenter bool        `yaml:"assign_work_center" json:"assignWorkCenter,omitempty"`
}

func (UpdateJobParams) StepType() StepType { return StepUpdateJob }

type NotifyTeamParams struct {
	Team    string `yaml:"team" json:"team,omitempty"`
	Message string `yaml:"message" json:"message,omitempty"`
}

func (NotifyTeamParams) StepType() StepType { return StepNotifyTeam }

type WorkflowStep struct {
	ID     string
	Name   string
	Order  int
	Params StepParams
}

type Workflow struct {
	ID          string
	Name        string
	Description string
	Active      bool
	Steps       []WorkflowStep
}

// WorkflowInput holds the runtime parameters of a workflow execution. Zero
// values mean "not supplied"; supplied values win over step parameters.
type WorkflowInput struct {
	Type            KanbanType     `json:"type,omitempty"`
	WithdrawalType  WithdrawalType `json:"withdrawalType,omitempty"`
	PartNumber      string         `json:"partNumber,omitempty"`
	PartDescription string         `json:"partDescription,omitempty"`
	Quantity        int            `json:"quantity,omitempty"`
	WorkCenter      string         `json:"workCenter,omitempty"`
	Priority        int            `json:"priority,omitempty"`
	JobID           string         `json:"jobId,omitempty"`
	CustomerID      string         `json:"customerId,omitempty"`
	Route           string         `json:"route,omitempty"`
	OrderID         string         `json:"orderId,omitempty"`
	ContainerIDs    []string       `json:"containerIds,omitempty"`
}
