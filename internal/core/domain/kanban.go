package domain

import "time"

type KanbanType string

const (
	KanbanTypeWithdrawal KanbanType = "withdrawal"
	KanbanTypeProduction KanbanType = "production"
)

func (t KanbanType) Valid() bool {
	return t == KanbanTypeWithdrawal || t == KanbanTypeProduction
}

type KanbanStatus string

const (
	KanbanStatusPending   KanbanStatus = "pending"
	KanbanStatusActive    KanbanStatus = "active"
	KanbanStatusCompleted KanbanStatus = "completed"
	KanbanStatusCancelled KanbanStatus = "cancelled"
)

func (s KanbanStatus) Terminal() bool {
	return s == KanbanStatusCompleted || s == KanbanStatusCancelled
}

// WithdrawalType mirrors the colour of the physical withdrawal card.
type WithdrawalType string

const (
	WithdrawalEndToTPA  WithdrawalType = "end_to_tpa"  // green card
	WithdrawalEndToPool WithdrawalType = "end_to_pool" // dark blue card
	WithdrawalPoolToTPA WithdrawalType = "pool_to_tpa" // light blue card
)

// Route returns the source and destination locations of a withdrawal.
func (w WithdrawalType) Route() (from, to Location, ok bool) {
	switch w {
	case WithdrawalEndToTPA:
		return LocationEndOfLine, LocationTPA, true
	case WithdrawalEndToPool:
		return LocationEndOfLine, LocationPoolStock, true
	case WithdrawalPoolToTPA:
		return LocationPoolStock, LocationTPA, true
	}
	return "", "", false
}

type Kanban struct {
	ID          string       `json:"id"`
	Type        KanbanType   `json:"type"`
	Status      KanbanStatus `json:"status"`
	CreatedAt   time.Time    `json:"createdAt"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
	CancelledAt *time.Time   `json:"cancelledAt,omitempty"`

	PartNumber      string   `json:"partNumber"`
	PartDescription string   `json:"partDescription"`
	Quantity        int      `json:"quantity"`
	ContainerIDs    []string `json:"containerIds"`
	CustomerID      string   `json:"customerId,omitempty"`
	Route           string   `json:"route,omitempty"`

	// withdrawal
	WithdrawalType WithdrawalType `json:"withdrawalType,omitempty"`
	FromLocation   Location       `json:"fromLocation,omitempty"`
	ToLocation     Location       `json:"toLocation,omitempty"`

	// production
	WorkCenter string `json:"workCenter,omitempty"`
	Priority   int    `json:"priority,omitempty"`
	JobID      string `json:"jobId,omitempty"`
}

func (k Kanban) Clone() Kanban {
	out := k
	out.ContainerIDs = append([]string{}, k.ContainerIDs...)
	if k.CompletedAt != nil {
		t := *k.CompletedAt
		out.CompletedAt = &t
	}
	if k.CancelledAt != nil {
		t := *k.CancelledAt
		out.CancelledAt = &t
	}
	return out
}
