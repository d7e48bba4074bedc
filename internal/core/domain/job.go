package domain

import "time"

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusCancelled  JobStatus = "cancelled"
)

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusInProgress, JobStatusCompleted, JobStatusCancelled:
		return true
	}
	return false
}

type Job struct {
	ID             string    `json:"id"`
	PartNumber     string    `json:"partNumber"`
	Quantity       int       `json:"quantity"`
	CompletionDate time.Time `json:"completionDate"`
	SortOrder      int       `json:"sortOrder"`
	WorkCenter     string    `json:"workCenter"`
	Status         JobStatus `json:"status"`
	Priority       int       `json:"priority"`
	Version        int       `json:"-"`
}

// JobPatch carries the fields of a partial job update; nil fields are left as is.
type JobPatch struct {
	Status     *JobStatus `json:"status,omitempty"`
	Priority   *int       `json:"priority,omitempty"`
	WorkCenter *string    `json:"workCenter,omitempty"`
	SortOrder  *int       `json:"sortOrder,omitempty"`
}

// Apply writes the non-nil fields of p onto j.
func (p JobPatch) Apply(j *Job) {
	if p.Status != nil {
		j.Status = *p.Status
	}
	if p.Priority != nil {
		j.Priority = *p.Priority
	}
	if p.WorkCenter != nil {
		j.WorkCenter = *p.WorkCenter
	}
	if p.SortOrder != nil {
		j.SortOrder = *p.SortOrder
	}
}

type WorkCenter struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MachineGroup string `json:"machineGroup"`
	Capacity     int    `json:"capacity"`
	CurrentLoad  int    `json:"currentLoad"`
}

// Utilization is CurrentLoad/Capacity; a work center without capacity counts as full.
func (w WorkCenter) Utilization() float64 {
	if w.Capacity <= 0 {
		return 1
	}
	return float64(w.CurrentLoad) / float64(w.Capacity)
}
