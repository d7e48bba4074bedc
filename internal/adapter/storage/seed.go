package storage

import (
	"time"

	"github.com/rl1809/digital-kanban/internal/core/domain"
)

// MockData is the demo plant used when no ERP backend is configured: three
// parts with two end-of-line containers each, three jobs, three work centers
// and three customer orders.
type MockData struct {
	Inventory   []domain.Inventory
	Jobs        []domain.Job
	WorkCenters []domain.WorkCenter
	Orders      []domain.CustomerOrder
}

func container(serial, part string, qty int) domain.Container {
	return domain.Container{
		SerialNumber: serial,
		PartNumber:   part,
		Quantity:     qty,
		Location:     domain.LocationEndOfLine,
		Status:       domain.ContainerStatusActive,
	}
}

func date(s string) time.Time {
	t, _ := time.Parse(time.DateOnly, s)
	return t
}

func NewMockData() MockData {
	return MockData{
		Inventory: []domain.Inventory{
			{
				PartNumber:      "PART-001",
				PartDescription: "Steel Bracket Assembly",
				Location:        domain.LocationEndOfLine,
				Containers: []domain.Container{
					container("CONT-001", "PART-001", 100),
					container("CONT-002", "PART-001", 150),
				},
			},
			{
				PartNumber:      "PART-002",
				PartDescription: "Aluminum Housing",
				Location:        domain.LocationEndOfLine,
				Containers: []domain.Container{
					container("CONT-003", "PART-002", 70),
					container("CONT-004", "PART-002", 50),
				},
			},
			{
				PartNumber:      "PART-003",
				PartDescription: "Plastic Cover",
				Location:        domain.LocationEndOfLine,
				Containers: []domain.Container{
					container("CONT-005", "PART-003", 150),
					container("CONT-006", "PART-003", 150),
				},
			},
		},
		Jobs: []domain.Job{
			{ID: "job-001", PartNumber: "PART-001", Quantity: 100, CompletionDate: date("2024-02-15"), SortOrder: 1, WorkCenter: "WC-01", Status: domain.JobStatusPending, Priority: 1},
			{ID: "job-002", PartNumber: "PART-002", Quantity: 50, CompletionDate: date("2024-02-16"), SortOrder: 2, WorkCenter: "WC-02", Status: domain.JobStatusInProgress, Priority: 2},
			{ID: "job-003", PartNumber: "PART-003", Quantity: 75, CompletionDate: date("2024-02-17"), SortOrder: 3, WorkCenter: "WC-01", Status: domain.JobStatusPending, Priority: 3},
		},
		WorkCenters: []domain.WorkCenter{
			{ID: "WC-01", Name: "Assembly Line 1", MachineGroup: "Assembly", Capacity: 100, CurrentLoad: 60},
			{ID: "WC-02", Name: "Assembly Line 2", MachineGroup: "Assembly", Capacity: 100, CurrentLoad: 40},
			{ID: "WC-03", Name: "Packaging Station", MachineGroup: "Packaging", Capacity: 200, CurrentLoad: 80},
		},
		Orders: []domain.CustomerOrder{
			{ID: "order-001", CustomerID: "CUST-001", PartNumber: "PART-001", Quantity: 50, DueDate: date("2024-02-20"), Status: domain.OrderStatusPending, Route: "TPA"},
			{ID: "order-002", CustomerID: "CUST-002", PartNumber: "PART-002", Quantity: 25, DueDate: date("2024-02-22"), Status: domain.OrderStatusInProduction, Route: "TPA"},
			{ID: "order-003", CustomerID: "CUST-003", PartNumber: "PART-003", Quantity: 100, DueDate: date("2024-02-25"), Status: domain.OrderStatusPending, Route: "Pool"},
		},
	}
}
