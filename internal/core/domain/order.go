package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending      OrderStatus = "pending"
	OrderStatusInProduction OrderStatus = "in_production"
	OrderStatusShipped      OrderStatus = "shipped"
	OrderStatusCancelled    OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusInProduction, OrderStatusShipped, OrderStatusCancelled:
		return true
	}
	return false
}

type CustomerOrder struct {
	ID         string      `json:"id"`
	CustomerID string      `json:"customerId"`
	PartNumber string      `json:"partNumber"`
	Quantity   int         `json:"quantity"`
	DueDate    time.Time   `json:"dueDate"`
	Status     OrderStatus `json:"status"`
	Route      string      `json:"route"`
}
