package domain

import "time"

type OrderStatus string

const (
	StatusPending            OrderStatus = "PENDING"
	StatusInProgress         OrderStatus = "IN_PROGRESS"
	StatusInProduction       OrderStatus = "IN_PRODUCTION"
	StatusReadyForDelivery   OrderStatus = "READY_FOR_DELIVERY"
	StatusDelivered          OrderStatus = "DELIVERED"
	StatusCancelled          OrderStatus = "CANCELLED"
	StatusProductionComplete OrderStatus = "PRODUCTION_COMPLETE"
)

// IsFinal reports whether the status is terminal for production
// synchronization: orders in a final status are never folded into
// production tasks again.
func (s OrderStatus) IsFinal() bool {
	switch s {
	case StatusReadyForDelivery, StatusDelivered, StatusProductionComplete:
		return true
	}
	return false
}

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusInProduction,
		StatusReadyForDelivery, StatusDelivered, StatusCancelled,
		StatusProductionComplete:
		return true
	}
	return false
}

type Order struct {
	ID               int64       `json:"id"`
	CustomerID       int64       `json:"customerId"`
	Status           OrderStatus `json:"status"`
	OrderDate        time.Time   `json:"orderDate"`
	DeliveryDate     time.Time   `json:"deliveryDate"`
	Notes            string      `json:"notes"`
	Subtotal         float64     `json:"subtotal"`
	Discount         float64     `json:"discount"`
	Total            float64     `json:"total"`
	ProductionSynced bool        `json:"productionSynced"`
	SyncedAt         *time.Time  `json:"syncedAt,omitempty"`
	Items            []Item      `json:"items"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

type Item struct {
	ID                int64   `json:"id"`
	OrderID           int64   `json:"orderId"`
	ProductID         int64   `json:"productId"`
	Quantity          int     `json:"quantity"`
	UnitPrice         float64 `json:"unitPrice"`
	Subtotal          float64 `json:"subtotal"`
	ProductionCounted bool    `json:"productionCounted"`
}

func NewOrder(customerID int64, orderDate, deliveryDate time.Time, notes string) Order {
	now := time.Now().UTC()
	return Order{
		CustomerID:   customerID,
		Status:       StatusPending,
		OrderDate:    orderDate,
		DeliveryDate: deliveryDate,
		Notes:        notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Recalculate refreshes the order totals from its items.
func (o *Order) Recalculate() {
	var subtotal float64
	for _, item := range o.Items {
		subtotal += item.Subtotal
	}
	o.Subtotal = subtotal
	o.Total = subtotal - o.Discount
}
