package domain

// Event types written to the outbox by production mutations. The kafka
// consumer reacts to them with the best-effort post-commit steps.
const (
	EventTasksSynced       = "ProductionTasksSynced"
	EventOrderRemoved      = "OrderRemovedFromProduction"
	EventProgressUpdated   = "TaskProgressUpdated"
	EventTaskStatusChanged = "TaskStatusChanged"
)

type TasksSynced struct {
	OrderID    int64   `json:"orderId"`
	ProductIDs []int64 `json:"productIds"`
}

type OrderRemoved struct {
	OrderID    int64   `json:"orderId"`
	ProductIDs []int64 `json:"productIds"`
}

type ProgressUpdated struct {
	TaskID    int64      `json:"taskId"`
	ProductID int64      `json:"productId"`
	Status    TaskStatus `json:"status"`
}

type StatusChanged struct {
	TaskID    int64      `json:"taskId"`
	ProductID int64      `json:"productId"`
	Status    TaskStatus `json:"status"`
}
