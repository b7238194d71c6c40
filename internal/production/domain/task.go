package domain

import "time"

type TaskStatus string

const (
	TaskPending      TaskStatus = "PENDING"
	TaskInProduction TaskStatus = "IN_PRODUCTION"
	TaskCompleted    TaskStatus = "COMPLETED"
	TaskCancelled    TaskStatus = "CANCELLED"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProduction, TaskCompleted, TaskCancelled:
		return true
	}
	return false
}

// Open reports whether the task still competes for production capacity.
func (s TaskStatus) Open() bool {
	return s == TaskPending || s == TaskInProduction
}

// Task aggregates the manufacturing demand for one product across all
// active orders. There is at most one task per product.
type Task struct {
	ID                int64      `json:"id"`
	ProductID         int64      `json:"productId"`
	TotalQuantity     int        `json:"totalQuantity"`
	PendingQuantity   int        `json:"pendingQuantity"`
	CompletedQuantity int        `json:"completedQuantity"`
	Status            TaskStatus `json:"status"`
	Priority          Priority   `json:"priority"`
	DueDate           time.Time  `json:"dueDate"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// Consistent checks the quantity invariant: total equals pending plus
// completed, and completed never exceeds total.
func (t Task) Consistent() bool {
	return t.TotalQuantity == t.PendingQuantity+t.CompletedQuantity &&
		t.CompletedQuantity <= t.TotalQuantity
}

// Add folds demand for qty more units into the task, reopening it when
// it had already been closed.
func (t *Task) Add(qty int, dueDate time.Time) {
	t.TotalQuantity += qty
	t.PendingQuantity += qty
	if t.Status == TaskCompleted || t.Status == TaskCancelled {
		t.Status = TaskPending
	}
	t.DueDate = dueDate
}

// Subtract removes demand for qty units, flooring at zero and clamping
// the completed count to the reduced total. It returns true when the
// task reached zero and should be deleted.
func (t *Task) Subtract(qty int) bool {
	t.TotalQuantity = max(0, t.TotalQuantity-qty)
	t.PendingQuantity = max(0, t.PendingQuantity-qty)
	if t.CompletedQuantity > t.TotalQuantity {
		t.CompletedQuantity = t.TotalQuantity
	}
	if t.TotalQuantity == 0 {
		return true
	}
	if t.PendingQuantity > 0 && t.Status == TaskCompleted {
		t.Status = TaskPending
	}
	return false
}

// Progress applies a completed-quantity delta. Callers validate delta
// and bounds beforehand.
func (t *Task) Progress(delta int) {
	t.CompletedQuantity += delta
	t.PendingQuantity = max(0, t.PendingQuantity-delta)
	if t.PendingQuantity == 0 {
		t.Status = TaskCompleted
	} else if t.Status == TaskPending {
		t.Status = TaskInProduction
	}
}
