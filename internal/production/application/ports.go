package application

import (
	"context"
	"time"

	orderdomain "github.com/docelar/backoffice/internal/order/domain"
	"github.com/docelar/backoffice/internal/production/domain"
	"github.com/docelar/backoffice/pkg/outbox"
)

// TaskFilter narrows task listings. Zero values mean "no filter".
type TaskFilter struct {
	Status   domain.TaskStatus
	Priority domain.Priority
	// OnlyOpen limits to PENDING and IN_PRODUCTION when no status filter
	// is set.
	OnlyOpen bool
	Page     int
	Limit    int
}

type SyncCounts struct {
	TotalOrders  int `json:"totalOrders"`
	SyncedOrders int `json:"syncedOrders"`
	NotSynced    int `json:"notSynced"`
	ActiveOrders int `json:"activeOrders"`
}

// Store is the transactional data access the synchronizer consumes. Read
// methods outside RunInTx see committed state; everything inside the tx
// callback is all-or-nothing.
type Store interface {
	RunInTx(ctx context.Context, fn func(Tx) error) error

	GetOrder(ctx context.Context, orderID int64) (orderdomain.Order, error)
	ListActiveOrders(ctx context.Context) ([]orderdomain.Order, error)
	ListUnsyncedActiveOrders(ctx context.Context) ([]orderdomain.Order, error)
	ListOrdersWithCountedProduct(ctx context.Context, productID int64, statuses []orderdomain.OrderStatus) ([]orderdomain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status orderdomain.OrderStatus) error

	GetTask(ctx context.Context, taskID int64) (domain.Task, error)
	TaskByProduct(ctx context.Context, productID int64) (domain.Task, bool, error)
	ListTasks(ctx context.Context, f TaskFilter) ([]domain.Task, int, error)
	ListOpenTasks(ctx context.Context) ([]domain.Task, error)
	SyncCounts(ctx context.Context) (SyncCounts, error)
}

// Tx exposes the mutations available inside one transaction. ForUpdate
// reads take row locks so concurrent synchronizations touching the same
// product's task serialize at the store.
type Tx interface {
	TaskByProductForUpdate(ctx context.Context, productID int64) (domain.Task, bool, error)
	TaskForUpdate(ctx context.Context, taskID int64) (domain.Task, error)
	ListOpenTasksForUpdate(ctx context.Context) ([]domain.Task, error)
	InsertTask(ctx context.Context, t domain.Task) (int64, error)
	UpdateTask(ctx context.Context, t domain.Task) error
	DeleteTask(ctx context.Context, taskID int64) error
	DeleteAllTasks(ctx context.Context) error
	DeleteCompletedTasks(ctx context.Context) (int64, error)
	SetPriorities(ctx context.Context, priorities map[int64]domain.Priority) error

	EarliestDeliveryDate(ctx context.Context, productID int64) (time.Time, bool, error)
	SetItemsCounted(ctx context.Context, orderID, productID int64, counted bool) error
	SetOrderSynced(ctx context.Context, orderID int64, synced bool, at *time.Time) error
	ResetSyncFlags(ctx context.Context) error

	AppendEvent(ctx context.Context, rec outbox.Record) error
}
