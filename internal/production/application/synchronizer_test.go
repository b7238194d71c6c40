package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	orderdomain "github.com/docelar/backoffice/internal/order/domain"
	"github.com/docelar/backoffice/internal/production/application"
	"github.com/docelar/backoffice/internal/production/domain"
)

func newService(store *fakeStore) *application.Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return application.NewService(log, store)
}

func testOrder(id int64, status orderdomain.OrderStatus, items ...orderdomain.Item) orderdomain.Order {
	return orderdomain.Order{
		ID:           id,
		CustomerID:   1,
		Status:       status,
		OrderDate:    time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		DeliveryDate: time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
		Items:        items,
	}
}

func item(productID int64, qty int) orderdomain.Item {
	return orderdomain.Item{ProductID: productID, Quantity: qty}
}

func TestSyncOrderCreatesTask(t *testing.T) {
	store := newFakeStore()
	store.addOrder(testOrder(1, orderdomain.StatusPending, item(7, 3)))
	svc := newService(store)

	result, err := svc.SyncOrder(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, result.Synced)
	require.False(t, result.Skipped)

	task, found := store.task(7)
	require.True(t, found)
	require.Equal(t, 3, task.TotalQuantity)
	require.Equal(t, 3, task.PendingQuantity)
	require.Equal(t, 0, task.CompletedQuantity)
	require.Equal(t, domain.TaskPending, task.Status)
	require.True(t, task.Consistent())

	order := store.order(1)
	require.True(t, order.ProductionSynced)
	require.NotNil(t, order.SyncedAt)
	require.True(t, order.Items[0].ProductionCounted)

	require.Contains(t, store.eventTypes(), domain.EventTasksSynced)
}

func TestSyncOrderIdempotent(t *testing.T) {
	store := newFakeStore()
	store.addOrder(testOrder(1, orderdomain.StatusPending, item(7, 3)))
	svc := newService(store)

	_, err := svc.SyncOrder(context.Background(), 1)
	require.NoError(t, err)

	result, err := svc.SyncOrder(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, result.Skipped)

	task, _ := store.task(7)
	require.Equal(t, 3, task.TotalQuantity)
	require.Equal(t, 3, task.PendingQuantity)
}

func TestSyncOrderFinalStatusSkipped(t *testing.T) {
	store := newFakeStore()
	store.addOrder(testOrder(1, orderdomain.StatusReadyForDelivery, item(7, 3)))
	svc := newService(store)

	result, err := svc.SyncOrder(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, result.Skipped)
	require.Equal(t, 0, store.taskCount())
}

func TestSyncOrderNotFound(t *testing.T) {
	svc := newService(newFakeStore())

	_, err := svc.SyncOrder(context.Background(), 99)
	require.ErrorIs(t, err, application.ErrOrderNotFound)
}

func TestSyncOrderAggregatesExistingTask(t *testing.T) {
	store := newFakeStore()
	store.addOrder(testOrder(1, orderdomain.StatusPending, item(7, 3)))
	store.addOrder(testOrder(2, orderdomain.StatusPending, item(7, 2)))
	svc := newService(store)

	_, err := svc.SyncOrder(context.Background(), 1)
	require.NoError(t, err)
	_, err = svc.SyncOrder(context.Background(), 2)
	require.NoError(t, err)

	task, found := store.task(7)
	require.True(t, found)
	require.Equal(t, 5, task.TotalQuantity)
	require.Equal(t, 5, task.PendingQuantity)
	require.Equal(t, 1, store.taskCount())
}

func TestSyncOrderDuplicateRaceCountsDemandOnce(t *testing.T) {
	store := newFakeStore()
	store.addOrder(testOrder(1, orderdomain.StatusPending, item(7, 3)))
	svc := newService(store)

	// Another sync of the same order commits between this call's guard
	// read and its transaction, so both observed productionSynced=false.
	store.beforeTx = func(st *fakeState) {
		o := st.orders[1]
		now := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
		o.ProductionSynced = true
		o.SyncedAt = &now
		for i := range o.Items {
			o.Items[i].ProductionCounted = true
		}
		st.orders[1] = o
		st.tasks[st.nextTaskID] = domain.Task{
			ID:              st.nextTaskID,
			ProductID:       7,
			TotalQuantity:   3,
			PendingQuantity: 3,
			Status:          domain.TaskPending,
			Priority:        domain.PriorityMedium,
			DueDate:         o.DeliveryDate,
		}
		st.nextTaskID++
	}

	result, err := svc.SyncOrder(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, result.Skipped)
	require.False(t, result.Synced)

	task, found := store.task(7)
	require.True(t, found)
	require.Equal(t, 3, task.TotalQuantity, "losing sync must not double-count demand")
	require.Equal(t, 3, task.PendingQuantity)
	require.NotContains(t, store.eventTypes(), domain.EventTasksSynced)
}

func TestSyncOrderSkipsZeroQuantityItems(t *testing.T) {
	store := newFakeStore()
	store.addOrder(testOrder(1, orderdomain.StatusPending, item(7, 0), item(8, 2)))
	svc := newService(store)

	_, err := svc.SyncOrder(context.Background(), 1)
	require.NoError(t, err)

	_, found := store.task(7)
	require.False(t, found)
	task, found := store.task(8)
	require.True(t, found)
	require.Equal(t, 2, task.TotalQuantity)

	order := store.order(1)
	require.True(t, order.ProductionSynced)
	require.False(t, order.Items[0].ProductionCounted, "skipped item must not be marked counted")
	require.True(t, order.Items[1].ProductionCounted)
}

func TestSyncThenRemoveIsInverse(t *testing.T) {
	store := newFakeStore()
	store.addOrder(testOrder(1, orderdomain.StatusPending, item(7, 3)))
	store.addOrder(testOrder(2, orderdomain.StatusPending, item(7, 2), item(8, 4)))
	svc := newService(store)

	_, err := svc.SyncOrder(context.Background(), 1)
	require.NoError(t, err)
	_, err = svc.SyncOrder(context.Background(), 2)
	require.NoError(t, err)

	_, err = svc.RemoveOrderFromProduction(context.Background(), 2)
	require.NoError(t, err)

	task, found := store.task(7)
	require.True(t, found)
	require.Equal(t, 3, task.TotalQuantity)
	require.Equal(t, 3, task.PendingQuantity)

	_, found = store.task(8)
	require.False(t, found, "task with no remaining demand must be deleted")

	order := store.order(2)
	require.False(t, order.ProductionSynced)
	require.Nil(t, order.SyncedAt)
	for _, it := range order.Items {
		require.False(t, it.ProductionCounted)
	}

	_, err = svc.RemoveOrderFromProduction(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 0, store.taskCount())
}

func TestRemoveSkipsUncountedItems(t *testing.T) {
	store := newFakeStore()
	store.addOrder(testOrder(1, orderdomain.StatusPending, item(7, 3)))
	store.addOrder(testOrder(2, orderdomain.StatusPending, item(7, 2)))
	svc := newService(store)

	_, err := svc.SyncOrder(context.Background(), 1)
	require.NoError(t, err)

	// order 2 was never synced, so removing it must not touch the task
	_, err = svc.RemoveOrderFromProduction(context.Background(), 2)
	require.NoError(t, err)

	task, found := store.task(7)
	require.True(t, found)
	require.Equal(t, 3, task.TotalQuantity)
}

func TestSyncReopensCompletedTask(t *testing.T) {
	store := newFakeStore()
	store.addOrder(testOrder(1, orderdomain.StatusPending, item(7, 3)))
	svc := newService(store)

	_, err := svc.SyncOrder(context.Background(), 1)
	require.NoError(t, err)

	task, _ := store.task(7)
	_, err = svc.UpdateProgress(context.Background(), task.ID, 3)
	require.NoError(t, err)

	task, _ = store.task(7)
	require.Equal(t, domain.TaskCompleted, task.Status)

	store.addOrder(testOrder(2, orderdomain.StatusPending, item(7, 2)))
	_, err = svc.SyncOrder(context.Background(), 2)
	require.NoError(t, err)

	task, _ = store.task(7)
	require.Equal(t, domain.TaskPending, task.Status)
	require.Equal(t, 5, task.TotalQuantity)
	require.Equal(t, 2, task.PendingQuantity)
	require.Equal(t, 3, task.CompletedQuantity)
	require.True(t, task.Consistent())
}

func TestSyncFailureRollsBackAndWraps(t *testing.T) {
	store := newFakeStore()
	store.addOrder(testOrder(1, orderdomain.StatusPending, item(7, 3)))
	store.txErr = errors.New("store unavailable")
	svc := newService(store)

	_, err := svc.SyncOrder(context.Background(), 1)

	var syncErr *application.SyncError
	require.ErrorAs(t, err, &syncErr)
	require.Equal(t, int64(1), syncErr.OrderID)

	require.Equal(t, 0, store.taskCount())
	order := store.order(1)
	require.False(t, order.ProductionSynced)
	require.False(t, order.Items[0].ProductionCounted)

	// the guard never fired, so a retry after recovery succeeds
	store.txErr = nil
	result, err := svc.SyncOrder(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, result.Synced)
}

func TestUpdateProgressBounds(t *testing.T) {
	store := newFakeStore()
	store.addOrder(testOrder(1, orderdomain.StatusPending, item(7, 3)))
	svc := newService(store)

	_, err := svc.SyncOrder(context.Background(), 1)
	require.NoError(t, err)
	task, _ := store.task(7)

	_, err = svc.UpdateProgress(context.Background(), task.ID, 0)
	require.ErrorIs(t, err, application.ErrInvalidDelta)
	_, err = svc.UpdateProgress(context.Background(), task.ID, -2)
	require.ErrorIs(t, err, application.ErrInvalidDelta)

	_, err = svc.UpdateProgress(context.Background(), task.ID, 4)
	require.ErrorIs(t, err, application.ErrExceedsTotal)

	task, _ = store.task(7)
	require.Equal(t, 0, task.CompletedQuantity, "failed update must not leak partial state")
}

func TestUpdateProgressCompletionPropagatesToOrder(t *testing.T) {
	store := newFakeStore()
	store.addOrder(testOrder(1, orderdomain.StatusPending, item(7, 3)))
	svc := newService(store)

	_, err := svc.SyncOrder(context.Background(), 1)
	require.NoError(t, err)
	task, _ := store.task(7)

	updated, err := svc.UpdateProgress(context.Background(), task.ID, 3)
	require.NoError(t, err)
	require.Equal(t, domain.TaskCompleted, updated.Status)

	require.Equal(t, orderdomain.StatusReadyForDelivery, store.order(1).Status)
}

func TestUpdateProgressPartialMovesOrderToInProduction(t *testing.T) {
	store := newFakeStore()
	store.addOrder(testOrder(1, orderdomain.StatusPending, item(7, 3)))
	svc := newService(store)

	_, err := svc.SyncOrder(context.Background(), 1)
	require.NoError(t, err)
	task, _ := store.task(7)

	updated, err := svc.UpdateProgress(context.Background(), task.ID, 1)
	require.NoError(t, err)
	require.Equal(t, domain.TaskInProduction, updated.Status)

	require.Equal(t, orderdomain.StatusInProduction, store.order(1).Status)
}

func TestUpdateProgressCompletionWaitsForAllItems(t *testing.T) {
	store := newFakeStore()
	store.addOrder(testOrder(1, orderdomain.StatusPending, item(7, 3), item(8, 2)))
	svc := newService(store)

	_, err := svc.SyncOrder(context.Background(), 1)
	require.NoError(t, err)
	task7, _ := store.task(7)

	_, err = svc.UpdateProgress(context.Background(), task7.ID, 3)
	require.NoError(t, err)
	require.NotEqual(t, orderdomain.StatusReadyForDelivery, store.order(1).Status,
		"order with an unfinished item must not become ready")

	task8, _ := store.task(8)
	_, err = svc.UpdateProgress(context.Background(), task8.ID, 2)
	require.NoError(t, err)
	require.Equal(t, orderdomain.StatusReadyForDelivery, store.order(1).Status)
}

func TestUpdateTaskStatus(t *testing.T) {
	store := newFakeStore()
	store.addOrder(testOrder(1, orderdomain.StatusPending, item(7, 3)))
	svc := newService(store)

	_, err := svc.SyncOrder(context.Background(), 1)
	require.NoError(t, err)
	task, _ := store.task(7)

	_, err = svc.UpdateTaskStatus(context.Background(), task.ID, domain.TaskStatus("BOGUS"))
	require.ErrorIs(t, err, application.ErrInvalidStatus)

	updated, err := svc.UpdateTaskStatus(context.Background(), task.ID, domain.TaskCancelled)
	require.NoError(t, err)
	require.Equal(t, domain.TaskCancelled, updated.Status)

	_, err = svc.UpdateTaskStatus(context.Background(), 999, domain.TaskPending)
	require.ErrorIs(t, err, application.ErrTaskNotFound)
}

func TestPriorityRecalculationRanksOpenTasks(t *testing.T) {
	store := newFakeStore()
	store.addOrder(testOrder(1, orderdomain.StatusPending, item(1, 10)))
	store.addOrder(testOrder(2, orderdomain.StatusPending, item(2, 20)))
	store.addOrder(testOrder(3, orderdomain.StatusPending, item(3, 30)))
	store.addOrder(testOrder(4, orderdomain.StatusPending, item(4, 40)))
	svc := newService(store)

	for id := int64(1); id <= 4; id++ {
		_, err := svc.SyncOrder(context.Background(), id)
		require.NoError(t, err)
	}

	want := map[int64]domain.Priority{
		1: domain.PriorityLow,
		2: domain.PriorityMedium,
		3: domain.PriorityHigh,
		4: domain.PriorityUrgent,
	}
	for productID, priority := range want {
		task, found := store.task(productID)
		require.True(t, found)
		require.Equal(t, priority, task.Priority, "product %d", productID)
	}
}

func TestRecalculateAllPrioritiesEmptyIsNoop(t *testing.T) {
	svc := newService(newFakeStore())
	require.NoError(t, svc.RecalculateAllPriorities(context.Background()))
}
