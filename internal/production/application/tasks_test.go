package application_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	orderdomain "github.com/docelar/backoffice/internal/order/domain"
	"github.com/docelar/backoffice/internal/production/application"
	"github.com/docelar/backoffice/internal/production/domain"
)

func TestSyncAllOrders(t *testing.T) {
	store := newFakeStore()
	store.addOrder(testOrder(1, orderdomain.StatusPending, item(7, 3)))
	store.addOrder(testOrder(2, orderdomain.StatusInProgress, item(8, 2)))
	store.addOrder(testOrder(3, orderdomain.StatusDelivered, item(9, 1)))
	svc := newService(store)

	result, err := svc.SyncAllOrders(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, result.TotalOrders, "final orders are not listed as active")
	require.Equal(t, 2, result.Synced)
	require.Equal(t, 0, result.Failed)

	// a second full sync only hits the idempotent guard
	result, err = svc.SyncAllOrders(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, result.Skipped)
	require.Equal(t, 0, result.Synced)
}

func TestSyncPendingOrders(t *testing.T) {
	store := newFakeStore()
	store.addOrder(testOrder(1, orderdomain.StatusPending, item(7, 3)))
	store.addOrder(testOrder(2, orderdomain.StatusPending, item(8, 2)))
	svc := newService(store)

	_, err := svc.SyncOrder(context.Background(), 1)
	require.NoError(t, err)

	result, err := svc.SyncPendingOrders(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.TotalOrders)
	require.Equal(t, 1, result.Synced)
}

func TestSyncAllOrdersCleanRebuilds(t *testing.T) {
	store := newFakeStore()
	store.addOrder(testOrder(1, orderdomain.StatusPending, item(7, 3)))
	svc := newService(store)

	_, err := svc.SyncOrder(context.Background(), 1)
	require.NoError(t, err)

	// drift the task away from the orders' demand
	task, _ := store.task(7)
	_, err = svc.UpdateTask(context.Background(), task.ID, application.TaskPatch{TotalQuantity: intPtr(99), PendingQuantity: intPtr(99)})
	require.NoError(t, err)

	result, err := svc.SyncAllOrdersClean(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Synced)

	task, found := store.task(7)
	require.True(t, found)
	require.Equal(t, 3, task.TotalQuantity)
	require.Equal(t, 3, task.PendingQuantity)
}

func TestSyncStatus(t *testing.T) {
	store := newFakeStore()
	store.addOrder(testOrder(1, orderdomain.StatusPending, item(7, 3)))
	store.addOrder(testOrder(2, orderdomain.StatusPending, item(8, 2)))
	svc := newService(store)

	_, err := svc.SyncOrder(context.Background(), 1)
	require.NoError(t, err)

	counts, err := svc.SyncStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, counts.TotalOrders)
	require.Equal(t, 1, counts.SyncedOrders)
	require.Equal(t, 1, counts.NotSynced)
	require.Equal(t, 2, counts.ActiveOrders)
}

func TestListTasksDefaults(t *testing.T) {
	store := newFakeStore()
	store.addOrder(testOrder(1, orderdomain.StatusPending, item(7, 3)))
	svc := newService(store)

	_, err := svc.SyncOrder(context.Background(), 1)
	require.NoError(t, err)
	task, _ := store.task(7)
	_, err = svc.UpdateTaskStatus(context.Background(), task.ID, domain.TaskCancelled)
	require.NoError(t, err)

	page, err := svc.ListTasks(context.Background(), application.TaskFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, page.Page)
	require.Equal(t, 50, page.Limit)
	require.Empty(t, page.Tasks, "cancelled tasks are hidden without a status filter")

	page, err = svc.ListTasks(context.Background(), application.TaskFilter{Status: domain.TaskCancelled})
	require.NoError(t, err)
	require.Len(t, page.Tasks, 1)

	_, err = svc.ListTasks(context.Background(), application.TaskFilter{Status: domain.TaskStatus("BOGUS")})
	require.ErrorIs(t, err, application.ErrInvalidStatus)
}

func TestGetDashboard(t *testing.T) {
	store := newFakeStore()
	store.addOrder(testOrder(1, orderdomain.StatusPending, item(1, 10)))
	store.addOrder(testOrder(2, orderdomain.StatusPending, item(2, 40)))
	svc := newService(store)

	for id := int64(1); id <= 2; id++ {
		_, err := svc.SyncOrder(context.Background(), id)
		require.NoError(t, err)
	}

	d, err := svc.GetDashboard(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, d.Summary.TotalTasks)
	require.Equal(t, 50, d.Summary.TotalPendingUnits)
	require.Equal(t, 2, d.Summary.ByStatus[domain.TaskPending])
	require.Len(t, d.Summary.TopTasks, 2)
}

func TestUpdateTaskPatch(t *testing.T) {
	store := newFakeStore()
	store.addOrder(testOrder(1, orderdomain.StatusPending, item(7, 3)))
	svc := newService(store)

	_, err := svc.SyncOrder(context.Background(), 1)
	require.NoError(t, err)
	task, _ := store.task(7)

	_, err = svc.UpdateTask(context.Background(), task.ID, application.TaskPatch{})
	require.ErrorIs(t, err, application.ErrEmptyUpdate)

	bogus := domain.TaskStatus("BOGUS")
	_, err = svc.UpdateTask(context.Background(), task.ID, application.TaskPatch{Status: &bogus})
	require.ErrorIs(t, err, application.ErrInvalidStatus)

	priority := domain.PriorityUrgent
	updated, err := svc.UpdateTask(context.Background(), task.ID, application.TaskPatch{Priority: &priority})
	require.NoError(t, err)
	require.Equal(t, domain.PriorityUrgent, updated.Priority)
	require.Equal(t, 3, updated.TotalQuantity, "untouched fields keep their value")
}

func TestDeleteTaskAndClearCompleted(t *testing.T) {
	store := newFakeStore()
	store.addOrder(testOrder(1, orderdomain.StatusPending, item(7, 3)))
	store.addOrder(testOrder(2, orderdomain.StatusPending, item(8, 2)))
	svc := newService(store)

	for id := int64(1); id <= 2; id++ {
		_, err := svc.SyncOrder(context.Background(), id)
		require.NoError(t, err)
	}

	task7, _ := store.task(7)
	_, err := svc.UpdateProgress(context.Background(), task7.ID, 3)
	require.NoError(t, err)

	removed, err := svc.ClearCompleted(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	task8, _ := store.task(8)
	require.NoError(t, svc.DeleteTask(context.Background(), task8.ID))
	require.Equal(t, 0, store.taskCount())

	require.ErrorIs(t, svc.DeleteTask(context.Background(), task8.ID), application.ErrTaskNotFound)
}

func intPtr(v int) *int { return &v }
