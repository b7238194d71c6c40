package application

import (
	"context"
	"time"

	orderdomain "github.com/docelar/backoffice/internal/order/domain"
	"github.com/docelar/backoffice/internal/production/domain"
)

type BulkSyncResult struct {
	TotalOrders int `json:"totalOrders"`
	Synced      int `json:"synced"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
}

// SyncAllOrders synchronizes every active order, each under its own
// transaction so one failure cannot roll back the others.
func (s *Service) SyncAllOrders(ctx context.Context) (BulkSyncResult, error) {
	orders, err := s.store.ListActiveOrders(ctx)
	if err != nil {
		return BulkSyncResult{}, err
	}
	return s.syncOrders(ctx, orders), nil
}

// SyncPendingOrders synchronizes only orders not yet marked synced,
// preserving production already in flight.
func (s *Service) SyncPendingOrders(ctx context.Context) (BulkSyncResult, error) {
	orders, err := s.store.ListUnsyncedActiveOrders(ctx)
	if err != nil {
		return BulkSyncResult{}, err
	}
	return s.syncOrders(ctx, orders), nil
}

// SyncAllOrdersClean wipes every task, resets the sync flags of active
// orders and rebuilds production state from scratch.
func (s *Service) SyncAllOrdersClean(ctx context.Context) (BulkSyncResult, error) {
	err := s.store.RunInTx(ctx, func(tx Tx) error {
		if err := tx.DeleteAllTasks(ctx); err != nil {
			return err
		}
		return tx.ResetSyncFlags(ctx)
	})
	if err != nil {
		return BulkSyncResult{}, err
	}

	orders, err := s.store.ListActiveOrders(ctx)
	if err != nil {
		return BulkSyncResult{}, err
	}
	return s.syncOrders(ctx, orders), nil
}

func (s *Service) syncOrders(ctx context.Context, orders []orderdomain.Order) BulkSyncResult {
	result := BulkSyncResult{TotalOrders: len(orders)}
	for _, order := range orders {
		res, err := s.SyncOrder(ctx, order.ID)
		if err != nil {
			result.Failed++
			s.log.Error("bulk sync: order failed", "order_id", order.ID, "err", err)
			continue
		}
		if res.Skipped {
			result.Skipped++
		} else {
			result.Synced++
		}
	}
	return result
}

// SyncStatus reports how many orders are synced into production.
func (s *Service) SyncStatus(ctx context.Context) (SyncCounts, error) {
	counts, err := s.store.SyncCounts(ctx)
	if err != nil {
		return SyncCounts{}, err
	}
	counts.NotSynced = counts.TotalOrders - counts.SyncedOrders
	return counts, nil
}

type TaskPage struct {
	Tasks      []domain.Task `json:"tasks"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	TotalCount int           `json:"totalCount"`
	TotalPages int           `json:"totalPages"`
}

// ListTasks returns tasks filtered by status and priority, ordered by
// priority, pending quantity and due date. Without a status filter only
// open tasks are shown.
func (s *Service) ListTasks(ctx context.Context, f TaskFilter) (TaskPage, error) {
	if f.Status != "" && !f.Status.Valid() {
		return TaskPage{}, ErrInvalidStatus
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 50
	}
	if f.Status == "" {
		f.OnlyOpen = true
	}

	tasks, total, err := s.store.ListTasks(ctx, f)
	if err != nil {
		return TaskPage{}, err
	}

	pages := total / f.Limit
	if total%f.Limit != 0 {
		pages++
	}
	return TaskPage{
		Tasks:      tasks,
		Page:       f.Page,
		Limit:      f.Limit,
		TotalCount: total,
		TotalPages: pages,
	}, nil
}

type DashboardSummary struct {
	TotalTasks          int                       `json:"totalTasks"`
	TotalPendingUnits   int                       `json:"totalPendingUnits"`
	TotalCompletedUnits int                       `json:"totalCompletedUnits"`
	ByPriority          map[domain.Priority]int   `json:"byPriority"`
	ByStatus            map[domain.TaskStatus]int `json:"byStatus"`
	TopTasks            []domain.Task             `json:"topTasks"`
}

type Dashboard struct {
	Tasks   []domain.Task    `json:"tasks"`
	Summary DashboardSummary `json:"summary"`
}

// GetDashboard summarizes the open production workload.
func (s *Service) GetDashboard(ctx context.Context) (Dashboard, error) {
	tasks, err := s.store.ListOpenTasks(ctx)
	if err != nil {
		return Dashboard{}, err
	}

	summary := DashboardSummary{
		TotalTasks: len(tasks),
		ByPriority: map[domain.Priority]int{},
		ByStatus:   map[domain.TaskStatus]int{},
	}
	for _, t := range tasks {
		summary.TotalPendingUnits += t.PendingQuantity
		summary.TotalCompletedUnits += t.CompletedQuantity
		summary.ByPriority[t.Priority]++
		summary.ByStatus[t.Status]++
	}
	top := len(tasks)
	if top > 5 {
		top = 5
	}
	summary.TopTasks = tasks[:top]

	return Dashboard{Tasks: tasks, Summary: summary}, nil
}

// TaskPatch is a partial task update; nil fields are left untouched.
type TaskPatch struct {
	TotalQuantity     *int
	PendingQuantity   *int
	CompletedQuantity *int
	Status            *domain.TaskStatus
	Priority          *domain.Priority
	DueDate           *time.Time
}

func (p TaskPatch) empty() bool {
	return p.TotalQuantity == nil && p.PendingQuantity == nil &&
		p.CompletedQuantity == nil && p.Status == nil &&
		p.Priority == nil && p.DueDate == nil
}

func (p TaskPatch) touchesQuantities() bool {
	return p.TotalQuantity != nil || p.PendingQuantity != nil || p.CompletedQuantity != nil
}

// UpdateTask applies a partial update and recalculates priorities when
// quantities changed.
func (s *Service) UpdateTask(ctx context.Context, taskID int64, patch TaskPatch) (domain.Task, error) {
	if patch.empty() {
		return domain.Task{}, ErrEmptyUpdate
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return domain.Task{}, ErrInvalidStatus
	}

	var task domain.Task
	err := s.store.RunInTx(ctx, func(tx Tx) error {
		var err error
		task, err = tx.TaskForUpdate(ctx, taskID)
		if err != nil {
			return err
		}
		if patch.TotalQuantity != nil {
			task.TotalQuantity = *patch.TotalQuantity
		}
		if patch.PendingQuantity != nil {
			task.PendingQuantity = *patch.PendingQuantity
		}
		if patch.CompletedQuantity != nil {
			task.CompletedQuantity = *patch.CompletedQuantity
		}
		if patch.Status != nil {
			task.Status = *patch.Status
		}
		if patch.Priority != nil {
			task.Priority = *patch.Priority
		}
		if patch.DueDate != nil {
			task.DueDate = *patch.DueDate
		}
		task.UpdatedAt = time.Now().UTC()
		return tx.UpdateTask(ctx, task)
	})
	if err != nil {
		return domain.Task{}, err
	}

	if patch.touchesQuantities() {
		s.recalculateBestEffort(ctx)
	}
	return task, nil
}

// DeleteTask removes a task outright.
func (s *Service) DeleteTask(ctx context.Context, taskID int64) error {
	err := s.store.RunInTx(ctx, func(tx Tx) error {
		if _, err := tx.TaskForUpdate(ctx, taskID); err != nil {
			return err
		}
		return tx.DeleteTask(ctx, taskID)
	})
	if err != nil {
		return err
	}
	s.recalculateBestEffort(ctx)
	return nil
}

// ClearCompleted deletes every COMPLETED task and returns how many were
// removed.
func (s *Service) ClearCompleted(ctx context.Context) (int64, error) {
	var removed int64
	err := s.store.RunInTx(ctx, func(tx Tx) error {
		var err error
		removed, err = tx.DeleteCompletedTasks(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// GetTask loads one task.
func (s *Service) GetTask(ctx context.Context, taskID int64) (domain.Task, error) {
	return s.store.GetTask(ctx, taskID)
}
