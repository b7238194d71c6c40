package application

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	orderdomain "github.com/docelar/backoffice/internal/order/domain"
	"github.com/docelar/backoffice/internal/production/domain"
	"github.com/docelar/backoffice/pkg/outbox"
	"github.com/docelar/backoffice/pkg/tracing"
)

const aggregateProduction = "production"

// Service reconciles order line items into production-task deltas and
// keeps task priorities and order statuses converging. The transactional
// step is atomic; priority recalculation and order-status propagation
// are best-effort post-commit work, delivered both inline
// (log-and-continue) and through the outbox consumer.
type Service struct {
	log   *slog.Logger
	store Store
}

func NewService(log *slog.Logger, store Store) *Service {
	return &Service{log: log, store: store}
}

type SyncResult struct {
	OrderID int64  `json:"orderId"`
	Synced  bool   `json:"synced"`
	Skipped bool   `json:"skipped"`
	Message string `json:"message,omitempty"`
}

// SyncOrder folds an order's line items into the production tasks of
// their products. Orders in a final status, or already synced, are a
// no-op, which makes the operation idempotent and safe to retry.
func (s *Service) SyncOrder(ctx context.Context, orderID int64) (SyncResult, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return SyncResult{}, err
	}

	if order.Status.IsFinal() {
		s.log.Info("order in final status, skipping sync", "order_id", orderID, "status", order.Status)
		return SyncResult{OrderID: orderID, Skipped: true, Message: "order in final status"}, nil
	}
	if order.ProductionSynced {
		s.log.Info("order already synced, skipping", "order_id", orderID)
		return SyncResult{OrderID: orderID, Skipped: true, Message: "order already synced"}, nil
	}

	productIDs := make([]int64, 0, len(order.Items))
	err = s.store.RunInTx(ctx, func(tx Tx) error {
		// The flag flip goes first: it re-checks productionSynced under
		// the order's row lock, so a sync that raced another one for the
		// same order aborts here before counting any demand.
		now := time.Now().UTC()
		if err := tx.SetOrderSynced(ctx, orderID, true, &now); err != nil {
			return err
		}

		for _, item := range order.Items {
			if item.Quantity <= 0 {
				s.log.Debug("skipping zero-quantity item", "order_id", orderID, "product_id", item.ProductID)
				continue
			}
			if err := s.syncItem(ctx, tx, order, item); err != nil {
				return err
			}
			if err := tx.SetItemsCounted(ctx, orderID, item.ProductID, true); err != nil {
				return err
			}
			productIDs = append(productIDs, item.ProductID)
		}

		payload, err := json.Marshal(domain.TasksSynced{OrderID: orderID, ProductIDs: productIDs})
		if err != nil {
			return err
		}
		return tx.AppendEvent(ctx, outbox.Record{
			AggregateType: aggregateProduction,
			AggregateID:   strconv.FormatInt(orderID, 10),
			Type:          domain.EventTasksSynced,
			Payload:       payload,
			Traceparent:   tracing.Traceparent(ctx),
		})
	})
	if errors.Is(err, ErrAlreadySynced) {
		s.log.Info("order synced concurrently, skipping", "order_id", orderID)
		return SyncResult{OrderID: orderID, Skipped: true, Message: "order already synced"}, nil
	}
	if err != nil {
		return SyncResult{}, &SyncError{OrderID: orderID, Err: err}
	}

	s.recalculateBestEffort(ctx)
	s.log.Info("order synced into production", "order_id", orderID, "items", len(order.Items))
	return SyncResult{OrderID: orderID, Synced: true}, nil
}

func (s *Service) syncItem(ctx context.Context, tx Tx, order orderdomain.Order, item orderdomain.Item) error {
	task, found, err := tx.TaskByProductForUpdate(ctx, item.ProductID)
	if err != nil {
		return err
	}

	if found {
		due, ok, err := tx.EarliestDeliveryDate(ctx, item.ProductID)
		if err != nil {
			return err
		}
		if !ok || order.DeliveryDate.Before(due) {
			due = order.DeliveryDate
		}
		task.Add(item.Quantity, due)
		task.UpdatedAt = time.Now().UTC()
		return tx.UpdateTask(ctx, task)
	}

	now := time.Now().UTC()
	_, err = tx.InsertTask(ctx, domain.Task{
		ProductID:         item.ProductID,
		TotalQuantity:     item.Quantity,
		PendingQuantity:   item.Quantity,
		CompletedQuantity: 0,
		Status:            domain.TaskPending,
		Priority:          domain.PriorityMedium,
		DueDate:           order.DeliveryDate,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	return err
}

// RemoveOrderFromProduction is the exact numeric inverse of SyncOrder
// for the items that were counted: quantities are subtracted (floored at
// zero), tasks that reach zero are deleted, completed tasks with pending
// work reopen.
func (s *Service) RemoveOrderFromProduction(ctx context.Context, orderID int64) (SyncResult, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return SyncResult{}, err
	}

	productIDs := make([]int64, 0, len(order.Items))
	err = s.store.RunInTx(ctx, func(tx Tx) error {
		for _, item := range order.Items {
			if item.ProductionCounted {
				if err := s.removeItem(ctx, tx, item); err != nil {
					return err
				}
			}
			if err := tx.SetItemsCounted(ctx, orderID, item.ProductID, false); err != nil {
				return err
			}
			productIDs = append(productIDs, item.ProductID)
		}

		if err := tx.SetOrderSynced(ctx, orderID, false, nil); err != nil {
			return err
		}

		payload, err := json.Marshal(domain.OrderRemoved{OrderID: orderID, ProductIDs: productIDs})
		if err != nil {
			return err
		}
		return tx.AppendEvent(ctx, outbox.Record{
			AggregateType: aggregateProduction,
			AggregateID:   strconv.FormatInt(orderID, 10),
			Type:          domain.EventOrderRemoved,
			Payload:       payload,
			Traceparent:   tracing.Traceparent(ctx),
		})
	})
	if err != nil {
		return SyncResult{}, &SyncError{OrderID: orderID, Err: err}
	}

	s.recalculateBestEffort(ctx)
	s.log.Info("order removed from production", "order_id", orderID)
	return SyncResult{OrderID: orderID, Synced: true, Message: "order removed from production"}, nil
}

func (s *Service) removeItem(ctx context.Context, tx Tx, item orderdomain.Item) error {
	task, found, err := tx.TaskByProductForUpdate(ctx, item.ProductID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	if task.Subtract(item.Quantity) {
		return tx.DeleteTask(ctx, task.ID)
	}
	task.UpdatedAt = time.Now().UTC()
	return tx.UpdateTask(ctx, task)
}

// UpdateProgress applies a completed-quantity delta to a task and
// propagates the resulting status onto qualifying orders.
func (s *Service) UpdateProgress(ctx context.Context, taskID int64, delta int) (domain.Task, error) {
	if delta <= 0 {
		return domain.Task{}, ErrInvalidDelta
	}

	var task domain.Task
	err := s.store.RunInTx(ctx, func(tx Tx) error {
		var err error
		task, err = tx.TaskForUpdate(ctx, taskID)
		if err != nil {
			return err
		}
		if task.CompletedQuantity+delta > task.TotalQuantity {
			return ErrExceedsTotal
		}
		task.Progress(delta)
		task.UpdatedAt = time.Now().UTC()
		if err := tx.UpdateTask(ctx, task); err != nil {
			return err
		}

		payload, err := json.Marshal(domain.ProgressUpdated{TaskID: task.ID, ProductID: task.ProductID, Status: task.Status})
		if err != nil {
			return err
		}
		return tx.AppendEvent(ctx, outbox.Record{
			AggregateType: aggregateProduction,
			AggregateID:   strconv.FormatInt(task.ID, 10),
			Type:          domain.EventProgressUpdated,
			Payload:       payload,
			Traceparent:   tracing.Traceparent(ctx),
		})
	})
	if err != nil {
		return domain.Task{}, err
	}

	s.propagateBestEffort(ctx, task)
	s.recalculateBestEffort(ctx)
	return task, nil
}

// UpdateTaskStatus sets a task's status directly, with the same
// propagation rules as progress updates.
func (s *Service) UpdateTaskStatus(ctx context.Context, taskID int64, status domain.TaskStatus) (domain.Task, error) {
	if !status.Valid() {
		return domain.Task{}, ErrInvalidStatus
	}

	var task domain.Task
	err := s.store.RunInTx(ctx, func(tx Tx) error {
		var err error
		task, err = tx.TaskForUpdate(ctx, taskID)
		if err != nil {
			return err
		}
		task.Status = status
		task.UpdatedAt = time.Now().UTC()
		if err := tx.UpdateTask(ctx, task); err != nil {
			return err
		}

		payload, err := json.Marshal(domain.StatusChanged{TaskID: task.ID, ProductID: task.ProductID, Status: status})
		if err != nil {
			return err
		}
		return tx.AppendEvent(ctx, outbox.Record{
			AggregateType: aggregateProduction,
			AggregateID:   strconv.FormatInt(task.ID, 10),
			Type:          domain.EventTaskStatusChanged,
			Payload:       payload,
			Traceparent:   tracing.Traceparent(ctx),
		})
	})
	if err != nil {
		return domain.Task{}, err
	}

	s.propagateBestEffort(ctx, task)
	if status == domain.TaskCompleted || status == domain.TaskCancelled {
		s.recalculateBestEffort(ctx)
	}
	return task, nil
}

// RecalculateAllPriorities ranks every open task's pending quantity
// against the others and persists the resulting priorities in one
// transaction.
func (s *Service) RecalculateAllPriorities(ctx context.Context) error {
	return s.store.RunInTx(ctx, func(tx Tx) error {
		tasks, err := tx.ListOpenTasksForUpdate(ctx)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			return nil
		}

		all := make([]int, len(tasks))
		for i, t := range tasks {
			all[i] = t.PendingQuantity
		}

		priorities := make(map[int64]domain.Priority, len(tasks))
		for _, t := range tasks {
			priorities[t.ID] = domain.PriorityFor(t.PendingQuantity, all)
		}
		return tx.SetPriorities(ctx, priorities)
	})
}

// PropagateTaskStatus re-runs order-status propagation for a task, used
// by the event consumer.
func (s *Service) PropagateTaskStatus(ctx context.Context, taskID int64) error {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	return s.propagate(ctx, task)
}

func (s *Service) recalculateBestEffort(ctx context.Context) {
	if err := s.RecalculateAllPriorities(ctx); err != nil {
		s.log.Error("priority recalculation failed", "err", err)
	}
}

func (s *Service) propagateBestEffort(ctx context.Context, task domain.Task) {
	if err := s.propagate(ctx, task); err != nil {
		s.log.Error("order status propagation failed", "task_id", task.ID, "err", err)
	}
}

func (s *Service) propagate(ctx context.Context, task domain.Task) error {
	switch task.Status {
	case domain.TaskCompleted:
		return s.propagateCompletion(ctx, task.ProductID)
	case domain.TaskInProduction:
		return s.propagateStart(ctx, task.ProductID)
	}
	return nil
}

// propagateCompletion flips orders whose items are all fully produced to
// READY_FOR_DELIVERY.
func (s *Service) propagateCompletion(ctx context.Context, productID int64) error {
	statuses := []orderdomain.OrderStatus{
		orderdomain.StatusPending,
		orderdomain.StatusInProgress,
		orderdomain.StatusInProduction,
		orderdomain.StatusReadyForDelivery,
		orderdomain.StatusProductionComplete,
	}
	orders, err := s.store.ListOrdersWithCountedProduct(ctx, productID, statuses)
	if err != nil {
		return err
	}

	for _, order := range orders {
		if order.Status == orderdomain.StatusReadyForDelivery {
			continue
		}
		done, err := s.allItemsProduced(ctx, order)
		if err != nil {
			return err
		}
		if done {
			if err := s.store.UpdateOrderStatus(ctx, order.ID, orderdomain.StatusReadyForDelivery); err != nil {
				return err
			}
			s.log.Info("order ready for delivery", "order_id", order.ID)
		}
	}
	return nil
}

// propagateStart flips orders with at least one started but not fully
// produced item to IN_PRODUCTION.
func (s *Service) propagateStart(ctx context.Context, productID int64) error {
	statuses := []orderdomain.OrderStatus{
		orderdomain.StatusPending,
		orderdomain.StatusInProgress,
		orderdomain.StatusInProduction,
	}
	orders, err := s.store.ListOrdersWithCountedProduct(ctx, productID, statuses)
	if err != nil {
		return err
	}

	for _, order := range orders {
		started := false
		allProduced := true
		for _, item := range order.Items {
			task, found, err := s.store.TaskByProduct(ctx, item.ProductID)
			if err != nil {
				return err
			}
			if !found {
				allProduced = false
				continue
			}
			if task.Status == domain.TaskInProduction ||
				(task.CompletedQuantity > 0 && task.CompletedQuantity < task.TotalQuantity) {
				started = true
			}
			if task.CompletedQuantity < item.Quantity {
				allProduced = false
			}
		}

		if started && !allProduced && order.Status != orderdomain.StatusInProduction {
			if err := s.store.UpdateOrderStatus(ctx, order.ID, orderdomain.StatusInProduction); err != nil {
				return err
			}
			s.log.Info("order moved to in production", "order_id", order.ID)
		}
	}
	return nil
}

func (s *Service) allItemsProduced(ctx context.Context, order orderdomain.Order) (bool, error) {
	for _, item := range order.Items {
		task, found, err := s.store.TaskByProduct(ctx, item.ProductID)
		if err != nil {
			return false, err
		}
		if !found || task.Status != domain.TaskCompleted || task.CompletedQuantity < item.Quantity {
			return false, nil
		}
	}
	return true, nil
}
