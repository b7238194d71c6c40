package application_test

import (
	"context"
	"sort"
	"sync"
	"time"

	orderdomain "github.com/docelar/backoffice/internal/order/domain"
	"github.com/docelar/backoffice/internal/production/application"
	"github.com/docelar/backoffice/internal/production/domain"
	"github.com/docelar/backoffice/pkg/outbox"
)

// fakeStore is an in-memory application.Store. RunInTx operates on a
// deep copy and commits it only on success, mirroring the all-or-nothing
// transaction semantics of the postgres store.
type fakeStore struct {
	mu    sync.Mutex
	state fakeState

	// txErr, when set, fails the commit after the callback ran, so the
	// mutation must be discarded.
	txErr error

	// beforeTx, when set, mutates the committed state right before the
	// next transaction starts and after the caller's guard reads. It
	// stages the interleavings a concurrent writer can produce, and
	// fires once.
	beforeTx func(*fakeState)
}

type fakeState struct {
	orders     map[int64]orderdomain.Order
	tasks      map[int64]domain.Task
	nextTaskID int64
	events     []outbox.Record
}

func newFakeStore() *fakeStore {
	return &fakeStore{state: fakeState{
		orders:     map[int64]orderdomain.Order{},
		tasks:      map[int64]domain.Task{},
		nextTaskID: 1,
	}}
}

func (s fakeState) clone() fakeState {
	c := fakeState{
		orders:     make(map[int64]orderdomain.Order, len(s.orders)),
		tasks:      make(map[int64]domain.Task, len(s.tasks)),
		nextTaskID: s.nextTaskID,
		events:     append([]outbox.Record(nil), s.events...),
	}
	for id, o := range s.orders {
		o.Items = append([]orderdomain.Item(nil), o.Items...)
		c.orders[id] = o
	}
	for id, t := range s.tasks {
		c.tasks[id] = t
	}
	return c
}

func (s *fakeStore) addOrder(o orderdomain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.orders[o.ID] = o
}

func (s *fakeStore) task(productID int64) (domain.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.taskByProduct(productID)
}

func (s *fakeStore) order(orderID int64) orderdomain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.orders[orderID]
}

func (s *fakeStore) taskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.tasks)
}

func (s *fakeStore) eventTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]string, len(s.state.events))
	for i, e := range s.state.events {
		types[i] = e.Type
	}
	return types
}

func (s fakeState) taskByProduct(productID int64) (domain.Task, bool) {
	for _, t := range s.tasks {
		if t.ProductID == productID {
			return t, true
		}
	}
	return domain.Task{}, false
}

func (s *fakeStore) RunInTx(_ context.Context, fn func(application.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.beforeTx != nil {
		hook := s.beforeTx
		s.beforeTx = nil
		hook(&s.state)
	}

	pending := s.state.clone()
	if err := fn(&fakeTx{st: &pending}); err != nil {
		return err
	}
	if s.txErr != nil {
		return s.txErr
	}
	s.state = pending
	return nil
}

func (s *fakeStore) GetOrder(_ context.Context, orderID int64) (orderdomain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.state.orders[orderID]
	if !ok {
		return orderdomain.Order{}, application.ErrOrderNotFound
	}
	o.Items = append([]orderdomain.Item(nil), o.Items...)
	return o, nil
}

func activeOrder(o orderdomain.Order) bool {
	switch o.Status {
	case orderdomain.StatusPending, orderdomain.StatusInProgress, orderdomain.StatusInProduction:
		return true
	}
	return false
}

func (s *fakeStore) listOrders(keep func(orderdomain.Order) bool) []orderdomain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []orderdomain.Order
	for _, o := range s.state.orders {
		if keep(o) {
			o.Items = append([]orderdomain.Item(nil), o.Items...)
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *fakeStore) ListActiveOrders(_ context.Context) ([]orderdomain.Order, error) {
	return s.listOrders(activeOrder), nil
}

func (s *fakeStore) ListUnsyncedActiveOrders(_ context.Context) ([]orderdomain.Order, error) {
	return s.listOrders(func(o orderdomain.Order) bool {
		return activeOrder(o) && !o.ProductionSynced
	}), nil
}

func (s *fakeStore) ListOrdersWithCountedProduct(_ context.Context, productID int64, statuses []orderdomain.OrderStatus) ([]orderdomain.Order, error) {
	allowed := map[orderdomain.OrderStatus]bool{}
	for _, st := range statuses {
		allowed[st] = true
	}
	return s.listOrders(func(o orderdomain.Order) bool {
		if !allowed[o.Status] {
			return false
		}
		for _, it := range o.Items {
			if it.ProductID == productID && it.ProductionCounted {
				return true
			}
		}
		return false
	}), nil
}

func (s *fakeStore) UpdateOrderStatus(_ context.Context, orderID int64, status orderdomain.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.state.orders[orderID]
	if !ok {
		return application.ErrOrderNotFound
	}
	o.Status = status
	s.state.orders[orderID] = o
	return nil
}

func (s *fakeStore) GetTask(_ context.Context, taskID int64) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.state.tasks[taskID]
	if !ok {
		return domain.Task{}, application.ErrTaskNotFound
	}
	return t, nil
}

func (s *fakeStore) TaskByProduct(_ context.Context, productID int64) (domain.Task, bool, error) {
	t, ok := s.task(productID)
	return t, ok, nil
}

func (s *fakeStore) openTasks() []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Task
	for _, t := range s.state.tasks {
		if t.Status.Open() {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *fakeStore) ListTasks(_ context.Context, f application.TaskFilter) ([]domain.Task, int, error) {
	s.mu.Lock()
	var all []domain.Task
	for _, t := range s.state.tasks {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Status == "" && f.OnlyOpen && !t.Status.Open() {
			continue
		}
		if f.Priority != "" && t.Priority != f.Priority {
			continue
		}
		all = append(all, t)
	}
	s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)

	start := (f.Page - 1) * f.Limit
	if start > len(all) {
		start = len(all)
	}
	end := start + f.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (s *fakeStore) ListOpenTasks(_ context.Context) ([]domain.Task, error) {
	return s.openTasks(), nil
}

func (s *fakeStore) SyncCounts(_ context.Context) (application.SyncCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var c application.SyncCounts
	for _, o := range s.state.orders {
		c.TotalOrders++
		if o.ProductionSynced {
			c.SyncedOrders++
		}
		if activeOrder(o) {
			c.ActiveOrders++
		}
	}
	return c, nil
}

type fakeTx struct {
	st *fakeState
}

func (t *fakeTx) TaskByProductForUpdate(_ context.Context, productID int64) (domain.Task, bool, error) {
	task, ok := t.st.taskByProduct(productID)
	return task, ok, nil
}

func (t *fakeTx) TaskForUpdate(_ context.Context, taskID int64) (domain.Task, error) {
	task, ok := t.st.tasks[taskID]
	if !ok {
		return domain.Task{}, application.ErrTaskNotFound
	}
	return task, nil
}

func (t *fakeTx) ListOpenTasksForUpdate(_ context.Context) ([]domain.Task, error) {
	var out []domain.Task
	for _, task := range t.st.tasks {
		if task.Status.Open() {
			out = append(out, task)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *fakeTx) InsertTask(_ context.Context, task domain.Task) (int64, error) {
	task.ID = t.st.nextTaskID
	t.st.nextTaskID++
	t.st.tasks[task.ID] = task
	return task.ID, nil
}

func (t *fakeTx) UpdateTask(_ context.Context, task domain.Task) error {
	if _, ok := t.st.tasks[task.ID]; !ok {
		return application.ErrTaskNotFound
	}
	t.st.tasks[task.ID] = task
	return nil
}

func (t *fakeTx) DeleteTask(_ context.Context, taskID int64) error {
	delete(t.st.tasks, taskID)
	return nil
}

func (t *fakeTx) DeleteAllTasks(_ context.Context) error {
	t.st.tasks = map[int64]domain.Task{}
	return nil
}

func (t *fakeTx) DeleteCompletedTasks(_ context.Context) (int64, error) {
	var n int64
	for id, task := range t.st.tasks {
		if task.Status == domain.TaskCompleted {
			delete(t.st.tasks, id)
			n++
		}
	}
	return n, nil
}

func (t *fakeTx) SetPriorities(_ context.Context, priorities map[int64]domain.Priority) error {
	for id, p := range priorities {
		task, ok := t.st.tasks[id]
		if !ok {
			return application.ErrTaskNotFound
		}
		task.Priority = p
		t.st.tasks[id] = task
	}
	return nil
}

func (t *fakeTx) EarliestDeliveryDate(_ context.Context, productID int64) (time.Time, bool, error) {
	var earliest time.Time
	found := false
	for _, o := range t.st.orders {
		switch o.Status {
		case orderdomain.StatusPending, orderdomain.StatusInProgress,
			orderdomain.StatusInProduction, orderdomain.StatusReadyForDelivery:
		default:
			continue
		}
		for _, it := range o.Items {
			if it.ProductID != productID {
				continue
			}
			if !found || o.DeliveryDate.Before(earliest) {
				earliest = o.DeliveryDate
				found = true
			}
		}
	}
	return earliest, found, nil
}

func (t *fakeTx) SetItemsCounted(_ context.Context, orderID, productID int64, counted bool) error {
	o, ok := t.st.orders[orderID]
	if !ok {
		return application.ErrOrderNotFound
	}
	for i := range o.Items {
		if o.Items[i].ProductID == productID {
			o.Items[i].ProductionCounted = counted
		}
	}
	t.st.orders[orderID] = o
	return nil
}

func (t *fakeTx) SetOrderSynced(_ context.Context, orderID int64, synced bool, at *time.Time) error {
	o, ok := t.st.orders[orderID]
	if !ok {
		return application.ErrOrderNotFound
	}
	if synced && o.ProductionSynced {
		return application.ErrAlreadySynced
	}
	o.ProductionSynced = synced
	o.SyncedAt = at
	t.st.orders[orderID] = o
	return nil
}

func (t *fakeTx) ResetSyncFlags(_ context.Context) error {
	for id, o := range t.st.orders {
		if !activeOrder(o) {
			continue
		}
		o.ProductionSynced = false
		o.SyncedAt = nil
		for i := range o.Items {
			o.Items[i].ProductionCounted = false
		}
		t.st.orders[id] = o
	}
	return nil
}

func (t *fakeTx) AppendEvent(_ context.Context, rec outbox.Record) error {
	t.st.events = append(t.st.events, rec)
	return nil
}
