package postgres

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	orderdomain "github.com/docelar/backoffice/internal/order/domain"
	"github.com/docelar/backoffice/internal/production/application"
	"github.com/docelar/backoffice/internal/production/domain"
	"github.com/docelar/backoffice/pkg/outbox"
)

// activeStatuses is the complement of the final set plus CANCELLED: the
// orders whose demand belongs in production.
var activeStatuses = []string{
	string(orderdomain.StatusPending),
	string(orderdomain.StatusInProgress),
	string(orderdomain.StatusInProduction),
}

// dueDateStatuses are the order statuses considered when deriving a
// task's due date.
var dueDateStatuses = []string{
	string(orderdomain.StatusPending),
	string(orderdomain.StatusInProgress),
	string(orderdomain.StatusInProduction),
	string(orderdomain.StatusReadyForDelivery),
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store implements application.Store on postgres. Task rows are locked
// with SELECT ... FOR UPDATE inside transactions so concurrent
// synchronizations touching the same product serialize at the row.
type Store struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	return &Store{log: log, pool: pool}
}

func (s *Store) RunInTx(ctx context.Context, fn func(application.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const orderColumns = `id, customer_id, status, order_date, delivery_date, notes,
	subtotal, discount, total, production_synced, synced_at, created_at, updated_at`

func scanOrder(row pgx.Row) (orderdomain.Order, error) {
	var o orderdomain.Order
	err := row.Scan(&o.ID, &o.CustomerID, &o.Status, &o.OrderDate, &o.DeliveryDate, &o.Notes,
		&o.Subtotal, &o.Discount, &o.Total, &o.ProductionSynced, &o.SyncedAt, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func loadItems(ctx context.Context, q querier, orderID int64) ([]orderdomain.Item, error) {
	rows, err := q.Query(ctx, `SELECT id, order_id, product_id, quantity, unit_price, subtotal, production_counted
		FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []orderdomain.Item
	for rows.Next() {
		var it orderdomain.Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.Subtotal, &it.ProductionCounted); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) GetOrder(ctx context.Context, orderID int64) (orderdomain.Order, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return orderdomain.Order{}, application.ErrOrderNotFound
		}
		return orderdomain.Order{}, err
	}
	o.Items, err = loadItems(ctx, s.pool, orderID)
	if err != nil {
		return orderdomain.Order{}, err
	}
	return o, nil
}

func (s *Store) listOrders(ctx context.Context, sql string, args ...any) ([]orderdomain.Order, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []orderdomain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		orders[i].Items, err = loadItems(ctx, s.pool, orders[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (s *Store) ListActiveOrders(ctx context.Context) ([]orderdomain.Order, error) {
	return s.listOrders(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE status = ANY($1) ORDER BY id`, activeStatuses)
}

func (s *Store) ListUnsyncedActiveOrders(ctx context.Context) ([]orderdomain.Order, error) {
	return s.listOrders(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE status = ANY($1) AND production_synced = false ORDER BY id`, activeStatuses)
}

func (s *Store) ListOrdersWithCountedProduct(ctx context.Context, productID int64, statuses []orderdomain.OrderStatus) ([]orderdomain.Order, error) {
	ss := make([]string, len(statuses))
	for i, st := range statuses {
		ss[i] = string(st)
	}
	return s.listOrders(ctx, `SELECT `+orderColumns+` FROM orders o
		WHERE o.status = ANY($2)
		  AND EXISTS (
			SELECT 1 FROM order_items i
			WHERE i.order_id = o.id AND i.product_id = $1 AND i.production_counted
		  )
		ORDER BY o.id`, productID, ss)
}

func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, status orderdomain.OrderStatus) error {
	ct, err := s.pool.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, orderID, string(status))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return application.ErrOrderNotFound
	}
	return nil
}

const taskColumns = `id, product_id, total_quantity, pending_quantity, completed_quantity,
	status, priority, due_date, created_at, updated_at`

func scanTask(row pgx.Row) (domain.Task, error) {
	var t domain.Task
	err := row.Scan(&t.ID, &t.ProductID, &t.TotalQuantity, &t.PendingQuantity, &t.CompletedQuantity,
		&t.Status, &t.Priority, &t.DueDate, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func scanTasks(rows pgx.Rows) ([]domain.Task, error) {
	defer rows.Close()
	var tasks []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) GetTask(ctx context.Context, taskID int64) (domain.Task, error) {
	t, err := scanTask(s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM production_tasks WHERE id=$1`, taskID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Task{}, application.ErrTaskNotFound
		}
		return domain.Task{}, err
	}
	return t, nil
}

func (s *Store) TaskByProduct(ctx context.Context, productID int64) (domain.Task, bool, error) {
	t, err := scanTask(s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM production_tasks WHERE product_id=$1`, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Task{}, false, nil
		}
		return domain.Task{}, false, err
	}
	return t, true, nil
}

// taskOrder ranks by priority first, then by workload and urgency.
const taskOrder = ` ORDER BY CASE priority
		WHEN 'URGENT' THEN 4 WHEN 'HIGH' THEN 3 WHEN 'MEDIUM' THEN 2 ELSE 1
	END DESC, pending_quantity DESC, due_date ASC`

func (s *Store) ListTasks(ctx context.Context, f application.TaskFilter) ([]domain.Task, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	n := 1
	if f.Status != "" {
		where += ` AND status = $1`
		args = append(args, string(f.Status))
		n++
	} else if f.OnlyOpen {
		where += ` AND status IN ('PENDING','IN_PRODUCTION')`
	}
	if f.Priority != "" {
		where += ` AND priority = $` + strconv.Itoa(n)
		args = append(args, string(f.Priority))
		n++
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM production_tasks`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (f.Page - 1) * f.Limit
	sql := `SELECT ` + taskColumns + ` FROM production_tasks` + where + taskOrder +
		` LIMIT $` + strconv.Itoa(n) + ` OFFSET $` + strconv.Itoa(n+1)
	args = append(args, f.Limit, offset)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

func (s *Store) ListOpenTasks(ctx context.Context) ([]domain.Task, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+taskColumns+` FROM production_tasks
		WHERE status IN ('PENDING','IN_PRODUCTION')`+taskOrder)
	if err != nil {
		return nil, err
	}
	return scanTasks(rows)
}

func (s *Store) SyncCounts(ctx context.Context) (application.SyncCounts, error) {
	var c application.SyncCounts
	err := s.pool.QueryRow(ctx, `SELECT
			count(*),
			count(*) FILTER (WHERE production_synced),
			count(*) FILTER (WHERE status = ANY($1))
		FROM orders`, activeStatuses).
		Scan(&c.TotalOrders, &c.SyncedOrders, &c.ActiveOrders)
	if err != nil {
		return application.SyncCounts{}, err
	}
	return c, nil
}

type txStore struct {
	tx pgx.Tx
}

func (t *txStore) TaskByProductForUpdate(ctx context.Context, productID int64) (domain.Task, bool, error) {
	task, err := scanTask(t.tx.QueryRow(ctx, `SELECT `+taskColumns+` FROM production_tasks
		WHERE product_id=$1 FOR UPDATE`, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Task{}, false, nil
		}
		return domain.Task{}, false, err
	}
	return task, true, nil
}

func (t *txStore) TaskForUpdate(ctx context.Context, taskID int64) (domain.Task, error) {
	task, err := scanTask(t.tx.QueryRow(ctx, `SELECT `+taskColumns+` FROM production_tasks
		WHERE id=$1 FOR UPDATE`, taskID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Task{}, application.ErrTaskNotFound
		}
		return domain.Task{}, err
	}
	return task, nil
}

func (t *txStore) ListOpenTasksForUpdate(ctx context.Context) ([]domain.Task, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+taskColumns+` FROM production_tasks
		WHERE status IN ('PENDING','IN_PRODUCTION') ORDER BY id FOR UPDATE`)
	if err != nil {
		return nil, err
	}
	return scanTasks(rows)
}

func (t *txStore) InsertTask(ctx context.Context, task domain.Task) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO production_tasks
			(product_id, total_quantity, pending_quantity, completed_quantity, status, priority, due_date, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id`,
		task.ProductID, task.TotalQuantity, task.PendingQuantity, task.CompletedQuantity,
		string(task.Status), string(task.Priority), task.DueDate, task.CreatedAt, task.UpdatedAt).
		Scan(&id)
	return id, err
}

func (t *txStore) UpdateTask(ctx context.Context, task domain.Task) error {
	ct, err := t.tx.Exec(ctx, `UPDATE production_tasks SET
			total_quantity=$2, pending_quantity=$3, completed_quantity=$4,
			status=$5, priority=$6, due_date=$7, updated_at=$8
		WHERE id=$1`,
		task.ID, task.TotalQuantity, task.PendingQuantity, task.CompletedQuantity,
		string(task.Status), string(task.Priority), task.DueDate, task.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return application.ErrTaskNotFound
	}
	return nil
}

func (t *txStore) DeleteTask(ctx context.Context, taskID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM production_tasks WHERE id=$1`, taskID)
	return err
}

func (t *txStore) DeleteAllTasks(ctx context.Context) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM production_tasks`)
	return err
}

func (t *txStore) DeleteCompletedTasks(ctx context.Context) (int64, error) {
	ct, err := t.tx.Exec(ctx, `DELETE FROM production_tasks WHERE status='COMPLETED'`)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (t *txStore) SetPriorities(ctx context.Context, priorities map[int64]domain.Priority) error {
	batch := &pgx.Batch{}
	for id, p := range priorities {
		batch.Queue(`UPDATE production_tasks SET priority=$2, updated_at=now() WHERE id=$1`, id, string(p))
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *txStore) EarliestDeliveryDate(ctx context.Context, productID int64) (time.Time, bool, error) {
	var due *time.Time
	err := t.tx.QueryRow(ctx, `SELECT min(o.delivery_date) FROM orders o
		JOIN order_items i ON i.order_id = o.id
		WHERE i.product_id = $1 AND o.status = ANY($2)`, productID, dueDateStatuses).
		Scan(&due)
	if err != nil {
		return time.Time{}, false, err
	}
	if due == nil {
		return time.Time{}, false, nil
	}
	return *due, true, nil
}

func (t *txStore) SetItemsCounted(ctx context.Context, orderID, productID int64, counted bool) error {
	_, err := t.tx.Exec(ctx, `UPDATE order_items SET production_counted=$3
		WHERE order_id=$1 AND product_id=$2`, orderID, productID, counted)
	return err
}

func (t *txStore) SetOrderSynced(ctx context.Context, orderID int64, synced bool, at *time.Time) error {
	if !synced {
		ct, err := t.tx.Exec(ctx, `UPDATE orders SET production_synced=false, synced_at=NULL, updated_at=now()
			WHERE id=$1`, orderID)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return application.ErrOrderNotFound
		}
		return nil
	}

	// The synchronizer reads its idempotence guard outside this
	// transaction, so the flip re-checks the flag under the row lock.
	ct, err := t.tx.Exec(ctx, `UPDATE orders SET production_synced=true, synced_at=$2, updated_at=now()
		WHERE id=$1 AND production_synced = FALSE`, orderID, at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return application.ErrAlreadySynced
	}
	return nil
}

func (t *txStore) ResetSyncFlags(ctx context.Context) error {
	_, err := t.tx.Exec(ctx, `UPDATE orders SET production_synced=false, synced_at=NULL
		WHERE status = ANY($1)`, activeStatuses)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `UPDATE order_items SET production_counted=false
		WHERE order_id IN (SELECT id FROM orders WHERE status = ANY($1))`, activeStatuses)
	return err
}

func (t *txStore) AppendEvent(ctx context.Context, rec outbox.Record) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
		rec.AggregateType, rec.AggregateID, rec.Type, rec.Payload, rec.Headers, rec.Traceparent)
	return err
}
