package postgres

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docelar/backoffice/internal/order/application"
	"github.com/docelar/backoffice/internal/order/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

const orderColumns = `id, customer_id, status, order_date, delivery_date, notes,
	subtotal, discount, total, production_synced, synced_at, created_at, updated_at`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.CustomerID, &o.Status, &o.OrderDate, &o.DeliveryDate, &o.Notes,
		&o.Subtotal, &o.Discount, &o.Total, &o.ProductionSynced, &o.SyncedAt, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (r *Repository) loadItems(ctx context.Context, orderID int64) ([]domain.Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, product_id, quantity, unit_price, subtotal, production_counted
		FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.Subtotal, &it.ProductionCounted); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Insert writes the order and its items in one transaction.
func (r *Repository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Order{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var orderID int64
	err = tx.QueryRow(ctx, `INSERT INTO orders
			(customer_id, status, order_date, delivery_date, notes, subtotal, discount, total, production_synced, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,false,$9,$10)
		RETURNING id`,
		order.CustomerID, string(order.Status), order.OrderDate, order.DeliveryDate, order.Notes,
		order.Subtotal, order.Discount, order.Total, order.CreatedAt, order.UpdatedAt).
		Scan(&orderID)
	if err != nil {
		return domain.Order{}, err
	}

	for _, it := range order.Items {
		_, err = tx.Exec(ctx, `INSERT INTO order_items
				(order_id, product_id, quantity, unit_price, subtotal, production_counted)
			VALUES ($1,$2,$3,$4,$5,false)`,
			orderID, it.ProductID, it.Quantity, it.UnitPrice, it.Subtotal)
		if err != nil {
			return domain.Order{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, err
	}
	return r.Get(ctx, orderID)
}

func (r *Repository) Get(ctx context.Context, orderID int64) (domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, application.ErrOrderNotFound
		}
		return domain.Order{}, err
	}
	o.Items, err = r.loadItems(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *Repository) List(ctx context.Context, f application.OrderFilter) ([]domain.Order, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	n := 1
	if f.Status != "" {
		where += ` AND status = $` + strconv.Itoa(n)
		args = append(args, string(f.Status))
		n++
	}
	if f.CustomerID > 0 {
		where += ` AND customer_id = $` + strconv.Itoa(n)
		args = append(args, f.CustomerID)
		n++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sql := `SELECT ` + orderColumns + ` FROM orders` + where +
		` ORDER BY delivery_date ASC, id ASC LIMIT $` + strconv.Itoa(n) + ` OFFSET $` + strconv.Itoa(n+1)
	args = append(args, f.Limit, (f.Page-1)*f.Limit)

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range orders {
		orders[i].Items, err = r.loadItems(ctx, orders[i].ID)
		if err != nil {
			return nil, 0, err
		}
	}
	return orders, total, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, orderID int64, status domain.OrderStatus) error {
	ct, err := r.pool.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`,
		orderID, string(status))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return application.ErrOrderNotFound
	}
	return nil
}

func (r *Repository) ProductSalePrice(ctx context.Context, productID int64) (float64, error) {
	var price *float64
	err := r.pool.QueryRow(ctx, `SELECT sale_price FROM products WHERE id=$1 AND is_active`, productID).
		Scan(&price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, application.ErrProductNotFound
		}
		return 0, err
	}
	if price == nil {
		return 0, nil
	}
	return *price, nil
}
