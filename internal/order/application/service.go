package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/docelar/backoffice/internal/order/domain"
)

// Service owns the order lifecycle. Order mutations drive the
// production synchronization: creating an order or moving it toward
// production folds it into the task board, cancelling pulls it back
// out. The calls are best-effort here; a failed one is retried by the
// next explicit or bulk sync thanks to the productionSynced flag.
type Service struct {
	log        *slog.Logger
	repo       Repository
	production ProductionGateway
}

func NewService(log *slog.Logger, repo Repository, production ProductionGateway) *Service {
	return &Service{log: log, repo: repo, production: production}
}

type ItemRequest struct {
	ProductID int64    `json:"productId"`
	Quantity  int      `json:"quantity"`
	UnitPrice *float64 `json:"unitPrice"`
}

type CreateOrderRequest struct {
	CustomerID   int64         `json:"customerId"`
	OrderDate    time.Time     `json:"orderDate"`
	DeliveryDate time.Time     `json:"deliveryDate"`
	Notes        string        `json:"notes"`
	Discount     float64       `json:"discount"`
	Items        []ItemRequest `json:"items"`
}

func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (domain.Order, error) {
	if len(req.Items) == 0 {
		return domain.Order{}, ErrNoItems
	}
	if req.OrderDate.IsZero() {
		req.OrderDate = time.Now().UTC()
	}

	order := domain.NewOrder(req.CustomerID, req.OrderDate, req.DeliveryDate, req.Notes)
	order.Discount = req.Discount

	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return domain.Order{}, ErrInvalidQuantity
		}
		price, err := s.itemPrice(ctx, it)
		if err != nil {
			return domain.Order{}, err
		}
		order.Items = append(order.Items, domain.Item{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: price,
			Subtotal:  price * float64(it.Quantity),
		})
	}
	order.Recalculate()

	created, err := s.repo.Insert(ctx, order)
	if err != nil {
		return domain.Order{}, err
	}
	s.log.Info("order created", "order_id", created.ID, "customer_id", created.CustomerID, "items", len(created.Items))

	if _, err := s.production.SyncOrder(ctx, created.ID); err != nil {
		s.log.Error("production sync after create failed", "order_id", created.ID, "err", err)
	}
	return created, nil
}

func (s *Service) itemPrice(ctx context.Context, it ItemRequest) (float64, error) {
	if it.UnitPrice != nil {
		return *it.UnitPrice, nil
	}
	return s.repo.ProductSalePrice(ctx, it.ProductID)
}

func (s *Service) GetOrder(ctx context.Context, orderID int64) (domain.Order, error) {
	return s.repo.Get(ctx, orderID)
}

// OrderPage is a page of orders with its pagination envelope.
type OrderPage struct {
	Orders     []domain.Order `json:"orders"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalCount int            `json:"totalCount"`
	TotalPages int            `json:"totalPages"`
}

func (s *Service) ListOrders(ctx context.Context, f OrderFilter) (OrderPage, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	orders, total, err := s.repo.List(ctx, f)
	if err != nil {
		return OrderPage{}, err
	}
	pages := total / f.Limit
	if total%f.Limit != 0 {
		pages++
	}
	return OrderPage{
		Orders:     orders,
		Page:       f.Page,
		Limit:      f.Limit,
		TotalCount: total,
		TotalPages: pages,
	}, nil
}

// UpdateStatus moves the order to a new status and runs the production
// hook the transition implies.
func (s *Service) UpdateStatus(ctx context.Context, orderID int64, status domain.OrderStatus) (domain.Order, error) {
	if !status.Valid() {
		return domain.Order{}, ErrInvalidStatus
	}
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Status == status {
		return order, nil
	}

	// Demand is pulled out of production before the order leaves the
	// active set. Removal only subtracts counted items, so this is a
	// no-op for never-synced orders.
	if status == domain.StatusCancelled {
		if _, err := s.production.RemoveOrderFromProduction(ctx, orderID); err != nil {
			s.log.Error("production removal before cancel failed", "order_id", orderID, "err", err)
		}
	}

	if err := s.repo.UpdateStatus(ctx, orderID, status); err != nil {
		return domain.Order{}, err
	}

	switch status {
	case domain.StatusInProgress, domain.StatusInProduction:
		if _, err := s.production.SyncOrder(ctx, orderID); err != nil {
			s.log.Error("production sync after status change failed", "order_id", orderID, "err", err)
		}
	}

	return s.repo.Get(ctx, orderID)
}

// CancelOrder is UpdateStatus to CANCELLED.
func (s *Service) CancelOrder(ctx context.Context, orderID int64) (domain.Order, error) {
	return s.UpdateStatus(ctx, orderID, domain.StatusCancelled)
}
