package application

import (
	"context"

	"github.com/docelar/backoffice/internal/order/domain"
	productionapp "github.com/docelar/backoffice/internal/production/application"
)

// OrderFilter narrows order listings.
type OrderFilter struct {
	Status     domain.OrderStatus
	CustomerID int64
	Page       int
	Limit      int
}

type Repository interface {
	Insert(ctx context.Context, order domain.Order) (domain.Order, error)
	Get(ctx context.Context, orderID int64) (domain.Order, error)
	List(ctx context.Context, f OrderFilter) ([]domain.Order, int, error)
	UpdateStatus(ctx context.Context, orderID int64, status domain.OrderStatus) error

	// ProductSalePrice resolves the current sale price used as the
	// default unit price of a new line item.
	ProductSalePrice(ctx context.Context, productID int64) (float64, error)
}

// ProductionGateway is the slice of the production service the order
// workflow drives: folding an order in when it enters production and
// pulling it back out when it is cancelled.
type ProductionGateway interface {
	SyncOrder(ctx context.Context, orderID int64) (productionapp.SyncResult, error)
	RemoveOrderFromProduction(ctx context.Context, orderID int64) (productionapp.SyncResult, error)
}
