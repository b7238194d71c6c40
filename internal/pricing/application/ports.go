package application

import (
	"context"

	"github.com/docelar/backoffice/internal/pricing/domain"
)

// ProductFilter narrows product listings on the pricing screens.
type ProductFilter struct {
	Search   string
	Category string
	Limit    int
}

// Repository is the pricing data access. All writes of matrix lines
// happen after the service recomputed the line's cached total cost.
type Repository interface {
	GetProduct(ctx context.Context, productID int64) (domain.Product, error)
	ListProductsForPricing(ctx context.Context, f ProductFilter) ([]domain.Product, error)
	ListCalculatedProducts(ctx context.Context, f ProductFilter) ([]domain.Product, error)

	GetIngredient(ctx context.Context, ingredientID int64) (domain.Ingredient, error)

	ListMatrix(ctx context.Context, productID int64) ([]domain.MatrixLine, error)
	GetMatrixLine(ctx context.Context, lineID int64) (domain.MatrixLine, error)
	InsertMatrixLine(ctx context.Context, line domain.MatrixLine) (domain.MatrixLine, error)
	UpdateMatrixLine(ctx context.Context, line domain.MatrixLine) (domain.MatrixLine, error)
	DeleteMatrixLine(ctx context.Context, productID, ingredientID int64) error

	SavePricing(ctx context.Context, productID int64, snap domain.PricingSnapshot) (domain.Product, error)
	ResetPricing(ctx context.Context, productID int64) (domain.Product, error)
}
