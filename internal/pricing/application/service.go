package application

import (
	"context"
	"log/slog"

	"github.com/docelar/backoffice/internal/pricing/domain"
)

// Service drives the pricing workflow: maintaining the ingredient matrix
// while the product is unlocked, simulating and persisting prices, and
// resetting them. The NOT_CALCULATED/CALCULATED state machine gates
// matrix mutations.
type Service struct {
	log  *slog.Logger
	repo Repository
}

func NewService(log *slog.Logger, repo Repository) *Service {
	return &Service{log: log, repo: repo}
}

// PriceRequest carries the caller-facing pricing knobs. The flat
// ExpensePercent/TaxPercent fields map onto cost-basis and sale-basis
// taxes so both request shapes run through one algorithm.
type PriceRequest struct {
	MarkupPercent  *float64     `json:"markupPercent"`
	ProfitPercent  *float64     `json:"profitPercent"`
	ExpensePercent float64      `json:"expensePercent"`
	TaxPercent     float64      `json:"taxPercent"`
	MinProfit      float64      `json:"minProfit"`
	Taxes          []domain.Tax `json:"taxes"`
}

func (r PriceRequest) params() domain.Params {
	taxes := make([]domain.Tax, 0, len(r.Taxes)+2)
	taxes = append(taxes, r.Taxes...)
	if r.ExpensePercent > 0 {
		taxes = append(taxes, domain.Tax{Name: "expenses", Type: domain.TaxPercentOnCost, Value: r.ExpensePercent})
	}
	if r.TaxPercent > 0 {
		taxes = append(taxes, domain.Tax{Name: "taxes", Type: domain.TaxPercentOnSale, Value: r.TaxPercent})
	}
	return domain.Params{
		MarkupPercent: r.MarkupPercent,
		ProfitPercent: r.ProfitPercent,
		Taxes:         taxes,
		MinProfit:     r.MinProfit,
	}
}

func (s *Service) costLines(ctx context.Context, productID int64) (domain.Product, []domain.CostLine, error) {
	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return domain.Product{}, nil, err
	}
	matrix, err := s.repo.ListMatrix(ctx, productID)
	if err != nil {
		return domain.Product{}, nil, err
	}

	lines := make([]domain.CostLine, 0, len(matrix))
	for _, m := range matrix {
		lines = append(lines, domain.CostLine{
			Quantity: m.Quantity,
			Unit:     m.Unit,
			UnitCost: m.Ingredient.UnitCost,
			CostUnit: m.Ingredient.Unit,
		})
	}
	return product, lines, nil
}

// SimulatePrice computes a price for the product's current ingredient
// matrix without persisting anything.
func (s *Service) SimulatePrice(ctx context.Context, productID int64, req PriceRequest) (domain.IngredientsResult, error) {
	product, lines, err := s.costLines(ctx, productID)
	if err != nil {
		return domain.IngredientsResult{}, err
	}
	if len(lines) == 0 {
		return domain.IngredientsResult{}, ErrNoIngredients
	}

	yield := product.Yield
	if yield <= 0 {
		yield = 1
	}
	result, err := domain.FromIngredients(lines, yield, req.params())
	if err != nil {
		return domain.IngredientsResult{}, err
	}
	if result.TotalCost == 0 {
		return domain.IngredientsResult{}, ErrNoIngredients
	}
	return result, nil
}

// CalculationOutcome pairs the persisted product with the calculation
// that produced its new price.
type CalculationOutcome struct {
	Product     domain.Product           `json:"product"`
	Calculation domain.IngredientsResult `json:"calculation"`
}

// CalculateAndSavePrice runs the simulation and persists the resulting
// snapshot, locking the ingredient matrix. Invoking it on an already
// CALCULATED product recalculates with the same algorithm.
func (s *Service) CalculateAndSavePrice(ctx context.Context, productID int64, req PriceRequest) (CalculationOutcome, error) {
	result, err := s.SimulatePrice(ctx, productID, req)
	if err != nil {
		return CalculationOutcome{}, err
	}

	snap := domain.PricingSnapshot{
		CostPrice:     result.CostPerUnit,
		SalePrice:     result.SalePrice,
		MarkupPercent: result.Markup,
		ProfitPercent: result.ProfitMargin,
	}
	if req.ExpensePercent > 0 {
		snap.ExpensePercent = &req.ExpensePercent
	}
	if req.TaxPercent > 0 {
		snap.TaxPercent = &req.TaxPercent
	}
	if req.MinProfit > 0 {
		snap.MinProfit = &req.MinProfit
	}

	product, err := s.repo.SavePricing(ctx, productID, snap)
	if err != nil {
		return CalculationOutcome{}, err
	}

	s.log.Info("price calculated", "product_id", productID,
		"sale_price", result.SalePrice, "strategy", result.Strategy)
	return CalculationOutcome{Product: product, Calculation: result}, nil
}

// ResetPrice clears every pricing field and unlocks the ingredient
// matrix.
func (s *Service) ResetPrice(ctx context.Context, productID int64) (domain.Product, error) {
	product, err := s.repo.ResetPricing(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	s.log.Info("price reset", "product_id", productID)
	return product, nil
}

// MatrixLineRequest is the payload for adding or updating a recipe line.
type MatrixLineRequest struct {
	IngredientID int64       `json:"ingredientId"`
	Quantity     float64     `json:"quantity"`
	Unit         domain.Unit `json:"unit"`
	Notes        string      `json:"notes"`
}

// ConversionInfo documents the unit conversion behind a cached line
// cost.
type ConversionInfo struct {
	OriginalUnitCost    float64     `json:"originalUnitCost"`
	OriginalUnit        domain.Unit `json:"originalUnit"`
	UsedUnit            domain.Unit `json:"usedUnit"`
	ConversionPerformed bool        `json:"conversionPerformed"`
}

type MatrixLineResult struct {
	Line       domain.MatrixLine `json:"line"`
	Conversion ConversionInfo    `json:"conversion"`
}

func (s *Service) guardUnlocked(ctx context.Context, productID int64) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	if product.PriceStatus == domain.PriceCalculated {
		return domain.Product{}, ErrPriceLocked
	}
	return product, nil
}

// AddIngredient appends a line to the product's ingredient matrix,
// recomputing the cached total cost through unit conversion.
func (s *Service) AddIngredient(ctx context.Context, productID int64, req MatrixLineRequest) (MatrixLineResult, error) {
	if _, err := s.guardUnlocked(ctx, productID); err != nil {
		return MatrixLineResult{}, err
	}
	if req.Quantity <= 0 {
		return MatrixLineResult{}, ErrInvalidQuantity
	}

	ingredient, err := s.repo.GetIngredient(ctx, req.IngredientID)
	if err != nil {
		return MatrixLineResult{}, err
	}

	totalCost, err := domain.LineCost(ingredient.UnitCost, ingredient.Unit, req.Quantity, req.Unit)
	if err != nil {
		return MatrixLineResult{}, err
	}

	line, err := s.repo.InsertMatrixLine(ctx, domain.MatrixLine{
		ProductID:    productID,
		IngredientID: req.IngredientID,
		Quantity:     req.Quantity,
		Unit:         req.Unit,
		TotalCost:    domain.Round2(totalCost),
		Notes:        req.Notes,
	})
	if err != nil {
		return MatrixLineResult{}, err
	}

	return MatrixLineResult{
		Line: line,
		Conversion: ConversionInfo{
			OriginalUnitCost:    ingredient.UnitCost,
			OriginalUnit:        ingredient.Unit,
			UsedUnit:            req.Unit,
			ConversionPerformed: ingredient.Unit != req.Unit,
		},
	}, nil
}

// UpdateIngredient rewrites a recipe line in place, always refreshing
// the cached cost.
func (s *Service) UpdateIngredient(ctx context.Context, productID, lineID int64, req MatrixLineRequest) (MatrixLineResult, error) {
	if _, err := s.guardUnlocked(ctx, productID); err != nil {
		return MatrixLineResult{}, err
	}
	if req.Quantity <= 0 {
		return MatrixLineResult{}, ErrInvalidQuantity
	}

	line, err := s.repo.GetMatrixLine(ctx, lineID)
	if err != nil {
		return MatrixLineResult{}, err
	}
	if line.ProductID != productID {
		return MatrixLineResult{}, ErrLineMismatch
	}

	ingredient, err := s.repo.GetIngredient(ctx, line.IngredientID)
	if err != nil {
		return MatrixLineResult{}, err
	}

	totalCost, err := domain.LineCost(ingredient.UnitCost, ingredient.Unit, req.Quantity, req.Unit)
	if err != nil {
		return MatrixLineResult{}, err
	}

	line.Quantity = req.Quantity
	line.Unit = req.Unit
	line.TotalCost = domain.Round2(totalCost)
	line.Notes = req.Notes

	updated, err := s.repo.UpdateMatrixLine(ctx, line)
	if err != nil {
		return MatrixLineResult{}, err
	}
	return MatrixLineResult{
		Line: updated,
		Conversion: ConversionInfo{
			OriginalUnitCost:    ingredient.UnitCost,
			OriginalUnit:        ingredient.Unit,
			UsedUnit:            req.Unit,
			ConversionPerformed: ingredient.Unit != req.Unit,
		},
	}, nil
}

// RemoveIngredient deletes a line from the matrix.
func (s *Service) RemoveIngredient(ctx context.Context, productID, ingredientID int64) error {
	if _, err := s.guardUnlocked(ctx, productID); err != nil {
		return err
	}
	return s.repo.DeleteMatrixLine(ctx, productID, ingredientID)
}

// CostSummary aggregates the cached matrix costs for display.
type CostSummary struct {
	TotalIngredientCost float64 `json:"totalIngredientCost"`
	CostPerUnit         float64 `json:"costPerUnit"`
	Yield               float64 `json:"yield"`
	IngredientCount     int     `json:"ingredientCount"`
}

type ProductDetail struct {
	Product domain.Product      `json:"product"`
	Matrix  []domain.MatrixLine `json:"ingredients"`
	Summary CostSummary         `json:"costSummary"`
}

// GetProductForPricing loads a product with its matrix and cost summary.
func (s *Service) GetProductForPricing(ctx context.Context, productID int64) (ProductDetail, error) {
	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return ProductDetail{}, err
	}
	matrix, err := s.repo.ListMatrix(ctx, productID)
	if err != nil {
		return ProductDetail{}, err
	}

	var total float64
	for _, m := range matrix {
		total += m.TotalCost
	}
	yield := product.Yield
	if yield <= 0 {
		yield = 1
	}

	return ProductDetail{
		Product: product,
		Matrix:  matrix,
		Summary: CostSummary{
			TotalIngredientCost: domain.Round2(total),
			CostPerUnit:         domain.Round2(total / yield),
			Yield:               yield,
			IngredientCount:     len(matrix),
		},
	}, nil
}

// ListProductsForPricing lists unlocked products awaiting a price.
func (s *Service) ListProductsForPricing(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	return s.repo.ListProductsForPricing(ctx, f)
}

// ListCalculatedProducts lists products with a persisted price.
func (s *Service) ListCalculatedProducts(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	return s.repo.ListCalculatedProducts(ctx, f)
}

// SimulateScenarios sweeps several pricing strategies over the product's
// current cost basis.
func (s *Service) SimulateScenarios(ctx context.Context, productID int64, scenarios []PriceRequest) ([]domain.ScenarioResult, error) {
	detail, err := s.GetProductForPricing(ctx, productID)
	if err != nil {
		return nil, err
	}
	if detail.Summary.CostPerUnit <= 0 {
		return nil, ErrNoIngredients
	}

	params := make([]domain.Params, 0, len(scenarios))
	for _, sc := range scenarios {
		params = append(params, sc.params())
	}
	return domain.SimulateScenarios(detail.Summary.CostPerUnit, params), nil
}
