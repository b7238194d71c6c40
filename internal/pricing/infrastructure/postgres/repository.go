package postgres

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docelar/backoffice/internal/pricing/application"
	"github.com/docelar/backoffice/internal/pricing/domain"
)

// Repository implements application.Repository on postgres.
type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

const productColumns = `id, name, description, category, cost_price, sale_price,
	markup_percent, profit_percent, expense_percent, tax_percent, min_profit,
	price_status, yield, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.CostPrice, &p.SalePrice,
		&p.MarkupPercent, &p.ProfitPercent, &p.ExpensePercent, &p.TaxPercent, &p.MinProfit,
		&p.PriceStatus, &p.Yield, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *Repository) GetProduct(ctx context.Context, productID int64) (domain.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Product{}, application.ErrProductNotFound
		}
		return domain.Product{}, err
	}
	return p, nil
}

func (r *Repository) listProducts(ctx context.Context, extra string, f application.ProductFilter) ([]domain.Product, error) {
	where := ` WHERE is_active` + extra
	args := []any{}
	n := 1
	if f.Search != "" {
		where += ` AND name ILIKE $` + strconv.Itoa(n)
		args = append(args, "%"+f.Search+"%")
		n++
	}
	if f.Category != "" {
		where += ` AND category = $` + strconv.Itoa(n)
		args = append(args, f.Category)
		n++
	}
	sql := `SELECT ` + productColumns + ` FROM products` + where + ` ORDER BY name`
	if f.Limit > 0 {
		sql += ` LIMIT $` + strconv.Itoa(n)
		args = append(args, f.Limit)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *Repository) ListProductsForPricing(ctx context.Context, f application.ProductFilter) ([]domain.Product, error) {
	return r.listProducts(ctx, ``, f)
}

func (r *Repository) ListCalculatedProducts(ctx context.Context, f application.ProductFilter) ([]domain.Product, error) {
	return r.listProducts(ctx, ` AND price_status='CALCULATED'`, f)
}

func (r *Repository) GetIngredient(ctx context.Context, ingredientID int64) (domain.Ingredient, error) {
	var ing domain.Ingredient
	err := r.pool.QueryRow(ctx, `SELECT id, name, unit, unit_cost, category, supplier, is_active
		FROM ingredients WHERE id=$1`, ingredientID).
		Scan(&ing.ID, &ing.Name, &ing.Unit, &ing.UnitCost, &ing.Category, &ing.Supplier, &ing.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Ingredient{}, application.ErrIngredientNotFound
		}
		return domain.Ingredient{}, err
	}
	return ing, nil
}

const lineColumns = `l.id, l.product_id, l.ingredient_id, l.quantity, l.unit, l.total_cost, l.notes,
	i.id, i.name, i.unit, i.unit_cost, i.category, i.supplier, i.is_active`

const lineJoin = ` FROM product_ingredients l JOIN ingredients i ON i.id = l.ingredient_id`

func scanLine(row pgx.Row) (domain.MatrixLine, error) {
	var l domain.MatrixLine
	err := row.Scan(&l.ID, &l.ProductID, &l.IngredientID, &l.Quantity, &l.Unit, &l.TotalCost, &l.Notes,
		&l.Ingredient.ID, &l.Ingredient.Name, &l.Ingredient.Unit, &l.Ingredient.UnitCost,
		&l.Ingredient.Category, &l.Ingredient.Supplier, &l.Ingredient.IsActive)
	return l, err
}

func (r *Repository) ListMatrix(ctx context.Context, productID int64) ([]domain.MatrixLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+lineColumns+lineJoin+`
		WHERE l.product_id=$1 ORDER BY i.name`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []domain.MatrixLine
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *Repository) GetMatrixLine(ctx context.Context, lineID int64) (domain.MatrixLine, error) {
	l, err := scanLine(r.pool.QueryRow(ctx, `SELECT `+lineColumns+lineJoin+` WHERE l.id=$1`, lineID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MatrixLine{}, application.ErrLineNotFound
		}
		return domain.MatrixLine{}, err
	}
	return l, nil
}

func (r *Repository) InsertMatrixLine(ctx context.Context, line domain.MatrixLine) (domain.MatrixLine, error) {
	// one line per (product, ingredient); a second add replaces the first
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO product_ingredients
			(product_id, ingredient_id, quantity, unit, total_cost, notes)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (product_id, ingredient_id) DO UPDATE SET
			quantity=EXCLUDED.quantity, unit=EXCLUDED.unit,
			total_cost=EXCLUDED.total_cost, notes=EXCLUDED.notes
		RETURNING id`,
		line.ProductID, line.IngredientID, line.Quantity, string(line.Unit), line.TotalCost, line.Notes).
		Scan(&id)
	if err != nil {
		return domain.MatrixLine{}, err
	}
	return r.GetMatrixLine(ctx, id)
}

func (r *Repository) UpdateMatrixLine(ctx context.Context, line domain.MatrixLine) (domain.MatrixLine, error) {
	ct, err := r.pool.Exec(ctx, `UPDATE product_ingredients SET
			quantity=$2, unit=$3, total_cost=$4, notes=$5
		WHERE id=$1`,
		line.ID, line.Quantity, string(line.Unit), line.TotalCost, line.Notes)
	if err != nil {
		return domain.MatrixLine{}, err
	}
	if ct.RowsAffected() == 0 {
		return domain.MatrixLine{}, application.ErrLineNotFound
	}
	return r.GetMatrixLine(ctx, line.ID)
}

func (r *Repository) DeleteMatrixLine(ctx context.Context, productID, ingredientID int64) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM product_ingredients
		WHERE product_id=$1 AND ingredient_id=$2`, productID, ingredientID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return application.ErrLineNotFound
	}
	return nil
}

func (r *Repository) SavePricing(ctx context.Context, productID int64, snap domain.PricingSnapshot) (domain.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `UPDATE products SET
			cost_price=$2, sale_price=$3, markup_percent=$4, profit_percent=$5,
			expense_percent=$6, tax_percent=$7, min_profit=$8,
			price_status='CALCULATED', updated_at=now()
		WHERE id=$1
		RETURNING `+productColumns,
		productID, snap.CostPrice, snap.SalePrice, snap.MarkupPercent, snap.ProfitPercent,
		snap.ExpensePercent, snap.TaxPercent, snap.MinProfit))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Product{}, application.ErrProductNotFound
		}
		return domain.Product{}, err
	}
	return p, nil
}

func (r *Repository) ResetPricing(ctx context.Context, productID int64) (domain.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `UPDATE products SET
			cost_price=NULL, sale_price=NULL, markup_percent=NULL, profit_percent=NULL,
			expense_percent=NULL, tax_percent=NULL, min_profit=NULL,
			price_status='NOT_CALCULATED', updated_at=now()
		WHERE id=$1
		RETURNING `+productColumns, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Product{}, application.ErrProductNotFound
		}
		return domain.Product{}, err
	}
	return p, nil
}
