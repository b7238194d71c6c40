package domain

import "time"

type PriceStatus string

const (
	PriceNotCalculated PriceStatus = "NOT_CALCULATED"
	PriceCalculated    PriceStatus = "CALCULATED"
)

// Product carries the pricing-relevant fields. While PriceStatus is
// CALCULATED the ingredient matrix is locked; Reset unlocks it.
type Product struct {
	ID             int64       `json:"id"`
	Name           string      `json:"name"`
	Description    string      `json:"description"`
	Category       string      `json:"category"`
	CostPrice      *float64    `json:"costPrice"`
	SalePrice      *float64    `json:"salePrice"`
	MarkupPercent  *float64    `json:"markupPercent"`
	ProfitPercent  *float64    `json:"profitPercent"`
	ExpensePercent *float64    `json:"expensePercent"`
	TaxPercent     *float64    `json:"taxPercent"`
	MinProfit      *float64    `json:"minProfit"`
	PriceStatus    PriceStatus `json:"priceStatus"`
	Yield          float64     `json:"yield"`
	IsActive       bool        `json:"isActive"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// Ingredient is master data, referenced by recipe lines but never owned
// by them.
type Ingredient struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Unit     Unit    `json:"unit"`
	UnitCost float64 `json:"unitCost"`
	Category string  `json:"category"`
	Supplier string  `json:"supplier"`
	IsActive bool    `json:"isActive"`
}

// MatrixLine is one line of a product's ingredient matrix. TotalCost is
// a cache recomputed from the ingredient's unit cost on every write; it
// is never a source of truth.
type MatrixLine struct {
	ID           int64      `json:"id"`
	ProductID    int64      `json:"productId"`
	IngredientID int64      `json:"ingredientId"`
	Quantity     float64    `json:"quantity"`
	Unit         Unit       `json:"unit"`
	TotalCost    float64    `json:"totalCost"`
	Notes        string     `json:"notes"`
	Ingredient   Ingredient `json:"ingredient"`
}

// PricingSnapshot is what Calculate persists onto the product.
type PricingSnapshot struct {
	CostPrice      float64
	SalePrice      float64
	MarkupPercent  float64
	ProfitPercent  float64
	ExpensePercent *float64
	TaxPercent     *float64
	MinProfit      *float64
}
