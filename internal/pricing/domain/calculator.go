package domain

import "math"

type Strategy string

const (
	StrategyMarkup Strategy = "markup"
	StrategyMargin Strategy = "margin"
)

type TaxType string

const (
	TaxPercentOnCost TaxType = "percent_on_cost"
	TaxPercentOnSale TaxType = "percent_on_sale"
	TaxFixed         TaxType = "fixed"
)

type Tax struct {
	Name  string  `json:"name"`
	Type  TaxType `json:"type"`
	Value float64 `json:"value"`
}

// Params is the input of a suggested-price calculation. Exactly one of
// MarkupPercent or ProfitPercent must be set.
type Params struct {
	CostPrice     float64
	MarkupPercent *float64
	ProfitPercent *float64
	Taxes         []Tax
	MinProfit     float64
}

type TaxLine struct {
	Name   string  `json:"name"`
	Type   TaxType `json:"type"`
	Value  float64 `json:"value"`
	Amount float64 `json:"amount"`
}

type Breakdown struct {
	CostPrice        float64   `json:"costPrice"`
	CostWithTaxes    float64   `json:"costWithTaxes"`
	BasePrice        float64   `json:"basePrice"`
	Taxes            []TaxLine `json:"taxes"`
	TaxTotal         float64   `json:"taxTotal"`
	PriceWithTaxes   float64   `json:"priceWithTaxes"`
	MinProfitApplied bool      `json:"minProfitApplied"`
	FinalPrice       float64   `json:"finalPrice"`
	Profit           float64   `json:"profit"`
	ProfitMargin     float64   `json:"profitMargin"`
	Markup           float64   `json:"markup"`
	Ingredients      float64   `json:"ingredients"`
}

// Quote is the result of a pricing calculation. Markup is measured
// against the raw cost price while ProfitMargin is measured against the
// final price; the asymmetry matches the stored historical values and
// must not be unified.
type Quote struct {
	SalePrice        float64   `json:"salePrice"`
	CostPrice        float64   `json:"costPrice"`
	CostWithTaxes    float64   `json:"costWithTaxes"`
	Profit           float64   `json:"profit"`
	ProfitMargin     float64   `json:"profitMargin"`
	Markup           float64   `json:"markup"`
	Strategy         Strategy  `json:"strategy"`
	MinProfitApplied bool      `json:"minProfitApplied"`
	Breakdown        Breakdown `json:"breakdown"`
}

// Round2 rounds a monetary value to two decimal places. It is applied
// only when presenting results; intermediate math stays unrounded.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Suggest derives a sale price from a cost basis under a markup or
// margin strategy, applies taxes and enforces the minimum-profit floor.
func Suggest(p Params) (Quote, error) {
	if p.CostPrice <= 0 {
		return Quote{}, ErrInvalidCost
	}
	hasMarkup := p.MarkupPercent != nil
	hasMargin := p.ProfitPercent != nil
	if hasMarkup == hasMargin {
		return Quote{}, ErrAmbiguousStrategy
	}

	var costTaxes, saleTaxes []Tax
	for _, t := range p.Taxes {
		if t.Type == TaxPercentOnCost {
			costTaxes = append(costTaxes, t)
		} else {
			saleTaxes = append(saleTaxes, t)
		}
	}

	costWithTaxes := p.CostPrice
	lines := make([]TaxLine, 0, len(p.Taxes))
	for _, t := range costTaxes {
		amount := p.CostPrice * t.Value / 100
		costWithTaxes += amount
		lines = append(lines, TaxLine{Name: t.Name, Type: t.Type, Value: t.Value, Amount: Round2(amount)})
	}

	var basePrice float64
	var strategy Strategy
	if hasMarkup {
		strategy = StrategyMarkup
		basePrice = costWithTaxes * (1 + *p.MarkupPercent/100)
	} else {
		strategy = StrategyMargin
		margin := *p.ProfitPercent
		if margin <= 0 || margin >= 100 {
			return Quote{}, ErrInvalidMargin
		}
		basePrice = costWithTaxes / (1 - margin/100)
	}

	priceWithTaxes := basePrice
	for _, t := range saleTaxes {
		var amount float64
		switch t.Type {
		case TaxPercentOnSale:
			amount = basePrice * t.Value / 100
		case TaxFixed:
			amount = t.Value
		}
		priceWithTaxes += amount
		lines = append(lines, TaxLine{Name: t.Name, Type: t.Type, Value: t.Value, Amount: Round2(amount)})
	}

	profit := priceWithTaxes - costWithTaxes
	finalPrice := priceWithTaxes
	minProfitApplied := false
	if profit < p.MinProfit {
		finalPrice = costWithTaxes + p.MinProfit
		profit = p.MinProfit
		minProfitApplied = true
	}

	profitMargin := profit / finalPrice * 100
	markup := (finalPrice - p.CostPrice) / p.CostPrice * 100

	var taxTotal float64
	for _, l := range lines {
		taxTotal += l.Amount
	}

	return Quote{
		SalePrice:        Round2(finalPrice),
		CostPrice:        Round2(p.CostPrice),
		CostWithTaxes:    Round2(costWithTaxes),
		Profit:           Round2(profit),
		ProfitMargin:     Round2(profitMargin),
		Markup:           Round2(markup),
		Strategy:         strategy,
		MinProfitApplied: minProfitApplied,
		Breakdown: Breakdown{
			CostPrice:        Round2(p.CostPrice),
			CostWithTaxes:    Round2(costWithTaxes),
			BasePrice:        Round2(basePrice),
			Taxes:            lines,
			TaxTotal:         Round2(taxTotal),
			PriceWithTaxes:   Round2(priceWithTaxes),
			MinProfitApplied: minProfitApplied,
			FinalPrice:       Round2(finalPrice),
			Profit:           Round2(profit),
			ProfitMargin:     Round2(profitMargin),
			Markup:           Round2(markup),
		},
	}, nil
}

// CostLine is one recipe line for ingredient-cost aggregation.
type CostLine struct {
	Quantity float64
	Unit     Unit
	UnitCost float64
	CostUnit Unit
}

// IngredientsResult is a Quote enriched with the aggregation figures.
type IngredientsResult struct {
	Quote
	TotalCost   float64 `json:"totalCost"`
	CostPerUnit float64 `json:"costPerUnit"`
	Yield       float64 `json:"yield"`
	Lines       int     `json:"lines"`
}

// FromIngredients aggregates recipe lines (converting units where the
// line differs from the ingredient's native unit), divides by the batch
// yield and prices the per-unit cost.
func FromIngredients(lines []CostLine, yield float64, p Params) (IngredientsResult, error) {
	if yield <= 0 {
		return IngredientsResult{}, ErrInvalidYield
	}
	var totalCost float64
	for _, l := range lines {
		cost, err := LineCost(l.UnitCost, l.CostUnit, l.Quantity, l.Unit)
		if err != nil {
			return IngredientsResult{}, err
		}
		totalCost += cost
	}

	costPerUnit := totalCost / yield
	p.CostPrice = costPerUnit
	quote, err := Suggest(p)
	if err != nil {
		return IngredientsResult{}, err
	}
	quote.Breakdown.Ingredients = Round2(totalCost)

	return IngredientsResult{
		Quote:       quote,
		TotalCost:   Round2(totalCost),
		CostPerUnit: Round2(costPerUnit),
		Yield:       yield,
		Lines:       len(lines),
	}, nil
}

// MarkupFromSalePrice answers "what markup produced this sale price".
func MarkupFromSalePrice(costPrice, salePrice float64) (float64, error) {
	if costPrice <= 0 {
		return 0, ErrInvalidCost
	}
	if salePrice < costPrice {
		return 0, ErrInvalidSalePrice
	}
	return (salePrice - costPrice) / costPrice * 100, nil
}

// MarginFromSalePrice answers "what margin this sale price yields".
func MarginFromSalePrice(costPrice, salePrice float64) (float64, error) {
	if salePrice <= 0 {
		return 0, ErrInvalidCost
	}
	if salePrice < costPrice {
		return 0, ErrInvalidSalePrice
	}
	return (salePrice - costPrice) / salePrice * 100, nil
}
