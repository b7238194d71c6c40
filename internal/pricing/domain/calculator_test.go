package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docelar/backoffice/internal/pricing/domain"
)

func ptr(v float64) *float64 { return &v }

func TestSuggestMarkup(t *testing.T) {
	quote, err := domain.Suggest(domain.Params{CostPrice: 2, MarkupPercent: ptr(50)})
	require.NoError(t, err)

	require.Equal(t, domain.StrategyMarkup, quote.Strategy)
	require.InDelta(t, 3.00, quote.SalePrice, 1e-9)
	require.InDelta(t, 1.00, quote.Profit, 1e-9)
	require.InDelta(t, 50, quote.Markup, 1e-9)
	require.False(t, quote.MinProfitApplied)
}

func TestSuggestMargin(t *testing.T) {
	quote, err := domain.Suggest(domain.Params{CostPrice: 2, ProfitPercent: ptr(50)})
	require.NoError(t, err)

	require.Equal(t, domain.StrategyMargin, quote.Strategy)
	require.InDelta(t, 4.00, quote.SalePrice, 1e-9)
	require.InDelta(t, 2.00, quote.Profit, 1e-9)
	require.InDelta(t, 50, quote.ProfitMargin, 1e-9)
}

func TestSuggestMinProfitFloor(t *testing.T) {
	quote, err := domain.Suggest(domain.Params{CostPrice: 2, MarkupPercent: ptr(10), MinProfit: 5})
	require.NoError(t, err)

	require.True(t, quote.MinProfitApplied)
	require.InDelta(t, 7.00, quote.SalePrice, 1e-9)
	require.InDelta(t, 5.00, quote.Profit, 1e-9)
}

func TestSuggestMarginBounds(t *testing.T) {
	for _, margin := range []float64{-5, 0, 100, 150} {
		_, err := domain.Suggest(domain.Params{CostPrice: 2, ProfitPercent: ptr(margin)})
		require.ErrorIs(t, err, domain.ErrInvalidMargin, "margin %v", margin)
	}
}

func TestSuggestPreconditions(t *testing.T) {
	_, err := domain.Suggest(domain.Params{CostPrice: 0, MarkupPercent: ptr(50)})
	require.ErrorIs(t, err, domain.ErrInvalidCost)

	_, err = domain.Suggest(domain.Params{CostPrice: -1, MarkupPercent: ptr(50)})
	require.ErrorIs(t, err, domain.ErrInvalidCost)

	_, err = domain.Suggest(domain.Params{CostPrice: 2})
	require.ErrorIs(t, err, domain.ErrAmbiguousStrategy)

	_, err = domain.Suggest(domain.Params{CostPrice: 2, MarkupPercent: ptr(50), ProfitPercent: ptr(50)})
	require.ErrorIs(t, err, domain.ErrAmbiguousStrategy)
}

func TestSuggestTaxes(t *testing.T) {
	quote, err := domain.Suggest(domain.Params{
		CostPrice:     100,
		MarkupPercent: ptr(20),
		Taxes: []domain.Tax{
			{Name: "expenses", Type: domain.TaxPercentOnCost, Value: 10},
			{Name: "taxes", Type: domain.TaxPercentOnSale, Value: 10},
			{Name: "delivery", Type: domain.TaxFixed, Value: 3},
		},
	})
	require.NoError(t, err)

	// cost 100 +10% = 110, base = 132, +10% of base +3 fixed = 148.2
	require.InDelta(t, 110, quote.CostWithTaxes, 1e-9)
	require.InDelta(t, 148.2, quote.SalePrice, 1e-9)
	require.InDelta(t, 38.2, quote.Profit, 1e-9)

	// markup is relative to the raw cost, margin to the final price
	require.InDelta(t, 48.2, quote.Markup, 1e-9)
	require.InDelta(t, 38.2/148.2*100, quote.ProfitMargin, 0.01)

	require.Len(t, quote.Breakdown.Taxes, 3)
	require.InDelta(t, 10, quote.Breakdown.Taxes[0].Amount, 1e-9)
	require.InDelta(t, 13.2, quote.Breakdown.Taxes[1].Amount, 1e-9)
	require.InDelta(t, 3, quote.Breakdown.Taxes[2].Amount, 1e-9)
	require.InDelta(t, 26.2, quote.Breakdown.TaxTotal, 1e-9)
}

func TestMarkupRoundTrip(t *testing.T) {
	cases := []struct{ cost, markup float64 }{
		{2, 50},
		{10, 37.5},
		{8, 12.5},
		{100, 200},
	}
	for _, c := range cases {
		quote, err := domain.Suggest(domain.Params{CostPrice: c.cost, MarkupPercent: ptr(c.markup)})
		require.NoError(t, err)

		back, err := domain.MarkupFromSalePrice(c.cost, quote.SalePrice)
		require.NoError(t, err)
		require.InDelta(t, c.markup, back, 0.1, "cost %v markup %v", c.cost, c.markup)
	}
}

func TestMarginFromSalePrice(t *testing.T) {
	margin, err := domain.MarginFromSalePrice(2, 4)
	require.NoError(t, err)
	require.InDelta(t, 50, margin, 1e-9)

	_, err = domain.MarginFromSalePrice(4, 2)
	require.ErrorIs(t, err, domain.ErrInvalidSalePrice)

	_, err = domain.MarginFromSalePrice(2, 0)
	require.ErrorIs(t, err, domain.ErrInvalidCost)
}

func TestFromIngredients(t *testing.T) {
	lines := []domain.CostLine{
		{Quantity: 2, Unit: domain.Kilogram, UnitCost: 2.5, CostUnit: domain.Kilogram},
		{Quantity: 500, Unit: domain.Gram, UnitCost: 10, CostUnit: domain.Kilogram},
	}

	result, err := domain.FromIngredients(lines, 5, domain.Params{MarkupPercent: ptr(50)})
	require.NoError(t, err)

	require.InDelta(t, 10.00, result.TotalCost, 1e-9)
	require.InDelta(t, 2.00, result.CostPerUnit, 1e-9)
	require.InDelta(t, 3.00, result.SalePrice, 1e-9)
	require.InDelta(t, 1.00, result.Profit, 1e-9)
	require.InDelta(t, 10.00, result.Breakdown.Ingredients, 1e-9)
	require.Equal(t, 2, result.Lines)
}

func TestFromIngredientsInvalidYield(t *testing.T) {
	lines := []domain.CostLine{{Quantity: 1, Unit: domain.Kilogram, UnitCost: 5, CostUnit: domain.Kilogram}}

	_, err := domain.FromIngredients(lines, 0, domain.Params{MarkupPercent: ptr(50)})
	require.ErrorIs(t, err, domain.ErrInvalidYield)

	_, err = domain.FromIngredients(lines, -1, domain.Params{MarkupPercent: ptr(50)})
	require.ErrorIs(t, err, domain.ErrInvalidYield)
}
