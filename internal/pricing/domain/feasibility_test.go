package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docelar/backoffice/internal/pricing/domain"
)

func TestAnalyzeFeasibilityHigh(t *testing.T) {
	report, err := domain.AnalyzeFeasibility(domain.FeasibilityParams{
		CostPrice:       2,
		TargetSalePrice: 4,
		MaxMarketPrice:  5,
	})
	require.NoError(t, err)

	require.Equal(t, domain.FeasibilityHigh, report.Feasibility)
	require.InDelta(t, 50, report.TargetMargin, 1e-9)
	require.InDelta(t, 100, report.TargetMarkup, 1e-9)
	require.True(t, report.MeetsMinMargin)
	require.True(t, report.WithinMarketLimit)
	require.Empty(t, report.Suggestions)
}

func TestAnalyzeFeasibilityThinMargin(t *testing.T) {
	// margin 20% is the default floor; expenses push the net below it
	report, err := domain.AnalyzeFeasibility(domain.FeasibilityParams{
		CostPrice:       2,
		TargetSalePrice: 2.6,
		MaxMarketPrice:  5,
		Expenses: []domain.Expense{
			{Name: "packaging", Type: domain.TaxFixed, Value: 0.3},
		},
	})
	require.NoError(t, err)

	require.Equal(t, domain.FeasibilityMedium, report.Feasibility)
	require.False(t, report.MeetsMinMargin)
	require.NotEmpty(t, report.Suggestions)
}

func TestAnalyzeFeasibilityAboveMarket(t *testing.T) {
	report, err := domain.AnalyzeFeasibility(domain.FeasibilityParams{
		CostPrice:       2,
		TargetSalePrice: 6,
		MaxMarketPrice:  5,
	})
	require.NoError(t, err)

	require.Equal(t, domain.FeasibilityLow, report.Feasibility)
	require.False(t, report.WithinMarketLimit)
}

func TestAnalyzeFeasibilityInvalidTarget(t *testing.T) {
	_, err := domain.AnalyzeFeasibility(domain.FeasibilityParams{CostPrice: 4, TargetSalePrice: 2})
	require.ErrorIs(t, err, domain.ErrInvalidSalePrice)
}
