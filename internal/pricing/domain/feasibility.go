package domain

import "fmt"

type Feasibility string

const (
	FeasibilityHigh   Feasibility = "HIGH"
	FeasibilityMedium Feasibility = "MEDIUM"
	FeasibilityLow    Feasibility = "LOW"
)

type Expense struct {
	Name  string  `json:"name"`
	Type  TaxType `json:"type"`
	Value float64 `json:"value"`
}

type FeasibilityParams struct {
	CostPrice           float64
	TargetSalePrice     float64
	MaxMarketPrice      float64
	MinAcceptableMargin float64
	Expenses            []Expense
}

type FeasibilityReport struct {
	CostPrice         float64     `json:"costPrice"`
	TargetSalePrice   float64     `json:"targetSalePrice"`
	TargetMargin      float64     `json:"targetMargin"`
	TargetMarkup      float64     `json:"targetMarkup"`
	TotalExpenses     float64     `json:"totalExpenses"`
	NetProfit         float64     `json:"netProfit"`
	NetMargin         float64     `json:"netMargin"`
	MeetsMinMargin    bool        `json:"meetsMinMargin"`
	WithinMarketLimit bool        `json:"withinMarketLimit"`
	Feasibility       Feasibility `json:"feasibility"`
	Suggestions       []string    `json:"suggestions"`
}

// AnalyzeFeasibility checks a target sale price against a minimum
// acceptable margin and a market price ceiling, netting out fixed and
// percentual expenses.
func AnalyzeFeasibility(p FeasibilityParams) (FeasibilityReport, error) {
	if p.MinAcceptableMargin == 0 {
		p.MinAcceptableMargin = 20
	}

	targetMargin, err := MarginFromSalePrice(p.CostPrice, p.TargetSalePrice)
	if err != nil {
		return FeasibilityReport{}, err
	}
	targetMarkup, err := MarkupFromSalePrice(p.CostPrice, p.TargetSalePrice)
	if err != nil {
		return FeasibilityReport{}, err
	}

	var totalExpenses float64
	for _, e := range p.Expenses {
		if e.Type == TaxFixed {
			totalExpenses += e.Value
		} else {
			totalExpenses += p.TargetSalePrice * e.Value / 100
		}
	}

	netProfit := p.TargetSalePrice - p.CostPrice - totalExpenses
	netMargin := netProfit / p.TargetSalePrice * 100

	meetsMinMargin := netMargin >= p.MinAcceptableMargin
	withinMarketLimit := p.TargetSalePrice <= p.MaxMarketPrice

	var suggestions []string
	if !meetsMinMargin {
		minPrice := p.CostPrice / (1 - p.MinAcceptableMargin/100)
		suggestions = append(suggestions, fmt.Sprintf(
			"minimum price for a %.0f%% margin: %.2f", p.MinAcceptableMargin, minPrice))
	}
	if !withinMarketLimit {
		suggestions = append(suggestions, fmt.Sprintf(
			"price above market ceiling (max: %.2f)", p.MaxMarketPrice))
	}

	feasibility := FeasibilityHigh
	if !withinMarketLimit {
		feasibility = FeasibilityLow
	} else if !meetsMinMargin {
		feasibility = FeasibilityMedium
	}

	return FeasibilityReport{
		CostPrice:         p.CostPrice,
		TargetSalePrice:   p.TargetSalePrice,
		TargetMargin:      Round2(targetMargin),
		TargetMarkup:      Round2(targetMarkup),
		TotalExpenses:     Round2(totalExpenses),
		NetProfit:         Round2(netProfit),
		NetMargin:         Round2(netMargin),
		MeetsMinMargin:    meetsMinMargin,
		WithinMarketLimit: withinMarketLimit,
		Feasibility:       feasibility,
		Suggestions:       suggestions,
	}, nil
}

// ScenarioResult is one entry of a pricing simulation sweep.
type ScenarioResult struct {
	Params  Params `json:"params"`
	Quote   *Quote `json:"quote,omitempty"`
	Error   string `json:"error,omitempty"`
	Success bool   `json:"success"`
}

// SimulateScenarios runs Suggest for each scenario against one cost
// basis, collecting failures instead of aborting the sweep.
func SimulateScenarios(costPrice float64, scenarios []Params) []ScenarioResult {
	results := make([]ScenarioResult, 0, len(scenarios))
	for _, s := range scenarios {
		s.CostPrice = costPrice
		quote, err := Suggest(s)
		if err != nil {
			results = append(results, ScenarioResult{Params: s, Error: err.Error()})
			continue
		}
		results = append(results, ScenarioResult{Params: s, Quote: &quote, Success: true})
	}
	return results
}
