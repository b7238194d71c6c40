package domain

import "fmt"

// Unit is a measurement unit for ingredient quantities.
type Unit string

const (
	Kilogram   Unit = "kg"
	Gram       Unit = "g"
	Milligram  Unit = "mg"
	Liter      Unit = "L"
	Milliliter Unit = "ml"
	Centiliter Unit = "cl"
	Piece      Unit = "un"
)

// Each family tabulates one direction only: the factor from the unit to
// the family's base unit (grams for mass, milliliters for volume). The
// inverse is derived, never hand-duplicated.
var unitFamilies = []map[Unit]float64{
	{Kilogram: 1000, Gram: 1, Milligram: 0.001},
	{Liter: 1000, Centiliter: 10, Milliliter: 1},
	{Piece: 1},
}

// Convert converts a quantity between compatible units. Units of
// different families (or unknown units) fail with
// ErrUnsupportedConversion unless they are equal.
func Convert(value float64, from, to Unit) (float64, error) {
	if from == to {
		return value, nil
	}
	for _, family := range unitFamilies {
		ff, okFrom := family[from]
		tf, okTo := family[to]
		if okFrom && okTo {
			return value * ff / tf, nil
		}
	}
	return 0, fmt.Errorf("%w: %s to %s", ErrUnsupportedConversion, from, to)
}

// LineCost prices a recipe line: unitCost is expressed per costUnit, the
// quantity per qtyUnit. The quantity is converted into the cost unit
// before multiplying.
func LineCost(unitCost float64, costUnit Unit, qty float64, qtyUnit Unit) (float64, error) {
	if costUnit == qtyUnit {
		return unitCost * qty, nil
	}
	converted, err := Convert(qty, qtyUnit, costUnit)
	if err != nil {
		return 0, err
	}
	return unitCost * converted, nil
}
