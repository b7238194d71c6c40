package domain

import "errors"

var (
	ErrInvalidCost           = errors.New("cost price must be greater than zero")
	ErrAmbiguousStrategy     = errors.New("provide exactly one of markup percent or profit percent")
	ErrInvalidMargin         = errors.New("profit margin must be between 0% and 100%, exclusive")
	ErrInvalidYield          = errors.New("yield must be greater than zero")
	ErrInvalidSalePrice      = errors.New("sale price cannot be lower than cost price")
	ErrUnsupportedConversion = errors.New("unsupported unit conversion")
)
