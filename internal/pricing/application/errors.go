package application

import "errors"

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrIngredientNotFound = errors.New("ingredient not found")
	ErrLineNotFound       = errors.New("ingredient not found on this product")
	ErrInvalidQuantity    = errors.New("quantity must be greater than zero")
	ErrPriceLocked        = errors.New("product price already calculated; reset it to edit the ingredient matrix")
	ErrLineMismatch       = errors.New("ingredient line does not belong to this product")
	ErrNoIngredients      = errors.New("add ingredients before calculating the price")
)
