package services

import (
	"errors"

	"mealcart/internal/repositories"
)

var (
	// ErrInvalidInput is returned when a required identifier is missing.
	ErrInvalidInput = errors.New("invalid input")
	// ErrItemNotFound is returned when a quantity change targets a meal that
	// is not in the cart.
	ErrItemNotFound = repositories.ErrItemNotFound
)
