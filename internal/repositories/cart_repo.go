package repositories

import (
	"context"
	"errors"

	"mealcart/internal/models"
)

var (
	// ErrCartNotFound is returned by GetCart when the user has no cart.
	ErrCartNotFound = errors.New("cart not found")
	// ErrItemNotFound is returned by AdjustQuantity when the meal is not in the cart.
	ErrItemNotFound = errors.New("item not found")
)

// CartRepository defines the interface for cart data access.
// Each mutating method is a single atomic operation against the backend.
type CartRepository interface {
	// AddItem appends item unless a line with the same IDMeal exists,
	// creating the cart if needed.
	AddItem(ctx context.Context, userID string, item models.LineItem) (models.AddOutcome, error)
	// AdjustQuantity adds delta to the item's quantity and drops the item
	// when the result is zero or less.
	AdjustQuantity(ctx context.Context, userID, idMeal string, delta int) (models.AdjustResult, error)
	// RemoveItem drops the item if present and reports whether it was.
	RemoveItem(ctx context.Context, userID, idMeal string) (bool, error)
	// DeleteCart drops the whole cart and reports whether one existed.
	DeleteCart(ctx context.Context, userID string) (bool, error)
	GetCart(ctx context.Context, userID string) (*models.Cart, error)
	Ping(ctx context.Context) error
}
