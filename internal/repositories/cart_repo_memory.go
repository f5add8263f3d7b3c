package repositories

import (
	"context"
	"sync"
	"time"

	"mealcart/internal/models"
)

// MemoryCartRepository is an in-memory implementation of CartRepository.
type MemoryCartRepository struct {
	carts map[string]*models.Cart
	mu    sync.RWMutex
	now   func() time.Time
}

// NewMemoryCartRepository creates a new instance of MemoryCartRepository.
func NewMemoryCartRepository() *MemoryCartRepository {
	return &MemoryCartRepository{
		carts: make(map[string]*models.Cart),
		now:   time.Now,
	}
}

// AddItem appends the item to the user's cart, creating the cart if needed.
func (r *MemoryCartRepository) AddItem(ctx context.Context, userID string, item models.LineItem) (models.AddOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cart, ok := r.carts[userID]
	if !ok {
		r.carts[userID] = &models.Cart{
			UserID:    userID,
			Items:     []models.LineItem{item.Clone()},
			CreatedAt: now,
			UpdatedAt: now,
		}
		return models.AddOutcomeCreated, nil
	}
	if cart.FindItem(item.IDMeal) >= 0 {
		return models.AddOutcomeUnchanged, nil
	}
	cart.Items = append(cart.Items, item.Clone())
	cart.UpdatedAt = now
	return models.AddOutcomeAdded, nil
}

// AdjustQuantity changes an item's quantity by delta.
func (r *MemoryCartRepository) AdjustQuantity(ctx context.Context, userID, idMeal string, delta int) (models.AdjustResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cart, ok := r.carts[userID]
	if !ok {
		return models.AdjustResult{}, ErrItemNotFound
	}
	idx := cart.FindItem(idMeal)
	if idx < 0 {
		return models.AdjustResult{}, ErrItemNotFound
	}

	newQuantity := models.ApplyDelta(cart.Items[idx].Quantity, delta)
	cart.UpdatedAt = r.now()
	if newQuantity <= 0 {
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
		return models.AdjustResult{Outcome: models.AdjustOutcomeRemoved, Quantity: newQuantity}, nil
	}
	cart.Items[idx].Quantity = newQuantity
	return models.AdjustResult{Outcome: models.AdjustOutcomeUpdated, Quantity: newQuantity}, nil
}

// RemoveItem removes an item from the user's cart if present.
func (r *MemoryCartRepository) RemoveItem(ctx context.Context, userID, idMeal string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cart, ok := r.carts[userID]
	if !ok {
		return false, nil
	}
	idx := cart.FindItem(idMeal)
	if idx < 0 {
		return false, nil
	}
	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	cart.UpdatedAt = r.now()
	return true, nil
}

// DeleteCart removes the user's cart.
func (r *MemoryCartRepository) DeleteCart(ctx context.Context, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.carts[userID]
	delete(r.carts, userID)
	return ok, nil
}

// GetCart returns a copy of the user's cart.
func (r *MemoryCartRepository) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cart, ok := r.carts[userID]
	if !ok {
		return nil, ErrCartNotFound
	}
	return cart.Clone(), nil
}

// Ping always succeeds.
func (r *MemoryCartRepository) Ping(ctx context.Context) error {
	return nil
}
