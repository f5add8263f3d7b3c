package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mealcart/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	redisCartPrefix = "cart:"
	// redisMaxRetries bounds how often a mutation is replayed after losing a
	// WATCH race.
	redisMaxRetries = 100
)

// RedisCartRepository keeps each cart as a JSON value under cart:<userId>.
// Mutations run inside WATCH/MULTI. A concurrent write to the same cart
// aborts the transaction, which is then replayed against the fresh value.
type RedisCartRepository struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisCartRepository creates a new instance of RedisCartRepository.
// A zero ttl keeps carts forever.
func NewRedisCartRepository(client *redis.Client, ttl time.Duration) *RedisCartRepository {
	return &RedisCartRepository{
		client: client,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *RedisCartRepository) key(userID string) string {
	return redisCartPrefix + userID
}

// mutate loads the cart under WATCH, applies fn and writes it back when fn
// reports a change. exists is false when no cart was stored. fn may run more
// than once and must derive its results from the cart it is given.
func (r *RedisCartRepository) mutate(ctx context.Context, userID string, fn func(cart *models.Cart, exists bool) (bool, error)) error {
	key := r.key(userID)
	txf := func(tx *redis.Tx) error {
		cart := models.Cart{UserID: userID}
		exists := true
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			exists = false
		case err != nil:
			return err
		default:
			if err := json.Unmarshal(data, &cart); err != nil {
				return fmt.Errorf("failed to decode cart: %w", err)
			}
		}

		changed, err := fn(&cart, exists)
		if err != nil || !changed {
			return err
		}

		payload, err := json.Marshal(cart)
		if err != nil {
			return fmt.Errorf("failed to encode cart: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, r.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < redisMaxRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("cart of %s kept changing: %w", userID, redis.TxFailedErr)
}

// AddItem appends the item unless the meal is already present.
func (r *RedisCartRepository) AddItem(ctx context.Context, userID string, item models.LineItem) (models.AddOutcome, error) {
	outcome := models.AddOutcomeUnchanged
	err := r.mutate(ctx, userID, func(cart *models.Cart, exists bool) (bool, error) {
		now := r.now()
		if !exists {
			cart.CreatedAt = now
			outcome = models.AddOutcomeCreated
		} else if cart.FindItem(item.IDMeal) >= 0 {
			outcome = models.AddOutcomeUnchanged
			return false, nil
		} else {
			outcome = models.AddOutcomeAdded
		}
		cart.Items = append(cart.Items, item)
		cart.UpdatedAt = now
		return true, nil
	})
	if err != nil {
		return models.AddOutcomeUnchanged, fmt.Errorf("failed to add item %s to cart of %s: %w", item.IDMeal, userID, err)
	}
	return outcome, nil
}

// AdjustQuantity changes the item's quantity by delta, dropping it at zero.
func (r *RedisCartRepository) AdjustQuantity(ctx context.Context, userID, idMeal string, delta int) (models.AdjustResult, error) {
	var result models.AdjustResult
	err := r.mutate(ctx, userID, func(cart *models.Cart, exists bool) (bool, error) {
		idx := cart.FindItem(idMeal)
		if !exists || idx < 0 {
			return false, ErrItemNotFound
		}
		result.Quantity = models.ApplyDelta(cart.Items[idx].Quantity, delta)
		if result.Quantity <= 0 {
			cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
			result.Outcome = models.AdjustOutcomeRemoved
		} else {
			cart.Items[idx].Quantity = result.Quantity
			result.Outcome = models.AdjustOutcomeUpdated
		}
		cart.UpdatedAt = r.now()
		return true, nil
	})
	if errors.Is(err, ErrItemNotFound) {
		return models.AdjustResult{}, ErrItemNotFound
	}
	if err != nil {
		return models.AdjustResult{}, fmt.Errorf("failed to adjust item %s in cart of %s: %w", idMeal, userID, err)
	}
	return result, nil
}

// RemoveItem drops the item if it is in the cart.
func (r *RedisCartRepository) RemoveItem(ctx context.Context, userID, idMeal string) (bool, error) {
	removed := false
	err := r.mutate(ctx, userID, func(cart *models.Cart, exists bool) (bool, error) {
		removed = false
		idx := cart.FindItem(idMeal)
		if !exists || idx < 0 {
			return false, nil
		}
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
		cart.UpdatedAt = r.now()
		removed = true
		return true, nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to remove item %s from cart of %s: %w", idMeal, userID, err)
	}
	return removed, nil
}

// DeleteCart deletes the cart key.
func (r *RedisCartRepository) DeleteCart(ctx context.Context, userID string) (bool, error) {
	n, err := r.client.Del(ctx, r.key(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete cart of %s: %w", userID, err)
	}
	return n > 0, nil
}

// GetCart reads and decodes the cart key.
func (r *RedisCartRepository) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	data, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart of %s: %w", userID, err)
	}
	var cart models.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("failed to decode cart of %s: %w", userID, err)
	}
	return &cart, nil
}

// Ping checks the redis connection.
func (r *RedisCartRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
