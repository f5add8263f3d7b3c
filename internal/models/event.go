package models

import (
	"time"

	"github.com/google/uuid"
)

// Cart event types published after successful mutations.
const (
	EventCartCreated = "cart.created"
	EventItemAdded   = "cart.item_added"
	EventItemUpdated = "cart.item_updated"
	EventItemRemoved = "cart.item_removed"
	EventCartCleared = "cart.cleared"
)

// CartEvent is the message sent to the cart events queue.
type CartEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	UserID     string    `json:"userId"`
	IDMeal     string    `json:"idMeal,omitempty"`
	Quantity   int       `json:"quantity,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewCartEvent stamps a new event with a random id and the current time.
func NewCartEvent(eventType, userID, idMeal string, quantity int) CartEvent {
	return CartEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		UserID:     userID,
		IDMeal:     idMeal,
		Quantity:   quantity,
		OccurredAt: time.Now().UTC(),
	}
}
