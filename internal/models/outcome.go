package models

import "math"

// AddOutcome reports what an add-item call did to the stored cart.
type AddOutcome int

const (
	// AddOutcomeUnchanged means the meal was already in the cart.
	AddOutcomeUnchanged AddOutcome = iota
	// AddOutcomeCreated means the cart did not exist and was created with the item.
	AddOutcomeCreated
	// AddOutcomeAdded means the item was appended to an existing cart.
	AddOutcomeAdded
)

func (o AddOutcome) String() string {
	switch o {
	case AddOutcomeCreated:
		return "created"
	case AddOutcomeAdded:
		return "added"
	default:
		return "unchanged"
	}
}

// AdjustOutcome reports whether a quantity change kept or dropped the item.
type AdjustOutcome int

const (
	AdjustOutcomeUpdated AdjustOutcome = iota
	AdjustOutcomeRemoved
)

func (o AdjustOutcome) String() string {
	if o == AdjustOutcomeRemoved {
		return "removed"
	}
	return "updated"
}

// AdjustResult is the outcome of a quantity change along with the quantity
// the item would have after it (zero or negative when removed).
type AdjustResult struct {
	Outcome  AdjustOutcome
	Quantity int
}

// MaxQuantity is the largest quantity a line item holds. Increases past it
// saturate.
const MaxQuantity = math.MaxInt32

// ClampDelta bounds a quantity change to [-MaxQuantity, MaxQuantity]. Stored
// quantities are within [1, MaxQuantity], so a change outside that range has
// the same effect as its clamped value.
func ClampDelta(delta int) int {
	switch {
	case delta > MaxQuantity:
		return MaxQuantity
	case delta < -MaxQuantity:
		return -MaxQuantity
	}
	return delta
}

// ApplyDelta returns quantity+delta, capped at MaxQuantity.
func ApplyDelta(quantity, delta int) int {
	next := int64(quantity) + int64(ClampDelta(delta))
	if next > MaxQuantity {
		return MaxQuantity
	}
	return int(next)
}
