package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Field names owned by the server. Client supplied values under these keys
// are never kept in a LineItem's passthrough details.
const (
	FieldIDMeal   = "idMeal"
	FieldQuantity = "quantity"
	FieldPrice    = "price"
)

// LineItem is one meal entry in a cart.
//
// Details carries whatever descriptive fields the client sent with the item
// (name, thumbnail, category...). They are stored and returned verbatim.
type LineItem struct {
	IDMeal   string                 `bson:"idMeal" validate:"required"`
	Quantity int                    `bson:"quantity"`
	Price    float64                `bson:"price"`
	Details  map[string]interface{} `bson:",inline"`
}

// NewLineItem builds the stored form of a freshly added item: quantity 1 and
// the server's unit price, whatever the request said.
func NewLineItem(idMeal string, details map[string]interface{}, price float64) LineItem {
	return LineItem{
		IDMeal:   idMeal,
		Quantity: 1,
		Price:    price,
		Details:  cleanDetails(details),
	}
}

func cleanDetails(details map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(details))
	for k, v := range details {
		switch k {
		case FieldIDMeal, FieldQuantity, FieldPrice, "_id":
			continue
		}
		out[k] = v
	}
	return out
}

// Clone copies the item with its own Details map.
func (i LineItem) Clone() LineItem {
	details := make(map[string]interface{}, len(i.Details))
	for k, v := range i.Details {
		details[k] = v
	}
	i.Details = details
	return i
}

// MarshalJSON flattens Details next to the server owned fields.
func (i LineItem) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(i.Details)+3)
	for k, v := range i.Details {
		out[k] = v
	}
	out[FieldIDMeal] = i.IDMeal
	out[FieldQuantity] = i.Quantity
	out[FieldPrice] = i.Price
	return json.Marshal(out)
}

// UnmarshalJSON accepts a flat object. idMeal may be a JSON string or number;
// anything else leaves IDMeal empty so validation rejects it.
func (i *LineItem) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("line item must be a JSON object")
	}

	*i = LineItem{}
	switch id := raw[FieldIDMeal].(type) {
	case string:
		i.IDMeal = id
	case json.Number:
		i.IDMeal = id.String()
	}
	if n, ok := raw[FieldQuantity].(json.Number); ok {
		if q, err := n.Int64(); err == nil {
			i.Quantity = int(q)
		}
	}
	if n, ok := raw[FieldPrice].(json.Number); ok {
		if p, err := n.Float64(); err == nil {
			i.Price = p
		}
	}

	details := cleanDetails(raw)
	for k, v := range details {
		details[k] = plainNumbers(v)
	}
	i.Details = details
	return nil
}

// plainNumbers converts json.Number values left by UseNumber back to float64
// so passthrough data round-trips the way encoding/json normally decodes it.
func plainNumbers(v interface{}) interface{} {
	switch t := v.(type) {
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]interface{}:
		for k, inner := range t {
			t[k] = plainNumbers(inner)
		}
		return t
	case []interface{}:
		for idx, inner := range t {
			t[idx] = plainNumbers(inner)
		}
		return t
	default:
		return v
	}
}

// Cart is the per-user document. Items are unique by IDMeal.
type Cart struct {
	UserID    string     `bson:"userId" json:"userId"`
	Items     []LineItem `bson:"items" json:"items"`
	CreatedAt time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// FindItem returns the index of the item with the given meal id, or -1.
func (c *Cart) FindItem(idMeal string) int {
	for idx := range c.Items {
		if c.Items[idx].IDMeal == idMeal {
			return idx
		}
	}
	return -1
}

// Clone returns a deep copy, detaching Items and Details from the receiver.
func (c *Cart) Clone() *Cart {
	out := *c
	out.Items = make([]LineItem, len(c.Items))
	for idx, item := range c.Items {
		out.Items[idx] = item.Clone()
	}
	return &out
}

// Totals is the derived money view of a cart.
type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// CartView is what a cart read returns: the raw items plus their totals.
type CartView struct {
	Items []LineItem `json:"items"`
	Totals
}
