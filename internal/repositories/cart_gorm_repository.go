package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mealcart/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartRecord is the relational row for a cart.
type CartRecord struct {
	UserID    string           `gorm:"primaryKey;type:varchar(191)"`
	Items     []CartItemRecord `gorm:"foreignKey:UserID;references:UserID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the GORM default.
func (CartRecord) TableName() string { return "carts" }

// CartItemRecord is one line of a cart. The autoincrement ID keeps
// insertion order; (user_id, id_meal) is unique.
type CartItemRecord struct {
	ID       uint    `gorm:"primaryKey;autoIncrement"`
	UserID   string  `gorm:"type:varchar(191);not null;uniqueIndex:idx_cart_items_user_meal"`
	IDMeal   string  `gorm:"column:id_meal;type:varchar(191);not null;uniqueIndex:idx_cart_items_user_meal"`
	Quantity int     `gorm:"not null"`
	Price    float64 `gorm:"not null"`
	Details  string  `gorm:"type:text"`
}

// TableName overrides the GORM default.
func (CartItemRecord) TableName() string { return "cart_items" }

// GORMCartRepository is a GORM implementation of CartRepository.
type GORMCartRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGORMCartRepository creates a new instance of GORMCartRepository.
func NewGORMCartRepository(db *gorm.DB) *GORMCartRepository {
	return &GORMCartRepository{
		db:  db,
		now: time.Now,
	}
}

// Migrate creates or updates the cart tables.
func (r *GORMCartRepository) Migrate() error {
	if err := r.db.AutoMigrate(&CartRecord{}, &CartItemRecord{}); err != nil {
		return fmt.Errorf("failed to migrate cart tables: %w", err)
	}
	return nil
}

// AddItem inserts the cart row and the item row, each with ON CONFLICT DO NOTHING,
// inside one transaction.
func (r *GORMCartRepository) AddItem(ctx context.Context, userID string, item models.LineItem) (models.AddOutcome, error) {
	details, err := json.Marshal(item.Details)
	if err != nil {
		return models.AddOutcomeUnchanged, fmt.Errorf("failed to encode item details: %w", err)
	}

	outcome := models.AddOutcomeUnchanged
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := r.now()
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&CartRecord{
			UserID:    userID,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if res.Error != nil {
			return res.Error
		}
		created := res.RowsAffected > 0

		res = tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&CartItemRecord{
			UserID:   userID,
			IDMeal:   item.IDMeal,
			Quantity: item.Quantity,
			Price:    item.Price,
			Details:  string(details),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if created {
			outcome = models.AddOutcomeCreated
			return nil
		}
		outcome = models.AddOutcomeAdded
		return r.touch(tx, userID, now)
	})
	if err != nil {
		return models.AddOutcomeUnchanged, fmt.Errorf("failed to add item %s to cart of %s: %w", item.IDMeal, userID, err)
	}
	return outcome, nil
}

// AdjustQuantity increments the quantity in place and deletes the row if it
// dropped to zero or below. The row lock taken by the UPDATE is held until
// commit, so no other transaction sees the intermediate value. Increases
// saturate at models.MaxQuantity.
func (r *GORMCartRepository) AdjustQuantity(ctx context.Context, userID, idMeal string, delta int) (models.AdjustResult, error) {
	delta = models.ClampDelta(delta)
	var result models.AdjustResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&CartItemRecord{}).
			Where("user_id = ? AND id_meal = ?", userID, idMeal).
			Update("quantity", gorm.Expr("CASE WHEN quantity + ? > ? THEN ? ELSE quantity + ? END",
				delta, models.MaxQuantity, models.MaxQuantity, delta))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrItemNotFound
		}

		var line CartItemRecord
		if err := tx.Where("user_id = ? AND id_meal = ?", userID, idMeal).First(&line).Error; err != nil {
			return err
		}
		result.Quantity = line.Quantity
		if line.Quantity <= 0 {
			if err := tx.Delete(&line).Error; err != nil {
				return err
			}
			result.Outcome = models.AdjustOutcomeRemoved
		} else {
			result.Outcome = models.AdjustOutcomeUpdated
		}
		return r.touch(tx, userID, r.now())
	})
	if errors.Is(err, ErrItemNotFound) {
		return models.AdjustResult{}, ErrItemNotFound
	}
	if err != nil {
		return models.AdjustResult{}, fmt.Errorf("failed to adjust item %s in cart of %s: %w", idMeal, userID, err)
	}
	return result, nil
}

// RemoveItem deletes the item row if present.
func (r *GORMCartRepository) RemoveItem(ctx context.Context, userID, idMeal string) (bool, error) {
	removed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND id_meal = ?", userID, idMeal).Delete(&CartItemRecord{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		removed = true
		return r.touch(tx, userID, r.now())
	})
	if err != nil {
		return false, fmt.Errorf("failed to remove item %s from cart of %s: %w", idMeal, userID, err)
	}
	return removed, nil
}

// DeleteCart deletes the cart row and all of its items.
func (r *GORMCartRepository) DeleteCart(ctx context.Context, userID string) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&CartItemRecord{}).Error; err != nil {
			return err
		}
		res := tx.Where("user_id = ?", userID).Delete(&CartRecord{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete cart of %s: %w", userID, err)
	}
	return deleted, nil
}

// GetCart loads the cart with its items in insertion order.
func (r *GORMCartRepository) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	var record CartRecord
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&record, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart of %s: %w", userID, err)
	}

	cart := &models.Cart{
		UserID:    record.UserID,
		Items:     make([]models.LineItem, 0, len(record.Items)),
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
	for _, line := range record.Items {
		details := map[string]interface{}{}
		if line.Details != "" {
			if err := json.Unmarshal([]byte(line.Details), &details); err != nil {
				return nil, fmt.Errorf("failed to decode details of item %s: %w", line.IDMeal, err)
			}
		}
		cart.Items = append(cart.Items, models.LineItem{
			IDMeal:   line.IDMeal,
			Quantity: line.Quantity,
			Price:    line.Price,
			Details:  details,
		})
	}
	return cart, nil
}

// Ping checks the underlying SQL connection.
func (r *GORMCartRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql handle: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (r *GORMCartRepository) touch(tx *gorm.DB, userID string, now time.Time) error {
	return tx.Model(&CartRecord{}).Where("user_id = ?", userID).Update("updated_at", now).Error
}
