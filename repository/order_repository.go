package repositories

import (
	"context"
	"time"

	"checkout-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StatusChange is one conditional status transition. TimestampColumn, when
// set, is stamped with At alongside updated_at.
type StatusChange struct {
	OrderID         uuid.UUID
	From            string
	To              string
	At              time.Time
	TimestampColumn string
}

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	CreateWithItems(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByUserID(ctx context.Context, userID string, page, limit int) ([]models.Order, int64, error)
	FindAll(ctx context.Context, page, limit int) ([]models.Order, int64, error)
	UpdateStatus(ctx context.Context, change StatusChange) (bool, error)
	UpdateItemQuantities(ctx context.Context, quantities map[uuid.UUID]int) error
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

// GormOrderRepository implements OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new instance of GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: db}
}

// CreateWithItems writes the order, its items and their colors in a single
// transaction. Nothing is left behind when any insert fails.
func (r *GormOrderRepository) CreateWithItems(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(order).Error; err != nil {
			return err
		}
		if len(order.Items) == 0 {
			return nil
		}

		var colors []models.OrderItemColor
		for i := range order.Items {
			item := &order.Items[i]
			item.OrderID = order.ID
			for j := range item.Colors {
				item.Colors[j].OrderItemID = item.ID
				colors = append(colors, item.Colors[j])
			}
		}
		if err := tx.Omit(clause.Associations).Create(&order.Items).Error; err != nil {
			return err
		}
		if len(colors) == 0 {
			return nil
		}
		return tx.Create(&colors).Error
	})
}

// FindByID loads a live order with its items and colors.
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order

	if err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Colors").
		Where("id = ? AND deleted_at IS NULL", id).
		First(&order).Error; err != nil {
		return nil, err
	}

	return &order, nil
}

// FindByUserID retrieves orders for a specific user with pagination
func (r *GormOrderRepository) FindByUserID(ctx context.Context, userID string, page, limit int) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("user_id = ? AND deleted_at IS NULL", userID)

	return r.paginate(query, page, limit)
}

// FindAll retrieves all orders with pagination
func (r *GormOrderRepository) FindAll(ctx context.Context, page, limit int) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("deleted_at IS NULL")

	return r.paginate(query, page, limit)
}

func (r *GormOrderRepository) paginate(query *gorm.DB, page, limit int) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Preload("Items").
		Preload("Items.Colors").
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// UpdateStatus applies change only if the order is still in change.From.
// It reports false when no row matched.
func (r *GormOrderRepository) UpdateStatus(ctx context.Context, change StatusChange) (bool, error) {
	updates := map[string]interface{}{
		"status":     change.To,
		"updated_at": change.At,
	}
	if change.TimestampColumn != "" {
		updates[change.TimestampColumn] = change.At
	}

	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ? AND deleted_at IS NULL", change.OrderID, change.From).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdateItemQuantities overwrites the aggregate quantity of the given items.
func (r *GormOrderRepository) UpdateItemQuantities(ctx context.Context, quantities map[uuid.UUID]int) error {
	if len(quantities) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for id, qty := range quantities {
			if err := tx.Model(&models.OrderItem{}).
				Where("id = ?", id).
				Update("quantities", qty).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// SoftDelete stamps deleted_at on a live order. Items are left in place.
func (r *GormOrderRepository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]interface{}{"deleted_at": at, "updated_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
