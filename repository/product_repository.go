package repositories

import (
	"context"

	"checkout-service/models"

	"gorm.io/gorm"
)

// GormProductRepository reads catalog records from the shared products
// table. The checkout never writes to it.
type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindByIDs returns the products found, keyed by id. Soft-deleted rows are
// returned too so callers can tell them apart.
func (r *GormProductRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*models.Product, error) {
	out := make(map[string]*models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var products []models.Product
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&products).Error; err != nil {
		return nil, err
	}

	for i := range products {
		out[products[i].ID] = &products[i]
	}
	return out, nil
}
