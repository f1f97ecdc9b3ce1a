package repository

import (
	"context"

	"marketim/internal/domain/model"

	"gorm.io/gorm"
)

// 在庫台帳（追記のみ）
type StockMovementGormRepository struct {
	db *gorm.DB
}

func NewStockMovementGormRepository(db *gorm.DB) *StockMovementGormRepository {
	return &StockMovementGormRepository{db: db}
}

func (r *StockMovementGormRepository) Create(ctx context.Context, m model.StockMovement) (model.StockMovement, error) {
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return model.StockMovement{}, err
	}
	return m, nil
}

func (r *StockMovementGormRepository) ListByProductID(ctx context.Context, productID int64, limit int) ([]model.StockMovement, error) {
	var out []model.StockMovement
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("id desc").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return []model.StockMovement{}, err
	}
	return out, nil
}
