package repository

import (
	"context"

	"marketim/internal/domain/model"
)

// 在庫台帳。追記と参照だけで、更新・削除はない。
type StockMovementRepository interface {
	Create(ctx context.Context, m model.StockMovement) (model.StockMovement, error)

	// 新しい順
	ListByProductID(ctx context.Context, productID int64, limit int) ([]model.StockMovement, error)
}
