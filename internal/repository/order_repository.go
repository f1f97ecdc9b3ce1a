package repository

import (
	"context"

	"marketim/internal/domain/model"
)

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)

	// ステータス更新用に行ロック
	FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error)

	ListByCustomerID(ctx context.Context, customerID int64, limit int) ([]model.Order, error)

	// 同じscopeで冪等キーが重複したらErrConflict
	Create(ctx context.Context, order model.Order) (model.Order, error)

	UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error

	//検索（同じ持ち主・同じキーなら同じ結果を返す）
	FindByIdempotencyKey(ctx context.Context, scope string, key string) (model.Order, bool, error)
}
