package repository

import (
	"context"
	"errors"

	"marketim/internal/domain/model"
)

var (
	ErrNotFound = errors.New("not found")
	// 一意制約違反など（同じ冪等キーの同時注文）
	ErrConflict = errors.New("conflict")
)

// 商品の取得と在庫列の書き込み。
// UpdateStockはStockLedgerからだけ呼ぶ。
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (model.Product, error)

	// トランザクション終了まで行ロック（SELECT ... FOR UPDATE）
	FindByIDForUpdate(ctx context.Context, id int64) (model.Product, error)

	UpdateStock(ctx context.Context, id int64, newStock int64) error

	Create(ctx context.Context, p model.Product) (model.Product, error)
}
