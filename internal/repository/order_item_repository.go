package repository

import (
	"context"

	"marketim/internal/domain/model"
)

// 注文明細。注文作成時にまとめて書き、以後は読むだけ。
type OrderItemRepository interface {
	// 採番済みの明細を返す（unit_price/line_totalはスナップショット）
	CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) ([]model.OrderItem, error)

	// id順
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)
}
