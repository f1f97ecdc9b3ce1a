package usecase_test

import (
	"context"
	"errors"
	"testing"

	"marketim/internal/domain/model"
	"marketim/internal/infra/memory"
	repo "marketim/internal/repository"
	"marketim/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func int64Ptr(v int64) *int64 { return &v }

// 商品を1件登録（在庫は直接入れる）
func seedProduct(t *testing.T, store *memory.Store, name string, price string, stock int64) model.Product {
	t.Helper()
	return store.PutProduct(model.Product{
		Name:     name,
		Price:    dec(price),
		Stock:    stock,
		IsActive: true,
	})
}

func stockOf(t *testing.T, store *memory.Store, productID int64) int64 {
	t.Helper()
	p, ok := store.Product(productID)
	require.True(t, ok, "product %d not found", productID)
	return p.Stock
}

func movementsOf(store *memory.Store, productID int64) []model.StockMovement {
	var out []model.StockMovement
	for _, m := range store.Movements() {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out
}

func guestInput(items ...usecase.PlaceOrderItem) usecase.PlaceOrderInput {
	return usecase.PlaceOrderInput{
		Items:           items,
		DeliveryAddress: "1-2-3 Shibuya",
		ContactPhone:    "090-0000-0000",
		PaymentMethod:   "CASH",
		GuestName:       "Guest",
		GuestEmail:      "guest@example.com",
	}
}

func customerInput(customerID int64, items ...usecase.PlaceOrderItem) usecase.PlaceOrderInput {
	return usecase.PlaceOrderInput{
		CustomerID:      int64Ptr(customerID),
		Items:           items,
		DeliveryAddress: "1-2-3 Shibuya",
		ContactPhone:    "090-0000-0000",
		PaymentMethod:   "CARD",
	}
}

// =====================
// 明細保存だけ失敗させるTx（rollback確認用）
// =====================

var errDiskFull = errors.New("disk full")

type failingItemsTx struct {
	inner repo.TransactionManager
}

func (f failingItemsTx) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return f.inner.WithinTx(ctx, func(r repo.TxRepos) error {
		return fn(failingItemsRepos{TxRepos: r})
	})
}

type failingItemsRepos struct {
	repo.TxRepos
}

func (failingItemsRepos) OrderItems() repo.OrderItemRepository { return failingOrderItems{} }

type failingOrderItems struct{}

func (failingOrderItems) CreateBulk(context.Context, int64, []model.OrderItem) ([]model.OrderItem, error) {
	return nil, errDiskFull
}

func (failingOrderItems) ListByOrderID(context.Context, int64) ([]model.OrderItem, error) {
	return []model.OrderItem{}, nil
}

// =====================
// 設定（key/value）のfake
// =====================

type settingsMap struct {
	values map[string]string
	err    error
}

func (s settingsMap) Get(_ context.Context, key string) (string, bool, error) {
	if s.err != nil {
		return "", false, s.err
	}
	v, ok := s.values[key]
	return v, ok, nil
}
