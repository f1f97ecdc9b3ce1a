package memory

import (
	"context"
	"errors"
	"testing"

	"marketim/internal/domain/model"
	repo "marketim/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RollbackOnError(t *testing.T) {
	s := NewStore()
	p := s.PutProduct(model.Product{Name: "A", Price: decimal.NewFromInt(1), Stock: 3})

	boom := errors.New("boom")
	err := s.WithinTx(context.Background(), func(r repo.TxRepos) error {
		require.NoError(t, r.Products().UpdateStock(context.Background(), p.ID, 0))
		_, err := r.Orders().Create(context.Background(), model.Order{Status: model.OrderStatusPreparing})
		require.NoError(t, err)
		return boom
	})

	assert.ErrorIs(t, err, boom)
	got, _ := s.Product(p.ID)
	assert.Equal(t, int64(3), got.Stock)
	assert.Zero(t, s.OrderCount())
}

func TestStore_CommitIsVisible(t *testing.T) {
	s := NewStore()
	p := s.PutProduct(model.Product{Name: "A", Price: decimal.NewFromInt(1), Stock: 3})

	err := s.WithinTx(context.Background(), func(r repo.TxRepos) error {
		return r.Products().UpdateStock(context.Background(), p.ID, 1)
	})

	require.NoError(t, err)
	got, _ := s.Product(p.ID)
	assert.Equal(t, int64(1), got.Stock)
}

func TestStore_Constraints(t *testing.T) {
	s := NewStore()
	p := s.PutProduct(model.Product{Name: "A", Stock: 1})
	key := "k"
	scope := "customer:1"
	otherScope := "customer:2"

	err := s.WithinTx(context.Background(), func(r repo.TxRepos) error {
		assert.Error(t, r.Products().UpdateStock(context.Background(), p.ID, -1))
		assert.ErrorIs(t, r.Products().UpdateStock(context.Background(), 99, 1), repo.ErrNotFound)

		_, err := r.Orders().Create(context.Background(), model.Order{IdempotencyScope: &scope, IdempotencyKey: &key})
		require.NoError(t, err)
		_, err = r.Orders().Create(context.Background(), model.Order{IdempotencyScope: &scope, IdempotencyKey: &key})
		assert.ErrorIs(t, err, repo.ErrConflict)
		_, err = r.Orders().Create(context.Background(), model.Order{IdempotencyScope: &otherScope, IdempotencyKey: &key})
		assert.NoError(t, err)

		found, ok, err := r.Orders().FindByIdempotencyKey(context.Background(), otherScope, key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(2), found.ID)

		_, err = r.OrderItems().CreateBulk(context.Background(), 1, []model.OrderItem{{ProductID: p.ID, Quantity: 0}})
		assert.Error(t, err)
		return nil
	})
	require.NoError(t, err)
}

func TestStore_CanceledContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.WithinTx(ctx, func(repo.TxRepos) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestStore_ListOrdering(t *testing.T) {
	s := NewStore()
	customer := int64(5)

	err := s.WithinTx(context.Background(), func(r repo.TxRepos) error {
		for i := 0; i < 3; i++ {
			if _, err := r.Orders().Create(context.Background(), model.Order{CustomerID: &customer}); err != nil {
				return err
			}
		}
		for _, d := range []int64{1, -1, 2} {
			if _, err := r.StockMovements().Create(context.Background(), model.StockMovement{ProductID: 1, Delta: d}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	_ = s.WithinTx(context.Background(), func(r repo.TxRepos) error {
		orders, err := r.Orders().ListByCustomerID(context.Background(), customer, 2)
		require.NoError(t, err)
		require.Len(t, orders, 2)
		assert.Equal(t, int64(3), orders[0].ID)

		ms, err := r.StockMovements().ListByProductID(context.Background(), 1, 0)
		require.NoError(t, err)
		require.Len(t, ms, 3)
		assert.Equal(t, int64(2), ms[0].Delta)
		return nil
	})
}
