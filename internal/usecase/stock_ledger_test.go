package usecase_test

import (
	"context"
	"errors"
	"testing"

	"marketim/internal/domain/model"
	"marketim/internal/infra/memory"
	repo "marketim/internal/repository"
	"marketim/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockLedger_DecrementWritesMovement(t *testing.T) {
	store := memory.NewStore()
	p := seedProduct(t, store, "Apple", "1.00", 5)
	ledger := usecase.NewStockLedger(nil)

	var change usecase.StockChange
	err := store.WithinTx(context.Background(), func(r repo.TxRepos) error {
		var err error
		change, err = ledger.Decrement(context.Background(), r, usecase.DecrementCommand{ProductID: p.ID, Quantity: 2})
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, int64(5), change.Before)
	assert.Equal(t, int64(3), change.After)
	assert.Equal(t, int64(3), stockOf(t, store, p.ID))

	ms := movementsOf(store, p.ID)
	require.Len(t, ms, 1)
	assert.Equal(t, model.StockMovementSale, ms[0].Type)
	assert.Equal(t, int64(-2), ms[0].Delta)
	assert.Equal(t, ms[0].BeforeStock+ms[0].Delta, ms[0].AfterStock)
	assert.Equal(t, usecase.ActorSystem, ms[0].Actor)
}

func TestStockLedger_DecrementInsufficientWritesNothing(t *testing.T) {
	store := memory.NewStore()
	p := seedProduct(t, store, "Apple", "1.00", 1)
	ledger := usecase.NewStockLedger(nil)

	err := store.WithinTx(context.Background(), func(r repo.TxRepos) error {
		_, err := ledger.Decrement(context.Background(), r, usecase.DecrementCommand{ProductID: p.ID, Quantity: 2})
		return err
	})

	var insufficient *usecase.InsufficientStockError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, p.ID, insufficient.ProductID)
	assert.Equal(t, int64(2), insufficient.Requested)
	assert.Equal(t, int64(1), insufficient.Available)
	assert.Equal(t, int64(1), stockOf(t, store, p.ID))
	assert.Empty(t, store.Movements())
}

func TestStockLedger_UnknownProduct(t *testing.T) {
	store := memory.NewStore()
	ledger := usecase.NewStockLedger(nil)

	err := store.WithinTx(context.Background(), func(r repo.TxRepos) error {
		_, err := ledger.Increment(context.Background(), r, usecase.IncrementCommand{
			ProductID: 404,
			Quantity:  1,
			Type:      model.StockMovementRestock,
		})
		return err
	})

	var nf *usecase.ProductNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, int64(404), nf.ProductID)
}

func TestStockLedger_IncrementRejectsSaleType(t *testing.T) {
	store := memory.NewStore()
	p := seedProduct(t, store, "Apple", "1.00", 1)
	ledger := usecase.NewStockLedger(nil)

	err := store.WithinTx(context.Background(), func(r repo.TxRepos) error {
		_, err := ledger.Increment(context.Background(), r, usecase.IncrementCommand{
			ProductID: p.ID,
			Quantity:  1,
			Type:      model.StockMovementSale,
		})
		return err
	})

	require.Error(t, err)
	assert.Equal(t, int64(1), stockOf(t, store, p.ID))
}

func TestStockLedger_Adjust(t *testing.T) {
	store := memory.NewStore()
	p := seedProduct(t, store, "Apple", "1.00", 7)
	ledger := usecase.NewStockLedger(nil)

	adjust := func(newStock int64) (usecase.StockChange, error) {
		var change usecase.StockChange
		err := store.WithinTx(context.Background(), func(r repo.TxRepos) error {
			var err error
			change, err = ledger.Adjust(context.Background(), r, p.ID, newStock, "admin:1", " recount ")
			return err
		})
		return change, err
	}

	change, err := adjust(4)
	require.NoError(t, err)
	assert.Equal(t, int64(-3), change.Movement.Delta)
	assert.Equal(t, model.StockMovementAdjustment, change.Movement.Type)
	assert.Equal(t, "recount", change.Movement.Note)
	assert.Equal(t, "admin:1", change.Movement.Actor)

	//同じ値なら何も書かない
	_, err = adjust(4)
	require.NoError(t, err)
	assert.Len(t, movementsOf(store, p.ID), 1)

	_, err = adjust(-1)
	require.Error(t, err)
	assert.Equal(t, int64(4), stockOf(t, store, p.ID))
}
