package usecase_test

import (
	"context"
	"net/http"
	"testing"

	"marketim/internal/domain/model"
	"marketim/internal/infra/memory"
	"marketim/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminCreateProduct_InitialStockGoesThroughLedger(t *testing.T) {
	store := memory.NewStore()
	uc := usecase.NewProductUsecase(store, nil, nil)

	p, err := uc.AdminCreateProduct(context.Background(), 1, usecase.AdminCreateProductInput{
		Name:     "  Apple ",
		Price:    dec("1.999"),
		Stock:    8,
		IsActive: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "Apple", p.Name)
	assert.Equal(t, "2.00", p.Price.StringFixed(2))
	assert.Equal(t, int64(8), stockOf(t, store, p.ID))

	ms := movementsOf(store, p.ID)
	require.Len(t, ms, 1)
	assert.Equal(t, model.StockMovementAdjustment, ms[0].Type)
	assert.Equal(t, int64(8), ms[0].Delta)
	assert.Equal(t, "admin:1", ms[0].Actor)

	logs := store.AuditLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, model.AuditActionCreateProduct, logs[0].Action)
}

func TestAdminCreateProduct_ZeroStockWritesNoMovement(t *testing.T) {
	store := memory.NewStore()
	uc := usecase.NewProductUsecase(store, nil, nil)

	p, err := uc.AdminCreateProduct(context.Background(), 1, usecase.AdminCreateProductInput{Name: "Salt", Price: dec("0.50")})
	require.NoError(t, err)

	assert.Empty(t, movementsOf(store, p.ID))
}

func TestAdminCreateProduct_Validation(t *testing.T) {
	uc := usecase.NewProductUsecase(memory.NewStore(), nil, nil)
	ctx := context.Background()

	_, err := uc.AdminCreateProduct(ctx, 0, usecase.AdminCreateProductInput{Name: "x"})
	assertHTTPStatus(t, err, http.StatusUnauthorized)

	_, err = uc.AdminCreateProduct(ctx, 1, usecase.AdminCreateProductInput{Name: " "})
	assertHTTPStatus(t, err, http.StatusBadRequest)

	_, err = uc.AdminCreateProduct(ctx, 1, usecase.AdminCreateProductInput{Name: "x", Price: dec("-0.01")})
	assertHTTPStatus(t, err, http.StatusBadRequest)

	_, err = uc.AdminCreateProduct(ctx, 1, usecase.AdminCreateProductInput{Name: "x", Stock: -1})
	assertHTTPStatus(t, err, http.StatusBadRequest)
}

func TestGetProduct(t *testing.T) {
	store := memory.NewStore()
	visible := seedProduct(t, store, "Tea", "3.00", 1)
	hidden := store.PutProduct(model.Product{Name: "Old", Price: dec("1"), IsActive: false})
	uc := usecase.NewProductUsecase(store, nil, nil)

	got, err := uc.GetProduct(context.Background(), visible.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tea", got.Name)

	_, err = uc.GetProduct(context.Background(), hidden.ID)
	assertHTTPStatus(t, err, http.StatusNotFound)

	_, err = uc.GetProduct(context.Background(), 999)
	assertHTTPStatus(t, err, http.StatusNotFound)

	_, err = uc.GetProduct(context.Background(), 0)
	assertHTTPStatus(t, err, http.StatusBadRequest)
}
