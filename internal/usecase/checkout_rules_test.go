package usecase_test

import (
	"context"
	"errors"
	"math"
	"net/http"
	"testing"
	"time"

	"marketim/internal/domain/model"
	"marketim/internal/infra/memory"
	repo "marketim/internal/repository"
	"marketim/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clockAt(hhmm string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", "2026-10-15 "+hhmm)
	if err != nil {
		panic(err)
	}
	return t
}

func hours(start, end string) usecase.WorkingHours {
	s, _ := time.Parse("15:04", start)
	e, _ := time.Parse("15:04", end)
	return usecase.WorkingHours{
		Enabled: true,
		Start:   time.Duration(s.Hour())*time.Hour + time.Duration(s.Minute())*time.Minute,
		End:     time.Duration(e.Hour())*time.Hour + time.Duration(e.Minute())*time.Minute,
	}
}

func TestWorkingHours_Open(t *testing.T) {
	cases := []struct {
		name string
		w    usecase.WorkingHours
		now  string
		want bool
	}{
		{"disabled", usecase.WorkingHours{}, "03:00", true},
		{"same start and end is all day", hours("10:00", "10:00"), "03:00", true},
		{"day window inside", hours("09:00", "22:00"), "12:00", true},
		{"day window start inclusive", hours("09:00", "22:00"), "09:00", true},
		{"day window end inclusive", hours("09:00", "22:00"), "22:00", true},
		{"day window before", hours("09:00", "22:00"), "08:59", false},
		{"day window after", hours("09:00", "22:00"), "22:01", false},
		{"overnight late evening", hours("22:00", "02:00"), "23:30", true},
		{"overnight after midnight", hours("22:00", "02:00"), "01:15", true},
		{"overnight end inclusive", hours("22:00", "02:00"), "02:00", true},
		{"overnight closed midday", hours("22:00", "02:00"), "12:00", false},
		{"overnight just before open", hours("22:00", "02:00"), "21:59", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.w.Open(clockAt(tc.now)))
		})
	}
}

func TestSettingsAccessor_LoadWorkingHours(t *testing.T) {
	got, err := usecase.SettingsAccessor{}.Load(context.Background(), settingsMap{values: map[string]string{
		"WORKING_HOURS_ENABLED": "true",
		"WORKING_HOURS_START":   "22:00",
		"WORKING_HOURS_END":     "02:30:00",
		"ORDER_CLOSED_MESSAGE":  "closed for tonight",
	}})
	require.NoError(t, err)

	assert.True(t, got.WorkingHours.Enabled)
	assert.Equal(t, 22*time.Hour, got.WorkingHours.Start)
	assert.Equal(t, 2*time.Hour+30*time.Minute, got.WorkingHours.End)
	assert.Equal(t, "closed for tonight", got.WorkingHours.ClosedMessage)
	assert.True(t, got.PaymentOnDelivery)

	got, err = usecase.SettingsAccessor{}.Load(context.Background(), settingsMap{values: map[string]string{
		"WORKING_HOURS_START":         "soon",
		"PAYMENT_ON_DELIVERY_ENABLED": "false",
	}})
	require.NoError(t, err)

	assert.False(t, got.WorkingHours.Enabled)
	assert.Equal(t, 9*time.Hour, got.WorkingHours.Start)
	assert.Equal(t, 22*time.Hour, got.WorkingHours.End)
	assert.NotEmpty(t, got.WorkingHours.ClosedMessage)
	assert.False(t, got.PaymentOnDelivery)
}

func TestPlaceOrder_WorkingHoursGate(t *testing.T) {
	store := memory.NewStore()
	store.PutSetting(usecase.SettingWorkingHoursEnabled, "true")
	store.PutSetting(usecase.SettingWorkingHoursStart, "22:00")
	store.PutSetting(usecase.SettingWorkingHoursEnd, "02:00")
	store.PutSetting(usecase.SettingOrderClosedMessage, "kitchen closed")
	p := seedProduct(t, store, "A", "1.00", 10)
	item := usecase.PlaceOrderItem{ProductID: p.ID, Quantity: 1}

	closed := usecase.NewOrderUsecase(store, nil, nil).WithClock(func() time.Time { return clockAt("12:00") })
	_, err := closed.PlaceOrder(context.Background(), guestInput(item))
	assertHTTPStatus(t, err, http.StatusBadRequest)
	he, _ := usecase.AsHTTPError(err)
	assert.Equal(t, "kitchen closed", he.Message)
	assert.Zero(t, store.OrderCount())
	assert.Equal(t, int64(10), stockOf(t, store, p.ID))

	open := usecase.NewOrderUsecase(store, nil, nil).WithClock(func() time.Time { return clockAt("01:00") })
	_, err = open.PlaceOrder(context.Background(), guestInput(item))
	require.NoError(t, err)
	assert.Equal(t, 1, store.OrderCount())
}

func TestPlaceOrder_PaymentOnDeliveryDisabled(t *testing.T) {
	store := memory.NewStore()
	store.PutSetting(usecase.SettingPaymentOnDelivery, "false")
	p := seedProduct(t, store, "A", "1.00", 10)
	uc := usecase.NewOrderUsecase(store, nil, nil)

	_, err := uc.PlaceOrder(context.Background(), guestInput(usecase.PlaceOrderItem{ProductID: p.ID, Quantity: 1}))

	assertHTTPStatus(t, err, http.StatusBadRequest)
	he, _ := usecase.AsHTTPError(err)
	assert.Equal(t, "payment on delivery is disabled", he.Message)
	assert.Zero(t, store.OrderCount())
}

func TestPlaceOrder_InactiveCategory(t *testing.T) {
	store := memory.NewStore()
	hidden := store.PutCategory(model.Category{Name: "Seasonal", IsActive: false})
	shown := store.PutCategory(model.Category{Name: "Dairy", IsActive: true})
	blocked := store.PutProduct(model.Product{Name: "Pumpkin", Price: dec("2.00"), Stock: 5, IsActive: true, CategoryID: &hidden.ID})
	ok := store.PutProduct(model.Product{Name: "Milk", Price: dec("1.00"), Stock: 5, IsActive: true, CategoryID: &shown.ID})
	uc := usecase.NewOrderUsecase(store, nil, nil)

	_, err := uc.PlaceOrder(context.Background(), guestInput(
		usecase.PlaceOrderItem{ProductID: ok.ID, Quantity: 1},
		usecase.PlaceOrderItem{ProductID: blocked.ID, Quantity: 1},
	))

	var ci *usecase.CategoryInactiveError
	require.ErrorAs(t, err, &ci)
	assert.Equal(t, blocked.ID, ci.ProductID)
	assert.Equal(t, hidden.ID, ci.CategoryID)
	assertHTTPStatus(t, err, http.StatusBadRequest)
	assert.Zero(t, store.OrderCount())
	assert.Equal(t, int64(5), stockOf(t, store, ok.ID))

	_, err = uc.PlaceOrder(context.Background(), guestInput(usecase.PlaceOrderItem{ProductID: ok.ID, Quantity: 1}))
	require.NoError(t, err)
}

func TestPlaceOrder_MergedQuantityOverflow(t *testing.T) {
	store := memory.NewStore()
	p := seedProduct(t, store, "A", "1.00", 10)
	uc := usecase.NewOrderUsecase(store, nil, nil)

	_, err := uc.PlaceOrder(context.Background(), guestInput(
		usecase.PlaceOrderItem{ProductID: p.ID, Quantity: math.MaxInt64},
		usecase.PlaceOrderItem{ProductID: p.ID, Quantity: 2},
	))

	assertHTTPStatus(t, err, http.StatusBadRequest)
	he, _ := usecase.AsHTTPError(err)
	assert.Equal(t, "quantity too large", he.Message)
	assert.Zero(t, store.OrderCount())
	assert.Equal(t, int64(10), stockOf(t, store, p.ID))
}

func TestStockLedger_IncrementOverflow(t *testing.T) {
	store := memory.NewStore()
	p := seedProduct(t, store, "A", "1.00", math.MaxInt64-1)
	ledger := usecase.NewStockLedger(nil)

	err := store.WithinTx(context.Background(), func(r repo.TxRepos) error {
		_, err := ledger.Increment(context.Background(), r, usecase.IncrementCommand{
			ProductID: p.ID,
			Quantity:  2,
			Type:      model.StockMovementRestock,
		})
		return err
	})

	assertHTTPStatus(t, err, http.StatusBadRequest)
	var is *usecase.InsufficientStockError
	assert.False(t, errors.As(err, &is))
	assert.Equal(t, int64(math.MaxInt64-1), stockOf(t, store, p.ID))
	assert.Empty(t, movementsOf(store, p.ID))
}
