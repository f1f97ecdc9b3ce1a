package usecase

import (
	"context"
	"strings"
	"time"

	"marketim/internal/domain/model"
	repo "marketim/internal/repository"

	"github.com/shopspring/decimal"
)

// 設定キー
const (
	SettingDeliveryFee            = "DELIVERY_FEE"
	SettingFreeDeliveryThreshold  = "FREE_DELIVERY_THRESHOLD"
	SettingMinOrderAmount         = "MIN_ORDER_AMOUNT"
	SettingOrderAcceptingEnabled  = "ORDER_ACCEPTING_ENABLED"
	SettingPaymentOnDeliveryTypes = "PAYMENT_ON_DELIVERY_METHODS"
	SettingPaymentOnDelivery      = "PAYMENT_ON_DELIVERY_ENABLED"
	SettingWorkingHoursEnabled    = "WORKING_HOURS_ENABLED"
	SettingWorkingHoursStart      = "WORKING_HOURS_START"
	SettingWorkingHoursEnd        = "WORKING_HOURS_END"
	SettingOrderClosedMessage     = "ORDER_CLOSED_MESSAGE"
)

const (
	defaultPaymentMethods     = "CASH,CARD"
	defaultWorkingHoursStart  = "09:00"
	defaultWorkingHoursEnd    = "22:00"
	defaultOrderClosedMessage = "we are not accepting orders at this time"
)

// WorkingHours は受付時間帯（時刻は1日の秒数）。
// Start > End は日付をまたぐ（22:00-02:00など）。Start == Endは終日。
type WorkingHours struct {
	Enabled       bool
	Start         time.Duration
	End           time.Duration
	ClosedMessage string
}

// Open は両端を含む。Enabledでなければ常にtrue。
func (w WorkingHours) Open(now time.Time) bool {
	if !w.Enabled || w.Start == w.End {
		return true
	}
	h, m, s := now.Clock()
	t := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second
	if w.Start < w.End {
		return t >= w.Start && t <= w.End
	}
	return t >= w.Start || t <= w.End
}

type DeliverySettings struct {
	DeliveryFee           decimal.Decimal
	FreeDeliveryThreshold decimal.Decimal
}

// CheckoutSettings は1トランザクション分の設定スナップショット。
type CheckoutSettings struct {
	Delivery              DeliverySettings
	MinOrderAmount        decimal.Decimal
	OrderAcceptingEnabled bool
	WorkingHours          WorkingHours
	PaymentOnDelivery     bool
	PaymentMethods        []model.PaymentMethod
}

func (s CheckoutSettings) AllowsPaymentMethod(pm model.PaymentMethod) bool {
	for _, m := range s.PaymentMethods {
		if m == pm {
			return true
		}
	}
	return false
}

// SettingsAccessor は文字列の設定を型付きで読む。
// 値が無い・読めない・負のときは0（チェックアウトは失敗させない）。
type SettingsAccessor struct{}

func (SettingsAccessor) Delivery(ctx context.Context, settings repo.SettingRepository) (DeliverySettings, error) {
	fee, err := readMoney(ctx, settings, SettingDeliveryFee)
	if err != nil {
		return DeliverySettings{}, err
	}
	threshold, err := readMoney(ctx, settings, SettingFreeDeliveryThreshold)
	if err != nil {
		return DeliverySettings{}, err
	}
	return DeliverySettings{DeliveryFee: fee, FreeDeliveryThreshold: threshold}, nil
}

func (a SettingsAccessor) Load(ctx context.Context, settings repo.SettingRepository) (CheckoutSettings, error) {
	delivery, err := a.Delivery(ctx, settings)
	if err != nil {
		return CheckoutSettings{}, err
	}
	minOrder, err := readMoney(ctx, settings, SettingMinOrderAmount)
	if err != nil {
		return CheckoutSettings{}, err
	}
	accepting, err := readBool(ctx, settings, SettingOrderAcceptingEnabled, true)
	if err != nil {
		return CheckoutSettings{}, err
	}
	hours, err := readWorkingHours(ctx, settings)
	if err != nil {
		return CheckoutSettings{}, err
	}
	payOnDelivery, err := readBool(ctx, settings, SettingPaymentOnDelivery, true)
	if err != nil {
		return CheckoutSettings{}, err
	}
	methods, err := readPaymentMethods(ctx, settings)
	if err != nil {
		return CheckoutSettings{}, err
	}

	return CheckoutSettings{
		Delivery:              delivery,
		MinOrderAmount:        minOrder,
		OrderAcceptingEnabled: accepting,
		WorkingHours:          hours,
		PaymentOnDelivery:     payOnDelivery,
		PaymentMethods:        methods,
	}, nil
}

func readMoney(ctx context.Context, settings repo.SettingRepository, key string) (decimal.Decimal, error) {
	raw, found, err := settings.Get(ctx, key)
	if err != nil {
		return decimal.Zero, persistenceErr("read setting "+key, err)
	}
	if !found {
		return decimal.Zero, nil
	}
	return parseMoney(raw), nil
}

func parseMoney(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d.Round(2)
}

func readBool(ctx context.Context, settings repo.SettingRepository, key string, def bool) (bool, error) {
	raw, found, err := settings.Get(ctx, key)
	if err != nil {
		return false, persistenceErr("read setting "+key, err)
	}
	if !found {
		return def, nil
	}
	return strings.EqualFold(strings.TrimSpace(raw), "true"), nil
}

func readPaymentMethods(ctx context.Context, settings repo.SettingRepository) ([]model.PaymentMethod, error) {
	raw, found, err := settings.Get(ctx, SettingPaymentOnDeliveryTypes)
	if err != nil {
		return nil, persistenceErr("read setting "+SettingPaymentOnDeliveryTypes, err)
	}
	if !found {
		raw = defaultPaymentMethods
	}

	var methods []model.PaymentMethod
	for _, part := range strings.Split(raw, ",") {
		if pm, ok := model.ParsePaymentMethod(part); ok {
			methods = append(methods, pm)
		}
	}
	return methods, nil
}

// 時刻が読めないときは既定の時刻を使う
func readWorkingHours(ctx context.Context, settings repo.SettingRepository) (WorkingHours, error) {
	enabled, err := readBool(ctx, settings, SettingWorkingHoursEnabled, false)
	if err != nil {
		return WorkingHours{}, err
	}
	start, err := readString(ctx, settings, SettingWorkingHoursStart, defaultWorkingHoursStart)
	if err != nil {
		return WorkingHours{}, err
	}
	end, err := readString(ctx, settings, SettingWorkingHoursEnd, defaultWorkingHoursEnd)
	if err != nil {
		return WorkingHours{}, err
	}
	msg, err := readString(ctx, settings, SettingOrderClosedMessage, defaultOrderClosedMessage)
	if err != nil {
		return WorkingHours{}, err
	}

	startAt, ok := parseTimeOfDay(start)
	if !ok {
		startAt, _ = parseTimeOfDay(defaultWorkingHoursStart)
	}
	endAt, ok := parseTimeOfDay(end)
	if !ok {
		endAt, _ = parseTimeOfDay(defaultWorkingHoursEnd)
	}
	return WorkingHours{Enabled: enabled, Start: startAt, End: endAt, ClosedMessage: msg}, nil
}

func readString(ctx context.Context, settings repo.SettingRepository, key string, def string) (string, error) {
	raw, found, err := settings.Get(ctx, key)
	if err != nil {
		return "", persistenceErr("read setting "+key, err)
	}
	raw = strings.TrimSpace(raw)
	if !found || raw == "" {
		return def, nil
	}
	return raw, nil
}

// "HH:MM" または "HH:MM:SS"
func parseTimeOfDay(raw string) (time.Duration, bool) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		t, err := time.Parse(layout, strings.TrimSpace(raw))
		if err == nil {
			return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second, true
		}
	}
	return 0, false
}
