package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPreparing OrderStatus = "PREPARING"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// ParseOrderStatus は前後の空白を除いて大文字で比較する。
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case OrderStatusPreparing, OrderStatusDelivered, OrderStatusCancelled:
		return st, true
	default:
		return "", false
	}
}

// 終端（DELIVERED / CANCELLED）
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// 終端からはどこにも行けない（同じ値の再設定もNG）。
// PREPARINGからは3つのどれでもOK。
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if s != OrderStatusPreparing {
		return false
	}
	switch target {
	case OrderStatusPreparing, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// 支払い方法はラベルだけ（決済はしない）
type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "CASH"
	PaymentMethodCard PaymentMethod = "CARD"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch pm := PaymentMethod(strings.ToUpper(strings.TrimSpace(s))); pm {
	case PaymentMethodCash, PaymentMethodCard:
		return pm, true
	default:
		return "", false
	}
}

// 注文ヘッダ。金額3項目は作成後に変更しない（変わるのはstatusだけ）。
// CustomerIDがnilならゲスト注文。
type Order struct {
	ID               int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	CustomerID       *int64          `gorm:"index" json:"customer_id,omitempty"`
	GuestName        string          `gorm:"type:varchar(255)" json:"guest_name,omitempty"`
	GuestEmail       string          `gorm:"type:varchar(255)" json:"guest_email,omitempty"`
	DeliveryAddress  string          `gorm:"type:text;not null" json:"delivery_address"`
	ContactPhone     string          `gorm:"type:varchar(30);not null" json:"contact_phone"`
	PaymentMethod    PaymentMethod   `gorm:"type:varchar(20);not null" json:"payment_method"`
	Note             string          `gorm:"type:text" json:"note,omitempty"`
	Status           OrderStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	Subtotal         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	DeliveryFee      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"delivery_fee"`
	Total            decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	// 冪等キーは持ち主（IdempotencyScope）ごとに一意
	IdempotencyScope *string         `gorm:"type:varchar(320);uniqueIndex:idx_orders_idempotency,priority:1" json:"-"`
	IdempotencyKey   *string         `gorm:"type:varchar(255);uniqueIndex:idx_orders_idempotency,priority:2" json:"-"`
	CreatedAt        time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (o Order) IsGuest() bool {
	return o.CustomerID == nil
}

// IdempotencyScopeOf は冪等キーの持ち主。会員は"customer:<id>"、ゲストは"guest:<email小文字>"。
func IdempotencyScopeOf(customerID *int64, guestEmail string) string {
	if customerID != nil {
		return fmt.Sprintf("customer:%d", *customerID)
	}
	return "guest:" + strings.ToLower(strings.TrimSpace(guestEmail))
}
