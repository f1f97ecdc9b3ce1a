package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 商品。stockはStockLedger経由でしか変更しない。
type Product struct {
	ID         int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string          `gorm:"type:varchar(255);not null" json:"name"`
	Price      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Stock      int64           `gorm:"not null;check:chk_products_stock_non_negative,stock >= 0" json:"stock"`
	IsActive   bool            `gorm:"not null" json:"is_active"`
	CategoryID *int64          `gorm:"index" json:"category_id,omitempty"`
	Category   *Category       `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	CreatedAt  time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
