package model

import "time"

type StockMovementType string

const (
	// 注文による出庫
	StockMovementSale StockMovementType = "SALE"
	// 管理者の手動入庫
	StockMovementRestock StockMovementType = "RESTOCK"
	// 初期在庫・棚卸しなどの現在値合わせ
	StockMovementAdjustment StockMovementType = "ADJUSTMENT"
	// キャンセルによる在庫戻し
	StockMovementCancelRestock StockMovementType = "CANCEL_RESTOCK"
)

const ReferenceTypeOrder = "ORDER"

// 在庫変動の台帳（追記のみ）。
// AfterStock == BeforeStock + Delta を必ず満たす。
type StockMovement struct {
	ID            int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID     int64             `gorm:"not null;index" json:"product_id"`
	Type          StockMovementType `gorm:"type:varchar(30);not null" json:"type"`
	Delta         int64             `gorm:"not null" json:"delta"`
	BeforeStock   int64             `gorm:"not null" json:"before_stock"`
	AfterStock    int64             `gorm:"not null" json:"after_stock"`
	Actor         string            `gorm:"type:varchar(255);not null" json:"actor"`
	ReferenceType string            `gorm:"type:varchar(30)" json:"reference_type,omitempty"`
	ReferenceID   *int64            `gorm:"index" json:"reference_id,omitempty"`
	Note          string            `gorm:"type:varchar(255)" json:"note,omitempty"`
	CreatedAt     time.Time         `gorm:"not null;index;autoCreateTime" json:"created_at"`
}
