package model

import "time"

// グローバル設定（key/value）。コアからは読むだけ。
type Setting struct {
	Key       string    `gorm:"column:setting_key;type:varchar(100);primaryKey" json:"key"`
	Value     string    `gorm:"column:setting_value;type:text;not null" json:"value"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
