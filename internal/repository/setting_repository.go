package repository

import "context"

// 設定のkey/value。見つからなければ found=false。
type SettingRepository interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
}
