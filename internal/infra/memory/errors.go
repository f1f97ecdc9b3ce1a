package memory

import "errors"

// DBのCHECK制約の代わり
var (
	errNegativeStock       = errors.New("memory: stock must be >= 0")
	errNonPositiveQuantity = errors.New("memory: quantity must be > 0")
)
