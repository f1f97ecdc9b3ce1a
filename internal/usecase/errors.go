package usecase

import (
	"errors"
	"fmt"
	"net/http"

	"marketim/internal/domain/model"
)

type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

// 商品が存在しない（変更前に中断）
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product not found: %d", e.ProductID)
}

// 非公開の商品
type ProductUnavailableError struct {
	ProductID int64
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product is not available: %d", e.ProductID)
}

// カテゴリが非公開の商品
type CategoryInactiveError struct {
	ProductID  int64
	CategoryID int64
}

func (e *CategoryInactiveError) Error() string {
	return fmt.Sprintf("product category is inactive: product %d, category %d", e.ProductID, e.CategoryID)
}

// 在庫不足。リクエスト全体が変更なしで終わる。
type InsufficientStockError struct {
	ProductID int64
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

// 終端状態の注文へのステータス変更
type InvalidTransitionError struct {
	Current   model.OrderStatus
	Requested model.OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: %s -> %s", e.Current, e.Requested)
}

// ErrPersistence はDB起因の失敗。トランザクションは必ずrollback済み。
var ErrPersistence = errors.New("persistence failure")

// 原因はログ用に保持するが、クライアントには出さない。
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPersistence, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

func persistenceErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// ドメインエラーならそのまま、それ以外はPersistenceErrorに包む。
func classifyTxError(op string, err error) error {
	if err == nil {
		return nil
	}
	if isDomainError(err) {
		return err
	}
	return persistenceErr(op, err)
}

func isDomainError(err error) bool {
	var he *HTTPError
	var nf *ProductNotFoundError
	var pu *ProductUnavailableError
	var ci *CategoryInactiveError
	var is *InsufficientStockError
	var it *InvalidTransitionError
	return errors.As(err, &he) ||
		errors.As(err, &nf) ||
		errors.As(err, &pu) ||
		errors.As(err, &ci) ||
		errors.As(err, &is) ||
		errors.As(err, &it)
}

// AsHTTPError はhandlerが返すステータスとメッセージを決める。
// 検証エラーは4xx、DB起因は500（中身は出さない）。
func AsHTTPError(err error) (*HTTPError, bool) {
	if err == nil {
		return nil, false
	}

	var he *HTTPError
	if errors.As(err, &he) {
		return he, true
	}

	var nf *ProductNotFoundError
	if errors.As(err, &nf) {
		return &HTTPError{Status: http.StatusNotFound, Message: nf.Error()}, true
	}
	var pu *ProductUnavailableError
	if errors.As(err, &pu) {
		return &HTTPError{Status: http.StatusBadRequest, Message: pu.Error()}, true
	}
	var ci *CategoryInactiveError
	if errors.As(err, &ci) {
		return &HTTPError{Status: http.StatusBadRequest, Message: ci.Error()}, true
	}
	var is *InsufficientStockError
	if errors.As(err, &is) {
		return &HTTPError{Status: http.StatusBadRequest, Message: is.Error()}, true
	}
	var it *InvalidTransitionError
	if errors.As(err, &it) {
		return &HTTPError{Status: http.StatusBadRequest, Message: it.Error()}, true
	}
	if errors.Is(err, ErrPersistence) {
		return &HTTPError{Status: http.StatusInternalServerError, Message: "db error"}, true
	}
	return nil, false
}
