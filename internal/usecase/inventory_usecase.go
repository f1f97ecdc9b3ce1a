package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"marketim/internal/domain/model"
	repo "marketim/internal/repository"

	"go.uber.org/zap"
)

const (
	defaultMovementLimit = 50
	maxMovementLimit     = 200
)

// 管理画面の在庫操作（入庫・現在値合わせ・台帳参照）
type InventoryUsecase struct {
	tx     repo.TransactionManager
	ledger *StockLedger
	clock  func() time.Time
	logger *zap.Logger
}

func NewInventoryUsecase(tx repo.TransactionManager, ledger *StockLedger, logger *zap.Logger) *InventoryUsecase {
	if ledger == nil {
		ledger = NewStockLedger(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryUsecase{tx: tx, ledger: ledger, clock: time.Now, logger: logger}
}

type StockChangeOutput struct {
	ProductID   int64  `json:"product_id"`
	BeforeStock int64  `json:"before_stock"`
	AfterStock  int64  `json:"after_stock"`
	Delta       int64  `json:"delta"`
	Type        string `json:"type,omitempty"`
}

// Restock は入庫（RESTOCK）。
func (u *InventoryUsecase) Restock(ctx context.Context, adminUserID int64, productID int64, quantity int64, note string) (StockChangeOutput, error) {
	if adminUserID <= 0 {
		return StockChangeOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if productID <= 0 {
		return StockChangeOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	if quantity <= 0 {
		return StockChangeOutput{}, NewHTTPError(http.StatusBadRequest, "quantity must be >= 1")
	}

	var change StockChange
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		change, err = u.ledger.Increment(ctx, r, IncrementCommand{
			ProductID: productID,
			Quantity:  quantity,
			Type:      model.StockMovementRestock,
			Actor:     fmt.Sprintf("admin:%d", adminUserID),
			Note:      note,
		})
		if err != nil {
			return err
		}
		return u.audit(ctx, r, adminUserID, change)
	})
	if err != nil {
		return StockChangeOutput{}, u.fail("restock", productID, err)
	}

	u.logger.Info("stock restocked", zap.Int64("product_id", productID), zap.Int64("after", change.After))
	return toStockChangeOutput(change), nil
}

// SetStock は在庫を現在値に合わせる（差分をADJUSTMENTで記録）。理由は必須。
func (u *InventoryUsecase) SetStock(ctx context.Context, adminUserID int64, productID int64, newStock int64, reason string) (StockChangeOutput, error) {
	if adminUserID <= 0 {
		return StockChangeOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if productID <= 0 {
		return StockChangeOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	if newStock < 0 {
		return StockChangeOutput{}, NewHTTPError(http.StatusBadRequest, "stock must be >= 0")
	}
	if strings.TrimSpace(reason) == "" {
		return StockChangeOutput{}, NewHTTPError(http.StatusBadRequest, "reason required")
	}

	var change StockChange
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		change, err = u.ledger.Adjust(ctx, r, productID, newStock, fmt.Sprintf("admin:%d", adminUserID), reason)
		if err != nil {
			return err
		}
		if change.Before == change.After {
			return nil
		}
		return u.audit(ctx, r, adminUserID, change)
	})
	if err != nil {
		return StockChangeOutput{}, u.fail("set stock", productID, err)
	}

	u.logger.Info("stock adjusted", zap.Int64("product_id", productID), zap.Int64("before", change.Before), zap.Int64("after", change.After))
	return toStockChangeOutput(change), nil
}

func (u *InventoryUsecase) ListMovements(ctx context.Context, productID int64, limit int) ([]model.StockMovement, error) {
	if productID <= 0 {
		return []model.StockMovement{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	if limit <= 0 {
		limit = defaultMovementLimit
	}
	if limit > maxMovementLimit {
		return []model.StockMovement{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}

	var out []model.StockMovement
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		out, err = r.StockMovements().ListByProductID(ctx, productID, limit)
		if err != nil {
			return persistenceErr("list stock movements", err)
		}
		return nil
	})
	if err != nil {
		return []model.StockMovement{}, classifyTxError("list stock movements", err)
	}
	return out, nil
}

//監査ログ（在庫更新）
func (u *InventoryUsecase) audit(ctx context.Context, r repo.TxRepos, adminUserID int64, change StockChange) error {
	if err := r.AuditLogs().Create(ctx, model.AuditLog{
		ActorUserID:  adminUserID,
		Action:       model.AuditActionUpdateStock,
		ResourceType: model.AuditResourceProduct,
		ResourceID:   change.ProductID,
		BeforeJSON:   fmt.Sprintf(`{"stock":%d}`, change.Before),
		AfterJSON:    fmt.Sprintf(`{"stock":%d}`, change.After),
		CreatedAt:    u.clock(),
	}); err != nil {
		return persistenceErr("create audit log", err)
	}
	return nil
}

func (u *InventoryUsecase) fail(op string, productID int64, err error) error {
	err = classifyTxError(op, err)
	if errors.Is(err, ErrPersistence) {
		u.logger.Error(op+" failed", zap.Int64("product_id", productID), zap.Error(err))
	}
	return err
}

func toStockChangeOutput(c StockChange) StockChangeOutput {
	return StockChangeOutput{
		ProductID:   c.ProductID,
		BeforeStock: c.Before,
		AfterStock:  c.After,
		Delta:       c.After - c.Before,
		Type:        string(c.Movement.Type),
	}
}
