package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"marketim/internal/domain/model"
	repo "marketim/internal/repository"

	"go.uber.org/zap"
)

type AdminOrderUsecase struct {
	tx     repo.TransactionManager
	ledger *StockLedger
	clock  func() time.Time
	logger *zap.Logger
}

func NewAdminOrderUsecase(tx repo.TransactionManager, ledger *StockLedger, logger *zap.Logger) *AdminOrderUsecase {
	if ledger == nil {
		ledger = NewStockLedger(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminOrderUsecase{tx: tx, ledger: ledger, clock: time.Now, logger: logger}
}

type AdminUpdateOrderStatusInput struct {
	Status string
}

func (u *AdminOrderUsecase) GetOrder(ctx context.Context, orderID int64) (OrderOutput, error) {
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return persistenceErr("find order", err)
		}
		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return persistenceErr("list order items", err)
		}
		out = toOrderOutput(o, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, classifyTxError("get order", err)
	}
	return out, nil
}

// ステータス更新。終端（DELIVERED/CANCELLED）からは同じ値でもエラー。
// CANCELLEDなら在庫戻し、変更があれば監査ログ。
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actorAdminUserID int64, orderID int64, in AdminUpdateOrderStatusInput) (OrderOutput, error) {
	if actorAdminUserID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	target, ok := model.ParseOrderStatus(in.Status)
	if !ok {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	var out OrderOutput
	var before model.OrderStatus

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 注文取得（同時更新を防ぐため行ロック）
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return persistenceErr("lock order", err)
		}
		before = o.Status

		now := u.clock()
		updated, err := transitionOrderStatus(ctx, r, u.ledger, o, target, fmt.Sprintf("admin:%d", actorAdminUserID), now)
		if err != nil {
			return err
		}

		if before != target {
			if err := r.AuditLogs().Create(ctx, model.AuditLog{
				ActorUserID:  actorAdminUserID,
				Action:       model.AuditActionUpdateOrderStatus,
				ResourceType: model.AuditResourceOrder,
				ResourceID:   orderID,
				BeforeJSON:   `{"status":"` + string(before) + `"}`,
				AfterJSON:    `{"status":"` + string(target) + `"}`,
				CreatedAt:    now,
			}); err != nil {
				return persistenceErr("create audit log", err)
			}
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return persistenceErr("list order items", err)
		}
		out = toOrderOutput(updated, items)
		return nil
	})
	if err != nil {
		err = classifyTxError("update order status", err)
		if errors.Is(err, ErrPersistence) {
			u.logger.Error("update order status failed", zap.Int64("order_id", orderID), zap.Error(err))
		}
		return OrderOutput{}, err
	}

	u.logger.Info("order status updated",
		zap.Int64("order_id", orderID),
		zap.String("from", string(before)),
		zap.String("to", string(target)),
		zap.Int64("admin_id", actorAdminUserID),
	)
	return out, nil
}
