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

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ProductUsecase struct {
	tx     repo.TransactionManager
	ledger *StockLedger
	clock  func() time.Time
	logger *zap.Logger
}

// DI
func NewProductUsecase(tx repo.TransactionManager, ledger *StockLedger, logger *zap.Logger) *ProductUsecase {
	if ledger == nil {
		ledger = NewStockLedger(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductUsecase{tx: tx, ledger: ledger, clock: time.Now, logger: logger}
}

// 公開の商品詳細。非公開はnot found扱い。
func (u *ProductUsecase) GetProduct(ctx context.Context, productID int64) (model.Product, error) {
	if productID <= 0 {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	var p model.Product
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		p, err = r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return persistenceErr("find product", err)
		}
		return nil
	})
	if err != nil {
		return model.Product{}, classifyTxError("get product", err)
	}
	if !p.IsActive {
		return model.Product{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	return p, nil
}

type AdminCreateProductInput struct {
	Name     string
	Price    decimal.Decimal
	Stock    int64
	IsActive bool
}

// 商品登録。初期在庫は0で作ってからADJUSTMENT（initial stock）で入れる。
func (u *ProductUsecase) AdminCreateProduct(ctx context.Context, adminUserID int64, in AdminCreateProductInput) (model.Product, error) {
	if adminUserID <= 0 {
		return model.Product{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "name required")
	}
	if in.Price.IsNegative() {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "price must be >= 0")
	}
	if in.Stock < 0 {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "stock must be >= 0")
	}

	var out model.Product
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().Create(ctx, model.Product{
			Name:     name,
			Price:    in.Price.Round(2),
			IsActive: in.IsActive,
		})
		if err != nil {
			return persistenceErr("create product", err)
		}

		if in.Stock > 0 {
			change, err := u.ledger.Adjust(ctx, r, p.ID, in.Stock, fmt.Sprintf("admin:%d", adminUserID), "initial stock")
			if err != nil {
				return err
			}
			p.Stock = change.After
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  adminUserID,
			Action:       model.AuditActionCreateProduct,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   p.ID,
			AfterJSON:    fmt.Sprintf(`{"price":"%s","stock":%d}`, p.Price.StringFixed(2), p.Stock),
			CreatedAt:    u.clock(),
		}); err != nil {
			return persistenceErr("create audit log", err)
		}
		out = p
		return nil
	})
	if err != nil {
		err = classifyTxError("create product", err)
		if errors.Is(err, ErrPersistence) {
			u.logger.Error("create product failed", zap.Error(err))
		}
		return model.Product{}, err
	}

	u.logger.Info("product created", zap.Int64("product_id", out.ID), zap.Int64("stock", out.Stock))
	return out, nil
}
