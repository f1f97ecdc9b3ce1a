package repository

import (
	"context"
	"errors"
	"time"

	repo "marketim/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxTxAttempts = 3

	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

type txReposGorm struct {
	products       repo.ProductRepository
	orders         repo.OrderRepository
	orderItems     repo.OrderItemRepository
	stockMovements repo.StockMovementRepository
	settings       repo.SettingRepository
	auditLogs      repo.AuditLogRepository
}

func (r *txReposGorm) Products() repo.ProductRepository             { return r.products }
func (r *txReposGorm) Orders() repo.OrderRepository                 { return r.orders }
func (r *txReposGorm) OrderItems() repo.OrderItemRepository         { return r.orderItems }
func (r *txReposGorm) StockMovements() repo.StockMovementRepository { return r.stockMovements }
func (r *txReposGorm) Settings() repo.SettingRepository             { return r.settings }
func (r *txReposGorm) AuditLogs() repo.AuditLogRepository           { return r.auditLogs }

type TxManagerGorm struct {
	db      *gorm.DB
	logger  *zap.Logger
	backoff time.Duration
}

func NewTxManagerGorm(db *gorm.DB, logger *zap.Logger) *TxManagerGorm {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TxManagerGorm{db: db, logger: logger, backoff: 20 * time.Millisecond}
}

// WithinTx はfnを1トランザクションで実行する。
// 直列化失敗・デッドロックのときだけ最大3回までやり直す。
func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			//repoはtxを持ったDBで作り直す
			return fn(newTxRepos(tx))
		})
		if err == nil || !isRetryable(err) || attempt == maxTxAttempts {
			return err
		}

		tm.logger.Warn("transaction retry", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(time.Duration(attempt) * tm.backoff):
		}
	}
	return err
}

func newTxRepos(tx *gorm.DB) *txReposGorm {
	return &txReposGorm{
		products:       NewProductGormRepository(tx),
		orders:         NewOrderGormRepository(tx),
		orderItems:     NewOrderItemGormRepository(tx),
		stockMovements: NewStockMovementGormRepository(tx),
		settings:       NewSettingGormRepository(tx),
		auditLogs:      NewAuditLogGormRepository(tx),
	}
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
}
