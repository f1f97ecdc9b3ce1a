package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"marketim/internal/config"
	"marketim/internal/domain/model"
	"marketim/internal/handler"
	"marketim/internal/infra/db"
	"marketim/internal/infra/memory"
	infraRepo "marketim/internal/infra/repository"
	"marketim/internal/observability"
	"marketim/internal/repository"
	"marketim/internal/server"
	"marketim/internal/usecase"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	//.envはあれば読む（本番は環境変数）
	for _, f := range []string{".env", "../.env"} {
		if err := godotenv.Load(f); err == nil {
			break
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ledger := usecase.NewStockLedger(nil)
	txm, err := newTransactionManager(cfg, logger, ledger)
	if err != nil {
		return err
	}

	//Usecase生成
	productUC := usecase.NewProductUsecase(txm, ledger, logger)
	orderUC := usecase.NewOrderUsecase(txm, ledger, logger)
	adminOrderUC := usecase.NewAdminOrderUsecase(txm, ledger, logger)
	inventoryUC := usecase.NewInventoryUsecase(txm, ledger, logger)
	auditLogUC := usecase.NewAuditLogUsecase(txm)

	//Handler生成
	e := server.New(cfg, logger, server.Handlers{
		Products:       handler.NewProductHandler(productUC),
		Orders:         handler.NewOrderHandler(orderUC),
		AdminOrders:    handler.NewAdminOrderHandler(adminOrderUC),
		AdminInventory: handler.NewAdminInventoryHandler(inventoryUC),
		AdminAuditLogs: handler.NewAdminAuditLogHandler(auditLogUC),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Start(ctx, e, cfg.Addr(), logger)
}

func newTransactionManager(cfg config.Config, logger *zap.Logger, ledger *usecase.StockLedger) (repository.TransactionManager, error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn("using in-memory store; data is lost on restart")
		store := memory.NewStore()
		if err := seedMemory(store, ledger); err != nil {
			return nil, fmt.Errorf("seed memory store: %w", err)
		}
		return store, nil
	}

	//DB接続
	gormDB, err := db.Connect(cfg.DSN(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if cfg.AutoMigrate {
		if err := db.Migrate(gormDB); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return infraRepo.NewTxManagerGorm(gormDB, logger), nil
}

// ローカル確認用の商品と設定。初期在庫も台帳（ADJUSTMENT）経由で入れる。
func seedMemory(store *memory.Store, ledger *usecase.StockLedger) error {
	store.PutSetting(usecase.SettingDeliveryFee, "10.00")
	store.PutSetting(usecase.SettingFreeDeliveryThreshold, "100.00")

	seeds := []struct {
		name  string
		price string
		stock int64
	}{
		{"Milk 1L", "1.99", 50},
		{"Bread", "2.49", 30},
		{"Eggs (10)", "3.75", 20},
	}
	return store.WithinTx(context.Background(), func(r repository.TxRepos) error {
		for _, s := range seeds {
			p, err := r.Products().Create(context.Background(), model.Product{
				Name:     s.name,
				Price:    decimal.RequireFromString(s.price),
				IsActive: true,
			})
			if err != nil {
				return err
			}
			if _, err := ledger.Increment(context.Background(), r, usecase.IncrementCommand{
				ProductID: p.ID,
				Quantity:  s.stock,
				Type:      model.StockMovementAdjustment,
				Note:      "initial stock",
			}); err != nil {
				return err
			}
		}
		return nil
	})
}
