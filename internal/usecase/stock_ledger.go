package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"marketim/internal/domain/model"
	repo "marketim/internal/repository"
)

const ActorSystem = "System"

type StockChange struct {
	ProductID int64
	Before    int64
	After     int64
	Movement  model.StockMovement
}

type DecrementCommand struct {
	ProductID     int64
	Quantity      int64
	Actor         string
	ReferenceType string
	ReferenceID   *int64
}

type IncrementCommand struct {
	ProductID     int64
	Quantity      int64
	Type          model.StockMovementType
	Actor         string
	Note          string
	ReferenceType string
	ReferenceID   *int64
}

// StockLedger は在庫数と台帳を必ずセットで書く。
// 呼び出し側のトランザクション（TxRepos）の中で使う。
type StockLedger struct {
	clock func() time.Time
}

func NewStockLedger(clock func() time.Time) *StockLedger {
	if clock == nil {
		clock = time.Now
	}
	return &StockLedger{clock: clock}
}

// 在庫が足りなければInsufficientStockErrorで何も書かない。
func (l *StockLedger) Decrement(ctx context.Context, r repo.TxRepos, cmd DecrementCommand) (StockChange, error) {
	if cmd.Quantity <= 0 {
		return StockChange{}, NewHTTPError(http.StatusBadRequest, "quantity must be >= 1")
	}

	p, err := l.lockProduct(ctx, r, cmd.ProductID)
	if err != nil {
		return StockChange{}, err
	}
	if cmd.Quantity > p.Stock {
		return StockChange{}, &InsufficientStockError{
			ProductID: p.ID,
			Requested: cmd.Quantity,
			Available: p.Stock,
		}
	}

	return l.apply(ctx, r, p, -cmd.Quantity, model.StockMovement{
		Type:          model.StockMovementSale,
		Actor:         cmd.Actor,
		ReferenceType: cmd.ReferenceType,
		ReferenceID:   cmd.ReferenceID,
	})
}

func (l *StockLedger) Increment(ctx context.Context, r repo.TxRepos, cmd IncrementCommand) (StockChange, error) {
	if cmd.Quantity <= 0 {
		return StockChange{}, NewHTTPError(http.StatusBadRequest, "quantity must be >= 1")
	}
	switch cmd.Type {
	case model.StockMovementRestock, model.StockMovementAdjustment, model.StockMovementCancelRestock:
	default:
		return StockChange{}, fmt.Errorf("stock ledger: increment type %q not allowed", cmd.Type)
	}

	p, err := l.lockProduct(ctx, r, cmd.ProductID)
	if err != nil {
		return StockChange{}, err
	}

	return l.apply(ctx, r, p, cmd.Quantity, model.StockMovement{
		Type:          cmd.Type,
		Actor:         cmd.Actor,
		Note:          strings.TrimSpace(cmd.Note),
		ReferenceType: cmd.ReferenceType,
		ReferenceID:   cmd.ReferenceID,
	})
}

// Adjust は在庫を現在値newStockに合わせる（差分はADJUSTMENT）。
// 差分0なら何も書かない。
func (l *StockLedger) Adjust(ctx context.Context, r repo.TxRepos, productID int64, newStock int64, actor string, note string) (StockChange, error) {
	if newStock < 0 {
		return StockChange{}, NewHTTPError(http.StatusBadRequest, "stock must be >= 0")
	}

	p, err := l.lockProduct(ctx, r, productID)
	if err != nil {
		return StockChange{}, err
	}
	delta := newStock - p.Stock
	if delta == 0 {
		return StockChange{ProductID: p.ID, Before: p.Stock, After: p.Stock}, nil
	}

	return l.apply(ctx, r, p, delta, model.StockMovement{
		Type:  model.StockMovementAdjustment,
		Actor: actor,
		Note:  strings.TrimSpace(note),
	})
}

func (l *StockLedger) lockProduct(ctx context.Context, r repo.TxRepos, productID int64) (model.Product, error) {
	p, err := r.Products().FindByIDForUpdate(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, &ProductNotFoundError{ProductID: productID}
	}
	if err != nil {
		return model.Product{}, persistenceErr("lock product", err)
	}
	return p, nil
}

func (l *StockLedger) apply(ctx context.Context, r repo.TxRepos, p model.Product, delta int64, m model.StockMovement) (StockChange, error) {
	before := p.Stock
	if delta > 0 && before > math.MaxInt64-delta {
		return StockChange{}, NewHTTPError(http.StatusBadRequest, "stock too large")
	}
	after := before + delta
	if after < 0 {
		return StockChange{}, &InsufficientStockError{ProductID: p.ID, Requested: -delta, Available: before}
	}

	if err := r.Products().UpdateStock(ctx, p.ID, after); err != nil {
		return StockChange{}, persistenceErr("update stock", err)
	}

	if strings.TrimSpace(m.Actor) == "" {
		m.Actor = ActorSystem
	}
	m.ProductID = p.ID
	m.Delta = delta
	m.BeforeStock = before
	m.AfterStock = after
	m.CreatedAt = l.clock()

	saved, err := r.StockMovements().Create(ctx, m)
	if err != nil {
		return StockChange{}, persistenceErr("append stock movement", err)
	}

	return StockChange{ProductID: p.ID, Before: before, After: after, Movement: saved}, nil
}
