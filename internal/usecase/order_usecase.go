package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/mail"
	"sort"
	"strings"
	"time"

	"marketim/internal/domain/model"
	repo "marketim/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const myOrdersLimit = 50

type OrderUsecase struct {
	tx       repo.TransactionManager
	ledger   *StockLedger
	settings SettingsAccessor
	clock    func() time.Time
	logger   *zap.Logger
}

func NewOrderUsecase(tx repo.TransactionManager, ledger *StockLedger, logger *zap.Logger) *OrderUsecase {
	if ledger == nil {
		ledger = NewStockLedger(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderUsecase{
		tx:     tx,
		ledger: ledger,
		clock:  time.Now,
		logger: logger,
	}
}

// WithClock は受付時間の判定や作成日時に使う時計を差し替える（テスト用）。
func (u *OrderUsecase) WithClock(now func() time.Time) *OrderUsecase {
	if now != nil {
		u.clock = now
	}
	return u
}

type PlaceOrderItem struct {
	ProductID int64
	Quantity  int64
}

// CustomerIDがnilならゲスト注文（GuestName/GuestEmail/ContactPhone必須）。
type PlaceOrderInput struct {
	CustomerID      *int64
	Items           []PlaceOrderItem
	DeliveryAddress string
	ContactPhone    string
	PaymentMethod   string
	Note            string
	GuestName       string
	GuestEmail      string
	IdempotencyKey  string
}

type OrderItemOutput struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type OrderOutput struct {
	ID              int64             `json:"id"`
	Status          string            `json:"status"`
	PaymentMethod   string            `json:"payment_method"`
	Subtotal        decimal.Decimal   `json:"subtotal"`
	DeliveryFee     decimal.Decimal   `json:"delivery_fee"`
	Total           decimal.Decimal   `json:"total"`
	DeliveryAddress string            `json:"delivery_address"`
	ContactPhone    string            `json:"contact_phone"`
	Note            string            `json:"note,omitempty"`
	CustomerID      *int64            `json:"customer_id,omitempty"`
	GuestName       string            `json:"guest_name,omitempty"`
	GuestEmail      string            `json:"guest_email,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	Items           []OrderItemOutput `json:"items"`
}

// PlaceOrder はチェックアウト本体。
// 成功なら注文+明細+台帳が全部作られ、エラーなら何も変わらない。
func (u *OrderUsecase) PlaceOrder(ctx context.Context, in PlaceOrderInput) (OrderOutput, error) {
	lines, pm, err := validatePlaceOrder(in)
	if err != nil {
		return OrderOutput{}, err
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > 255 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid idempotency_key")
	}

	scope := model.IdempotencyScopeOf(in.CustomerID, in.GuestEmail)
	var out OrderOutput

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 同じキーなら同じ結果
		if key != "" {
			existing, found, err := u.replay(ctx, r, scope, key)
			if err != nil {
				return err
			}
			if found {
				out = existing
				return nil
			}
		}

		// 設定は同じトランザクションで1回だけ読む
		settings, err := u.settings.Load(ctx, r.Settings())
		if err != nil {
			return err
		}
		if !settings.WorkingHours.Open(u.clock()) {
			return NewHTTPError(http.StatusBadRequest, settings.WorkingHours.ClosedMessage)
		}
		if !settings.OrderAcceptingEnabled {
			return NewHTTPError(http.StatusBadRequest, "orders are not being accepted")
		}
		if !settings.PaymentOnDelivery {
			return NewHTTPError(http.StatusBadRequest, "payment on delivery is disabled")
		}
		if !settings.AllowsPaymentMethod(pm) {
			return NewHTTPError(http.StatusBadRequest, "payment method not allowed")
		}

		//商品をid昇順でロック（デッドロック防止）
		products := make(map[int64]model.Product, len(lines))
		for _, id := range sortedProductIDs(lines) {
			p, err := r.Products().FindByIDForUpdate(ctx, id)
			if errors.Is(err, repo.ErrNotFound) {
				return &ProductNotFoundError{ProductID: id}
			}
			if err != nil {
				return persistenceErr("lock product", err)
			}
			if !p.IsActive {
				return &ProductUnavailableError{ProductID: id}
			}
			if p.Category != nil && !p.Category.IsActive {
				return &CategoryInactiveError{ProductID: id, CategoryID: p.Category.ID}
			}
			products[id] = p
		}

		//全明細の在庫を先に確認（ここまでは何も書いていない）
		pricingLines := make([]PricingLine, 0, len(lines))
		for _, l := range lines {
			p := products[l.ProductID]
			if l.Quantity > p.Stock {
				return &InsufficientStockError{ProductID: p.ID, Requested: l.Quantity, Available: p.Stock}
			}
			pricingLines = append(pricingLines, PricingLine{UnitPrice: p.Price, Quantity: l.Quantity})
		}

		pricing := ComputePricing(pricingLines, settings.Delivery)
		if settings.MinOrderAmount.IsPositive() && pricing.Subtotal.LessThan(settings.MinOrderAmount) {
			return NewHTTPError(http.StatusBadRequest, "minimum order amount is "+settings.MinOrderAmount.StringFixed(2))
		}

		now := u.clock()
		header := model.Order{
			CustomerID:      in.CustomerID,
			DeliveryAddress: strings.TrimSpace(in.DeliveryAddress),
			ContactPhone:    strings.TrimSpace(in.ContactPhone),
			PaymentMethod:   pm,
			Note:            strings.TrimSpace(in.Note),
			Status:          model.OrderStatusPreparing,
			Subtotal:        pricing.Subtotal,
			DeliveryFee:     pricing.DeliveryFee,
			Total:           pricing.Total,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if in.CustomerID == nil {
			header.GuestName = strings.TrimSpace(in.GuestName)
			header.GuestEmail = strings.TrimSpace(in.GuestEmail)
		}
		if key != "" {
			header.IdempotencyScope = &scope
			header.IdempotencyKey = &key
		}

		order, err := r.Orders().Create(ctx, header)
		if err != nil {
			return persistenceErr("create order", err)
		}

		//在庫減算（台帳に注文IDを残す）→ 明細スナップショット
		orderID := order.ID
		items := make([]model.OrderItem, 0, len(lines))
		for i, l := range lines {
			p := products[l.ProductID]
			if _, err := u.ledger.Decrement(ctx, r, DecrementCommand{
				ProductID:     l.ProductID,
				Quantity:      l.Quantity,
				Actor:         ActorSystem,
				ReferenceType: model.ReferenceTypeOrder,
				ReferenceID:   &orderID,
			}); err != nil {
				return err
			}

			items = append(items, model.OrderItem{
				ProductID:           l.ProductID,
				ProductNameSnapshot: p.Name,
				Quantity:            l.Quantity,
				UnitPrice:           pricingLines[i].UnitPrice,
				LineTotal:           pricingLines[i].LineTotal(),
				CreatedAt:           now,
			})
		}

		saved, err := r.OrderItems().CreateBulk(ctx, orderID, items)
		if err != nil {
			return persistenceErr("create order items", err)
		}

		out = toOrderOutput(order, saved)
		return nil
	})

	if err != nil {
		//同じキーの同時送信は一意制約で負けた側が既存注文を返す
		if key != "" && errors.Is(err, repo.ErrConflict) {
			return u.findByIdempotencyKey(ctx, scope, key)
		}
		err = classifyTxError("place order", err)
		if errors.Is(err, ErrPersistence) {
			u.logger.Error("place order failed", zap.Error(err))
		}
		return OrderOutput{}, err
	}

	u.logger.Info("order placed",
		zap.Int64("order_id", out.ID),
		zap.Int("lines", len(out.Items)),
		zap.String("total", out.Total.StringFixed(2)),
		zap.Bool("guest", out.CustomerID == nil),
	)
	return out, nil
}

// キーは持ち主ごとなので、他人の注文が返ることはない
func (u *OrderUsecase) replay(ctx context.Context, r repo.TxRepos, scope string, key string) (OrderOutput, bool, error) {
	existing, found, err := r.Orders().FindByIdempotencyKey(ctx, scope, key)
	if err != nil {
		return OrderOutput{}, false, persistenceErr("find by idempotency key", err)
	}
	if !found {
		return OrderOutput{}, false, nil
	}
	items, err := r.OrderItems().ListByOrderID(ctx, existing.ID)
	if err != nil {
		return OrderOutput{}, false, persistenceErr("list order items", err)
	}
	return toOrderOutput(existing, items), true, nil
}

func (u *OrderUsecase) findByIdempotencyKey(ctx context.Context, scope string, key string) (OrderOutput, error) {
	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		existing, found, err := u.replay(ctx, r, scope, key)
		if err != nil {
			return err
		}
		if !found {
			return NewHTTPError(http.StatusBadRequest, "idempotency conflict")
		}
		out = existing
		return nil
	})
	if err != nil {
		return OrderOutput{}, classifyTxError("find by idempotency key", err)
	}
	return out, nil
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, customerID int64) ([]OrderOutput, error) {
	if customerID <= 0 {
		return []OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var outs []OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, err := r.Orders().ListByCustomerID(ctx, customerID, myOrdersLimit)
		if err != nil {
			return persistenceErr("list orders", err)
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return persistenceErr("list order items", err)
			}
			outs = append(outs, toOrderOutput(o, items))
		}
		return nil
	})
	if err != nil {
		return []OrderOutput{}, classifyTxError("list orders", err)
	}
	return outs, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, customerID int64, orderID int64) (OrderOutput, error) {
	if customerID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
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
		//他人の注文は「存在しない扱い」にする
		if !sameCustomer(o.CustomerID, &customerID) {
			return NewHTTPError(http.StatusNotFound, "not found")
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

// CancelMyOrder は本人のPREPARING注文だけキャンセルできる（在庫は戻す）。
func (u *OrderUsecase) CancelMyOrder(ctx context.Context, customerID int64, orderID int64) (OrderOutput, error) {
	if customerID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return persistenceErr("lock order", err)
		}
		if !sameCustomer(o.CustomerID, &customerID) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}

		updated, err := transitionOrderStatus(ctx, r, u.ledger, o, model.OrderStatusCancelled, fmt.Sprintf("customer:%d", customerID), u.clock())
		if err != nil {
			return err
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return persistenceErr("list order items", err)
		}
		out = toOrderOutput(updated, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, classifyTxError("cancel order", err)
	}

	u.logger.Info("order cancelled by customer", zap.Int64("order_id", orderID), zap.Int64("customer_id", customerID))
	return out, nil
}

// 重複した商品はまとめる（最初に出てきた順を保つ）
func validatePlaceOrder(in PlaceOrderInput) ([]PlaceOrderItem, model.PaymentMethod, error) {
	if in.CustomerID != nil && *in.CustomerID <= 0 {
		return nil, "", NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if len(in.Items) == 0 {
		return nil, "", NewHTTPError(http.StatusBadRequest, "order items cannot be empty")
	}
	if strings.TrimSpace(in.DeliveryAddress) == "" {
		return nil, "", NewHTTPError(http.StatusBadRequest, "delivery_address required")
	}
	pm, ok := model.ParsePaymentMethod(in.PaymentMethod)
	if !ok {
		return nil, "", NewHTTPError(http.StatusBadRequest, "invalid payment_method")
	}

	if in.CustomerID == nil {
		if strings.TrimSpace(in.GuestName) == "" {
			return nil, "", NewHTTPError(http.StatusBadRequest, "guest_name required")
		}
		if _, err := mail.ParseAddress(strings.TrimSpace(in.GuestEmail)); err != nil {
			return nil, "", NewHTTPError(http.StatusBadRequest, "invalid guest_email")
		}
		if strings.TrimSpace(in.ContactPhone) == "" {
			return nil, "", NewHTTPError(http.StatusBadRequest, "contact_phone required")
		}
	}

	merged := make([]PlaceOrderItem, 0, len(in.Items))
	index := make(map[int64]int, len(in.Items))
	for _, it := range in.Items {
		if it.ProductID <= 0 {
			return nil, "", NewHTTPError(http.StatusBadRequest, "invalid product_id")
		}
		if it.Quantity <= 0 {
			return nil, "", NewHTTPError(http.StatusBadRequest, "quantity must be >= 1")
		}
		if i, ok := index[it.ProductID]; ok {
			if merged[i].Quantity > math.MaxInt64-it.Quantity {
				return nil, "", NewHTTPError(http.StatusBadRequest, "quantity too large")
			}
			merged[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(merged)
		merged = append(merged, it)
	}

	return merged, pm, nil
}

func sortedProductIDs(lines []PlaceOrderItem) []int64 {
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sameCustomer(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID: it.ProductID,
			Name:      it.ProductNameSnapshot,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			LineTotal: it.LineTotal,
		})
	}

	return OrderOutput{
		ID:              o.ID,
		Status:          string(o.Status),
		PaymentMethod:   string(o.PaymentMethod),
		Subtotal:        o.Subtotal,
		DeliveryFee:     o.DeliveryFee,
		Total:           o.Total,
		DeliveryAddress: o.DeliveryAddress,
		ContactPhone:    o.ContactPhone,
		Note:            o.Note,
		CustomerID:      o.CustomerID,
		GuestName:       o.GuestName,
		GuestEmail:      o.GuestEmail,
		CreatedAt:       o.CreatedAt,
		Items:           outItems,
	}
}
