package usecase

import (
	"context"
	"time"

	"marketim/internal/domain/model"
	repo "marketim/internal/repository"
)

// transitionOrderStatus は状態遷移のガードと永続化。
// CANCELLEDにするときは明細ぶんの在庫をCANCEL_RESTOCKで戻す（同じTx内）。
// orderはロック済みであること。
func transitionOrderStatus(ctx context.Context, r repo.TxRepos, ledger *StockLedger, order model.Order, target model.OrderStatus, actor string, now time.Time) (model.Order, error) {
	if !order.Status.CanTransitionTo(target) {
		return model.Order{}, &InvalidTransitionError{Current: order.Status, Requested: target}
	}

	if target == model.OrderStatusCancelled {
		items, err := r.OrderItems().ListByOrderID(ctx, order.ID)
		if err != nil {
			return model.Order{}, persistenceErr("list order items", err)
		}
		orderID := order.ID
		for _, it := range items {
			if _, err := ledger.Increment(ctx, r, IncrementCommand{
				ProductID:     it.ProductID,
				Quantity:      it.Quantity,
				Type:          model.StockMovementCancelRestock,
				Actor:         actor,
				Note:          "order cancelled",
				ReferenceType: model.ReferenceTypeOrder,
				ReferenceID:   &orderID,
			}); err != nil {
				return model.Order{}, err
			}
		}
	}

	if err := r.Orders().UpdateStatus(ctx, order.ID, target); err != nil {
		return model.Order{}, persistenceErr("update order status", err)
	}

	order.Status = target
	order.UpdatedAt = now
	return order, nil
}
