package usecase

import "github.com/shopspring/decimal"

// 価格は商品解決時点のもの（再読込しない）
type PricingLine struct {
	UnitPrice decimal.Decimal
	Quantity  int64
}

func (l PricingLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity))
}

type Pricing struct {
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
}

// ComputePricing は小計・配送料・合計を計算する。
// しきい値が0より大きく、小計がしきい値以上なら配送料は0。
func ComputePricing(lines []PricingLine, s DeliverySettings) Pricing {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.LineTotal())
	}

	fee := s.DeliveryFee
	if s.FreeDeliveryThreshold.IsPositive() && subtotal.GreaterThanOrEqual(s.FreeDeliveryThreshold) {
		fee = decimal.Zero
	}

	return Pricing{
		Subtotal:    subtotal,
		DeliveryFee: fee,
		Total:       subtotal.Add(fee),
	}
}
