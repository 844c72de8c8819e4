package settlement

import (
	"github.com/shopspring/decimal"
)

// Royalty is the designer's share of a settled campaign after the quarterly cap.
type Royalty struct {
	Profit    decimal.Decimal `json:"profit"`
	Raw       decimal.Decimal `json:"raw"`
	Payout    decimal.Decimal `json:"payout"`
	Forfeited decimal.Decimal `json:"forfeited"`
	Capped    bool            `json:"capped"`
}

// ComputeRoyalty derives the payout from the final price. Profit never goes
// negative, the raw royalty is rounded to cents and anything above the
// remaining quarterly headroom is forfeited.
func ComputeRoyalty(finalUnitPrice, baseUnitCost decimal.Decimal, finalQty int, rate, quarterlyCap, earned decimal.Decimal) Royalty {
	margin := finalUnitPrice.Sub(baseUnitCost)
	profit := decimal.Max(margin.Mul(decimal.NewFromInt(int64(finalQty))), decimal.Zero)
	raw := profit.Mul(rate).Round(2)
	headroom := decimal.Max(quarterlyCap.Sub(earned), decimal.Zero)
	payout := decimal.Min(raw, headroom)
	return Royalty{
		Profit:    profit.Round(2),
		Raw:       raw,
		Payout:    payout,
		Forfeited: raw.Sub(payout),
		Capped:    payout.LessThan(raw),
	}
}

// TierRefund is the credit owed when an order paid more per unit than the final price.
func TierRefund(paidUnitPrice, finalUnitPrice decimal.Decimal, qty int) decimal.Decimal {
	if !paidUnitPrice.GreaterThan(finalUnitPrice) {
		return decimal.Zero
	}
	return paidUnitPrice.Sub(finalUnitPrice).Mul(decimal.NewFromInt(int64(qty))).Round(2)
}
