// Package pricing resolves the active tier and unit price of a pre-order
// campaign from its tier schedule and confirmed quantity.
package pricing

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/designdrop-backend/pkg/errors"
	"github.com/angelmondragon/designdrop-backend/pkg/types"
)

// Quote is the tier and unit price in effect for a confirmed quantity.
type Quote struct {
	Tier      int             `json:"tier"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// OrderQuote prices a prospective order against the current confirmed quantity.
type OrderQuote struct {
	Quote
	Quantity int             `json:"quantity"`
	Total    decimal.Decimal `json:"total"`
}

// Resolve returns the first tier, in ascending order, whose range holds qty.
// Quantities below the lowest tier fall back to that tier.
func Resolve(schedule types.TierSchedule, qty int) (Quote, error) {
	first, ok := schedule.First()
	if !ok {
		return Quote{}, pkgerrors.New(pkgerrors.CodePricingNotConfigured, "tier schedule is not configured")
	}
	if qty < first.MinQuantity {
		return Quote{Tier: first.Tier, UnitPrice: first.UnitPrice}, nil
	}
	for _, tier := range schedule {
		if tier.Contains(qty) {
			return Quote{Tier: tier.Tier, UnitPrice: tier.UnitPrice}, nil
		}
	}
	// unreachable for validated schedules; the last tier is unbounded
	last := schedule[len(schedule)-1]
	return Quote{Tier: last.Tier, UnitPrice: last.UnitPrice}, nil
}

// QuoteOrder prices qty units given the design's current confirmed quantity.
// The price is the tier in effect now; later orders never reprice this one.
func QuoteOrder(schedule types.TierSchedule, confirmedQty, qty int) (OrderQuote, error) {
	if qty <= 0 {
		return OrderQuote{}, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must be positive").
			WithDetails(map[string]any{"quantity": qty})
	}
	quote, err := Resolve(schedule, confirmedQty)
	if err != nil {
		return OrderQuote{}, err
	}
	return OrderQuote{
		Quote:    quote,
		Quantity: qty,
		Total:    quote.UnitPrice.Mul(decimal.NewFromInt(int64(qty))),
	}, nil
}

// TierCrossed reports the new tier when moving from before to after units
// lands in a higher tier.
func TierCrossed(schedule types.TierSchedule, before, after int) (Quote, bool) {
	prev, err := Resolve(schedule, before)
	if err != nil {
		return Quote{}, false
	}
	next, err := Resolve(schedule, after)
	if err != nil {
		return Quote{}, false
	}
	if next.Tier > prev.Tier {
		return next, true
	}
	return Quote{}, false
}

// NextTier returns the tier after the one holding qty and how many more units reach it.
func NextTier(schedule types.TierSchedule, qty int) (types.Tier, int, bool) {
	current, err := Resolve(schedule, qty)
	if err != nil || current.Tier >= len(schedule) {
		return types.Tier{}, 0, false
	}
	next := schedule[current.Tier]
	remaining := next.MinQuantity - qty
	if remaining < 0 {
		remaining = 0
	}
	return next, remaining, true
}

// Cents rounds an amount to two decimal places.
func Cents(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}
