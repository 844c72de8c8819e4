package preorders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/designdrop-backend/pkg/db/models"
	"github.com/angelmondragon/designdrop-backend/pkg/enums"
)

// PlaceOrderInput is the buyer's pre-order request.
type PlaceOrderInput struct {
	DesignID       uuid.UUID
	Size           string
	Quantity       int
	ClaimedTotal   *decimal.Decimal
	IdempotencyKey string
	SourceID       string
}

// PlaceOrderResult wraps the stored order with request-level flags.
type PlaceOrderResult struct {
	Order         OrderDTO `json:"order"`
	PriceAdjusted bool     `json:"price_adjusted"`
	Replayed      bool     `json:"replayed"`
}

// ListParams pages a buyer's orders.
type ListParams struct {
	Limit  int
	Cursor string
}

// ListResult is a page of orders plus the cursor of the next page.
type ListResult struct {
	Items  []OrderDTO `json:"items"`
	Cursor string     `json:"cursor,omitempty"`
}

// OrderDTO is the API shape of a pre-order.
type OrderDTO struct {
	ID                 uuid.UUID            `json:"id"`
	DesignID           uuid.UUID            `json:"design_id"`
	BuyerID            uuid.UUID            `json:"buyer_id"`
	Size               string               `json:"size"`
	Quantity           int                  `json:"quantity"`
	Tier               int                  `json:"tier"`
	UnitPrice          decimal.Decimal      `json:"unit_price"`
	AmountPaid         decimal.Decimal      `json:"amount_paid"`
	Currency           enums.Currency       `json:"currency"`
	Status             enums.PreOrderStatus `json:"status"`
	ChargeID           *string              `json:"charge_id,omitempty"`
	LastPaymentError   *string              `json:"last_payment_error,omitempty"`
	ChargedAt          *time.Time           `json:"charged_at,omitempty"`
	RefundCreditIssued bool                 `json:"refund_credit_issued"`
	RefundAmount       *decimal.Decimal     `json:"refund_amount,omitempty"`
	FulfilledAt        *time.Time           `json:"fulfilled_at,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
}

// ToDTO maps a stored order to its API shape.
func ToDTO(order *models.PreOrder) OrderDTO {
	return OrderDTO{
		ID:                 order.ID,
		DesignID:           order.DesignID,
		BuyerID:            order.BuyerID,
		Size:               order.Size,
		Quantity:           order.Quantity,
		Tier:               order.Tier,
		UnitPrice:          order.UnitPrice,
		AmountPaid:         order.AmountPaid,
		Currency:           order.Currency,
		Status:             order.Status,
		ChargeID:           order.ChargeID,
		LastPaymentError:   order.LastPaymentError,
		ChargedAt:          order.ChargedAt,
		RefundCreditIssued: order.RefundCreditIssued,
		RefundAmount:       order.RefundAmount,
		FulfilledAt:        order.FulfilledAt,
		CreatedAt:          order.CreatedAt,
	}
}
