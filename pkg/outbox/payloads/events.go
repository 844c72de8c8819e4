package payloads

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/designdrop-backend/pkg/enums"
)

// SubmissionStatusChangedEvent is emitted on every lifecycle transition of a design.
type SubmissionStatusChangedEvent struct {
	DesignID   uuid.UUID              `json:"design_id"`
	DesignerID uuid.UUID              `json:"designer_id"`
	From       enums.SubmissionStatus `json:"from"`
	To         enums.SubmissionStatus `json:"to"`
	Reason     string                 `json:"reason,omitempty"`
	Automatic  bool                   `json:"automatic"`
	ChangedAt  time.Time              `json:"changed_at"`
}

// VoteCastEvent carries the refreshed tally after a vote toggle.
type VoteCastEvent struct {
	DesignID  uuid.UUID       `json:"design_id"`
	VoterID   uuid.UUID       `json:"voter_id"`
	VoteType  *enums.VoteType `json:"vote_type,omitempty"`
	Upvotes   int             `json:"upvotes"`
	Downvotes int             `json:"downvotes"`
	NetScore  int             `json:"net_score"`
}

// OrderCapturedEvent is emitted once a pre-order is charged.
type OrderCapturedEvent struct {
	PreOrderID        uuid.UUID       `json:"pre_order_id"`
	DesignID          uuid.UUID       `json:"design_id"`
	BuyerID           uuid.UUID       `json:"buyer_id"`
	Quantity          int             `json:"quantity"`
	Tier              int             `json:"tier"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	AmountPaid        decimal.Decimal `json:"amount_paid"`
	ConfirmedQuantity int             `json:"confirmed_quantity"`
	ChargeID          string          `json:"charge_id"`
}

// OrderCaptureFailedEvent records a declined or timed out capture.
type OrderCaptureFailedEvent struct {
	PreOrderID uuid.UUID `json:"pre_order_id"`
	DesignID   uuid.UUID `json:"design_id"`
	BuyerID    uuid.UUID `json:"buyer_id"`
	Reason     string    `json:"reason"`
}

// OrderRefundedEvent records store credit issued against a pre-order.
type OrderRefundedEvent struct {
	PreOrderID   uuid.UUID          `json:"pre_order_id"`
	DesignID     uuid.UUID          `json:"design_id"`
	BuyerID      uuid.UUID          `json:"buyer_id"`
	RefundAmount decimal.Decimal    `json:"refund_amount"`
	Reason       enums.CreditReason `json:"reason"`
}

// TierAchievedEvent is emitted when the confirmed quantity crosses into a cheaper tier.
type TierAchievedEvent struct {
	DesignID          uuid.UUID       `json:"design_id"`
	PreviousTier      int             `json:"previous_tier"`
	Tier              int             `json:"tier"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	ConfirmedQuantity int             `json:"confirmed_quantity"`
}

// SettlementCompletedEvent summarises a design's settlement.
type SettlementCompletedEvent struct {
	DesignID        uuid.UUID       `json:"design_id"`
	DesignerID      uuid.UUID       `json:"designer_id"`
	FinalTier       int             `json:"final_tier"`
	FinalUnitPrice  decimal.Decimal `json:"final_unit_price"`
	FinalQuantity   int             `json:"final_quantity"`
	RefundsIssued   int             `json:"refunds_issued"`
	RefundTotal     decimal.Decimal `json:"refund_total"`
	RoyaltyAmount   decimal.Decimal `json:"royalty_amount"`
	ForfeitedAmount decimal.Decimal `json:"forfeited_amount"`
	Capped          bool            `json:"capped"`
	SettledAt       time.Time       `json:"settled_at"`
}

// PayoutStatusChangedEvent is emitted when a royalty payout is disbursed or fails.
type PayoutStatusChangedEvent struct {
	PayoutID   uuid.UUID          `json:"payout_id"`
	DesignID   uuid.UUID          `json:"design_id"`
	DesignerID uuid.UUID          `json:"designer_id"`
	Status     enums.PayoutStatus `json:"status"`
	Amount     decimal.Decimal    `json:"amount"`
	Reason     string             `json:"reason,omitempty"`
}

// NotificationRequestedEvent asks the notification worker to deliver a templated message.
type NotificationRequestedEvent struct {
	UserID   uuid.UUID                  `json:"user_id"`
	Template enums.NotificationTemplate `json:"template"`
	Data     json.RawMessage            `json:"data,omitempty"`
}
