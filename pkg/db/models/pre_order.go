package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/designdrop-backend/pkg/enums"
)

// PreOrder is a buyer's committed purchase of a design during its pre-order window.
// UnitPrice and AmountPaid are frozen once the order is charged.
type PreOrder struct {
	ID                 uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	DesignID           uuid.UUID            `gorm:"column:design_id;type:uuid;not null;index"`
	BuyerID            uuid.UUID            `gorm:"column:buyer_id;type:uuid;not null;uniqueIndex:ux_pre_orders_buyer_idempotency,priority:1"`
	Size               string               `gorm:"column:size;not null"`
	Quantity           int                  `gorm:"column:quantity;not null"`
	Tier               int                  `gorm:"column:tier;not null;default:1"`
	UnitPrice          decimal.Decimal      `gorm:"column:unit_price;type:numeric(12,2);not null"`
	AmountPaid         decimal.Decimal      `gorm:"column:amount_paid;type:numeric(12,2);not null"`
	Currency           enums.Currency       `gorm:"column:currency;not null;default:'USD'"`
	Status             enums.PreOrderStatus `gorm:"column:status;type:pre_order_status;not null;default:'pending'"`
	IdempotencyKey     string               `gorm:"column:idempotency_key;not null;uniqueIndex:ux_pre_orders_buyer_idempotency,priority:2"`
	ChargeID           *string              `gorm:"column:charge_id"`
	LastPaymentError   *string              `gorm:"column:last_payment_error"`
	ChargedAt          *time.Time           `gorm:"column:charged_at"`
	RefundCreditIssued bool                 `gorm:"column:refund_credit_issued;not null;default:false"`
	RefundAmount       *decimal.Decimal     `gorm:"column:refund_amount;type:numeric(12,2)"`
	FulfilledAt        *time.Time           `gorm:"column:fulfilled_at"`
	CreatedAt          time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (PreOrder) TableName() string { return "pre_orders" }

func (p *PreOrder) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
