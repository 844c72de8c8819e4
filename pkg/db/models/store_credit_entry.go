package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/designdrop-backend/pkg/enums"
)

// StoreCreditEntry is an append-only credit to a buyer's store balance.
// (pre_order_id, reason) is unique so a refund can never be issued twice.
type StoreCreditEntry struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	UserID     uuid.UUID          `gorm:"column:user_id;type:uuid;not null;index"`
	PreOrderID *uuid.UUID         `gorm:"column:pre_order_id;type:uuid;uniqueIndex:ux_store_credit_order_reason,priority:1"`
	DesignID   *uuid.UUID         `gorm:"column:design_id;type:uuid"`
	Reason     enums.CreditReason `gorm:"column:reason;type:credit_reason;not null;uniqueIndex:ux_store_credit_order_reason,priority:2"`
	Amount     decimal.Decimal    `gorm:"column:amount;type:numeric(12,2);not null"`
	Note       *string            `gorm:"column:note"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (StoreCreditEntry) TableName() string { return "store_credit_entries" }

func (s *StoreCreditEntry) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
