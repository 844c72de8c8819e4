package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/designdrop-backend/pkg/enums"
)

// PayoutRecord is the royalty owed to a designer for one settled design.
type PayoutRecord struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	DesignID        uuid.UUID          `gorm:"column:design_id;type:uuid;not null;uniqueIndex:ux_payout_records_design_designer,priority:1"`
	DesignerID      uuid.UUID          `gorm:"column:designer_id;type:uuid;not null;uniqueIndex:ux_payout_records_design_designer,priority:2"`
	Amount          decimal.Decimal    `gorm:"column:amount;type:numeric(12,2);not null"`
	RawRoyalty      decimal.Decimal    `gorm:"column:raw_royalty;type:numeric(12,2);not null"`
	ForfeitedAmount decimal.Decimal    `gorm:"column:forfeited_amount;type:numeric(12,2);not null;default:0"`
	Capped          bool               `gorm:"column:capped;not null;default:false"`
	Quarter         string             `gorm:"column:quarter;not null"`
	Status          enums.PayoutStatus `gorm:"column:status;type:payout_status;not null;default:'pending'"`
	FailureReason   *string            `gorm:"column:failure_reason"`
	PaidAt          *time.Time         `gorm:"column:paid_at"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (PayoutRecord) TableName() string { return "payout_records" }

func (p *PayoutRecord) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
