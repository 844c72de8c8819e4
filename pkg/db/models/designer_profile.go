package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DesignerProfile tracks a designer's quarterly royalty bonus budget.
type DesignerProfile struct {
	UserID                    uuid.UUID       `gorm:"column:user_id;type:uuid;primaryKey"`
	QuarterlyBonusCap         decimal.Decimal `gorm:"column:quarterly_bonus_cap;type:numeric(12,2);not null"`
	CurrentQuarterBonusEarned decimal.Decimal `gorm:"column:current_quarter_bonus_earned;type:numeric(12,2);not null;default:0"`
	BonusQuarter              string          `gorm:"column:bonus_quarter;not null;default:''"`
	CreatedAt                 time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                 time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (DesignerProfile) TableName() string { return "designer_profiles" }
