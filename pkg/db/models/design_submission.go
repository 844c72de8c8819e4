package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/designdrop-backend/pkg/enums"
	"github.com/angelmondragon/designdrop-backend/pkg/types"
)

// DesignSubmission is a designer's apparel design moving through review, voting and pre-order.
type DesignSubmission struct {
	ID                uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	DesignerID        uuid.UUID                   `gorm:"column:designer_id;type:uuid;not null"`
	Title             string                      `gorm:"column:title;not null;default:''"`
	Description       string                      `gorm:"column:description;not null;default:''"`
	Category          string                      `gorm:"column:category;not null;default:''"`
	Materials         datatypes.JSONSlice[string] `gorm:"column:materials;type:jsonb"`
	ImageURLs         datatypes.JSONSlice[string] `gorm:"column:image_urls;type:jsonb"`
	Status            enums.SubmissionStatus      `gorm:"column:status;type:submission_status;not null;default:'draft'"`
	VoteCount         int                         `gorm:"column:vote_count;not null;default:0"`
	GoalThreshold     int                         `gorm:"column:goal_threshold;not null;default:100"`
	TierSchedule      types.TierSchedule          `gorm:"column:tier_schedule;type:jsonb"`
	CurrentActiveTier *int                        `gorm:"column:current_active_tier"`
	BaseUnitCost      decimal.Decimal             `gorm:"column:base_unit_cost;type:numeric(12,2);not null;default:0"`
	RoyaltyRate       decimal.Decimal             `gorm:"column:royalty_rate;type:numeric(5,4);not null;default:0"`
	RejectionReason   *string                     `gorm:"column:rejection_reason"`
	SubmittedAt       *time.Time                  `gorm:"column:submitted_at"`
	VotingStartedAt   *time.Time                  `gorm:"column:voting_started_at"`
	VotingEndsAt      *time.Time                  `gorm:"column:voting_ends_at"`
	PreorderStartedAt *time.Time                  `gorm:"column:preorder_started_at"`
	PreorderEndsAt    *time.Time                  `gorm:"column:preorder_ends_at"`
	CompletedAt       *time.Time                  `gorm:"column:completed_at"`
	FinalUnitPrice    *decimal.Decimal            `gorm:"column:final_unit_price;type:numeric(12,2)"`
	FinalQuantity     *int                        `gorm:"column:final_quantity"`
	CreatedAt         time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}

func (DesignSubmission) TableName() string { return "design_submissions" }

func (d *DesignSubmission) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
