package submissions

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/designdrop-backend/pkg/db/models"
	"github.com/angelmondragon/designdrop-backend/pkg/enums"
	"github.com/angelmondragon/designdrop-backend/pkg/types"
)

// DraftInput carries the designer-editable fields of a submission.
type DraftInput struct {
	Title       string
	Description string
	Category    string
	Materials   []string
	ImageURLs   []string
}

// UpdateDraftInput holds optional draft edits.
type UpdateDraftInput struct {
	Title       *string
	Description *string
	Category    *string
	Materials   *[]string
	ImageURLs   *[]string
}

// PricingInput configures the pre-order campaign before launch.
type PricingInput struct {
	TierSchedule  types.TierSchedule
	BaseUnitCost  decimal.Decimal
	RoyaltyRate   *decimal.Decimal
	GoalThreshold *int
}

// ListParams configures a paginated design listing.
type ListParams struct {
	Status     *enums.SubmissionStatus
	Statuses   []enums.SubmissionStatus
	DesignerID *uuid.UUID
	Limit      int
	Cursor     string
}

// ListResult wraps a design page and the cursor for the next one.
type ListResult struct {
	Items  []DesignDTO `json:"items"`
	Cursor string      `json:"cursor"`
}

// DesignDTO is the API shape of a design submission.
type DesignDTO struct {
	ID                uuid.UUID              `json:"id"`
	DesignerID        uuid.UUID              `json:"designer_id"`
	Title             string                 `json:"title"`
	Description       string                 `json:"description"`
	Category          string                 `json:"category"`
	Materials         []string               `json:"materials"`
	ImageURLs         []string               `json:"image_urls"`
	Status            enums.SubmissionStatus `json:"status"`
	VoteCount         int                    `json:"vote_count"`
	GoalThreshold     int                    `json:"goal_threshold"`
	TierSchedule      types.TierSchedule     `json:"tier_schedule,omitempty"`
	CurrentActiveTier *int                   `json:"current_active_tier,omitempty"`
	BaseUnitCost      decimal.Decimal        `json:"base_unit_cost"`
	RoyaltyRate       decimal.Decimal        `json:"royalty_rate"`
	RejectionReason   *string                `json:"rejection_reason,omitempty"`
	SubmittedAt       *time.Time             `json:"submitted_at,omitempty"`
	VotingStartedAt   *time.Time             `json:"voting_started_at,omitempty"`
	VotingEndsAt      *time.Time             `json:"voting_ends_at,omitempty"`
	PreorderStartedAt *time.Time             `json:"preorder_started_at,omitempty"`
	PreorderEndsAt    *time.Time             `json:"preorder_ends_at,omitempty"`
	CompletedAt       *time.Time             `json:"completed_at,omitempty"`
	FinalUnitPrice    *decimal.Decimal       `json:"final_unit_price,omitempty"`
	FinalQuantity     *int                   `json:"final_quantity,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

// ToDTO maps the model to its API shape.
func ToDTO(d *models.DesignSubmission) DesignDTO {
	return DesignDTO{
		ID:                d.ID,
		DesignerID:        d.DesignerID,
		Title:             d.Title,
		Description:       d.Description,
		Category:          d.Category,
		Materials:         nonNil(d.Materials),
		ImageURLs:         nonNil(d.ImageURLs),
		Status:            d.Status,
		VoteCount:         d.VoteCount,
		GoalThreshold:     d.GoalThreshold,
		TierSchedule:      d.TierSchedule,
		CurrentActiveTier: d.CurrentActiveTier,
		BaseUnitCost:      d.BaseUnitCost,
		RoyaltyRate:       d.RoyaltyRate,
		RejectionReason:   d.RejectionReason,
		SubmittedAt:       d.SubmittedAt,
		VotingStartedAt:   d.VotingStartedAt,
		VotingEndsAt:      d.VotingEndsAt,
		PreorderStartedAt: d.PreorderStartedAt,
		PreorderEndsAt:    d.PreorderEndsAt,
		CompletedAt:       d.CompletedAt,
		FinalUnitPrice:    d.FinalUnitPrice,
		FinalQuantity:     d.FinalQuantity,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
