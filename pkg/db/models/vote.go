package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/designdrop-backend/pkg/enums"
)

// Vote is one member's current opinion on a design; (design_id, voter_id) is unique.
type Vote struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	DesignID  uuid.UUID      `gorm:"column:design_id;type:uuid;not null;uniqueIndex:ux_votes_design_voter,priority:1"`
	VoterID   uuid.UUID      `gorm:"column:voter_id;type:uuid;not null;uniqueIndex:ux_votes_design_voter,priority:2"`
	Type      enums.VoteType `gorm:"column:vote_type;type:vote_type;not null"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (Vote) TableName() string { return "votes" }

func (v *Vote) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
