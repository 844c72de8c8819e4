package votes

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/designdrop-backend/pkg/db"
	"github.com/angelmondragon/designdrop-backend/pkg/db/models"
	"github.com/angelmondragon/designdrop-backend/pkg/enums"
)

// Repository persists votes and the cached vote count on designs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindDesignForUpdate(ctx context.Context, designID uuid.UUID) (*models.DesignSubmission, error)
	FindDesign(ctx context.Context, designID uuid.UUID) (*models.DesignSubmission, error)
	Find(ctx context.Context, designID, voterID uuid.UUID) (*models.Vote, error)
	Create(ctx context.Context, vote *models.Vote) error
	UpdateType(ctx context.Context, voteID uuid.UUID, voteType enums.VoteType) error
	Delete(ctx context.Context, voteID uuid.UUID) error
	Counts(ctx context.Context, designID uuid.UUID) (Counts, error)
	SetVoteCount(ctx context.Context, designID uuid.UUID, count int) error
}

// Counts is the raw vote split of a design.
type Counts struct {
	Upvotes   int
	Downvotes int
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a vote repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindDesignForUpdate(ctx context.Context, designID uuid.UUID) (*models.DesignSubmission, error) {
	var design models.DesignSubmission
	if err := db.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", designID).Take(&design).Error; err != nil {
		return nil, err
	}
	return &design, nil
}

func (r *repository) FindDesign(ctx context.Context, designID uuid.UUID) (*models.DesignSubmission, error) {
	var design models.DesignSubmission
	if err := r.db.WithContext(ctx).Where("id = ?", designID).Take(&design).Error; err != nil {
		return nil, err
	}
	return &design, nil
}

func (r *repository) Find(ctx context.Context, designID, voterID uuid.UUID) (*models.Vote, error) {
	var vote models.Vote
	err := r.db.WithContext(ctx).
		Where("design_id = ? AND voter_id = ?", designID, voterID).
		Take(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vote, nil
}

func (r *repository) Create(ctx context.Context, vote *models.Vote) error {
	return r.db.WithContext(ctx).Create(vote).Error
}

func (r *repository) UpdateType(ctx context.Context, voteID uuid.UUID, voteType enums.VoteType) error {
	return r.db.WithContext(ctx).
		Model(&models.Vote{}).
		Where("id = ?", voteID).
		Update("vote_type", voteType).Error
}

func (r *repository) Delete(ctx context.Context, voteID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", voteID).Delete(&models.Vote{}).Error
}

func (r *repository) Counts(ctx context.Context, designID uuid.UUID) (Counts, error) {
	var rows []struct {
		VoteType enums.VoteType
		Total    int
	}
	if err := r.db.WithContext(ctx).
		Model(&models.Vote{}).
		Select("vote_type, COUNT(*) AS total").
		Where("design_id = ?", designID).
		Group("vote_type").
		Scan(&rows).Error; err != nil {
		return Counts{}, err
	}
	var counts Counts
	for _, row := range rows {
		switch row.VoteType {
		case enums.VoteTypeUpvote:
			counts.Upvotes = row.Total
		case enums.VoteTypeDownvote:
			counts.Downvotes = row.Total
		}
	}
	return counts, nil
}

func (r *repository) SetVoteCount(ctx context.Context, designID uuid.UUID, count int) error {
	return r.db.WithContext(ctx).
		Model(&models.DesignSubmission{}).
		Where("id = ?", designID).
		UpdateColumn("vote_count", count).Error
}
