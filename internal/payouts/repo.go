package payouts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/designdrop-backend/pkg/db"
	"github.com/angelmondragon/designdrop-backend/pkg/db/models"
)

// Repository persists royalty payouts and designer cap profiles.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.PayoutRecord, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.PayoutRecord, error)
	Save(ctx context.Context, payout *models.PayoutRecord) error
	ListForDesigner(ctx context.Context, designerID uuid.UUID, limit int) ([]models.PayoutRecord, error)
	FindProfile(ctx context.Context, userID uuid.UUID) (*models.DesignerProfile, error)
	UpsertCap(ctx context.Context, profile *models.DesignerProfile) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payout repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PayoutRecord, error) {
	var payout models.PayoutRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&payout).Error; err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.PayoutRecord, error) {
	var payout models.PayoutRecord
	if err := db.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).Take(&payout).Error; err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) Save(ctx context.Context, payout *models.PayoutRecord) error {
	return r.db.WithContext(ctx).Save(payout).Error
}

func (r *repository) ListForDesigner(ctx context.Context, designerID uuid.UUID, limit int) ([]models.PayoutRecord, error) {
	var rows []models.PayoutRecord
	query := r.db.WithContext(ctx).
		Where("designer_id = ?", designerID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindProfile(ctx context.Context, userID uuid.UUID) (*models.DesignerProfile, error) {
	var profile models.DesignerProfile
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpsertCap writes the cap without touching the earned counter of an existing profile.
func (r *repository) UpsertCap(ctx context.Context, profile *models.DesignerProfile) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quarterly_bonus_cap", "updated_at"}),
		}).
		Create(profile).Error
}
