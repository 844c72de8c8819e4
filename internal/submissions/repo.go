package submissions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/designdrop-backend/pkg/db"
	"github.com/angelmondragon/designdrop-backend/pkg/db/models"
	"github.com/angelmondragon/designdrop-backend/pkg/enums"
	"github.com/angelmondragon/designdrop-backend/pkg/pagination"
)

// Repository persists design submissions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, design *models.DesignSubmission) error
	Save(ctx context.Context, design *models.DesignSubmission) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.DesignSubmission, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.DesignSubmission, error)
	List(ctx context.Context, filters ListFilters, limit int, cursor *pagination.Cursor) ([]models.DesignSubmission, *pagination.Cursor, error)
	ListVotingDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	ListPreorderDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

// ListFilters narrows a design listing.
type ListFilters struct {
	Status     *enums.SubmissionStatus
	Statuses   []enums.SubmissionStatus
	DesignerID *uuid.UUID
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a submissions repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, design *models.DesignSubmission) error {
	return r.db.WithContext(ctx).Create(design).Error
}

func (r *repository) Save(ctx context.Context, design *models.DesignSubmission) error {
	return r.db.WithContext(ctx).Save(design).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.DesignSubmission, error) {
	var design models.DesignSubmission
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&design).Error; err != nil {
		return nil, err
	}
	return &design, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.DesignSubmission, error) {
	var design models.DesignSubmission
	if err := db.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).Take(&design).Error; err != nil {
		return nil, err
	}
	return &design, nil
}

func (r *repository) List(ctx context.Context, filters ListFilters, limit int, cursor *pagination.Cursor) ([]models.DesignSubmission, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.DesignSubmission{})
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if len(filters.Statuses) > 0 {
		query = query.Where("status IN ?", filters.Statuses)
	}
	if filters.DesignerID != nil {
		query = query.Where("designer_id = ?", *filters.DesignerID)
	}

	var rows []models.DesignSubmission
	if err := query.Scopes(pagination.Newest(limit, cursor)).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(rows, limit)
	return page, next, nil
}

func (r *repository) ListVotingDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	return r.listDue(ctx, enums.SubmissionStatusCommunityVoting, "voting_ends_at", now, limit)
}

func (r *repository) ListPreorderDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	return r.listDue(ctx, enums.SubmissionStatusInProduction, "preorder_ends_at", now, limit)
}

func (r *repository) listDue(ctx context.Context, status enums.SubmissionStatus, column string, now time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := r.db.WithContext(ctx).
		Model(&models.DesignSubmission{}).
		Where("status = ?", status).
		Where(column+" IS NOT NULL AND "+column+" <= ?", now).
		Order(column + " ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
