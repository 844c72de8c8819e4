package preorders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/designdrop-backend/pkg/db"
	"github.com/angelmondragon/designdrop-backend/pkg/db/models"
	"github.com/angelmondragon/designdrop-backend/pkg/enums"
	"github.com/angelmondragon/designdrop-backend/pkg/pagination"
)

// Repository persists pre-orders and the pricing fields they update on designs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.PreOrder) error
	Save(ctx context.Context, order *models.PreOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PreOrder, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.PreOrder, error)
	FindByBuyerKey(ctx context.Context, buyerID uuid.UUID, key string) (*models.PreOrder, error)
	ConfirmedQuantity(ctx context.Context, designID uuid.UUID) (int, error)
	ListByDesignForUpdate(ctx context.Context, designID uuid.UUID, statuses ...enums.PreOrderStatus) ([]models.PreOrder, error)
	ListForBuyer(ctx context.Context, buyerID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.PreOrder, *pagination.Cursor, error)
	DeleteStalePending(ctx context.Context, cutoff time.Time, limit int) (int64, error)
	FindDesign(ctx context.Context, id uuid.UUID) (*models.DesignSubmission, error)
	FindDesignForUpdate(ctx context.Context, id uuid.UUID) (*models.DesignSubmission, error)
	SetActiveTier(ctx context.Context, designID uuid.UUID, tier int) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a pre-order repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.PreOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) Save(ctx context.Context, order *models.PreOrder) error {
	return r.db.WithContext(ctx).Save(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PreOrder, error) {
	var order models.PreOrder
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.PreOrder, error) {
	var order models.PreOrder
	if err := db.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).Take(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByBuyerKey(ctx context.Context, buyerID uuid.UUID, key string) (*models.PreOrder, error) {
	var order models.PreOrder
	err := r.db.WithContext(ctx).
		Where("buyer_id = ? AND idempotency_key = ?", buyerID, key).
		Take(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ConfirmedQuantity sums the units of charged and fulfilled orders of a design.
func (r *repository) ConfirmedQuantity(ctx context.Context, designID uuid.UUID) (int, error) {
	var total int
	err := r.db.WithContext(ctx).
		Model(&models.PreOrder{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("design_id = ? AND status IN ?", designID, enums.ConfirmedPreOrderStatuses).
		Scan(&total).Error
	return total, err
}

func (r *repository) ListByDesignForUpdate(ctx context.Context, designID uuid.UUID, statuses ...enums.PreOrderStatus) ([]models.PreOrder, error) {
	query := db.ForUpdate(r.db.WithContext(ctx)).Where("design_id = ?", designID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	var rows []models.PreOrder
	if err := query.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListForBuyer(ctx context.Context, buyerID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.PreOrder, *pagination.Cursor, error) {
	var rows []models.PreOrder
	err := r.db.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Scopes(pagination.Newest(limit, cursor)).
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(rows, limit)
	return page, next, nil
}

// DeleteStalePending removes never-captured orders older than cutoff whose
// campaign is no longer taking orders.
func (r *repository) DeleteStalePending(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	open := r.db.Model(&models.DesignSubmission{}).
		Select("id").
		Where("status = ?", enums.SubmissionStatusInProduction)

	var ids []uuid.UUID
	query := r.db.WithContext(ctx).
		Model(&models.PreOrder{}).
		Where("status = ? AND created_at < ?", enums.PreOrderStatusPending, cutoff).
		Where("design_id NOT IN (?)", open).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("id IN ? AND status = ?", ids, enums.PreOrderStatusPending).
		Delete(&models.PreOrder{})
	return res.RowsAffected, res.Error
}

func (r *repository) FindDesign(ctx context.Context, id uuid.UUID) (*models.DesignSubmission, error) {
	var design models.DesignSubmission
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&design).Error; err != nil {
		return nil, err
	}
	return &design, nil
}

func (r *repository) FindDesignForUpdate(ctx context.Context, id uuid.UUID) (*models.DesignSubmission, error) {
	var design models.DesignSubmission
	if err := db.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).Take(&design).Error; err != nil {
		return nil, err
	}
	return &design, nil
}

func (r *repository) SetActiveTier(ctx context.Context, designID uuid.UUID, tier int) error {
	return r.db.WithContext(ctx).
		Model(&models.DesignSubmission{}).
		Where("id = ?", designID).
		UpdateColumn("current_active_tier", tier).Error
}
