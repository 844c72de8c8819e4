package ledger

import (
	"context"
	"errors"

	"github.com/angelmondragon/designdrop-backend/pkg/db/models"
	"github.com/angelmondragon/designdrop-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Repository manages persistence for store credit entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.StoreCreditEntry) error
	FindByOrderReason(ctx context.Context, preOrderID uuid.UUID, reason enums.CreditReason) (*models.StoreCreditEntry, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.StoreCreditEntry, error)
	SumByUser(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.StoreCreditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindByOrderReason(ctx context.Context, preOrderID uuid.UUID, reason enums.CreditReason) (*models.StoreCreditEntry, error) {
	var entry models.StoreCreditEntry
	err := r.db.WithContext(ctx).
		Where("pre_order_id = ? AND reason = ?", preOrderID, reason).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.StoreCreditEntry, error) {
	var entries []models.StoreCreditEntry
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) SumByUser(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&models.StoreCreditEntry{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("user_id = ?", userID).
		Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	return row.Total, nil
}
