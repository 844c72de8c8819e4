package settlement

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/designdrop-backend/pkg/db"
	"github.com/angelmondragon/designdrop-backend/pkg/db/models"
	"github.com/angelmondragon/designdrop-backend/pkg/enums"
)

// Repository reads and writes every row a settlement touches.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindDesignForUpdate(ctx context.Context, id uuid.UUID) (*models.DesignSubmission, error)
	SaveDesign(ctx context.Context, design *models.DesignSubmission) error
	ConfirmedQuantity(ctx context.Context, designID uuid.UUID) (int, error)
	ListChargedForUpdate(ctx context.Context, designID uuid.UUID) ([]models.PreOrder, error)
	SaveOrder(ctx context.Context, order *models.PreOrder) error
	RefundTotals(ctx context.Context, designID uuid.UUID) (int, decimal.Decimal, error)
	FindProfileForUpdate(ctx context.Context, userID uuid.UUID) (*models.DesignerProfile, error)
	CreateProfile(ctx context.Context, profile *models.DesignerProfile) error
	SaveProfile(ctx context.Context, profile *models.DesignerProfile) error
	FindPayout(ctx context.Context, designID, designerID uuid.UUID) (*models.PayoutRecord, error)
	CreatePayout(ctx context.Context, payout *models.PayoutRecord) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a settlement repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindDesignForUpdate(ctx context.Context, id uuid.UUID) (*models.DesignSubmission, error) {
	var design models.DesignSubmission
	if err := db.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).Take(&design).Error; err != nil {
		return nil, err
	}
	return &design, nil
}

func (r *repository) SaveDesign(ctx context.Context, design *models.DesignSubmission) error {
	return r.db.WithContext(ctx).Save(design).Error
}

func (r *repository) ConfirmedQuantity(ctx context.Context, designID uuid.UUID) (int, error) {
	var total int
	err := r.db.WithContext(ctx).
		Model(&models.PreOrder{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("design_id = ? AND status IN ?", designID, enums.ConfirmedPreOrderStatuses).
		Scan(&total).Error
	return total, err
}

func (r *repository) ListChargedForUpdate(ctx context.Context, designID uuid.UUID) ([]models.PreOrder, error) {
	var rows []models.PreOrder
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("design_id = ? AND status = ?", designID, enums.PreOrderStatusCharged).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) SaveOrder(ctx context.Context, order *models.PreOrder) error {
	return r.db.WithContext(ctx).Save(order).Error
}

// RefundTotals counts the tier refunds already issued for a design.
func (r *repository) RefundTotals(ctx context.Context, designID uuid.UUID) (int, decimal.Decimal, error) {
	var row struct {
		Issued int
		Total  decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&models.StoreCreditEntry{}).
		Select("COUNT(*) AS issued, COALESCE(SUM(amount), 0) AS total").
		Where("design_id = ? AND reason = ?", designID, enums.CreditReasonTierRefund).
		Scan(&row).Error
	return row.Issued, row.Total, err
}

func (r *repository) FindProfileForUpdate(ctx context.Context, userID uuid.UUID) (*models.DesignerProfile, error) {
	var profile models.DesignerProfile
	err := db.ForUpdate(r.db.WithContext(ctx)).Where("user_id = ?", userID).Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repository) CreateProfile(ctx context.Context, profile *models.DesignerProfile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *repository) SaveProfile(ctx context.Context, profile *models.DesignerProfile) error {
	return r.db.WithContext(ctx).Save(profile).Error
}

func (r *repository) FindPayout(ctx context.Context, designID, designerID uuid.UUID) (*models.PayoutRecord, error) {
	var payout models.PayoutRecord
	err := r.db.WithContext(ctx).
		Where("design_id = ? AND designer_id = ?", designID, designerID).
		Take(&payout).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) CreatePayout(ctx context.Context, payout *models.PayoutRecord) error {
	return r.db.WithContext(ctx).Create(payout).Error
}
