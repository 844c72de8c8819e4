// Package payouts tracks royalty payouts owed to designers and their quarterly caps.
package payouts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/designdrop-backend/internal/notifications"
	"github.com/angelmondragon/designdrop-backend/pkg/auth"
	"github.com/angelmondragon/designdrop-backend/pkg/db/models"
	"github.com/angelmondragon/designdrop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/designdrop-backend/pkg/errors"
	"github.com/angelmondragon/designdrop-backend/pkg/logger"
	"github.com/angelmondragon/designdrop-backend/pkg/outbox"
	"github.com/angelmondragon/designdrop-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/designdrop-backend/pkg/types"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	Notify(ctx context.Context, tx *gorm.DB, userID uuid.UUID, template enums.NotificationTemplate, data any) error
}

// PayoutDTO is the API shape of a payout record.
type PayoutDTO struct {
	ID              uuid.UUID          `json:"id"`
	DesignID        uuid.UUID          `json:"design_id"`
	DesignerID      uuid.UUID          `json:"designer_id"`
	Amount          decimal.Decimal    `json:"amount"`
	RawRoyalty      decimal.Decimal    `json:"raw_royalty"`
	ForfeitedAmount decimal.Decimal    `json:"forfeited_amount"`
	Capped          bool               `json:"capped"`
	Quarter         string             `json:"quarter"`
	Status          enums.PayoutStatus `json:"status"`
	FailureReason   *string            `json:"failure_reason,omitempty"`
	PaidAt          *time.Time         `json:"paid_at,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}

// CapDTO describes a designer's bonus budget for the current quarter.
type CapDTO struct {
	DesignerID uuid.UUID       `json:"designer_id"`
	Quarter    string          `json:"quarter"`
	Cap        decimal.Decimal `json:"cap"`
	Earned     decimal.Decimal `json:"earned"`
	Headroom   decimal.Decimal `json:"headroom"`
}

// Service exposes payout disbursement and cap management.
type Service interface {
	Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*PayoutDTO, error)
	ListForDesigner(ctx context.Context, actor auth.Actor, designerID uuid.UUID, limit int) ([]PayoutDTO, error)
	MarkCompleted(ctx context.Context, actor auth.Actor, id uuid.UUID) (*PayoutDTO, error)
	MarkFailed(ctx context.Context, actor auth.Actor, id uuid.UUID, reason string) (*PayoutDTO, error)
	SetQuarterlyCap(ctx context.Context, actor auth.Actor, designerID uuid.UUID, limit decimal.Decimal) (*CapDTO, error)
	GetCap(ctx context.Context, actor auth.Actor, designerID uuid.UUID) (*CapDTO, error)
}

type service struct {
	repo       Repository
	tx         txRunner
	outbox     outbox.Emitter
	notifier   notifier
	defaultCap decimal.Decimal
	logg       *logger.Logger
	now        func() time.Time
}

// NewService builds the payout service. defaultCap applies to designers without a profile.
func NewService(repo Repository, tx txRunner, emitter outbox.Emitter, notify notifier, defaultCap decimal.Decimal, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payout repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if notify == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       repo,
		tx:         tx,
		outbox:     emitter,
		notifier:   notify,
		defaultCap: defaultCap,
		logg:       logg,
		now:        time.Now,
	}, nil
}

func (s *service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*PayoutDTO, error) {
	if err := actor.RequireUser(); err != nil {
		return nil, err
	}
	payout, err := s.load(ctx, s.repo, id, false)
	if err != nil {
		return nil, err
	}
	if payout.DesignerID != actor.UserID && !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
	}
	dto := toDTO(payout)
	return &dto, nil
}

func (s *service) ListForDesigner(ctx context.Context, actor auth.Actor, designerID uuid.UUID, limit int) ([]PayoutDTO, error) {
	if err := s.requireSelfOrAdmin(actor, designerID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	rows, err := s.repo.ListForDesigner(ctx, designerID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payouts")
	}
	out := make([]PayoutDTO, 0, len(rows))
	for i := range rows {
		out = append(out, toDTO(&rows[i]))
	}
	return out, nil
}

// MarkCompleted records a disbursed payout and notifies the designer. It is a
// no-op for payouts that are already completed.
func (s *service) MarkCompleted(ctx context.Context, actor auth.Actor, id uuid.UUID) (*PayoutDTO, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	var updated *models.PayoutRecord
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payout, err := s.load(ctx, repo, id, true)
		if err != nil {
			return err
		}
		updated = payout
		if payout.Status == enums.PayoutStatusCompleted {
			return nil
		}
		payout.Status = enums.PayoutStatusCompleted
		payout.PaidAt = &now
		payout.FailureReason = nil
		if err := repo.Save(ctx, payout); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save payout")
		}
		if err := s.emitStatus(ctx, tx, actor, payout, ""); err != nil {
			return err
		}
		if err := s.notifier.Notify(ctx, tx, payout.DesignerID, enums.NotificationPayoutSent, notifications.PayoutSentData{
			PayoutID: payout.ID,
			DesignID: payout.DesignID,
			Amount:   payout.Amount,
			Quarter:  payout.Quarter,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue payout notification")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"payout_id": updated.ID.String(),
		"design_id": updated.DesignID.String(),
		"amount":    updated.Amount.StringFixed(2),
	}), "payout completed")
	dto := toDTO(updated)
	return &dto, nil
}

func (s *service) MarkFailed(ctx context.Context, actor auth.Actor, id uuid.UUID, reason string) (*PayoutDTO, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "failure reason required")
	}
	var updated *models.PayoutRecord
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payout, err := s.load(ctx, repo, id, true)
		if err != nil {
			return err
		}
		if payout.Status == enums.PayoutStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payout already completed")
		}
		payout.Status = enums.PayoutStatusFailed
		payout.FailureReason = &reason
		if err := repo.Save(ctx, payout); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save payout")
		}
		updated = payout
		return s.emitStatus(ctx, tx, actor, payout, reason)
	})
	if err != nil {
		return nil, err
	}
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"payout_id": updated.ID.String(),
		"reason":    reason,
	}), "payout failed")
	dto := toDTO(updated)
	return &dto, nil
}

// SetQuarterlyCap sets a designer's cap; the amount already earned this quarter is kept.
func (s *service) SetQuarterlyCap(ctx context.Context, actor auth.Actor, designerID uuid.UUID, limit decimal.Decimal) (*CapDTO, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	if designerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "designer id required")
	}
	if limit.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quarterly cap must not be negative")
	}
	profile := &models.DesignerProfile{
		UserID:                    designerID,
		QuarterlyBonusCap:         limit.Round(2),
		CurrentQuarterBonusEarned: decimal.Zero,
		BonusQuarter:              types.QuarterOf(s.now()),
	}
	if err := s.repo.UpsertCap(ctx, profile); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set quarterly cap")
	}
	return s.GetCap(ctx, actor, designerID)
}

// GetCap reports the cap view for the current quarter. A profile last touched
// in an earlier quarter reads as nothing earned.
func (s *service) GetCap(ctx context.Context, actor auth.Actor, designerID uuid.UUID) (*CapDTO, error) {
	if err := s.requireSelfOrAdmin(actor, designerID); err != nil {
		return nil, err
	}
	profile, err := s.repo.FindProfile(ctx, designerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load designer profile")
	}
	quarter := types.QuarterOf(s.now())
	view := &CapDTO{DesignerID: designerID, Quarter: quarter, Cap: s.defaultCap, Earned: decimal.Zero}
	if profile != nil {
		view.Cap = profile.QuarterlyBonusCap
		if profile.BonusQuarter == quarter {
			view.Earned = profile.CurrentQuarterBonusEarned
		}
	}
	view.Headroom = decimal.Max(view.Cap.Sub(view.Earned), decimal.Zero)
	return view, nil
}

func (s *service) emitStatus(ctx context.Context, tx *gorm.DB, actor auth.Actor, payout *models.PayoutRecord, reason string) error {
	var ref *outbox.ActorRef
	if actor.UserID != uuid.Nil {
		ref = &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)}
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPayoutStatusChanged,
		AggregateType: enums.AggregatePayout,
		AggregateID:   payout.ID,
		Actor:         ref,
		Data: payloads.PayoutStatusChangedEvent{
			PayoutID:   payout.ID,
			DesignID:   payout.DesignID,
			DesignerID: payout.DesignerID,
			Status:     payout.Status,
			Amount:     payout.Amount,
			Reason:     reason,
		},
		OccurredAt: s.now().UTC(),
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue payout status")
	}
	return nil
}

func (s *service) requireSelfOrAdmin(actor auth.Actor, designerID uuid.UUID) error {
	if err := actor.RequireUser(); err != nil {
		return err
	}
	if actor.UserID != designerID && !actor.IsAdmin() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "payouts are only visible to their designer")
	}
	return nil
}

func (s *service) load(ctx context.Context, repo Repository, id uuid.UUID, lock bool) (*models.PayoutRecord, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id required")
	}
	var (
		payout *models.PayoutRecord
		err    error
	)
	if lock {
		payout, err = repo.FindByIDForUpdate(ctx, id)
	} else {
		payout, err = repo.FindByID(ctx, id)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
	}
	return payout, nil
}

func toDTO(p *models.PayoutRecord) PayoutDTO {
	return PayoutDTO{
		ID:              p.ID,
		DesignID:        p.DesignID,
		DesignerID:      p.DesignerID,
		Amount:          p.Amount,
		RawRoyalty:      p.RawRoyalty,
		ForfeitedAmount: p.ForfeitedAmount,
		Capped:          p.Capped,
		Quarter:         p.Quarter,
		Status:          p.Status,
		FailureReason:   p.FailureReason,
		PaidAt:          p.PaidAt,
		CreatedAt:       p.CreatedAt,
	}
}
