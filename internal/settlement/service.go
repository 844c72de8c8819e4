// Package settlement closes a pre-order campaign: it fixes the final tier,
// refunds tier differences as store credit and books the designer royalty
// against the quarterly cap.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/designdrop-backend/internal/ledger"
	"github.com/angelmondragon/designdrop-backend/internal/notifications"
	"github.com/angelmondragon/designdrop-backend/internal/pricing"
	"github.com/angelmondragon/designdrop-backend/internal/submissions"
	"github.com/angelmondragon/designdrop-backend/pkg/auth"
	"github.com/angelmondragon/designdrop-backend/pkg/db/models"
	"github.com/angelmondragon/designdrop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/designdrop-backend/pkg/errors"
	"github.com/angelmondragon/designdrop-backend/pkg/eventbus"
	"github.com/angelmondragon/designdrop-backend/pkg/logger"
	"github.com/angelmondragon/designdrop-backend/pkg/metrics"
	"github.com/angelmondragon/designdrop-backend/pkg/outbox"
	"github.com/angelmondragon/designdrop-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/designdrop-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	Notify(ctx context.Context, tx *gorm.DB, userID uuid.UUID, template enums.NotificationTemplate, data any) error
}

type creditIssuer interface {
	IssueStoreCredit(ctx context.Context, tx *gorm.DB, input ledger.IssueCreditInput) (*models.StoreCreditEntry, bool, error)
}

// Summary describes the outcome of a settlement.
type Summary struct {
	DesignID       uuid.UUID       `json:"design_id"`
	DesignerID     uuid.UUID       `json:"designer_id"`
	FinalTier      int             `json:"final_tier"`
	FinalUnitPrice decimal.Decimal `json:"final_unit_price"`
	FinalQuantity  int             `json:"final_quantity"`
	RefundsIssued  int             `json:"refunds_issued"`
	RefundTotal    decimal.Decimal `json:"refund_total"`
	Royalty        Royalty         `json:"royalty"`
	PayoutID       *uuid.UUID      `json:"payout_id,omitempty"`
	Quarter        string          `json:"quarter"`
	SettledAt      time.Time       `json:"settled_at"`
	AlreadySettled bool            `json:"already_settled"`
}

// Service settles designs whose pre-order window has ended.
type Service interface {
	Settle(ctx context.Context, actor auth.Actor, designID uuid.UUID) (*Summary, error)
}

// ServiceParams wires the settlement service.
type ServiceParams struct {
	Repo       Repository
	DB         txRunner
	Ledger     creditIssuer
	Notifier   notifier
	Outbox     outbox.Emitter
	Events     eventbus.Publisher
	Metrics    *metrics.SettlementMetrics
	DefaultCap decimal.Decimal
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	repo       Repository
	tx         txRunner
	ledger     creditIssuer
	notifier   notifier
	outbox     outbox.Emitter
	events     eventbus.Publisher
	metrics    *metrics.SettlementMetrics
	defaultCap decimal.Decimal
	logg       *logger.Logger
	now        func() time.Time
}

// NewService builds the settlement service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("settlement repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("credit ledger required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	events := params.Events
	if events == nil {
		events = eventbus.Nop{}
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:       params.Repo,
		tx:         params.DB,
		ledger:     params.Ledger,
		notifier:   params.Notifier,
		outbox:     params.Outbox,
		events:     events,
		metrics:    params.Metrics,
		defaultCap: params.DefaultCap,
		logg:       params.Logger,
		now:        now,
	}, nil
}

// Settle runs the whole settlement in one transaction with the design row
// locked. A completed design returns its stored summary; any failure rolls
// back everything and the next sweep retries.
func (s *service) Settle(ctx context.Context, actor auth.Actor, designID uuid.UUID) (*Summary, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	if designID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "design id required")
	}
	logCtx := s.logg.WithDesignID(ctx, designID.String())
	now := s.now().UTC()

	var (
		summary *Summary
		change  *payloads.SubmissionStatusChangedEvent
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		design, err := repo.FindDesignForUpdate(ctx, designID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "design not found")
			}
			return err
		}
		if design.Status == enums.SubmissionStatusCompleted {
			summary, err = s.storedSummary(ctx, repo, design)
			return err
		}
		if err := submissions.CheckTransition(design.Status, enums.SubmissionStatusCompleted); err != nil {
			return err
		}
		if design.PreorderEndsAt != nil && now.Before(*design.PreorderEndsAt) {
			return submissions.InvalidTransition(design.Status, enums.SubmissionStatusCompleted, submissions.GuardPreorderWindowOver)
		}

		summary, err = s.settle(ctx, tx, repo, design, actor, now)
		if err != nil {
			return err
		}
		change = &payloads.SubmissionStatusChangedEvent{
			DesignID:   design.ID,
			DesignerID: design.DesignerID,
			From:       enums.SubmissionStatusInProduction,
			To:         enums.SubmissionStatusCompleted,
			Automatic:  actor.IsSystem(),
			ChangedAt:  now,
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSubmissionStatusChanged,
			AggregateType: enums.AggregateDesignSubmission,
			AggregateID:   design.ID,
			Data:          change,
			OccurredAt:    now,
		})
	})
	if err != nil {
		if isGuardError(err) {
			return nil, err
		}
		s.metrics.IncFailure()
		s.logg.Error(logCtx, "settlement rolled back", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeSettlementPartialFailure, err, "settlement failed; it will be retried").
			WithDetails(map[string]any{"design_id": designID})
	}
	if summary.AlreadySettled {
		return summary, nil
	}

	s.metrics.ObserveSettled(summary.RefundsIssued, summary.Royalty.Capped, summary.Royalty.Payout.Shift(2).IntPart())
	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"final_tier":      summary.FinalTier,
		"final_quantity":  summary.FinalQuantity,
		"refunds_issued":  summary.RefundsIssued,
		"royalty":         summary.Royalty.Payout.StringFixed(2),
		"royalty_capped":  summary.Royalty.Capped,
		"royalty_forfeit": summary.Royalty.Forfeited.StringFixed(2),
	}), "design settled")
	s.events.Publish(eventbus.Event{Type: eventbus.EventSettlementCompleted, DesignID: designID, OccurredAt: now, Data: summary})
	s.events.Publish(eventbus.Event{Type: eventbus.EventSubmissionStatusChanged, DesignID: designID, OccurredAt: now, Data: change})
	return summary, nil
}

func (s *service) settle(ctx context.Context, tx *gorm.DB, repo Repository, design *models.DesignSubmission, actor auth.Actor, now time.Time) (*Summary, error) {
	finalQty, err := repo.ConfirmedQuantity(ctx, design.ID)
	if err != nil {
		return nil, fmt.Errorf("sum confirmed quantity: %w", err)
	}
	final, err := pricing.Resolve(design.TierSchedule, finalQty)
	if err != nil {
		return nil, err
	}
	finalPrice := pricing.Cents(final.UnitPrice)

	summary := &Summary{
		DesignID:       design.ID,
		DesignerID:     design.DesignerID,
		FinalTier:      final.Tier,
		FinalUnitPrice: finalPrice,
		FinalQuantity:  finalQty,
		RefundTotal:    decimal.Zero,
		Quarter:        types.QuarterOf(now),
		SettledAt:      now,
	}

	orders, err := repo.ListChargedForUpdate(ctx, design.ID)
	if err != nil {
		return nil, fmt.Errorf("list charged orders: %w", err)
	}
	for i := range orders {
		issued, amount, err := s.fulfil(ctx, tx, repo, design, &orders[i], finalPrice, now)
		if err != nil {
			return nil, err
		}
		if issued {
			summary.RefundsIssued++
			summary.RefundTotal = summary.RefundTotal.Add(amount)
		}
	}

	profile, err := s.lockProfile(ctx, repo, design.DesignerID, summary.Quarter)
	if err != nil {
		return nil, err
	}
	summary.Royalty = ComputeRoyalty(finalPrice, design.BaseUnitCost, finalQty, design.RoyaltyRate, profile.QuarterlyBonusCap, profile.CurrentQuarterBonusEarned)

	payout, err := repo.FindPayout(ctx, design.ID, design.DesignerID)
	if err != nil {
		return nil, fmt.Errorf("load payout: %w", err)
	}
	if payout == nil {
		payout = &models.PayoutRecord{
			DesignID:        design.ID,
			DesignerID:      design.DesignerID,
			Amount:          summary.Royalty.Payout,
			RawRoyalty:      summary.Royalty.Raw,
			ForfeitedAmount: summary.Royalty.Forfeited,
			Capped:          summary.Royalty.Capped,
			Quarter:         summary.Quarter,
			Status:          enums.PayoutStatusPending,
		}
		if err := repo.CreatePayout(ctx, payout); err != nil {
			return nil, fmt.Errorf("create payout: %w", err)
		}
		profile.CurrentQuarterBonusEarned = profile.CurrentQuarterBonusEarned.Add(summary.Royalty.Payout)
		if err := repo.SaveProfile(ctx, profile); err != nil {
			return nil, fmt.Errorf("save designer profile: %w", err)
		}
	}
	summary.PayoutID = &payout.ID

	design.Status = enums.SubmissionStatusCompleted
	design.FinalUnitPrice = &finalPrice
	design.FinalQuantity = &finalQty
	design.CurrentActiveTier = &final.Tier
	design.CompletedAt = &now
	if err := repo.SaveDesign(ctx, design); err != nil {
		return nil, fmt.Errorf("complete design: %w", err)
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSettlementCompleted,
		AggregateType: enums.AggregateDesignSubmission,
		AggregateID:   design.ID,
		Actor:         actorRef(actor),
		Data: payloads.SettlementCompletedEvent{
			DesignID:        design.ID,
			DesignerID:      design.DesignerID,
			FinalTier:       final.Tier,
			FinalUnitPrice:  finalPrice,
			FinalQuantity:   finalQty,
			RefundsIssued:   summary.RefundsIssued,
			RefundTotal:     summary.RefundTotal,
			RoyaltyAmount:   summary.Royalty.Payout,
			ForfeitedAmount: summary.Royalty.Forfeited,
			Capped:          summary.Royalty.Capped,
			SettledAt:       now,
		},
		OccurredAt: now,
	}); err != nil {
		return nil, fmt.Errorf("queue settlement completed: %w", err)
	}
	return summary, nil
}

// fulfil marks one charged order fulfilled, crediting the tier difference first
// when the buyer paid above the final price.
func (s *service) fulfil(ctx context.Context, tx *gorm.DB, repo Repository, design *models.DesignSubmission, order *models.PreOrder, finalPrice decimal.Decimal, now time.Time) (bool, decimal.Decimal, error) {
	refund := TierRefund(order.UnitPrice, finalPrice, order.Quantity)
	issued := false
	if refund.IsPositive() && !order.RefundCreditIssued {
		orderID := order.ID
		designID := design.ID
		if _, _, err := s.ledger.IssueStoreCredit(ctx, tx, ledger.IssueCreditInput{
			UserID:     order.BuyerID,
			PreOrderID: &orderID,
			DesignID:   &designID,
			Reason:     enums.CreditReasonTierRefund,
			Amount:     refund,
			Note:       fmt.Sprintf("final tier price %s", finalPrice.StringFixed(2)),
		}); err != nil {
			return false, decimal.Zero, err
		}
		order.RefundCreditIssued = true
		order.RefundAmount = &refund
		issued = true
	}
	order.Status = enums.PreOrderStatusFulfilled
	order.FulfilledAt = &now
	if err := repo.SaveOrder(ctx, order); err != nil {
		return false, decimal.Zero, fmt.Errorf("fulfil order %s: %w", order.ID, err)
	}
	if !issued {
		return false, decimal.Zero, nil
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderRefunded,
		AggregateType: enums.AggregatePreOrder,
		AggregateID:   order.ID,
		Data: payloads.OrderRefundedEvent{
			PreOrderID:   order.ID,
			DesignID:     design.ID,
			BuyerID:      order.BuyerID,
			RefundAmount: refund,
			Reason:       enums.CreditReasonTierRefund,
		},
		OccurredAt: now,
	}); err != nil {
		return false, decimal.Zero, fmt.Errorf("queue order refunded: %w", err)
	}
	if err := s.notifier.Notify(ctx, tx, order.BuyerID, enums.NotificationRefundIssued, notifications.RefundIssuedData{
		DesignID:    design.ID,
		DesignTitle: design.Title,
		PreOrderID:  order.ID,
		Amount:      refund,
		Reason:      enums.CreditReasonTierRefund,
	}); err != nil {
		return false, decimal.Zero, fmt.Errorf("queue refund notification: %w", err)
	}
	return true, refund, nil
}

// lockProfile returns the designer's profile locked for update, creating it
// with the default cap and resetting the earned counter on a new quarter.
func (s *service) lockProfile(ctx context.Context, repo Repository, designerID uuid.UUID, quarter string) (*models.DesignerProfile, error) {
	profile, err := repo.FindProfileForUpdate(ctx, designerID)
	if err != nil {
		return nil, fmt.Errorf("lock designer profile: %w", err)
	}
	if profile == nil {
		profile = &models.DesignerProfile{
			UserID:                    designerID,
			QuarterlyBonusCap:         s.defaultCap,
			CurrentQuarterBonusEarned: decimal.Zero,
			BonusQuarter:              quarter,
		}
		if err := repo.CreateProfile(ctx, profile); err != nil {
			return nil, fmt.Errorf("create designer profile: %w", err)
		}
		return profile, nil
	}
	if profile.BonusQuarter != quarter {
		profile.BonusQuarter = quarter
		profile.CurrentQuarterBonusEarned = decimal.Zero
	}
	return profile, nil
}

func (s *service) storedSummary(ctx context.Context, repo Repository, design *models.DesignSubmission) (*Summary, error) {
	summary := &Summary{
		DesignID:       design.ID,
		DesignerID:     design.DesignerID,
		AlreadySettled: true,
	}
	if design.CurrentActiveTier != nil {
		summary.FinalTier = *design.CurrentActiveTier
	}
	if design.FinalUnitPrice != nil {
		summary.FinalUnitPrice = *design.FinalUnitPrice
	}
	if design.FinalQuantity != nil {
		summary.FinalQuantity = *design.FinalQuantity
	}
	if design.CompletedAt != nil {
		summary.SettledAt = *design.CompletedAt
	}
	issued, total, err := repo.RefundTotals(ctx, design.ID)
	if err != nil {
		return nil, fmt.Errorf("sum refunds: %w", err)
	}
	summary.RefundsIssued = issued
	summary.RefundTotal = total

	payout, err := repo.FindPayout(ctx, design.ID, design.DesignerID)
	if err != nil {
		return nil, fmt.Errorf("load payout: %w", err)
	}
	if payout != nil {
		summary.PayoutID = &payout.ID
		summary.Quarter = payout.Quarter
		summary.Royalty = Royalty{
			Raw:       payout.RawRoyalty,
			Payout:    payout.Amount,
			Forfeited: payout.ForfeitedAmount,
			Capped:    payout.Capped,
		}
	}
	return summary, nil
}

func isGuardError(err error) bool {
	for _, code := range []pkgerrors.Code{
		pkgerrors.CodeInvalidTransition,
		pkgerrors.CodeNotFound,
		pkgerrors.CodeForbidden,
		pkgerrors.CodeValidation,
		pkgerrors.CodePricingNotConfigured,
	} {
		if pkgerrors.IsCode(err, code) {
			return true
		}
	}
	return false
}

func actorRef(actor auth.Actor) *outbox.ActorRef {
	if actor.UserID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)}
}
