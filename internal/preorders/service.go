// Package preorders takes pre-orders for launched designs, captures payment
// and keeps the design's active tier current.
package preorders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/designdrop-backend/internal/ledger"
	"github.com/angelmondragon/designdrop-backend/internal/notifications"
	"github.com/angelmondragon/designdrop-backend/internal/pricing"
	"github.com/angelmondragon/designdrop-backend/pkg/auth"
	"github.com/angelmondragon/designdrop-backend/pkg/db/models"
	"github.com/angelmondragon/designdrop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/designdrop-backend/pkg/errors"
	"github.com/angelmondragon/designdrop-backend/pkg/eventbus"
	"github.com/angelmondragon/designdrop-backend/pkg/logger"
	"github.com/angelmondragon/designdrop-backend/pkg/outbox"
	"github.com/angelmondragon/designdrop-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/designdrop-backend/pkg/pagination"
	"github.com/angelmondragon/designdrop-backend/pkg/square"
)

const (
	maxIdempotencyKeyLength = 128
	maxPaymentErrorLength   = 500
	lateCaptureNote         = "payment captured after pre-orders closed"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PaymentCapturer charges a payment source immediately.
type PaymentCapturer interface {
	CapturePayment(ctx context.Context, params square.PaymentCaptureParams) (*square.CaptureResult, error)
}

type notifier interface {
	Notify(ctx context.Context, tx *gorm.DB, userID uuid.UUID, template enums.NotificationTemplate, data any) error
}

type creditIssuer interface {
	IssueStoreCredit(ctx context.Context, tx *gorm.DB, input ledger.IssueCreditInput) (*models.StoreCreditEntry, bool, error)
}

// Service defines pre-order intake, capture and refund operations.
type Service interface {
	PlaceOrder(ctx context.Context, actor auth.Actor, input PlaceOrderInput) (*PlaceOrderResult, error)
	ConfirmCapture(ctx context.Context, orderID uuid.UUID, chargeID string) (*OrderDTO, error)
	RecordCaptureFailure(ctx context.Context, orderID uuid.UUID, reason string) (*OrderDTO, error)
	RefundCharged(ctx context.Context, tx *gorm.DB, design *models.DesignSubmission, reason string) (int, error)
	Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*OrderDTO, error)
	ListForBuyer(ctx context.Context, actor auth.Actor, params ListParams) (*ListResult, error)
	Quote(ctx context.Context, designID uuid.UUID, quantity int) (*QuoteDTO, error)
	CleanupStalePending(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// QuoteDTO is the live price for a prospective order plus the next tier target.
type QuoteDTO struct {
	DesignID          uuid.UUID        `json:"design_id"`
	ConfirmedQuantity int              `json:"confirmed_quantity"`
	Tier              int              `json:"tier"`
	UnitPrice         decimal.Decimal  `json:"unit_price"`
	Quantity          int              `json:"quantity"`
	Total             decimal.Decimal  `json:"total"`
	NextTier          *int             `json:"next_tier,omitempty"`
	NextUnitPrice     *decimal.Decimal `json:"next_unit_price,omitempty"`
	UnitsToNextTier   *int             `json:"units_to_next_tier,omitempty"`
}

// ServiceParams wires the pre-order service.
type ServiceParams struct {
	Repo     Repository
	DB       txRunner
	Payments PaymentCapturer
	Ledger   creditIssuer
	Notifier notifier
	Outbox   outbox.Emitter
	Events   eventbus.Publisher
	Currency string
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	payments PaymentCapturer
	ledger   creditIssuer
	notifier notifier
	outbox   outbox.Emitter
	events   eventbus.Publisher
	currency enums.Currency
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the pre-order service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("pre-order repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment capturer required")
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
	currency := enums.CurrencyUSD
	if strings.TrimSpace(params.Currency) != "" {
		parsed, err := enums.ParseCurrency(params.Currency)
		if err != nil {
			return nil, err
		}
		currency = parsed
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
		repo:     params.Repo,
		tx:       params.DB,
		payments: params.Payments,
		ledger:   params.Ledger,
		notifier: params.Notifier,
		outbox:   params.Outbox,
		events:   events,
		currency: currency,
		logg:     params.Logger,
		now:      now,
	}, nil
}

// PlaceOrder creates (or resumes) the buyer's pending order, prices a new one
// against the current confirmed quantity and captures payment. The claimed total is
// advisory; the stored quote always wins.
func (s *service) PlaceOrder(ctx context.Context, actor auth.Actor, input PlaceOrderInput) (*PlaceOrderResult, error) {
	if err := actor.RequireUser(); err != nil {
		return nil, err
	}
	if err := validatePlaceOrder(&input); err != nil {
		return nil, err
	}
	logCtx := s.logg.WithDesignID(s.logg.WithUserID(ctx, actor.UserID.String()), input.DesignID.String())

	existing, err := s.repo.FindByBuyerKey(ctx, actor.UserID, input.IdempotencyKey)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup idempotent order")
	}
	if existing != nil {
		if existing.DesignID != input.DesignID || existing.Quantity != input.Quantity || existing.Size != input.Size {
			return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key was used for a different order")
		}
		if existing.Status != enums.PreOrderStatusPending {
			return &PlaceOrderResult{Order: ToDTO(existing), Replayed: true}, nil
		}
	}

	order, err := s.reserveQuote(ctx, actor.UserID, input, existing)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotOpenForOrders) {
			s.logg.Warn(logCtx, "pre-order rejected: design not open")
		}
		return nil, err
	}
	if order.Status != enums.PreOrderStatusPending {
		return &PlaceOrderResult{Order: ToDTO(order), Replayed: true}, nil
	}
	logCtx = s.logg.WithOrderID(logCtx, order.ID.String())

	priceAdjusted := false
	if input.ClaimedTotal != nil && !input.ClaimedTotal.Round(2).Equal(order.AmountPaid) {
		priceAdjusted = true
		s.logg.Warn(s.logg.WithFields(logCtx, map[string]any{
			"claimed_total": input.ClaimedTotal.StringFixed(2),
			"quoted_total":  order.AmountPaid.StringFixed(2),
		}), "claimed total differs from quote")
	}

	capture, err := s.payments.CapturePayment(ctx, square.PaymentCaptureParams{
		AmountCents:    order.AmountPaid.Shift(2).IntPart(),
		Currency:       string(order.Currency),
		SourceID:       input.SourceID,
		IdempotencyKey: order.ID.String(),
		ReferenceID:    order.ID.String(),
		Note:           fmt.Sprintf("pre-order %d x %s", order.Quantity, order.Size),
	})
	if err != nil {
		s.logg.Error(logCtx, "payment capture failed", err)
		if _, recErr := s.RecordCaptureFailure(ctx, order.ID, err.Error()); recErr != nil {
			s.logg.Error(logCtx, "record capture failure", recErr)
		}
		if pkgerrors.IsCode(err, pkgerrors.CodePaymentFailed) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentFailed, err, "payment capture failed").
			WithDetails(map[string]any{"pre_order_id": order.ID})
	}

	charged, err := s.markCharged(ctx, order.ID, capture.PaymentID)
	if err != nil {
		s.logg.Error(logCtx, "mark order charged", err)
		return nil, err
	}
	return &PlaceOrderResult{Order: ToDTO(charged), PriceAdjusted: priceAdjusted}, nil
}

// reserveQuote checks the design is taking orders and returns the pending row
// to capture. A new row gets the current quote. An existing pending row keeps
// the quote of its first capture, so a retry sends Square the same amount
// under the same idempotency key.
func (s *service) reserveQuote(ctx context.Context, buyerID uuid.UUID, input PlaceOrderInput, existing *models.PreOrder) (*models.PreOrder, error) {
	var order *models.PreOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		design, err := loadDesign(ctx, repo, input.DesignID, true)
		if err != nil {
			return err
		}
		if err := s.checkOpen(design); err != nil {
			return err
		}

		if existing != nil {
			order, err = repo.FindByIDForUpdate(ctx, existing.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload pending order")
			}
			return nil
		}

		confirmed, err := repo.ConfirmedQuantity(ctx, design.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum confirmed quantity")
		}
		quote, err := pricing.QuoteOrder(design.TierSchedule, confirmed, input.Quantity)
		if err != nil {
			return err
		}
		order = &models.PreOrder{
			DesignID:       design.ID,
			BuyerID:        buyerID,
			Size:           input.Size,
			Quantity:       input.Quantity,
			Tier:           quote.Tier,
			UnitPrice:      pricing.Cents(quote.UnitPrice),
			AmountPaid:     pricing.Cents(quote.Total),
			Currency:       s.currency,
			Status:         enums.PreOrderStatusPending,
			IdempotencyKey: input.IdempotencyKey,
		}
		if err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create pre-order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ConfirmCapture marks a pending order charged at its pending quote. Already
// charged orders are returned unchanged. When the design has left
// in_production the charge is refunded in full as store credit at once.
func (s *service) ConfirmCapture(ctx context.Context, orderID uuid.UUID, chargeID string) (*OrderDTO, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pre-order id required")
	}
	if strings.TrimSpace(chargeID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charge id required")
	}
	order, err := s.markCharged(ctx, orderID, strings.TrimSpace(chargeID))
	if err != nil {
		return nil, err
	}
	dto := ToDTO(order)
	return &dto, nil
}

func (s *service) markCharged(ctx context.Context, orderID uuid.UUID, chargeID string) (*models.PreOrder, error) {
	now := s.now().UTC()
	var (
		order      *models.PreOrder
		captured   *payloads.OrderCapturedEvent
		crossed    *payloads.TierAchievedEvent
		lateRefund bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := loadOrder(ctx, repo, orderID, false)
		if err != nil {
			return err
		}
		if current.Status != enums.PreOrderStatusPending {
			order = current
			return nil
		}
		// design first, then order, matching the intake lock order
		design, err := loadDesign(ctx, repo, current.DesignID, true)
		if err != nil {
			return err
		}
		current, err = loadOrder(ctx, repo, orderID, true)
		if err != nil {
			return err
		}
		if current.Status != enums.PreOrderStatusPending {
			order = current
			return nil
		}

		current.Status = enums.PreOrderStatusCharged
		current.ChargeID = &chargeID
		current.ChargedAt = &now
		current.LastPaymentError = nil
		if err := repo.Save(ctx, current); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order charged")
		}
		order = current

		// settlement or a force-reject already ran, so the charge goes straight back as credit
		if design.Status != enums.SubmissionStatusInProduction {
			lateRefund = true
			return s.refundOrder(ctx, tx, repo, design, current, lateCaptureNote, now)
		}

		confirmed, err := repo.ConfirmedQuantity(ctx, design.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum confirmed quantity")
		}
		after := confirmed
		before := after - current.Quantity

		if len(design.TierSchedule) > 0 {
			active, err := pricing.Resolve(design.TierSchedule, after)
			if err != nil {
				return err
			}
			if design.CurrentActiveTier == nil || *design.CurrentActiveTier != active.Tier {
				if err := repo.SetActiveTier(ctx, design.ID, active.Tier); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update active tier")
				}
			}
			if quote, ok := pricing.TierCrossed(design.TierSchedule, before, after); ok {
				prev, _ := pricing.Resolve(design.TierSchedule, before)
				crossed = &payloads.TierAchievedEvent{
					DesignID:          design.ID,
					PreviousTier:      prev.Tier,
					Tier:              quote.Tier,
					UnitPrice:         quote.UnitPrice,
					ConfirmedQuantity: after,
				}
			}
		}

		captured = &payloads.OrderCapturedEvent{
			PreOrderID:        current.ID,
			DesignID:          design.ID,
			BuyerID:           current.BuyerID,
			Quantity:          current.Quantity,
			Tier:              current.Tier,
			UnitPrice:         current.UnitPrice,
			AmountPaid:        current.AmountPaid,
			ConfirmedQuantity: after,
			ChargeID:          chargeID,
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCaptured,
			AggregateType: enums.AggregatePreOrder,
			AggregateID:   current.ID,
			Actor:         &outbox.ActorRef{UserID: current.BuyerID, Role: string(enums.UserRoleMember)},
			Data:          captured,
			OccurredAt:    now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue order captured")
		}
		if err := s.notifier.Notify(ctx, tx, current.BuyerID, enums.NotificationPreorderConfirmation, notifications.PreorderConfirmationData{
			DesignID:    design.ID,
			DesignTitle: design.Title,
			PreOrderID:  current.ID,
			Quantity:    current.Quantity,
			Size:        current.Size,
			UnitPrice:   current.UnitPrice,
			AmountPaid:  current.AmountPaid,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue confirmation notification")
		}

		if crossed != nil {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventTierAchieved,
				AggregateType: enums.AggregateDesignSubmission,
				AggregateID:   design.ID,
				Data:          crossed,
				OccurredAt:    now,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue tier achieved")
			}
			if err := s.notifier.Notify(ctx, tx, design.DesignerID, enums.NotificationTierAchieved, notifications.TierAchievedData{
				DesignID:          design.ID,
				DesignTitle:       design.Title,
				Tier:              crossed.Tier,
				UnitPrice:         crossed.UnitPrice,
				ConfirmedQuantity: after,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue tier notification")
			}
		}
		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	if lateRefund {
		logCtx := s.logg.WithOrderID(s.logg.WithDesignID(ctx, order.DesignID.String()), order.ID.String())
		s.logg.Warn(s.logg.WithField(logCtx, "amount_paid", order.AmountPaid.StringFixed(2)), "capture confirmed after pre-orders closed; refunded as store credit")
	}
	if captured != nil {
		logCtx := s.logg.WithOrderID(s.logg.WithDesignID(ctx, order.DesignID.String()), order.ID.String())
		s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
			"quantity":           order.Quantity,
			"tier":               order.Tier,
			"amount_paid":        order.AmountPaid.StringFixed(2),
			"confirmed_quantity": captured.ConfirmedQuantity,
		}), "pre-order captured")
		s.events.Publish(eventbus.Event{Type: eventbus.EventOrderCaptured, DesignID: order.DesignID, OccurredAt: now, Data: captured})
	}
	if crossed != nil {
		s.events.Publish(eventbus.Event{Type: eventbus.EventTierAchieved, DesignID: crossed.DesignID, OccurredAt: now, Data: crossed})
	}
	return order, nil
}

// RecordCaptureFailure keeps the order pending and stores the last payment error.
func (s *service) RecordCaptureFailure(ctx context.Context, orderID uuid.UUID, reason string) (*OrderDTO, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pre-order id required")
	}
	reason = truncate(strings.TrimSpace(reason), maxPaymentErrorLength)
	if reason == "" {
		reason = "payment capture failed"
	}
	var order *models.PreOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := loadOrder(ctx, repo, orderID, true)
		if err != nil {
			return err
		}
		order = current
		if current.Status != enums.PreOrderStatusPending {
			return nil
		}
		current.LastPaymentError = &reason
		if err := repo.Save(ctx, current); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment error")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCaptureFailed,
			AggregateType: enums.AggregatePreOrder,
			AggregateID:   current.ID,
			Data: payloads.OrderCaptureFailedEvent{
				PreOrderID: current.ID,
				DesignID:   current.DesignID,
				BuyerID:    current.BuyerID,
				Reason:     reason,
			},
			OccurredAt: s.now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}
	dto := ToDTO(order)
	return &dto, nil
}

// RefundCharged credits the full amount of every charged order of a cancelled
// campaign. It runs inside the caller's transaction and skips orders that
// already carry a refund.
func (s *service) RefundCharged(ctx context.Context, tx *gorm.DB, design *models.DesignSubmission, reason string) (int, error) {
	if tx == nil {
		return 0, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	repo := s.repo.WithTx(tx)
	orders, err := repo.ListByDesignForUpdate(ctx, design.ID, enums.PreOrderStatusCharged)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list charged orders")
	}
	now := s.now().UTC()
	refunded := 0
	for i := range orders {
		order := &orders[i]
		if order.RefundCreditIssued {
			continue
		}
		if err := s.refundOrder(ctx, tx, repo, design, order, reason, now); err != nil {
			return refunded, err
		}
		refunded++
	}
	return refunded, nil
}

// refundOrder credits the full amount paid on a charged order and marks it
// refunded.
func (s *service) refundOrder(ctx context.Context, tx *gorm.DB, repo Repository, design *models.DesignSubmission, order *models.PreOrder, note string, now time.Time) error {
	orderID := order.ID
	designID := design.ID
	amount := order.AmountPaid
	if _, _, err := s.ledger.IssueStoreCredit(ctx, tx, ledger.IssueCreditInput{
		UserID:     order.BuyerID,
		PreOrderID: &orderID,
		DesignID:   &designID,
		Reason:     enums.CreditReasonForceReject,
		Amount:     amount,
		Note:       note,
	}); err != nil {
		return err
	}
	order.RefundCreditIssued = true
	order.RefundAmount = &amount
	order.Status = enums.PreOrderStatusRefunded
	if err := repo.Save(ctx, order); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order refunded")
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderRefunded,
		AggregateType: enums.AggregatePreOrder,
		AggregateID:   order.ID,
		Data: payloads.OrderRefundedEvent{
			PreOrderID:   order.ID,
			DesignID:     design.ID,
			BuyerID:      order.BuyerID,
			RefundAmount: amount,
			Reason:       enums.CreditReasonForceReject,
		},
		OccurredAt: now,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue order refunded")
	}
	if err := s.notifier.Notify(ctx, tx, order.BuyerID, enums.NotificationRefundIssued, notifications.RefundIssuedData{
		DesignID:    design.ID,
		DesignTitle: design.Title,
		PreOrderID:  order.ID,
		Amount:      amount,
		Reason:      enums.CreditReasonForceReject,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue refund notification")
	}
	return nil
}

func (s *service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*OrderDTO, error) {
	if err := actor.RequireUser(); err != nil {
		return nil, err
	}
	order, err := loadOrder(ctx, s.repo, id, false)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != actor.UserID && !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pre-order not found")
	}
	dto := ToDTO(order)
	return &dto, nil
}

func (s *service) ListForBuyer(ctx context.Context, actor auth.Actor, params ListParams) (*ListResult, error) {
	if err := actor.RequireUser(); err != nil {
		return nil, err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.ListForBuyer(ctx, actor.UserID, params.Limit, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pre-orders")
	}
	items := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		items = append(items, ToDTO(&rows[i]))
	}
	result := &ListResult{Items: items}
	if next != nil {
		result.Cursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

// Quote prices a prospective order without reserving anything.
func (s *service) Quote(ctx context.Context, designID uuid.UUID, quantity int) (*QuoteDTO, error) {
	design, err := loadDesign(ctx, s.repo, designID, false)
	if err != nil {
		return nil, err
	}
	confirmed, err := s.repo.ConfirmedQuantity(ctx, design.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum confirmed quantity")
	}
	quote, err := pricing.QuoteOrder(design.TierSchedule, confirmed, quantity)
	if err != nil {
		return nil, err
	}
	dto := &QuoteDTO{
		DesignID:          design.ID,
		ConfirmedQuantity: confirmed,
		Tier:              quote.Tier,
		UnitPrice:         pricing.Cents(quote.UnitPrice),
		Quantity:          quantity,
		Total:             pricing.Cents(quote.Total),
	}
	if next, remaining, ok := pricing.NextTier(design.TierSchedule, confirmed); ok {
		tier := next.Tier
		price := next.UnitPrice
		dto.NextTier = &tier
		dto.NextUnitPrice = &price
		dto.UnitsToNextTier = &remaining
	}
	return dto, nil
}

func (s *service) CleanupStalePending(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	deleted, err := s.repo.DeleteStalePending(ctx, cutoff.UTC(), limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete stale pending orders")
	}
	return deleted, nil
}

func (s *service) checkOpen(design *models.DesignSubmission) error {
	if design.Status != enums.SubmissionStatusInProduction {
		return pkgerrors.New(pkgerrors.CodeNotOpenForOrders, "design is not open for pre-orders").
			WithDetails(map[string]any{"status": design.Status})
	}
	if design.PreorderEndsAt != nil && !s.now().UTC().Before(*design.PreorderEndsAt) {
		return pkgerrors.New(pkgerrors.CodeNotOpenForOrders, "pre-order window has closed").
			WithDetails(map[string]any{"preorder_ends_at": design.PreorderEndsAt})
	}
	return nil
}

func validatePlaceOrder(input *PlaceOrderInput) error {
	if input.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must be positive").
			WithDetails(map[string]any{"quantity": input.Quantity})
	}
	if input.DesignID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "design id required")
	}
	input.Size = strings.ToUpper(strings.TrimSpace(input.Size))
	if input.Size == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "size required")
	}
	input.IdempotencyKey = strings.TrimSpace(input.IdempotencyKey)
	if input.IdempotencyKey == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "idempotency key required")
	}
	if len(input.IdempotencyKey) > maxIdempotencyKeyLength {
		return pkgerrors.New(pkgerrors.CodeValidation, "idempotency key too long")
	}
	if strings.TrimSpace(input.SourceID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment source required")
	}
	return nil
}

func loadDesign(ctx context.Context, repo Repository, id uuid.UUID, lock bool) (*models.DesignSubmission, error) {
	var (
		design *models.DesignSubmission
		err    error
	)
	if lock {
		design, err = repo.FindDesignForUpdate(ctx, id)
	} else {
		design, err = repo.FindDesign(ctx, id)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "design not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load design")
	}
	return design, nil
}

func loadOrder(ctx context.Context, repo Repository, id uuid.UUID, lock bool) (*models.PreOrder, error) {
	var (
		order *models.PreOrder
		err   error
	)
	if lock {
		order, err = repo.FindByIDForUpdate(ctx, id)
	} else {
		order, err = repo.FindByID(ctx, id)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pre-order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pre-order")
	}
	return order, nil
}

// truncate cuts value to at most limit bytes without splitting a rune.
func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	for limit > 0 && !utf8.RuneStart(value[limit]) {
		limit--
	}
	return value[:limit]
}
