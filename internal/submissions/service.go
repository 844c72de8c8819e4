// Package submissions owns the design submission lifecycle:
// draft, review, community voting, pricing, production and completion.
package submissions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/designdrop-backend/pkg/auth"
	"github.com/angelmondragon/designdrop-backend/pkg/config"
	"github.com/angelmondragon/designdrop-backend/pkg/db/models"
	"github.com/angelmondragon/designdrop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/designdrop-backend/pkg/errors"
	"github.com/angelmondragon/designdrop-backend/pkg/eventbus"
	"github.com/angelmondragon/designdrop-backend/pkg/logger"
	"github.com/angelmondragon/designdrop-backend/pkg/outbox"
	"github.com/angelmondragon/designdrop-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/designdrop-backend/pkg/pagination"
	"github.com/angelmondragon/designdrop-backend/pkg/types"
)

const (
	maxTitleLength      = 120
	maxDescription      = 5000
	votingGoalNotMet    = "community vote goal not met"
	defaultListDueLimit = 100
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// TallyReader returns the live net score (upvotes minus downvotes) of a design.
type TallyReader interface {
	NetScore(ctx context.Context, tx *gorm.DB, designID uuid.UUID) (int, error)
}

// OrderRefunder credits every charged order of a cancelled campaign.
type OrderRefunder interface {
	RefundCharged(ctx context.Context, tx *gorm.DB, design *models.DesignSubmission, reason string) (int, error)
}

// Service defines the submission lifecycle operations.
type Service interface {
	CreateDraft(ctx context.Context, actor auth.Actor, input DraftInput) (*DesignDTO, error)
	UpdateDraft(ctx context.Context, actor auth.Actor, id uuid.UUID, input UpdateDraftInput) (*DesignDTO, error)
	SubmitForReview(ctx context.Context, actor auth.Actor, id uuid.UUID) (*DesignDTO, error)
	Approve(ctx context.Context, actor auth.Actor, id uuid.UUID) (*DesignDTO, error)
	Reject(ctx context.Context, actor auth.Actor, id uuid.UUID, reason string) (*DesignDTO, error)
	CloseVoting(ctx context.Context, id uuid.UUID) (*DesignDTO, error)
	ConfigurePricing(ctx context.Context, actor auth.Actor, id uuid.UUID, input PricingInput) (*DesignDTO, error)
	Launch(ctx context.Context, actor auth.Actor, id uuid.UUID) (*DesignDTO, error)
	ForceReject(ctx context.Context, actor auth.Actor, id uuid.UUID, reason string) (*DesignDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*DesignDTO, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	ListVotingDue(ctx context.Context, limit int) ([]uuid.UUID, error)
	ListPreorderDue(ctx context.Context, limit int) ([]uuid.UUID, error)
}

// ServiceParams wires the submission service.
type ServiceParams struct {
	Repo     Repository
	DB       txRunner
	Outbox   outbox.Emitter
	Events   eventbus.Publisher
	Tally    TallyReader
	Refunder OrderRefunder
	Config   config.MarketplaceConfig
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outbox.Emitter
	events   eventbus.Publisher
	tally    TallyReader
	refunder OrderRefunder
	cfg      config.MarketplaceConfig
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the submission service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("submissions repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Tally == nil {
		return nil, fmt.Errorf("tally reader required")
	}
	if params.Refunder == nil {
		return nil, fmt.Errorf("order refunder required")
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
		repo:     params.Repo,
		tx:       params.DB,
		outbox:   params.Outbox,
		events:   events,
		tally:    params.Tally,
		refunder: params.Refunder,
		cfg:      params.Config,
		logg:     params.Logger,
		now:      now,
	}, nil
}

func (s *service) CreateDraft(ctx context.Context, actor auth.Actor, input DraftInput) (*DesignDTO, error) {
	if err := actor.RequireUser(); err != nil {
		return nil, err
	}
	if err := actor.RequireRole(enums.UserRoleDesigner, enums.UserRoleAdmin); err != nil {
		return nil, err
	}
	if err := validateDraftLengths(input.Title, input.Description); err != nil {
		return nil, err
	}

	goal := s.cfg.DefaultGoalThreshold
	if goal <= 0 {
		goal = 100
	}
	design := &models.DesignSubmission{
		DesignerID:    actor.UserID,
		Title:         strings.TrimSpace(input.Title),
		Description:   strings.TrimSpace(input.Description),
		Category:      strings.TrimSpace(input.Category),
		Materials:     cleanList(input.Materials),
		ImageURLs:     cleanList(input.ImageURLs),
		Status:        enums.SubmissionStatusDraft,
		GoalThreshold: goal,
		RoyaltyRate:   s.cfg.RoyaltyRate(),
	}
	if err := s.repo.Create(ctx, design); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create design")
	}
	dto := ToDTO(design)
	return &dto, nil
}

func (s *service) UpdateDraft(ctx context.Context, actor auth.Actor, id uuid.UUID, input UpdateDraftInput) (*DesignDTO, error) {
	if err := actor.RequireUser(); err != nil {
		return nil, err
	}
	var updated *models.DesignSubmission
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		design, err := s.load(ctx, repo, id, true)
		if err != nil {
			return err
		}
		if design.DesignerID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the designer can edit this draft")
		}
		if design.Status != enums.SubmissionStatusDraft {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only drafts can be edited").
				WithDetails(map[string]any{"status": design.Status})
		}

		if input.Title != nil {
			design.Title = strings.TrimSpace(*input.Title)
		}
		if input.Description != nil {
			design.Description = strings.TrimSpace(*input.Description)
		}
		if input.Category != nil {
			design.Category = strings.TrimSpace(*input.Category)
		}
		if input.Materials != nil {
			design.Materials = cleanList(*input.Materials)
		}
		if input.ImageURLs != nil {
			design.ImageURLs = cleanList(*input.ImageURLs)
		}
		if err := validateDraftLengths(design.Title, design.Description); err != nil {
			return err
		}
		if err := repo.Save(ctx, design); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save draft")
		}
		updated = design
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := ToDTO(updated)
	return &dto, nil
}

func (s *service) SubmitForReview(ctx context.Context, actor auth.Actor, id uuid.UUID) (*DesignDTO, error) {
	if err := actor.RequireUser(); err != nil {
		return nil, err
	}
	return s.apply(ctx, actor, id, false, func(_ *gorm.DB, design *models.DesignSubmission, now time.Time) (transitionResult, error) {
		to := enums.SubmissionStatusPendingReview
		if design.DesignerID != actor.UserID {
			return transitionResult{}, pkgerrors.New(pkgerrors.CodeForbidden, "only the designer can submit this design")
		}
		if err := requireStatus(design.Status, enums.SubmissionStatusDraft, to); err != nil {
			return transitionResult{}, err
		}
		if missing := missingSubmissionFields(design); len(missing) > 0 {
			return transitionResult{}, invalidTransition(TransitionDetails{
				Current:   design.Status,
				Requested: to,
				Guard:     GuardRequiredFields,
				Missing:   missing,
			})
		}
		design.SubmittedAt = &now
		return transitionResult{to: to}, nil
	})
}

func (s *service) Approve(ctx context.Context, actor auth.Actor, id uuid.UUID) (*DesignDTO, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	return s.apply(ctx, actor, id, false, func(_ *gorm.DB, design *models.DesignSubmission, now time.Time) (transitionResult, error) {
		to := enums.SubmissionStatusCommunityVoting
		if err := requireStatus(design.Status, enums.SubmissionStatusPendingReview, to); err != nil {
			return transitionResult{}, err
		}
		ends := now.Add(s.cfg.VotingWindow)
		design.VotingStartedAt = &now
		design.VotingEndsAt = &ends
		design.VoteCount = 0
		return transitionResult{to: to}, nil
	})
}

func (s *service) Reject(ctx context.Context, actor auth.Actor, id uuid.UUID, reason string) (*DesignDTO, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	return s.apply(ctx, actor, id, false, func(_ *gorm.DB, design *models.DesignSubmission, _ time.Time) (transitionResult, error) {
		to := enums.SubmissionStatusRejected
		if err := requireStatus(design.Status, enums.SubmissionStatusPendingReview, to); err != nil {
			return transitionResult{}, err
		}
		if reason == "" {
			return transitionResult{}, InvalidTransition(design.Status, to, GuardReasonRequired)
		}
		design.RejectionReason = &reason
		return transitionResult{to: to, reason: reason}, nil
	})
}

// CloseVoting evaluates the voting guard for one design. It is driven by the sweep.
func (s *service) CloseVoting(ctx context.Context, id uuid.UUID) (*DesignDTO, error) {
	return s.apply(ctx, auth.System, id, true, func(tx *gorm.DB, design *models.DesignSubmission, now time.Time) (transitionResult, error) {
		requested := enums.SubmissionStatusPendingPricing
		if err := requireStatus(design.Status, enums.SubmissionStatusCommunityVoting, requested); err != nil {
			return transitionResult{}, err
		}
		if design.VotingEndsAt == nil || now.Before(*design.VotingEndsAt) {
			return transitionResult{}, InvalidTransition(design.Status, requested, GuardVotingWindowClosed)
		}
		net, err := s.tally.NetScore(ctx, tx, design.ID)
		if err != nil {
			return transitionResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "tally votes")
		}
		if net >= design.GoalThreshold {
			return transitionResult{to: requested}, nil
		}
		reason := votingGoalNotMet
		design.RejectionReason = &reason
		return transitionResult{to: enums.SubmissionStatusRejected, reason: reason}, nil
	})
}

func (s *service) ConfigurePricing(ctx context.Context, actor auth.Actor, id uuid.UUID, input PricingInput) (*DesignDTO, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	if err := input.TierSchedule.Validate(); err != nil {
		return nil, tierScheduleError(err)
	}
	if input.BaseUnitCost.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "base unit cost must not be negative")
	}
	if input.RoyaltyRate != nil && (input.RoyaltyRate.IsNegative() || input.RoyaltyRate.GreaterThan(decimal.NewFromInt(1))) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "royalty rate must be between 0 and 1")
	}
	if input.GoalThreshold != nil && *input.GoalThreshold <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "goal threshold must be positive")
	}

	var updated *models.DesignSubmission
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		design, err := s.load(ctx, repo, id, true)
		if err != nil {
			return err
		}
		if design.Status != enums.SubmissionStatusPendingPricing {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "pricing can only be configured while pending pricing").
				WithDetails(map[string]any{"status": design.Status})
		}
		design.TierSchedule = input.TierSchedule
		design.BaseUnitCost = input.BaseUnitCost
		if input.RoyaltyRate != nil {
			design.RoyaltyRate = *input.RoyaltyRate
		}
		if input.GoalThreshold != nil {
			design.GoalThreshold = *input.GoalThreshold
		}
		if err := repo.Save(ctx, design); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save pricing")
		}
		updated = design
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := ToDTO(updated)
	return &dto, nil
}

func (s *service) Launch(ctx context.Context, actor auth.Actor, id uuid.UUID) (*DesignDTO, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	return s.apply(ctx, actor, id, false, func(_ *gorm.DB, design *models.DesignSubmission, now time.Time) (transitionResult, error) {
		to := enums.SubmissionStatusInProduction
		if err := requireStatus(design.Status, enums.SubmissionStatusPendingPricing, to); err != nil {
			return transitionResult{}, err
		}
		if len(design.TierSchedule) == 0 {
			return transitionResult{}, pkgerrors.New(pkgerrors.CodePricingNotConfigured, "configure a tier schedule before launch").
				WithDetails(TransitionDetails{Current: design.Status, Requested: to, Guard: GuardPricingConfigured})
		}
		if err := design.TierSchedule.Validate(); err != nil {
			return transitionResult{}, tierScheduleError(err)
		}
		ends := now.Add(s.cfg.PreorderWindow)
		first := design.TierSchedule[0].Tier
		design.PreorderStartedAt = &now
		design.PreorderEndsAt = &ends
		design.CurrentActiveTier = &first
		return transitionResult{to: to}, nil
	})
}

// ForceReject cancels any non-terminal design. A live campaign has every
// charged order refunded in full as store credit.
func (s *service) ForceReject(ctx context.Context, actor auth.Actor, id uuid.UUID, reason string) (*DesignDTO, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	return s.apply(ctx, actor, id, false, func(tx *gorm.DB, design *models.DesignSubmission, _ time.Time) (transitionResult, error) {
		to := enums.SubmissionStatusRejected
		if design.Status.IsTerminal() {
			return transitionResult{}, InvalidTransition(design.Status, to, GuardNonTerminal)
		}
		if reason == "" {
			return transitionResult{}, InvalidTransition(design.Status, to, GuardReasonRequired)
		}
		if design.Status == enums.SubmissionStatusInProduction {
			refunded, err := s.refunder.RefundCharged(ctx, tx, design, reason)
			if err != nil {
				return transitionResult{}, err
			}
			s.logg.Info(s.logg.WithField(ctx, "orders_refunded", refunded), "force reject refunded campaign")
		}
		design.RejectionReason = &reason
		return transitionResult{to: to, reason: reason}, nil
	})
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*DesignDTO, error) {
	design, err := s.load(ctx, s.repo, id, false)
	if err != nil {
		return nil, err
	}
	dto := ToDTO(design)
	return &dto, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.List(ctx, ListFilters{Status: params.Status, Statuses: params.Statuses, DesignerID: params.DesignerID}, params.Limit, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list designs")
	}
	items := make([]DesignDTO, 0, len(rows))
	for i := range rows {
		items = append(items, ToDTO(&rows[i]))
	}
	result := &ListResult{Items: items}
	if next != nil {
		result.Cursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

func (s *service) ListVotingDue(ctx context.Context, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = defaultListDueLimit
	}
	return s.repo.ListVotingDue(ctx, s.now().UTC(), limit)
}

func (s *service) ListPreorderDue(ctx context.Context, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = defaultListDueLimit
	}
	return s.repo.ListPreorderDue(ctx, s.now().UTC(), limit)
}

type transitionResult struct {
	to     enums.SubmissionStatus
	reason string
}

type transitionFn func(tx *gorm.DB, design *models.DesignSubmission, now time.Time) (transitionResult, error)

// apply locks the design, runs the guard, persists the new status and queues
// the status change event in the same transaction. A failing guard leaves the
// row untouched.
func (s *service) apply(ctx context.Context, actor auth.Actor, id uuid.UUID, automatic bool, fn transitionFn) (*DesignDTO, error) {
	logCtx := s.logg.WithDesignID(ctx, id.String())
	now := s.now().UTC()

	var (
		updated *models.DesignSubmission
		change  payloads.SubmissionStatusChangedEvent
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		design, err := s.load(ctx, repo, id, true)
		if err != nil {
			return err
		}
		from := design.Status
		result, err := fn(tx, design, now)
		if err != nil {
			return err
		}
		if err := CheckTransition(from, result.to); err != nil {
			return err
		}
		design.Status = result.to
		if err := repo.Save(ctx, design); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save design status")
		}

		change = payloads.SubmissionStatusChangedEvent{
			DesignID:   design.ID,
			DesignerID: design.DesignerID,
			From:       from,
			To:         result.to,
			Reason:     result.reason,
			Automatic:  automatic,
			ChangedAt:  now,
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSubmissionStatusChanged,
			AggregateType: enums.AggregateDesignSubmission,
			AggregateID:   design.ID,
			Actor:         actorRef(actor),
			Data:          change,
			OccurredAt:    now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue status change")
		}
		updated = design
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeInvalidTransition {
			s.logg.Warn(s.logg.WithField(logCtx, "details", typed.Details()), "transition rejected")
		}
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"from":      change.From,
		"to":        change.To,
		"automatic": automatic,
	}), "design status changed")
	s.events.Publish(eventbus.Event{
		Type:       eventbus.EventSubmissionStatusChanged,
		DesignID:   id,
		OccurredAt: now,
		Data:       change,
	})
	dto := ToDTO(updated)
	return &dto, nil
}

func (s *service) load(ctx context.Context, repo Repository, id uuid.UUID, lock bool) (*models.DesignSubmission, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "design id required")
	}
	var (
		design *models.DesignSubmission
		err    error
	)
	if lock {
		design, err = repo.FindByIDForUpdate(ctx, id)
	} else {
		design, err = repo.FindByID(ctx, id)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "design not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load design")
	}
	return design, nil
}

func missingSubmissionFields(design *models.DesignSubmission) []string {
	var missing []string
	if strings.TrimSpace(design.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(design.Description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(design.Category) == "" {
		missing = append(missing, "category")
	}
	if len(design.ImageURLs) == 0 {
		missing = append(missing, "image")
	}
	return missing
}

func validateDraftLengths(title, description string) error {
	if len(strings.TrimSpace(title)) > maxTitleLength {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	}
	if len(strings.TrimSpace(description)) > maxDescription {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("description must be at most %d characters", maxDescription))
	}
	return nil
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func tierScheduleError(err error) error {
	var scheduleErr *types.TierScheduleError
	if errors.As(err, &scheduleErr) {
		return pkgerrors.Wrap(pkgerrors.CodeTierScheduleInvalid, err, "tier schedule is invalid").
			WithDetails(scheduleErr.Violations)
	}
	return pkgerrors.Wrap(pkgerrors.CodeTierScheduleInvalid, err, "tier schedule is invalid")
}

func actorRef(actor auth.Actor) *outbox.ActorRef {
	if actor.UserID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)}
}
