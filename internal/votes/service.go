// Package votes records community votes and computes the live tally of a design.
package votes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/designdrop-backend/pkg/auth"
	"github.com/angelmondragon/designdrop-backend/pkg/db/models"
	"github.com/angelmondragon/designdrop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/designdrop-backend/pkg/errors"
	"github.com/angelmondragon/designdrop-backend/pkg/eventbus"
	"github.com/angelmondragon/designdrop-backend/pkg/logger"
	"github.com/angelmondragon/designdrop-backend/pkg/outbox"
	"github.com/angelmondragon/designdrop-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Tally is the computed vote split of a design.
type Tally struct {
	DesignID           uuid.UUID `json:"design_id"`
	Upvotes            int       `json:"upvotes"`
	Downvotes          int       `json:"downvotes"`
	NetScore           int       `json:"net_score"`
	ApprovalPercentage float64   `json:"approval_percentage"`
}

// CastResult is the caller's vote after a toggle plus the refreshed tally.
type CastResult struct {
	Vote  *enums.VoteType `json:"vote"`
	Tally Tally           `json:"tally"`
}

// Service exposes vote casting and tally reads.
type Service interface {
	Cast(ctx context.Context, actor auth.Actor, designID uuid.UUID, voteType enums.VoteType) (*CastResult, error)
	Tally(ctx context.Context, designID uuid.UUID) (*Tally, error)
	MyVote(ctx context.Context, actor auth.Actor, designID uuid.UUID) (*enums.VoteType, error)
	NetScore(ctx context.Context, tx *gorm.DB, designID uuid.UUID) (int, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outbox.Emitter
	events eventbus.Publisher
	logg   *logger.Logger
	now    func() time.Time
}

// NewService builds the vote service.
func NewService(repo Repository, tx txRunner, emitter outbox.Emitter, events eventbus.Publisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("votes repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if events == nil {
		events = eventbus.Nop{}
	}
	return &service{repo: repo, tx: tx, outbox: emitter, events: events, logg: logg, now: time.Now}, nil
}

// Cast toggles the actor's vote: repeating the same type removes it and the
// opposite type replaces it. The cached vote count is refreshed in the same
// transaction.
func (s *service) Cast(ctx context.Context, actor auth.Actor, designID uuid.UUID, voteType enums.VoteType) (*CastResult, error) {
	if err := actor.RequireUser(); err != nil {
		return nil, err
	}
	if !voteType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vote type must be upvote or downvote")
	}
	if designID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "design id required")
	}

	var (
		current *enums.VoteType
		tally   Tally
	)
	now := s.now().UTC()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		design, err := repo.FindDesignForUpdate(ctx, designID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "design not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load design")
		}
		if err := checkVotingOpen(design, actor, now); err != nil {
			return err
		}

		existing, err := repo.Find(ctx, designID, actor.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vote")
		}
		switch {
		case existing == nil:
			if err := repo.Create(ctx, &models.Vote{DesignID: designID, VoterID: actor.UserID, Type: voteType}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create vote")
			}
			current = &voteType
		case existing.Type == voteType:
			if err := repo.Delete(ctx, existing.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete vote")
			}
		default:
			if err := repo.UpdateType(ctx, existing.ID, voteType); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update vote")
			}
			current = &voteType
		}

		counts, err := repo.Counts(ctx, designID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count votes")
		}
		tally = buildTally(designID, counts)
		if err := repo.SetVoteCount(ctx, designID, max(tally.NetScore, 0)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh vote count")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventVoteCast,
			AggregateType: enums.AggregateDesignSubmission,
			AggregateID:   designID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)},
			Data: payloads.VoteCastEvent{
				DesignID:  designID,
				VoterID:   actor.UserID,
				VoteType:  current,
				Upvotes:   tally.Upvotes,
				Downvotes: tally.Downvotes,
				NetScore:  tally.NetScore,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(eventbus.Event{
		Type:       eventbus.EventVoteCast,
		DesignID:   designID,
		OccurredAt: now,
		Data:       tally,
	})
	return &CastResult{Vote: current, Tally: tally}, nil
}

func (s *service) Tally(ctx context.Context, designID uuid.UUID) (*Tally, error) {
	if _, err := s.repo.FindDesign(ctx, designID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "design not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load design")
	}
	counts, err := s.repo.Counts(ctx, designID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count votes")
	}
	tally := buildTally(designID, counts)
	return &tally, nil
}

func (s *service) MyVote(ctx context.Context, actor auth.Actor, designID uuid.UUID) (*enums.VoteType, error) {
	if err := actor.RequireUser(); err != nil {
		return nil, err
	}
	vote, err := s.repo.Find(ctx, designID, actor.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vote")
	}
	if vote == nil {
		return nil, nil
	}
	voteType := vote.Type
	return &voteType, nil
}

// NetScore reads upvotes minus downvotes inside the caller's transaction.
func (s *service) NetScore(ctx context.Context, tx *gorm.DB, designID uuid.UUID) (int, error) {
	counts, err := s.repo.WithTx(tx).Counts(ctx, designID)
	if err != nil {
		return 0, err
	}
	return counts.Upvotes - counts.Downvotes, nil
}

func checkVotingOpen(design *models.DesignSubmission, actor auth.Actor, now time.Time) error {
	if design.DesignerID == actor.UserID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "designers cannot vote on their own design")
	}
	if design.Status != enums.SubmissionStatusCommunityVoting {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "design is not open for voting").
			WithDetails(map[string]any{"status": design.Status})
	}
	if design.VotingEndsAt != nil && !now.Before(*design.VotingEndsAt) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "voting window has closed").
			WithDetails(map[string]any{"voting_ends_at": design.VotingEndsAt})
	}
	return nil
}

func buildTally(designID uuid.UUID, counts Counts) Tally {
	tally := Tally{
		DesignID:  designID,
		Upvotes:   counts.Upvotes,
		Downvotes: counts.Downvotes,
		NetScore:  counts.Upvotes - counts.Downvotes,
	}
	if total := counts.Upvotes + counts.Downvotes; total > 0 {
		tally.ApprovalPercentage = float64(counts.Upvotes) / float64(total) * 100
	}
	return tally
}
