package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/designdrop-backend/internal/settlement"
	"github.com/angelmondragon/designdrop-backend/internal/submissions"
	"github.com/angelmondragon/designdrop-backend/pkg/auth"
	"github.com/angelmondragon/designdrop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/designdrop-backend/pkg/errors"
	"github.com/angelmondragon/designdrop-backend/pkg/logger"
)

const (
	defaultSweepBatch    = 100
	defaultStaleOrderAge = 24 * time.Hour
	maxCleanupPasses     = 20
)

type votingCloser interface {
	ListVotingDue(ctx context.Context, limit int) ([]uuid.UUID, error)
	CloseVoting(ctx context.Context, id uuid.UUID) (*submissions.DesignDTO, error)
}

type preorderDueLister interface {
	ListPreorderDue(ctx context.Context, limit int) ([]uuid.UUID, error)
}

type settler interface {
	Settle(ctx context.Context, actor auth.Actor, designID uuid.UUID) (*settlement.Summary, error)
}

type stalePendingCleaner interface {
	CleanupStalePending(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// VotingCloseJobParams configure the voting close sweep.
type VotingCloseJobParams struct {
	Logger      *logger.Logger
	Submissions votingCloser
	BatchSize   int
}

// NewVotingCloseJob moves every design whose voting window elapsed to
// pending_pricing or rejected, depending on the net score.
func NewVotingCloseJob(params VotingCloseJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Submissions == nil {
		return nil, fmt.Errorf("submissions service required")
	}
	return &votingCloseJob{logg: params.Logger, designs: params.Submissions, batch: batchOrDefault(params.BatchSize)}, nil
}

type votingCloseJob struct {
	logg    *logger.Logger
	designs votingCloser
	batch   int
}

func (j *votingCloseJob) Name() string { return "voting-close" }

func (j *votingCloseJob) Run(ctx context.Context) error {
	ids, err := j.designs.ListVotingDue(ctx, j.batch)
	if err != nil {
		return fmt.Errorf("list voting due: %w", err)
	}

	var (
		errs               error
		advanced, rejected int
	)
	for _, id := range ids {
		design, err := j.designs.CloseVoting(ctx, id)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition) {
				// another writer moved it first
				j.logg.Warn(j.logg.WithDesignID(ctx, id.String()), "voting close guard no longer holds")
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("close voting %s: %w", id, err))
			continue
		}
		if design.Status == enums.SubmissionStatusRejected {
			rejected++
		} else {
			advanced++
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"due":      len(ids),
		"advanced": advanced,
		"rejected": rejected,
	}), "voting close sweep complete")
	return errs
}

// PreorderCloseJobParams configure the pre-order close sweep.
type PreorderCloseJobParams struct {
	Logger      *logger.Logger
	Submissions preorderDueLister
	Settlement  settler
	BatchSize   int
}

// NewPreorderCloseJob settles every in-production design whose pre-order window elapsed.
func NewPreorderCloseJob(params PreorderCloseJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Submissions == nil {
		return nil, fmt.Errorf("submissions service required")
	}
	if params.Settlement == nil {
		return nil, fmt.Errorf("settlement service required")
	}
	return &preorderCloseJob{
		logg:    params.Logger,
		designs: params.Submissions,
		settler: params.Settlement,
		batch:   batchOrDefault(params.BatchSize),
	}, nil
}

type preorderCloseJob struct {
	logg    *logger.Logger
	designs preorderDueLister
	settler settler
	batch   int
}

func (j *preorderCloseJob) Name() string { return "preorder-close" }

func (j *preorderCloseJob) Run(ctx context.Context) error {
	ids, err := j.designs.ListPreorderDue(ctx, j.batch)
	if err != nil {
		return fmt.Errorf("list pre-order due: %w", err)
	}

	var (
		errs    error
		settled int
	)
	for _, id := range ids {
		summary, err := j.settler.Settle(ctx, auth.System, id)
		if err != nil {
			// a failed settlement rolled back; the next sweep picks it up again
			errs = multierr.Append(errs, fmt.Errorf("settle %s: %w", id, err))
			continue
		}
		if !summary.AlreadySettled {
			settled++
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"due":     len(ids),
		"settled": settled,
		"failed":  len(multierr.Errors(errs)),
	}), "pre-order close sweep complete")
	return errs
}

// StalePendingJobParams configure the abandoned pending-order cleanup.
type StalePendingJobParams struct {
	Logger    *logger.Logger
	Orders    stalePendingCleaner
	MaxAge    time.Duration
	BatchSize int
}

// NewStalePendingJob deletes pending orders that never captured and whose
// campaign is no longer open.
func NewStalePendingJob(params StalePendingJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("pre-order service required")
	}
	maxAge := params.MaxAge
	if maxAge <= 0 {
		maxAge = defaultStaleOrderAge
	}
	return &stalePendingJob{
		logg:   params.Logger,
		orders: params.Orders,
		maxAge: maxAge,
		batch:  batchOrDefault(params.BatchSize),
		now:    time.Now,
	}, nil
}

type stalePendingJob struct {
	logg   *logger.Logger
	orders stalePendingCleaner
	maxAge time.Duration
	batch  int
	now    func() time.Time
}

func (j *stalePendingJob) Name() string { return "stale-pending-cleanup" }

func (j *stalePendingJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.maxAge)
	var total int64
	for pass := 0; pass < maxCleanupPasses; pass++ {
		deleted, err := j.orders.CleanupStalePending(ctx, cutoff, j.batch)
		if err != nil {
			return fmt.Errorf("stale pending cleanup: %w", err)
		}
		total += deleted
		if deleted < int64(j.batch) {
			break
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": total,
	}), "stale pending cleanup complete")
	return nil
}

func batchOrDefault(n int) int {
	if n <= 0 {
		return defaultSweepBatch
	}
	return n
}
