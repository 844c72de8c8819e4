package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/designdrop-backend/pkg/logger"
	"github.com/angelmondragon/designdrop-backend/pkg/metrics"
)

const defaultInterval = 5 * time.Minute

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service sweeps every registered job on a fixed cadence. Only the worker
// holding Lock sweeps in a given cycle.
type Service struct {
	ServiceParams
}

func NewService(params ServiceParams) (*Service, error) {
	var missing []error
	if params.Logger == nil {
		missing = append(missing, errors.New("logger required"))
	}
	if params.Lock == nil {
		missing = append(missing, errors.New("lock required"))
	}
	if len(missing) > 0 {
		return nil, errors.Join(missing...)
	}
	if params.Registry == nil {
		params.Registry = &Registry{}
	}
	if params.Interval <= 0 {
		params.Interval = defaultInterval
	}
	return &Service{ServiceParams: params}, nil
}

// Run sweeps once right away and then on every tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		if err := s.RunOnce(ctx); err != nil {
			s.Logger.Error(ctx, "sweep finished with failures", err)
		}
		select {
		case <-ctx.Done():
			s.Logger.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce runs every job even when an earlier one fails and returns the
// combined failures.
func (s *Service) RunOnce(ctx context.Context) (errs error) {
	held, err := s.Lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !held {
		s.Logger.Info(ctx, "another cron instance is sweeping; skipping this cycle")
		s.Metrics.IncSkipped()
		return nil
	}
	defer func() {
		if err := s.Lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.Logger.Error(ctx, "failed to release cron lock", err)
		}
	}()

	for _, job := range s.Registry.Jobs() {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		errs = multierr.Append(errs, s.runJob(ctx, job))
	}
	return errs
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	ctx = s.Logger.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	start := time.Now()
	err := job.Run(ctx)
	elapsed := time.Since(start)
	s.Metrics.ObserveRun(job.Name(), elapsed, err)

	ctx = s.Logger.WithField(ctx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.Logger.Error(ctx, "job failed", err)
		return fmt.Errorf("%s: %w", job.Name(), err)
	}
	s.Logger.Debug(ctx, "job completed")
	return nil
}
