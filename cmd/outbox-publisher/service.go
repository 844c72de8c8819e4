package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/designdrop-backend/pkg/config"
	"github.com/angelmondragon/designdrop-backend/pkg/db/models"
	"github.com/angelmondragon/designdrop-backend/pkg/logger"
	"github.com/angelmondragon/designdrop-backend/pkg/metrics"
	"github.com/angelmondragon/designdrop-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	DLQRepository    dlqRepository
	Metrics          *metrics.OutboxMetrics
	PublisherFactory publisherFactory
}

func (p ServiceParams) validate() error {
	var errs []error
	need := func(ok bool, name string) {
		if !ok {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}
	need(p.Config != nil, "config")
	need(p.Logger != nil, "logger")
	need(p.DB != nil, "database client")
	need(p.PubSub != nil, "pubsub client")
	need(p.Repository != nil, "outbox repository")
	need(p.Registry != nil, "event registry")
	need(p.DLQRepository != nil, "dlq repository")
	return errors.Join(errs...)
}

// Service drains unpublished outbox rows to Pub/Sub. A batch is one
// transaction: the rows it locks stay locked until each is marked published,
// failed or dead-lettered.
type Service struct {
	cfg              *config.Config
	logg             *logger.Logger
	db               dbClient
	pubsub           pubSubClient
	repo             outboxRepository
	registry         registryResolver
	dlq              dlqRepository
	metrics          *metrics.OutboxMetrics
	publisherFactory publisherFactory

	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	factory := params.PublisherFactory
	if factory == nil {
		factory = gcpPublishers(params.PubSub)
	}
	tuning := params.Config.Outbox
	svc := &Service{
		cfg:              params.Config,
		logg:             params.Logger,
		db:               params.DB,
		pubsub:           params.PubSub,
		repo:             params.Repository,
		registry:         params.Registry,
		dlq:              params.DLQRepository,
		metrics:          params.Metrics,
		publisherFactory: factory,
		batchSize:        defaultBatchSize,
		maxAttempts:      defaultMaxAttempts,
		pollInterval:     defaultPollInterval,
	}
	if tuning.BatchSize > 0 {
		svc.batchSize = tuning.BatchSize
	}
	if tuning.MaxAttempts > 0 {
		svc.maxAttempts = tuning.MaxAttempts
	}
	if tuning.PollIntervalMS > 0 {
		svc.pollInterval = time.Duration(tuning.PollIntervalMS) * time.Millisecond
	}
	return svc, nil
}

func (s *Service) ready(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := s.pubsub.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping failed: %w", err)
	}
	return nil
}

// Run polls until ctx is canceled. An empty batch waits one poll interval,
// a failed batch backs off exponentially up to maxBackoff, and a batch that
// found rows loops immediately.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		s.logg.Error(ctx, "outbox publisher not ready", err)
		return err
	}

	backoff := s.pollInterval
	for {
		started := time.Now()
		found, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			backoff = min(backoff*2, maxBackoff)
		case found:
			s.metrics.ObserveBatch(time.Since(started))
			backoff = s.pollInterval
			if ctx.Err() == nil {
				continue
			}
		default:
			backoff = s.pollInterval
		}

		timer := time.NewTimer(backoff + rand.N(jitterWindow))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logg.Info(ctx, "outbox publisher stopping")
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// processBatch reports whether any rows were fetched. A failed publish is
// recorded on its row; only a failed bookkeeping write fails the batch.
func (s *Service) processBatch(ctx context.Context) (found bool, err error) {
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		found = len(rows) > 0
		for _, row := range rows {
			if err := s.record(ctx, tx, row, s.dispatch(ctx, row)); err != nil {
				return err
			}
		}
		return nil
	})
	return found, err
}
