package main

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

type pinger interface {
	Ping(context.Context) error
}

type consumer interface {
	Run(context.Context) error
}

type ServiceParams struct {
	Logger               logSink
	DB                   pinger
	Redis                pinger
	PubSub               pinger
	NotificationConsumer consumer
	// AnalyticsConsumer and BigQuery are optional and must be set together.
	AnalyticsConsumer consumer
	BigQuery          pinger
}

// logSink is the subset of the logger the worker loop needs.
type logSink interface {
	Info(ctx context.Context, msg string)
	Error(ctx context.Context, msg string, err error)
}

type Service struct {
	logg      logSink
	deps      []namedPinger
	consumers []namedConsumer
}

type namedConsumer struct {
	name string
	c    consumer
}

type namedPinger struct {
	name string
	p    pinger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.NotificationConsumer == nil {
		return nil, errors.New("notification consumer is required")
	}

	if (params.AnalyticsConsumer == nil) != (params.BigQuery == nil) {
		return nil, errors.New("analytics consumer and bigquery client must be configured together")
	}

	svc := &Service{
		logg: params.Logger,
		deps: []namedPinger{
			{name: "database", p: params.DB},
			{name: "redis", p: params.Redis},
			{name: "pubsub", p: params.PubSub},
		},
		consumers: []namedConsumer{{name: "notification", c: params.NotificationConsumer}},
	}
	if params.AnalyticsConsumer != nil {
		svc.deps = append(svc.deps, namedPinger{name: "bigquery", p: params.BigQuery})
		svc.consumers = append(svc.consumers, namedConsumer{name: "analytics", c: params.AnalyticsConsumer})
	}
	return svc, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for _, dep := range s.deps {
		if err := dep.p.Ping(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", dep.name), err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

// Run blocks until the context is canceled or any consumer exits. A failing
// consumer stops the others.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, nc := range s.consumers {
		group.Go(func() error {
			err := nc.c.Run(groupCtx)
			if err != nil && ctx.Err() == nil {
				s.logg.Error(ctx, fmt.Sprintf("%s consumer stopped unexpectedly", nc.name), err)
				return err
			}
			return nil
		})
	}
	err := group.Wait()
	if ctx.Err() != nil {
		s.logg.Info(ctx, "worker context canceled")
		return ctx.Err()
	}
	return err
}
