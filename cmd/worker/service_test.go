package main

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/designdrop-backend/pkg/logger"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type consumerFunc func(context.Context) error

func (f consumerFunc) Run(ctx context.Context) error { return f(ctx) }

func okPing(context.Context) error { return nil }

func newTestWorker(t *testing.T, redis pinger, run consumerFunc) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:               logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard}),
		DB:                   pingFunc(okPing),
		Redis:                redis,
		PubSub:               pingFunc(okPing),
		NotificationConsumer: run,
	})
	require.NoError(t, err)
	return svc
}

func TestNewServiceRequiresConsumer(t *testing.T) {
	_, err := NewService(ServiceParams{
		Logger: logger.New(logger.Options{Output: io.Discard}),
		DB:     pingFunc(okPing),
		Redis:  pingFunc(okPing),
		PubSub: pingFunc(okPing),
	})
	assert.Error(t, err)
}

func TestRunStopsOnFailedReadiness(t *testing.T) {
	called := false
	svc := newTestWorker(t, pingFunc(func(context.Context) error { return errors.New("redis down") }), func(context.Context) error {
		called = true
		return nil
	})

	err := svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
	assert.False(t, called)
}

func TestRunReturnsContextErrorOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	svc := newTestWorker(t, pingFunc(okPing), func(ctx context.Context) error {
		cancel()
		<-ctx.Done()
		return nil
	})

	assert.ErrorIs(t, svc.Run(ctx), context.Canceled)
}

func TestNewServiceRequiresBigQueryWithAnalytics(t *testing.T) {
	_, err := NewService(ServiceParams{
		Logger:               logger.New(logger.Options{Output: io.Discard}),
		DB:                   pingFunc(okPing),
		Redis:                pingFunc(okPing),
		PubSub:               pingFunc(okPing),
		NotificationConsumer: consumerFunc(func(context.Context) error { return nil }),
		AnalyticsConsumer:    consumerFunc(func(context.Context) error { return nil }),
	})
	assert.Error(t, err)
}

func TestRunStopsNotificationsWhenAnalyticsFails(t *testing.T) {
	boom := errors.New("bigquery stream failed")
	notificationsStopped := false
	svc, err := NewService(ServiceParams{
		Logger: logger.New(logger.Options{Output: io.Discard}),
		DB:     pingFunc(okPing),
		Redis:  pingFunc(okPing),
		PubSub: pingFunc(okPing),
		NotificationConsumer: consumerFunc(func(ctx context.Context) error {
			<-ctx.Done()
			notificationsStopped = true
			return nil
		}),
		AnalyticsConsumer: consumerFunc(func(context.Context) error { return boom }),
		BigQuery:          pingFunc(okPing),
	})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Run(context.Background()), boom)
	assert.True(t, notificationsStopped)
}

func TestRunChecksBigQueryReadiness(t *testing.T) {
	svc, err := NewService(ServiceParams{
		Logger:               logger.New(logger.Options{Output: io.Discard}),
		DB:                   pingFunc(okPing),
		Redis:                pingFunc(okPing),
		PubSub:               pingFunc(okPing),
		NotificationConsumer: consumerFunc(func(context.Context) error { return nil }),
		AnalyticsConsumer:    consumerFunc(func(context.Context) error { return nil }),
		BigQuery:             pingFunc(func(context.Context) error { return errors.New("dataset missing") }),
	})
	require.NoError(t, err)

	err = svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bigquery ping failed")
}

func TestRunSurfacesConsumerFailure(t *testing.T) {
	boom := errors.New("receive failed")
	svc := newTestWorker(t, pingFunc(okPing), func(context.Context) error { return boom })
	assert.ErrorIs(t, svc.Run(context.Background()), boom)
}
