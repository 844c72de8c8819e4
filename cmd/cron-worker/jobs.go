package main

import (
	"fmt"

	"github.com/angelmondragon/designdrop-backend/internal/app"
	"github.com/angelmondragon/designdrop-backend/internal/cron"
	"github.com/angelmondragon/designdrop-backend/pkg/config"
	"github.com/angelmondragon/designdrop-backend/pkg/db"
	"github.com/angelmondragon/designdrop-backend/pkg/logger"
)

// buildRegistry assembles the sweep in its required order: voting closes
// before pre-order windows are settled, cleanup runs last.
func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, svcs *app.Services) (*cron.Registry, error) {
	votingClose, err := cron.NewVotingCloseJob(cron.VotingCloseJobParams{
		Logger:      logg,
		Submissions: svcs.Submissions,
	})
	if err != nil {
		return nil, fmt.Errorf("voting close job: %w", err)
	}

	preorderClose, err := cron.NewPreorderCloseJob(cron.PreorderCloseJobParams{
		Logger:      logg,
		Submissions: svcs.Submissions,
		Settlement:  svcs.Settlement,
	})
	if err != nil {
		return nil, fmt.Errorf("pre-order close job: %w", err)
	}

	stalePending, err := cron.NewStalePendingJob(cron.StalePendingJobParams{
		Logger: logg,
		Orders: svcs.PreOrders,
		MaxAge: cfg.Cron.StalePendingOrderAge,
	})
	if err != nil {
		return nil, fmt.Errorf("stale pending job: %w", err)
	}

	outboxRetention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: svcs.OutboxRepository,
		Retention:  cfg.Outbox.RetentionDays,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}

	notificationRetention, err := cron.NewNotificationRetentionJob(cron.NotificationRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: svcs.NotificationsRepo,
		Retention:  cfg.Cron.NotificationRetentionDays,
	})
	if err != nil {
		return nil, fmt.Errorf("notification retention job: %w", err)
	}

	return cron.NewRegistry(votingClose, preorderClose, stalePending, outboxRetention, notificationRetention)
}
