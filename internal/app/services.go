// Package app assembles the domain services shared by the api and cron binaries.
package app

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/designdrop-backend/internal/ledger"
	"github.com/angelmondragon/designdrop-backend/internal/notifications"
	"github.com/angelmondragon/designdrop-backend/internal/payouts"
	"github.com/angelmondragon/designdrop-backend/internal/preorders"
	"github.com/angelmondragon/designdrop-backend/internal/settlement"
	"github.com/angelmondragon/designdrop-backend/internal/submissions"
	"github.com/angelmondragon/designdrop-backend/internal/votes"
	"github.com/angelmondragon/designdrop-backend/pkg/config"
	"github.com/angelmondragon/designdrop-backend/pkg/db"
	"github.com/angelmondragon/designdrop-backend/pkg/eventbus"
	"github.com/angelmondragon/designdrop-backend/pkg/logger"
	"github.com/angelmondragon/designdrop-backend/pkg/metrics"
	"github.com/angelmondragon/designdrop-backend/pkg/outbox"
)

// Params are the process-level clients the services are built from.
type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *db.Client
	Payments preorders.PaymentCapturer
	Hub      *eventbus.Hub
	Registry prometheus.Registerer
}

// Services is the wired domain layer.
type Services struct {
	Outbox            *outbox.Service
	OutboxRepository  *outbox.Repository
	Notifier          *notifications.Notifier
	NotificationsRepo notifications.Repository
	Notifications     notifications.Service
	Ledger            ledger.Service
	Votes             votes.Service
	PreOrders         preorders.Service
	Submissions       submissions.Service
	Settlement        settlement.Service
	Payouts           payouts.Service
	SettlementMetrics *metrics.SettlementMetrics
}

// Build wires every domain service in dependency order.
func Build(params Params) (*Services, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("database client required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment capturer required")
	}

	cfg := params.Config
	logg := params.Logger
	conn := params.DB.DB()

	var events eventbus.Publisher = eventbus.Nop{}
	if params.Hub != nil {
		events = params.Hub
	}

	out := &Services{}
	out.OutboxRepository = outbox.NewRepository(conn)
	out.Outbox = outbox.NewService(out.OutboxRepository, logg)

	notifier, err := notifications.NewNotifier(out.Outbox)
	if err != nil {
		return nil, fmt.Errorf("notifier: %w", err)
	}
	out.Notifier = notifier
	out.NotificationsRepo = notifications.NewRepository(conn)
	if out.Notifications, err = notifications.NewService(out.NotificationsRepo); err != nil {
		return nil, fmt.Errorf("notifications service: %w", err)
	}

	if out.Ledger, err = ledger.NewService(ledger.NewRepository(conn)); err != nil {
		return nil, fmt.Errorf("ledger service: %w", err)
	}

	if out.Votes, err = votes.NewService(votes.NewRepository(conn), params.DB, out.Outbox, events, logg); err != nil {
		return nil, fmt.Errorf("votes service: %w", err)
	}

	out.PreOrders, err = preorders.NewService(preorders.ServiceParams{
		Repo:     preorders.NewRepository(conn),
		DB:       params.DB,
		Payments: params.Payments,
		Ledger:   out.Ledger,
		Notifier: notifier,
		Outbox:   out.Outbox,
		Events:   events,
		Currency: cfg.Marketplace.Currency,
		Logger:   logg,
	})
	if err != nil {
		return nil, fmt.Errorf("pre-order service: %w", err)
	}

	out.Submissions, err = submissions.NewService(submissions.ServiceParams{
		Repo:     submissions.NewRepository(conn),
		DB:       params.DB,
		Outbox:   out.Outbox,
		Events:   events,
		Tally:    out.Votes,
		Refunder: out.PreOrders,
		Config:   cfg.Marketplace,
		Logger:   logg,
	})
	if err != nil {
		return nil, fmt.Errorf("submissions service: %w", err)
	}

	if params.Registry != nil {
		out.SettlementMetrics = metrics.NewSettlementMetrics(params.Registry)
	}
	out.Settlement, err = settlement.NewService(settlement.ServiceParams{
		Repo:       settlement.NewRepository(conn),
		DB:         params.DB,
		Ledger:     out.Ledger,
		Notifier:   notifier,
		Outbox:     out.Outbox,
		Events:     events,
		Metrics:    out.SettlementMetrics,
		DefaultCap: cfg.Marketplace.QuarterlyCap(),
		Logger:     logg,
	})
	if err != nil {
		return nil, fmt.Errorf("settlement service: %w", err)
	}

	if out.Payouts, err = payouts.NewService(payouts.NewRepository(conn), params.DB, out.Outbox, notifier, cfg.Marketplace.QuarterlyCap(), logg); err != nil {
		return nil, fmt.Errorf("payouts service: %w", err)
	}

	return out, nil
}
