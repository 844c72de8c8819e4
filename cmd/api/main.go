package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/designdrop-backend/api/controllers"
	"github.com/angelmondragon/designdrop-backend/api/routes"
	"github.com/angelmondragon/designdrop-backend/internal/app"
	squarewebhook "github.com/angelmondragon/designdrop-backend/internal/webhooks/square"
	"github.com/angelmondragon/designdrop-backend/pkg/config"
	"github.com/angelmondragon/designdrop-backend/pkg/db"
	"github.com/angelmondragon/designdrop-backend/pkg/eventbus"
	"github.com/angelmondragon/designdrop-backend/pkg/instance"
	"github.com/angelmondragon/designdrop-backend/pkg/logger"
	"github.com/angelmondragon/designdrop-backend/pkg/metrics"
	"github.com/angelmondragon/designdrop-backend/pkg/migrate"
	"github.com/angelmondragon/designdrop-backend/pkg/outbox"
	"github.com/angelmondragon/designdrop-backend/pkg/redis"
	"github.com/angelmondragon/designdrop-backend/pkg/square"
)

const (
	liveHubBuffer      = 64
	squareWebhookTTL   = 7 * 24 * time.Hour
	squareWebhookScope = "square-webhook"
	shutdownTimeout    = 15 * time.Second
	readHeaderTimeout  = 10 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "api"

	logg = logger.NewFromConfig("api", cfg)
	defer logg.Close()

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap square", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	hub := eventbus.NewHub(liveHubBuffer)
	svcs, err := app.Build(app.Params{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient,
		Payments: squareClient,
		Hub:      hub,
		Registry: registry,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	webhookService, err := squarewebhook.NewService(squarewebhook.ServiceParams{Orders: svcs.PreOrders, Logger: logg})
	if err != nil {
		logg.Error(context.Background(), "failed to create square webhook service", err)
		os.Exit(1)
	}
	webhookGuard, err := squarewebhook.NewIdempotencyGuard(redisClient, squareWebhookTTL, squareWebhookScope)
	if err != nil {
		logg.Error(context.Background(), "failed to create square webhook guard", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(routes.Deps{
		Config: cfg,
		Logger: logg,
		Pingers: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
		},
		Redis:              redisClient,
		Gatherer:           registry,
		HTTPMetrics:        metrics.NewHTTPMetrics(registry),
		Hub:                hub,
		Submissions:        svcs.Submissions,
		Votes:              svcs.Votes,
		PreOrders:          svcs.PreOrders,
		Settlement:         svcs.Settlement,
		Payouts:            svcs.Payouts,
		Ledger:             svcs.Ledger,
		Notifications:      svcs.Notifications,
		DeadLetters:        outbox.NewDLQRepository(dbClient.DB()),
		SquareWebhook:      webhookService,
		SquareSigner:       squareClient,
		SquareWebhookGuard: webhookGuard,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID("local"),
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-sigCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}()

	logg.Info(ctx, "starting api server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}
