package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/designdrop-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/designdrop-backend/api/controllers/webhooks"
	"github.com/angelmondragon/designdrop-backend/api/middleware"
	"github.com/angelmondragon/designdrop-backend/internal/ledger"
	"github.com/angelmondragon/designdrop-backend/internal/notifications"
	"github.com/angelmondragon/designdrop-backend/internal/payouts"
	"github.com/angelmondragon/designdrop-backend/internal/preorders"
	"github.com/angelmondragon/designdrop-backend/internal/settlement"
	"github.com/angelmondragon/designdrop-backend/internal/submissions"
	"github.com/angelmondragon/designdrop-backend/internal/votes"
	"github.com/angelmondragon/designdrop-backend/pkg/config"
	"github.com/angelmondragon/designdrop-backend/pkg/enums"
	"github.com/angelmondragon/designdrop-backend/pkg/eventbus"
	"github.com/angelmondragon/designdrop-backend/pkg/logger"
	"github.com/angelmondragon/designdrop-backend/pkg/metrics"
	"github.com/angelmondragon/designdrop-backend/pkg/redis"
)

// Deps carries everything the API routes are built from.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Pingers  map[string]controllers.Pinger
	Redis    *redis.Client
	Gatherer prometheus.Gatherer
	Hub      *eventbus.Hub

	HTTPMetrics *metrics.HTTPMetrics

	Submissions   submissions.Service
	Votes         votes.Service
	PreOrders     preorders.Service
	Settlement    settlement.Service
	Payouts       payouts.Service
	Ledger        ledger.Service
	Notifications notifications.Service
	DeadLetters   controllers.DeadLetterLister

	SquareWebhook      webhookcontrollers.SquareWebhookService
	SquareSigner       webhookcontrollers.SquareSigner
	SquareWebhookGuard webhookcontrollers.SquareWebhookGuard
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	// A nil *redis.Client must reach the middleware as a nil interface.
	var idempotencyStore middleware.IdempotencyStore
	var rateStore middleware.RateLimitStore
	if deps.Redis != nil {
		idempotencyStore = deps.Redis
		rateStore = deps.Redis
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
		middleware.Recoverer(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/webhooks", func(r chi.Router) {
		r.With(middleware.RateLimit(rateStore, middleware.WebhookRateLimit, logg)).
			Post("/square", webhookcontrollers.SquareWebhook(deps.SquareWebhook, deps.SquareSigner, deps.SquareWebhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Public reads; a token, when sent, still has to be valid.
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, logg))
			r.Get("/designs", controllers.ListDesigns(deps.Submissions, logg))
			r.Get("/designs/{designID}", controllers.GetDesign(deps.Submissions, logg))
			r.Get("/designs/{designID}/votes", controllers.GetVoteTally(deps.Votes, logg))
			r.Get("/designs/{designID}/quote", controllers.QuoteDesign(deps.PreOrders, logg))
			if cfg.FeatureFlags.LiveStream {
				r.Get("/live", controllers.LiveStream(deps.Hub, cfg.App.CORSOrigins, logg))
			}
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(idempotencyStore, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleDesigner, enums.UserRoleAdmin))
				r.Post("/designs", controllers.CreateDesign(deps.Submissions, logg))
				r.Patch("/designs/{designID}", controllers.UpdateDesign(deps.Submissions, logg))
				r.Post("/designs/{designID}/submit", controllers.SubmitDesign(deps.Submissions, logg))
				r.Get("/payouts", controllers.ListMyPayouts(deps.Payouts, logg))
				r.Get("/payouts/cap", controllers.GetMyRoyaltyCap(deps.Payouts, logg))
				r.Get("/payouts/{payoutID}", controllers.GetPayout(deps.Payouts, logg))
			})

			r.With(middleware.RateLimit(rateStore, middleware.VoteRateLimit, logg)).
				Post("/designs/{designID}/votes", controllers.CastVote(deps.Votes, logg))
			r.Get("/designs/{designID}/votes/me", controllers.GetMyVote(deps.Votes, logg))

			r.Route("/pre-orders", func(r chi.Router) {
				r.With(middleware.RateLimit(rateStore, middleware.PreOrderRateLimit, logg)).
					Post("/", controllers.PlaceOrder(deps.PreOrders, logg))
				r.Get("/", controllers.ListMyPreOrders(deps.PreOrders, logg))
				r.Get("/{orderID}", controllers.GetPreOrder(deps.PreOrders, logg))
			})

			r.Get("/credits", controllers.GetMyCredits(deps.Ledger, logg))

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
				r.Post("/{notificationID}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
				r.Route("/designs/{designID}", func(r chi.Router) {
					r.Post("/approve", controllers.ApproveDesign(deps.Submissions, logg))
					r.Post("/reject", controllers.RejectDesign(deps.Submissions, logg))
					r.Post("/close-voting", controllers.CloseDesignVoting(deps.Submissions, logg))
					r.Post("/pricing", controllers.ConfigureDesignPricing(deps.Submissions, logg))
					r.Post("/launch", controllers.LaunchDesign(deps.Submissions, logg))
					r.Post("/force-reject", controllers.ForceRejectDesign(deps.Submissions, logg))
					r.Post("/settle", controllers.SettleDesign(deps.Settlement, logg))
				})
				r.Route("/payouts/{payoutID}", func(r chi.Router) {
					r.Post("/complete", controllers.CompletePayout(deps.Payouts, logg))
					r.Post("/fail", controllers.FailPayout(deps.Payouts, logg))
				})
				r.Get("/designers/{designerID}/royalty-cap", controllers.GetDesignerRoyaltyCap(deps.Payouts, logg))
				r.Put("/designers/{designerID}/royalty-cap", controllers.SetDesignerRoyaltyCap(deps.Payouts, logg))
				r.Get("/outbox/dead-letters", controllers.ListDeadLetters(deps.DeadLetters, logg))
			})
		})
	})

	return r
}
