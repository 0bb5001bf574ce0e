package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/loterodev/swapmarket-backend/api/controllers"
	webhookcontrollers "github.com/loterodev/swapmarket-backend/api/controllers/webhooks"
	"github.com/loterodev/swapmarket-backend/api/middleware"
	"github.com/loterodev/swapmarket-backend/internal/notifications"
	"github.com/loterodev/swapmarket-backend/internal/payments"
	shippingwebhook "github.com/loterodev/swapmarket-backend/internal/webhooks/shipping"
	"github.com/loterodev/swapmarket-backend/pkg/config"
	"github.com/loterodev/swapmarket-backend/pkg/logger"
	"github.com/loterodev/swapmarket-backend/pkg/redis"
)

// RouterParams carries everything the HTTP surface depends on. Caller
// identity comes pre-verified from the edge gateway as an X-User-Id
// header; the Identity middleware only validates its shape.
type RouterParams struct {
	Config               *config.Config
	Logger               *logger.Logger
	Health               controllers.HealthDeps
	Engine               controllers.TransitionEngine
	NotificationsService notifications.Service
	Ledger               payments.Ledger
	WebhookService       *shippingwebhook.Service
	WebhookGuard         *shippingwebhook.IdempotencyGuard
	Redis                redis.IdempotencyStore
	Metrics              prometheus.Gatherer
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.Health))
	})

	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/shipping", webhookcontrollers.ShippingWebhook(p.WebhookService, cfg.Webhook.ShippingSecret, p.WebhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(logg))
		r.Use(middleware.Idempotency(p.Redis, logg))

		r.Route("/swapspots/{swapSpotId}", func(r chi.Router) {
			r.Post("/receive", controllers.SwapSpotReceive(p.Engine, logg))
			r.Post("/fulfill", controllers.SwapSpotFulfill(p.Engine, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(p.NotificationsService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(p.NotificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(p.NotificationsService, logg))
		})

		r.Route("/payouts", func(r chi.Router) {
			r.Get("/pending", controllers.ListPendingPayouts(p.Ledger, logg))
		})
	})

	return r
}
