package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/makersrow/makersrow-backend/api/controllers"
	webhookcontrollers "github.com/makersrow/makersrow-backend/api/controllers/webhooks"
	"github.com/makersrow/makersrow-backend/api/middleware"
	"github.com/makersrow/makersrow-backend/internal/events"
	"github.com/makersrow/makersrow-backend/pkg/config"
	"github.com/makersrow/makersrow-backend/pkg/logger"
	"github.com/makersrow/makersrow-backend/pkg/stripe"
)

// Dependencies carries the pingable backing stores for the readiness probe.
// Entries may be nil when a deployment does not carry that dependency.
type Dependencies struct {
	DB       controllers.Pinger
	Redis    controllers.Pinger
	PubSub   controllers.Pinger
	BigQuery controllers.Pinger
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	deps Dependencies,
	admitter *events.Service,
	stripeClient *stripe.Client,
	registry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": deps.DB,
			"redis":    deps.Redis,
			"pubsub":   deps.PubSub,
			"bigquery": deps.BigQuery,
		}))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(admitter, stripeClient, logg))
	})

	return r
}
