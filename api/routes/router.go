package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/orderdesk/api/controllers"
	"github.com/angelmondragon/orderdesk/api/middleware"
	"github.com/angelmondragon/orderdesk/internal/actions"
	"github.com/angelmondragon/orderdesk/pkg/config"
	"github.com/angelmondragon/orderdesk/pkg/logger"
	"github.com/angelmondragon/orderdesk/pkg/redis"
)

// Params are the dependencies of the HTTP surface. Redis and Gatherer are optional.
type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    *redis.Client
	Account  *actions.Dispatcher
	Orders   *actions.Dispatcher
	Gatherer prometheus.Gatherer
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	readiness := map[string]controllers.Pinger{"db": p.DB}
	if p.Redis != nil {
		readiness["redis"] = p.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	gatherer := p.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		account := r.With()
		if p.Redis != nil {
			account = r.With(middleware.LoginRateLimit(
				middleware.NewLoginRateLimitPolicy(
					cfg.AuthRateLimit.LoginWindow,
					cfg.AuthRateLimit.LoginIPLimit,
					cfg.AuthRateLimit.LoginUsernameLimit,
				),
				p.Redis,
				logg,
			))
		}
		account.Post("/account", controllers.ActionEndpoint(p.Account, logg))
		r.Post("/orders", controllers.ActionEndpoint(p.Orders, logg))
	})

	return r
}
