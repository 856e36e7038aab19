package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/amerta-coffee/amerta-coffee-api/api/controllers"
	"github.com/amerta-coffee/amerta-coffee-api/api/middleware"
	"github.com/amerta-coffee/amerta-coffee-api/internal/address"
	"github.com/amerta-coffee/amerta-coffee-api/internal/cart"
	checkoutsvc "github.com/amerta-coffee/amerta-coffee-api/internal/checkout"
	"github.com/amerta-coffee/amerta-coffee-api/internal/orders"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/config"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/logger"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/metrics"
	pkgredis "github.com/amerta-coffee/amerta-coffee-api/pkg/redis"
)

// redisStore is the slice of the redis client the HTTP layer depends on.
type redisStore interface {
	controllers.Pinger
	pkgredis.IdempotencyStore
	pkgredis.RateLimiter
}

// Services groups the domain services exposed over HTTP.
type Services struct {
	Cart     cart.Service
	Checkout checkoutsvc.Service
	Orders   orders.Service
	Address  address.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient redisStore,
	gatherer prometheus.Gatherer,
	httpMetrics *metrics.Server,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	checkoutPolicy := middleware.NewRateLimitPolicy(
		"checkout",
		cfg.Checkout.RateLimit,
		cfg.Checkout.RateLimitWindow,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    dbP,
			"redis": redisClient,
		}))
	})

	if cfg.FeatureFlags.Metrics && gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(gatherer))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, middleware.DefaultIdempotencyRules(cfg.Checkout.IdempotencyTTL), logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(svcs.Cart, logg))
			r.Post("/items", controllers.CartAddItem(svcs.Cart, logg))
			r.Put("/items", controllers.CartSetItem(svcs.Cart, logg))
			r.Delete("/items/{productId}", controllers.CartDeleteItem(svcs.Cart, logg))
		})

		r.With(middleware.UserRateLimit(checkoutPolicy, redisClient, logg)).
			Post("/checkout", controllers.Checkout(svcs.Checkout, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersList(svcs.Orders, logg))
			r.Get("/{orderId}", controllers.OrdersGet(svcs.Orders, logg))
		})

		r.Route("/addresses", func(r chi.Router) {
			r.Get("/", controllers.AddressList(svcs.Address, logg))
			r.Post("/", controllers.AddressCreate(svcs.Address, logg))
		})
	})

	return r
}
