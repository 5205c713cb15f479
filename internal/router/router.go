package router

import (
	"time"

	"github.com/chamarodfai/pos-api/internal/config"
	"github.com/chamarodfai/pos-api/internal/database"
	"github.com/chamarodfai/pos-api/internal/handler"
	"github.com/chamarodfai/pos-api/internal/idempotency"
	"github.com/chamarodfai/pos-api/internal/metrics"
	mw "github.com/chamarodfai/pos-api/internal/middleware"
	"github.com/chamarodfai/pos-api/internal/service"
	"github.com/chamarodfai/pos-api/internal/session"
	"github.com/chamarodfai/pos-api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Deps are the collaborators the routes are wired to. Guard may be nil.
type Deps struct {
	Config   *config.Config
	Queries  *database.Queries
	Pool     *pgxpool.Pool
	Orders   *service.OrderService
	Sessions *session.Manager
	Guard    idempotency.Guard
	Hub      *ws.Hub
	Metrics  *metrics.Registry
	Logger   *zap.Logger
}

// New creates a Chi router with all application routes wired up.
func New(d Deps) chi.Router {
	cfg := d.Config
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.RequestLogger(d.Logger, d.Metrics))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Operational routes stay outside the rate limit.
	r.Route("/health", handler.NewHealthHandler(d.Pool, d.Logger).RegisterRoutes)
	r.Handle("/metrics", d.Metrics.Handler())
	r.Handle("/ws/orders", ws.NewHandler(d.Hub, cfg.CORSOrigins))

	r.Group(func(r chi.Router) {
		r.Use(mw.RateLimit(mw.RateLimiterConfig{
			Rate:      rate.Limit(cfg.RateLimitRPS),
			Burst:     cfg.RateLimitBurst,
			ExpiresIn: 3 * time.Minute,
		}))

		r.Route("/menu-items", handler.NewMenuItemHandler(d.Queries, d.Hub, d.Logger).RegisterRoutes)
		r.Route("/promotions", handler.NewPromotionHandler(d.Queries, d.Hub, d.Logger).RegisterRoutes)
		r.Route("/carts", handler.NewCartHandler(d.Sessions, d.Queries, d.Orders, d.Guard, d.Metrics, d.Logger).RegisterRoutes)
		r.Route("/orders", handler.NewOrderHandler(d.Orders, cfg.RecentOrdersLimit, d.Logger).RegisterRoutes)
		r.Route("/reports", handler.NewReportsHandler(d.Orders, d.Queries, cfg.Location(), d.Metrics, d.Logger).RegisterRoutes)
	})

	return r
}
