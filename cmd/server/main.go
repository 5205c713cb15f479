package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chamarodfai/pos-api/internal/config"
	"github.com/chamarodfai/pos-api/internal/database"
	"github.com/chamarodfai/pos-api/internal/events"
	"github.com/chamarodfai/pos-api/internal/idempotency"
	"github.com/chamarodfai/pos-api/internal/metrics"
	"github.com/chamarodfai/pos-api/internal/router"
	"github.com/chamarodfai/pos-api/internal/service"
	"github.com/chamarodfai/pos-api/internal/session"
	"github.com/chamarodfai/pos-api/internal/ws"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		// Reads report 503 until the database comes back.
		logger.Warn("database not reachable at startup", zap.Error(err))
	}

	queries := database.New(pool)
	reg := metrics.NewRegistry()

	hub := ws.NewHub(logger)
	hub.OnClients = func(n int) { reg.WebsocketClients.Set(float64(n)) }
	go hub.Run(ctx)

	listeners := []service.OrderListener{reg, hub}
	if len(cfg.KafkaBrokers) > 0 {
		pub := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer pub.Close()
		listeners = append(listeners, pub)
		logger.Info("publishing orders to kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	orders := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}, queries, logger, listeners...)
	defer orders.Close()

	var store session.Store = session.NewMemoryStore()
	if cfg.SessionDir != "" {
		ps, err := session.NewPebbleStore(cfg.SessionDir)
		if err != nil {
			return fmt.Errorf("open session store: %w", err)
		}
		defer ps.Close()
		store = ps
		ids, err := ps.IDs()
		if err != nil {
			logger.Warn("list persisted cart sessions", zap.Error(err))
		}
		logger.Info("cart sessions persisted", zap.String("dir", cfg.SessionDir), zap.Int("resumable", len(ids)))
	}
	sessions := session.NewManager(store, logger)

	var guard idempotency.Guard = idempotency.NewMemoryGuard(cfg.IdempotencyTTL)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not reachable at startup", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		guard = idempotency.NewRedisGuard(rdb, cfg.IdempotencyTTL)
	}

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: router.New(router.Deps{
			Config:   cfg,
			Queries:  queries,
			Pool:     pool,
			Orders:   orders,
			Sessions: sessions,
			Guard:    guard,
			Hub:      hub,
			Metrics:  reg,
			Logger:   logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
