package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-be/internal/api"
	"storefront-be/internal/config"
	"storefront-be/internal/db"
	"storefront-be/internal/inventory"
	"storefront-be/internal/lock"
	"storefront-be/internal/logger"
	"storefront-be/internal/metrics"
	"storefront-be/internal/middleware"
	"storefront-be/internal/notification"
	"storefront-be/internal/order"
	"storefront-be/internal/product"
	"storefront-be/internal/promo"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Overridden in tests.
var (
	initDBFunc      = db.NewDatabase
	startServerFunc = func(srv *http.Server) error { return srv.ListenAndServe() }
)

type server struct {
	handler http.Handler
	limiter *middleware.RateLimiter
	closers []func() error
}

func (s *server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			logger.L().Warn("shutdown step failed", zap.Error(err))
		}
	}
}

func setupRouter(apiRoutes http.Handler, jwtSecret string, limiter *middleware.RateLimiter) http.Handler {
	r := chi.NewRouter()
	r.Use(logger.RequestIDMiddleware)
	r.Use(logger.LoggingMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Auth(jwtSecret))
	r.Use(limiter.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Mount("/api", apiRoutes)

	return r
}

// newServer wires every service on top of database. Close the returned
// server to release broker and cache connections.
func newServer(cfg *config.Config, database *sql.DB) (*server, error) {
	s := &server{}

	notifier, closeNotifier, err := notification.New(cfg)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, closeNotifier)

	var locker order.Locker
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := client.Ping(ctx).Err()
		cancel()
		if err != nil {
			client.Close()
			s.close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		s.closers = append(s.closers, client.Close)
		locker = lock.NewRedisLocker(client, "storefront:order-lock:", cfg.OrderLockTTL)
	}

	orderMetrics := &metrics.Orders{}
	refund := order.NewRefundPolicy(cfg.RefundWindow, order.ParseDeliveryFallback(cfg.RefundDeliveryFallback))

	ledger := inventory.NewLedger(database, inventory.NewRepository(database))

	orderSvc := order.NewService(order.NewRepository(database), ledger, notifier, order.ServiceConfig{
		Policy:  order.Policy{RequireTrackingOnShip: cfg.RequireTrackingOnShip},
		Refund:  refund,
		Locker:  locker,
		Metrics: orderMetrics,
	})

	h := api.NewHandler(api.Deps{
		Orders:   orderSvc,
		Bulk:     order.NewBulk(orderSvc, cfg.BulkConcurrency, orderMetrics),
		Refund:   refund,
		Ledger:   ledger,
		Variants: product.NewService(product.NewRepository(database), ledger),
		Promos:   promo.NewService(promo.NewRepository(database)),
		Metrics:  orderMetrics,
	})

	s.limiter = middleware.NewRateLimiter()
	s.handler = setupRouter(h.Routes(), cfg.JWTSecret, s.limiter)

	return s, nil
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database, err := initDBFunc(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	s, err := newServer(cfg, database)
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.limiter.Run(ctx)

	httpSrv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("http server listening",
			zap.String("addr", httpSrv.Addr),
			zap.String("env", cfg.AppEnv),
			zap.String("notifier", cfg.Notifier),
			zap.Bool("order_lock", cfg.RedisAddr != ""),
		)
		errCh <- startServerFunc(httpSrv)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.L().Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	return httpSrv.Shutdown(shutdownCtx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatal(err)
	}
}
