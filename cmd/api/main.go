package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/safar/kitrunner/internal/config"
	"github.com/safar/kitrunner/internal/database"
	"github.com/safar/kitrunner/internal/delivery"
	"github.com/safar/kitrunner/internal/handler"
	"github.com/safar/kitrunner/internal/idempotency"
	"github.com/safar/kitrunner/internal/observability"
	"github.com/safar/kitrunner/internal/ordernum"
	"github.com/safar/kitrunner/internal/service"
	"github.com/safar/kitrunner/internal/store"
	"github.com/safar/kitrunner/internal/store/postgres"
)

const idempotencyCleanupInterval = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

type backend struct {
	store       store.Store
	idempotency idempotency.Store
	ping        func(context.Context) error
}

func openBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backend, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		return &backend{store: store.NewMemoryStore(), idempotency: idempotency.NewMemoryStore()}, nil
	}

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("connected to database")

	return &backend{
		store:       postgres.New(db),
		idempotency: idempotency.NewPostgresStore(db),
		ping:        db.PingContext,
	}, nil
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.store.Close()

	if cfg.SeedData {
		if err := store.Seed(ctx, b.store); err != nil {
			return fmt.Errorf("seed data: %w", err)
		}
		logger.Info("demo data loaded")
	}

	numbers, err := ordernum.NewGenerator(cfg.SnowflakeNode)
	if err != nil {
		return err
	}

	quoter := delivery.NewZipPrefixQuoter(cfg.Delivery.OriginZipCode, cfg.Delivery.PickupFee, cfg.Delivery.RatePerKm)
	pricer := service.NewPricer(quoter, logger)

	router := handler.NewRouter(handler.Deps{
		Events:         service.NewEventService(b.store, logger),
		Customers:      service.NewCustomerService(b.store, logger),
		Delivery:       service.NewDeliveryService(b.store, pricer, logger),
		Orders:         service.NewOrderService(b.store, pricer, numbers, cfg.Delivery.EstimateDays, logger),
		Idempotency:    b.idempotency,
		IdempotencyTTL: cfg.Idempotency.TTL,
		Ping:           b.ping,
		Logger:         logger,
	})

	go cleanupIdempotencyKeys(ctx, b.idempotency, logger)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func cleanupIdempotencyKeys(ctx context.Context, s idempotency.Store, logger *zap.Logger) {
	ticker := time.NewTicker(idempotencyCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := s.CleanupExpired(ctx, now, 0)
			if err != nil {
				logger.Warn("idempotency cleanup failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Debug("idempotency keys removed", zap.Int("count", n))
			}
		}
	}
}
