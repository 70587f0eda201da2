package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	domain "github.com/northwind-goods/api/internal/domain"
	"github.com/northwind-goods/api/internal/handlers"
	"github.com/northwind-goods/api/internal/payments"
	"github.com/northwind-goods/api/internal/platform/config"
	"github.com/northwind-goods/api/internal/platform/idempotency"
	"github.com/northwind-goods/api/internal/platform/observability"
	"github.com/northwind-goods/api/internal/services"
)

const idempotencyCleanupInterval = 5 * time.Minute

func main() {
	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")

	cfg, err := config.Load()
	if err != nil {
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			logger.Fatal("invalid configuration", zap.Strings("fields", validation.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
		APIKey:     cfg.PSP.StripeAPIKey,
		AccountID:  cfg.PSP.StripeAccountID,
		Logger:     observability.EventLogger(),
		SessionTTL: cfg.PSP.SessionTTL,
	})
	if err != nil {
		logger.Fatal("failed to initialise stripe provider", zap.Error(err))
	}

	paymentManager, err := payments.NewManager(
		map[string]payments.Provider{"stripe": stripeProvider},
		payments.WithDefaultProvider(cfg.PSP.DefaultProvider),
	)
	if err != nil {
		logger.Fatal("failed to initialise payment manager", zap.Error(err))
	}

	engine, err := services.NewShippingRateEngine(services.ShippingRateEngineDeps{
		Zones:                  services.DefaultZones(),
		DefaultItemWeightGrams: cfg.Shipping.DefaultItemWeightGrams,
		DefaultBox: domain.Dimensions{
			Length: cfg.Shipping.DefaultBoxLengthCm,
			Width:  cfg.Shipping.DefaultBoxWidthCm,
			Height: cfg.Shipping.DefaultBoxHeightCm,
		},
		PackagingFeeBasisPoints: cfg.Shipping.PackagingFeeBasisPoints,
		PackagingFeeMinimum:     cfg.Shipping.PackagingFeeMinimum,
		Logger:                  observability.EventLogger(),
	})
	if err != nil {
		logger.Fatal("failed to initialise shipping rate engine", zap.Error(err))
	}

	quoteService, err := services.NewShippingQuoteService(services.ShippingQuoteServiceDeps{
		Engine:   engine,
		Currency: cfg.Shipping.Currency,
		Logger:   observability.EventLogger(),
	})
	if err != nil {
		logger.Fatal("failed to initialise quote service", zap.Error(err))
	}

	checkoutService, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Engine:   engine,
		Payments: paymentManager,
		Currency: cfg.Shipping.Currency,
		Logger:   observability.EventLogger(),
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout service", zap.Error(err))
	}

	idempotencyStore := idempotency.NewMemoryStore()
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	cleanupTicker := time.NewTicker(idempotencyCleanupInterval)
	cleanupWG.Add(1)
	go func() {
		defer cleanupWG.Done()
		cleanupLogger := logger.Named("idempotency")
		for {
			select {
			case <-cleanupTicker.C:
				runCtx, cancel := context.WithTimeout(cleanupCtx, time.Minute)
				removed, err := idempotencyStore.CleanupExpired(runCtx, time.Now().UTC(), 0)
				cancel()
				if err != nil {
					cleanupLogger.Error("idempotency cleanup error", zap.Error(err))
					continue
				}
				if removed > 0 {
					cleanupLogger.Info("idempotency cleanup removed records", zap.Int("count", removed))
				}
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	shippingHandlers := handlers.NewShippingHandlers(quoteService)
	checkoutHandlers := handlers.NewCheckoutHandlers(checkoutService)
	healthHandlers := handlers.NewHealthHandlers(map[string]handlers.ReadinessCheck{
		"config": func(context.Context) error {
			if cfg.PSP.StripeAPIKey == "" {
				return errors.New("stripe api key not configured")
			}
			return nil
		},
	})

	projectID := cfg.Trace.ProjectID
	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger.Named("http")),
			observability.TraceMiddleware(projectID),
			observability.RecoveryMiddleware(logger.Named("http")),
			observability.RequestLoggerMiddleware(projectID),
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithShippingRoutes(shippingHandlers.Routes),
		handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
		handlers.WithCheckoutMiddlewares(idempotencyMiddleware),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("northwind-goods api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	cleanupTicker.Stop()
	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
