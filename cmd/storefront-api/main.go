package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	checkoutsqlite "github.com/jcmexdev/regaloshop/internal/checkoutlog/sqlite"
	"github.com/jcmexdev/regaloshop/internal/pkg/cache"
	"github.com/jcmexdev/regaloshop/internal/pkg/config"
	"github.com/jcmexdev/regaloshop/internal/pkg/telemetry"
	"github.com/jcmexdev/regaloshop/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/regaloshop/internal/storefront/core/ports"
	"github.com/jcmexdev/regaloshop/internal/storefront/core/service"
	"github.com/jcmexdev/regaloshop/internal/storefront/infra/adapters/events"
	"github.com/jcmexdev/regaloshop/internal/storefront/infra/adapters/storage"
	"github.com/jcmexdev/regaloshop/internal/storefront/infra/httpx"
)

func main() {
	cfg, err := config.Load(os.Getenv("STOREFRONT_CONFIG"))
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	telemetry.InitLogger(cfg.Telemetry.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("storefront api stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	shutdownTracer, err := telemetry.SetupTracer(ctx, telemetry.TracerConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Environment: cfg.Telemetry.Environment,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	store, err := storage.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	var redisCache cache.Cache
	if cfg.Redis.Addr != "" {
		redisCache = cache.NewRedisCache(cfg.Redis.Addr, "storefront")
		if err := cache.Ping(ctx, redisCache); err != nil {
			slog.Warn("redis unreachable at startup, continuing", "addr", cfg.Redis.Addr, "error", err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := telemetry.NewCheckoutMetrics(reg)
	serverMetrics := telemetry.NewServerMetrics(reg, "api")

	fee, threshold, err := cfg.Shipping.Amounts()
	if err != nil {
		return err
	}

	catalog := service.NewCatalogService(store, redisCache, cfg.Redis.CatalogTTL)

	publishEvents := cfg.Events.Broker != config.BrokerNone
	opts := []service.Option{
		service.WithShippingPolicy(entity.ShippingPolicy{FlatFee: fee, FreeThreshold: threshold}),
		service.WithMetrics(checkoutMetrics),
		service.WithCatalogInvalidator(catalog),
		service.WithOutboxEvents(publishEvents),
	}
	if cfg.CheckoutLogPath != "" {
		audit, err := checkoutsqlite.Open(cfg.CheckoutLogPath)
		if err != nil {
			return err
		}
		defer audit.Close()
		opts = append(opts, service.WithCheckoutLog(audit))
	}

	engine := service.NewOrderEngine(store, store, opts...)

	var orders ports.OrderService = engine
	if redisCache != nil {
		orders = service.NewIdempotentOrderService(engine, redisCache, cfg.Redis.IdempotencyTTL)
	}

	if publishEvents {
		publisher, err := newPublisher(ctx, cfg.Events)
		if err != nil {
			return err
		}
		defer publisher.Close()

		relay := events.NewRelay(store, publisher, cfg.Events.RelayInterval, cfg.Events.RelayBatch, checkoutMetrics)
		// Deferred after publisher.Close, so it runs first.
		defer relay.Start(ctx)()
	}

	var db ports.Pinger = store
	if cfg.DisableDBHealthcheck {
		db = nil
	}

	router := httpx.NewRouter(httpx.RouterConfig{
		Orders:         httpx.NewHandler(orders, db),
		Catalog:        httpx.NewCatalogHandler(catalog),
		Metrics:        serverMetrics,
		MetricsHandler: telemetry.Handler(reg),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("storefront api listening", "addr", srv.Addr, "store", cfg.Store.Driver, "events", cfg.Events.Broker)
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

	slog.Info("shutting down", "timeout", cfg.HTTP.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newPublisher(ctx context.Context, cfg config.EventsConfig) (ports.EventPublisher, error) {
	switch cfg.Broker {
	case config.BrokerKafka:
		return events.NewKafkaPublisher(events.ParseBrokers(cfg.KafkaBrokers), cfg.KafkaTopic), nil
	case config.BrokerRabbitMQ:
		return events.NewRabbitPublisher(ctx, cfg.AMQPURL, cfg.AMQPExchange)
	default:
		return nil, errors.New("no events broker configured")
	}
}
