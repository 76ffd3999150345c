package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-order-settlement/internal/config"
	"github.com/ariefcatur/go-order-settlement/internal/httpx"
	kafkax "github.com/ariefcatur/go-order-settlement/internal/kafka"
	"github.com/ariefcatur/go-order-settlement/internal/logging"
	"github.com/ariefcatur/go-order-settlement/internal/memstore"
	"github.com/ariefcatur/go-order-settlement/internal/mercadopago"
	"github.com/ariefcatur/go-order-settlement/internal/metrics"
	"github.com/ariefcatur/go-order-settlement/internal/orders"
	"github.com/ariefcatur/go-order-settlement/internal/payment"
	"github.com/ariefcatur/go-order-settlement/internal/postgres"
	"github.com/ariefcatur/go-order-settlement/internal/redisx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// api serve
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

// backend is the persistence the API runs on.
type backend interface {
	orders.Store
	orders.AddressBook
	orders.OrderDataProvider
}

func serve(parent context.Context) error {
	_ = godotenv.Load()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	metrics.Register()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Store
	var store backend
	switch cfg.StoreDriver {
	case "memory":
		mem := memstore.New()
		seedDemo(mem)
		store = mem
		log.Warn("using in-memory store with demo data")
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer db.Close()
		store = &postgres.Store{DB: db}
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		log.Warn("redis unavailable, status reads fall back to the store", zap.Error(err))
	}
	cache := &redisx.StatusCache{RDB: rdb, Logger: log.Named("status_cache")}

	// Kafka producer
	var events orders.EventPublisher = orders.NopPublisher{}
	var prod *kafkax.Producer
	// own context: in-flight requests may still publish while the server drains
	prodCtx, prodCancel := context.WithCancel(context.Background())
	defer prodCancel()
	if cfg.KafkaEnabled {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, 1024, log.Named("producer"))
		prod.Start(prodCtx)
		events = &kafkax.EventPublisher{Producer: prod, ServiceName: cfg.ServiceName, Logger: log.Named("events")}
	}

	// Payments
	gateway := mercadopago.New(mercadopago.Config{
		BaseURL:         cfg.Payment.BaseURL,
		AccessToken:     cfg.Payment.AccessToken,
		Timeout:         cfg.Payment.Timeout,
		BreakerFailures: cfg.Payment.BreakerFailures,
	})
	pay := &payment.Service{Gateway: gateway, Buyers: store, Logger: log.Named("payment")}
	settler := &orders.Settler{Store: store, Payments: pay, Events: events, Cache: cache, Logger: log.Named("settler")}
	pay.Settler = settler

	creator := &orders.Creator{
		Store:       store,
		Addresses:   store,
		Buyers:      store,
		Payments:    pay,
		Freight:     orders.FreightCalculator{Origin: cfg.OriginZipCode},
		TTL:         cfg.OrderTTL,
		Events:      events,
		Idempotency: &redisx.IdempotencyIndex{RDB: rdb, Logger: log.Named("idempotency")},
		Logger:      log.Named("creator"),
	}
	canceller := &orders.Canceller{Store: store, Events: events, Cache: cache, Logger: log.Named("canceller")}

	// Router
	auth := &httpx.Authenticator{Secret: []byte(cfg.JWTSecret)}
	router := httpx.NewRouter(log)
	(&httpx.OrdersHandler{
		Creator:   creator,
		Canceller: canceller,
		Store:     store,
		Cache:     cache,
		Auth:      auth,
	}).Register(router)
	(&httpx.PaymentsHandler{Cards: pay, Settler: settler, Auth: auth}).Register(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(router, cfg.ServiceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if prod != nil {
		prod.Close()      // later publishes are dropped, queued ones flushed
		prodCancel()      // stop producer loop
		prod.WaitClosed() // drain
	}
	return nil
}
