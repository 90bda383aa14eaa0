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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"paygate/internal/audit"
	authcache "paygate/internal/auth/cache"
	authmetrics "paygate/internal/auth/metrics"
	authservice "paygate/internal/auth/service"
	credentialstore "paygate/internal/auth/store/credential"
	paymenthandler "paygate/internal/payments/handler"
	"paygate/internal/payments/idempotency"
	"paygate/internal/payments/provider"
	paymentservice "paygate/internal/payments/service"
	paymentstore "paygate/internal/payments/store/payment"
	"paygate/internal/platform/config"
	"paygate/internal/platform/database"
	"paygate/internal/platform/health"
	"paygate/internal/platform/kafka"
	"paygate/internal/platform/logger"
	platformredis "paygate/internal/platform/redis"
	ratelimithandler "paygate/internal/ratelimit/handler"
	ratelimitservice "paygate/internal/ratelimit/service"
	windowstore "paygate/internal/ratelimit/store/window"
	tenanthandler "paygate/internal/tenant/handler"
	tenantservice "paygate/internal/tenant/service"
	tenantstore "paygate/internal/tenant/store"
	httptransport "paygate/internal/transport/http"
)

// main wires high-level dependencies, mounts the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal service
// packages. Missing infrastructure degrades to in-process fallbacks so the
// gateway still serves traffic in development.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	log.Info("initializing paygate",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
	)

	rdb, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Warn("redis unavailable, using in-memory stores", "error", err)
	}

	db, err := database.New(database.DefaultConfig(cfg.DatabaseURL))
	if err != nil {
		log.Warn("database unavailable, using in-memory stores", "error", err)
		db = nil
	}

	healthHandler := health.New(cfg.Environment)
	if rdb != nil {
		healthHandler.RegisterCheck("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return rdb.Health(ctx)
		})
	}
	if db != nil {
		healthHandler.RegisterCheck("database", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return db.Health(ctx)
		})
	}

	// Authentication.
	var creds authservice.CredentialStore
	if db != nil {
		creds = credentialstore.NewPostgres(db.DB())
	} else {
		creds = credentialstore.NewMemory()
	}
	var identityCache authservice.IdentityCache
	if rdb != nil {
		identityCache = authcache.NewRedis(rdb)
	} else {
		identityCache = authcache.NewMemory()
	}
	authSvc, err := authservice.New(authservice.Config{
		BootstrapKey: cfg.BootstrapAPIKey,
		StaticKeys:   cfg.AllowedAPIKeys,
	}, creds, identityCache,
		authservice.WithLogger(log),
		authservice.WithMetrics(authmetrics.New()),
		authservice.WithStoreTimeout(cfg.StoreTimeout),
	)
	if err != nil {
		fatal(log, "init authenticator", err)
	}

	// Rate limiting.
	var windows ratelimitservice.WindowStore
	if rdb != nil {
		windows = windowstore.NewRedis(rdb)
	} else {
		windows = windowstore.NewMemory()
	}
	limiter, err := ratelimitservice.New(windows,
		ratelimitservice.WithLogger(log),
		ratelimitservice.WithMetrics(ratelimitservice.NewMetrics()),
		ratelimitservice.WithStoreTimeout(cfg.StoreTimeout),
	)
	if err != nil {
		fatal(log, "init rate limiter", err)
	}

	// Provider adapters.
	registry := provider.NewRegistry()
	if cfg.StripeAPIKey != "" {
		stripe, err := provider.NewStripe(cfg.StripeAPIKey, provider.WithStripeLogger(log))
		if err != nil {
			fatal(log, "init stripe adapter", err)
		}
		registry.Register(stripe)
	}
	if cfg.PayPalClientID != "" && cfg.PayPalClientSecret != "" {
		paypal, err := provider.NewPayPal(cfg.PayPalClientID, cfg.PayPalClientSecret,
			cfg.PayPalMode, provider.WithPayPalLogger(log))
		if err != nil {
			fatal(log, "init paypal adapter", err)
		}
		registry.Register(paypal)
	}
	if len(registry.Names()) == 0 {
		log.Warn("no payment providers configured, payment creation will fail")
	}

	// Audit pipeline. The structured-log sink always runs; kafka and postgres
	// join when configured.
	sinks := []audit.Sink{audit.NewSlogSink(log)}
	var producer *kafka.Producer
	if cfg.KafkaBrokers != "" {
		producer, err = kafka.NewProducer(kafka.Config{Brokers: cfg.KafkaBrokers}, log)
		if err != nil {
			log.Warn("kafka unavailable, audit events stay local", "error", err)
		} else {
			sinks = append(sinks, audit.NewKafkaSink(producer, cfg.AuditTopic))
		}
	}
	if db != nil {
		sinks = append(sinks, audit.NewPostgresStore(db.DB()))
	}
	auditor := audit.NewPublisher(sinks,
		audit.WithAsyncBuffer(1024),
		audit.WithPublisherLogger(log),
	)

	// Payments.
	var idemStore paymentservice.IdempotencyStore
	if rdb != nil {
		idemStore = idempotency.NewRedis(rdb)
	} else {
		idemStore = idempotency.NewMemory()
	}
	var payments paymentservice.PaymentStore
	if db != nil {
		payments = paymentstore.NewPostgres(db.DB())
	} else {
		payments = paymentstore.NewMemory()
	}
	paymentSvc, err := paymentservice.New(registry, idemStore, payments,
		paymentservice.WithLogger(log),
		paymentservice.WithMetrics(paymentservice.NewMetrics()),
		paymentservice.WithAuditor(auditor),
		paymentservice.WithProviderTimeout(cfg.ProviderTimeout),
		paymentservice.WithStoreTimeout(cfg.StoreTimeout),
	)
	if err != nil {
		fatal(log, "init payment service", err)
	}

	// Tenants. Revocation invalidates the auth cache through the authenticator.
	var tenants tenantservice.TenantStore
	if db != nil {
		tenants = tenantstore.NewPostgres(db.DB())
	} else {
		tenants = tenantstore.NewMemory()
	}
	tenantSvc, err := tenantservice.New(tenants,
		tenantservice.WithLogger(log),
		tenantservice.WithInvalidator(authSvc),
		tenantservice.WithStoreTimeout(cfg.StoreTimeout),
	)
	if err != nil {
		fatal(log, "init tenant service", err)
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:        log,
		Authenticator: authSvc,
		Limiter:       limiter,
		Payments:      paymenthandler.New(paymentSvc, log),
		Tenants:       tenanthandler.New(tenantSvc, log),
		Quota:         ratelimithandler.New(limiter, log),
		Health:        healthHandler,
		Metrics:       promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(log, "server error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}

	auditor.Close()
	if producer != nil {
		producer.Close()
	}
	if db != nil {
		db.Close() //nolint:errcheck // shutting down anyway
	}
	if rdb != nil {
		rdb.Close() //nolint:errcheck // shutting down anyway
	}

	log.Info("server stopped")
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
