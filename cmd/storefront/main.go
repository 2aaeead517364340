package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/spice-admin/customer-app-sub000/internal/auth"
	"github.com/spice-admin/customer-app-sub000/internal/breaker"
	"github.com/spice-admin/customer-app-sub000/internal/cache"
	"github.com/spice-admin/customer-app-sub000/internal/cart"
	"github.com/spice-admin/customer-app-sub000/internal/cart/backend"
	"github.com/spice-admin/customer-app-sub000/internal/config"
	"github.com/spice-admin/customer-app-sub000/internal/consumer"
	h "github.com/spice-admin/customer-app-sub000/internal/http"
	"github.com/spice-admin/customer-app-sub000/internal/logger"
	"github.com/spice-admin/customer-app-sub000/internal/metrics"
	"github.com/spice-admin/customer-app-sub000/internal/payment"
	"github.com/spice-admin/customer-app-sub000/internal/publisher"
	"github.com/spice-admin/customer-app-sub000/internal/repository"
	"github.com/spice-admin/customer-app-sub000/internal/schedule"
	"github.com/spice-admin/customer-app-sub000/internal/service"
	"github.com/spice-admin/customer-app-sub000/internal/verify"
)

func main() {
	configPath := flag.String("config", os.Getenv("STOREFRONT_CONFIG"), "path to a config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lg, err := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		FilePath:   cfg.Log.FilePath,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	lg.Info("storefront starting")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Database setup
	creds := &repository.Credentials{
		Host:              cfg.Postgres.Host,
		Port:              cfg.Postgres.Port,
		User:              cfg.Postgres.User,
		Password:          cfg.Postgres.Password,
		DBName:            cfg.Postgres.DBName,
		MigrationsDirPath: cfg.Postgres.MigrationsDirPath,
	}
	repo, err := repository.NewRepository(creds)
	if err != nil {
		fatal("failed to connect to database", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		fatal("failed to run migrations", err)
	}
	lg.Info("database migrations completed")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		lg.Warn("redis unavailable, catalog cache will miss", "addr", cfg.Redis.Addr, "error", err)
	}

	carts, err := newCartManager(ctx, cfg, redisClient)
	if err != nil {
		fatal("failed to set up cart storage", err)
	}

	m := metrics.New()

	// Remote providers
	gateway := payment.NewStripeGateway(cfg.Stripe.SecretKey, breaker.New(breaker.Settings{Name: "stripe"}))
	verifier := verify.NewTwilioVerifier(
		cfg.Twilio.AccountSID,
		cfg.Twilio.AuthToken,
		cfg.Twilio.VerifyServiceSID,
		cfg.Twilio.Timeout,
		breaker.New(breaker.Settings{Name: "twilio"}),
	)
	adminClient := auth.NewAdminClient(
		cfg.Auth.SupabaseURL,
		cfg.Auth.SupabaseServiceKey,
		cfg.Auth.AdminTimeout,
		breaker.New(breaker.Settings{Name: "supabase-admin"}),
	)

	paymentHandler := service.NewPaymentHandler(gateway, cfg.Stripe.Timeout)
	verifyHandler := service.NewVerifyHandler(verifier, cfg.Twilio.Timeout)
	adminHandler := service.NewAdminHandler(adminClient, cfg.Auth.AdminTimeout)

	resolver := schedule.NewResolver(repo.Calendar(), cfg.Schedule.HorizonDays, cfg.Location())

	catalogService := service.NewCatalogService(repo, cache.NewRedisCache(redisClient, cfg.Redis.CacheTTL))
	checkoutService := service.NewCheckoutService(repo, paymentHandler, resolver, service.CheckoutURLs{
		Currency:   cfg.Stripe.Currency,
		SuccessURL: cfg.Stripe.SuccessURL,
		CancelURL:  cfg.Stripe.CancelURL,
	})
	orderFinalizer := service.NewOrderFinalizer(repo, paymentHandler, resolver, m)
	addonFinalizer := service.NewAddonOrderFinalizer(repo, paymentHandler, m)
	accountService := service.NewAccountService(repo)
	otpService := service.NewOTPService(repo, verifyHandler, verify.NewLimiter(cfg.OTP.RequestsPerHour, cfg.OTP.Burst), m)
	resetService := service.NewPasswordResetService(
		repo,
		verifyHandler,
		adminHandler,
		auth.NewResetTokens(cfg.Auth.ResetTokenSecret, cfg.Auth.ResetTokenTTL),
		verify.NewLimiter(cfg.OTP.RequestsPerHour, cfg.OTP.Burst),
		cfg.OTP.MaxAttempts,
		m,
	)
	revenueService := service.NewRevenueService(paymentHandler)

	// Outbox relay and cart-clearing consumer
	writer := publisher.NewKafkaWriter(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
	defer writer.Close()
	poller := publisher.NewOutboxPoller(repo, writer, cfg.Kafka.PollInterval, cfg.Kafka.OutboxRetention, m)
	go poller.Run(ctx)

	cartConsumer := consumer.NewConsumer(carts, consumer.NewKafkaReader(cfg.Kafka.Topic, cfg.Kafka.GroupID, cfg.Kafka.Brokers...))
	defer cartConsumer.Close()
	go cartConsumer.Run(ctx)

	timeout := cfg.HTTP.RequestTimeout
	router := h.NewRouter(h.Handlers{
		Catalog:  h.NewCatalogHandler(catalogService, resolver, timeout),
		Checkout: h.NewCheckoutHandler(checkoutService, carts, timeout),
		Finalize: h.NewFinalizeHandler(orderFinalizer, addonFinalizer, timeout),
		Account:  h.NewAccountHandler(accountService, timeout),
		OTP:      h.NewOTPHandler(otpService, resetService, timeout),
		Admin:    h.NewAdminHandler(revenueService, catalogService, timeout),
		Cart:     h.NewCartHandler(carts, catalogService, m, timeout),
	}, h.RouterConfig{
		Tokens:             auth.NewTokenVerifier(cfg.Auth.JWTSecret),
		Metrics:            m,
		AllowedOrigin:      cfg.HTTP.AllowedOrigin,
		RequestTimeout:     cfg.HTTP.RequestTimeout,
		MaxRequestBodySize: cfg.HTTP.MaxRequestBodySize,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/", otelhttp.NewHandler(router, "storefront"))

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.HTTP.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		lg.Info("storefront listening", "port", cfg.HTTP.Port, "cart_backend", cfg.Cart.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info("shutting down server")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("server forced to shutdown", "error", err)
	}
	lg.Info("server exited")
}

func newCartManager(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (*cart.Manager, error) {
	var factory cart.BackendFactory
	switch strings.ToLower(cfg.Cart.Backend) {
	case "memory":
		factory = backend.NewMemory().For
	case "file":
		factory = backend.NewFile(cfg.Cart.FileDir).For
	case "mongo":
		db, err := backend.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		factory = backend.NewMongo(db).For
	default:
		factory = backend.NewRedis(redisClient, cfg.Cart.TTL).For
	}
	return cart.NewManager(factory, nil), nil
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
