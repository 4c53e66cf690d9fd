package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-parfum/internal/auth"
	"github.com/noah-isme/backend-parfum/internal/cart"
	"github.com/noah-isme/backend-parfum/internal/catalog"
	"github.com/noah-isme/backend-parfum/internal/checkout"
	"github.com/noah-isme/backend-parfum/internal/config"
	"github.com/noah-isme/backend-parfum/internal/db"
	"github.com/noah-isme/backend-parfum/internal/events"
	"github.com/noah-isme/backend-parfum/internal/guest"
	"github.com/noah-isme/backend-parfum/internal/health"
	"github.com/noah-isme/backend-parfum/internal/lock"
	"github.com/noah-isme/backend-parfum/internal/obs"
	"github.com/noah-isme/backend-parfum/internal/order"
	"github.com/noah-isme/backend-parfum/internal/payment"
	"github.com/noah-isme/backend-parfum/internal/queue"
	"github.com/noah-isme/backend-parfum/internal/ratelimit"
	"github.com/noah-isme/backend-parfum/internal/reports"
	"github.com/noah-isme/backend-parfum/internal/settings"
	"github.com/noah-isme/backend-parfum/internal/shopper"
	"github.com/noah-isme/backend-parfum/internal/user"
	"github.com/noah-isme/backend-parfum/internal/wishlist"
)

const serviceName = "parfum-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(envOrDefault("OBS_LOG_FORMAT", "json"), envOrDefault("OBS_LOG_LEVEL", "info")).
		With().Str("service", serviceName).Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "parfum")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   serviceName,
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	if cfg.MigrateOnStart {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
		logger.Info().Msg("migrations applied")
	}

	pool := connectDB(ctx, cfg, logger)
	defer pool.Close()
	queries := db.New(pool)

	redisClient := connectRedis(ctx, cfg, metricsEnabled, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	hub := events.NewHub()
	relay := &events.RedisRelay{R: redisClient, Hub: hub, Logger: obs.Component(logger, "relay")}
	go func() {
		if err := relay.Run(ctx, nil); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("list change relay stopped")
		}
	}()

	guestStore := &guest.Store{R: redisClient, TTL: cfg.GuestListTTL, Events: relay, Logger: obs.Component(logger, "guest")}
	cartSvc := &cart.Service{Q: queries, Events: relay}
	wishlistSvc := &wishlist.Service{Q: queries, Events: relay}
	shopperSvc := &shopper.Service{
		Guests:   guestStore,
		Cart:     cartSvc,
		Wishlist: wishlistSvc,
		Products: queries,
		Locker:   lock.Locker{R: redisClient},
		LockTTL:  cfg.LockTTL,
		Logger:   obs.Component(logger, "shopper"),
	}

	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{
		Queries: queries,
		Cache:   catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}

	authSvc, err := auth.NewService(auth.Config{
		Queries:         queries,
		Secret:          cfg.JWTSecret,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}

	settingsSvc := &settings.Service{Queries: queries, Redis: redisClient, TTL: cfg.SettingsCacheTTL}
	addressSvc := user.NewService(pool, queries)

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis uri for queue")
	}
	taskClient := asynq.NewClient(redisOpt)
	defer func() { _ = taskClient.Close() }()
	inspector := asynq.NewInspector(redisOpt)
	defer func() { _ = inspector.Close() }()

	bus := &events.Bus{
		Store:     queries,
		Notifiers: []events.Notifier{queue.Enqueuer{Client: taskClient, Logger: obs.Component(logger, "queue")}},
	}

	verifier := payment.Verifier{Secret: cfg.PaymentKeySecret}
	var (
		gateway payment.Gateway
		mockPay http.HandlerFunc
	)
	switch cfg.PaymentGateway {
	case "razorpay":
		gateway = payment.NewRazorpay(cfg.PaymentKeyID, cfg.PaymentKeySecret, cfg.PaymentBaseURL)
	default:
		mock := payment.Mock{KeyID: cfg.PaymentKeyID, Verifier: verifier}
		gateway = mock
		if !cfg.IsProduction() {
			mockPay = mock.PayHandler
		}
	}

	checkoutSvc := &checkout.Service{
		Lists:     shopperSvc,
		Addresses: addressSvc,
		Settings:  settingsSvc,
		Gateway:   gateway,
		Verifier:  verifier,
		Queries:   queries,
		Tx:        checkout.NewTx(pool),
		Redis:     redisClient,
		Events:    bus,
		Currency:  cfg.CurrencyCode,
		TTL:       cfg.CheckoutTTL,
		Logger:    obs.Component(logger, "checkout"),
	}
	orderSvc := &order.Service{Queries: queries, Settings: settingsSvc, Events: bus, Logger: obs.Component(logger, "order")}
	reportsSvc := &reports.Service{Q: queries, R: redisClient, TTL: cfg.ReportsCacheTTL}

	authLimiter, err := ratelimit.New(redisClient, "rl:auth", cfg.RateLimitAuth)
	if err != nil {
		logger.Fatal().Err(err).Str("rate", cfg.RateLimitAuth).Msg("invalid RATE_LIMIT_AUTH")
	}
	verifyLimiter, err := ratelimit.New(redisClient, "rl:verify", cfg.RateLimitVerify)
	if err != nil {
		logger.Fatal().Err(err).Str("rate", cfg.RateLimitVerify).Msg("invalid RATE_LIMIT_VERIFY")
	}
	onLimiterError := func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") }

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", "")), nil)
	}

	router := routes(routeDeps{
		cfg:            cfg,
		logger:         logger,
		tracing:        tracingEnabled,
		metrics:        httpMetrics,
		redis:          redisClient,
		authService:    authSvc,
		catalog:        catalog.NewHandler(catalog.HandlerConfig{Service: catalogSvc, Logger: obs.Component(logger, "catalog")}),
		shopper:        shopper.NewHandler(shopper.HandlerConfig{Service: shopperSvc, Hub: hub, Logger: obs.Component(logger, "shopper")}),
		addresses:      &user.Handler{Service: addressSvc, Logger: obs.Component(logger, "addresses")},
		settings:       &settings.Handler{Service: settingsSvc, Logger: obs.Component(logger, "settings")},
		checkout:       &checkout.Handler{Svc: checkoutSvc, Logger: obs.Component(logger, "checkout")},
		orders:         &order.Handler{Service: orderSvc, Logger: obs.Component(logger, "order")},
		reports:        &reports.Handler{Svc: reportsSvc, Logger: obs.Component(logger, "reports")},
		queueAdmin:     &queue.AdminHandler{Inspector: inspector, Logger: obs.Component(logger, "queue")},
		authLimit:      ratelimit.Handler{Limiter: authLimiter, Key: ratelimit.ByIP, OnError: onLimiterError},
		verifyLimit:    ratelimit.Handler{Limiter: verifyLimiter, Key: ratelimit.ByUser, OnError: onLimiterError},
		paymentWebhook: payment.Webhook{
			Verifier:  payment.Verifier{Secret: cfg.WebhookSecret},
			Settler:   checkoutSvc,
			Replay:    redisClient,
			ReplayTTL: 24 * time.Hour,
			Logger:    obs.Component(logger, "payment"),
		},
		mockPay: mockPay,
		health: health.Handler{
			Checks: map[string]health.Check{
				"db":    health.Postgres(pool),
				"redis": health.Redis(redisClient),
			},
			Timeout: time.Duration(envInt("HEALTH_READY_TIMEOUT_MS", 500)) * time.Millisecond,
			Version: envOrDefault("APP_VERSION", "dev"),
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Str("gateway", gateway.Name()).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

func connectDB(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = serviceName

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(connectCtx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

func connectRedis(ctx context.Context, cfg *config.Config, metrics bool, logger zerolog.Logger) *redis.Client {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		if trimmed := strings.TrimSpace(val); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if parsed, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64); err == nil {
		return parsed
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if parsed, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil {
		return parsed
	}
	return fallback
}
