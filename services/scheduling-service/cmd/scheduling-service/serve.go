package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/telehealth/libs/auth"
	"github.com/md-rashed-zaman/telehealth/libs/db"
	"github.com/md-rashed-zaman/telehealth/libs/grpcx"
	"github.com/md-rashed-zaman/telehealth/libs/httpx"
	"github.com/md-rashed-zaman/telehealth/libs/kafkax"
	otelx "github.com/md-rashed-zaman/telehealth/libs/otel"
	"github.com/md-rashed-zaman/telehealth/libs/runtime"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/booking"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/clock"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/handlers"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/notify"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/profile"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/reminder"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func serve(parent context.Context, cfg Config) error {
	logger := runtime.NewLogger(cfg.ServiceName, cfg.LogLevel)

	ctx, stop := runtime.SignalContext(parent)
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.ServiceName))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	signer, err := auth.NewSigner(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return err
	}

	var (
		store  storage.Store
		checks []runtime.ReadyCheck
	)
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set; using in-memory storage")
		store = storage.NewMemory(time.Now)
	} else {
		pool, err := db.Open(ctx, cfg.DatabaseURL, db.Options{MaxConns: int32(cfg.DBMaxConns)})
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer pool.Close()
		store = storage.NewPostgres(pool, cfg.Location)
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
	}

	sender, closeSender := buildSender(cfg, logger)
	defer func() {
		if err := closeSender(); err != nil {
			logger.Error("notification sender close failed", "err", err)
		}
	}()
	if len(cfg.KafkaBrokers) > 0 {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})
	}

	clk := clock.System{}
	dispatcher := notify.NewDispatcher(sender, logger, 10*time.Second)
	reminders := reminder.New(store, sender, clk, logger, reminder.Config{
		Lead:          cfg.ReminderLead,
		SweepInterval: cfg.ReminderSweepInterval,
		TimerHorizon:  cfg.ReminderTimerHorizon,
	})
	engine := booking.NewEngine(booking.Deps{
		Store:     store,
		Clock:     clk,
		Notifier:  dispatcher,
		Reminders: reminders,
		Logger:    logger,
	}, booking.Config{
		Location:       cfg.Location,
		MeetingBaseURL: cfg.MeetingBaseURL,
		JoinLead:       cfg.JoinLead,
	})

	limit, rdb, err := rateLimit(cfg, logger)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	handlers.New(engine, profile.NewResolver(store), logger).Register(mux, signer)

	middleware := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
	}
	if len(cfg.CORSOrigins) > 0 {
		middleware = append(middleware, httpx.WithCORS(httpx.DefaultCORSPolicy(cfg.CORSOrigins)))
	}
	middleware = append(middleware,
		limit,
		httpx.WithBodyLimit(int64(cfg.BodyLimitBytes)),
		httpx.WithTimeout(cfg.RequestTimeout),
	)
	httpHandler := otelhttp.NewHandler(httpx.Chain(mux, middleware...), "scheduling")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv, health := grpcx.NewServer(logger)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	reminders.Start(ctx)

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()
	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	health.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	grpcSrv.GracefulStop()
	reminders.Stop()
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		logger.Warn("pending notifications abandoned", "err", err)
	}
	logger.Info("scheduling service stopped")
	return nil
}

// buildSender assembles the configured notification channels. With none configured every
// notification is dropped.
func buildSender(cfg Config, logger *slog.Logger) (notify.Sender, func() error) {
	templates := notify.NewTemplates()
	var (
		channels notify.Fanout
		closers  []io.Closer
	)
	if cfg.SMTPHost != "" {
		channels = append(channels, notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, templates))
	}
	if cfg.SMSProvider == "webhook" {
		channels = append(channels, notify.NewWebhookSMSSender(cfg.SMSWebhookURL, cfg.SMSWebhookToken, templates))
	}
	if len(cfg.KafkaBrokers) > 0 {
		writer := kafkax.NewWriter(cfg.KafkaBrokers, cfg.NotificationTopic)
		channels = append(channels, notify.NewKafkaSender(writer, templates))
		closers = append(closers, writer)
	}

	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c.Close())
		}
		return errors.Join(errs...)
	}
	if len(channels) == 0 {
		logger.Warn("no notification channel configured; notifications are dropped")
		return notify.Noop{}, closeAll
	}
	logger.Info("notification channels configured", "count", len(channels))
	return channels, closeAll
}

// rateLimit prefers the shared Redis limiter and falls back to an in-process one.
func rateLimit(cfg Config, logger *slog.Logger) (httpx.Middleware, *redis.Client, error) {
	if cfg.RedisURL == "" {
		return httpx.NewRateLimiter(cfg.RateLimitPerMinute).Middleware(), nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	limiter := httpx.NewRedisRateLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, cfg.ServiceName+":rl")
	return limiter.Middleware(logger, true), rdb, nil
}
