package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"modguard/backend/internal/api/handler"
	"modguard/backend/internal/config"
	"modguard/backend/internal/localization"
	"modguard/backend/internal/metrics"
	"modguard/backend/internal/moderation"
	"modguard/backend/internal/storage"
	"modguard/backend/internal/telegram"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("modguard stopped", zap.Error(err))
	}
	logger.Info("modguard stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting modguard", zap.String("env", cfg.Env), zap.String("mode", cfg.Telegram.Mode))

	db, err := storage.OpenPostgres(cfg.DSN(), cfg.IsDevelopment())
	if err != nil {
		return err
	}
	rdb, err := storage.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb == nil {
		logger.Warn("REDIS_ADDR is not set; policy cache and update de-duplication are disabled")
	} else {
		defer func() { _ = rdb.Close() }()
	}

	store := storage.NewStorageService(db, rdb,
		storage.WithLogger(logger.Named("storage")),
		storage.WithRetry(cfg.Retry),
		storage.WithPolicyCacheTTL(cfg.PolicyCacheTTL),
	)
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("database ready")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}

	localizer, err := localization.Default()
	if err != nil {
		return err
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return err
	}
	botUsername := cfg.Telegram.BotUsername
	if botUsername == "" {
		botUsername = bot.Self.UserName
	}
	logger.Info("authorized on telegram", zap.String("username", bot.Self.UserName))

	engine := moderation.NewEngine(store, localizer,
		moderation.WithBotUsername(botUsername),
		moderation.WithDefaultLanguage(cfg.DefaultLanguage),
		moderation.WithMetrics(m),
		moderation.WithLogger(logger.Named("moderation")),
	)
	botService := telegram.NewBotService(engine, store, bot, m, logger.Named("telegram"))

	if cfg.Telegram.Mode == config.BotModePolling {
		go botService.Run(ctx, bot)
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	var limiter *handler.RateLimiter
	if cfg.WebhookRateLimit > 0 {
		limiter = handler.NewRateLimiter(cfg.WebhookRateLimit)
		limiter.Cleanup(ctx, 5*time.Minute)
	}
	router := handler.NewRouter(
		handler.NewHandler(botService, cfg.Telegram.WebhookSecret, logger.Named("http")),
		handler.RouterConfig{
			WebhookPath: cfg.Telegram.WebhookPath,
			Limiter:     limiter,
			Gatherer:    reg,
			Logger:      logger.Named("http"),
		},
	)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr), zap.String("webhook", cfg.Telegram.WebhookPath))
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
