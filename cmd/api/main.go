package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/lisavoice/orderstatus/internal/afterbuy"
	"github.com/lisavoice/orderstatus/internal/api/router"
	"github.com/lisavoice/orderstatus/internal/calls"
	appconfig "github.com/lisavoice/orderstatus/internal/config"
	"github.com/lisavoice/orderstatus/internal/http/handlers"
	"github.com/lisavoice/orderstatus/internal/ivr"
	"github.com/lisavoice/orderstatus/internal/notify"
	"github.com/lisavoice/orderstatus/internal/observability/metrics"
	"github.com/lisavoice/orderstatus/internal/session"
	"github.com/lisavoice/orderstatus/internal/transcribe"
	"github.com/lisavoice/orderstatus/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting order status voice assistant",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()

	callStore := calls.NewStore(pool)
	sessionStore := session.NewRedisStore(redisClient, cfg.SessionTTL)

	afterbuyClient, err := afterbuy.New(afterbuy.Config{
		BaseURL:      cfg.AfterbuyBaseURL,
		PartnerID:    cfg.AfterbuyPartnerID,
		PartnerToken: cfg.AfterbuyPartnerToken,
		AccountToken: cfg.AfterbuyAccountToken,
		UserID:       cfg.AfterbuyUserID,
		UserPassword: cfg.AfterbuyUserPassword,
		Timeout:      cfg.AfterbuyTimeout,
		Logger:       logger.Logger,
	})
	if err != nil {
		logger.Error("failed to configure afterbuy client", "error", err)
		os.Exit(1)
	}

	var sender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		sender = sg
	} else {
		logger.Warn("sendgrid api key missing, voicemail emails disabled")
	}
	notifier := notify.NewVoicemailNotifier(sender, strings.Split(cfg.NotifyRecipients, ","), logger)

	transcriber := ivr.Transcriber(transcribe.NewPlatformProvider())
	if cfg.TranscribeProvider == "deepgram" {
		provider, err := transcribe.NewDeepgramProvider(transcribe.DeepgramConfig{
			APIKey: cfg.DeepgramAPIKey,
			Logger: logger,
		})
		if err != nil {
			logger.Error("failed to configure deepgram", "error", err)
			os.Exit(1)
		}
		transcriber = provider
	}

	callMetrics := metrics.NewCallMetrics(nil)

	engine, err := ivr.NewEngine(ivr.Config{
		Sessions:        sessionStore,
		Calls:           callStore,
		Lookup:          afterbuyClient,
		Notifier:        notifier,
		Transcriber:     transcriber,
		Metrics:         callMetrics,
		Logger:          logger,
		VoiceName:       cfg.VoiceName,
		DefaultLanguage: cfg.DefaultLanguage,
		OperatorNumber:  cfg.OperatorNumber,
		MaxInputRetries: cfg.MaxInputRetries,
		RecordMaxSecs:   cfg.RecordMaxSecs,
		EmailCooldown:   cfg.EmailCooldown,
	})
	if err != nil {
		logger.Error("failed to build call engine", "error", err)
		os.Exit(1)
	}

	voiceHandler, err := handlers.NewVoiceWebhookHandler(handlers.VoiceWebhookConfig{
		Engine:          engine,
		Metrics:         callMetrics,
		Logger:          logger,
		TwilioAuthToken: cfg.TwilioAuthToken,
		PublicBaseURL:   cfg.PublicBaseURL,
	})
	if err != nil {
		logger.Error("failed to build voice webhook handler", "error", err)
		os.Exit(1)
	}

	r := router.New(&router.Config{
		Logger:             logger,
		Voice:              voiceHandler,
		AdminCalls:         handlers.NewAdminCallsHandler(callStore, logger),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		WebhookRateLimit:   20,
		WebhookRateBurst:   40,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
