package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"natillera-bot/internal/cache"
	"natillera-bot/internal/config"
	"natillera-bot/internal/convo"
	"natillera-bot/internal/httpserver"
	"natillera-bot/internal/logging"
	"natillera-bot/internal/metrics"
	"natillera-bot/internal/ocr"
	"natillera-bot/internal/receipt"
	"natillera-bot/internal/repo"
	"natillera-bot/internal/session"
	"natillera-bot/internal/storage"
	"natillera-bot/internal/wa"
	"natillera-bot/migrations"

	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.AppEnv)
	logger.Info("starting natillera-bot", "env", cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricRegistry := metrics.Registry(cfg.MetricsNamespace)

	repository, err := repo.New(ctx, cfg.DatabaseURL, cfg.DatabaseSchema, logger)
	if err != nil {
		return fmt.Errorf("init repository: %w", err)
	}
	defer repository.Close()

	if err := repository.RunMigrations(ctx, migrations.Files); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrated")

	redisClient := cache.New(cache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		UseTLS:   cfg.RedisTLS,
	}, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("failed closing redis", "error", err)
		}
	}()
	if err := redisClient.Ping(ctx); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	sessions := session.NewStore(redisClient, session.Config{
		PendingTTL: cfg.PendingSessionTTL,
		AuthTTL:    cfg.AuthSessionTTL,
	}, logger)

	ocrClient, err := ocr.New(ctx, ocr.Config{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		Timeout: cfg.GeminiTimeout,
	}, logger, metricRegistry, redisClient)
	if err != nil {
		return fmt.Errorf("init ocr client: %w", err)
	}
	defer func() {
		if err := ocrClient.Close(); err != nil {
			logger.Warn("failed closing ocr client", "error", err)
		}
	}()

	waClient, err := wa.New(ctx, wa.Config{
		StorePath: cfg.WhatsAppStorePath,
		LogLevel:  cfg.WhatsAppLogLevel,
		Metrics:   metricRegistry,
	}, logger)
	if err != nil {
		return fmt.Errorf("init whatsapp client: %w", err)
	}
	defer waClient.Close()

	typical := receipt.Range{Min: cfg.TypicalFeeMin, Max: cfg.TypicalFeeMax}
	parser := receipt.NewParser(receipt.DefaultSchemas(), typical)

	deps := convo.Deps{
		Directory:   repository,
		Ledger:      repository,
		Credentials: repository,
		Sessions:    sessions,
		Sender:      waClient,
		Media:       waClient,
		OCR:         ocrClient,
		Parser:      parser,
		Metrics:     metricRegistry,
		Logger:      logger,
	}

	if cfg.GCSBucket != "" {
		archive, err := storage.New(ctx, cfg.GCSBucket, logger)
		if err != nil {
			return fmt.Errorf("init receipt archive: %w", err)
		}
		defer func() {
			if err := archive.Close(); err != nil {
				logger.Warn("failed closing receipt archive", "error", err)
			}
		}()
		deps.Archive = archive
		logger.Info("receipt archive enabled", "bucket", cfg.GCSBucket)
	}

	convoEngine := convo.New(deps, convo.EngineConfig{
		Rules: receipt.Rules{
			AcceptedIssuers: []receipt.Issuer{receipt.IssuerBancolombia, receipt.IssuerNequi},
			ExpectedAccount: cfg.ExpectedAccount,
			GraceDueDay:     cfg.GraceDueDay,
		},
		TypicalFee:           typical,
		DefaultMonthlyFee:    cfg.MonthlyFeeDefault,
		MaxPINAttempts:       cfg.MaxPINAttempts,
		PartialSponsorStatus: cfg.PartialSponsorStatus,
	})
	waClient.SetMessageProcessor(convoEngine)

	waCtx, waCancel := context.WithCancel(ctx)
	defer waCancel()
	go func() {
		if err := waClient.Start(waCtx); err != nil {
			logger.Error("whatsapp client stopped", "error", err)
			stop()
		}
	}()

	httpSrv := httpserver.New(cfg.HTTPListenAddr, logger, metricRegistry, cfg.HTTPBasePath)
	httpSrv.SetDependencies(httpserver.Dependencies{
		Repository: repository,
		Sessions:   sessions,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Start(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	return nil
}
