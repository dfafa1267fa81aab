package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jcmexdev/mebel-storefront/internal/config"
	"github.com/jcmexdev/mebel-storefront/internal/notifier"
	"github.com/jcmexdev/mebel-storefront/internal/notifier/queue"
	"github.com/jcmexdev/mebel-storefront/internal/notifier/telegram"
	"github.com/jcmexdev/mebel-storefront/internal/order-service/ports"
	"github.com/jcmexdev/mebel-storefront/internal/pkg/cache"
	"github.com/jcmexdev/mebel-storefront/internal/pkg/i18n"
	"github.com/jcmexdev/mebel-storefront/internal/pkg/store/postgres"
	"github.com/jcmexdev/mebel-storefront/internal/pkg/store/sqlite"
	"github.com/jcmexdev/mebel-storefront/internal/pkg/telemetry"
)

// settingsStore is the part of the storefront database the worker reads.
type settingsStore interface {
	ports.SettingsRepository
	Close() error
}

func main() {
	if err := run(); err != nil {
		slog.Error("notification worker stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".")
	if err != nil {
		return err
	}
	telemetry.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, telemetry.TracerConfig{
		ServiceName: cfg.OTelServiceName + "-worker",
		Environment: cfg.AppEnv,
		Endpoint:    cfg.OTelEndpoint,
		SampleRatio: cfg.OTelSampleRatio,
		Enabled:     cfg.OTelEnabled,
	})
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	store, err := openSettingsStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var settings notifier.SettingsProvider = notifier.NewStoreSettings(store)
	if cfg.SettingsCacheTTL > 0 && cfg.SettingsCache == config.CacheRedis {
		// Shared with the API so admin updates invalidate it for both.
		settings = notifier.NewCachedSettings(settings, cache.NewRedis(cfg.RedisAddr, cfg.AppName), cfg.SettingsCacheTTL)
	}
	n := notifier.New(settings, telegram.NewClient(cfg.TelegramAPIBase, nil), i18n.Printer(i18n.Default))

	mq, err := queue.Connect(ctx, cfg.RabbitMQURL)
	if err != nil {
		return fmt.Errorf("connect rabbitmq: %w", err)
	}
	defer mq.Close()

	slog.Info("notification worker consuming", "queue", queue.Queue)
	queue.ConsumeForever(ctx, mq, n, cfg.NotifyTimeout)
	slog.Info("notification worker shutting down")
	return nil
}

func openSettingsStore(ctx context.Context, cfg *config.Config) (settingsStore, error) {
	if cfg.DBDriver == config.DriverPostgres {
		s, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return s, nil
	}
	s, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return s, nil
}
