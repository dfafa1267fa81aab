package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	catalogapp "github.com/jcmexdev/mebel-storefront/internal/catalog-service/app"
	"github.com/jcmexdev/mebel-storefront/internal/config"
	"github.com/jcmexdev/mebel-storefront/internal/coordinator"
	sagalogsqlite "github.com/jcmexdev/mebel-storefront/internal/coordinator/sagalog/sqlite"
	"github.com/jcmexdev/mebel-storefront/internal/notifier"
	"github.com/jcmexdev/mebel-storefront/internal/notifier/queue"
	"github.com/jcmexdev/mebel-storefront/internal/notifier/telegram"
	"github.com/jcmexdev/mebel-storefront/internal/order-service/app"
	"github.com/jcmexdev/mebel-storefront/internal/order-service/ports"
	"github.com/jcmexdev/mebel-storefront/internal/pkg/cache"
	"github.com/jcmexdev/mebel-storefront/internal/pkg/i18n"
	"github.com/jcmexdev/mebel-storefront/internal/pkg/store/postgres"
	"github.com/jcmexdev/mebel-storefront/internal/pkg/store/sqlite"
	"github.com/jcmexdev/mebel-storefront/internal/pkg/telemetry"
	"github.com/jcmexdev/mebel-storefront/internal/storefront-api/infra/httpx"
)

type storage interface {
	ports.ProductRepository
	ports.OrderRepository
	ports.SettingsRepository
	catalogapp.Repository
	Ping(ctx context.Context) error
	Close() error
}

// dispatcher is a ports.Dispatcher whose in-flight deliveries can be awaited on shutdown.
type dispatcher interface {
	ports.Dispatcher
	Wait()
}

func main() {
	if err := run(); err != nil {
		slog.Error("storefront api stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".")
	if err != nil {
		return err
	}
	logger := telemetry.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, telemetry.TracerConfig{
		ServiceName: cfg.OTelServiceName,
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

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	sagaLog, err := sagalogsqlite.Open(cfg.SagaLogPath)
	if err != nil {
		return fmt.Errorf("open saga log: %w", err)
	}
	defer sagaLog.Close()

	settings, invalidator := settingsProvider(cfg, store)
	n := notifier.New(settings, telegram.NewClient(cfg.TelegramAPIBase, nil), i18n.Printer(i18n.Default))

	var disp dispatcher
	switch cfg.NotifyTransport {
	case config.NotifyRabbitMQ:
		mq, err := queue.Connect(ctx, cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		defer mq.Close()
		disp = queue.NewPublisher(mq, cfg.NotifyTimeout)
	default:
		disp = notifier.NewAsyncDispatcher(n, cfg.NotifyTimeout)
	}

	orders := app.NewService(store, store, coordinator.NewOrderWriter(store, sagaLog), disp)
	catalog := catalogapp.NewService(store)

	router := httpx.NewRouter(httpx.RouterDeps{
		Orders:       httpx.NewHandler(orders),
		Catalog:      httpx.NewCatalogHandler(catalog, cfg.SiteBaseURL),
		Admin:        httpx.NewAdminHandler(orders, store, invalidator, n, sagaLog),
		DB:           store,
		AdminAPIKeys: cfg.AdminAPIKeys,
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("storefront api listening", "addr", srv.Addr, "db_driver", cfg.DBDriver, "notify_transport", cfg.NotifyTransport)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		// Orders already written still get their notification attempt.
		disp.Wait()
		return err
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config) (storage, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		s, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return s, nil
	default:
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return s, nil
	}
}

// settingsProvider returns the provider the notifier reads from and, when a
// cache sits in front of the store, the handle used to invalidate it.
func settingsProvider(cfg *config.Config, store ports.SettingsRepository) (notifier.SettingsProvider, httpx.SettingsInvalidator) {
	base := notifier.NewStoreSettings(store)
	if cfg.SettingsCacheTTL <= 0 {
		return base, nil
	}

	var c cache.Cache
	switch cfg.SettingsCache {
	case config.CacheRedis:
		c = cache.NewRedis(cfg.RedisAddr, cfg.AppName)
	case config.CacheMemory:
		c = cache.NewMemory(16, cfg.SettingsCacheTTL)
	default:
		return base, nil
	}
	cached := notifier.NewCachedSettings(base, c, cfg.SettingsCacheTTL)
	return cached, cached
}
