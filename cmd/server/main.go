package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nexuscrm/formengine/internal/application/services"
	"github.com/nexuscrm/formengine/internal/bootstrap"
	"github.com/nexuscrm/formengine/internal/config"
	"github.com/nexuscrm/formengine/internal/domain/events"
	"github.com/nexuscrm/formengine/internal/domain/ports"
	"github.com/nexuscrm/formengine/internal/infrastructure/cache"
	"github.com/nexuscrm/formengine/internal/infrastructure/database"
	"github.com/nexuscrm/formengine/internal/infrastructure/metrics"
	"github.com/nexuscrm/formengine/internal/infrastructure/persistence"
	"github.com/nexuscrm/formengine/internal/infrastructure/remote"
	"github.com/nexuscrm/formengine/pkg/auth"
	"github.com/nexuscrm/formengine/pkg/constants"
)

func main() {
	flags := pflag.NewFlagSet("formengine", pflag.ExitOnError)
	configFile := flags.String("config", "", "path to a YAML config file")
	port := flags.Int("port", 0, "HTTP port (overrides http.port)")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if flags.Changed("port") {
		cfg.HTTP.Port = *port
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server stopped", zap.Error(err))
	}
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log.level %q: %w", cfg.Level, err)
	}
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func run(cfg config.AppConfig, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recorder := metrics.NewRecorder()
	client := remote.NewClient(cfg.Remote, logger)

	stores := services.Stores{Registry: client, Lookups: client, Records: client}

	if cfg.Registry.Backend == constants.RegistryBackendSQL {
		conn, err := database.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer func() { _ = conn.Close() }()
		logger.Info("Database connection established",
			zap.String("host", cfg.Database.Host),
			zap.String("database", cfg.Database.Name))

		if err := bootstrap.InitializeSchema(ctx, conn.DB(), logger); err != nil {
			return err
		}
		repo := persistence.NewFieldConfigRepository(conn.DB(), logger)
		if len(cfg.Bootstrap.Tenants) > 0 {
			entityTypes := services.DefaultEntityCatalog().Names()
			if err := bootstrap.SeedDefaults(ctx, repo, cfg.Bootstrap.Tenants, entityTypes, logger); err != nil {
				logger.Warn("Default field catalogue seeding incomplete", zap.Error(err))
			}
		}
		stores.Registry = repo
	}

	var lookupCache *cache.LookupCache
	if cfg.Redis.Addr != "" {
		rdb := cache.NewRedisClient(cfg.Redis)
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			// the cache degrades to direct fetches, so an unreachable Redis is not fatal
			logger.Warn("Redis unreachable, lookups will bypass the cache until it recovers", zap.Error(err))
		}
		lookupCache = cache.NewLookupCache(client, rdb, cfg.Cache.LookupTTL, recorder, logger)
		stores.Lookups = lookupCache
	}

	svcMgr, err := services.NewServiceManager(stores, recorder, logger, cfg.HTTP.SessionTTL)
	if err != nil {
		return err
	}
	if lookupCache != nil {
		svcMgr.EventBus.Subscribe(events.RecordSubmitted, invalidateOnSubmit(lookupCache, logger))
	}

	router := newRouter(svcMgr, auth.NewVerifier(cfg.Auth.JWTSecret), recorder, cfg.HTTP.AllowedOrigins)
	srv := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Form engine listening",
			zap.String("addr", srv.Addr),
			zap.String("registry", string(cfg.Registry.Backend)),
			zap.Bool("lookup_cache", lookupCache != nil))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server exiting")
	return nil
}

// invalidateOnSubmit drops cached candidate lists that a newly saved record belongs to
func invalidateOnSubmit(lookupCache *cache.LookupCache, logger *zap.Logger) ports.EventHandler {
	return func(ctx context.Context, payload interface{}) error {
		p, ok := payload.(services.RecordSubmittedPayload)
		if !ok {
			return nil
		}
		if err := lookupCache.InvalidateEntity(ctx, p.TenantID, p.EntityType); err != nil {
			logger.Warn("Lookup cache invalidation failed",
				zap.String("tenant_id", p.TenantID),
				zap.String("entity_type", p.EntityType),
				zap.Error(err))
		}
		return nil
	}
}
