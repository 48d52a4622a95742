// Package main - entry point for the growth analytics API service.
//
// The service answers the school-administration dashboard's growth
// questions: which growth periods exist, how a cohort's growth distributes
// against published norms, how starting ability relates to growth, and
// where each grade's ability scores cluster.
//
// The layout follows Clean Architecture:
// - Domain: term calendar, cohort pairing, binning, norm composition
// - Application: CQRS query handlers
// - Infrastructure: postgres adapters, result cache, auth gate
// - Interface: HTTP read API
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/schoolpulse/growth-analytics-hub/config"
	"github.com/schoolpulse/growth-analytics-hub/internal/application/query"
	"github.com/schoolpulse/growth-analytics-hub/internal/domain/norms"
	"github.com/schoolpulse/growth-analytics-hub/internal/infrastructure/auth"
	"github.com/schoolpulse/growth-analytics-hub/internal/infrastructure/cache"
	"github.com/schoolpulse/growth-analytics-hub/internal/infrastructure/persistence/postgres"
	httpserver "github.com/schoolpulse/growth-analytics-hub/internal/interface/http"
	"github.com/schoolpulse/growth-analytics-hub/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGER
	// ─────────────────────────────────────────────────────────────────────────
	logOpts := logger.DefaultOptions()
	logOpts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	log := logger.New(logOpts).With(
		logger.String("app", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
	)

	log.Info("starting growth analytics service", logger.String("version", cfg.App.Version))

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. RESULT CACHE
	// ─────────────────────────────────────────────────────────────────────────
	resultCache, cleanup, err := buildResultCache(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize result cache: %w", err)
	}
	defer cleanup()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. AUTH GATE
	// ─────────────────────────────────────────────────────────────────────────
	gate, err := buildAuthGate(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize auth gate: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. REPOSITORIES & QUERY HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	recordRepo := postgres.NewAssessmentRepository(dbConn)
	normRepo := postgres.NewNormRepository(dbConn)
	composer := norms.NewComposer(normRepo)

	deps := httpserver.Dependencies{
		ListGrowthPeriodsHandler:     query.NewListGrowthPeriodsHandler(gate, recordRepo, resultCache, log),
		GetGrowthDistributionHandler: query.NewGetGrowthDistributionHandler(gate, recordRepo, composer, resultCache, log),
		GetGrowthScatterHandler:      query.NewGetGrowthScatterHandler(gate, recordRepo, resultCache, log),
		GetAbilityHeatmapHandler:     query.NewGetAbilityHeatmapHandler(gate, recordRepo, resultCache, log),
		ResultCache:                  resultCache,
		Pinger:                       dbConn,
		Logger:                       log,
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpserver.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.EnableCORS = cfg.HTTP.EnableCORS
	serverCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	serverCfg.APIKeyHeader = cfg.HTTP.APIKeyHeader
	serverCfg.WebhookSecret = cfg.HTTP.WebhookSecret

	server := httpserver.NewServer(serverCfg, deps)
	errCh := server.StartAsync()

	log.Info("service ready", logger.String("address", server.Address()))

	// ─────────────────────────────────────────────────────────────────────────
	// 8. SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("service stopped")
	return nil
}

// buildResultCache selects the cache backend: Redis when configured for
// multi-instance deployments, otherwise the in-process cache.
func buildResultCache(cfg *config.Config, log *logger.Logger) (cache.ResultCache, func(), error) {
	if cfg.Redis.Disabled {
		log.Info("using in-memory result cache", logger.Duration("ttl", cfg.Cache.TTL))
		return cache.NewMemoryCache(cfg.Cache.TTL), func() {}, nil
	}

	redisCfg := cache.DefaultRedisConfig()
	redisCfg.Host = cfg.Redis.Host
	redisCfg.Port = cfg.Redis.Port
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	redisCfg.PoolSize = cfg.Redis.PoolSize
	redisCfg.DialTimeout = cfg.Redis.DialTimeout
	redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
	redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

	redisCache, err := cache.NewRedisCache(redisCfg, cfg.Cache.TTL)
	if err != nil {
		return nil, nil, err
	}

	log.Info("using redis result cache",
		logger.String("addr", redisCfg.Addr()),
		logger.Duration("ttl", cfg.Cache.TTL),
	)
	return redisCache, func() { _ = redisCache.Close() }, nil
}

// buildAuthGate parses the issued credential entries into the gate.
// Entries are "key_id:bcrypt_hash:caller_name".
func buildAuthGate(cfg config.AuthConfig) (*auth.Gate, error) {
	credentials := make([]auth.Credential, 0, len(cfg.Credentials))
	for _, entry := range cfg.Credentials {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("malformed credential entry %q", entry)
		}
		credentials = append(credentials, auth.Credential{
			KeyID:      parts[0],
			SecretHash: []byte(parts[1]),
			CallerID:   uuid.NewSHA1(uuid.NameSpaceOID, []byte(parts[0])),
			CallerName: parts[2],
		})
	}
	return auth.NewGate(credentials), nil
}
