package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/example/hospital-availability/internal/auth"
	"github.com/example/hospital-availability/internal/availability"
	"github.com/example/hospital-availability/internal/config"
	"github.com/example/hospital-availability/internal/eta"
	"github.com/example/hospital-availability/internal/fallback"
	"github.com/example/hospital-availability/internal/geo"
	httpapi "github.com/example/hospital-availability/internal/http"
	"github.com/example/hospital-availability/internal/ingest"
	"github.com/example/hospital-availability/internal/logging"
	"github.com/example/hospital-availability/internal/matcher"
	"github.com/example/hospital-availability/internal/observability"
	"github.com/example/hospital-availability/internal/storage"
	"github.com/example/hospital-availability/internal/tracking"
)

func main() {
	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := openStore(ctx, cfg, logger)
	defer store.Close()

	var index geo.Index
	if cfg.RedisAddr != "" {
		rg := geo.NewRedisGeo(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
		defer rg.Client().Close()
		index = rg
		logger.Info().Str("addr", cfg.RedisAddr).Msg("using redis geo index")
	} else {
		index = geo.NewMemoryIndex()
	}

	hub := tracking.NewHub(logger)
	svc := &availability.Service{
		Store:         store,
		Geo:           index,
		Tracker:       hub,
		Logger:        logger,
		NearbyRadiusM: cfg.NearbyRadiusM,
		MaxPageSize:   cfg.MaxPageSize,
		FanoutTimeout: cfg.FanoutTimeout,
	}
	if len(cfg.KafkaBrokers) > 0 {
		kp := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		svc.Events = kp
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing location events")
	}
	ranker := &matcher.Service{DefaultSpeedMps: cfg.DispatchSpeed, TopN: cfg.DispatchTopN, ETACache: eta.NewCache(cfg.ETACacheTTL)}
	if cfg.OSRMEndpoint != "" {
		ranker.ETAClient = eta.NewOSRMClient(cfg.OSRMEndpoint)
	}
	svc.Ranker = ranker

	authn := auth.NewAuthenticator(cfg.JWTSecret)
	if !authn.Verifies() {
		logger.Warn().Msg("JWT_SECRET not set: any non-empty token is accepted")
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewServer(svc, authn, hub, cfg.AuthHeader, logger),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
		}
	}()

	logger.Info().Str("addr", cfg.HTTPAddr).Str("store", string(store.Mode())).Msg("hospital availability listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
}

// openStore picks the store once. An unreachable database is not fatal:
// the process starts on the seeded read-only dataset instead.
func openStore(ctx context.Context, cfg config.ServerConfig, logger zerolog.Logger) storage.Store {
	if cfg.StoreDriver == config.StoreDriverMemory {
		mem := storage.NewMemoryStore()
		if cfg.SeedDemoData {
			if err := fallback.Seed(ctx, mem); err != nil {
				logger.Fatal().Err(err).Msg("seed demo data")
			}
		}
		return mem
	}

	pg, err := connectPostgres(ctx, cfg, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("database unavailable, serving fallback data")
		fb, err := fallback.New()
		if err != nil {
			logger.Fatal().Err(err).Msg("seed fallback data")
		}
		observability.FallbackMode.Set(1)
		return fb
	}
	return pg
}

func connectPostgres(ctx context.Context, cfg config.ServerConfig, logger zerolog.Logger) (*storage.PostgresStore, error) {
	if cfg.PGDSN == "" {
		return nil, errors.New("PG_DSN is not set")
	}
	connectCtx, cancel := context.WithTimeout(ctx, cfg.StoreConnectTimeout)
	defer cancel()
	pg, err := storage.NewPostgresStore(connectCtx, cfg.PGDSN)
	if err != nil {
		return nil, err
	}
	if cfg.RunMigrations {
		applied, err := storage.Migrate(ctx, pg.DB())
		if err != nil {
			_ = pg.Close()
			return nil, err
		}
		logger.Info().Strs("applied", applied).Msg("migrations applied")
	}
	if cfg.SeedDemoData {
		existing, err := pg.ListHospitals(ctx, storage.Page{Limit: 1})
		if err != nil {
			_ = pg.Close()
			return nil, err
		}
		if len(existing) == 0 {
			if err := fallback.Seed(ctx, pg); err != nil {
				logger.Error().Err(err).Msg("seed demo data")
			} else {
				logger.Info().Msg("demo data seeded")
			}
		}
	}
	return pg, nil
}
