package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/geosoil-inc/geosoil-engine/pkg/adapters/soilsource"
	"github.com/geosoil-inc/geosoil-engine/pkg/auth"
	"github.com/geosoil-inc/geosoil-engine/pkg/config"
	"github.com/geosoil-inc/geosoil-engine/pkg/database"
	"github.com/geosoil-inc/geosoil-engine/pkg/geo"
	"github.com/geosoil-inc/geosoil-engine/pkg/handlers"
	"github.com/geosoil-inc/geosoil-engine/pkg/logging"
	"github.com/geosoil-inc/geosoil-engine/pkg/middleware"
	"github.com/geosoil-inc/geosoil-engine/pkg/repositories"
	"github.com/geosoil-inc/geosoil-engine/pkg/services"
	"github.com/geosoil-inc/geosoil-engine/pkg/tabular"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("geosoil-engine stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	cfg.ResolveDockerHosts()

	logger.Info("Configuration loaded",
		zap.String("version", cfg.Version),
		zap.String("environment", cfg.Env),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.Int("batch_size", cfg.Ingestion.BatchSize),
		zap.Int("default_projection_epsg", cfg.Ingestion.DefaultProjectionEPSG))

	db, err := database.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(cfg.Database.ConnectionString(), logger); err != nil {
		return err
	}

	sourceRepo := repositories.NewSourceRepository(db)
	profileRepo := repositories.NewProfileRepository(db)
	layerRepo := repositories.NewLayerRepository(db)
	runRepo := repositories.NewIngestionRunRepository(db)

	registry := soilsource.NewDefaultRegistry()
	sourceService := services.NewSourceService(sourceRepo, registry, logger)
	if err := checkAdapters(ctx, sourceService, cfg.Ingestion.StrictSources, logger); err != nil {
		return err
	}

	upserter := services.NewBulkUpsertEngine(profileRepo, layerRepo, cfg.Ingestion.BatchSize, logger)
	ingestionService := services.NewIngestionService(
		sourceRepo,
		runRepo,
		tabular.NewReader(cfg.Ingestion.StagingDir, logger),
		registry,
		geo.NewNormalizer(),
		upserter,
		cfg.Ingestion.DefaultProjectionEPSG,
		logger,
	)
	profileService := services.NewProfileService(profileRepo, layerRepo, logger)

	jwksClient, err := auth.NewJWKSClient(ctx, &auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
		Audience:           cfg.Auth.Audience,
	})
	if err != nil {
		return fmt.Errorf("failed to initialise JWKS client: %w", err)
	}
	defer jwksClient.Close()
	if !cfg.Auth.EnableVerification {
		logger.Warn("JWT signature verification is disabled; do not run this configuration outside local development")
	}
	authMiddleware := auth.NewMiddleware(auth.NewAuthService(jwksClient, logger), logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, db, logger).RegisterRoutes(mux)
	handlers.NewSourceHandler(sourceService, registry, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewProfileHandler(profileService, logger).RegisterRoutes(mux)
	handlers.NewIngestionHandler(ingestionService, cfg.Ingestion.MaxUploadBytes(), logger).RegisterRoutes(mux, authMiddleware)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
		// Uploads are ingested synchronously.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting geosoil-engine", zap.String("addr", server.Addr), zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// checkAdapters warns about catalog sources no adapter can ingest, or fails
// when strict is set.
func checkAdapters(ctx context.Context, sources services.SourceService, strict bool, logger *zap.Logger) error {
	missing, err := sources.ValidateAdapters(ctx)
	if err != nil {
		return fmt.Errorf("failed to validate source adapters: %w", err)
	}
	if len(missing) == 0 {
		return nil
	}
	if strict {
		return fmt.Errorf("sources without ingestion adapter: %v", missing)
	}
	logger.Warn("Sources without ingestion adapter; uploads for them will be rejected",
		zap.Strings("sources", missing))
	return nil
}
