// Package main provides the entry point for the Aperture analytics service,
// the back office behind a personal photography portfolio: it ingests
// visitor sessions, events, pageviews and performance reports, and serves
// the aggregated statistics dashboard.
package main

import (
	"Aperture-Backend/internal/auth"
	"Aperture-Backend/internal/config"
	"Aperture-Backend/internal/database"
	httpHandler "Aperture-Backend/internal/handler/http"
	"Aperture-Backend/internal/repository"
	"Aperture-Backend/internal/repository/memory"
	"Aperture-Backend/internal/repository/postgres"
	"Aperture-Backend/internal/service"
	"Aperture-Backend/pkg/geo"
	"Aperture-Backend/pkg/logger"
	"context"
	"fmt"
	lg "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env)
	defer func() {
		if err := log.Sync(); err != nil {
			lg.Printf("ERROR: failed to sync zap logger: %v\n", err)
		}
	}()

	log.Info("starting Aperture analytics service")

	passwordService := auth.NewPasswordService()

	storage, cleanup, err := newStorage(cfg, passwordService, log)
	if err != nil {
		log.Fatal("failed to initialize storage", zap.Error(err))
	}
	defer cleanup()

	geoProvider := newGeoProvider(&cfg.Geo, log)

	analyticsService := service.NewAnalyticsService(storage, geoProvider, log)
	statsService := service.NewStatsService(storage, log)

	jwtService := auth.NewJWTService(&auth.JWTConfig{
		SecretKey:            []byte(cfg.Auth.JWTSecret),
		AccessTokenDuration:  cfg.Auth.AccessTokenTTL,
		RefreshTokenDuration: cfg.Auth.RefreshTokenTTL,
		Issuer:               cfg.Auth.Issuer,
	})

	server := httpHandler.NewServer(storage, analyticsService, statsService, jwtService, passwordService, log)

	addr := fmt.Sprintf(":%d", cfg.HTTPServer.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.SetupRoutes(),
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	log.Info("starting HTTP server", zap.String("address", addr))

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down Aperture analytics service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPServer.WriteTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown HTTP server", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}
}

// newStorage builds the configured Storage implementation. The returned
// cleanup function closes whatever needs closing.
func newStorage(cfg *config.Config, passwords *auth.PasswordService, log *zap.Logger) (repository.Storage, func(), error) {
	if cfg.Database.Driver == "memory" {
		log.Warn("using in-memory storage, all analytics data is lost on restart")
		return memory.New(), func() {}, nil
	}

	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	cleanup := func() {
		if err := database.Close(db, log); err != nil {
			log.Error("failed to close database connection", zap.Error(err))
		}
	}

	if cfg.Database.AutoMigrate {
		log.Info("running database migrations (auto_migrate: true)")
		if err := database.AutoMigrate(db, log); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	} else {
		log.Info("skipping database migrations (auto_migrate: false)")
	}

	if cfg.Database.SeedData {
		if err := database.SeedData(db, &cfg.Auth, passwords, log); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to seed database: %w", err)
		}
	}

	return postgres.New(db, log), cleanup, nil
}

// newGeoProvider selects the geolocation backend. Geo is strictly
// best-effort: a misconfigured provider degrades to disabled lookups
// instead of preventing startup.
func newGeoProvider(cfg *config.Geo, log *zap.Logger) geo.Provider {
	switch cfg.Provider {
	case "http":
		log.Info("using HTTP geolocation provider", zap.String("endpoint", cfg.Endpoint))
		return geo.NewHTTPProvider(cfg.Endpoint, cfg.Timeout)
	case "maxmind":
		provider, err := geo.NewMaxMindProvider(cfg.MMDBPath)
		if err != nil {
			log.Warn("failed to open MaxMind database, disabling geolocation", zap.Error(err))
			return geo.NoopProvider{}
		}
		log.Info("using MaxMind geolocation provider", zap.String("mmdb_path", cfg.MMDBPath))
		return provider
	case "off":
		log.Info("geolocation disabled")
		return geo.NoopProvider{}
	default:
		log.Warn("unknown geo provider, disabling geolocation", zap.String("provider", cfg.Provider))
		return geo.NoopProvider{}
	}
}
