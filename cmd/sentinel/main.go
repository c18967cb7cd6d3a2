package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"kepler-sentinel-go/internal/api"
	"kepler-sentinel-go/internal/config"
	"kepler-sentinel-go/internal/logging"
	"kepler-sentinel-go/internal/services"
	"kepler-sentinel-go/internal/supervisor"
	"kepler-sentinel-go/pkg/logger"
)

// @title Kepler Sentinel API
// @version 1.0.0
// @description Detection-to-alert engine: zone intrusion alerts, pipeline state and diagnostics
// @BasePath /
func main() {
	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	out := logging.Setup(cfg)

	log.Info().
		Str("instance_id", cfg.InstanceID).
		Str("version", cfg.Version).
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Int("grpc_port", cfg.GRPCPort).
		Str("detections_source", cfg.DetectionsSource).
		Str("zones_file", cfg.ZonesFile).
		Msg("Starting Kepler Sentinel")

	container, err := services.NewServiceContainer(cfg, services.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}

	server := api.NewServer(cfg, container)

	tree := supervisor.NewTree(logger.New(cfg.InstanceID, out, cfg.LogLevel).WithComponent("supervisor").Logger, supervisor.TreeConfig{
		ShutdownTimeout: cfg.ShutdownTimeout,
	})
	container.Register(tree)
	tree.AddAPIService(supervisor.NewHTTPServerService(server.HTTPServer(), cfg.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := tree.ServeBackground(ctx)
	container.PublishSystem("Kepler Sentinel started")

	// Wait for interrupt signal or the supervisor giving up
	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
		serveErr = <-errCh
	case serveErr = <-errCh:
	}
	stop()

	// Graceful shutdown
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		log.Error().Err(serveErr).Msg("Supervisor stopped with error")
	}
	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			log.Warn().Str("service", svc.Name).Msg("Service did not stop within timeout")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := container.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown completed with errors")
		return
	}
	log.Info().Msg("Shutdown complete")
}
