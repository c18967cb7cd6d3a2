package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"kepler-sentinel-go/internal/config"
)

func NewServiceLogger(cfg *config.Config, service string) zerolog.Logger {
	return log.With().Str("instance_id", cfg.InstanceID).Str("service", service).Logger()
}

func WithZone(base zerolog.Logger, zoneID string) zerolog.Logger {
	return base.With().Str("zone_id", zoneID).Logger()
}

func WithConsumer(base zerolog.Logger, consumer string) zerolog.Logger {
	return base.With().Str("consumer", consumer).Logger()
}
