package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"kepler-sentinel-go/internal/config"
	"kepler-sentinel-go/internal/logging"
	"kepler-sentinel-go/internal/metrics"
	"kepler-sentinel-go/internal/models"
	"kepler-sentinel-go/internal/services/detection"
	"kepler-sentinel-go/internal/services/eventbus"
	"kepler-sentinel-go/internal/services/health"
	"kepler-sentinel-go/internal/services/messaging"
	"kepler-sentinel-go/internal/services/pipeline"
	"kepler-sentinel-go/internal/services/postprocessing"
	"kepler-sentinel-go/internal/services/tracking"
	"kepler-sentinel-go/internal/services/zones"
	"kepler-sentinel-go/internal/supervisor"
	"kepler-sentinel-go/internal/websocket"
)

// ServiceContainer holds all services
type ServiceContainer struct {
	Config   *config.Config
	Registry *zones.Registry
	Dedup    *postprocessing.Service
	Bus      *eventbus.Bus
	History  *eventbus.History
	Hub      *websocket.Hub
	Engine   *pipeline.Engine
	Source   detection.Source
	Runner   *pipeline.Runner
	Health   *health.Monitor

	// nil when NATS is disabled
	Messaging *messaging.Service
	NATSSink  *messaging.Sink

	reloadMu sync.Mutex
}

// Options replace parts of the default wiring, mainly for tests
type Options struct {
	// Source overrides the configured detection source
	Source detection.Source
	// Detector backs DETECTIONS_SOURCE=detector. The model is linked in by
	// the embedding program; the env cannot name one.
	Detector detection.Detector
}

// NewServiceContainer creates a new service container
func NewServiceContainer(cfg *config.Config, opts Options) (*ServiceContainer, error) {
	monitoring, err := config.LoadMonitoring(cfg.ZonesFile, cfg.DefaultMonitoring())
	if err != nil {
		return nil, fmt.Errorf("failed to load monitoring configuration: %w", err)
	}

	registry := zones.NewRegistry()
	if err := registry.Load(monitoring.Zones); err != nil {
		return nil, fmt.Errorf("failed to load zones: %w", err)
	}

	dedup, err := postprocessing.NewService(postprocessing.Options{Cooldown: monitoring.Alerting.Cooldown})
	if err != nil {
		return nil, err
	}

	bus := eventbus.NewBus(eventbus.Options{
		BufferSize:   cfg.BusBufferSize,
		MaxAttempts:  cfg.BusMaxAttempts,
		RetryBackoff: cfg.BusRetryBackoff,
	})

	sc := &ServiceContainer{
		Config:   cfg,
		Registry: registry,
		Dedup:    dedup,
		Bus:      bus,
		History:  eventbus.NewHistory(cfg.AlertHistorySize),
		Hub:      websocket.NewHub(),
		Health:   health.NewMonitor(cfg.HealthCheckInterval),
	}

	alertLogger := logging.NewServiceLogger(cfg, "alerts")
	consumers := []eventbus.Consumer{sc.History, eventbus.NewLogConsumer(&alertLogger), sc.Hub}

	if cfg.NatsEnabled {
		sc.Messaging, err = messaging.NewService(cfg)
		if err != nil {
			return nil, err
		}
		sc.NATSSink, err = messaging.NewSink(sc.Messaging, cfg.AlertsSubject, cfg.SnapshotSubject, messaging.BreakerConfig{
			FailureThreshold: uint32(max(cfg.NatsBreakerFailures, 0)),
			Timeout:          cfg.NatsBreakerTimeout,
		})
		if err != nil {
			sc.shutdownMessaging()
			return nil, err
		}
		consumers = append(consumers, sc.NATSSink)
	}
	for _, c := range consumers {
		if err := bus.Subscribe(c, 0); err != nil {
			sc.shutdownMessaging()
			return nil, err
		}
	}

	sc.Engine, err = pipeline.NewEngine(registry, dedup, bus, SettingsFromMonitoring(monitoring))
	if err != nil {
		sc.shutdownMessaging()
		return nil, err
	}

	sc.Source = opts.Source
	if sc.Source == nil {
		if sc.Source, err = sc.newSource(opts); err != nil {
			sc.shutdownMessaging()
			return nil, err
		}
	}

	sc.Runner, err = pipeline.NewRunner(sc.Engine, sc.Source, cfg.FrameQueueSize)
	if err != nil {
		sc.shutdownMessaging()
		return nil, err
	}

	sc.registerProbes()

	log.Info().
		Int("zones", len(monitoring.Zones)).
		Str("source", sc.Source.String()).
		Bool("nats", cfg.NatsEnabled).
		Msg("Service container initialized")

	return sc, nil
}

func (sc *ServiceContainer) newSource(opts Options) (detection.Source, error) {
	cfg := sc.Config
	switch cfg.DetectionsSource {
	case "file":
		if cfg.DetectionsFile == "" {
			return nil, &models.ConfigError{Field: "DETECTIONS_FILE", Reason: "required when DETECTIONS_SOURCE=file"}
		}
		return detection.NewFileSource(cfg.DetectionsFile, cfg.ReplayRealtime), nil
	case "nats":
		if sc.Messaging == nil {
			return nil, &models.ConfigError{Field: "NATS_ENABLED", Reason: "NATS must be enabled when DETECTIONS_SOURCE=nats"}
		}
		return detection.NewNATSSource(sc.Messaging, cfg.DetectionsSubject, cfg.DetectionsQueue)
	case "detector":
		if opts.Detector == nil {
			return nil, &models.ConfigError{Field: "DETECTIONS_SOURCE", Reason: "detector source requires a Detector supplied by the embedding program"}
		}
		if cfg.DetectorInterval <= 0 {
			return nil, &models.ConfigError{Field: "DETECTOR_INTERVAL", Reason: "must be positive"}
		}
		return detection.NewPollingSource(opts.Detector, cfg.DetectorInterval, cfg.InstanceID)
	default:
		return nil, &models.ConfigError{Field: "DETECTIONS_SOURCE", Reason: fmt.Sprintf("unknown source %q", cfg.DetectionsSource)}
	}
}

func (sc *ServiceContainer) registerProbes() {
	cfg := sc.Config

	sc.Health.Register("pipeline", true, func() (bool, string) {
		switch {
		case sc.Runner.Exhausted():
			return true, "detection source exhausted"
		case !sc.Runner.IsRunning():
			return false, "runner not running"
		case sc.Runner.Stale(cfg.FrameStaleThreshold):
			return false, fmt.Sprintf("no frame for more than %s", cfg.FrameStaleThreshold)
		}
		return true, ""
	})

	sc.Health.Register("zones", false, func() (bool, string) {
		snap := sc.Registry.Snapshot()
		if snap.Len() == 0 {
			return false, "no zones configured"
		}
		return true, fmt.Sprintf("version %d, %d zones", snap.Version, snap.Len())
	})

	sc.Health.Register("event_bus", false, func() (bool, string) {
		for _, o := range sc.Bus.Overflows() {
			if o.Dropped > 0 && time.Since(o.LastDroppedAt) < time.Minute {
				return false, fmt.Sprintf("consumer %s dropped events", o.Consumer)
			}
		}
		return true, ""
	})

	if poller, ok := sc.Source.(*detection.PollingSource); ok {
		sc.Health.Register("detector", false, func() (bool, string) {
			if !poller.IsHealthy() {
				return false, "last detect call failed"
			}
			return true, ""
		})
	}

	if sc.Messaging != nil {
		sc.Health.Register("nats", false, func() (bool, string) {
			if !sc.Messaging.IsConnected() {
				return false, "disconnected"
			}
			if state := sc.NATSSink.BreakerState(); state != "closed" {
				return false, "publish breaker " + state
			}
			return true, ""
		})
	}
}

// Register adds the container's long-running services to the supervisor tree
func (sc *ServiceContainer) Register(tree *supervisor.Tree) {
	tree.AddDeliveryService(sc.Bus)
	tree.AddDeliveryService(sc.Hub)
	if sc.Config.WatchZonesFile && sc.Config.ZonesFile != "" {
		tree.AddDeliveryService(config.NewMonitoringWatcher(sc.Config.ZonesFile, func() {
			if err := sc.ReloadMonitoring(); err != nil {
				log.Error().Err(err).Msg("Monitoring reload failed, keeping previous configuration")
			}
		}))
	}

	tree.AddPipelineService(sc.Runner)

	tree.AddAPIService(sc.Health)
	tree.AddAPIService(health.NewGRPCService(fmt.Sprintf(":%d", sc.Config.GRPCPort), sc.Health, sc.Config.ShutdownTimeout))
}

// ReloadMonitoring re-reads the monitoring file. Zones are swapped
// atomically and thresholds are staged for the next frame; on any error the
// running configuration is kept.
func (sc *ServiceContainer) ReloadMonitoring() (err error) {
	sc.reloadMu.Lock()
	defer sc.reloadMu.Unlock()
	defer func() { metrics.RecordConfigReload(err) }()

	monitoring, err := config.LoadMonitoring(sc.Config.ZonesFile, sc.Config.DefaultMonitoring())
	if err != nil {
		return err
	}
	settings := SettingsFromMonitoring(monitoring)
	if err := settings.Validate(); err != nil {
		return err
	}
	if err := sc.Registry.Load(monitoring.Zones); err != nil {
		return err
	}
	if err := sc.Engine.UpdateSettings(settings); err != nil {
		return err
	}

	version := sc.Registry.Snapshot().Version
	sc.PublishSystem(fmt.Sprintf("Monitoring configuration reloaded (zones version %d)", version))
	log.Info().Uint64("version", version).Int("zones", len(monitoring.Zones)).Msg("Monitoring configuration reloaded")
	return nil
}

// PublishSystem emits a system event on the bus
func (sc *ServiceContainer) PublishSystem(message string) {
	sc.Bus.Publish(models.Event{Type: models.EventTypeSystem, Message: message})
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	var errs []error
	if sc.Messaging != nil {
		if err := sc.Messaging.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if sc.Dedup != nil {
		if err := sc.Dedup.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (sc *ServiceContainer) shutdownMessaging() {
	if sc.Messaging == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sc.Config.NatsDrainTimeout)
	defer cancel()
	_ = sc.Messaging.Shutdown(ctx)
}

// SettingsFromMonitoring maps the monitoring file sections onto engine settings
func SettingsFromMonitoring(m *config.Monitoring) pipeline.Settings {
	return pipeline.Settings{
		Tracking: tracking.Config{
			Metric:            tracking.MatchMetric(m.Tracking.Metric),
			Assignment:        tracking.Assignment(m.Tracking.Assignment),
			MinIoU:            m.Tracking.MinIoU,
			MaxCenterDistance: m.Tracking.MaxCenterDistance,
			MaxMissedFrames:   m.Tracking.MaxMissedFrames,
			HistoryLength:     m.Tracking.HistoryLength,
			Prediction:        m.Tracking.Prediction,
		},
		Cooldown:         m.Alerting.Cooldown,
		MinConfidence:    m.Alerting.MinConfidence,
		SnapshotInterval: m.Alerting.SnapshotInterval,
	}
}
