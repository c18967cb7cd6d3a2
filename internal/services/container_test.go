package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kepler-sentinel-go/internal/config"
	"kepler-sentinel-go/internal/models"
	"kepler-sentinel-go/internal/services/detection"
)

const monitoringV1 = `
tracking:
  metric: center
alerting:
  cooldown: 5s
  snapshot_interval: 0s
zones:
  - id: gate
    polygon: [[0, 0], [100, 0], [100, 100], [0, 100]]
    sensitivity: 1
`

const monitoringV2 = `
tracking:
  metric: center
alerting:
  cooldown: 20s
  snapshot_interval: 0s
zones:
  - id: gate
    polygon: [[0, 0], [100, 0], [100, 100], [0, 100]]
    sensitivity: 1
  - id: dock
    polygon: [[200, 200], [300, 200], [250, 300]]
    sensitivity: 2
`

type idleSource struct{}

func (idleSource) Run(ctx context.Context, _ chan<- models.Frame) error {
	<-ctx.Done()
	return ctx.Err()
}

func (idleSource) String() string { return "idle-source" }

func testConfig(t *testing.T, monitoring string) *config.Config {
	t.Helper()

	path := filepath.Join(t.TempDir(), "monitoring.yaml")
	require.NoError(t, os.WriteFile(path, []byte(monitoring), 0o600))

	cfg := config.Load()
	cfg.ZonesFile = path
	cfg.NatsEnabled = false
	cfg.WatchZonesFile = false
	return cfg
}

func TestNewServiceContainer(t *testing.T) {
	cfg := testConfig(t, monitoringV1)

	sc, err := NewServiceContainer(cfg, Options{Source: idleSource{}})
	require.NoError(t, err)
	defer sc.Shutdown(context.Background())

	assert.Nil(t, sc.Messaging)
	assert.Equal(t, 1, sc.Registry.Snapshot().Len())
	assert.Equal(t, 5*time.Second, sc.Engine.Settings().Cooldown)
	assert.Equal(t, "idle-source", sc.Source.String())

	names := make([]string, 0)
	for _, s := range sc.Bus.Stats() {
		names = append(names, s.Consumer)
	}
	assert.ElementsMatch(t, []string{"history", "log", "websocket"}, names)
}

func TestServiceContainerReload(t *testing.T) {
	cfg := testConfig(t, monitoringV1)

	sc, err := NewServiceContainer(cfg, Options{Source: idleSource{}})
	require.NoError(t, err)
	defer sc.Shutdown(context.Background())

	require.NoError(t, os.WriteFile(cfg.ZonesFile, []byte(monitoringV2), 0o600))
	require.NoError(t, sc.ReloadMonitoring())

	snap := sc.Registry.Snapshot()
	assert.Equal(t, uint64(2), snap.Version)
	assert.Equal(t, 2, snap.Len())
	assert.Equal(t, 20*time.Second, sc.Engine.Settings().Cooldown, "thresholds are staged")

	require.NoError(t, os.WriteFile(cfg.ZonesFile, []byte("zones: [{id: bad, polygon: [[0,0],[1,1]], sensitivity: 1}]"), 0o600))
	require.Error(t, sc.ReloadMonitoring())
	assert.Equal(t, uint64(2), sc.Registry.Snapshot().Version, "failed reload keeps the previous zones")
}

func TestServiceContainerSourceSelection(t *testing.T) {
	cfg := testConfig(t, monitoringV1)

	cfg.DetectionsSource = "file"
	cfg.DetectionsFile = ""
	_, err := NewServiceContainer(cfg, Options{})
	var cfgErr *models.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "DETECTIONS_FILE", cfgErr.Field)

	cfg.DetectionsFile = filepath.Join(t.TempDir(), "frames.jsonl")
	sc, err := NewServiceContainer(cfg, Options{})
	require.NoError(t, err)
	assert.Equal(t, "file-source", sc.Source.String())

	cfg.DetectionsSource = "nats"
	_, err = NewServiceContainer(cfg, Options{})
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "NATS_ENABLED", cfgErr.Field)

	cfg.DetectionsSource = "carrier-pigeon"
	_, err = NewServiceContainer(cfg, Options{})
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "DETECTIONS_SOURCE", cfgErr.Field)
}

func TestServiceContainerDetectorSource(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, monitoringV1)
	cfg.DetectionsSource = "detector"

	_, err := NewServiceContainer(cfg, Options{})
	var cfgErr *models.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "DETECTIONS_SOURCE", cfgErr.Field)

	detector := detection.DetectorFunc(func(context.Context, time.Time) ([]models.Detection, error) {
		return nil, nil
	})

	cfg.DetectorInterval = 0
	_, err = NewServiceContainer(cfg, Options{Detector: detector})
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "DETECTOR_INTERVAL", cfgErr.Field)

	cfg.DetectorInterval = 50 * time.Millisecond
	sc, err := NewServiceContainer(cfg, Options{Detector: detector})
	require.NoError(t, err)
	defer sc.Shutdown(context.Background())
	assert.Equal(t, "detector-poller", sc.Source.String())
	assert.IsType(t, &detection.PollingSource{}, sc.Source)
}

func TestServiceContainerHealthProbes(t *testing.T) {
	cfg := testConfig(t, monitoringV1)

	sc, err := NewServiceContainer(cfg, Options{Source: idleSource{}})
	require.NoError(t, err)

	report := sc.Health.Check()
	assert.Equal(t, "unhealthy", report.Status, "runner not started yet")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sc.Runner.Serve(ctx) }()
	require.Eventually(t, sc.Runner.IsRunning, time.Second, 5*time.Millisecond)

	report = sc.Health.Check()
	assert.Equal(t, "healthy", report.Status)

	cancel()
	<-done
}
