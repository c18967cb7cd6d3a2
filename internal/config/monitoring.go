package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog/log"

	"kepler-sentinel-go/internal/models"
)

// MonitoringEnvPrefix prefixes environment overrides of the monitoring
// file. A double underscore separates sections:
// SENTINEL_TRACKING__MIN_IOU -> tracking.min_iou
const MonitoringEnvPrefix = "SENTINEL_"

// TrackingSettings are the association thresholds of the track manager
type TrackingSettings struct {
	Metric            string  `koanf:"metric" json:"metric" validate:"oneof=iou center"`
	Assignment        string  `koanf:"assignment" json:"assignment" validate:"omitempty,oneof=greedy hungarian"`
	MinIoU            float64 `koanf:"min_iou" json:"min_iou" validate:"gte=0,lte=1"`
	MaxCenterDistance float64 `koanf:"max_center_distance" json:"max_center_distance" validate:"gt=0"`
	MaxMissedFrames   int     `koanf:"max_missed_frames" json:"max_missed_frames" validate:"gte=0"`
	HistoryLength     int     `koanf:"history_length" json:"history_length" validate:"gte=1"`
	Prediction        bool    `koanf:"prediction" json:"prediction"`
}

// AlertingSettings control filtering, rate limiting and snapshots
type AlertingSettings struct {
	Cooldown         time.Duration `koanf:"cooldown" json:"cooldown" validate:"gte=0"`
	MinConfidence    float64       `koanf:"min_confidence" json:"min_confidence" validate:"gte=0,lte=1"`
	SnapshotInterval time.Duration `koanf:"snapshot_interval" json:"snapshot_interval" validate:"gte=0"`
}

// Monitoring is the content of the monitoring file
type Monitoring struct {
	Tracking TrackingSettings        `koanf:"tracking" json:"tracking"`
	Alerting AlertingSettings        `koanf:"alerting" json:"alerting"`
	Zones    []models.ZoneDefinition `koanf:"zones" json:"zones"`
}

// DefaultMonitoring returns the monitoring settings implied by the environment
func (c *Config) DefaultMonitoring() Monitoring {
	return Monitoring{
		Tracking: TrackingSettings{
			Metric:            c.TrackMetric,
			Assignment:        c.TrackAssignment,
			MinIoU:            c.TrackMinIoU,
			MaxCenterDistance: c.TrackMaxCenterDistance,
			MaxMissedFrames:   c.TrackMaxMissedFrames,
			HistoryLength:     c.TrackHistoryLength,
			Prediction:        c.TrackPrediction,
		},
		Alerting: AlertingSettings{
			Cooldown:         c.AlertsCooldown,
			MinConfidence:    c.MinConfidence,
			SnapshotInterval: c.SnapshotInterval,
		},
	}
}

var (
	settingsValidate     *validator.Validate
	settingsValidateOnce sync.Once
)

func getValidator() *validator.Validate {
	settingsValidateOnce.Do(func() {
		settingsValidate = validator.New()
		settingsValidate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("koanf"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return settingsValidate
}

// LoadMonitoring layers defaults, the YAML file at path and SENTINEL_*
// environment overrides. A missing file is not an error; the defaults are
// then used with no zones. Invalid settings yield a *models.ConfigError.
// Zone definitions are validated by the zone registry.
func LoadMonitoring(path string, defaults Monitoring) (*Monitoring, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load monitoring defaults: %w", err)
	}

	// Layer 2: monitoring file (optional)
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, &models.ConfigError{Field: "file", Reason: err.Error()}
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat monitoring file %s: %w", path, err)
		} else {
			log.Warn().Str("path", path).Msg("Monitoring file not found, running without zones")
		}
	}

	// Layer 3: environment overrides (highest priority)
	if err := k.Load(env.Provider(MonitoringEnvPrefix, ".", monitoringEnvKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load monitoring environment overrides: %w", err)
	}

	m := &Monitoring{}
	if err := k.Unmarshal("", m); err != nil {
		return nil, &models.ConfigError{Field: "file", Reason: err.Error()}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the tracking and alerting sections
func (m *Monitoring) Validate() error {
	v := getValidator()
	sections := []struct {
		name  string
		value any
	}{
		{"tracking", m.Tracking},
		{"alerting", m.Alerting},
	}
	for _, sec := range sections {
		section := sec.name
		if err := v.Struct(sec.value); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) && len(verrs) > 0 {
				fe := verrs[0]
				return &models.ConfigError{
					Field:  section + "." + fe.Field(),
					Reason: fmt.Sprintf("failed %q validation (value %v)", fe.Tag(), fe.Value()),
				}
			}
			return &models.ConfigError{Field: section, Reason: err.Error()}
		}
	}
	return nil
}

func monitoringEnvKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, MonitoringEnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// MonitoringWatcher calls onChange whenever the monitoring file changes.
// Implements suture.Service.
type MonitoringWatcher struct {
	path     string
	onChange func()
	debounce time.Duration
}

// NewMonitoringWatcher creates a watcher for path
func NewMonitoringWatcher(path string, onChange func()) *MonitoringWatcher {
	return &MonitoringWatcher{path: path, onChange: onChange, debounce: 250 * time.Millisecond}
}

// Serve watches until ctx is done
func (w *MonitoringWatcher) Serve(ctx context.Context) error {
	provider := file.Provider(w.path)
	changed := make(chan struct{}, 1)

	err := provider.Watch(func(event interface{}, err error) {
		if err != nil {
			log.Warn().Err(err).Str("path", w.path).Msg("Monitoring file watch error")
			return
		}
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("failed to watch monitoring file %s: %w", w.path, err)
	}
	defer func() {
		if err := provider.Unwatch(); err != nil {
			log.Debug().Err(err).Msg("Monitoring file unwatch failed")
		}
	}()

	log.Info().Str("path", w.path).Msg("Watching monitoring file")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
			// editors write in bursts
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.debounce):
			}
			select {
			case <-changed:
			default:
			}
			w.onChange()
		}
	}
}

// String implements fmt.Stringer for supervisor logs
func (w *MonitoringWatcher) String() string {
	return "monitoring-watcher"
}
