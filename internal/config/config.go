package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Application
	Version     string
	Environment string
	InstanceID  string
	Port        int
	GRPCPort    int
	LogLevel    string

	// Per-client HTTP rate limit; 0 disables
	APIRateLimit float64
	APIRateBurst int

	// Logdy (lightweight web log viewer)
	LogdyEnabled bool
	LogdyHost    string
	LogdyPort    int

	// Monitoring file (zones, tracking and alerting sections)
	ZonesFile      string
	WatchZonesFile bool

	// NATS (detections in, alerts and snapshots out)
	// Default: nats://localhost:4222 (works with Docker Compose setup)
	// Docker: Use nats://nats:4222 if running in Docker
	NatsEnabled        bool
	NatsURL            string
	NatsConnectTimeout time.Duration
	NatsReconnectWait  time.Duration
	NatsMaxReconnects  int
	NatsDrainTimeout   time.Duration // For graceful shutdown

	// Circuit breaker in front of NATS publishes
	NatsBreakerFailures int
	NatsBreakerTimeout  time.Duration

	// Detection input
	DetectionsSource  string // "nats", "file" or "detector"
	DetectionsSubject string
	DetectionsQueue   string
	DetectionsFile    string
	ReplayRealtime    bool // pace file replay by frame timestamps
	FrameQueueSize    int  // frames buffered between source and pipeline
	DetectorInterval  time.Duration

	// Detection filtering
	MinConfidence float64

	// Tracking defaults (overridable by the monitoring file)
	TrackMetric            string
	TrackAssignment        string
	TrackMinIoU            float64
	TrackMaxCenterDistance float64
	TrackMaxMissedFrames   int
	TrackHistoryLength     int
	TrackPrediction        bool

	// Alerting
	AlertsSubject    string
	SnapshotSubject  string
	AlertsCooldown   time.Duration
	SnapshotInterval time.Duration
	AlertHistorySize int

	// Event bus
	BusBufferSize   int
	BusMaxAttempts  int
	BusRetryBackoff time.Duration

	// Swagger Configuration
	SwaggerHost string
	SwaggerPort int

	// Health Check
	HealthCheckInterval time.Duration

	// Treat the pipeline as stalled if no frame arrived for this duration
	FrameStaleThreshold time.Duration

	// Graceful Shutdown
	ShutdownTimeout time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file found or error loading .env file, using environment variables and defaults")
	} else {
		log.Info().Msg("Loaded configuration from .env file")
	}

	port := getEnvInt("PORT", 8000)
	return &Config{
		// Application
		Version:     getEnv("VERSION", "1.0.0"),
		Environment: getEnv("ENVIRONMENT", "development"),
		InstanceID:  getEnv("INSTANCE_ID", "sentinel-1"),
		Port:        port,
		GRPCPort:    getEnvInt("GRPC_PORT", 50051),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		APIRateLimit: getEnvFloat("API_RATE_LIMIT", 50),
		APIRateBurst: getEnvInt("API_RATE_BURST", 100),

		// Logdy (lightweight web log viewer)
		LogdyEnabled: getEnvBool("LOGDY_ENABLED", false),
		LogdyHost:    getEnv("LOGDY_HOST", "localhost"),
		LogdyPort:    getEnvInt("LOGDY_PORT", 8080),

		// Monitoring file
		ZonesFile:      getEnv("ZONES_FILE", "monitoring.yaml"),
		WatchZonesFile: getEnvBool("WATCH_ZONES_FILE", true),

		// NATS (configured for Docker Compose setup)
		NatsEnabled:        getEnvBool("NATS_ENABLED", true),
		NatsURL:            getNatsURL(),
		NatsConnectTimeout: getEnvDuration("NATS_CONNECT_TIMEOUT", 10*time.Second),
		NatsReconnectWait:  getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		NatsMaxReconnects:  getEnvInt("NATS_MAX_RECONNECTS", -1), // -1 = unlimited
		NatsDrainTimeout:   getEnvDuration("NATS_DRAIN_TIMEOUT", 5*time.Second),

		NatsBreakerFailures: getEnvInt("NATS_BREAKER_FAILURES", 5),
		NatsBreakerTimeout:  getEnvDuration("NATS_BREAKER_TIMEOUT", 30*time.Second),

		// Detection input
		DetectionsSource:  getEnv("DETECTIONS_SOURCE", "nats"),
		DetectionsSubject: getEnv("DETECTIONS_SUBJECT", "detections"),
		DetectionsQueue:   getEnv("DETECTIONS_QUEUE", "sentinel"),
		DetectionsFile:    getEnv("DETECTIONS_FILE", ""),
		ReplayRealtime:    getEnvBool("REPLAY_REALTIME", false),
		DetectorInterval:  getEnvDuration("DETECTOR_INTERVAL", 200*time.Millisecond),
		FrameQueueSize:    getEnvInt("FRAME_QUEUE_SIZE", 64),

		MinConfidence: getEnvFloat("MIN_CONFIDENCE", 0.35),

		// Tracking defaults
		TrackMetric:            getEnv("TRACK_METRIC", "iou"),
		TrackAssignment:        getEnv("TRACK_ASSIGNMENT", "greedy"),
		TrackMinIoU:            getEnvFloat("TRACK_MIN_IOU", 0.1),
		TrackMaxCenterDistance: getEnvFloat("TRACK_MAX_CENTER_DISTANCE", 75),
		TrackMaxMissedFrames:   getEnvInt("TRACK_MAX_MISSED_FRAMES", 5),
		TrackHistoryLength:     getEnvInt("TRACK_HISTORY_LENGTH", 32),
		TrackPrediction:        getEnvBool("TRACK_PREDICTION", true),

		// Alerting
		AlertsSubject:    getEnv("ALERTS_SUBJECT", "alerts.intrusion"),
		SnapshotSubject:  getEnv("SNAPSHOT_SUBJECT", "sentinel.state"),
		AlertsCooldown:   getEnvDuration("ALERTS_COOLDOWN", 10*time.Second),
		SnapshotInterval: getEnvDuration("SNAPSHOT_INTERVAL", time.Second),
		AlertHistorySize: getEnvInt("ALERT_HISTORY_SIZE", 1000),

		// Event bus
		BusBufferSize:   getEnvInt("BUS_BUFFER_SIZE", 256),
		BusMaxAttempts:  getEnvInt("BUS_MAX_ATTEMPTS", 3),
		BusRetryBackoff: getEnvDuration("BUS_RETRY_BACKOFF", 100*time.Millisecond),

		// Swagger Configuration
		SwaggerHost: getEnv("SWAGGER_HOST", "localhost"),
		SwaggerPort: getEnvInt("SWAGGER_PORT", port),

		// Health Check
		HealthCheckInterval: getEnvDuration("HEALTH_CHECK_INTERVAL", 30*time.Second),
		FrameStaleThreshold: getEnvDuration("FRAME_STALE_THRESHOLD", 10*time.Second),

		// Graceful Shutdown
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Helper functions for Docker environment detection
func isRunningInDocker() bool {
	// Check for Docker-specific environment indicators
	if os.Getenv("DOCKER_CONTAINER") == "true" {
		return true
	}

	// Check for .dockerenv file
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}

	return false
}

// getNatsURL returns the appropriate NATS URL based on environment
func getNatsURL() string {
	if envURL := os.Getenv("NATS_URL"); envURL != "" {
		return envURL
	}

	// If running in Docker, use service name; otherwise use localhost
	if isRunningInDocker() {
		return "nats://nats:4222"
	}

	return "nats://localhost:4222"
}
