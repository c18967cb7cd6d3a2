package health

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServicePrefix prefixes component names in the gRPC health service
const ServicePrefix = "kepler.sentinel."

// Probe reports the health of one component
type Probe func() (healthy bool, detail string)

// ComponentStatus is the last probe result of one component
type ComponentStatus struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Critical  bool      `json:"critical"`
	Detail    string    `json:"detail,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Report aggregates all component statuses
type Report struct {
	Status     string            `json:"status"`
	Components []ComponentStatus `json:"components"`
	CheckedAt  time.Time         `json:"checked_at"`
}

// Healthy reports whether every critical component is healthy
func (r Report) Healthy() bool {
	return r.Status != StatusUnhealthy
}

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

type probe struct {
	name     string
	critical bool
	fn       Probe
}

// Monitor runs component probes periodically and mirrors them into a
// gRPC health server. The overall service ("") is SERVING unless a critical
// component fails.
type Monitor struct {
	mu       sync.RWMutex
	probes   []probe
	last     Report
	interval time.Duration
	server   *grpchealth.Server
}

// NewMonitor creates a monitor checking every interval
func NewMonitor(interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Monitor{
		interval: interval,
		server:   grpchealth.NewServer(),
		last:     Report{Status: StatusHealthy, Components: []ComponentStatus{}},
	}
}

// Register adds a probe. Critical probes make the whole service unhealthy.
func (m *Monitor) Register(name string, critical bool, fn Probe) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes = append(m.probes, probe{name: name, critical: critical, fn: fn})
	m.server.SetServingStatus(ServicePrefix+name, healthpb.HealthCheckResponse_UNKNOWN)
}

// Check runs every probe now and returns the report
func (m *Monitor) Check() Report {
	m.mu.RLock()
	probes := make([]probe, len(m.probes))
	copy(probes, m.probes)
	m.mu.RUnlock()

	now := time.Now()
	report := Report{Status: StatusHealthy, Components: make([]ComponentStatus, 0, len(probes)), CheckedAt: now}
	for _, p := range probes {
		ok, detail := p.fn()
		report.Components = append(report.Components, ComponentStatus{
			Name:      p.name,
			Healthy:   ok,
			Critical:  p.critical,
			Detail:    detail,
			CheckedAt: now,
		})

		status := healthpb.HealthCheckResponse_SERVING
		if !ok {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			if p.critical {
				report.Status = StatusUnhealthy
			} else if report.Status == StatusHealthy {
				report.Status = StatusDegraded
			}
		}
		m.server.SetServingStatus(ServicePrefix+p.name, status)
	}

	overall := healthpb.HealthCheckResponse_SERVING
	if report.Status == StatusUnhealthy {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	m.server.SetServingStatus("", overall)

	m.mu.Lock()
	prev := m.last.Status
	m.last = report
	m.mu.Unlock()

	if prev != report.Status {
		log.Info().Str("from", prev).Str("to", report.Status).Msg("Health status changed")
	}
	return report
}

// Report returns the last computed report
func (m *Monitor) Report() Report {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// HealthServer exposes the gRPC health implementation
func (m *Monitor) HealthServer() healthpb.HealthServer {
	return m.server
}

// Serve probes on every interval until ctx is done
func (m *Monitor) Serve(ctx context.Context) error {
	m.Check()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Check()
		}
	}
}

func (m *Monitor) String() string {
	return "health-monitor"
}

// GRPCService serves the gRPC health protocol as a supervised service
type GRPCService struct {
	addr            string
	monitor         *Monitor
	shutdownTimeout time.Duration
	listen          func(network, address string) (net.Listener, error)
}

// NewGRPCService creates the gRPC health endpoint on addr
func NewGRPCService(addr string, monitor *Monitor, shutdownTimeout time.Duration) *GRPCService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 5 * time.Second
	}
	return &GRPCService{addr: addr, monitor: monitor, shutdownTimeout: shutdownTimeout, listen: net.Listen}
}

func (s *GRPCService) Serve(ctx context.Context) error {
	lis, err := s.listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	server := grpc.NewServer()
	healthpb.RegisterHealthServer(server, s.monitor.HealthServer())
	reflection.Register(server)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(lis)
	}()
	log.Info().Str("addr", lis.Addr().String()).Msg("gRPC health server listening")

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("grpc server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		stopped := make(chan struct{})
		go func() {
			server.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(s.shutdownTimeout):
			server.Stop()
		}
		return ctx.Err()
	}
}

func (s *GRPCService) String() string {
	return "grpc-health"
}
