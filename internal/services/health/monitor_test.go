package health

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestMonitorAggregatesStatus(t *testing.T) {
	t.Parallel()

	var pipelineOK, natsOK atomic.Bool
	pipelineOK.Store(true)
	natsOK.Store(true)

	m := NewMonitor(time.Hour)
	m.Register("pipeline", true, func() (bool, string) { return pipelineOK.Load(), "frames flowing" })
	m.Register("nats", false, func() (bool, string) { return natsOK.Load(), "" })

	report := m.Check()
	assert.Equal(t, StatusHealthy, report.Status)
	require.Len(t, report.Components, 2)
	assert.Equal(t, "pipeline", report.Components[0].Name)
	assert.Equal(t, "frames flowing", report.Components[0].Detail)

	natsOK.Store(false)
	report = m.Check()
	assert.Equal(t, StatusDegraded, report.Status)
	assert.True(t, report.Healthy())

	pipelineOK.Store(false)
	report = m.Check()
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.False(t, report.Healthy())
	assert.Equal(t, report, m.Report())
}

func TestMonitorGRPCStatus(t *testing.T) {
	t.Parallel()

	var ok atomic.Bool
	ok.Store(true)
	m := NewMonitor(time.Hour)
	m.Register("pipeline", true, func() (bool, string) { return ok.Load(), "" })
	m.Check()

	ctx := context.Background()
	srv := m.HealthServer()

	resp, err := srv.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	ok.Store(false)
	m.Check()

	resp, err = srv.Check(ctx, &healthpb.HealthCheckRequest{Service: ServicePrefix + "pipeline"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())

	resp, err = srv.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}

func TestGRPCServiceServesHealth(t *testing.T) {
	t.Parallel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	m := NewMonitor(time.Hour)
	m.Register("pipeline", true, func() (bool, string) { return true, "" })
	m.Check()

	svc := NewGRPCService(lis.Addr().String(), m, time.Second)
	svc.listen = func(string, string) (net.Listener, error) { return lis, nil }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	require.Eventually(t, func() bool {
		cctx, ccancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer ccancel()
		resp, err := client.Check(cctx, &healthpb.HealthCheckRequest{})
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("grpc service did not stop")
	}
	assert.Equal(t, "grpc-health", svc.String())
}
