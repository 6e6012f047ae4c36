package health

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/lanbridge/internal/clock"
	"grimm.is/lanbridge/internal/services"
)

func fixed(status Status) CheckFunc {
	return func(context.Context) Check {
		return Check{Status: status, Message: string(status)}
	}
}

func TestChecker_OverallStatus(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]Status
		want   Status
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", map[string]Status{"a": StatusHealthy, "b": StatusHealthy}, StatusHealthy},
		{"degraded wins over healthy", map[string]Status{"a": StatusHealthy, "b": StatusDegraded}, StatusDegraded},
		{"unhealthy wins", map[string]Status{"a": StatusDegraded, "b": StatusUnhealthy, "c": StatusHealthy}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewChecker(0)
			for name, status := range tt.checks {
				checker.Register(name, fixed(status))
			}
			report := checker.Check(context.Background())
			assert.Equal(t, tt.want, report.Status)
			assert.Len(t, report.Checks, len(tt.checks))
			for name := range tt.checks {
				assert.Equal(t, name, report.Checks[name].Name)
			}
		})
	}
}

func TestChecker_CachesForTTL(t *testing.T) {
	mock := clock.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	checker := NewChecker(time.Second)
	checker.clock = mock

	var calls atomic.Int32
	checker.Register("counted", func(context.Context) Check {
		calls.Add(1)
		return Check{Status: StatusHealthy}
	})

	checker.Check(context.Background())
	checker.Check(context.Background())
	assert.Equal(t, int32(1), calls.Load())

	mock.Advance(2 * time.Second)
	checker.Check(context.Background())
	assert.Equal(t, int32(2), calls.Load())

	// Registering invalidates the cached report.
	checker.Register("other", fixed(StatusHealthy))
	checker.Check(context.Background())
	assert.Equal(t, int32(3), calls.Load())
}

func TestHandler(t *testing.T) {
	checker := NewChecker(0)
	checker.Register("forwarder", fixed(StatusUnhealthy))

	rec := httptest.NewRecorder()
	checker.Handler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Contains(t, report.Checks, "forwarder")
}

func TestReadinessHandler(t *testing.T) {
	degraded := NewChecker(0)
	degraded.Register("remote", fixed(StatusDegraded))

	rec := httptest.NewRecorder()
	degraded.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "READY", rec.Body.String())

	down := NewChecker(0)
	down.Register("forwarder", fixed(StatusUnhealthy))

	rec = httptest.NewRecorder()
	down.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "NOT READY", rec.Body.String())
}

func TestLivenessHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestRunning(t *testing.T) {
	var up atomic.Bool
	check := Running(up.Load, func() string { return "state" }, StatusUnhealthy)

	got := check(context.Background())
	assert.Equal(t, StatusUnhealthy, got.Status)
	assert.Equal(t, "state", got.Message)

	up.Store(true)
	assert.Equal(t, StatusHealthy, check(context.Background()).Status)
}

func TestTCPReachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	addr := ln.Addr().String()
	assert.Equal(t, StatusHealthy, TCPReachable(addr, time.Second)(context.Background()).Status)

	require.NoError(t, ln.Close())
	got := TCPReachable(addr, time.Second)(context.Background())
	assert.Equal(t, StatusDegraded, got.Status)
	assert.Contains(t, got.Message, "unreachable")
}

type fakeService struct {
	status services.ServiceStatus
}

func (f *fakeService) Name() string                    { return f.status.Name }
func (f *fakeService) Start(context.Context) error     { return nil }
func (f *fakeService) Stop(context.Context) error      { return nil }
func (f *fakeService) Status() services.ServiceStatus { return f.status }

func TestServiceCheck(t *testing.T) {
	tests := []struct {
		name    string
		status  services.ServiceStatus
		want    Status
		message string
	}{
		{"running", services.ServiceStatus{Name: "lan-beacon", Running: true}, StatusHealthy, "lan-beacon running"},
		{"last send failed", services.ServiceStatus{Name: "lan-beacon", Running: true, Error: "network is unreachable"}, StatusDegraded, "network is unreachable"},
		{"stopped", services.ServiceStatus{Name: "lan-beacon"}, StatusUnhealthy, "lan-beacon not running"},
		{"stopped with error", services.ServiceStatus{Name: "lan-beacon", Error: "boom"}, StatusUnhealthy, "lan-beacon not running: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ServiceCheck(&fakeService{status: tt.status}, StatusUnhealthy)(context.Background())
			assert.Equal(t, tt.want, got.Status)
			assert.Equal(t, tt.message, got.Message)
		})
	}
}
