package service_registry

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/benmeehan/geo-reporter/internal/api"
	"github.com/benmeehan/geo-reporter/internal/metrics"
	"github.com/benmeehan/geo-reporter/internal/utils"
	"github.com/benmeehan/geo-reporter/pkg/location"
	"github.com/benmeehan/geo-reporter/pkg/reporter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService records lifecycle calls into a shared log.
type fakeService struct {
	name     string
	startErr error
	calls    *[]string
}

func (f *fakeService) Start() error {
	*f.calls = append(*f.calls, "start:"+f.name)
	return f.startErr
}

func (f *fakeService) Stop() error {
	*f.calls = append(*f.calls, "stop:"+f.name)
	return nil
}

func newTestRegistry() *ServiceRegistry {
	registry := prometheus.NewRegistry()
	return NewServiceRegistry(nil, nil, registry, registry, zerolog.Nop())
}

func TestStartServices_RollsBackOnFailure(t *testing.T) {
	var calls []string
	sr := newTestRegistry()
	sr.RegisterService("a", &fakeService{name: "a", calls: &calls})
	sr.RegisterService("b", &fakeService{name: "b", calls: &calls})
	sr.RegisterService("c", &fakeService{name: "c", calls: &calls, startErr: errors.New("boom")})

	err := sr.StartServices()

	assert.EqualError(t, err, "failed to start c: boom")
	assert.Equal(t, []string{"start:a", "start:b", "start:c", "stop:b", "stop:a"}, calls)
}

func TestStopServices_ReverseOrder(t *testing.T) {
	var calls []string
	sr := newTestRegistry()
	sr.RegisterService("a", &fakeService{name: "a", calls: &calls})
	sr.RegisterService("a", &fakeService{name: "duplicate", calls: &calls})
	sr.RegisterService("b", &fakeService{name: "b", calls: &calls})

	require.NoError(t, sr.StartServices())
	require.NoError(t, sr.StopServices())

	assert.Equal(t, []string{"start:a", "start:b", "stop:b", "stop:a"}, calls)
}

func staticConfig(endpoint string) *utils.Config {
	var config utils.Config
	config.Reporter.Endpoint = endpoint
	config.Reporter.Ext = "integration"
	config.Reporter.Interval = time.Hour
	config.Reporter.ReportOnStart = true
	config.Reporter.HTTPTimeout = 5 * time.Second
	config.Location.Source = utils.SourceStatic
	config.Location.Enabled = true
	config.Location.Authorization = string(location.StatusNotDetermined)
	config.Location.GrantPrompts = true
	config.Location.RequestAuthorization = "when_in_use"
	config.Location.RequestTimeout = time.Second
	config.Location.Workers = 1
	config.Location.StaticLatitude = 59.33
	config.Location.StaticLongitude = 18.06
	config.Server.Enabled = true
	config.Server.Listen = "127.0.0.1:0"
	return &config
}

func TestRegisterServices_ReportsOnStart(t *testing.T) {
	var mu sync.Mutex
	var received []reporter.Payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload reporter.Payload
		_ = json.NewDecoder(r.Body).Decode(&payload)
		mu.Lock()
		received = append(received, payload)
		mu.Unlock()
		_, _ = w.Write([]byte(`{"success": true}`))
	}))
	defer server.Close()

	registry := prometheus.NewRegistry()
	sr := NewServiceRegistry(nil, nil, registry, registry, zerolog.Nop())
	require.NoError(t, sr.RegisterServices(staticConfig(server.URL)))
	require.NotNil(t, sr.ReportService)
	assert.Equal(t, []string{"location_report", "control_server"}, sr.serviceKeys)

	require.NoError(t, sr.StartServices())

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, 59.33, received[0].Latitude)
	assert.Equal(t, 18.06, received[0].Longitude)
	assert.Equal(t, "integration", received[0].Ext)
	mu.Unlock()

	families, err := registry.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "geo_reporter_pending_location_requests", families[0].GetName())

	control, ok := sr.services["control_server"].(*api.Server)
	require.True(t, ok)
	resp, err := http.Get("http://" + control.Addr().String() + "/v1/status")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var status map[string]any
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, server.URL, status["endpoint"])
	assert.Equal(t, "integration", status["ext"])
	assert.Equal(t, true, status["scheduled"])
	assert.Equal(t, "1h0m0s", status["interval"])
	assert.Equal(t, true, status["location_available"])
	assert.Contains(t, status, "pending_requests")

	require.NoError(t, sr.StopServices())
	assert.False(t, sr.ReportService.IsScheduled())
}

func TestRegisterServices_DisabledLocationReportsZero(t *testing.T) {
	bodies := make(chan reporter.Payload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload reporter.Payload
		_ = json.NewDecoder(r.Body).Decode(&payload)
		bodies <- payload
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	config := staticConfig(server.URL)
	config.Location.Enabled = false
	config.Server.Enabled = false

	sr := newTestRegistry()
	require.NoError(t, sr.RegisterServices(config))
	assert.Equal(t, []string{"location_report"}, sr.serviceKeys)
	require.NoError(t, sr.StartServices())
	defer sr.StopServices()

	select {
	case payload := <-bodies:
		assert.Equal(t, 0.0, payload.Latitude)
		assert.Equal(t, 0.0, payload.Longitude)
	case <-time.After(2 * time.Second):
		t.Fatal("no report received")
	}
}

func TestRegisterServices_HostMetrics(t *testing.T) {
	config := staticConfig("https://example.test")
	config.Reporter.ReportOnStart = false
	config.Server.HostMetrics = true

	registry := prometheus.NewRegistry()
	sr := NewServiceRegistry(nil, nil, registry, registry, zerolog.Nop())
	require.NoError(t, sr.RegisterServices(config))

	// Registering the same collector twice must fail.
	assert.Error(t, registry.Register(metricsHostCollector()))
}

func TestRegisterServices_BadAuthorization(t *testing.T) {
	config := staticConfig("https://example.test")
	config.Location.Authorization = "sometimes"

	sr := newTestRegistry()
	assert.Error(t, sr.RegisterServices(config))
}

func TestNewProvider(t *testing.T) {
	config := staticConfig("")

	provider, err := NewProvider(config, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &location.StaticProvider{}, provider)

	config.Location.Source = utils.SourceSensor
	config.Location.GPSDevicePort = "/dev/ttyUSB0"
	provider, err = NewProvider(config, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &location.DeviceSensorProvider{}, provider)

	config.Location.Source = "unknown"
	_, err = NewProvider(config, zerolog.Nop())
	assert.EqualError(t, err, `unknown location source "unknown"`)
}

func metricsHostCollector() prometheus.Collector {
	return metrics.NewHostCollector("", zerolog.Nop())
}
