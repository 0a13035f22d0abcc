package httpapi

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/industrial-sim/protocol-sim-engine/internal/clock"
	"github.com/industrial-sim/protocol-sim-engine/internal/config"
	"github.com/industrial-sim/protocol-sim-engine/internal/orchestrator"
)

func testOrchestrator(t *testing.T) *orchestrator.Orchestrator {
	t.Helper()
	cfg := &config.FacilityFile{
		Facility: config.FacilityConfig{Name: "Test Plant"},
		Network: config.NetworkConfig{
			PortRanges: map[string]config.PortRange{"modbus": {Start: 17020, End: 17030}},
		},
		IndustrialProtocols: config.IndustrialProtocolsConfig{
			ModbusTCP: &config.ModbusConfig{
				Enabled: true,
				Devices: map[string]config.DeviceConfig{
					"temperature_sensors": {Count: 1, DeviceTemplate: "iot_temperature_sensor", UpdateInterval: 1, PortStart: 17020},
				},
			},
		},
	}
	o := orchestrator.New(cfg, clock.Real{})
	require.NoError(t, o.Initialize())
	require.NoError(t, o.StartAllDevices())
	t.Cleanup(o.StopAllDevices)
	time.Sleep(20 * time.Millisecond)
	return o
}

func TestHealthzAndHealthEndpoints(t *testing.T) {
	o := testOrchestrator(t)
	s := New(o, nil)

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	req = httptest.NewRequest("GET", "/api/v1/health", nil)
	rec = httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestDeviceEndpointsRoundTrip(t *testing.T) {
	o := testOrchestrator(t)
	s := New(o, nil)

	req := httptest.NewRequest("GET", "/api/v1/devices", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "modbus_tcp")

	devices := o.AllDevices()
	require.Len(t, devices, 1)
	id := devices[0].DeviceID

	req = httptest.NewRequest("GET", "/api/v1/devices/"+id, nil)
	rec = httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)

	req = httptest.NewRequest("GET", "/api/v1/devices/nope", nil)
	rec = httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	assert.Equal(t, 404, rec.Code)
}

func TestAllocationAndPerformanceEndpoints(t *testing.T) {
	o := testOrchestrator(t)
	s := New(o, nil)

	req := httptest.NewRequest("GET", "/api/v1/allocation", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "Test Plant")

	req = httptest.NewRequest("GET", "/api/v1/performance", nil)
	rec = httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)
}
