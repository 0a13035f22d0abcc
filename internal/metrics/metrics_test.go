package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsAppearOnHandler(t *testing.T) {
	r := New()
	r.SetDevicesRunning("modbus_tcp", 3)
	r.IncDeviceError("modbus_tcp", "modbus_temperature_sensors_000")
	r.IncMessagesPublished("mqtt_generic_sensors_000")
	r.IncTick("opcua", "cnc_machine")
	r.SetPortUtilization("modbus", 42.5)
	r.SetHealthPercentage(97.3)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, "simengine_devices_running")
	assert.Contains(t, body, "simengine_device_errors_total")
	assert.Contains(t, body, "simengine_messages_published_total")
	assert.Contains(t, body, "simengine_generator_ticks_total")
	assert.Contains(t, body, "simengine_port_pool_utilization_percent")
	assert.Contains(t, body, "simengine_health_percentage 97.3")
	assert.True(t, strings.Contains(body, `protocol="modbus_tcp"`))
}
