package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/industrial-sim/protocol-sim-engine/internal/clock"
	"github.com/industrial-sim/protocol-sim-engine/internal/config"
)

func testConfig() *config.FacilityFile {
	return &config.FacilityFile{
		Facility:   config.FacilityConfig{Name: "Test Plant"},
		Simulation: config.SimulationConfig{TimeAcceleration: 1, FaultInjectionRate: 0},
		Network: config.NetworkConfig{
			PortRanges: map[string]config.PortRange{
				"modbus": {Start: 16020, End: 16030},
			},
		},
		IndustrialProtocols: config.IndustrialProtocolsConfig{
			ModbusTCP: &config.ModbusConfig{
				Enabled: true,
				Devices: map[string]config.DeviceConfig{
					"temperature_sensors": {
						Count:          1,
						DeviceTemplate: "iot_temperature_sensor",
						UpdateInterval: 1,
						PortStart:      16020,
					},
				},
			},
		},
	}
}

func TestInitializeStartStopLifecycle(t *testing.T) {
	o := New(testConfig(), clock.Real{})
	require.NoError(t, o.Initialize())
	require.NoError(t, o.StartAllDevices())
	defer o.StopAllDevices()

	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 1, o.DeviceCount())
	assert.Contains(t, o.ActiveProtocols(), "modbus_tcp")

	devices := o.AllDevices()
	require.Len(t, devices, 1)
	assert.Equal(t, "modbus_tcp", devices[0].Protocol)
}

func TestHealthStatusBucketsAsHealthy(t *testing.T) {
	o := New(testConfig(), clock.Real{})
	require.NoError(t, o.Initialize())
	require.NoError(t, o.StartAllDevices())
	defer o.StopAllDevices()

	health := o.GetHealthStatus()
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 1, health.Summary.TotalDevices)
	assert.Equal(t, 1, health.Summary.HealthyDevices)
}

func TestDeviceStatusAndDataLookup(t *testing.T) {
	o := New(testConfig(), clock.Real{})
	require.NoError(t, o.Initialize())
	require.NoError(t, o.StartAllDevices())
	defer o.StopAllDevices()

	ids := o.DevicesByProtocol("modbus_tcp")
	require.Len(t, ids, 1)
	deviceID := ids[0].DeviceID

	info, ok := o.DeviceStatus(deviceID)
	require.True(t, ok)
	assert.True(t, info.Running)

	data, ok := o.DeviceData(deviceID)
	require.True(t, ok)
	assert.Contains(t, data, "holding")
}

func TestRestartUnknownDeviceFails(t *testing.T) {
	o := New(testConfig(), clock.Real{})
	require.NoError(t, o.Initialize())
	require.NoError(t, o.StartAllDevices())
	defer o.StopAllDevices()

	err := o.RestartDevice("does_not_exist")
	assert.Error(t, err)
}

func TestAllocationReportReflectsRunningDevices(t *testing.T) {
	o := New(testConfig(), clock.Real{})
	require.NoError(t, o.Initialize())
	require.NoError(t, o.StartAllDevices())
	defer o.StopAllDevices()

	report := o.AllocationReport()
	assert.Equal(t, 1, report.DeviceCount)
	assert.Equal(t, 1, report.ByProtocol["modbus_tcp"])
	assert.Equal(t, "Test Plant", report.Facility.Name)
}
