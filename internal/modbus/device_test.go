package modbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/industrial-sim/protocol-sim-engine/internal/clock"
	"github.com/industrial-sim/protocol-sim-engine/internal/generator"
)

func TestDeviceStartStopLifecycle(t *testing.T) {
	clk := clock.NewFake(time.Now())
	cfg := generator.NewPatternConfig(nil)
	d := NewDevice("modbus_temperature_sensors_000", "industrial_temperature_sensor", generator.TemperatureSensor, 15020, 50*time.Millisecond, cfg, clk)

	require.NoError(t, d.Start())
	defer d.Stop()

	status := d.GetStatus()
	assert.True(t, status.Running)
	assert.Equal(t, 15020, status.Port)

	regs := d.GetRegisterData()
	require.NotNil(t, regs)
}

func TestDeviceRegistersReflectTemperature(t *testing.T) {
	clk := clock.NewFake(time.Now())
	cfg := generator.NewPatternConfig(nil)
	d := NewDevice("modbus_temperature_sensors_001", "industrial_temperature_sensor", generator.TemperatureSensor, 15021, 50*time.Millisecond, cfg, clk)

	require.NoError(t, d.Start())
	defer d.Stop()

	regs := d.GetRegisterData()
	hr, ok := regs["holding"].([]uint16)
	require.True(t, ok)
	assert.NotZero(t, hr[0])
}
