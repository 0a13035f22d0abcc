package generator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/industrial-sim/protocol-sim-engine/internal/clock"
)

func TestTemperatureStaysInRange(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	g := New("modbus_temperature_sensors_001", NewPatternConfig(nil), clk)

	for i := 0; i < 500; i++ {
		clk.Advance(time.Second)
		snap := g.Produce(TemperatureSensor)
		temp := snap.Float("temperature")
		assert.GreaterOrEqual(t, temp, 18.0)
		assert.LessOrEqual(t, temp, 45.0)
		humidity := snap.Float("humidity")
		assert.GreaterOrEqual(t, humidity, 30.0)
		assert.LessOrEqual(t, humidity, 80.0)
	}
}

func TestDeterministicByDeviceID(t *testing.T) {
	clk1 := clock.NewFake(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	clk2 := clock.NewFake(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	g1 := New("modbus_pressure_transmitters_003", NewPatternConfig(nil), clk1)
	g2 := New("modbus_pressure_transmitters_003", NewPatternConfig(nil), clk2)

	for i := 0; i < 20; i++ {
		clk1.Advance(time.Second)
		clk2.Advance(time.Second)
		s1 := g1.Produce(PressureTransmitter)
		s2 := g2.Produce(PressureTransmitter)
		assert.Equal(t, s1.Float("pressure"), s2.Float("pressure"))
		assert.Equal(t, s1.Float("flow_rate"), s2.Float("flow_rate"))
	}
}

func TestDifferentDeviceIDsDiverge(t *testing.T) {
	clkA := clock.NewFake(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	clkB := clock.NewFake(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	ga := New("modbus_motor_drives_001", NewPatternConfig(nil), clkA)
	gb := New("modbus_motor_drives_002", NewPatternConfig(nil), clkB)

	diverged := false
	for i := 0; i < 20; i++ {
		clkA.Advance(time.Second)
		clkB.Advance(time.Second)
		sa := ga.Produce(MotorDrive)
		sb := gb.Produce(MotorDrive)
		if sa.Float("motor_speed") != sb.Float("motor_speed") {
			diverged = true
		}
	}
	assert.True(t, diverged, "distinct device ids should produce distinct sequences")
}

func TestCNCReachesRunningState(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	g := New("opcua_cnc_machines_001", NewPatternConfig(nil), clk)

	sawRunning := false
	for i := 0; i < 200; i++ {
		clk.Advance(time.Second)
		snap := g.Produce(CNCMachine)
		if snap.String("mode") == "RUNNING" {
			sawRunning = true
		}
		wear := snap.Float("tool_wear_pct")
		assert.GreaterOrEqual(t, wear, 0.0)
		assert.LessOrEqual(t, wear, 100.0)
	}
	assert.True(t, sawRunning)
}

func TestPLCConvergesTowardSetpoint(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cfg := NewPatternConfig(nil)
	g := New("opcua_plc_controllers_001", cfg, clk)

	var lastErr float64
	for i := 0; i < 100; i++ {
		clk.Advance(time.Second)
		snap := g.Produce(PLCController)
		lastErr = snap.Float("setpoint") - snap.Float("process_value")
	}
	assert.Less(t, abs(lastErr), 30.0)
}

func TestRobotCycleCountMonotonic(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	g := New("opcua_industrial_robots_001", NewPatternConfig(nil), clk)

	prev := 0
	for i := 0; i < 300; i++ {
		clk.Advance(time.Second)
		snap := g.Produce(IndustrialRobot)
		cur := snap.Int("cycle_count")
		require.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
}

func TestTemplateToType(t *testing.T) {
	assert.Equal(t, TemperatureSensor, TemplateToType("industrial_temperature_sensor"))
	assert.Equal(t, GenericSensor, TemplateToType("unknown_template_xyz"))
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
