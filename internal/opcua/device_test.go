package opcua

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
	d := NewDevice("opcua_cnc_machines_000", "opcua_cnc_machine", generator.CNCMachine, 14840, 0, 50*time.Millisecond, cfg, clk)

	require.NoError(t, d.Start())
	defer d.Stop()

	status := d.GetStatus()
	assert.True(t, status.Running)
	assert.Equal(t, 14840, status.Port)
	assert.Contains(t, status.Endpoint, "14840")
}

func TestRobotNodesSizedByJointCount(t *testing.T) {
	clk := clock.NewFake(time.Now())
	cfg := generator.NewPatternConfig(map[string]any{
		"robot": map[string]any{"joint_count": 4},
	})
	d := NewDevice("opcua_industrial_robots_000", "opcua_industrial_robot", generator.IndustrialRobot, 14841, cfg.Robot.JointCount, 50*time.Millisecond, cfg, clk)

	require.NoError(t, d.Start())
	defer d.Stop()

	data := d.GetNodeData()
	_, ok := data[NodeID("opcua_industrial_robots_000", "Parameters", "JointAngle_4")]
	assert.True(t, ok)
	_, ok = data[NodeID("opcua_industrial_robots_000", "Parameters", "JointAngle_5")]
	assert.False(t, ok)
}
