package portmanager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	m := New()
	m.InitPools(map[string][2]int{
		"modbus": {5020, 5024},
		"opcua":  {4840, 4842},
	})
	return m
}

func TestAllocateDisjointBlocks(t *testing.T) {
	m := newTestManager()

	portsA, err := m.Allocate("modbus", "device_a", 2, 0)
	require.NoError(t, err)
	portsB, err := m.Allocate("modbus", "device_b", 2, 0)
	require.NoError(t, err)

	for _, p := range portsA {
		assert.NotContains(t, portsB, p)
	}
}

func TestAllocateIsIdempotentPerDevice(t *testing.T) {
	m := newTestManager()

	first, err := m.Allocate("modbus", "device_a", 2, 0)
	require.NoError(t, err)
	second, err := m.Allocate("modbus", "device_a", 2, 0)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAllocateFailsWhenPoolExhausted(t *testing.T) {
	m := newTestManager()

	_, err := m.Allocate("modbus", "device_a", 5, 0)
	require.NoError(t, err)

	_, err = m.Allocate("modbus", "device_b", 1, 0)
	assert.Error(t, err)
}

func TestAllocatePreferredStart(t *testing.T) {
	m := newTestManager()

	ports, err := m.Allocate("modbus", "device_a", 2, 5022)
	require.NoError(t, err)
	assert.Equal(t, []int{5022, 5023}, ports)
}

func TestDeallocateFreesPortsForReuse(t *testing.T) {
	m := newTestManager()

	ports, err := m.Allocate("opcua", "device_a", 3, 0)
	require.NoError(t, err)
	require.Len(t, ports, 3)

	ok := m.Deallocate("device_a")
	assert.True(t, ok)

	again, err := m.Allocate("opcua", "device_b", 3, 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, ports, again)
}

func TestValidatePlanDoesNotMutateLiveState(t *testing.T) {
	m := newTestManager()

	plan := []AllocationRequest{
		{DeviceID: "device_a", Protocol: "modbus", Count: 3},
		{DeviceID: "device_b", Protocol: "modbus", Count: 2},
	}
	assert.True(t, m.ValidatePlan(plan))

	util := m.PortUtilization()
	assert.Equal(t, 0, util["modbus"].Used)
	assert.Equal(t, 5, util["modbus"].Available)
}

func TestValidatePlanRejectsOverCommit(t *testing.T) {
	m := newTestManager()

	plan := []AllocationRequest{
		{DeviceID: "device_a", Protocol: "modbus", Count: 4},
		{DeviceID: "device_b", Protocol: "modbus", Count: 4},
	}
	assert.False(t, m.ValidatePlan(plan))
}

func TestPortUtilizationReflectsAllocations(t *testing.T) {
	m := newTestManager()

	_, err := m.Allocate("modbus", "device_a", 2, 0)
	require.NoError(t, err)

	util := m.PortUtilization()
	assert.Equal(t, 5, util["modbus"].Total)
	assert.Equal(t, 2, util["modbus"].Used)
	assert.Equal(t, 3, util["modbus"].Available)
	assert.InDelta(t, 40.0, util["modbus"].PercentUse, 0.01)
}

func TestGenerateAllocationReport(t *testing.T) {
	m := newTestManager()

	_, err := m.Allocate("modbus", "device_a", 2, 0)
	require.NoError(t, err)

	report := m.GenerateAllocationReport()
	assert.Equal(t, 1, report.TotalDevices)
	assert.Equal(t, 2, report.Devices["device_a"].Count)
	assert.Equal(t, 2, report.Protocols["modbus"].AllocatedPorts)
}
