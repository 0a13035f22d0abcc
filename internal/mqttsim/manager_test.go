package mqttsim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/industrial-sim/protocol-sim-engine/internal/clock"
	"github.com/industrial-sim/protocol-sim-engine/internal/config"
	"github.com/industrial-sim/protocol-sim-engine/internal/portmanager"
	"github.com/industrial-sim/protocol-sim-engine/internal/simerr"
)

func TestStartAllFailsFastWhenBrokerUnreachable(t *testing.T) {
	cfg := config.MQTTConfig{
		BrokerHost: "127.0.0.1",
		BrokerPort: 19999,
		Devices: map[string]config.DeviceConfig{
			"generic_sensors": {Count: 1, DeviceTemplate: "generic_iot_sensor", UpdateInterval: 1},
		},
	}
	m := New(cfg, portmanager.New(), clock.Real{})
	require.NoError(t, m.Initialize())

	err := m.StartAll()
	assert.ErrorIs(t, err, simerr.ErrBrokerUnreachable)
}

func TestStartAllConnectsToEmbeddedBroker(t *testing.T) {
	broker := NewEmbeddedBroker("127.0.0.1", 18831)
	require.NoError(t, broker.Start())
	defer broker.Stop()
	time.Sleep(50 * time.Millisecond)

	cfg := config.MQTTConfig{
		UseEmbeddedBroker: true,
		BrokerHost:        "127.0.0.1",
		BrokerPort:        18831,
		Devices: map[string]config.DeviceConfig{
			"generic_sensors": {Count: 1, DeviceTemplate: "generic_iot_sensor", UpdateInterval: 1},
		},
	}
	m := New(cfg, portmanager.New(), clock.Real{})
	require.NoError(t, m.Initialize())
	require.NoError(t, m.StartAll())
	defer m.StopAll()

	info := m.GetBrokerInfo()
	assert.True(t, info.Connected)
	assert.Len(t, m.Devices(), 1)
}
