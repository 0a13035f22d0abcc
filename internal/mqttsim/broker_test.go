package mqttsim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedBrokerStartStopAndReachability(t *testing.T) {
	broker := NewEmbeddedBroker("127.0.0.1", 18830)
	require.NoError(t, broker.Start())
	defer broker.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.True(t, CheckBrokerReachable("127.0.0.1", 18830, time.Second))
}

func TestCheckBrokerReachableFailsWhenNothingListening(t *testing.T) {
	assert.False(t, CheckBrokerReachable("127.0.0.1", 18999, 200*time.Millisecond))
}
