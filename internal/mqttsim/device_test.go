package mqttsim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/industrial-sim/protocol-sim-engine/internal/clock"
	"github.com/industrial-sim/protocol-sim-engine/internal/generator"
)

func TestBuildTopics(t *testing.T) {
	clk := clock.NewFake(time.Now())
	d := NewDevice("mqtt_temperature_sensors_000", "iot_temperature_sensor", generator.TemplateToType("iot_temperature_sensor"),
		"devices/temperature_sensors/mqtt_temperature_sensors_000", 1, false, time.Second, generator.NewPatternConfig(nil), clk)

	topics := d.BuildTopics()
	assert.Equal(t, "devices/temperature_sensors/mqtt_temperature_sensors_000/data", topics.Data)
	assert.Equal(t, "devices/temperature_sensors/mqtt_temperature_sensors_000/status", topics.Status)
}

func TestMessageHistoryBounded(t *testing.T) {
	clk := clock.NewFake(time.Now())
	d := NewDevice("mqtt_generic_sensors_000", "generic_iot_sensor", generator.GenericSensor, "devices/g/0", 0, false, time.Second, generator.NewPatternConfig(nil), clk)

	for i := 0; i < maxMessageHistory+10; i++ {
		d.RecordPublish(d.GeneratePayload())
	}

	hist := d.GetMessageHistory(0)
	assert.Len(t, hist, maxMessageHistory)

	last, ok := d.GetLastMessage()
	require.True(t, ok)
	assert.Equal(t, "mqtt_generic_sensors_000", last.DeviceID)
}

func TestGetMessageHistoryRespectsLimit(t *testing.T) {
	clk := clock.NewFake(time.Now())
	d := NewDevice("mqtt_generic_sensors_001", "generic_iot_sensor", generator.GenericSensor, "devices/g/1", 0, false, time.Second, generator.NewPatternConfig(nil), clk)

	for i := 0; i < 5; i++ {
		d.RecordPublish(d.GeneratePayload())
	}

	hist := d.GetMessageHistory(2)
	assert.Len(t, hist, 2)
}
