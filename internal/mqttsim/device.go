// Package mqttsim simulates MQTT IoT devices published through a single
// shared gateway client, mirroring
// original_source/src/protocols/industrial/mqtt/mqtt_simulator.py's
// gateway pattern ("more reliable than per-device connections").
package mqttsim

import (
	"fmt"
	"sync"
	"time"

	"github.com/industrial-sim/protocol-sim-engine/internal/clock"
	"github.com/industrial-sim/protocol-sim-engine/internal/generator"
)

const maxMessageHistory = 100

// Topics is the set of topics one device publishes and listens on,
// mirroring MQTTDevice._build_topics.
type Topics struct {
	Data      string
	Status    string
	Telemetry string
	Alerts    string
}

// Message is one published data payload, retained in a device's rolling
// history for inspection.
type Message struct {
	DeviceID   string
	DeviceType generator.DeviceType
	Timestamp  time.Time
	Data       map[string]any
}

// Status mirrors MQTTDevice.get_status's shape.
type Status struct {
	DeviceID        string
	DeviceType      generator.DeviceType
	Template        string
	Broker          string
	BaseTopic       string
	QoS             byte
	Running         bool
	UptimeSeconds   float64
	PublishCount    int
	ErrorCount      int
	LastPublish     time.Time
	PublishInterval time.Duration
}

// Device is one simulated MQTT publisher. The shared gateway Manager
// performs the actual network I/O; Device only tracks configuration,
// generated data, and publish bookkeeping.
type Device struct {
	DeviceID        string
	DeviceType      generator.DeviceType
	Template        string
	BaseTopic       string
	QoS             byte
	Retain          bool
	PublishInterval time.Duration

	gen *generator.Generator
	clk clock.Clock

	mu           sync.Mutex
	running      bool
	publishCount int
	errorCount   int
	lastPublish  time.Time
	startedAt    time.Time
	history      []Message
}

// NewDevice builds an MQTT device publishing under baseTopic.
func NewDevice(deviceID, template string, deviceType generator.DeviceType, baseTopic string, qos byte, retain bool, publishInterval time.Duration, cfg generator.PatternConfig, clk clock.Clock) *Device {
	return &Device{
		DeviceID:        deviceID,
		DeviceType:      deviceType,
		Template:        template,
		BaseTopic:       baseTopic,
		QoS:             qos,
		Retain:          retain,
		PublishInterval: publishInterval,
		gen:             generator.New(deviceID, cfg, clk),
		clk:             clk,
	}
}

// BuildTopics returns this device's topic set, mirroring _build_topics.
func (d *Device) BuildTopics() Topics {
	return Topics{
		Data:      fmt.Sprintf("%s/data", d.BaseTopic),
		Status:    fmt.Sprintf("%s/status", d.BaseTopic),
		Telemetry: fmt.Sprintf("%s/telemetry", d.BaseTopic),
		Alerts:    fmt.Sprintf("%s/alerts", d.BaseTopic),
	}
}

// GeneratePayload produces the next data message to publish, mirroring
// MQTTDevice.generate_payload.
func (d *Device) GeneratePayload() Message {
	snap := d.gen.Produce(d.DeviceType)
	return Message{DeviceID: d.DeviceID, DeviceType: d.DeviceType, Timestamp: snap.Timestamp, Data: snap.Fields}
}

// Start marks the device as actively publishing, mirroring
// MQTTDevice.start.
func (d *Device) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = true
	d.startedAt = d.clk.Now()
	d.errorCount = 0
}

// Stop marks the device as inactive, mirroring MQTTDevice.stop.
func (d *Device) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = false
}

// Running reports whether the device is currently publishing.
func (d *Device) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// RecordPublish appends msg to the rolling history and bumps counters,
// mirroring MQTTDevice.record_publish.
func (d *Device) RecordPublish(msg Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastPublish = msg.Timestamp
	d.publishCount++
	d.history = append(d.history, msg)
	if len(d.history) > maxMessageHistory {
		d.history = d.history[len(d.history)-maxMessageHistory:]
	}
}

// RecordError increments the device's error counter, mirroring
// MQTTDevice.record_error.
func (d *Device) RecordError() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errorCount++
}

// GetStatus returns the device's current lifecycle status.
func (d *Device) GetStatus(broker string) Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	uptime := 0.0
	if d.running {
		uptime = d.clk.Now().Sub(d.startedAt).Seconds()
	}
	return Status{
		DeviceID:        d.DeviceID,
		DeviceType:      d.DeviceType,
		Template:        d.Template,
		Broker:          broker,
		BaseTopic:       d.BaseTopic,
		QoS:             d.QoS,
		Running:         d.running,
		UptimeSeconds:   round2(uptime),
		PublishCount:    d.publishCount,
		ErrorCount:      d.errorCount,
		LastPublish:     d.lastPublish,
		PublishInterval: d.PublishInterval,
	}
}

// GetLastMessage returns the most recently published message, or the zero
// Message and false if none has been published yet.
func (d *Device) GetLastMessage() (Message, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.history) == 0 {
		return Message{}, false
	}
	return d.history[len(d.history)-1], true
}

// GetMessageHistory returns up to limit of the most recent messages,
// mirroring MQTTDevice.get_message_history.
func (d *Device) GetMessageHistory(limit int) []Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	if limit <= 0 || limit > len(d.history) {
		limit = len(d.history)
	}
	out := make([]Message, limit)
	copy(out, d.history[len(d.history)-limit:])
	return out
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
