package mqttsim

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/industrial-sim/protocol-sim-engine/internal/clock"
	"github.com/industrial-sim/protocol-sim-engine/internal/config"
	"github.com/industrial-sim/protocol-sim-engine/internal/generator"
	"github.com/industrial-sim/protocol-sim-engine/internal/portmanager"
	"github.com/industrial-sim/protocol-sim-engine/internal/simerr"
)

const (
	connectTimeout = 10 * time.Second
	publishTick    = 100 * time.Millisecond
)

// Manager owns every simulated MQTT device plus the single shared gateway
// client publishing on their behalf, mirroring MQTTDeviceManager.
type Manager struct {
	cfg   config.MQTTConfig
	ports *portmanager.Manager
	clk   clock.Clock

	mu      sync.RWMutex
	devices map[string]*Device
	plan    []portmanager.AllocationRequest

	client    paho.Client
	connected atomic.Bool
	running   atomic.Bool
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// New builds an uninitialized Manager.
func New(cfg config.MQTTConfig, ports *portmanager.Manager, clk clock.Clock) *Manager {
	return &Manager{cfg: cfg, ports: ports, clk: clk, devices: make(map[string]*Device)}
}

// Initialize builds the allocation plan (zero ports per device — the MQTT
// gateway shares one broker connection) and creates every configured
// device, mirroring MQTTDeviceManager.initialize.
func (m *Manager) Initialize() error {
	log.Info().Msg("initializing mqtt device manager")
	m.buildAllocationPlan()
	m.createDevices()
	log.Info().Int("device_count", len(m.devices)).
		Str("broker", fmt.Sprintf("%s:%d", m.cfg.BrokerHost, m.cfg.BrokerPort)).
		Msg("mqtt device manager initialized")
	return nil
}

// AllocationPlan returns this manager's port requirements (empty counts:
// MQTT devices share the gateway's broker connection, not a dedicated
// port each).
func (m *Manager) AllocationPlan() []portmanager.AllocationRequest {
	return m.plan
}

func (m *Manager) buildAllocationPlan() {
	m.plan = nil
	for deviceType, deviceCfg := range m.cfg.Devices {
		for i := 0; i < deviceCfg.Count; i++ {
			deviceID := fmt.Sprintf("mqtt_%s_%03d", deviceType, i)
			m.plan = append(m.plan, portmanager.AllocationRequest{DeviceID: deviceID, Protocol: "mqtt", Count: 0})
		}
	}
}

func (m *Manager) createDevices() {
	for deviceType, deviceCfg := range m.cfg.Devices {
		log.Info().Int("count", deviceCfg.Count).Str("device_type", deviceType).Msg("creating mqtt devices")
		for i := 0; i < deviceCfg.Count; i++ {
			deviceID := fmt.Sprintf("mqtt_%s_%03d", deviceType, i)

			baseTopic := deviceCfg.BaseTopic
			if baseTopic != "" {
				baseTopic = fmt.Sprintf("%s/%s", baseTopic, deviceID)
			} else {
				baseTopic = fmt.Sprintf("devices/%s/%s", deviceType, deviceID)
			}

			interval := time.Duration(deviceCfg.UpdateInterval * float64(time.Second))
			patternCfg := generator.NewPatternConfig(deviceCfg.DataConfig)
			dt := generator.TemplateToType(deviceCfg.DeviceTemplate)

			device := NewDevice(deviceID, deviceCfg.DeviceTemplate, dt, baseTopic, deviceCfg.QoS, deviceCfg.Retain, interval, patternCfg, m.clk)

			m.mu.Lock()
			m.devices[deviceID] = device
			m.mu.Unlock()
		}
	}
}

// StartAll connects the shared gateway client and begins publishing for
// every device, mirroring start_all_devices.
func (m *Manager) StartAll() error {
	if m.running.Load() {
		log.Warn().Msg("mqtt gateway already running, skipping start")
		return nil
	}

	if !m.cfg.UseEmbeddedBroker && !CheckBrokerReachable(m.cfg.BrokerHost, m.cfg.BrokerPort, 2*time.Second) {
		log.Error().Str("broker", fmt.Sprintf("%s:%d", m.cfg.BrokerHost, m.cfg.BrokerPort)).
			Msg("mqtt broker unreachable, failing fast before connect")
		return simerr.ErrBrokerUnreachable
	}

	gatewayID := fmt.Sprintf("mqtt_gateway_%d", m.clk.Now().UnixMilli())
	log.Info().Str("client_id", gatewayID).Msg("creating mqtt gateway client")

	connectEvent := make(chan struct{})
	var once sync.Once

	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", m.cfg.BrokerHost, m.cfg.BrokerPort))
	opts.SetClientID(gatewayID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetOnConnectHandler(func(paho.Client) {
		m.connected.Store(true)
		once.Do(func() { close(connectEvent) })
		log.Info().Str("broker", fmt.Sprintf("%s:%d", m.cfg.BrokerHost, m.cfg.BrokerPort)).Msg("mqtt gateway connected to broker")
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		m.connected.Store(false)
		if m.running.Load() {
			log.Warn().Err(err).Msg("mqtt gateway disconnected")
		}
	})

	m.client = paho.NewClient(opts)
	log.Info().Msg("connecting to mqtt broker")
	token := m.client.Connect()

	select {
	case <-connectEvent:
	case <-time.After(connectTimeout):
		log.Error().Msg("mqtt gateway connection timeout")
		return simerr.ErrBrokerUnreachable
	}
	if token.Error() != nil {
		log.Error().Err(token.Error()).Msg("mqtt gateway connection failed")
		return fmt.Errorf("connect mqtt gateway: %w: %w", simerr.ErrBrokerUnreachable, token.Error())
	}

	m.running.Store(true)
	m.stopCh = make(chan struct{})

	m.mu.RLock()
	devices := make([]*Device, 0, len(m.devices))
	for _, d := range m.devices {
		devices = append(devices, d)
	}
	m.mu.RUnlock()

	for _, d := range devices {
		d.Start()
		m.publishStatus(d, "online")
	}

	m.wg.Add(1)
	go m.publishLoop()

	log.Info().Int("device_count", len(devices)).Msg("mqtt gateway and devices started successfully")
	return nil
}

func (m *Manager) publishStatus(d *Device, status string) {
	topics := d.BuildTopics()
	payload, _ := json.Marshal(map[string]any{
		"device_id": d.DeviceID,
		"status":    status,
		"timestamp": m.clk.Now().Unix(),
	})
	m.client.Publish(topics.Status, 1, true, payload)
}

func (m *Manager) publishLoop() {
	defer m.wg.Done()
	lastPublish := make(map[string]time.Time)
	ticker := time.NewTicker(publishTick)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			if !m.connected.Load() {
				continue
			}
			now := m.clk.Now()

			m.mu.RLock()
			devices := make([]*Device, 0, len(m.devices))
			for _, d := range m.devices {
				devices = append(devices, d)
			}
			m.mu.RUnlock()

			for _, d := range devices {
				if !d.Running() {
					continue
				}
				if now.Sub(lastPublish[d.DeviceID]) < d.PublishInterval {
					continue
				}

				msg := d.GeneratePayload()
				topics := d.BuildTopics()
				payload, err := json.Marshal(map[string]any{
					"device_id":   msg.DeviceID,
					"device_type": string(msg.DeviceType),
					"timestamp":   msg.Timestamp.Unix(),
					"data":        msg.Data,
				})
				if err != nil {
					d.RecordError()
					continue
				}

				token := m.client.Publish(topics.Data, d.QoS, d.Retain, payload)
				if token.Wait() && token.Error() != nil {
					d.RecordError()
					log.Warn().Str("device_id", d.DeviceID).Err(token.Error()).Msg("mqtt publish failed")
					continue
				}
				d.RecordPublish(msg)
				lastPublish[d.DeviceID] = now
			}
		}
	}
}

// StopAll publishes an offline status for every device on a best-effort
// basis, then disconnects the gateway client, mirroring stop_all_devices.
func (m *Manager) StopAll() {
	log.Info().Msg("stopping mqtt gateway and devices")
	m.running.Store(false)
	if m.stopCh != nil {
		close(m.stopCh)
	}
	m.wg.Wait()

	if m.connected.Load() && m.client != nil {
		m.mu.RLock()
		for _, d := range m.devices {
			m.publishStatus(d, "offline")
			d.Stop()
		}
		m.mu.RUnlock()
	}

	if m.client != nil {
		m.client.Disconnect(250)
	}
	m.connected.Store(false)
	log.Info().Msg("mqtt gateway and devices stopped")
}

// Device returns the device for id, or nil if unknown.
func (m *Manager) Device(id string) *Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.devices[id]
}

// RestartDevice stops then restarts a single device's publishing,
// mirroring restart_device.
func (m *Manager) RestartDevice(id string) error {
	m.mu.RLock()
	device, ok := m.devices[id]
	m.mu.RUnlock()
	if !ok {
		return simerr.ErrDeviceNotFound
	}
	device.Stop()
	device.Start()
	return nil
}

// Devices returns every managed device id.
func (m *Manager) Devices() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.devices))
	for id := range m.devices {
		ids = append(ids, id)
	}
	return ids
}

// BrokerInfo mirrors MQTTDeviceManager.get_broker_info.
type BrokerInfo struct {
	BrokerHost string
	BrokerPort int
	Embedded   bool
	Connected  bool
}

// GetBrokerInfo returns the gateway's broker connection info.
func (m *Manager) GetBrokerInfo() BrokerInfo {
	return BrokerInfo{
		BrokerHost: m.cfg.BrokerHost,
		BrokerPort: m.cfg.BrokerPort,
		Embedded:   m.cfg.UseEmbeddedBroker,
		Connected:  m.connected.Load(),
	}
}

// GetAllTopics returns every device's topic set, mirroring
// MQTTDeviceManager.get_all_topics.
func (m *Manager) GetAllTopics() map[string]Topics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Topics, len(m.devices))
	for id, d := range m.devices {
		out[id] = d.BuildTopics()
	}
	return out
}
