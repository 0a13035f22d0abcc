package modbus

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/industrial-sim/protocol-sim-engine/internal/clock"
	"github.com/industrial-sim/protocol-sim-engine/internal/config"
	"github.com/industrial-sim/protocol-sim-engine/internal/generator"
	"github.com/industrial-sim/protocol-sim-engine/internal/portmanager"
	"github.com/industrial-sim/protocol-sim-engine/internal/simerr"
)

const maxConcurrentStarts = 5

// Manager owns every simulated Modbus device and coordinates their
// lifecycle, mirroring ModbusDeviceManager.
type Manager struct {
	cfg   config.ModbusConfig
	ports *portmanager.Manager
	clk   clock.Clock

	mu      sync.RWMutex
	devices map[string]*Device
	plan    []portmanager.AllocationRequest
}

// New builds an uninitialized Manager; call Initialize to allocate ports
// and construct devices.
func New(cfg config.ModbusConfig, ports *portmanager.Manager, clk clock.Clock) *Manager {
	return &Manager{cfg: cfg, ports: ports, clk: clk, devices: make(map[string]*Device)}
}

// Initialize builds the allocation plan and creates every configured
// device, mirroring ModbusDeviceManager.initialize.
func (m *Manager) Initialize() error {
	log.Info().Msg("initializing modbus device manager")
	m.buildAllocationPlan()
	if err := m.createDevices(); err != nil {
		return err
	}
	log.Info().Int("device_count", len(m.devices)).Msg("modbus device manager initialized")
	return nil
}

// AllocationPlan returns the device->(protocol,count) requirements this
// manager needs, for orchestrator-level validation before any allocation
// happens.
func (m *Manager) AllocationPlan() []portmanager.AllocationRequest {
	return m.plan
}

func (m *Manager) buildAllocationPlan() {
	m.plan = nil
	for deviceType, deviceCfg := range m.cfg.Devices {
		for i := 0; i < deviceCfg.Count; i++ {
			deviceID := fmt.Sprintf("modbus_%s_%03d", deviceType, i)
			m.plan = append(m.plan, portmanager.AllocationRequest{DeviceID: deviceID, Protocol: "modbus", Count: 1})
		}
	}
}

func (m *Manager) createDevices() error {
	for deviceType, deviceCfg := range m.cfg.Devices {
		log.Info().Int("count", deviceCfg.Count).Str("device_type", deviceType).Msg("creating modbus devices")
		for i := 0; i < deviceCfg.Count; i++ {
			deviceID := fmt.Sprintf("modbus_%s_%03d", deviceType, i)

			preferred := 0
			if deviceCfg.PortStart != 0 {
				preferred = deviceCfg.PortStart + i
			}
			ports, err := m.ports.Allocate("modbus", deviceID, 1, preferred)
			if err != nil || len(ports) == 0 {
				return fmt.Errorf("allocate port for device %s: %w", deviceID, simerr.ErrPortUnavailable)
			}

			interval := time.Duration(deviceCfg.UpdateInterval * float64(time.Second))
			patternCfg := generator.NewPatternConfig(deviceCfg.DataConfig)
			dt := generator.TemplateToType(deviceCfg.DeviceTemplate)
			device := NewDevice(deviceID, deviceCfg.DeviceTemplate, dt, ports[0], interval, patternCfg, m.clk)

			m.mu.Lock()
			m.devices[deviceID] = device
			m.mu.Unlock()

			log.Debug().Str("device_id", deviceID).Str("device_type", deviceType).Int("port", ports[0]).Msg("created modbus device")
		}
	}
	return nil
}

// StartAll starts every device with bounded concurrency, mirroring
// start_all_devices's asyncio.Semaphore(5).
func (m *Manager) StartAll() (started map[string]*Device, failed []string) {
	m.mu.RLock()
	devices := make([]*Device, 0, len(m.devices))
	for _, d := range m.devices {
		devices = append(devices, d)
	}
	m.mu.RUnlock()

	log.Info().Int("count", len(devices)).Msg("starting modbus devices")

	started = make(map[string]*Device)
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxConcurrentStarts)

	for _, d := range devices {
		wg.Add(1)
		go func(d *Device) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := d.Start(); err != nil {
				mu.Lock()
				failed = append(failed, d.DeviceID)
				mu.Unlock()
				log.Error().Str("device_id", d.DeviceID).Err(err).Msg("failed to start modbus device")
				return
			}
			mu.Lock()
			started[d.DeviceID] = d
			mu.Unlock()
		}(d)
	}
	wg.Wait()

	if len(failed) > 0 {
		log.Warn().Strs("failed_devices", failed).Msg("some modbus devices failed to start")
	}
	return started, failed
}

// StopAll stops every device.
func (m *Manager) StopAll() {
	m.mu.RLock()
	devices := make([]*Device, 0, len(m.devices))
	for _, d := range m.devices {
		devices = append(devices, d)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, d := range devices {
		wg.Add(1)
		go func(d *Device) {
			defer wg.Done()
			d.Stop()
		}(d)
	}
	wg.Wait()
}

// GetHealthStatus reports running/total device counts, supplementing the
// distilled spec from ModbusDeviceManager.get_health_status.
func (m *Manager) GetHealthStatus() (running, total int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total = len(m.devices)
	for _, d := range m.devices {
		if d.GetStatus().Running {
			running++
		}
	}
	return running, total
}

// Device returns the device for id, or nil if unknown.
func (m *Manager) Device(id string) *Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.devices[id]
}

// RestartDevice stops and restarts a single device by id.
func (m *Manager) RestartDevice(id string) error {
	m.mu.RLock()
	device, ok := m.devices[id]
	m.mu.RUnlock()
	if !ok {
		return simerr.ErrDeviceNotFound
	}
	device.Stop()
	return device.Start()
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
