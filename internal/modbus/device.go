// Package modbus simulates Modbus TCP devices, each owning its own
// listening port and register set, mirroring
// original_source/src/protocols/industrial/modbus/modbus_simulator.py.
package modbus

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tbrandon/mbserver"

	"github.com/industrial-sim/protocol-sim-engine/internal/clock"
	"github.com/industrial-sim/protocol-sim-engine/internal/generator"
	"github.com/industrial-sim/protocol-sim-engine/internal/simerr"
)

// Status mirrors ModbusDevice.get_status's shape.
type Status struct {
	DeviceID       string
	DeviceType     generator.DeviceType
	Template       string
	Port           int
	Running        bool
	UptimeSeconds  float64
	ErrorCount     int
	LastUpdate     time.Time
	UpdateInterval time.Duration
}

// Device is one simulated Modbus TCP endpoint: a register-backed server
// plus the generator driving its values.
type Device struct {
	DeviceID       string
	DeviceType     generator.DeviceType
	Template       string
	Port           int
	UpdateInterval time.Duration

	gen   *generator.Generator
	cfg   generator.PatternConfig
	clk   clock.Clock
	server *mbserver.Server

	mu         sync.Mutex
	running    bool
	errorCount int
	lastUpdate time.Time
	startedAt  time.Time
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// NewDevice builds a Modbus device bound to port, not yet started.
func NewDevice(deviceID, template string, deviceType generator.DeviceType, port int, updateInterval time.Duration, cfg generator.PatternConfig, clk clock.Clock) *Device {
	return &Device{
		DeviceID:       deviceID,
		DeviceType:     deviceType,
		Template:       template,
		Port:           port,
		UpdateInterval: updateInterval,
		gen:            generator.New(deviceID, cfg, clk),
		cfg:            cfg,
		clk:            clk,
	}
}

// Start binds the device's TCP port and begins the periodic register
// update loop. Mirrors ModbusDevice.start.
func (d *Device) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}

	srv := mbserver.NewServer()
	if err := srv.ListenTCP(fmt.Sprintf("0.0.0.0:%d", d.Port)); err != nil {
		d.mu.Unlock()
		log.Error().Str("device_id", d.DeviceID).Err(err).Msg("failed to start modbus device")
		return fmt.Errorf("bind modbus device %s on port %d: %w: %w", d.DeviceID, d.Port, simerr.ErrEndpointBindFailure, err)
	}
	d.server = srv
	d.stopCh = make(chan struct{})
	d.running = true
	d.startedAt = d.clk.Now()
	d.errorCount = 0
	d.mu.Unlock()

	// updateRegisters takes d.mu itself, so the seeding tick runs unlocked.
	d.updateRegisters()

	d.wg.Add(1)
	go d.updateLoop()

	log.Info().Str("device_id", d.DeviceID).Int("port", d.Port).Msg("modbus device started")
	return nil
}

// Stop halts the update loop and releases the TCP listener. Mirrors
// ModbusDevice.stop.
func (d *Device) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	close(d.stopCh)
	server := d.server
	d.mu.Unlock()

	d.wg.Wait()
	if server != nil {
		server.Close()
	}
	log.Info().Str("device_id", d.DeviceID).Msg("modbus device stopped")
}

func (d *Device) updateLoop() {
	defer d.wg.Done()
	ticker := time.NewTicker(d.UpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			d.updateRegisters()
		}
	}
}

// updateRegisters generates fresh device data and writes the protocol's
// register mapping, per device type, mirroring
// _update_registers_with_realistic_data's HR/DI layout.
func (d *Device) updateRegisters() {
	defer func() {
		if r := recover(); r != nil {
			d.mu.Lock()
			d.errorCount++
			d.mu.Unlock()
			log.Error().Str("device_id", d.DeviceID).Interface("panic", r).Msg("error updating modbus registers")
		}
	}()

	snap := d.gen.Produce(d.DeviceType)
	srv := d.server
	if srv == nil {
		return
	}

	switch d.DeviceType {
	case generator.TemperatureSensor:
		srv.HoldingRegisters[0] = uint16(snap.Float("temperature") * 100)
		srv.HoldingRegisters[1] = uint16(snap.Float("humidity") * 100)
		srv.HoldingRegisters[2] = 0
		srv.DiscreteInputs[0] = 1
	case generator.PressureTransmitter:
		srv.HoldingRegisters[0] = uint16(snap.Float("pressure") * 100)
		srv.HoldingRegisters[1] = uint16(snap.Float("flow_rate") * 100)
		srv.DiscreteInputs[0] = boolByte(snap.Float("pressure") > d.cfg.Pressure.HighAlarm)
		srv.DiscreteInputs[1] = boolByte(snap.Float("flow_rate") < d.cfg.Flow.LowFlowAlarm)
	case generator.MotorDrive:
		srv.HoldingRegisters[0] = uint16(snap.Float("motor_speed"))
		srv.HoldingRegisters[1] = uint16(snap.Float("motor_torque") * 100)
		srv.HoldingRegisters[2] = uint16(snap.Float("power_consumption") * 100)
		srv.HoldingRegisters[3] = uint16(snap.Int("fault_code"))
	default:
		srv.HoldingRegisters[0] = uint16(snap.Float("value") * 100)
	}

	d.mu.Lock()
	d.lastUpdate = d.clk.Now()
	d.mu.Unlock()
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// GetStatus returns the device's current lifecycle status.
func (d *Device) GetStatus() Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	uptime := 0.0
	if d.running {
		uptime = d.clk.Now().Sub(d.startedAt).Seconds()
	}
	return Status{
		DeviceID:       d.DeviceID,
		DeviceType:     d.DeviceType,
		Template:       d.Template,
		Port:           d.Port,
		Running:        d.running,
		UptimeSeconds:  round2(uptime),
		ErrorCount:     d.errorCount,
		LastUpdate:     d.lastUpdate,
		UpdateInterval: d.UpdateInterval,
	}
}

// GetRegisterData returns the current holding/discrete register snapshot,
// mirroring ModbusDevice.get_register_data.
func (d *Device) GetRegisterData() map[string]any {
	d.mu.Lock()
	srv := d.server
	d.mu.Unlock()
	if srv == nil {
		return nil
	}

	hr := make([]uint16, 10)
	copy(hr, srv.HoldingRegisters[:10])
	di := make([]byte, 10)
	copy(di, srv.DiscreteInputs[:10])

	return map[string]any{
		"device_id":   d.DeviceID,
		"device_type": string(d.DeviceType),
		"holding":     hr,
		"discrete":    di,
	}
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
