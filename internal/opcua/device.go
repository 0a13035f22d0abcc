package opcua

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gopcua/opcua/ua"
	"github.com/rs/zerolog/log"

	"github.com/industrial-sim/protocol-sim-engine/internal/clock"
	"github.com/industrial-sim/protocol-sim-engine/internal/generator"
	"github.com/industrial-sim/protocol-sim-engine/internal/simerr"
)

// Status mirrors OPCUADevice.get_status's shape.
type Status struct {
	DeviceID      string
	DeviceType    generator.DeviceType
	Template      string
	Port          int
	Endpoint      string
	Running       bool
	UptimeSeconds float64
	ErrorCount    int
}

// Device is one simulated OPC-UA endpoint: a plain TCP listener claiming
// the port, plus a generator-driven address space.
type Device struct {
	DeviceID       string
	DeviceType     generator.DeviceType
	Template       string
	Port           int
	UpdateInterval time.Duration

	space *AddressSpace
	gen   *generator.Generator
	clk   clock.Clock

	mu         sync.Mutex
	listener   net.Listener
	running    bool
	errorCount int
	startedAt  time.Time
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// NewDevice builds an OPC-UA device bound to port, not yet started.
func NewDevice(deviceID, template string, deviceType generator.DeviceType, port, jointCount int, updateInterval time.Duration, cfg generator.PatternConfig, clk clock.Clock) *Device {
	return &Device{
		DeviceID:       deviceID,
		DeviceType:     deviceType,
		Template:       template,
		Port:           port,
		UpdateInterval: updateInterval,
		space:          buildAddressSpace(deviceID, template, deviceType, jointCount),
		gen:            generator.New(deviceID, cfg, clk),
		clk:            clk,
	}
}

// Start claims the device's TCP port and begins the periodic node-value
// update loop, mirroring OPCUADevice.start.
func (d *Device) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return nil
	}

	addr := fmt.Sprintf("0.0.0.0:%d", d.Port)
	lst, err := net.Listen("tcp", addr)
	if err != nil {
		log.Error().Str("device_id", d.DeviceID).Err(err).Msg("failed to start opcua device")
		return fmt.Errorf("bind opcua device %s on port %d: %w: %w", d.DeviceID, d.Port, simerr.ErrEndpointBindFailure, err)
	}
	d.listener = lst
	d.stopCh = make(chan struct{})

	d.wg.Add(1)
	go d.acceptLoop(lst)

	d.updateNodeValues()

	d.wg.Add(1)
	go d.updateLoop()

	d.running = true
	d.startedAt = d.clk.Now()
	d.errorCount = 0

	log.Info().Str("device_id", d.DeviceID).Int("port", d.Port).Msg("opcua device started")
	return nil
}

// acceptLoop accepts and immediately closes inbound connections; this
// package does not implement the OPC-UA binary handshake, only endpoint
// ownership (see package doc).
func (d *Device) acceptLoop(lst net.Listener) {
	defer d.wg.Done()
	for {
		conn, err := lst.Accept()
		if err != nil {
			return
		}
		conn.Close()
	}
}

// Stop releases the TCP listener and halts the update loop, mirroring
// OPCUADevice.stop.
func (d *Device) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	close(d.stopCh)
	lst := d.listener
	d.mu.Unlock()

	if lst != nil {
		lst.Close()
	}
	d.wg.Wait()
	log.Info().Str("device_id", d.DeviceID).Msg("opcua device stopped")
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
			d.updateNodeValues()
		}
	}
}

// updateNodeValues generates fresh device data and writes it into the
// address space, mirroring _update_node_values's per-type dispatch.
func (d *Device) updateNodeValues() {
	defer func() {
		if r := recover(); r != nil {
			d.mu.Lock()
			d.errorCount++
			d.mu.Unlock()
			log.Error().Str("device_id", d.DeviceID).Interface("panic", r).Msg("error updating opcua nodes")
		}
	}()

	snap := d.gen.Produce(d.DeviceType)

	switch d.DeviceType {
	case generator.CNCMachine:
		d.space.set("Parameters", "SpindleSpeed", ua.MustVariant(snap.Float("spindle_speed")))
		d.space.set("Parameters", "FeedRate", ua.MustVariant(snap.Float("feed_rate")))
		d.space.set("Parameters", "ToolWearPercent", ua.MustVariant(snap.Float("tool_wear_pct")))
		d.space.set("Parameters", "PartCount", ua.MustVariant(int32(snap.Int("part_count"))))
		d.space.set("Parameters", "AxisPosition_X", ua.MustVariant(snap.Float("axis_x")))
		d.space.set("Parameters", "AxisPosition_Y", ua.MustVariant(snap.Float("axis_y")))
		d.space.set("Parameters", "ProgramName", ua.MustVariant(snap.String("program")))
		d.space.set("Parameters", "MachineState", ua.MustVariant(snap.String("mode")))
		d.space.set("Status", "OperatingMode", ua.MustVariant(snap.String("mode")))

	case generator.PLCController:
		d.space.set("Parameters", "ProcessValue", ua.MustVariant(snap.Float("process_value")))
		d.space.set("Parameters", "Setpoint", ua.MustVariant(snap.Float("setpoint")))
		d.space.set("Parameters", "ControlOutput", ua.MustVariant(snap.Float("output_pct")))
		d.space.set("Parameters", "Mode", ua.MustVariant(snap.String("mode")))
		d.space.set("Parameters", "HighAlarm", ua.MustVariant(snap.Bool("alarm_active")))
		d.space.set("Status", "OperatingMode", ua.MustVariant(snap.String("mode")))

	case generator.IndustrialRobot:
		angles, _ := snap.Fields["joint_angles"].([]float64)
		for i, angle := range angles {
			d.space.set("Parameters", fmt.Sprintf("JointAngle_%d", i+1), ua.MustVariant(angle))
		}
		d.space.set("Parameters", "TCPPosition_X", ua.MustVariant(snap.Float("tcp_x")))
		d.space.set("Parameters", "TCPPosition_Y", ua.MustVariant(snap.Float("tcp_y")))
		d.space.set("Parameters", "TCPPosition_Z", ua.MustVariant(snap.Float("tcp_z")))
		d.space.set("Parameters", "CycleCount", ua.MustVariant(int32(snap.Int("cycle_count"))))
		d.space.set("Parameters", "PayloadKg", ua.MustVariant(snap.Float("payload_kg")))
		d.space.set("Parameters", "ProgramState", ua.MustVariant(snap.String("mode")))
		d.space.set("Status", "OperatingMode", ua.MustVariant(snap.String("mode")))

	default:
		d.space.set("Parameters", "Value", ua.MustVariant(snap.Float("value")))
	}
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
		DeviceID:      d.DeviceID,
		DeviceType:    d.DeviceType,
		Template:      d.Template,
		Port:          d.Port,
		Endpoint:      fmt.Sprintf("opc.tcp://0.0.0.0:%d", d.Port),
		Running:       d.running,
		UptimeSeconds: round2(uptime),
		ErrorCount:    d.errorCount,
	}
}

// GetNodeData returns a flattened snapshot of every node's current value,
// mirroring OPCUADevice.get_node_data.
func (d *Device) GetNodeData() map[string]any {
	return d.space.Snapshot()
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
