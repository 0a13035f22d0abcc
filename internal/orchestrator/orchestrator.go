// Package orchestrator composes the port manager and the three protocol
// managers into a single facility simulation, mirroring
// original_source/src/orchestrator.py's SimulationOrchestrator.
package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/industrial-sim/protocol-sim-engine/internal/clock"
	"github.com/industrial-sim/protocol-sim-engine/internal/config"
	"github.com/industrial-sim/protocol-sim-engine/internal/generator"
	"github.com/industrial-sim/protocol-sim-engine/internal/modbus"
	"github.com/industrial-sim/protocol-sim-engine/internal/mqttsim"
	"github.com/industrial-sim/protocol-sim-engine/internal/opcua"
	"github.com/industrial-sim/protocol-sim-engine/internal/portmanager"
	"github.com/industrial-sim/protocol-sim-engine/internal/simerr"
)

const healthMonitorInterval = 30 * time.Second

// DeviceInfo normalizes the three protocol Status shapes into one record,
// mirroring the dict each get_status/get_device_info call returns in
// Python with a "protocol" key stitched in.
type DeviceInfo struct {
	DeviceID       string
	DeviceType     generator.DeviceType
	Template       string
	Protocol       string
	Running        bool
	UptimeSeconds  float64
	ErrorCount     int
	UpdateInterval time.Duration
	LastUpdate     time.Time
	Extra          map[string]any
}

// HealthSummary mirrors _update_health_status's "summary" sub-dict.
type HealthSummary struct {
	TotalDevices     int
	HealthyDevices   int
	HealthPercentage float64
}

// HealthStatus mirrors self.health_status.
type HealthStatus struct {
	Status          string
	Summary         HealthSummary
	PortUtilization map[string]portmanager.Utilization
}

// ProtocolSummary mirrors get_protocol_summary's per-protocol entry.
type ProtocolSummary struct {
	DeviceCount int
	Status      string
	Devices     []string
}

// AllocationReport mirrors get_allocation_report's combined view.
type AllocationReport struct {
	Facility   config.FacilityConfig
	Simulation config.SimulationConfig
	DeviceCount int
	ByProtocol  map[string]int
	Ports       portmanager.AllocationReport
	Health      HealthStatus
}

// PerformanceMetrics mirrors get_performance_metrics.
type PerformanceMetrics struct {
	TotalDevices            int
	ActiveProtocols         []string
	PortUtilization         map[string]portmanager.Utilization
	HealthStatus            string
	HealthyDevicePercentage float64
}

// ExportedData mirrors export_all_device_data.
type ExportedData struct {
	Format      string
	Timestamp   time.Time
	DeviceCount int
	Data        []DeviceInfo
}

// Orchestrator owns the port manager, the per-protocol device managers,
// and the optional embedded MQTT broker, coordinating their lifecycle.
type Orchestrator struct {
	cfg *config.FacilityFile
	clk clock.Clock

	ports  *portmanager.Manager
	modbus *modbus.Manager
	opcua  *opcua.Manager
	mqtt   *mqttsim.Manager
	broker *mqttsim.EmbeddedBroker

	mu              sync.RWMutex
	runningDevices  map[string]map[string]struct{}
	activeProtocols map[string]struct{}
	health          HealthStatus

	monitorStop chan struct{}
	monitorDone chan struct{}
}

// New builds an uninitialized Orchestrator; call Initialize before
// starting anything.
func New(cfg *config.FacilityFile, clk clock.Clock) *Orchestrator {
	return &Orchestrator{
		cfg:             cfg,
		clk:             clk,
		ports:           portmanager.New(),
		runningDevices:  make(map[string]map[string]struct{}),
		activeProtocols: make(map[string]struct{}),
	}
}

// Initialize wires the port pools and every enabled protocol manager,
// then validates the merged allocation plan, mirroring
// SimulationOrchestrator.initialize/_initialize_protocol_managers/
// _validate_allocation_plan.
func (o *Orchestrator) Initialize() error {
	log.Info().Str("facility", o.cfg.Facility.Name).Msg("initializing simulation orchestrator")

	ranges := make(map[string][2]int, len(o.cfg.Network.PortRanges))
	for protocol, r := range o.cfg.Network.PortRanges {
		ranges[protocol] = [2]int{r.Start, r.End}
	}
	o.ports.InitPools(ranges)

	protocols := o.cfg.IndustrialProtocols

	if protocols.ModbusTCP != nil && protocols.ModbusTCP.Enabled {
		o.modbus = modbus.New(*protocols.ModbusTCP, o.ports, o.clk)
		if err := o.modbus.Initialize(); err != nil {
			return fmt.Errorf("initialize modbus manager: %w", err)
		}
	}
	if protocols.OPCUA != nil && protocols.OPCUA.Enabled {
		o.opcua = opcua.New(*protocols.OPCUA, o.ports, o.clk)
		if err := o.opcua.Initialize(); err != nil {
			return fmt.Errorf("initialize opcua manager: %w", err)
		}
	}
	if protocols.MQTT != nil && protocols.MQTT.Enabled {
		o.mqtt = mqttsim.New(*protocols.MQTT, o.ports, o.clk)
		if err := o.mqtt.Initialize(); err != nil {
			return fmt.Errorf("initialize mqtt manager: %w", err)
		}

		if protocols.MQTT.UseEmbeddedBroker {
			o.broker = mqttsim.NewEmbeddedBroker(protocols.MQTT.BrokerHost, protocols.MQTT.BrokerPort)
			if err := o.broker.Start(); err != nil {
				return fmt.Errorf("start embedded mqtt broker: %w", err)
			}
			time.Sleep(500 * time.Millisecond)
		}
	}

	if !o.validateAllocationPlan() {
		return fmt.Errorf("validate allocation plan: %w", simerr.ErrPortUnavailable)
	}

	log.Info().Strs("enabled_protocols", o.cfg.EnabledProtocols()).Msg("simulation orchestrator initialized")
	return nil
}

func (o *Orchestrator) validateAllocationPlan() bool {
	var plan []portmanager.AllocationRequest
	if o.modbus != nil {
		plan = append(plan, o.modbus.AllocationPlan()...)
	}
	if o.opcua != nil {
		plan = append(plan, o.opcua.AllocationPlan()...)
	}
	if o.mqtt != nil {
		plan = append(plan, o.mqtt.AllocationPlan()...)
	}
	return o.ports.ValidatePlan(plan)
}

// StartAllDevices starts every enabled protocol's devices, mirroring
// start_all_devices.
func (o *Orchestrator) StartAllDevices() error {
	log.Info().Msg("starting all simulated devices")

	o.mu.Lock()
	o.runningDevices = make(map[string]map[string]struct{})
	o.activeProtocols = make(map[string]struct{})
	o.mu.Unlock()

	if o.modbus != nil {
		started, failed := o.modbus.StartAll()
		recordStarted(o, "modbus_tcp", started)
		if len(failed) > 0 {
			log.Warn().Strs("failed", failed).Msg("some modbus devices failed to start")
		}
	}
	if o.opcua != nil {
		started, failed := o.opcua.StartAll()
		recordStarted(o, "opcua", started)
		if len(failed) > 0 {
			log.Warn().Strs("failed", failed).Msg("some opcua devices failed to start")
		}
	}
	if o.mqtt != nil {
		if err := o.mqtt.StartAll(); err != nil {
			return fmt.Errorf("start mqtt devices: %w", err)
		}
		o.mu.Lock()
		ids := make(map[string]struct{})
		for _, id := range o.mqtt.Devices() {
			ids[id] = struct{}{}
		}
		o.runningDevices["mqtt"] = ids
		o.activeProtocols["mqtt"] = struct{}{}
		o.mu.Unlock()
	}

	o.updateHealthStatus()
	log.Info().Int("device_count", o.DeviceCount()).Msg("all simulated devices started")
	return nil
}

func recordStarted[D any](o *Orchestrator, protocol string, started map[string]D) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make(map[string]struct{}, len(started))
	for id := range started {
		ids[id] = struct{}{}
	}
	if len(ids) > 0 {
		o.runningDevices[protocol] = ids
		o.activeProtocols[protocol] = struct{}{}
	}
}

// StopAllDevices stops every protocol manager and the embedded broker,
// mirroring stop_all_devices.
func (o *Orchestrator) StopAllDevices() {
	log.Info().Msg("stopping all simulated devices")

	if o.modbus != nil {
		o.modbus.StopAll()
	}
	if o.opcua != nil {
		o.opcua.StopAll()
	}
	if o.mqtt != nil {
		o.mqtt.StopAll()
	}
	if o.broker != nil {
		o.broker.Stop()
	}

	o.mu.Lock()
	o.runningDevices = make(map[string]map[string]struct{})
	o.activeProtocols = make(map[string]struct{})
	o.mu.Unlock()

	log.Info().Msg("all simulated devices stopped")
}

// updateHealthStatus recomputes the aggregate health bucket across every
// managed device (healthy = currently running), mirroring
// _update_health_status's 95%/80% thresholds.
func (o *Orchestrator) updateHealthStatus() {
	total, healthy := 0, 0

	if o.modbus != nil {
		for _, id := range o.modbus.Devices() {
			total++
			if d := o.modbus.Device(id); d != nil && d.GetStatus().Running {
				healthy++
			}
		}
	}
	if o.opcua != nil {
		for _, id := range o.opcua.Devices() {
			total++
			if d := o.opcua.Device(id); d != nil && d.GetStatus().Running {
				healthy++
			}
		}
	}
	if o.mqtt != nil {
		broker := fmt.Sprintf("%s:%d", o.mqtt.GetBrokerInfo().BrokerHost, o.mqtt.GetBrokerInfo().BrokerPort)
		for _, id := range o.mqtt.Devices() {
			total++
			if d := o.mqtt.Device(id); d != nil && d.GetStatus(broker).Running {
				healthy++
			}
		}
	}

	pct := 100.0
	if total > 0 {
		pct = round2(float64(healthy) / float64(total) * 100)
	}

	status := "unknown"
	switch {
	case total == 0:
		status = "unknown"
	case pct >= 95:
		status = "healthy"
	case pct >= 80:
		status = "degraded"
	default:
		status = "unhealthy"
	}

	o.mu.Lock()
	o.health = HealthStatus{
		Status: status,
		Summary: HealthSummary{
			TotalDevices:     total,
			HealthyDevices:   healthy,
			HealthPercentage: pct,
		},
		PortUtilization: o.ports.PortUtilization(),
	}
	o.mu.Unlock()
}

// DeviceCount returns the total number of running devices.
func (o *Orchestrator) DeviceCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	total := 0
	for _, devices := range o.runningDevices {
		total += len(devices)
	}
	return total
}

// ActiveProtocols returns the set of protocols with at least one running
// device.
func (o *Orchestrator) ActiveProtocols() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]string, 0, len(o.activeProtocols))
	for p := range o.activeProtocols {
		out = append(out, p)
	}
	return out
}

// GetHealthStatus returns the last computed health snapshot.
func (o *Orchestrator) GetHealthStatus() HealthStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.health
}

// DeviceStatus returns one device's normalized status, searching every
// protocol manager in turn, mirroring get_device_status.
func (o *Orchestrator) DeviceStatus(deviceID string) (DeviceInfo, bool) {
	if o.modbus != nil {
		if d := o.modbus.Device(deviceID); d != nil {
			return modbusDeviceInfo(d), true
		}
	}
	if o.opcua != nil {
		if d := o.opcua.Device(deviceID); d != nil {
			return opcuaDeviceInfo(d), true
		}
	}
	if o.mqtt != nil {
		if d := o.mqtt.Device(deviceID); d != nil {
			return mqttDeviceInfo(d, o.mqtt.GetBrokerInfo()), true
		}
	}
	return DeviceInfo{}, false
}

// RestartDevice restarts a device by id across whichever protocol manager
// owns it, mirroring restart_device.
func (o *Orchestrator) RestartDevice(deviceID string) error {
	if o.modbus != nil {
		if o.modbus.Device(deviceID) != nil {
			if err := o.modbus.RestartDevice(deviceID); err != nil {
				return err
			}
			log.Info().Str("device_id", deviceID).Msg("device restarted successfully")
			o.updateHealthStatus()
			return nil
		}
	}
	if o.opcua != nil {
		if o.opcua.Device(deviceID) != nil {
			if err := o.opcua.RestartDevice(deviceID); err != nil {
				return err
			}
			log.Info().Str("device_id", deviceID).Msg("device restarted successfully")
			o.updateHealthStatus()
			return nil
		}
	}
	if o.mqtt != nil {
		if o.mqtt.Device(deviceID) != nil {
			if err := o.mqtt.RestartDevice(deviceID); err != nil {
				return err
			}
			log.Info().Str("device_id", deviceID).Msg("device restarted successfully")
			o.updateHealthStatus()
			return nil
		}
	}
	log.Warn().Str("device_id", deviceID).Msg("device not found for restart")
	return simerr.ErrDeviceNotFound
}

// AllocationReport returns the comprehensive facility/port/health report,
// mirroring get_allocation_report.
func (o *Orchestrator) AllocationReport() AllocationReport {
	o.mu.RLock()
	byProtocol := make(map[string]int, len(o.runningDevices))
	for protocol, devices := range o.runningDevices {
		byProtocol[protocol] = len(devices)
	}
	o.mu.RUnlock()

	return AllocationReport{
		Facility:    o.cfg.Facility,
		Simulation:  o.cfg.Simulation,
		DeviceCount: o.DeviceCount(),
		ByProtocol:  byProtocol,
		Ports:       o.ports.GenerateAllocationReport(),
		Health:      o.GetHealthStatus(),
	}
}

// RunHealthMonitor blocks, recomputing health every 30s until stopped,
// mirroring start_monitoring_loop. Call in its own goroutine.
func (o *Orchestrator) RunHealthMonitor() {
	log.Info().Msg("starting health monitoring loop")
	o.monitorStop = make(chan struct{})
	o.monitorDone = make(chan struct{})
	defer close(o.monitorDone)

	ticker := time.NewTicker(healthMonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.monitorStop:
			log.Info().Msg("health monitoring loop stopped")
			return
		case <-ticker.C:
			if o.DeviceCount() == 0 {
				log.Info().Msg("health monitoring loop stopped: no running devices")
				return
			}
			o.updateHealthStatus()
		}
	}
}

// StopHealthMonitor signals a running RunHealthMonitor goroutine to exit
// and waits for it to finish.
func (o *Orchestrator) StopHealthMonitor() {
	if o.monitorStop == nil {
		return
	}
	select {
	case <-o.monitorStop:
	default:
		close(o.monitorStop)
	}
	<-o.monitorDone
}

// AllDevices returns every managed device's normalized status, running or
// not, mirroring get_all_devices.
func (o *Orchestrator) AllDevices() []DeviceInfo {
	var out []DeviceInfo
	if o.modbus != nil {
		for _, id := range o.modbus.Devices() {
			if d := o.modbus.Device(id); d != nil {
				out = append(out, modbusDeviceInfo(d))
			}
		}
	}
	if o.opcua != nil {
		for _, id := range o.opcua.Devices() {
			if d := o.opcua.Device(id); d != nil {
				out = append(out, opcuaDeviceInfo(d))
			}
		}
	}
	if o.mqtt != nil {
		broker := o.mqtt.GetBrokerInfo()
		for _, id := range o.mqtt.Devices() {
			if d := o.mqtt.Device(id); d != nil {
				out = append(out, mqttDeviceInfo(d, broker))
			}
		}
	}
	return out
}

// DeviceInfoByID returns one device's normalized status by id, mirroring
// get_device_info.
func (o *Orchestrator) DeviceInfoByID(deviceID string) (DeviceInfo, bool) {
	return o.DeviceStatus(deviceID)
}

// DeviceData returns a device's live protocol-native data payload
// (registers/message/nodes), mirroring get_device_data.
func (o *Orchestrator) DeviceData(deviceID string) (map[string]any, bool) {
	if o.modbus != nil {
		if d := o.modbus.Device(deviceID); d != nil {
			return d.GetRegisterData(), true
		}
	}
	if o.opcua != nil {
		if d := o.opcua.Device(deviceID); d != nil {
			return d.GetNodeData(), true
		}
	}
	if o.mqtt != nil {
		if d := o.mqtt.Device(deviceID); d != nil {
			if msg, ok := d.GetLastMessage(); ok {
				return msg.Data, true
			}
			return nil, true
		}
	}
	return nil, false
}

// ProtocolSummaryReport returns per-protocol running-device summaries,
// mirroring get_protocol_summary.
func (o *Orchestrator) ProtocolSummaryReport() map[string]ProtocolSummary {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make(map[string]ProtocolSummary, len(o.runningDevices))
	for protocol, devices := range o.runningDevices {
		ids := make([]string, 0, len(devices))
		for id := range devices {
			ids = append(ids, id)
		}
		out[protocol] = ProtocolSummary{DeviceCount: len(devices), Status: "active", Devices: ids}
	}
	return out
}

// DevicesByProtocol returns every running device for one protocol,
// mirroring get_devices_by_protocol.
func (o *Orchestrator) DevicesByProtocol(protocol string) []DeviceInfo {
	o.mu.RLock()
	ids, ok := o.runningDevices[protocol]
	o.mu.RUnlock()
	if !ok {
		return nil
	}

	var out []DeviceInfo
	for id := range ids {
		if info, found := o.DeviceStatus(id); found {
			out = append(out, info)
		}
	}
	return out
}

// GetPerformanceMetrics mirrors get_performance_metrics.
func (o *Orchestrator) GetPerformanceMetrics() PerformanceMetrics {
	health := o.GetHealthStatus()
	return PerformanceMetrics{
		TotalDevices:            o.DeviceCount(),
		ActiveProtocols:         o.ActiveProtocols(),
		PortUtilization:         o.ports.PortUtilization(),
		HealthStatus:            health.Status,
		HealthyDevicePercentage: health.Summary.HealthPercentage,
	}
}

// ExportAllDeviceData mirrors export_all_device_data.
func (o *Orchestrator) ExportAllDeviceData(format string) ExportedData {
	devices := o.AllDevices()
	return ExportedData{
		Format:      format,
		Timestamp:   o.clk.Now(),
		DeviceCount: len(devices),
		Data:        devices,
	}
}

func modbusDeviceInfo(d *modbus.Device) DeviceInfo {
	s := d.GetStatus()
	return DeviceInfo{
		DeviceID: s.DeviceID, DeviceType: s.DeviceType, Template: s.Template, Protocol: "modbus_tcp",
		Running: s.Running, UptimeSeconds: s.UptimeSeconds, ErrorCount: s.ErrorCount,
		UpdateInterval: s.UpdateInterval, LastUpdate: s.LastUpdate,
		Extra: map[string]any{"port": s.Port},
	}
}

func opcuaDeviceInfo(d *opcua.Device) DeviceInfo {
	s := d.GetStatus()
	return DeviceInfo{
		DeviceID: s.DeviceID, DeviceType: s.DeviceType, Template: s.Template, Protocol: "opcua",
		Running: s.Running, UptimeSeconds: s.UptimeSeconds, ErrorCount: s.ErrorCount,
		Extra: map[string]any{"port": s.Port, "endpoint": s.Endpoint},
	}
}

func mqttDeviceInfo(d *mqttsim.Device, broker mqttsim.BrokerInfo) DeviceInfo {
	b := fmt.Sprintf("%s:%d", broker.BrokerHost, broker.BrokerPort)
	s := d.GetStatus(b)
	return DeviceInfo{
		DeviceID: s.DeviceID, DeviceType: s.DeviceType, Template: s.Template, Protocol: "mqtt",
		Running: s.Running, UptimeSeconds: s.UptimeSeconds, ErrorCount: s.ErrorCount,
		UpdateInterval: s.PublishInterval, LastUpdate: s.LastPublish,
		Extra: map[string]any{"broker": s.Broker, "base_topic": s.BaseTopic, "qos": s.QoS, "publish_count": s.PublishCount},
	}
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
