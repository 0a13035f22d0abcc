package portmanager

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/industrial-sim/protocol-sim-engine/internal/simerr"
)

// AllocationRequest is one entry in an allocation plan: the protocol and
// port count a device needs, mirroring
// original_source/src/port_manager.py:validate_allocation_plan's
// `Dict[str, Tuple[str, int]]` shape.
type AllocationRequest struct {
	DeviceID string
	Protocol string
	Count    int
}

// Manager allocates and tracks port assignments across every protocol
// pool, mirroring IntelligentPortManager.
type Manager struct {
	mu            sync.Mutex
	pools         map[string]*PortPool
	deviceToPorts map[string][]int
}

// New returns an empty Manager; call InitPools before allocating.
func New() *Manager {
	return &Manager{
		pools:         make(map[string]*PortPool),
		deviceToPorts: make(map[string][]int),
	}
}

// InitPools creates one pool per protocol from the configured ranges.
func (m *Manager) InitPools(ranges map[string][2]int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for protocol, r := range ranges {
		pool := NewPortPool(r[0], r[1], protocol)
		m.pools[protocol] = pool
		total += pool.AvailableCount()
	}
	log.Info().Int("pools", len(m.pools)).Int("total_ports", total).Msg("port pools initialized")
}

// Allocate reserves count ports for deviceID on protocol, preferring
// preferredStart. Re-allocating an already-allocated device returns its
// existing ports (idempotent), matching allocate_ports's device-already-
// mapped branch.
func (m *Manager) Allocate(protocol, deviceID string, count, preferredStart int) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pool, ok := m.pools[protocol]
	if !ok {
		return nil, simerr.ErrPortUnavailable
	}

	if existing, ok := m.deviceToPorts[deviceID]; ok {
		log.Warn().Str("device_id", deviceID).Msg("device already has allocated ports")
		return existing, nil
	}

	allocated := pool.Allocate(count, preferredStart)
	if allocated == nil {
		return nil, simerr.ErrPortUnavailable
	}

	m.deviceToPorts[deviceID] = allocated
	return allocated, nil
}

// Deallocate frees deviceID's ports back to their owning pool.
func (m *Manager) Deallocate(deviceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	ports, ok := m.deviceToPorts[deviceID]
	if !ok {
		return false
	}

	for _, pool := range m.pools {
		if len(ports) > 0 && ports[0] >= pool.StartPort && ports[0] <= pool.EndPort {
			pool.Deallocate(ports)
			break
		}
	}
	delete(m.deviceToPorts, deviceID)
	return true
}

// DevicePorts returns the ports allocated to deviceID, or nil if none.
func (m *Manager) DevicePorts(deviceID string) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deviceToPorts[deviceID]
}

// Utilization reports total/used/available/percent per protocol.
type Utilization struct {
	Total      int
	Used       int
	Available  int
	PercentUse float64
}

// PortUtilization returns per-protocol utilization stats.
func (m *Manager) PortUtilization() map[string]Utilization {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Utilization, len(m.pools))
	for protocol, pool := range m.pools {
		total := pool.EndPort - pool.StartPort + 1
		used := pool.AllocatedCount()
		pct := 0.0
		if total > 0 {
			pct = round2(float64(used) / float64(total) * 100)
		}
		out[protocol] = Utilization{
			Total:      total,
			Used:       used,
			Available:  pool.AvailableCount(),
			PercentUse: pct,
		}
	}
	return out
}

// ValidatePlan simulates allocating every request in plan against clones of
// the live pools, without mutating real state, mirroring
// validate_allocation_plan's use of temporary PortPool copies.
func (m *Manager) ValidatePlan(plan []AllocationRequest) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	temp := make(map[string]*PortPool, len(m.pools))
	for protocol, pool := range m.pools {
		temp[protocol] = pool.Clone()
	}

	for _, req := range plan {
		pool, ok := temp[req.Protocol]
		if !ok {
			log.Error().Str("protocol", req.Protocol).Msg("unknown protocol in allocation plan")
			return false
		}
		if pool.Allocate(req.Count, 0) == nil {
			log.Error().Str("device_id", req.DeviceID).Str("protocol", req.Protocol).
				Int("requested", req.Count).Msg("allocation plan validation failed")
			return false
		}
	}
	log.Info().Msg("allocation plan validation successful")
	return true
}

// AllocationReport is the comprehensive snapshot generate_allocation_report
// returns, supplementing the distilled spec (spec.md's Non-goals exclude
// neither inspection nor reporting, and original_source implements it).
type AllocationReport struct {
	TotalDevices int
	Protocols    map[string]ProtocolSummary
	Devices      map[string]DeviceAllocation
	Utilization  map[string]Utilization
}

// ProtocolSummary is one protocol's pool sizing inside an AllocationReport.
type ProtocolSummary struct {
	TotalPorts     int
	AllocatedPorts int
	AvailablePorts int
}

// DeviceAllocation is one device's assigned ports inside an AllocationReport.
type DeviceAllocation struct {
	Ports []int
	Count int
}

// GenerateAllocationReport builds a full report across all pools/devices.
func (m *Manager) GenerateAllocationReport() AllocationReport {
	m.mu.Lock()
	report := AllocationReport{
		TotalDevices: len(m.deviceToPorts),
		Protocols:    make(map[string]ProtocolSummary, len(m.pools)),
		Devices:      make(map[string]DeviceAllocation, len(m.deviceToPorts)),
	}

	for protocol, pool := range m.pools {
		report.Protocols[protocol] = ProtocolSummary{
			TotalPorts:     pool.EndPort - pool.StartPort + 1,
			AllocatedPorts: pool.AllocatedCount(),
			AvailablePorts: pool.AvailableCount(),
		}
	}
	for deviceID, ports := range m.deviceToPorts {
		report.Devices[deviceID] = DeviceAllocation{Ports: ports, Count: len(ports)}
	}
	m.mu.Unlock()

	report.Utilization = m.PortUtilization()
	return report
}

// MonitorPortHealth reports health per allocated device. Every allocated
// port is currently assumed healthy; original_source/src/port_manager.py's
// monitor_port_health carries the identical placeholder semantics.
func (m *Manager) MonitorPortHealth() map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	health := make(map[string]bool, len(m.deviceToPorts))
	for deviceID := range m.deviceToPorts {
		health[deviceID] = true
	}
	return health
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
