// Package opcua simulates OPC-UA devices as a typed address-space tree
// under Objects/DeviceSet/<device_id>, mirroring
// original_source/src/protocols/industrial/opcua/opcua_simulator.py.
//
// No Go ecosystem library implements a full OPC-UA binary server
// (gopcua/opcua is client-only); this package uses gopcua/opcua's `ua`
// subpackage purely for typed node values (Variant/NodeID/VariantType)
// and a plain net.Listener to own the endpoint's TCP port, a deliberate
// reduction documented in DESIGN.md.
package opcua

import (
	"fmt"
	"sync"

	"github.com/gopcua/opcua/ua"

	"github.com/industrial-sim/protocol-sim-engine/internal/generator"
)

// NodeID formats a node's browse path below the Objects folder:
// DeviceSet/<device_id>/<folder>/<name>.
func NodeID(deviceID, folder, name string) string {
	return fmt.Sprintf("DeviceSet/%s/%s/%s", deviceID, folder, name)
}

// AddressSpace is one device's node tree: every leaf holds a typed
// ua.Variant value, guarded for concurrent read (inspection) and write
// (update loop) access.
type AddressSpace struct {
	deviceID string
	mu       sync.RWMutex
	nodes    map[string]*ua.Variant
}

func newAddressSpace(deviceID string) *AddressSpace {
	return &AddressSpace{deviceID: deviceID, nodes: make(map[string]*ua.Variant)}
}

func (a *AddressSpace) set(folder, name string, v *ua.Variant) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nodes[NodeID(a.deviceID, folder, name)] = v
}

// Get returns the named node's variant, or nil if absent.
func (a *AddressSpace) Get(folder, name string) *ua.Variant {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.nodes[NodeID(a.deviceID, folder, name)]
}

// Snapshot returns every node id mapped to its current decoded value,
// mirroring get_node_data's flattened {nodes: {...}} shape.
func (a *AddressSpace) Snapshot() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]any, len(a.nodes))
	for id, v := range a.nodes {
		out[id] = v.Value()
	}
	return out
}

// buildCommonNodes creates the Identification and Status folders every
// device carries, per _build_address_space.
func buildCommonNodes(a *AddressSpace, template string) {
	a.set("Identification", "Manufacturer", ua.MustVariant("Protocol Sim Engine"))
	a.set("Identification", "Model", ua.MustVariant(template))
	a.set("Identification", "SerialNumber", ua.MustVariant(a.deviceID))

	a.set("Status", "DeviceHealth", ua.MustVariant("NORMAL"))
	a.set("Status", "ErrorCode", ua.MustVariant(int32(0)))
	a.set("Status", "OperatingMode", ua.MustVariant("AUTO"))
}

// buildCNCNodes mirrors _build_cnc_nodes.
func buildCNCNodes(a *AddressSpace) {
	for _, name := range []string{"SpindleSpeed", "FeedRate", "ToolWearPercent", "AxisPosition_X", "AxisPosition_Y", "AxisPosition_Z"} {
		a.set("Parameters", name, ua.MustVariant(0.0))
	}
	a.set("Parameters", "PartCount", ua.MustVariant(int32(0)))
	a.set("Parameters", "ProgramName", ua.MustVariant("G-Code_001"))
	a.set("Parameters", "MachineState", ua.MustVariant("IDLE"))
}

// buildPLCNodes mirrors _build_plc_nodes.
func buildPLCNodes(a *AddressSpace) {
	for _, name := range []string{"ProcessValue", "ControlOutput", "IntegralTerm", "DerivativeTerm", "Error"} {
		a.set("Parameters", name, ua.MustVariant(0.0))
	}
	a.set("Parameters", "Setpoint", ua.MustVariant(50.0))
	a.set("Parameters", "Mode", ua.MustVariant("AUTO"))
	a.set("Parameters", "HighAlarm", ua.MustVariant(false))
	a.set("Parameters", "LowAlarm", ua.MustVariant(false))
}

// buildRobotNodes mirrors _build_robot_nodes, sizing joint angle nodes
// from the device's configured joint_count.
func buildRobotNodes(a *AddressSpace, jointCount int) {
	if jointCount <= 0 {
		jointCount = 6
	}
	for i := 1; i <= jointCount; i++ {
		a.set("Parameters", fmt.Sprintf("JointAngle_%d", i), ua.MustVariant(0.0))
	}
	for _, name := range []string{"TCPPosition_X", "TCPPosition_Y", "TCPPosition_Z",
		"TCPOrientation_Rx", "TCPOrientation_Ry", "TCPOrientation_Rz", "CycleTime", "PayloadKg", "SpeedPercent"} {
		a.set("Parameters", name, ua.MustVariant(0.0))
	}
	a.set("Parameters", "ProgramState", ua.MustVariant("STOPPED"))
	a.set("Parameters", "CycleCount", ua.MustVariant(int32(0)))
}

// buildAddressSpace constructs the full node tree for deviceType,
// mirroring _build_address_space's dispatch.
func buildAddressSpace(deviceID, template string, deviceType generator.DeviceType, jointCount int) *AddressSpace {
	a := newAddressSpace(deviceID)
	buildCommonNodes(a, template)

	switch deviceType {
	case generator.CNCMachine:
		buildCNCNodes(a)
	case generator.PLCController:
		buildPLCNodes(a)
	case generator.IndustrialRobot:
		buildRobotNodes(a, jointCount)
	}
	return a
}
