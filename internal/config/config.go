// Package config defines the recognized configuration tree the
// orchestrator consumes (spec.md §6) and loads it from YAML. Unknown keys
// are permitted for forward compatibility and retained in per-device Extra
// maps rather than rejected, mirroring the Pydantic `extra = "allow"`
// behavior of original_source/src/config_parser.py.
package config

import (
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/industrial-sim/protocol-sim-engine/internal/simerr"
)

// FacilityConfig describes the simulated plant.
type FacilityConfig struct {
	Name          string `yaml:"name" validate:"required"`
	Description   string `yaml:"description,omitempty"`
	Location      string `yaml:"location,omitempty"`
	ShiftSchedule string `yaml:"shift_schedule,omitempty"`
}

// SimulationConfig holds global simulation knobs.
type SimulationConfig struct {
	TimeAcceleration  float64 `yaml:"time_acceleration" validate:"gt=0"`
	FaultInjectionRate float64 `yaml:"fault_injection_rate" validate:"gte=0,lte=1"`
	DataRetention     string  `yaml:"data_retention,omitempty"`
}

// PortRange is an inclusive [start,end] TCP port range for one protocol pool.
type PortRange struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// UnmarshalYAML accepts the original two-element-list form ([start, end])
// used throughout original_source/src/config_parser.py.
func (p *PortRange) UnmarshalYAML(value *yaml.Node) error {
	var pair [2]int
	if err := value.Decode(&pair); err != nil {
		return fmt.Errorf("port range must be a [start, end] pair: %w", err)
	}
	p.Start, p.End = pair[0], pair[1]
	return nil
}

// NetworkConfig carries the base IP (informational only) and the per-
// protocol port pools.
type NetworkConfig struct {
	BaseIP     string               `yaml:"base_ip,omitempty"`
	PortRanges map[string]PortRange `yaml:"port_ranges"`
}

// DefaultNetworkConfig mirrors config_parser.py's NetworkConfig defaults.
func DefaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		BaseIP: "192.168.100.0/24",
		PortRanges: map[string]PortRange{
			"modbus": {Start: 5020, End: 5500},
			"opcua":  {Start: 4840, End: 4940},
			"mqtt":   {Start: 1883, End: 1883},
			"http":   {Start: 3000, End: 3200},
		},
	}
}

// DeviceConfig is the common shape every device-group entry shares, per
// spec.md §3 "Device configuration (per group)". Protocol-specific extras
// (port_start, base_topic, qos, retain) are optional fields of the same
// struct; keys it does not recognize land in Extra via yaml inline.
type DeviceConfig struct {
	Count           int            `yaml:"count" validate:"gt=0,lte=1000"`
	DeviceTemplate  string         `yaml:"device_template" validate:"required"`
	UpdateInterval  float64        `yaml:"update_interval" validate:"gt=0"`
	Locations       []string       `yaml:"locations,omitempty"`
	DataConfig      map[string]any `yaml:"data_config,omitempty"`

	// Modbus / OPC-UA only.
	PortStart int `yaml:"port_start,omitempty"`

	// MQTT only.
	BaseTopic string `yaml:"base_topic,omitempty"`
	QoS       byte   `yaml:"qos,omitempty" validate:"gte=0,lte=2"`
	Retain    bool   `yaml:"retain,omitempty"`

	// Extra retains any keys this struct doesn't recognize, for forward
	// compatibility (spec.md §6: "Unknown keys are permitted").
	Extra map[string]any `yaml:",inline"`
}

// ModbusConfig is the modbus_tcp protocol block.
type ModbusConfig struct {
	Enabled bool                    `yaml:"enabled"`
	Devices map[string]DeviceConfig `yaml:"devices" validate:"dive"`
}

// OPCUAConfig is the opcua protocol block.
type OPCUAConfig struct {
	Enabled         bool                    `yaml:"enabled"`
	SecurityMode    string                  `yaml:"security_mode,omitempty"`
	SecurityPolicy  string                  `yaml:"security_policy,omitempty"`
	ApplicationURI  string                  `yaml:"application_uri,omitempty"`
	Devices         map[string]DeviceConfig `yaml:"devices" validate:"dive"`
}

// MQTTConfig is the mqtt protocol block.
type MQTTConfig struct {
	Enabled           bool                    `yaml:"enabled"`
	UseEmbeddedBroker bool                    `yaml:"use_embedded_broker"`
	BrokerHost        string                  `yaml:"broker_host"`
	BrokerPort        int                     `yaml:"broker_port" validate:"gte=1024,lte=65535"`
	ClientIDPrefix    string                  `yaml:"client_id_prefix,omitempty"`
	Devices           map[string]DeviceConfig `yaml:"devices" validate:"dive"`
}

// IndustrialProtocolsConfig groups the three protocol blocks. Any of the
// three may be nil/disabled.
type IndustrialProtocolsConfig struct {
	ModbusTCP *ModbusConfig `yaml:"modbus_tcp,omitempty"`
	MQTT      *MQTTConfig   `yaml:"mqtt,omitempty"`
	OPCUA     *OPCUAConfig  `yaml:"opcua,omitempty"`
}

// FacilityFile is the root configuration document.
type FacilityFile struct {
	Facility            FacilityConfig            `yaml:"facility" validate:"required"`
	Simulation          SimulationConfig          `yaml:"simulation"`
	Network             NetworkConfig             `yaml:"network"`
	IndustrialProtocols IndustrialProtocolsConfig `yaml:"industrial_protocols"`
}

var validate = validator.New()

// Load parses and validates a facility configuration document from r.
func Load(r io.Reader) (*FacilityFile, error) {
	cfg := FacilityFile{
		Simulation: SimulationConfig{TimeAcceleration: 1.0, FaultInjectionRate: 0.02, DataRetention: "24h"},
		Network:    DefaultNetworkConfig(),
	}

	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse facility config: %w", err)
	}

	if cfg.Network.PortRanges == nil {
		cfg.Network.PortRanges = DefaultNetworkConfig().PortRanges
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate facility config: %w: %w", simerr.ErrConfigInvalid, err)
	}

	return &cfg, nil
}

// LoadFile loads a configuration document from disk.
func LoadFile(path string) (*FacilityFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open facility config %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// EnabledProtocols reports which protocol names are enabled, in a stable
// order (modbus_tcp, mqtt, opcua), mirroring
// config_parser.py:_get_enabled_protocols.
func (f *FacilityFile) EnabledProtocols() []string {
	var out []string
	if f.IndustrialProtocols.ModbusTCP != nil && f.IndustrialProtocols.ModbusTCP.Enabled {
		out = append(out, "modbus_tcp")
	}
	if f.IndustrialProtocols.MQTT != nil && f.IndustrialProtocols.MQTT.Enabled {
		out = append(out, "mqtt")
	}
	if f.IndustrialProtocols.OPCUA != nil && f.IndustrialProtocols.OPCUA.Enabled {
		out = append(out, "opcua")
	}
	return out
}
