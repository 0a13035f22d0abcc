package generator

import (
	"math"
	"math/rand"

	"github.com/industrial-sim/protocol-sim-engine/internal/clock"
)

// Generator produces one Snapshot per tick for a single device. All
// randomness flows through a PRNG seeded from the device id, so replaying
// the same clock sequence against a fresh Generator for the same id
// reproduces the same values (spec.md Design Note on determinism).
type Generator struct {
	deviceID string
	rng      *rand.Rand
	clk      clock.Clock
	cfg      PatternConfig

	last  map[string]float64
	drift map[string]float64

	cnc   cncState
	plc   plcState
	robot robotState

	started bool
}

// New builds a Generator for deviceID using the decoded pattern options
// and the shared clock the owning device was constructed with.
func New(deviceID string, cfg PatternConfig, clk clock.Clock) *Generator {
	return &Generator{
		deviceID: deviceID,
		rng:      rand.New(rand.NewSource(seedFromDeviceID(deviceID))),
		clk:      clk,
		cfg:      cfg,
		last:     make(map[string]float64),
		drift:    make(map[string]float64),
	}
}

// Produce generates one data snapshot for the given device type, dispatching
// to the matching sub-generator the way
// original_source/src/data_patterns/industrial_patterns.py's
// generate_device_data does.
func (g *Generator) Produce(deviceType DeviceType) Snapshot {
	now := g.clk.Now()
	fields := map[string]any{}

	switch deviceType {
	case TemperatureSensor:
		temp := g.generateTemperature(now)
		fields["temperature"] = temp
		fields["humidity"] = g.generateHumidity(now, temp)
		fields["unit"] = "celsius"
	case PressureTransmitter:
		pressure := g.generatePressure(now)
		fields["pressure"] = pressure
		fields["flow_rate"] = g.generateFlowRate(now, pressure)
		fields["unit"] = "psi"
	case MotorDrive:
		speed := g.generateMotorSpeed(now)
		torque := g.generateMotorTorque(speed)
		fields["motor_speed"] = speed
		fields["motor_torque"] = torque
		fields["power_consumption"] = g.generatePowerConsumption(speed, torque)
		fields["fault_code"] = g.generateFaultCode()
	case GenericSensor:
		temp := g.generateTemperature(now)
		fields["temperature"] = temp
		fields["humidity"] = g.generateHumidity(now, temp)
	case EnvironmentalSensor:
		g.generateEnvironmental(fields)
	case EnergyMeter:
		g.generateEnergyMeter(fields)
	case AssetTracker:
		g.generateAssetTracker(now, fields)
	case CNCMachine:
		g.tickCNC(now, fields)
	case PLCController:
		g.tickPLC(now, fields)
	case IndustrialRobot:
		g.tickRobot(now, fields)
	default:
		fields["value"] = round(g.rng.Float64()*100, 2)
	}

	return Snapshot{Timestamp: now, DeviceID: g.deviceID, DeviceType: deviceType, Fields: fields}
}

func normClamped(rng *rand.Rand, stddev float64) float64 {
	if stddev <= 0 {
		return 0
	}
	return rng.NormFloat64() * stddev
}

func dailyCycle(hour float64, amplitude, peakHour float64) float64 {
	return amplitude * math.Sin(2*math.Pi*(hour-peakHour+6)/24)
}
