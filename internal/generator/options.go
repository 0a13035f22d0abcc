package generator

import "github.com/mitchellh/mapstructure"

// Options holds the per-device-type tuning blocks a device's data_config
// may populate. Every block carries explicit defaults (spec.md §9 Design
// Notes: "Dynamic attribute-bag configuration" redesigned as a tagged
// variant); unknown keys inside a sub-block are preserved by mapstructure's
// metadata rather than rejected, and surfaced on Extra below.

// TemperatureOptions tunes the temperature sub-generator; each entry of
// HeatingPeriods is an "HH:MM-HH:MM" heating window.
type TemperatureOptions struct {
	BaseValue     float64  `mapstructure:"base_value"`
	Range         [2]float64 `mapstructure:"temperature_range"`
	DailyCycle    bool     `mapstructure:"daily_cycle_enabled"`
	Amplitude     float64  `mapstructure:"daily_amplitude"`
	PeakHour      float64  `mapstructure:"daily_peak_hour"`
	HeatingEnabled bool    `mapstructure:"heating_enabled"`
	HeatingPeriods []string `mapstructure:"heating_periods"`
	HeatingEffect float64  `mapstructure:"heating_effect"`
	NoiseStdDev   float64  `mapstructure:"noise_std_dev"`
	DriftEnabled  bool     `mapstructure:"drift_enabled"`
	DriftRate     float64  `mapstructure:"drift_rate"`
	Extra         map[string]any `mapstructure:",remain"`
}

func DefaultTemperatureOptions() TemperatureOptions {
	return TemperatureOptions{
		BaseValue:      25.0,
		Range:          [2]float64{18, 45},
		DailyCycle:     true,
		Amplitude:      5.0,
		PeakHour:       14.0,
		HeatingEnabled: false,
		HeatingPeriods: []string{"09:00-17:00"},
		HeatingEffect:  10.0,
		NoiseStdDev:    0.5,
		DriftEnabled:   false,
		DriftRate:      0.001,
	}
}

type HumidityOptions struct {
	BaseValue         float64    `mapstructure:"base_value"`
	Range             [2]float64 `mapstructure:"humidity_range"`
	Variation         float64    `mapstructure:"variation"`
	CorrelationFactor float64    `mapstructure:"correlation_factor"`
	Extra             map[string]any `mapstructure:",remain"`
}

func DefaultHumidityOptions() HumidityOptions {
	return HumidityOptions{BaseValue: 45.0, Range: [2]float64{30, 80}, Variation: 15.0, CorrelationFactor: -0.3}
}

type PressureOptions struct {
	BaseValue      float64    `mapstructure:"base_value"`
	Range          [2]float64 `mapstructure:"pressure_range"`
	CyclePeriod    float64    `mapstructure:"cycle_period"`
	CycleAmplitude float64    `mapstructure:"cycle_amplitude"`
	LoadFactor     float64    `mapstructure:"load_factor"`
	HighAlarm      float64    `mapstructure:"alarm_high_pressure"`
	Extra          map[string]any `mapstructure:",remain"`
}

func DefaultPressureOptions() PressureOptions {
	return PressureOptions{BaseValue: 150.0, Range: [2]float64{0, 300}, CyclePeriod: 300, CycleAmplitude: 20.0, LoadFactor: 1.0, HighAlarm: 250}
}

type FlowOptions struct {
	BaseValue          float64    `mapstructure:"base_value"`
	Range              [2]float64 `mapstructure:"flow_range"`
	PressureCorrelation float64   `mapstructure:"pressure_correlation"`
	LowFlowAlarm       float64    `mapstructure:"alarm_low_flow"`
	Extra              map[string]any `mapstructure:",remain"`
}

func DefaultFlowOptions() FlowOptions {
	return FlowOptions{BaseValue: 50.0, Range: [2]float64{10, 150}, PressureCorrelation: 0.5, LowFlowAlarm: 20}
}

type MotorOptions struct {
	SpeedBase          float64    `mapstructure:"speed_base_value"`
	SpeedRange         [2]float64 `mapstructure:"speed_range"`
	LoadVariation      float64    `mapstructure:"load_variation"`
	VibrationFrequency float64    `mapstructure:"vibration_frequency"`
	VibrationAmplitude float64    `mapstructure:"vibration_amplitude"`
	TorqueBase         float64    `mapstructure:"torque_base_value"`
	TorqueRange        [2]float64 `mapstructure:"torque_range"`
	PowerBase          float64    `mapstructure:"power_base_value"`
	PowerRange         [2]float64 `mapstructure:"power_range"`
	FaultProbability   float64    `mapstructure:"fault_probability"`
	FaultCodes         []int      `mapstructure:"fault_codes"`
	Extra              map[string]any `mapstructure:",remain"`
}

func DefaultMotorOptions() MotorOptions {
	return MotorOptions{
		SpeedBase: 1800.0, SpeedRange: [2]float64{0, 3600}, LoadVariation: 0.02,
		VibrationFrequency: 50, VibrationAmplitude: 10,
		TorqueBase: 100.0, TorqueRange: [2]float64{0, 500},
		PowerBase: 25.0, PowerRange: [2]float64{0, 100},
		FaultProbability: 0.001, FaultCodes: []int{0, 1, 2, 5, 8, 10},
	}
}

type EnvironmentalOptions struct {
	AQIBase  float64 `mapstructure:"aqi_base"`
	AQIRange [2]float64 `mapstructure:"aqi_range"`
	CO2Base  float64 `mapstructure:"co2_base"`
	CO2Range [2]float64 `mapstructure:"co2_range"`
	TVOCBase float64 `mapstructure:"tvoc_base"`
	TVOCRange [2]float64 `mapstructure:"tvoc_range"`
	PressureHpaBase float64 `mapstructure:"pressure_hpa_base"`
	PressureHpaRange [2]float64 `mapstructure:"pressure_hpa_range"`
	Extra    map[string]any `mapstructure:",remain"`
}

func DefaultEnvironmentalOptions() EnvironmentalOptions {
	return EnvironmentalOptions{
		AQIBase: 50, AQIRange: [2]float64{0, 500},
		CO2Base: 450, CO2Range: [2]float64{350, 2000},
		TVOCBase: 200, TVOCRange: [2]float64{0, 2000},
		PressureHpaBase: 1013.25, PressureHpaRange: [2]float64{950, 1050},
	}
}

type EnergyMeterOptions struct {
	VoltageBase   float64    `mapstructure:"voltage_base"`
	VoltageRange  [2]float64 `mapstructure:"voltage_range"`
	CurrentBase   float64    `mapstructure:"current_base"`
	CurrentRange  [2]float64 `mapstructure:"current_range"`
	PowerFactorBase float64  `mapstructure:"power_factor_base"`
	Phase         string     `mapstructure:"phase"`
	Extra         map[string]any `mapstructure:",remain"`
}

func DefaultEnergyMeterOptions() EnergyMeterOptions {
	return EnergyMeterOptions{
		VoltageBase: 230.0, VoltageRange: [2]float64{200, 250},
		CurrentBase: 10.0, CurrentRange: [2]float64{0, 100},
		PowerFactorBase: 0.95, Phase: "L1",
	}
}

type AssetTrackerOptions struct {
	Zones             []string `mapstructure:"zones"`
	RSSIRange         [2]float64 `mapstructure:"rssi_range"`
	BatteryDrainPerTick float64 `mapstructure:"battery_drain_per_tick"`
	WorkHourStart     int      `mapstructure:"work_hour_start"`
	WorkHourEnd       int      `mapstructure:"work_hour_end"`
	Gateways          []string `mapstructure:"gateways"`
	Extra             map[string]any `mapstructure:",remain"`
}

func DefaultAssetTrackerOptions() AssetTrackerOptions {
	return AssetTrackerOptions{
		Zones:               []string{"zone_a", "zone_b", "zone_c", "zone_d"},
		RSSIRange:           [2]float64{-100, -40},
		BatteryDrainPerTick: 0.01,
		WorkHourStart:       7,
		WorkHourEnd:         19,
		Gateways:            []string{"gateway_1", "gateway_2", "gateway_3"},
	}
}

type CNCOptions struct {
	SpindleSpeedBase float64    `mapstructure:"spindle_speed_base"`
	SpindleSpeedRange [2]float64 `mapstructure:"spindle_speed_range"`
	FeedRateBase     float64    `mapstructure:"feed_rate_base"`
	FeedRateRange    [2]float64 `mapstructure:"feed_rate_range"`
	ToolWearRate     float64    `mapstructure:"tool_wear_rate"`
	Programs         []string   `mapstructure:"programs"`
	Extra            map[string]any `mapstructure:",remain"`
}

func DefaultCNCOptions() CNCOptions {
	return CNCOptions{
		SpindleSpeedBase: 8000, SpindleSpeedRange: [2]float64{0, 12000},
		FeedRateBase: 300, FeedRateRange: [2]float64{0, 1000},
		ToolWearRate: 0.02,
		Programs:     []string{"G-Code_001", "G-Code_002", "G-Code_003"},
	}
}

type PLCOptions struct {
	SetpointBase       float64    `mapstructure:"setpoint_base"`
	ProcessValueRange  [2]float64 `mapstructure:"process_value_range"`
	KP                 float64    `mapstructure:"kp"`
	KI                 float64    `mapstructure:"ki"`
	KD                 float64    `mapstructure:"kd"`
	ManualOutput       float64    `mapstructure:"manual_output"`
	Extra              map[string]any `mapstructure:",remain"`
}

func DefaultPLCOptions() PLCOptions {
	return PLCOptions{SetpointBase: 50.0, ProcessValueRange: [2]float64{0, 100}, KP: 1.2, KI: 0.3, KD: 0.1, ManualOutput: 50.0}
}

type RobotOptions struct {
	JointCount  int     `mapstructure:"joint_count"`
	PayloadKg   float64 `mapstructure:"payload_kg"`
	SpeedPercent float64 `mapstructure:"speed_percent"`
	Extra       map[string]any `mapstructure:",remain"`
}

func DefaultRobotOptions() RobotOptions {
	return RobotOptions{JointCount: 6, PayloadKg: 5.0, SpeedPercent: 80.0}
}

// PatternConfig aggregates the decoded per-subsystem option blocks for one
// device, built from the free-form data_config map (spec.md §3 "Device
// configuration (per group)": "per-type data configuration (free-form
// mapping of option name -> value)").
type PatternConfig struct {
	Temperature   TemperatureOptions
	Humidity      HumidityOptions
	Pressure      PressureOptions
	Flow          FlowOptions
	Motor         MotorOptions
	Environmental EnvironmentalOptions
	EnergyMeter   EnergyMeterOptions
	AssetTracker  AssetTrackerOptions
	CNC           CNCOptions
	PLC           PLCOptions
	Robot         RobotOptions
}

// NewPatternConfig decodes raw (a device's data_config map) into the
// typed option blocks, starting from defaults for every block so missing
// keys fall back cleanly.
func NewPatternConfig(raw map[string]any) PatternConfig {
	pc := PatternConfig{
		Temperature:   DefaultTemperatureOptions(),
		Humidity:      DefaultHumidityOptions(),
		Pressure:      DefaultPressureOptions(),
		Flow:          DefaultFlowOptions(),
		Motor:         DefaultMotorOptions(),
		Environmental: DefaultEnvironmentalOptions(),
		EnergyMeter:   DefaultEnergyMeterOptions(),
		AssetTracker:  DefaultAssetTrackerOptions(),
		CNC:           DefaultCNCOptions(),
		PLC:           DefaultPLCOptions(),
		Robot:         DefaultRobotOptions(),
	}
	if raw == nil {
		return pc
	}
	decodeInto(raw, "temperature", &pc.Temperature)
	decodeInto(raw, "humidity", &pc.Humidity)
	decodeInto(raw, "pressure", &pc.Pressure)
	decodeInto(raw, "flow_rate", &pc.Flow)
	decodeInto(raw, "motor", &pc.Motor)
	decodeInto(raw, "environmental", &pc.Environmental)
	decodeInto(raw, "energy_meter", &pc.EnergyMeter)
	decodeInto(raw, "asset_tracker", &pc.AssetTracker)
	decodeInto(raw, "cnc", &pc.CNC)
	decodeInto(raw, "plc", &pc.PLC)
	decodeInto(raw, "robot", &pc.Robot)
	return pc
}

func decodeInto(raw map[string]any, key string, dst any) {
	sub, ok := raw[key]
	if !ok {
		return
	}
	subMap, ok := sub.(map[string]any)
	if !ok {
		return
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dst,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return
	}
	_ = dec.Decode(subMap)
}
