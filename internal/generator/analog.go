package generator

import (
	"math"
	"strings"
	"time"
)

// generateTemperature mirrors
// original_source/src/data_patterns/industrial_patterns.py:generate_temperature
// a base value, an optional daily sinusoidal cycle peaking at peak_hour, an
// optional heating-period boost, gaussian noise, and slow drift, clipped to
// the configured range.
func (g *Generator) generateTemperature(now time.Time) float64 {
	opt := g.cfg.Temperature
	value := opt.BaseValue

	if opt.DailyCycle {
		hour := float64(now.Hour()) + float64(now.Minute())/60
		value += dailyCycle(hour, opt.Amplitude, opt.PeakHour)
	}

	if opt.HeatingEnabled && withinAnyPeriod(now, opt.HeatingPeriods) {
		value += opt.HeatingEffect
	}

	value += normClamped(g.rng, opt.NoiseStdDev)

	if opt.DriftEnabled {
		g.drift["temperature"] += opt.DriftRate
		value += g.drift["temperature"]
	}

	value = clip(value, opt.Range[0], opt.Range[1])
	g.last["temperature"] = value
	return round(value, 2)
}

// generateHumidity correlates with the most recently generated temperature
// via correlation_factor, per industrial_patterns.py:generate_humidity.
func (g *Generator) generateHumidity(now time.Time, temperature float64) float64 {
	opt := g.cfg.Humidity
	tempDelta := temperature - 25.0 // fixed baseline per the spec's Open Question decision
	value := opt.BaseValue + tempDelta*opt.CorrelationFactor
	value += normClamped(g.rng, opt.Variation/10)
	value = clip(value, opt.Range[0], opt.Range[1])
	return round(value, 2)
}

// generatePressure mirrors industrial_patterns.py:generate_pressure: a base
// value plus a slow sinusoidal operational cycle scaled by a load factor.
func (g *Generator) generatePressure(now time.Time) float64 {
	opt := g.cfg.Pressure
	seconds := float64(now.Unix() % int64(opt.CyclePeriod))
	cycle := opt.CycleAmplitude * sin2pi(seconds/opt.CyclePeriod)
	value := (opt.BaseValue + cycle) * opt.LoadFactor
	value += normClamped(g.rng, opt.BaseValue*0.01)
	value = clip(value, opt.Range[0], opt.Range[1])
	g.last["pressure"] = value
	return round(value, 2)
}

// generateFlowRate correlates with the most recent pressure reading, per
// industrial_patterns.py:generate_flow_rate.
func (g *Generator) generateFlowRate(now time.Time, pressure float64) float64 {
	opt := g.cfg.Flow
	pressureDelta := pressure - g.cfg.Pressure.BaseValue
	value := opt.BaseValue + pressureDelta*opt.PressureCorrelation
	value += normClamped(g.rng, opt.BaseValue*0.02)
	value = clip(value, opt.Range[0], opt.Range[1])
	return round(value, 2)
}

// generateMotorSpeed mirrors industrial_patterns.py:generate_motor_speed: a
// base speed with proportional load variation noise plus a vibration
// component riding on top of it.
func (g *Generator) generateMotorSpeed(now time.Time) float64 {
	opt := g.cfg.Motor
	value := opt.SpeedBase * (1 + normClamped(g.rng, opt.LoadVariation))
	seconds := float64(now.UnixMilli()) / 1000
	value += opt.VibrationAmplitude * math.Sin(2*math.Pi*opt.VibrationFrequency*seconds)
	value = clip(value, opt.SpeedRange[0], opt.SpeedRange[1])
	g.last["motor_speed"] = value
	return round(value, 1)
}

// generateMotorTorque derives torque from speed, per
// industrial_patterns.py:generate_motor_torque: torque falls off as speed
// approaches the 1800 rpm reference, plus Gaussian load noise.
func (g *Generator) generateMotorTorque(speed float64) float64 {
	opt := g.cfg.Motor
	value := opt.TorqueBase * (1.2 - 0.4*speed/1800)
	value += normClamped(g.rng, opt.TorqueBase*0.05)
	value = clip(value, opt.TorqueRange[0], opt.TorqueRange[1])
	return round(value, 1)
}

// generatePowerConsumption derives power from torque and speed, per
// industrial_patterns.py:generate_power_consumption: real power in kW is
// torque*speed/9549 when both are available, scaled by a Gaussian
// efficiency factor plus electrical noise; falls back to the configured
// base when torque is unavailable.
func (g *Generator) generatePowerConsumption(speed, torque float64) float64 {
	opt := g.cfg.Motor
	value := opt.PowerBase
	if speed > 0 && torque > 0 {
		value = torque * speed / 9549
	}
	efficiency := clip(0.95+normClamped(g.rng, 0.05), 0.7, 1.1)
	value *= efficiency
	value += normClamped(g.rng, opt.PowerBase*0.02)
	value = clip(value, opt.PowerRange[0], opt.PowerRange[1])
	return round(value, 2)
}

// generateFaultCode samples a fault code with low probability, per
// industrial_patterns.py:generate_fault_code.
func (g *Generator) generateFaultCode() int {
	opt := g.cfg.Motor
	if g.rng.Float64() < opt.FaultProbability {
		if len(opt.FaultCodes) > 1 {
			return opt.FaultCodes[1+g.rng.Intn(len(opt.FaultCodes)-1)]
		}
	}
	if len(opt.FaultCodes) > 0 {
		return opt.FaultCodes[0]
	}
	return 0
}

// generateEnvironmental is a spec-only device type (not present in
// original_source): air quality metrics per spec.md §4.1, built directly
// from the environmental option defaults with gaussian noise about the
// configured base.
func (g *Generator) generateEnvironmental(fields map[string]any) {
	opt := g.cfg.Environmental
	aqi := clip(opt.AQIBase+normClamped(g.rng, opt.AQIBase*0.1), opt.AQIRange[0], opt.AQIRange[1])
	co2 := clip(opt.CO2Base+normClamped(g.rng, opt.CO2Base*0.02), opt.CO2Range[0], opt.CO2Range[1])
	tvoc := clip(opt.TVOCBase+normClamped(g.rng, opt.TVOCBase*0.1), opt.TVOCRange[0], opt.TVOCRange[1])
	pressureHpa := clip(opt.PressureHpaBase+normClamped(g.rng, 0.5), opt.PressureHpaRange[0], opt.PressureHpaRange[1])
	fields["aqi"] = round(aqi, 1)
	fields["co2_ppm"] = round(co2, 1)
	fields["tvoc_ppb"] = round(tvoc, 1)
	fields["pressure_hpa"] = round(pressureHpa, 2)
}

// generateEnergyMeter is a spec-only device type: three-phase voltage,
// current, power factor, and derived real power, per spec.md §4.1.
func (g *Generator) generateEnergyMeter(fields map[string]any) {
	opt := g.cfg.EnergyMeter
	voltage := clip(opt.VoltageBase+normClamped(g.rng, 2), opt.VoltageRange[0], opt.VoltageRange[1])
	current := clip(opt.CurrentBase+normClamped(g.rng, opt.CurrentBase*0.1), opt.CurrentRange[0], opt.CurrentRange[1])
	powerFactor := clip(opt.PowerFactorBase+normClamped(g.rng, 0.02), 0, 1)
	realPower := voltage * current * powerFactor / 1000
	fields["voltage"] = round(voltage, 1)
	fields["current"] = round(current, 2)
	fields["power_factor"] = round(powerFactor, 3)
	fields["real_power_kw"] = round(realPower, 3)
	fields["phase"] = opt.Phase
}

// generateAssetTracker is a spec-only device type: zone occupancy, RSSI to
// the nearest gateway, and a monotonically draining battery, per spec.md
// §4.1.
func (g *Generator) generateAssetTracker(now time.Time, fields map[string]any) {
	opt := g.cfg.AssetTracker
	if len(opt.Zones) == 0 {
		opt.Zones = []string{"zone_a"}
	}
	if len(opt.Gateways) == 0 {
		opt.Gateways = []string{"gateway_1"}
	}
	zone := opt.Zones[g.rng.Intn(len(opt.Zones))]
	gateway := opt.Gateways[g.rng.Intn(len(opt.Gateways))]
	rssi := opt.RSSIRange[0] + g.rng.Float64()*(opt.RSSIRange[1]-opt.RSSIRange[0])

	battery, ok := g.last["battery_pct"]
	if !ok {
		battery = 100.0
	}
	battery = clip(battery-opt.BatteryDrainPerTick, 0, 100)
	g.last["battery_pct"] = battery

	hour := now.Hour()
	moving := hour >= opt.WorkHourStart && hour < opt.WorkHourEnd

	fields["zone"] = zone
	fields["gateway"] = gateway
	fields["rssi"] = round(rssi, 1)
	fields["battery_pct"] = round(battery, 2)
	fields["moving"] = moving
}

func withinAnyPeriod(now time.Time, periods []string) bool {
	for _, p := range periods {
		if withinPeriod(now, p) {
			return true
		}
	}
	return false
}

// withinPeriod parses an "HH:MM-HH:MM" window and reports whether now falls
// inside it, per industrial_patterns.py's heating-period handling.
func withinPeriod(now time.Time, period string) bool {
	parts := strings.SplitN(period, "-", 2)
	if len(parts) != 2 {
		return false
	}
	start, err1 := time.Parse("15:04", parts[0])
	end, err2 := time.Parse("15:04", parts[1])
	if err1 != nil || err2 != nil {
		return false
	}
	cur := now.Hour()*60 + now.Minute()
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()
	if startMin <= endMin {
		return cur >= startMin && cur < endMin
	}
	return cur >= startMin || cur < endMin
}

func sin2pi(fraction float64) float64 {
	return math.Sin(2 * math.Pi * fraction)
}
