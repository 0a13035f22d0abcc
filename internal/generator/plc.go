package generator

import "time"

// plcMode is the PLC controller's operating mode, per spec.md §4.1.
type plcMode string

const (
	plcAuto    plcMode = "AUTO"
	plcManual  plcMode = "MANUAL"
	plcCascade plcMode = "CASCADE"
)

// plcState tracks one PLC's process variable, setpoint, and PID terms
// across ticks.
type plcState struct {
	initialized bool
	mode        plcMode
	setpoint    float64
	processVar  float64
	integral    float64
	lastError   float64
	output      float64
	alarm       bool
}

// tickPLC runs one PID control step and the mode transition checks, per
// spec.md §4.1: four independent transitions (CASCADE never goes to
// MANUAL), a slow setpoint drift, and the documented PID process-value
// update in AUTO/CASCADE versus a constant-output update in MANUAL.
func (g *Generator) tickPLC(now time.Time, fields map[string]any) {
	opt := g.cfg.PLC
	s := &g.plc
	if !s.initialized {
		s.initialized = true
		s.mode = plcAuto
		s.setpoint = opt.SetpointBase
		s.processVar = opt.SetpointBase
	}

	switch s.mode {
	case plcAuto:
		if g.rng.Float64() < 0.005 {
			s.mode = plcManual
		} else if g.rng.Float64() < 0.003 {
			s.mode = plcCascade
		}
	case plcManual:
		if g.rng.Float64() < 0.08 {
			s.mode = plcAuto
		}
	case plcCascade:
		if g.rng.Float64() < 0.03 {
			s.mode = plcAuto
		}
	}

	if g.rng.Float64() < 0.01 {
		lo := opt.ProcessValueRange[0] + 10
		hi := opt.ProcessValueRange[1] - 10
		s.setpoint = clip(s.setpoint+(g.rng.Float64()*2-1)*5, lo, hi)
	}

	if s.mode == plcManual {
		s.output = opt.ManualOutput
		s.processVar = clip(s.processVar+normClamped(g.rng, 1), opt.ProcessValueRange[0], opt.ProcessValueRange[1])
	} else {
		s.output = g.pidStep(opt, s)
	}

	s.alarm = s.processVar > 0.9*opt.ProcessValueRange[1] || s.processVar < 0.1*opt.ProcessValueRange[1]

	fields["mode"] = string(s.mode)
	fields["setpoint"] = round(s.setpoint, 2)
	fields["process_value"] = round(s.processVar, 2)
	fields["output_pct"] = round(s.output, 2)
	fields["alarm_active"] = s.alarm
}

// pidStep runs one PID iteration shared by AUTO and CASCADE, per spec.md
// §4.1: error = setpoint-pv; integral clipped to [-50,50]; output clipped
// to [0,100]; pv updated by 0.1*u - 5.0 plus noise.
func (g *Generator) pidStep(opt PLCOptions, s *plcState) float64 {
	errVal := s.setpoint - s.processVar
	s.integral = clip(s.integral+opt.KI*errVal, -50, 50)
	derivative := errVal - s.lastError
	s.lastError = errVal

	output := clip(opt.KP*errVal+s.integral+opt.KD*derivative, 0, 100)

	s.processVar = clip(s.processVar+0.1*output-5.0+normClamped(g.rng, 2), opt.ProcessValueRange[0], opt.ProcessValueRange[1])
	return output
}
