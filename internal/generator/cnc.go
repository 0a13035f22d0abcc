package generator

import (
	"math"
	"time"
)

// cncMode is the CNC machine's operating mode, per spec.md §4.1.
type cncMode string

const (
	cncRunning cncMode = "RUNNING"
	cncIdle    cncMode = "IDLE"
	cncError   cncMode = "ERROR"
	cncSetup   cncMode = "SETUP"
)

// cncState tracks one CNC machine's running simulation state across ticks.
// stateTicks counts ticks spent in the current mode and is reset on every
// transition; it gates the ERROR->IDLE and SETUP->RUNNING edges.
type cncState struct {
	initialized  bool
	mode         cncMode
	spindleSpeed float64
	feedRate     float64
	toolWear     float64
	partCount    int
	program      string
	stateTicks   int
}

// tickCNC advances the CNC state machine one step and writes its fields,
// per spec.md §4.1's CNC transition table: from RUNNING, small independent
// chances of ERROR, of dropping to IDLE, and of incrementing part count;
// from IDLE, chances of resuming RUNNING or moving to SETUP for a tooling
// change; ERROR recovers to IDLE only once it has aged past state_ticks>5;
// SETUP loads a new program and returns to RUNNING once aged past
// state_ticks>3.
func (g *Generator) tickCNC(now time.Time, fields map[string]any) {
	opt := g.cfg.CNC
	s := &g.cnc
	if !s.initialized {
		s.initialized = true
		s.mode = cncRunning
		s.program = g.pickProgram(opt)
		s.spindleSpeed = opt.SpindleSpeedBase
		s.feedRate = opt.FeedRateBase
	}
	s.stateTicks++

	switch s.mode {
	case cncRunning:
		target := clip(opt.SpindleSpeedBase+normClamped(g.rng, opt.SpindleSpeedBase*0.03), opt.SpindleSpeedRange[0], opt.SpindleSpeedRange[1])
		s.spindleSpeed = clip(s.spindleSpeed+0.3*(target-s.spindleSpeed), opt.SpindleSpeedRange[0], opt.SpindleSpeedRange[1])
		feedTarget := clip(opt.FeedRateBase+normClamped(g.rng, opt.FeedRateBase*0.05), opt.FeedRateRange[0], opt.FeedRateRange[1])
		s.feedRate = clip(s.feedRate+0.3*(feedTarget-s.feedRate), opt.FeedRateRange[0], opt.FeedRateRange[1])

		s.toolWear += opt.ToolWearRate + normClamped(g.rng, 0.003)
		if s.toolWear >= 90 {
			s.toolWear = 0
			g.setCNCMode(s, cncSetup)
		} else if g.rng.Float64() < 0.08 {
			s.partCount++
		}

		if s.mode == cncRunning {
			if g.rng.Float64() < 0.005 {
				g.setCNCMode(s, cncError)
			} else if g.rng.Float64() < 0.010 {
				g.setCNCMode(s, cncIdle)
			}
		}
	case cncIdle:
		s.spindleSpeed *= 0.7
		s.feedRate *= 0.7
		if g.rng.Float64() < 0.15 {
			g.setCNCMode(s, cncRunning)
		} else if g.rng.Float64() < 0.03 {
			g.setCNCMode(s, cncSetup)
		}
	case cncError:
		s.spindleSpeed *= 0.7
		s.feedRate *= 0.7
		if s.stateTicks > 5 && g.rng.Float64() < 0.25 {
			g.setCNCMode(s, cncIdle)
		}
	case cncSetup:
		s.spindleSpeed = g.rng.Float64() * opt.SpindleSpeedBase * 0.05
		s.feedRate = g.rng.Float64() * opt.FeedRateBase * 0.05
		if s.stateTicks > 3 && g.rng.Float64() < 0.20 {
			s.program = g.pickProgram(opt)
			g.setCNCMode(s, cncRunning)
		}
	}

	var axisX, axisY float64
	if s.mode == cncRunning {
		angle := 2 * math.Pi * float64(s.stateTicks) / 50
		axisX = 100 * math.Sin(angle)
		axisY = 100 * math.Sin(2*angle)
	} else {
		axisX = normClamped(g.rng, 1)
		axisY = normClamped(g.rng, 1)
	}

	fields["mode"] = string(s.mode)
	fields["spindle_speed"] = round(s.spindleSpeed, 1)
	fields["feed_rate"] = round(s.feedRate, 1)
	fields["tool_wear_pct"] = round(clip(s.toolWear, 0, 100), 2)
	fields["part_count"] = s.partCount
	fields["program"] = s.program
	fields["axis_x"] = round(axisX, 2)
	fields["axis_y"] = round(axisY, 2)
}

// setCNCMode transitions to mode and resets the age-gating tick counter.
func (g *Generator) setCNCMode(s *cncState, mode cncMode) {
	s.mode = mode
	s.stateTicks = 0
}

func (g *Generator) pickProgram(o CNCOptions) string {
	if len(o.Programs) == 0 {
		return "G-Code_001"
	}
	return o.Programs[g.rng.Intn(len(o.Programs))]
}
