package generator

import (
	"math"
	"time"
)

// robotMode is the industrial robot's operating mode, per spec.md §4.1.
type robotMode string

const (
	robotRunning robotMode = "RUNNING"
	robotPaused  robotMode = "PAUSED"
	robotStopped robotMode = "STOPPED"
)

const (
	robotMaxDegPerTick   = 3.0
	robotTargetTolerance = 5.0
)

// robotState tracks one robot's joint angles, per-joint targets, TCP
// position, and cycle count across ticks. stateTicks counts ticks spent
// in the current mode and gates the PAUSED->RUNNING and STOPPED->RUNNING
// transitions.
type robotState struct {
	initialized  bool
	mode         robotMode
	jointAngles  []float64
	jointTargets []float64
	cycleCount   int
	elapsed      int
	stateTicks   int
	payloadKg    float64
}

// tickRobot advances the robot's target-seeking joint simulation one step,
// per spec.md §4.1: joints move toward per-joint targets at up to 3° per
// tick with small jitter; once every joint is within 5° of its target, new
// uniform targets are drawn and the cycle counter increments. TCP position
// traces a smooth harmonic path in RUNNING and rests with tiny noise
// otherwise. Payload resamples with p=0.05 per tick.
func (g *Generator) tickRobot(now time.Time, fields map[string]any) {
	opt := g.cfg.Robot
	s := &g.robot
	jointCount := opt.JointCount
	if jointCount <= 0 {
		jointCount = 6
	}
	if !s.initialized {
		s.initialized = true
		s.mode = robotRunning
		s.jointAngles = make([]float64, jointCount)
		s.jointTargets = g.drawJointTargets(jointCount)
		s.payloadKg = opt.PayloadKg
	}
	if len(s.jointAngles) != jointCount {
		s.jointAngles = make([]float64, jointCount)
		s.jointTargets = g.drawJointTargets(jointCount)
	}
	s.elapsed++
	s.stateTicks++

	switch s.mode {
	case robotRunning:
		allWithinTolerance := true
		for i := range s.jointAngles {
			delta := s.jointTargets[i] - s.jointAngles[i]
			step := clip(delta, -robotMaxDegPerTick, robotMaxDegPerTick)
			s.jointAngles[i] = clip(s.jointAngles[i]+step+normClamped(g.rng, 0.3), -180, 180)
			if math.Abs(s.jointTargets[i]-s.jointAngles[i]) > robotTargetTolerance {
				allWithinTolerance = false
			}
		}
		if allWithinTolerance {
			s.jointTargets = g.drawJointTargets(jointCount)
			s.cycleCount++
		}

		if g.rng.Float64() < 0.05 {
			s.payloadKg = clip(opt.PayloadKg+normClamped(g.rng, opt.PayloadKg*0.02), 0, opt.PayloadKg*1.5)
		}

		if g.rng.Float64() < 0.008 {
			g.setRobotMode(s, robotPaused)
		} else if g.rng.Float64() < 0.003 {
			g.setRobotMode(s, robotStopped)
		}
	case robotPaused:
		if s.stateTicks > 3 && g.rng.Float64() < 0.20 {
			g.setRobotMode(s, robotRunning)
		}
	case robotStopped:
		if s.stateTicks > 5 && g.rng.Float64() < 0.12 {
			g.setRobotMode(s, robotRunning)
		}
	}

	var tcpX, tcpY, tcpZ float64
	if s.mode == robotRunning {
		tcpX = 500 * math.Sin(2*math.Pi*float64(s.elapsed)/120)
		tcpY = 500 * math.Sin(2*math.Pi*float64(s.elapsed)/80)
		tcpZ = 300 + 50*math.Sin(2*math.Pi*float64(s.elapsed)/200)
	} else {
		tcpX = normClamped(g.rng, 1)
		tcpY = normClamped(g.rng, 1)
		tcpZ = 300 + normClamped(g.rng, 1)
	}

	angles := make([]float64, len(s.jointAngles))
	for i, a := range s.jointAngles {
		angles[i] = round(a, 2)
	}

	fields["mode"] = string(s.mode)
	fields["joint_angles"] = angles
	fields["tcp_x"] = round(tcpX, 2)
	fields["tcp_y"] = round(tcpY, 2)
	fields["tcp_z"] = round(tcpZ, 2)
	fields["cycle_count"] = s.cycleCount
	fields["payload_kg"] = round(s.payloadKg, 2)
}

// setRobotMode transitions to mode and resets the age-gating tick counter.
func (g *Generator) setRobotMode(s *robotState, mode robotMode) {
	s.mode = mode
	s.stateTicks = 0
}

func (g *Generator) drawJointTargets(jointCount int) []float64 {
	targets := make([]float64, jointCount)
	for i := range targets {
		targets[i] = g.rng.Float64()*360 - 180
	}
	return targets
}
