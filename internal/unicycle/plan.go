package unicycle

import (
	"math"
	"sort"
	"time"

	"github.com/golang/geo/r2"
)

// cycle is one step cycle: the interval between two consecutive impacts.
// The swing foot lifts off at Start plus the double-support window and
// touches down exactly at End.
type cycle struct {
	Start     time.Duration
	End       time.Duration
	SwingLeft bool

	// Pose of the stance foot holding the robot during this cycle.
	StancePos r2.Point
	StanceYaw float64

	// ZMP anchor for the DCM generator: stance foot pose shifted by the
	// per-foot ZMP delta rotated into the world frame.
	ZMP r2.Point
}

// plan rebuilds the whole trajectory over [initTime, endTime], anchored at
// the given stance foot pose. Every output buffer is recomputed.
func (g *Generator) plan(initTime, dt, endTime time.Duration,
	stanceLeft bool, stancePos r2.Point, stanceYaw float64) error {

	cfg := g.cfg
	T := clampDuration(cfg.NominalDuration, cfg.MinStepDuration, cfg.MaxStepDuration)
	Ts := T.Seconds()
	ds := time.Duration(cfg.SwitchOverSwingRatio * float64(T))

	// Unicycle pose from the stance foot: the unicycle sits half the
	// nominal width inboard of the foot, and the foot yaw is corrected by
	// its calibration offset.
	thetaU := stanceYaw - g.yawOffset(stanceLeft)
	posU := stancePos.Add(rotate(r2.Point{X: 0, Y: -g.footLateralOffset(stanceLeft)}, thetaU))

	// Initial placements: the stance foot at its measured pose, the other
	// foot mirrored across the unicycle.
	leftPos, leftYaw := stancePos, stanceYaw
	rightPos, rightYaw := stancePos, stanceYaw
	if stanceLeft {
		rightPos = posU.Add(rotate(r2.Point{X: 0, Y: g.footLateralOffset(false)}, thetaU))
		rightYaw = thetaU + g.yawOffset(false)
	} else {
		leftPos = posU.Add(rotate(r2.Point{X: 0, Y: g.footLateralOffset(true)}, thetaU))
		leftYaw = thetaU + g.yawOffset(true)
	}

	g.leftSteps = []Step{{Position: leftPos, Angle: leftYaw, ImpactTime: initTime}}
	g.rightSteps = []Step{{Position: rightPos, Angle: rightYaw, ImpactTime: initTime}}

	initialMid := leftPos.Add(rightPos).Mul(0.5)

	vx, vy, wz := g.commandVelocity(posU, thetaU, Ts)
	walking := math.Hypot(vx, vy)*Ts >= cfg.MinStepLength || math.Abs(wz)*Ts >= cfg.MinAngleVariation
	marchInPlace := !walking && !cfg.PauseActive
	if !walking {
		vx, vy, wz = 0, 0, 0
	}

	var cycles []cycle
	if walking || marchInPlace {
		swingLeft := !stanceLeft
		pos, theta := posU, thetaU
		t := initTime

		walkEnd := endTime
		if cfg.TerminalStep && walking {
			// reserve room for the terminal squaring step
			walkEnd = endTime - T
		}

		for t+T <= walkEnd {
			midTheta := theta + wz*Ts/2
			pos = pos.Add(rotate(r2.Point{X: vx * Ts, Y: vy * Ts}, midTheta))
			theta = wrapToPi(theta + wz*Ts)

			c := g.makeCycle(t, t+T, swingLeft, leftPos, leftYaw, rightPos, rightYaw)
			cycles = append(cycles, c)

			landPos := pos.Add(rotate(r2.Point{X: 0, Y: g.footLateralOffset(swingLeft)}, theta))
			landYaw := theta + g.yawOffset(swingLeft)
			if swingLeft {
				leftPos, leftYaw = landPos, landYaw
				g.leftSteps = append(g.leftSteps, Step{Position: landPos, Angle: landYaw, ImpactTime: t + T})
			} else {
				rightPos, rightYaw = landPos, landYaw
				g.rightSteps = append(g.rightSteps, Step{Position: rightPos, Angle: rightYaw, ImpactTime: t + T})
			}

			t += T
			swingLeft = !swingLeft
		}

		// Terminal step: bring the swing foot beside the stance one with
		// no forward displacement, squaring the final stance.
		if cfg.TerminalStep && walking && t+T <= endTime {
			c := g.makeCycle(t, t+T, swingLeft, leftPos, leftYaw, rightPos, rightYaw)
			cycles = append(cycles, c)

			landPos := pos.Add(rotate(r2.Point{X: 0, Y: g.footLateralOffset(swingLeft)}, theta))
			landYaw := theta + g.yawOffset(swingLeft)
			if swingLeft {
				leftPos, leftYaw = landPos, landYaw
				g.leftSteps = append(g.leftSteps, Step{Position: landPos, Angle: landYaw, ImpactTime: t + T})
			} else {
				rightPos, rightYaw = landPos, landYaw
				g.rightSteps = append(g.rightSteps, Step{Position: rightPos, Angle: rightYaw, ImpactTime: t + T})
			}
		}
	}

	n := int((endTime-initTime)/dt) + 1
	g.buildContactTimelines(initTime, dt, n, ds, stanceLeft, cycles)
	g.buildMergePoints(initTime, ds, cycles)

	finalMid := leftPos.Add(rightPos).Mul(0.5)
	g.buildDCM(initTime, dt, n, T, cycles, initialMid, finalMid)
	g.buildHeight(initTime, dt, n, cycles)

	return nil
}

// makeCycle captures the stance pose for the interval [start, end) during
// which swingLeft identifies the foot in the air.
func (g *Generator) makeCycle(start, end time.Duration, swingLeft bool,
	leftPos r2.Point, leftYaw float64, rightPos r2.Point, rightYaw float64) cycle {

	c := cycle{Start: start, End: end, SwingLeft: swingLeft}
	if swingLeft {
		c.StancePos, c.StanceYaw = rightPos, rightYaw
		c.ZMP = rightPos.Add(rotate(g.cfg.RightZMPDelta, rightYaw))
	} else {
		c.StancePos, c.StanceYaw = leftPos, leftYaw
		c.ZMP = leftPos.Add(rotate(g.cfg.LeftZMPDelta, leftYaw))
	}
	return c
}

// buildContactTimelines fills the per-sample contact booleans and the
// which-foot-is-fixed timeline for n samples spaced dt apart.
func (g *Generator) buildContactTimelines(initTime, dt time.Duration, n int,
	ds time.Duration, stanceLeft bool, cycles []cycle) {

	g.leftInContact = make([]bool, n)
	g.rightInContact = make([]bool, n)
	g.leftAsFixed = make([]bool, n)

	ci := 0
	fixedLeft := stanceLeft
	for i := 0; i < n; i++ {
		t := initTime + time.Duration(i)*dt
		for ci < len(cycles) && t >= cycles[ci].End {
			ci++
		}

		g.leftInContact[i] = true
		g.rightInContact[i] = true

		if ci < len(cycles) && t >= cycles[ci].Start {
			c := cycles[ci]
			fixedLeft = !c.SwingLeft
			if t >= c.Start+ds {
				if c.SwingLeft {
					g.leftInContact[i] = false
				} else {
					g.rightInContact[i] = false
				}
			}
		}
		g.leftAsFixed[i] = fixedLeft
	}
}

// buildMergePoints emits, for every double-support window, the stitch
// timestamps at the configured ratios of the window.
func (g *Generator) buildMergePoints(initTime, ds time.Duration, cycles []cycle) {
	g.mergePoints = g.mergePoints[:0]

	if len(cycles) == 0 {
		// Standing still: the whole trajectory is a valid stitch target;
		// report its start.
		g.mergePoints = append(g.mergePoints, initTime)
		return
	}

	for _, c := range cycles {
		for _, ratio := range g.cfg.MergePointRatios {
			g.mergePoints = append(g.mergePoints, c.Start+time.Duration(ratio*float64(ds)))
		}
	}

	sort.Slice(g.mergePoints, func(i, j int) bool { return g.mergePoints[i] < g.mergePoints[j] })
	g.mergePoints = dedupeDurations(g.mergePoints)
}

// commandVelocity turns the current command into a saturated unicycle
// velocity (vx, vy, wz) in the body frame. Ts is the step period in seconds.
func (g *Generator) commandVelocity(posU r2.Point, thetaU, Ts float64) (vx, vy, wz float64) {
	cfg := g.cfg

	switch cfg.Controller {
	case ControllerDirect:
		vx, vy, wz = g.direct[0], g.direct[1], g.direct[2]
	case ControllerPersonFollowing:
		if len(g.waypoints) == 0 {
			return 0, 0, 0
		}
		target := g.waypoints[len(g.waypoints)-1].Point
		ref := posU.Add(rotate(cfg.ReferencePosition, thetaU))
		errWorld := target.Sub(ref)
		errBody := rotate(errWorld, -thetaU)
		vx = cfg.UnicycleGain * errBody.X
		vy = cfg.UnicycleGain * errBody.Y
		if errWorld.Norm() > 1e-6 {
			wz = cfg.UnicycleGain * wrapToPi(math.Atan2(errWorld.Y, errWorld.X)-thetaU)
		}
	}

	// Slow down while turning.
	slow := 1.0 / (1.0 + cfg.SlowWhenTurningGain*math.Abs(wz))
	vx *= slow
	vy *= slow

	// Saturate so a nominal-duration step stays within the length and
	// angle bounds, shrunk by the conservative factors. Backward and
	// sideways motion get tighter limits.
	maxLen := cfg.MaxStepLength * cfg.SaturationFactors[0]
	limForward := maxLen / Ts
	limBackward := limForward * cfg.MaxLengthBackwardFactor * cfg.SlowWhenBackwardFactor
	limSideways := limForward * cfg.SlowWhenSidewaysFactor
	vx = clamp(vx, -limBackward, limForward)
	vy = clamp(vy, -limSideways, limSideways)

	maxTurn := cfg.MaxAngleVariation * cfg.SaturationFactors[1] / Ts
	wz = clamp(wz, -maxTurn, maxTurn)

	return vx, vy, wz
}

// footLateralOffset is the lateral offset of a foot from the unicycle:
// +width/2 for the left foot, -width/2 for the right.
func (g *Generator) footLateralOffset(left bool) float64 {
	if left {
		return g.cfg.NominalWidth / 2
	}
	return -g.cfg.NominalWidth / 2
}

func (g *Generator) yawOffset(left bool) float64 {
	if left {
		return g.cfg.LeftYawOffset
	}
	return g.cfg.RightYawOffset
}

func rotate(p r2.Point, theta float64) r2.Point {
	s, c := math.Sincos(theta)
	return r2.Point{X: c*p.X - s*p.Y, Y: s*p.X + c*p.Y}
}

func wrapToPi(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

func dedupeDurations(in []time.Duration) []time.Duration {
	out := in[:0]
	for i, d := range in {
		if i == 0 || d != in[i-1] {
			out = append(out, d)
		}
	}
	return out
}
