// Package unicycle implements the footstep and reference trajectory
// generation engine behind the planner: a 2-D unicycle rollout for footstep
// placement, per-sample foot contact timelines, a piecewise-exponential DCM
// generator seeded by a quintic first segment, a CoM height profile, and
// merge-point bookkeeping for trajectory stitching.
//
// The engine is strictly sequenced: Configure, then Generate once, then any
// number of Regenerate calls. Calling out of order is an error.
package unicycle

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/golang/geo/r2"
)

// Controller selects how the engine interprets its command input.
type Controller int

const (
	// ControllerPersonFollowing steers the unicycle toward a moving
	// reference point.
	ControllerPersonFollowing Controller = iota
	// ControllerDirect consumes raw (vx, vy, wz) velocity commands.
	ControllerDirect
)

// Sequencing errors.
var (
	ErrNotConfigured = errors.New("engine not configured")
	ErrNotGenerated  = errors.New("first trajectory not generated yet")
)

// Step is a single planned footstep: planar position, yaw and the
// touch-down instant.
type Step struct {
	Position   r2.Point
	Angle      float64
	ImpactTime time.Duration
}

// Config collects every engine setting. Apply it with Configure; the
// individual checks run in declaration order and stop at the first failure
// without rolling back already-applied settings.
type Config struct {
	Controller        Controller
	ReferencePosition r2.Point

	UnicycleGain           float64
	SlowWhenTurningGain    float64
	SlowWhenBackwardFactor float64
	SlowWhenSidewaysFactor float64

	PositionWeight float64
	TimeWeight     float64

	MaxStepLength           float64
	MinStepLength           float64
	MaxLengthBackwardFactor float64
	NominalWidth            float64
	MinWidth                float64

	MinStepDuration time.Duration
	MaxStepDuration time.Duration
	NominalDuration time.Duration

	MaxAngleVariation float64
	MinAngleVariation float64

	SaturationFactors [2]float64

	LeftYawOffset  float64
	RightYawOffset float64

	SwingLeft           bool
	StartAlwaysSameFoot bool
	TerminalStep        bool

	MergePointRatios     [2]float64
	SwitchOverSwingRatio float64
	LastStepSwitchTime   float64
	PauseActive          bool

	CoMHeight      float64
	CoMHeightDelta float64

	LeftZMPDelta  r2.Point
	RightZMPDelta r2.Point

	LastStepDCMOffset float64

	// Omega is the LIP angular frequency used by the DCM generator.
	Omega float64
}

// waypoint is a timed person-following reference point in the world frame.
type waypoint struct {
	Time  time.Duration
	Point r2.Point
}

// Generator is the trajectory generation engine. It is not safe for
// concurrent use; the owning planner serializes access.
type Generator struct {
	cfg        Config
	configured bool
	generated  bool

	waypoints []waypoint
	direct    [3]float64

	dcmInitPos r2.Point
	dcmInitVel r2.Point
	dcmInitSet bool

	// latest plan
	leftSteps      []Step
	rightSteps     []Step
	leftInContact  []bool
	rightInContact []bool
	leftAsFixed    []bool
	dcmPos         []r2.Point
	dcmVel         []r2.Point
	heightPos      []float64
	heightVel      []float64
	heightAcc      []float64
	mergePoints    []time.Duration
}

// New returns an unconfigured Generator.
func New() *Generator {
	return &Generator{}
}

// Configure applies cfg setting by setting, returning the first failure.
// Settings validated before the failing one stay applied.
func (g *Generator) Configure(cfg Config) error {
	checks := []struct {
		name string
		ok   bool
	}{
		{"maxStepLength must be positive", cfg.MaxStepLength > 0},
		{"minStepLength must be positive and below maxStepLength",
			cfg.MinStepLength > 0 && cfg.MinStepLength <= cfg.MaxStepLength},
		{"maxLengthBackwardFactor must lie in (0, 1]",
			cfg.MaxLengthBackwardFactor > 0 && cfg.MaxLengthBackwardFactor <= 1},
		{"width settings must satisfy 0 < minWidth <= nominalWidth",
			cfg.MinWidth > 0 && cfg.MinWidth <= cfg.NominalWidth},
		{"step durations must satisfy 0 < min < max",
			cfg.MinStepDuration > 0 && cfg.MinStepDuration < cfg.MaxStepDuration},
		{"nominalDuration must lie within the step duration bounds",
			cfg.NominalDuration >= cfg.MinStepDuration && cfg.NominalDuration <= cfg.MaxStepDuration},
		{"maxAngleVariation must be positive", cfg.MaxAngleVariation > 0},
		{"minAngleVariation must be positive and below maxAngleVariation",
			cfg.MinAngleVariation > 0 && cfg.MinAngleVariation <= cfg.MaxAngleVariation},
		{"cost weights must be non-negative", cfg.PositionWeight >= 0 && cfg.TimeWeight >= 0},
		{"saturation factors must lie in (0, 1]",
			cfg.SaturationFactors[0] > 0 && cfg.SaturationFactors[0] <= 1 &&
				cfg.SaturationFactors[1] > 0 && cfg.SaturationFactors[1] <= 1},
		{"switchOverSwingRatio must lie in (0, 0.5)",
			cfg.SwitchOverSwingRatio > 0 && cfg.SwitchOverSwingRatio < 0.5},
		{"mergePointRatios must lie in [0, 1]",
			cfg.MergePointRatios[0] >= 0 && cfg.MergePointRatios[0] <= 1 &&
				cfg.MergePointRatios[1] >= 0 && cfg.MergePointRatios[1] <= 1},
		{"comHeight must be positive", cfg.CoMHeight > 0},
		{"lastStepDCMOffset must lie in [0, 1]",
			cfg.LastStepDCMOffset >= 0 && cfg.LastStepDCMOffset <= 1},
		{"omega must be positive", cfg.Omega > 0},
	}

	for _, c := range checks {
		if !c.ok {
			return fmt.Errorf("configure: %s", c.name)
		}
	}

	g.cfg = cfg
	g.configured = true
	return nil
}

// ClearDesiredTrajectory drops every person-following waypoint.
func (g *Generator) ClearDesiredTrajectory() {
	g.waypoints = g.waypoints[:0]
}

// AddDesiredTrajectoryPoint appends a timed reference point in the world
// frame. Points must be added in non-decreasing time order.
func (g *Generator) AddDesiredTrajectoryPoint(t time.Duration, p r2.Point) error {
	if t < 0 {
		return fmt.Errorf("desired point time must be non-negative, got %v", t)
	}
	if n := len(g.waypoints); n > 0 && t < g.waypoints[n-1].Time {
		return fmt.Errorf("desired point time %v precedes previous point at %v",
			t, g.waypoints[n-1].Time)
	}
	g.waypoints = append(g.waypoints, waypoint{Time: t, Point: p})
	return nil
}

// SetDesiredDirectControl stores the raw velocity command (vx, vy, wz)
// used when the controller mode is direct.
func (g *Generator) SetDesiredDirectControl(vx, vy, wz float64) {
	g.direct = [3]float64{vx, vy, wz}
}

// SetDCMInitialState seeds the DCM generator with the measured divergent
// component state for the next (re)generation.
func (g *Generator) SetDCMInitialState(position, velocity r2.Point) error {
	if math.IsNaN(position.X) || math.IsNaN(position.Y) ||
		math.IsNaN(velocity.X) || math.IsNaN(velocity.Y) {
		return errors.New("DCM initial state contains NaN")
	}
	g.dcmInitPos = position
	g.dcmInitVel = velocity
	g.dcmInitSet = true
	return nil
}

// Generate computes the first trajectory over [initTime, endTime] with
// sample period dt. The robot is assumed standing at the origin with the
// feet at +-nominalWidth/2. Any previously stored command is discarded: the
// direct-control velocity is zeroed and the person-following trajectory is
// re-anchored at the reference point, so the seed is always a standing plan.
func (g *Generator) Generate(initTime, dt, endTime time.Duration) error {
	if !g.configured {
		return ErrNotConfigured
	}
	if err := checkWindow(initTime, dt, endTime); err != nil {
		return err
	}

	g.direct = [3]float64{}
	g.waypoints = g.waypoints[:0]
	if g.cfg.Controller == ControllerPersonFollowing {
		// The unicycle starts at the origin with zero yaw, so its
		// reference point sits at ReferencePosition in the world frame.
		if err := g.AddDesiredTrajectoryPoint(initTime, g.cfg.ReferencePosition); err != nil {
			return err
		}
		if err := g.AddDesiredTrajectoryPoint(endTime, g.cfg.ReferencePosition); err != nil {
			return err
		}
	}

	stanceLeft := !g.cfg.SwingLeft
	stanceYaw := 0.0
	stanceOffset := g.cfg.NominalWidth / 2
	if !stanceLeft {
		stanceOffset = -stanceOffset
	}
	stancePos := r2.Point{X: 0, Y: stanceOffset}

	if err := g.plan(initTime, dt, endTime, stanceLeft, stancePos, stanceYaw); err != nil {
		return err
	}
	g.generated = true
	return nil
}

// Regenerate replans over [initTime, endTime], anchoring the unicycle at
// the measured stance foot pose. correctLeft selects the left foot as the
// supporting one. Regenerate before a successful Generate is an error.
func (g *Generator) Regenerate(initTime, dt, endTime time.Duration,
	correctLeft bool, measuredPosition r2.Point, measuredAngle float64) error {

	if !g.configured {
		return ErrNotConfigured
	}
	if !g.generated {
		return ErrNotGenerated
	}
	if err := checkWindow(initTime, dt, endTime); err != nil {
		return err
	}

	return g.plan(initTime, dt, endTime, correctLeft, measuredPosition, measuredAngle)
}

func checkWindow(initTime, dt, endTime time.Duration) error {
	if dt <= 0 {
		return fmt.Errorf("sample period must be positive, got %v", dt)
	}
	if endTime <= initTime+dt {
		return fmt.Errorf("trajectory window [%v, %v] is too short for dt %v", initTime, endTime, dt)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Accessors: all return the latest plan. Slices are the engine's own
// buffers; callers copy what they keep.
// ---------------------------------------------------------------------------

// LeftSteps returns the planned left footsteps.
func (g *Generator) LeftSteps() []Step { return g.leftSteps }

// RightSteps returns the planned right footsteps.
func (g *Generator) RightSteps() []Step { return g.rightSteps }

// FeetInContact returns the per-sample contact flags for both feet.
func (g *Generator) FeetInContact() (left, right []bool) {
	return g.leftInContact, g.rightInContact
}

// LeftAsFixed reports, per sample, whether the left foot is the fixed one.
func (g *Generator) LeftAsFixed() []bool { return g.leftAsFixed }

// DCMPositions returns the planned DCM position samples.
func (g *Generator) DCMPositions() []r2.Point { return g.dcmPos }

// DCMVelocities returns the planned DCM velocity samples.
func (g *Generator) DCMVelocities() []r2.Point { return g.dcmVel }

// HeightPositions returns the CoM height samples.
func (g *Generator) HeightPositions() []float64 { return g.heightPos }

// HeightVelocities returns the CoM height velocity samples.
func (g *Generator) HeightVelocities() []float64 { return g.heightVel }

// HeightAccelerations returns the CoM height acceleration samples.
func (g *Generator) HeightAccelerations() []float64 { return g.heightAcc }

// MergePoints returns the timestamps where a future replan may be stitched
// onto this trajectory.
func (g *Generator) MergePoints() []time.Duration { return g.mergePoints }
