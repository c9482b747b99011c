package planner

import (
	"time"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/google/uuid"

	"github.com/fils99/bipedal-locomotion-framework/internal/unicycle"
)

// Input carries the measured robot state and the walking command consumed by
// one Advance cycle.
type Input struct {
	// Command is interpreted per the configured controller mode: in
	// person-following mode entries 0 and 1 are the target point relative
	// to the unicycle frame and entry 2 is ignored; in direct mode the
	// entries are the body-frame velocity (vx, vy, wz).
	Command [3]float64

	// IsLeftLastSwinging reports which foot was in the air during the step
	// cycle that just ended. The opposite foot anchors the replan.
	IsLeftLastSwinging bool

	// InitTime is the start instant of the replanned trajectory.
	InitTime time.Duration

	// Measured pose of the current stance foot in the world frame. Only
	// the planar components and the yaw enter the replan.
	MeasuredPosition r3.Vector
	MeasuredYaw      float64

	// Measured divergent component of motion, seeding the DCM generator.
	DCMPosition r2.Point
	DCMVelocity r2.Point

	// Measured planar CoM state, seeding the pendulum integration.
	CoMPosition r2.Point
	CoMVelocity r2.Point
}

// DummyInput returns a neutral input: zero command, stance foot at the world
// origin, zero DCM and CoM state, trajectory starting at time zero.
func DummyInput() Input {
	return Input{}
}

// Output is one published trajectory. All sample buffers share the same
// length and sample i refers to instant InitTime + i*DT.
//
// Once published an Output is never mutated, so holding one across Advance
// calls is safe.
type Output struct {
	// PlanID uniquely identifies this plan; consumers use it to detect
	// that a replan happened.
	PlanID uuid.UUID

	InitTime time.Duration
	DT       time.Duration

	LeftSteps  []unicycle.Step
	RightSteps []unicycle.Step

	LeftInContact  []bool
	RightInContact []bool
	LeftAsFixed    []bool

	DCMPosition []r2.Point
	DCMVelocity []r2.Point

	// CoM samples with the height profile stacked on Z.
	CoMPosition     []r3.Vector
	CoMVelocity     []r3.Vector
	CoMAcceleration []r3.Vector

	MergePoints []time.Duration
}
