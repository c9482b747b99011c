// Package planner orchestrates footstep and whole-body reference trajectory
// generation for bipedal walking: a unicycle footstep engine, a DCM
// reference generator and a Linear Inverted Pendulum CoM integrator, glued
// behind a small lifecycle API.
//
// Lifecycle: NotInitialized -> Initialize -> Initialized -> Advance ->
// Running. Every Advance replans the whole horizon from the measured robot
// state and publishes a fresh Output; a failed replan keeps the previous
// Output in effect.
//
// Only the published Output is shared across goroutines. Planning itself is
// single-threaded: SetInput and Advance must come from one goroutine, while
// GetOutput, IsOutputValid and GetContactPhaseList may be called from any.
package planner

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/google/uuid"

	"github.com/fils99/bipedal-locomotion-framework/internal/config"
	"github.com/fils99/bipedal-locomotion-framework/internal/contacts"
	"github.com/fils99/bipedal-locomotion-framework/internal/kindyn"
	"github.com/fils99/bipedal-locomotion-framework/internal/lip"
	"github.com/fils99/bipedal-locomotion-framework/internal/log"
	"github.com/fils99/bipedal-locomotion-framework/internal/unicycle"
)

// State is the planner lifecycle state.
type State int

const (
	StateNotInitialized State = iota
	StateInitialized
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateNotInitialized:
		return "NotInitialized"
	case StateInitialized:
		return "Initialized"
	case StateRunning:
		return "Running"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Planner generates walking reference trajectories. Create one with New,
// then Initialize it before anything else.
type Planner struct {
	params *config.Parameters
	engine *unicycle.Generator
	com    *lip.System
	integ  *lip.RK4

	state State
	input Input

	// mu guards only the published output; planning runs off-lock.
	mu          sync.Mutex
	output      Output
	outputValid bool
}

// New returns a planner in the NotInitialized state.
func New() *Planner {
	return &Planner{engine: unicycle.New()}
}

// State returns the current lifecycle state.
func (p *Planner) State() State {
	return p.state
}

// Initialize validates the parameters, configures the footstep engine and
// the pendulum model, and generates the seed trajectory for a robot standing
// at the origin. On success the planner is Initialized.
func (p *Planner) Initialize(params *config.Parameters) error {
	if params == nil {
		return &ConfigurationError{Reason: "parameters are nil"}
	}
	if err := params.Validate(); err != nil {
		return &ConfigurationError{Reason: "invalid parameters", Err: err}
	}

	if err := p.engine.Configure(engineConfig(params)); err != nil {
		return &ConfigurationError{Reason: "footstep engine setup failed", Err: err}
	}

	com, err := lip.NewSystem(params.Omega())
	if err != nil {
		return &ConfigurationError{Reason: "pendulum model setup failed", Err: err}
	}
	integ, err := lip.NewRK4(com, params.DT)
	if err != nil {
		return &ConfigurationError{Reason: "pendulum integrator setup failed", Err: err}
	}

	if err := p.engine.Generate(0, params.DT, params.PlannerHorizon); err != nil {
		return &ConfigurationError{Reason: "seed trajectory generation failed", Err: err}
	}

	p.params = params
	p.com = com
	p.integ = integ
	p.input = DummyInput()
	p.invalidateOutput()
	p.state = StateInitialized

	logSeedSteps("left", p.engine.LeftSteps())
	logSeedSteps("right", p.engine.RightSteps())

	return nil
}

// SetRobotContactFrames resolves the configured contact frame names against
// the robot model. A missing frame resets the planner to NotInitialized.
func (p *Planner) SetRobotContactFrames(model kindyn.Model) error {
	if p.state == StateNotInitialized {
		return &SequenceError{Op: "SetRobotContactFrames", State: p.state}
	}

	left, ok := model.FrameIndex(p.params.LeftContactFrameName)
	if !ok {
		p.state = StateNotInitialized
		p.invalidateOutput()
		return &ConfigurationError{
			Reason: fmt.Sprintf("contact frame %q not found in the robot model", p.params.LeftContactFrameName)}
	}
	right, ok := model.FrameIndex(p.params.RightContactFrameName)
	if !ok {
		p.state = StateNotInitialized
		p.invalidateOutput()
		return &ConfigurationError{
			Reason: fmt.Sprintf("contact frame %q not found in the robot model", p.params.RightContactFrameName)}
	}

	p.params.LeftContactFrameIndex = left
	p.params.RightContactFrameIndex = right
	return nil
}

// SetInput stores the measured state and command for the next Advance.
func (p *Planner) SetInput(in Input) error {
	if p.state == StateNotInitialized {
		return &SequenceError{Op: "SetInput", State: p.state}
	}
	for i, v := range in.Command {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("command[%d] is not finite", i)
		}
	}
	if in.InitTime < 0 {
		return fmt.Errorf("initTime must be non-negative, got %v", in.InitTime)
	}

	p.input = in
	return nil
}

// Advance publishes a trajectory computed from the stored input. The very
// first call (state Initialized) skips replanning and publishes the seed
// trajectory generated at Initialize; every later call replans the whole
// horizon, anchoring the footstep sequence at the measured pose of the
// stance foot, the one opposite to the last swinging foot. A ReplanError
// leaves the previously published output untouched.
//
// Initialize seeds a neutral input, so Advance right after Initialize is
// valid without a prior SetInput.
func (p *Planner) Advance() error {
	if p.state == StateNotInitialized {
		return &SequenceError{Op: "Advance", State: p.state}
	}

	in := p.input

	if p.state == StateInitialized {
		p.publish(p.collectOutput(in, 0))
		p.state = StateRunning
		return nil
	}

	params := p.params
	endTime := in.InitTime + params.PlannerHorizon
	correctLeft := !in.IsLeftLastSwinging
	measured := r2.Point{X: in.MeasuredPosition.X, Y: in.MeasuredPosition.Y}

	if params.ControlType == config.ModePersonFollowing {
		p.engine.ClearDesiredTrajectory()
		target := desiredWorldTarget(params, correctLeft, measured, in.MeasuredYaw, in.Command)
		if err := p.engine.AddDesiredTrajectoryPoint(endTime, target); err != nil {
			return &ReplanError{Err: err}
		}
	} else {
		p.engine.SetDesiredDirectControl(in.Command[0], in.Command[1], in.Command[2])
	}

	if err := p.engine.SetDCMInitialState(in.DCMPosition, in.DCMVelocity); err != nil {
		return &ReplanError{Err: err}
	}

	if err := p.engine.Regenerate(in.InitTime, params.DT, endTime,
		correctLeft, measured, in.MeasuredYaw); err != nil {
		return &ReplanError{Err: err}
	}

	p.publish(p.collectOutput(in, in.InitTime))
	return nil
}

func (p *Planner) publish(out Output) {
	p.mu.Lock()
	p.output = out
	p.outputValid = true
	p.mu.Unlock()
}

// invalidateOutput withdraws the published trajectory. Called whenever the
// planner leaves the Running state, keeping IsOutputValid equivalent to
// "state is Running".
func (p *Planner) invalidateOutput() {
	p.mu.Lock()
	p.outputValid = false
	p.mu.Unlock()
}

// desiredWorldTarget transforms the person-following target, expressed
// relative to the unicycle's reference point, into the world frame through
// the unicycle pose implied by the measured stance foot. A zero command
// therefore targets the reference point itself and commands standing.
func desiredWorldTarget(p *config.Parameters, stanceLeft bool,
	footPos r2.Point, footYaw float64, command [3]float64) r2.Point {

	yawDelta := p.RightYawDelta
	lateral := -p.NominalWidth / 2
	if stanceLeft {
		yawDelta = p.LeftYawDelta
		lateral = p.NominalWidth / 2
	}

	theta := footYaw - yawDelta
	pos := footPos.Add(rotate(r2.Point{X: 0, Y: -lateral}, theta))
	rel := r2.Point{
		X: p.ReferencePosition.X + command[0],
		Y: p.ReferencePosition.Y + command[1],
	}
	return pos.Add(rotate(rel, theta))
}

func rotate(pt r2.Point, theta float64) r2.Point {
	s, c := math.Sincos(theta)
	return r2.Point{X: c*pt.X - s*pt.Y, Y: s*pt.X + c*pt.Y}
}

// collectOutput copies the engine buffers and integrates the pendulum along
// the fresh DCM reference, stacking the height profile on Z.
func (p *Planner) collectOutput(in Input, initTime time.Duration) Output {
	dcmPos := copyPoints(p.engine.DCMPositions())
	dcmVel := copyPoints(p.engine.DCMVelocities())
	hPos := p.engine.HeightPositions()
	hVel := p.engine.HeightVelocities()
	hAcc := p.engine.HeightAccelerations()

	n := len(dcmPos)
	comPos := make([]r3.Vector, n)
	comVel := make([]r3.Vector, n)
	comAcc := make([]r3.Vector, n)

	p.com.SetState(in.CoMPosition.X, in.CoMPosition.Y, in.CoMVelocity.X, in.CoMVelocity.Y)
	for i := 0; i < n; i++ {
		p.com.SetControl(dcmPos[i].X, dcmPos[i].Y, dcmVel[i].X, dcmVel[i].Y)
		st := p.com.State()
		d := p.com.DerivativeAtState()
		comPos[i] = r3.Vector{X: st[0], Y: st[1], Z: hPos[i]}
		comVel[i] = r3.Vector{X: d[0], Y: d[1], Z: hVel[i]}
		comAcc[i] = r3.Vector{X: d[2], Y: d[3], Z: hAcc[i]}
		if i+1 < n {
			p.integ.Step()
		}
	}

	left, right := p.engine.FeetInContact()
	return Output{
		PlanID:          uuid.New(),
		InitTime:        initTime,
		DT:              p.params.DT,
		LeftSteps:       copySteps(p.engine.LeftSteps()),
		RightSteps:      copySteps(p.engine.RightSteps()),
		LeftInContact:   copyBools(left),
		RightInContact:  copyBools(right),
		LeftAsFixed:     copyBools(p.engine.LeftAsFixed()),
		DCMPosition:     dcmPos,
		DCMVelocity:     dcmVel,
		CoMPosition:     comPos,
		CoMVelocity:     comVel,
		CoMAcceleration: comAcc,
		MergePoints:     copyDurations(p.engine.MergePoints()),
	}
}

// GetOutput returns the latest published trajectory. Published slices are
// never mutated afterwards, so the shallow copy is safe to read while a
// later Advance runs.
func (p *Planner) GetOutput() Output {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.output
}

// IsOutputValid reports whether a trajectory has been published.
func (p *Planner) IsOutputValid() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outputValid
}

// GetContactPhaseList derives the per-foot contact phases of the latest
// published trajectory, keyed "left_foot" and "right_foot". Before the first
// publication the map is empty.
func (p *Planner) GetContactPhaseList() (contacts.ContactListMap, error) {
	p.mu.Lock()
	out := p.output
	valid := p.outputValid
	p.mu.Unlock()

	if !valid {
		return contacts.ContactListMap{}, nil
	}

	left, err := contacts.BuildContactList(out.InitTime, out.DT, out.LeftInContact,
		out.LeftSteps, p.params.LeftContactFrameIndex, "left_foot")
	if err != nil {
		return nil, err
	}
	right, err := contacts.BuildContactList(out.InitTime, out.DT, out.RightInContact,
		out.RightSteps, p.params.RightContactFrameIndex, "right_foot")
	if err != nil {
		return nil, err
	}

	return contacts.ContactListMap{"left_foot": left, "right_foot": right}, nil
}

// engineConfig maps the validated parameter set onto the engine settings.
func engineConfig(p *config.Parameters) unicycle.Config {
	mode := unicycle.ControllerDirect
	if p.ControlType == config.ModePersonFollowing {
		mode = unicycle.ControllerPersonFollowing
	}
	return unicycle.Config{
		Controller:              mode,
		ReferencePosition:       p.ReferencePosition,
		UnicycleGain:            p.UnicycleGain,
		SlowWhenTurningGain:     p.SlowWhenTurningGain,
		SlowWhenBackwardFactor:  p.SlowWhenBackwardFactor,
		SlowWhenSidewaysFactor:  p.SlowWhenSidewaysFactor,
		PositionWeight:          p.PositionWeight,
		TimeWeight:              p.TimeWeight,
		MaxStepLength:           p.MaxStepLength,
		MinStepLength:           p.MinStepLength,
		MaxLengthBackwardFactor: p.MaxLengthBackwardFactor,
		NominalWidth:            p.NominalWidth,
		MinWidth:                p.MinWidth,
		MinStepDuration:         p.MinStepDuration,
		MaxStepDuration:         p.MaxStepDuration,
		NominalDuration:         p.NominalDuration,
		MaxAngleVariation:       p.MaxAngleVariation,
		MinAngleVariation:       p.MinAngleVariation,
		SaturationFactors:       p.SaturationFactors,
		LeftYawOffset:           p.LeftYawDelta,
		RightYawOffset:          p.RightYawDelta,
		SwingLeft:               p.SwingLeft,
		StartAlwaysSameFoot:     p.StartAlwaysSameFoot,
		TerminalStep:            p.TerminalStep,
		MergePointRatios:        p.MergePointRatios,
		SwitchOverSwingRatio:    p.SwitchOverSwingRatio,
		LastStepSwitchTime:      p.LastStepSwitchTime,
		PauseActive:             p.IsPauseActive,
		CoMHeight:               p.CoMHeight,
		CoMHeightDelta:          p.CoMHeightDelta,
		LeftZMPDelta:            p.LeftZMPDelta,
		RightZMPDelta:           p.RightZMPDelta,
		LastStepDCMOffset:       p.LastStepDCMOffset,
		Omega:                   p.Omega(),
	}
}

func logSeedSteps(foot string, steps []unicycle.Step) {
	for i, s := range steps {
		log.Debugf("seed %s step %d: position (%.3f, %.3f) yaw %.3f impact %v",
			foot, i, s.Position.X, s.Position.Y, s.Angle, s.ImpactTime)
	}
}

func copySteps(in []unicycle.Step) []unicycle.Step {
	out := make([]unicycle.Step, len(in))
	copy(out, in)
	return out
}

func copyPoints(in []r2.Point) []r2.Point {
	out := make([]r2.Point, len(in))
	copy(out, in)
	return out
}

func copyBools(in []bool) []bool {
	out := make([]bool, len(in))
	copy(out, in)
	return out
}

func copyDurations(in []time.Duration) []time.Duration {
	out := make([]time.Duration, len(in))
	copy(out, in)
	return out
}
