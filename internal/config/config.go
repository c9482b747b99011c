// Package config defines the planner parameter set and its YAML loading rules.
//
// Parameters are read once at initialization and are immutable afterwards.
// Required keys produce an error when absent; every other key falls back to
// its documented default. The pointer-based partial struct distinguishes a
// key that is absent (nil) from one explicitly set to its zero value.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/golang/geo/r2"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/fils99/bipedal-locomotion-framework/internal/log"
)

// ControllerMode selects how the unicycle planner interprets its command:
// track a moving reference point, or consume raw velocity commands.
type ControllerMode string

const (
	ModePersonFollowing ControllerMode = "personFollowing"
	ModeDirect          ControllerMode = "direct"
)

// FrameInvalid marks a contact frame index that has not been resolved yet.
const FrameInvalid = -1

// Default values for optional parameters.
const (
	DefaultControlType            = ModeDirect
	DefaultUnicycleGain           = 10.0
	DefaultSlowWhenTurningGain    = 2.0
	DefaultSlowWhenBackwardFactor = 0.4
	DefaultSlowWhenSidewaysFactor = 0.2
	DefaultDT                     = 2 * time.Millisecond
	DefaultPlannerHorizon         = 20 * time.Second
	DefaultPositionWeight         = 1.0
	DefaultTimeWeight             = 2.5
	DefaultMaxStepLength          = 0.32
	DefaultMinStepLength          = 0.01
	DefaultMaxLengthBackward      = 0.8
	DefaultNominalWidth           = 0.20
	DefaultMinWidth               = 0.14
	DefaultMinStepDuration        = 650 * time.Millisecond
	DefaultMaxStepDuration        = 1500 * time.Millisecond
	DefaultNominalDuration        = 800 * time.Millisecond
	DefaultMaxAngleVariationDeg   = 18.0
	DefaultMinAngleVariationDeg   = 5.0
	DefaultSwitchOverSwingRatio   = 0.2
	DefaultLastStepSwitchTime     = 0.3
	DefaultCoMHeight              = 0.70
	DefaultCoMHeightDelta         = 0.01
	DefaultLastStepDCMOffset      = 0.5
)

// Parameters is the full, validated planner configuration. Angles are stored
// in radians and times as time.Duration regardless of the on-file units
// (degrees and seconds respectively).
type Parameters struct {
	// Distance of the person-following reference point from the unicycle,
	// expressed in the unicycle frame.
	ReferencePosition r2.Point

	ControlType ControllerMode

	// Unicycle controller gains.
	UnicycleGain           float64
	SlowWhenTurningGain    float64
	SlowWhenBackwardFactor float64
	SlowWhenSidewaysFactor float64

	// Sampling period and planning window.
	DT             time.Duration
	PlannerHorizon time.Duration

	// Footstep optimization weights.
	PositionWeight float64
	TimeWeight     float64

	// Step geometry bounds.
	MaxStepLength           float64
	MinStepLength           float64
	MaxLengthBackwardFactor float64
	NominalWidth            float64
	MinWidth                float64

	// Step timing bounds.
	MinStepDuration time.Duration
	MaxStepDuration time.Duration
	NominalDuration time.Duration

	// Step rotation bounds, radians.
	MaxAngleVariation float64
	MinAngleVariation float64

	// Conservative factors applied to the step length and angle saturations.
	SaturationFactors [2]float64

	// Per-foot yaw calibration offsets, radians.
	LeftYawDelta  float64
	RightYawDelta float64

	SwingLeft           bool
	StartAlwaysSameFoot bool
	TerminalStep        bool

	// Fractions of the double-support window at which a replanned
	// trajectory may be stitched onto the previous one.
	MergePointRatios [2]float64

	SwitchOverSwingRatio float64
	LastStepSwitchTime   float64
	IsPauseActive        bool

	// CoM pendulum geometry.
	CoMHeight      float64
	CoMHeightDelta float64

	// Per-foot ZMP offsets in the foot frame.
	LeftZMPDelta  r2.Point
	RightZMPDelta r2.Point

	LastStepDCMOffset float64

	// Contact frame names and their indices resolved against a kinematic
	// model. Indices stay FrameInvalid until SetRobotContactFrames runs.
	LeftContactFrameName   string
	RightContactFrameName  string
	LeftContactFrameIndex  int
	RightContactFrameIndex int
}

// Omega returns the LIP angular frequency sqrt(g / comHeight).
func (p *Parameters) Omega() float64 {
	return math.Sqrt(gravity / p.CoMHeight)
}

// gravity is the standard acceleration of gravitation, m/s^2.
const gravity = 9.80665

// partialParameters mirrors the YAML schema with pointer fields so that a
// missing key (nil) is distinguishable from an explicit zero.
type partialParameters struct {
	ReferencePosition      *[2]float64 `yaml:"referencePosition"`
	ControlType            *string     `yaml:"controlType"`
	UnicycleGain           *float64    `yaml:"unicycleGain"`
	SlowWhenTurningGain    *float64    `yaml:"slowWhenTurningGain"`
	SlowWhenBackwardFactor *float64    `yaml:"slowWhenBackwardFactor"`
	SlowWhenSidewaysFactor *float64    `yaml:"slowWhenSidewaysFactor"`
	DT                     *float64    `yaml:"dt"`
	PlannerHorizon         *float64    `yaml:"plannerHorizon"`
	PositionWeight         *float64    `yaml:"positionWeight"`
	TimeWeight             *float64    `yaml:"timeWeight"`
	MaxStepLength          *float64    `yaml:"maxStepLength"`
	MinStepLength          *float64    `yaml:"minStepLength"`
	MaxLengthBackward      *float64    `yaml:"maxLengthBackwardFactor"`
	NominalWidth           *float64    `yaml:"nominalWidth"`
	MinWidth               *float64    `yaml:"minWidth"`
	MinStepDuration        *float64    `yaml:"minStepDuration"`
	MaxStepDuration        *float64    `yaml:"maxStepDuration"`
	NominalDuration        *float64    `yaml:"nominalDuration"`
	MaxAngleVariation      *float64    `yaml:"maxAngleVariation"`
	MinAngleVariation      *float64    `yaml:"minAngleVariation"`
	SaturationFactors      *[2]float64 `yaml:"saturationFactors"`
	LeftYawDeltaInDeg      *float64    `yaml:"leftYawDeltaInDeg"`
	RightYawDeltaInDeg     *float64    `yaml:"rightYawDeltaInDeg"`
	SwingLeft              *bool       `yaml:"swingLeft"`
	StartAlwaysSameFoot    *bool       `yaml:"startAlwaysSameFoot"`
	TerminalStep           *bool       `yaml:"terminalStep"`
	MergePointRatios       *[2]float64 `yaml:"mergePointRatios"`
	SwitchOverSwingRatio   *float64    `yaml:"switchOverSwingRatio"`
	LastStepSwitchTime     *float64    `yaml:"lastStepSwitchTime"`
	IsPauseActive          *bool       `yaml:"isPauseActive"`
	CoMHeight              *float64    `yaml:"comHeight"`
	CoMHeightDelta         *float64    `yaml:"comHeightDelta"`
	LeftZMPDelta           *[2]float64 `yaml:"leftZMPDelta"`
	RightZMPDelta          *[2]float64 `yaml:"rightZMPDelta"`
	LastStepDCMOffset      *float64    `yaml:"lastStepDCMOffset"`
	LeftContactFrameName   *string     `yaml:"leftContactFrameName"`
	RightContactFrameName  *string     `yaml:"rightContactFrameName"`
}

// MissingParameterError reports a required key absent from the parameter file.
type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("required parameter %q is missing", e.Name)
}

// ParseError is returned when the parameter file exists but is not valid YAML.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// defaults returns Parameters with every optional field set to its default
// value and the required fields left zero.
func defaults() Parameters {
	return Parameters{
		ControlType:             DefaultControlType,
		UnicycleGain:            DefaultUnicycleGain,
		SlowWhenTurningGain:     DefaultSlowWhenTurningGain,
		SlowWhenBackwardFactor:  DefaultSlowWhenBackwardFactor,
		SlowWhenSidewaysFactor:  DefaultSlowWhenSidewaysFactor,
		DT:                      DefaultDT,
		PlannerHorizon:          DefaultPlannerHorizon,
		PositionWeight:          DefaultPositionWeight,
		TimeWeight:              DefaultTimeWeight,
		MaxStepLength:           DefaultMaxStepLength,
		MinStepLength:           DefaultMinStepLength,
		MaxLengthBackwardFactor: DefaultMaxLengthBackward,
		NominalWidth:            DefaultNominalWidth,
		MinWidth:                DefaultMinWidth,
		MinStepDuration:         DefaultMinStepDuration,
		MaxStepDuration:         DefaultMaxStepDuration,
		NominalDuration:         DefaultNominalDuration,
		MaxAngleVariation:       deg2rad(DefaultMaxAngleVariationDeg),
		MinAngleVariation:       deg2rad(DefaultMinAngleVariationDeg),
		StartAlwaysSameFoot:     true,
		TerminalStep:            true,
		SwitchOverSwingRatio:    DefaultSwitchOverSwingRatio,
		LastStepSwitchTime:      DefaultLastStepSwitchTime,
		IsPauseActive:           true,
		CoMHeight:               DefaultCoMHeight,
		CoMHeightDelta:          DefaultCoMHeightDelta,
		LastStepDCMOffset:       DefaultLastStepDCMOffset,
		LeftContactFrameIndex:   FrameInvalid,
		RightContactFrameIndex:  FrameInvalid,
	}
}

// Load reads the parameter file at path and returns validated Parameters.
// A missing file is an error: unlike ordinary tool configuration, the planner
// has required keys with no sensible defaults.
func Load(path string) (*Parameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read parameter file: %w", err)
	}
	params, err := Parse(data)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			perr.Path = path
		}
		return nil, err
	}
	return params, nil
}

// Parse unmarshals a YAML parameter document and returns validated Parameters.
// Required keys: referencePosition, saturationFactors, mergePointRatios,
// leftZMPDelta, rightZMPDelta, leftContactFrameName, rightContactFrameName.
func Parse(data []byte) (*Parameters, error) {
	var partial partialParameters
	if err := yaml.Unmarshal(data, &partial); err != nil {
		return nil, &ParseError{Err: err}
	}

	p := defaults()

	// Required keys first: fail on the first absent one, naming it.
	switch {
	case partial.ReferencePosition == nil:
		return nil, &MissingParameterError{Name: "referencePosition"}
	case partial.SaturationFactors == nil:
		return nil, &MissingParameterError{Name: "saturationFactors"}
	case partial.MergePointRatios == nil:
		return nil, &MissingParameterError{Name: "mergePointRatios"}
	case partial.LeftZMPDelta == nil:
		return nil, &MissingParameterError{Name: "leftZMPDelta"}
	case partial.RightZMPDelta == nil:
		return nil, &MissingParameterError{Name: "rightZMPDelta"}
	case partial.LeftContactFrameName == nil:
		return nil, &MissingParameterError{Name: "leftContactFrameName"}
	case partial.RightContactFrameName == nil:
		return nil, &MissingParameterError{Name: "rightContactFrameName"}
	}

	p.ReferencePosition = r2.Point{X: partial.ReferencePosition[0], Y: partial.ReferencePosition[1]}
	p.SaturationFactors = *partial.SaturationFactors
	p.MergePointRatios = *partial.MergePointRatios
	p.LeftZMPDelta = r2.Point{X: partial.LeftZMPDelta[0], Y: partial.LeftZMPDelta[1]}
	p.RightZMPDelta = r2.Point{X: partial.RightZMPDelta[0], Y: partial.RightZMPDelta[1]}
	p.LeftContactFrameName = *partial.LeftContactFrameName
	p.RightContactFrameName = *partial.RightContactFrameName

	if partial.ControlType != nil {
		p.ControlType = ControllerMode(*partial.ControlType)
	} else {
		log.Debugf("parameter %q absent, using default %q", "controlType", p.ControlType)
	}
	if partial.UnicycleGain != nil {
		p.UnicycleGain = *partial.UnicycleGain
	}
	if partial.SlowWhenTurningGain != nil {
		p.SlowWhenTurningGain = *partial.SlowWhenTurningGain
	}
	if partial.SlowWhenBackwardFactor != nil {
		p.SlowWhenBackwardFactor = *partial.SlowWhenBackwardFactor
	}
	if partial.SlowWhenSidewaysFactor != nil {
		p.SlowWhenSidewaysFactor = *partial.SlowWhenSidewaysFactor
	}
	if partial.DT != nil {
		p.DT = secondsToDuration(*partial.DT)
	}
	if partial.PlannerHorizon != nil {
		p.PlannerHorizon = secondsToDuration(*partial.PlannerHorizon)
	}
	if partial.PositionWeight != nil {
		p.PositionWeight = *partial.PositionWeight
	}
	if partial.TimeWeight != nil {
		p.TimeWeight = *partial.TimeWeight
	}
	if partial.MaxStepLength != nil {
		p.MaxStepLength = *partial.MaxStepLength
	}
	if partial.MinStepLength != nil {
		p.MinStepLength = *partial.MinStepLength
	}
	if partial.MaxLengthBackward != nil {
		p.MaxLengthBackwardFactor = *partial.MaxLengthBackward
	}
	if partial.NominalWidth != nil {
		p.NominalWidth = *partial.NominalWidth
	}
	if partial.MinWidth != nil {
		p.MinWidth = *partial.MinWidth
	}
	if partial.MinStepDuration != nil {
		p.MinStepDuration = secondsToDuration(*partial.MinStepDuration)
	}
	if partial.MaxStepDuration != nil {
		p.MaxStepDuration = secondsToDuration(*partial.MaxStepDuration)
	}
	if partial.NominalDuration != nil {
		p.NominalDuration = secondsToDuration(*partial.NominalDuration)
	}
	if partial.MaxAngleVariation != nil {
		p.MaxAngleVariation = deg2rad(*partial.MaxAngleVariation)
	}
	if partial.MinAngleVariation != nil {
		p.MinAngleVariation = deg2rad(*partial.MinAngleVariation)
	}
	if partial.LeftYawDeltaInDeg != nil {
		p.LeftYawDelta = deg2rad(*partial.LeftYawDeltaInDeg)
	}
	if partial.RightYawDeltaInDeg != nil {
		p.RightYawDelta = deg2rad(*partial.RightYawDeltaInDeg)
	}
	if partial.SwingLeft != nil {
		p.SwingLeft = *partial.SwingLeft
	}
	if partial.StartAlwaysSameFoot != nil {
		p.StartAlwaysSameFoot = *partial.StartAlwaysSameFoot
	}
	if partial.TerminalStep != nil {
		p.TerminalStep = *partial.TerminalStep
	}
	if partial.SwitchOverSwingRatio != nil {
		p.SwitchOverSwingRatio = *partial.SwitchOverSwingRatio
	}
	if partial.LastStepSwitchTime != nil {
		p.LastStepSwitchTime = *partial.LastStepSwitchTime
	}
	if partial.IsPauseActive != nil {
		p.IsPauseActive = *partial.IsPauseActive
	}
	if partial.CoMHeight != nil {
		p.CoMHeight = *partial.CoMHeight
	}
	if partial.CoMHeightDelta != nil {
		p.CoMHeightDelta = *partial.CoMHeightDelta
	}
	if partial.LastStepDCMOffset != nil {
		p.LastStepDCMOffset = *partial.LastStepDCMOffset
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks every range constraint, aggregating all violations into a
// single error so a bad parameter file is reported in one pass.
func (p *Parameters) Validate() error {
	var err error

	if p.ControlType != ModePersonFollowing && p.ControlType != ModeDirect {
		err = multierr.Append(err, fmt.Errorf("controlType %q is invalid (must be %q or %q)",
			p.ControlType, ModePersonFollowing, ModeDirect))
	}
	if p.DT <= 0 {
		err = multierr.Append(err, fmt.Errorf("dt must be positive, got %v", p.DT))
	}
	if p.PlannerHorizon <= p.DT {
		err = multierr.Append(err, fmt.Errorf("plannerHorizon %v must exceed dt %v", p.PlannerHorizon, p.DT))
	}
	if p.CoMHeight <= 0 {
		err = multierr.Append(err, fmt.Errorf("comHeight must be positive, got %v", p.CoMHeight))
	}
	if p.MinStepDuration >= p.MaxStepDuration {
		err = multierr.Append(err, fmt.Errorf("minStepDuration %v must be below maxStepDuration %v",
			p.MinStepDuration, p.MaxStepDuration))
	}
	if p.NominalDuration < p.MinStepDuration || p.NominalDuration > p.MaxStepDuration {
		err = multierr.Append(err, fmt.Errorf("nominalDuration %v outside [%v, %v]",
			p.NominalDuration, p.MinStepDuration, p.MaxStepDuration))
	}
	if p.MinStepLength <= 0 || p.MaxStepLength < p.MinStepLength {
		err = multierr.Append(err, fmt.Errorf("step length bounds [%v, %v] are invalid",
			p.MinStepLength, p.MaxStepLength))
	}
	if p.MinWidth > p.NominalWidth {
		err = multierr.Append(err, fmt.Errorf("minWidth %v exceeds nominalWidth %v", p.MinWidth, p.NominalWidth))
	}
	if p.SwitchOverSwingRatio <= 0 || p.SwitchOverSwingRatio >= 0.5 {
		err = multierr.Append(err, fmt.Errorf("switchOverSwingRatio %v outside (0, 0.5)", p.SwitchOverSwingRatio))
	}
	for i, r := range p.MergePointRatios {
		if r < 0 || r > 1 {
			err = multierr.Append(err, fmt.Errorf("mergePointRatios[%d] = %v outside [0, 1]", i, r))
		}
	}
	if p.LastStepDCMOffset < 0 || p.LastStepDCMOffset > 1 {
		err = multierr.Append(err, fmt.Errorf("lastStepDCMOffset %v outside [0, 1]", p.LastStepDCMOffset))
	}

	return err
}

func deg2rad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
