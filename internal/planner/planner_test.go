package planner_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fils99/bipedal-locomotion-framework/internal/config"
	"github.com/fils99/bipedal-locomotion-framework/internal/kindyn"
	"github.com/fils99/bipedal-locomotion-framework/internal/planner"
)

const paramsYAML = `
referencePosition: [0.1, 0.0]
saturationFactors: [0.7, 0.7]
mergePointRatios: [0.4, 0.4]
leftZMPDelta: [0.0, 0.0]
rightZMPDelta: [0.0, 0.0]
leftContactFrameName: l_sole
rightContactFrameName: r_sole
controlType: direct
dt: 0.01
plannerHorizon: 10.0
`

func testParams(t *testing.T) *config.Parameters {
	t.Helper()
	p, err := config.Parse([]byte(paramsYAML))
	require.NoError(t, err)
	return p
}

// walkInput commands a forward walk with the left foot as the stance foot,
// standing at its seed pose.
func walkInput(p *config.Parameters) planner.Input {
	return planner.Input{
		Command:            [3]float64{0.2, 0, 0},
		IsLeftLastSwinging: false,
		InitTime:           0,
		MeasuredPosition:   r3.Vector{X: 0, Y: p.NominalWidth / 2, Z: 0},
		MeasuredYaw:        0,
		CoMPosition:        r2.Point{X: 0, Y: 0},
	}
}

// newRunningPlanner advances twice: the first Advance publishes the seed
// trajectory, the second replans with the walk command.
func newRunningPlanner(t *testing.T) (*planner.Planner, *config.Parameters) {
	t.Helper()
	p := planner.New()
	params := testParams(t)
	require.NoError(t, p.Initialize(params))
	require.NoError(t, p.SetInput(walkInput(params)))
	require.NoError(t, p.Advance())
	require.NoError(t, p.SetInput(walkInput(params)))
	require.NoError(t, p.Advance())
	return p, params
}

// ---------------------------------------------------------------------------
// lifecycle
// ---------------------------------------------------------------------------

func TestInitializeRejectsNilParameters(t *testing.T) {
	p := planner.New()
	err := p.Initialize(nil)

	var cfgErr *planner.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, planner.StateNotInitialized, p.State())
}

func TestInitializeRejectsInvalidParameters(t *testing.T) {
	params := testParams(t)
	params.CoMHeight = -1

	p := planner.New()
	var cfgErr *planner.ConfigurationError
	require.ErrorAs(t, p.Initialize(params), &cfgErr)
	assert.Equal(t, planner.StateNotInitialized, p.State())
}

func TestOperationsBeforeInitialize(t *testing.T) {
	p := planner.New()

	var seqErr *planner.SequenceError
	assert.ErrorAs(t, p.SetInput(planner.DummyInput()), &seqErr)
	assert.ErrorAs(t, p.Advance(), &seqErr)
	assert.ErrorAs(t, p.SetRobotContactFrames(kindyn.NewStaticModel("l_sole", "r_sole")), &seqErr)
}

// Initialize seeds a neutral input, so the documented initialize-then-advance
// sequence works without a prior SetInput.
func TestAdvanceRightAfterInitialize(t *testing.T) {
	p := planner.New()
	require.NoError(t, p.Initialize(testParams(t)))

	require.NoError(t, p.Advance())
	assert.Equal(t, planner.StateRunning, p.State())
	assert.True(t, p.IsOutputValid())

	out := p.GetOutput()
	assert.Len(t, out.LeftSteps, 1)
	assert.Len(t, out.RightSteps, 1)
}

func TestInitializeThenAdvanceReachesRunning(t *testing.T) {
	p := planner.New()
	require.NoError(t, p.Initialize(testParams(t)))
	assert.Equal(t, planner.StateInitialized, p.State())
	assert.False(t, p.IsOutputValid())

	phases, err := p.GetContactPhaseList()
	require.NoError(t, err)
	assert.Empty(t, phases)

	require.NoError(t, p.SetInput(planner.DummyInput()))
	require.NoError(t, p.Advance())
	assert.Equal(t, planner.StateRunning, p.State())
	assert.True(t, p.IsOutputValid())
}

func TestSetInputRejectsNonFiniteCommand(t *testing.T) {
	p := planner.New()
	require.NoError(t, p.Initialize(testParams(t)))

	in := planner.DummyInput()
	in.Command[0] = math.NaN()
	assert.Error(t, p.SetInput(in))

	in = planner.DummyInput()
	in.InitTime = -time.Second
	assert.Error(t, p.SetInput(in))
}

func TestMissingContactFrameResetsPlanner(t *testing.T) {
	p := planner.New()
	require.NoError(t, p.Initialize(testParams(t)))

	var cfgErr *planner.ConfigurationError
	err := p.SetRobotContactFrames(kindyn.NewStaticModel("l_sole", "torso"))
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, planner.StateNotInitialized, p.State())

	var seqErr *planner.SequenceError
	assert.ErrorAs(t, p.Advance(), &seqErr)
}

// A frame-resolution failure withdraws the published trajectory along with
// the Running state.
func TestFailedFrameResolutionInvalidatesOutput(t *testing.T) {
	p, _ := newRunningPlanner(t)
	require.True(t, p.IsOutputValid())

	var cfgErr *planner.ConfigurationError
	err := p.SetRobotContactFrames(kindyn.NewStaticModel("l_sole", "torso"))
	require.ErrorAs(t, err, &cfgErr)

	assert.Equal(t, planner.StateNotInitialized, p.State())
	assert.False(t, p.IsOutputValid())

	phases, err := p.GetContactPhaseList()
	require.NoError(t, err)
	assert.Empty(t, phases)
}

// ---------------------------------------------------------------------------
// published output
// ---------------------------------------------------------------------------

// The first Advance must publish the seed trajectory as-is; the walk command
// only takes effect from the second cycle on.
func TestFirstAdvancePublishesSeedWithoutReplanning(t *testing.T) {
	p := planner.New()
	params := testParams(t)
	require.NoError(t, p.Initialize(params))
	require.NoError(t, p.SetInput(walkInput(params)))
	require.NoError(t, p.Advance())

	out := p.GetOutput()
	assert.Len(t, out.LeftSteps, 1)
	assert.Len(t, out.RightSteps, 1)
	assert.Equal(t, time.Duration(0), out.InitTime)

	require.NoError(t, p.SetInput(walkInput(params)))
	require.NoError(t, p.Advance())
	assert.Greater(t, len(p.GetOutput().LeftSteps), 1)
}

// With zero command, zero DCM state, and a CoM state consistent with the
// pendulum dynamics, the first acceleration sample is omega^2 times the
// position offset.
func TestFirstAccelerationMatchesPendulum(t *testing.T) {
	p := planner.New()
	params := testParams(t)
	require.NoError(t, p.Initialize(params))
	omega := params.Omega()

	in := walkInput(params)
	in.Command = [3]float64{0, 0, 0}
	in.CoMPosition = r2.Point{X: 0.02, Y: -0.01}
	in.CoMVelocity = r2.Point{X: -omega * 0.02, Y: omega * 0.01}
	require.NoError(t, p.SetInput(in))
	require.NoError(t, p.Advance())

	out := p.GetOutput()
	require.InDelta(t, 0, out.DCMPosition[0].X, 1e-12)
	require.InDelta(t, 0, out.DCMPosition[0].Y, 1e-12)
	assert.InDelta(t, omega*omega*0.02, out.CoMAcceleration[0].X, 1e-9)
	assert.InDelta(t, -omega*omega*0.01, out.CoMAcceleration[0].Y, 1e-9)
}

func TestOutputBuffersShareLength(t *testing.T) {
	p, params := newRunningPlanner(t)
	out := p.GetOutput()

	n := int(params.PlannerHorizon/params.DT) + 1
	assert.Len(t, out.DCMPosition, n)
	assert.Len(t, out.DCMVelocity, n)
	assert.Len(t, out.CoMPosition, n)
	assert.Len(t, out.CoMVelocity, n)
	assert.Len(t, out.CoMAcceleration, n)
	assert.Len(t, out.LeftInContact, n)
	assert.Len(t, out.RightInContact, n)
	assert.Len(t, out.LeftAsFixed, n)
	assert.Equal(t, params.DT, out.DT)
}

func TestPlanIDChangesAcrossReplans(t *testing.T) {
	p, params := newRunningPlanner(t)
	first := p.GetOutput().PlanID

	require.NoError(t, p.SetInput(walkInput(params)))
	require.NoError(t, p.Advance())
	assert.NotEqual(t, first, p.GetOutput().PlanID)
}

func TestFailedReplanKeepsPreviousOutput(t *testing.T) {
	p, params := newRunningPlanner(t)
	before := p.GetOutput()

	in := walkInput(params)
	in.DCMPosition = r2.Point{X: math.NaN(), Y: 0}
	require.NoError(t, p.SetInput(in))

	err := p.Advance()
	var replanErr *planner.ReplanError
	require.ErrorAs(t, err, &replanErr)

	after := p.GetOutput()
	assert.Equal(t, before.PlanID, after.PlanID)
	assert.Equal(t, before.LeftSteps, after.LeftSteps)
	assert.True(t, p.IsOutputValid())
}

func TestCoMStartsAtMeasuredState(t *testing.T) {
	p, _ := newRunningPlanner(t)
	out := p.GetOutput()

	require.NotEmpty(t, out.CoMPosition)
	assert.InDelta(t, 0, out.CoMPosition[0].X, 1e-12)
	assert.InDelta(t, 0, out.CoMPosition[0].Y, 1e-12)
}

// The pendulum dynamics tie every planar CoM velocity sample to the gap
// between the DCM reference and the CoM position.
func TestCoMVelocityMatchesPendulumDynamics(t *testing.T) {
	p, params := newRunningPlanner(t)
	out := p.GetOutput()
	omega := params.Omega()

	for _, i := range []int{0, 100, 500, len(out.CoMPosition) - 1} {
		wantX := omega * (out.DCMPosition[i].X - out.CoMPosition[i].X)
		wantY := omega * (out.DCMPosition[i].Y - out.CoMPosition[i].Y)
		assert.InDelta(t, wantX, out.CoMVelocity[i].X, 1e-9, "sample %d", i)
		assert.InDelta(t, wantY, out.CoMVelocity[i].Y, 1e-9, "sample %d", i)
	}
}

func TestCoMHeightStaysNearPendulumHeight(t *testing.T) {
	p, params := newRunningPlanner(t)
	out := p.GetOutput()

	lo := params.CoMHeight - 1e-9
	hi := params.CoMHeight + params.CoMHeightDelta + 1e-9
	for i, c := range out.CoMPosition {
		if c.Z < lo || c.Z > hi {
			t.Fatalf("sample %d: height %v outside [%v, %v]", i, c.Z, lo, hi)
		}
	}
}

func TestStandingCommandKeepsFeetPlanted(t *testing.T) {
	p := planner.New()
	params := testParams(t)
	require.NoError(t, p.Initialize(params))

	in := walkInput(params)
	in.Command = [3]float64{0, 0, 0}
	require.NoError(t, p.SetInput(in))
	require.NoError(t, p.Advance()) // publishes the seed
	require.NoError(t, p.SetInput(in))
	require.NoError(t, p.Advance()) // replans while standing

	out := p.GetOutput()
	assert.Len(t, out.LeftSteps, 1)
	assert.Len(t, out.RightSteps, 1)
	for i := range out.LeftInContact {
		require.True(t, out.LeftInContact[i])
		require.True(t, out.RightInContact[i])
	}
	assert.Equal(t, []time.Duration{0}, out.MergePoints)
}

// In person-following mode a zero command targets the unicycle's own
// reference point, so the robot keeps standing.
func TestPersonFollowingZeroCommandStandsStill(t *testing.T) {
	params := testParams(t)
	params.ControlType = config.ModePersonFollowing

	p := planner.New()
	require.NoError(t, p.Initialize(params))

	in := walkInput(params)
	in.Command = [3]float64{0, 0, 0}
	require.NoError(t, p.SetInput(in))
	require.NoError(t, p.Advance()) // publishes the seed
	require.NoError(t, p.SetInput(in))
	require.NoError(t, p.Advance()) // replans toward the reference point

	out := p.GetOutput()
	require.Len(t, out.LeftSteps, 1)
	require.Len(t, out.RightSteps, 1)
	assert.InDelta(t, 0, out.LeftSteps[0].Position.X, 1e-9)
	assert.InDelta(t, params.NominalWidth/2, out.LeftSteps[0].Position.Y, 1e-9)
	assert.InDelta(t, 0, out.LeftSteps[0].Angle, 1e-9)
	for i := range out.LeftInContact {
		require.True(t, out.LeftInContact[i])
		require.True(t, out.RightInContact[i])
	}
}

// Re-initializing a planner that was walking must seed a standing
// trajectory: stale commands do not survive Initialize.
func TestReinitializeSeedsStandingTrajectory(t *testing.T) {
	p, params := newRunningPlanner(t)
	require.Greater(t, len(p.GetOutput().LeftSteps), 1)

	require.NoError(t, p.Initialize(params))
	assert.Equal(t, planner.StateInitialized, p.State())
	assert.False(t, p.IsOutputValid())

	require.NoError(t, p.Advance())
	out := p.GetOutput()
	assert.Len(t, out.LeftSteps, 1)
	assert.Len(t, out.RightSteps, 1)
}

func TestWalkCommandProducesSteps(t *testing.T) {
	p, _ := newRunningPlanner(t)
	out := p.GetOutput()

	assert.Greater(t, len(out.LeftSteps), 1)
	assert.Greater(t, len(out.RightSteps), 1)

	// Left stance foot anchors the replan at its measured pose.
	assert.Equal(t, time.Duration(0), out.LeftSteps[0].ImpactTime)
	assert.InDelta(t, 0, out.LeftSteps[0].Position.X, 1e-12)
}

func TestDeterministicReplanExceptPlanID(t *testing.T) {
	a, _ := newRunningPlanner(t)
	b, _ := newRunningPlanner(t)

	outA, outB := a.GetOutput(), b.GetOutput()
	assert.NotEqual(t, outA.PlanID, outB.PlanID)
	assert.Equal(t, outA.LeftSteps, outB.LeftSteps)
	assert.Equal(t, outA.RightSteps, outB.RightSteps)
	assert.Equal(t, outA.DCMPosition, outB.DCMPosition)
	assert.Equal(t, outA.CoMPosition, outB.CoMPosition)
	assert.Equal(t, outA.MergePoints, outB.MergePoints)
}

// ---------------------------------------------------------------------------
// contact phases
// ---------------------------------------------------------------------------

func TestContactPhaseListFromPublishedOutput(t *testing.T) {
	p := planner.New()
	params := testParams(t)
	require.NoError(t, p.Initialize(params))
	require.NoError(t, p.SetRobotContactFrames(kindyn.NewStaticModel("l_sole", "r_sole")))
	require.NoError(t, p.SetInput(walkInput(params)))
	require.NoError(t, p.Advance())

	phases, err := p.GetContactPhaseList()
	require.NoError(t, err)
	require.Len(t, phases, 2)

	out := p.GetOutput()
	left, right := phases["left_foot"], phases["right_foot"]
	require.NoError(t, left.Validate())
	require.NoError(t, right.Validate())
	assert.Len(t, left, len(out.LeftSteps))
	assert.Len(t, right, len(out.RightSteps))

	for _, c := range left {
		assert.Equal(t, "left_foot", c.Name)
		assert.Equal(t, 0, c.FrameIndex)
	}
	for _, c := range right {
		assert.Equal(t, "right_foot", c.Name)
		assert.Equal(t, 1, c.FrameIndex)
	}
}

func TestReplanErrorUnwraps(t *testing.T) {
	inner := errors.New("boom")
	err := &planner.ReplanError{Err: inner}
	assert.ErrorIs(t, err, inner)
}
