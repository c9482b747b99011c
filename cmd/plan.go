package cmd

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/spf13/cobra"

	"github.com/fils99/bipedal-locomotion-framework/internal/config"
	"github.com/fils99/bipedal-locomotion-framework/internal/kindyn"
	"github.com/fils99/bipedal-locomotion-framework/internal/log"
	"github.com/fils99/bipedal-locomotion-framework/internal/metrics"
	"github.com/fils99/bipedal-locomotion-framework/internal/planner"
)

// planFlags holds CLI flag values that override the parameter file. Only
// flags explicitly changed by the user are applied (checked via
// cmd.Flags().Changed).
var planFlags struct {
	paramsPath string
	cycles     int
	dt         float64
	horizon    float64
	command    []float64
	csvPath    string
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Run a closed-loop planning session",
	Long: "Run repeated replanning cycles from a parameter file, feeding each " +
		"plan's first merge point back as the next measured state.",
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planFlags.paramsPath, "params", "planner.yaml", "parameter file path")
	planCmd.Flags().IntVar(&planFlags.cycles, "cycles", 5, "number of replanning cycles")
	planCmd.Flags().Float64Var(&planFlags.dt, "dt", 0, "override dt from the parameter file, seconds")
	planCmd.Flags().Float64Var(&planFlags.horizon, "horizon", 0, "override plannerHorizon from the parameter file, seconds")
	planCmd.Flags().Float64SliceVar(&planFlags.command, "command", []float64{0.2, 0, 0},
		"walking command (direct: vx,vy,wz; personFollowing: x,y)")
	planCmd.Flags().StringVar(&planFlags.csvPath, "csv", "", "write the final CoM/DCM trajectory to this CSV file")
}

func runPlan(cmd *cobra.Command, args []string) error {
	params, err := config.Load(planFlags.paramsPath)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("dt") {
		params.DT = time.Duration(planFlags.dt * float64(time.Second))
	}
	if cmd.Flags().Changed("horizon") {
		params.PlannerHorizon = time.Duration(planFlags.horizon * float64(time.Second))
	}

	var command [3]float64
	copy(command[:], planFlags.command)

	pl := planner.New()
	if err := pl.Initialize(params); err != nil {
		return err
	}
	model := kindyn.NewStaticModel(params.LeftContactFrameName, params.RightContactFrameName)
	if err := pl.SetRobotContactFrames(model); err != nil {
		return err
	}

	log.Section("PLANNING SESSION")
	log.Infof("parameters: %s | dt %v | horizon %v | control %s",
		planFlags.paramsPath, params.DT, params.PlannerHorizon, params.ControlType)

	// The session starts from the seed stance: left foot planted at its
	// nominal pose, robot at rest.
	in := planner.Input{
		Command:          command,
		MeasuredPosition: r3.Vector{X: 0, Y: params.NominalWidth / 2},
	}

	var rec metrics.Recorder
	for cycle := 0; cycle < planFlags.cycles; cycle++ {
		if err := pl.SetInput(in); err != nil {
			return err
		}

		start := time.Now()
		err := pl.Advance()
		elapsed := time.Since(start)

		if err != nil {
			var replanErr *planner.ReplanError
			if !errors.As(err, &replanErr) {
				return err
			}
			rec.Record(metrics.OutcomeRejected, elapsed, 0)
			log.Warningf("cycle %d rejected: %v", cycle+1, err)
			// the same input would only be rejected again
			break
		}

		out := pl.GetOutput()
		outcome := metrics.OutcomeReplanned
		if cycle == 0 {
			outcome = metrics.OutcomeSeed
		}
		rec.Record(outcome, elapsed, len(out.CoMPosition))

		log.Infof("cycle %d: plan %s | %d+%d steps | %d merge points | start %v",
			cycle+1, out.PlanID, len(out.LeftSteps), len(out.RightSteps),
			len(out.MergePoints), out.InitTime)

		// When the plan has no merge point ahead (seed or standing plan),
		// replan from the same measured state.
		if next, ok := nextInput(out, command); ok {
			in = next
		}
	}

	if planFlags.csvPath != "" {
		if err := writeTrajectoryCSV(planFlags.csvPath, pl.GetOutput()); err != nil {
			return fmt.Errorf("write trajectory: %w", err)
		}
		log.Success("trajectory written to " + planFlags.csvPath)
	}

	phases, err := pl.GetContactPhaseList()
	if err != nil {
		return err
	}
	for name, list := range phases {
		log.Infof("%s: %d contact phases", name, len(list))
	}

	rec.PrintSummary()
	return nil
}

// nextInput builds the following cycle's measured state by sampling the
// published plan at its first merge point past the plan start.
func nextInput(out planner.Output, command [3]float64) (planner.Input, bool) {
	var merge time.Duration
	found := false
	for _, m := range out.MergePoints {
		if m > out.InitTime {
			merge = m
			found = true
			break
		}
	}
	if !found {
		return planner.Input{}, false
	}

	i := int((merge - out.InitTime) / out.DT)
	if i >= len(out.CoMPosition) {
		return planner.Input{}, false
	}

	leftFixed := out.LeftAsFixed[i]
	steps := out.LeftSteps
	if !leftFixed {
		steps = out.RightSteps
	}
	stance := steps[0]
	for _, s := range steps {
		if s.ImpactTime <= merge {
			stance = s
		}
	}

	return planner.Input{
		Command:            command,
		IsLeftLastSwinging: !leftFixed,
		InitTime:           merge,
		MeasuredPosition:   r3.Vector{X: stance.Position.X, Y: stance.Position.Y},
		MeasuredYaw:        stance.Angle,
		DCMPosition:        out.DCMPosition[i],
		DCMVelocity:        out.DCMVelocity[i],
		CoMPosition:        r2.Point{X: out.CoMPosition[i].X, Y: out.CoMPosition[i].Y},
		CoMVelocity:        r2.Point{X: out.CoMVelocity[i].X, Y: out.CoMVelocity[i].Y},
	}, true
}

func writeTrajectoryCSV(path string, out planner.Output) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"time",
		"com_x", "com_y", "com_z",
		"com_vx", "com_vy", "com_vz",
		"dcm_x", "dcm_y",
		"left_contact", "right_contact",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for i := range out.CoMPosition {
		t := out.InitTime + time.Duration(i)*out.DT
		rec := []string{
			strconv.FormatFloat(t.Seconds(), 'f', 4, 64),
			fmtFloat(out.CoMPosition[i].X), fmtFloat(out.CoMPosition[i].Y), fmtFloat(out.CoMPosition[i].Z),
			fmtFloat(out.CoMVelocity[i].X), fmtFloat(out.CoMVelocity[i].Y), fmtFloat(out.CoMVelocity[i].Z),
			fmtFloat(out.DCMPosition[i].X), fmtFloat(out.DCMPosition[i].Y),
			strconv.FormatBool(out.LeftInContact[i]), strconv.FormatBool(out.RightInContact[i]),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
