package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fils99/bipedal-locomotion-framework/internal/log"
)

var initFlags struct {
	force bool
	path  string
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default parameter file",
	Long:  "Write a commented parameter file with sensible defaults for a small humanoid.",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initFlags.force, "force", false, "Overwrite an existing parameter file")
	initCmd.Flags().StringVar(&initFlags.path, "params", "planner.yaml", "destination path")
}

func runInit(cmd *cobra.Command, args []string) error {
	return writeDefaultParams(initFlags.path, initFlags.force)
}

// writeDefaultParams is the testable core of the init command.
func writeDefaultParams(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists; use --force to overwrite", path)
		}
	}
	if err := os.WriteFile(path, []byte(defaultParamsYAML), 0o644); err != nil {
		return fmt.Errorf("write parameter file: %w", err)
	}
	log.Success("parameter file written to " + path)
	return nil
}

// defaultParamsYAML round-trips through config.Parse; angles are in degrees
// and times in seconds, matching the on-file conventions.
const defaultParamsYAML = `# Walking trajectory planner parameters.
# Angles are in degrees, times in seconds.

referencePosition: [0.1, 0.0]
controlType: direct # direct | personFollowing

dt: 0.002
plannerHorizon: 20.0

saturationFactors: [0.7, 0.7]
mergePointRatios: [0.4, 0.4]

maxStepLength: 0.32
minStepLength: 0.01
nominalWidth: 0.20
minWidth: 0.14
minStepDuration: 0.65
maxStepDuration: 1.5
nominalDuration: 0.8
maxAngleVariation: 18.0
minAngleVariation: 5.0

switchOverSwingRatio: 0.2
lastStepDCMOffset: 0.5
comHeight: 0.70
comHeightDelta: 0.01

leftZMPDelta: [0.0, 0.0]
rightZMPDelta: [0.0, 0.0]

leftContactFrameName: l_sole
rightContactFrameName: r_sole
`
