package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fils99/bipedal-locomotion-framework/internal/log"
)

var version = "v0.1.0"

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "unicycle-planner",
	Short: "unicycle-planner generates bipedal walking reference trajectories",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Verbose = verbose
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug output")
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(initCmd)
}
