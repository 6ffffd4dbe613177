// qgen run [script | KEY=VALUE...] [-- program arguments]
package cmd

import (
	"github.com/spf13/cobra"
)

var flagProject string

func doRun(cmd *cobra.Command, args []string) {
	var programArgs []string
	if dash := cmd.ArgsLenAtDash(); dash >= 0 {
		args, programArgs = args[:dash], args[dash:]
	}
	b := newBuilder(args)
	if err := b.BuildAndRun(cmd.Context(), flagProject, programArgs); err != nil {
		fatal(err)
	}
}

var runCmd = &cobra.Command{
	Use:   "run [script | KEY=VALUE...] [-- program arguments]",
	Short: "Build, then run an executable project",
	Long: `Build, then run an executable project. Without --project the last
executable in reference order is run. Arguments after -- are passed to it.`,
	Args: cobra.ArbitraryArgs,
	Run:  doRun,
}

func init() {
	// qgen run subcommand
	rootCmd.AddCommand(runCmd)
	addGenerateFlags(runCmd)
	runCmd.Flags().StringVarP(&flagProject, "project", "p", "", "Name of the executable project to run")
}
