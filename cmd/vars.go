// qgen vars [script | KEY=VALUE...]
package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/qobs-build/qgen/internal/schema"
	"github.com/qobs-build/qgen/internal/variable"
	"github.com/spf13/cobra"
)

var flagAll bool

func stateColor(s variable.State) func(format string, a ...any) string {
	switch s {
	case variable.StateValid:
		return color.HiGreenString
	case variable.StateInvalid:
		return color.HiRedString
	case variable.StateBlocked:
		return color.YellowString
	default:
		return color.HiBlackString
	}
}

// printVars writes one line per variable of pass: name, state, and the value
// or the reason it did not resolve.
func printVars(w io.Writer, pass *variable.Pass, all bool) {
	width := 0
	for _, st := range pass.Items {
		width = max(width, len(st.Name))
	}

	for _, st := range pass.Items {
		if st.Hidden && !all {
			continue
		}
		state := fmt.Sprintf("%-11s", st.State)
		line := fmt.Sprintf("%-*s  %s", width, st.Name, stateColor(st.State)("%s", state))
		switch st.State {
		case variable.StateValid:
			line += "  " + st.Value.String()
		case variable.StateInvalid:
			line += fmt.Sprintf("  %q: %s", st.Text, st.Message)
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))

		if opts := variable.Options(st.Spec); len(opts) > 0 {
			fmt.Fprintf(w, "%*s  %s\n", width, "", color.HiBlackString("one of: %s", strings.Join(opts, ", ")))
		}
	}
}

func doVars(cmd *cobra.Command, args []string) {
	inv, err := parseArgs(args)
	if err != nil {
		fatal(err)
	}
	r, err := newResolver(inv, new(schema.Variables))
	if err != nil {
		fatal(err)
	}
	printVars(cmd.OutOrStdout(), r.Resolve(), flagAll)
}

var varsCmd = &cobra.Command{
	Use:   "vars [script | KEY=VALUE...]",
	Short: "Show how every variable resolves",
	Long: `Runs one resolution pass without prompting and prints each variable with
its state and value, or the reason it is not valid.`,
	Args: cobra.ArbitraryArgs,
	Run:  doVars,
}

func init() {
	// qgen vars subcommand
	rootCmd.AddCommand(varsCmd)
	varsCmd.Flags().BoolVarP(&flagAll, "all", "a", false, "Include hidden variables")
}
