// qgen [script | KEY=VALUE...], qgen build [script | KEY=VALUE...]
package cmd

import (
	"context"
	"errors"
	"maps"
	"os"
	"os/signal"
	"runtime"
	"slices"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/qobs-build/qgen/internal/builder"
	"github.com/qobs-build/qgen/internal/msg"
	"github.com/qobs-build/qgen/internal/prompt"
	"github.com/qobs-build/qgen/internal/replay"
	"github.com/qobs-build/qgen/internal/schema"
	"github.com/qobs-build/qgen/internal/variable"
	"github.com/spf13/cobra"
	"go.trai.ch/zerr"
)

var (
	ErrArguments  = zerr.New("invalid arguments")
	ErrUnresolved = zerr.New("variables could not be resolved")
)

var (
	flagQuiet   bool
	flagVerbose bool
	flagDiff    bool
	flagShell   EnumValue = NewEnumValue(defaultShell(), map[string]string{
		"sh":  "POSIX shell replay script (qgen.sh)",
		"cmd": "Windows batch replay script (qgen.cmd)",
	})
)

func defaultShell() string {
	if runtime.GOOS == "windows" {
		return "cmd"
	}
	return "sh"
}

// invocation is what the positional arguments of a generating command ask for.
type invocation struct {
	script  string
	assigns []assignment
}

type assignment struct {
	name, value string
}

// parseArgs splits positional arguments into KEY=VALUE assignments and at
// most one replay script path.
func parseArgs(args []string) (invocation, error) {
	var inv invocation
	for _, arg := range args {
		if name, value, ok := strings.Cut(arg, "="); ok && isName(name) {
			inv.assigns = append(inv.assigns, assignment{name, value})
			continue
		}
		if inv.script != "" {
			return invocation{}, zerr.With(zerr.Wrap(ErrArguments, "more than one replay script"), "script", arg)
		}
		inv.script = arg
	}
	return inv, nil
}

func isName(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case i > 0 && '0' <= c && c <= '9':
		default:
			return false
		}
	}
	return true
}

// newResolver builds the resolver for inv. Assignments of a replay script
// are restored as manual overrides and hidden from the environment, so that
// rerunning the script keeps them in the script it rewrites.
func newResolver(inv invocation, vars *schema.Variables) (*variable.Resolver, error) {
	var restored variable.MapSource
	env := variable.Environment()
	if inv.script != "" {
		f, err := os.Open(inv.script)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to open replay script"), "script", inv.script)
		}
		defer f.Close()
		if restored, err = replay.Parse(f); err != nil {
			return nil, zerr.With(err, "script", inv.script)
		}
		env = variable.SourceFunc(func(name string) (string, bool) {
			if _, ok := restored[name]; ok {
				return "", false
			}
			return os.LookupEnv(name)
		})
	}

	r, err := variable.NewResolver(schema.Items(vars, schema.CurrentHost()), env)
	if err != nil {
		return nil, err
	}
	r.Restore(restored)
	for _, a := range inv.assigns {
		if err := r.Set(a.name, a.value); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func interactive() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// unresolved reports every invalid variable of pass and returns the error
// naming them.
func unresolved(pass *variable.Pass) error {
	var err error = zerr.Wrap(ErrUnresolved, "")
	for _, st := range pass.Items {
		if st.State != variable.StateInvalid {
			continue
		}
		msg.Error("%s: %s", st.Name, st.Message)
		err = zerr.With(err, st.Name, st.Message)
	}
	return err
}

// resolve runs the variable resolution for args, prompting for whatever is
// left unresolved when that is allowed.
func resolve(args []string) (*schema.Variables, *variable.Resolver, error) {
	inv, err := parseArgs(args)
	if err != nil {
		return nil, nil, err
	}
	vars := new(schema.Variables)
	r, err := newResolver(inv, vars)
	if err != nil {
		return nil, nil, err
	}

	pass := r.Resolve()
	if pass.Complete() {
		return vars, r, nil
	}
	if flagQuiet || !interactive() {
		return nil, nil, unresolved(pass)
	}
	if _, err := prompt.Run(r, pass); err != nil {
		return nil, nil, err
	}
	return vars, r, nil
}

func newBuilder(args []string) *builder.Builder {
	vars, r, err := resolve(args)
	if err != nil {
		fatal(err)
	}
	dialect, err := replay.ParseDialect(flagShell.Value())
	if err != nil {
		fatal(err)
	}
	return builder.New(builder.Options{
		Variables: vars,
		Values:    r.Memory(),
		Overrides: r.Overrides(),
		Dialect:   dialect,
		ShowDiff:  flagDiff,
	})
}

// fatal prints err and its metadata, then exits.
func fatal(err error) {
	var ze *zerr.Error
	if errors.As(err, &ze) {
		meta := ze.Metadata()
		for _, k := range slices.Sorted(maps.Keys(meta)) {
			msg.Debug("%s: %v", k, meta[k])
		}
	}
	msg.Fatal("%v", err)
}

func doGenerate(cmd *cobra.Command, args []string) {
	if _, err := newBuilder(args).Generate(cmd.Context()); err != nil {
		fatal(err)
	}
}

func doBuild(cmd *cobra.Command, args []string) {
	if _, err := newBuilder(args).Build(cmd.Context()); err != nil {
		fatal(err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "qgen [script | KEY=VALUE...]",
	Short: "C and C++ build file generator",
	Long: `Resolves the build variables, then generates native build files for the
projects declared in qgen.toml. A replay script written by a previous run may
be given to reuse its choices; KEY=VALUE arguments override single variables.`,
	Args: cobra.ArbitraryArgs,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		msg.Verbose = flagVerbose
		msg.Quiet = flagQuiet
	},
	Run: doGenerate,
}

var buildCmd = &cobra.Command{
	Use:   "build [script | KEY=VALUE...]",
	Short: "Generate, then build with the selected toolchain",
	Args:  cobra.ArbitraryArgs,
	Run:   doBuild,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Never prompt; fail when a variable cannot be resolved")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Print debug output")
	addGenerateFlags(rootCmd)

	// qgen build subcommand
	rootCmd.AddCommand(buildCmd)
	addGenerateFlags(buildCmd)
}

func addGenerateFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&flagDiff, "diff", false, "Show what changed in rewritten files")
	cmd.Flags().Var(&flagShell, "shell", "Replay script dialect, one of "+flagShell.HelpString())
	cmd.RegisterFlagCompletionFunc("shell", flagShell.CompletionFunc())
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		msg.Fatal("%v", err)
	}
}
