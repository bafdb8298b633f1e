package cmds

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/go-deet/deet/pkg/config"
	"github.com/go-deet/deet/pkg/logflags"
	"github.com/go-deet/deet/pkg/symbols"
	"github.com/go-deet/deet/pkg/terminal"
	"github.com/go-deet/deet/pkg/version"
	"github.com/go-deet/deet/service/debugger"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string
	// workingDir is the working directory for running the program.
	workingDir string
	// tty is used to provide an alternate TTY for the program you wish to debug.
	tty string

	// rootCommand is the root of the command tree.
	rootCommand *cobra.Command

	conf *config.Config
)

const deetCommandLongDesc = `deet is a breakpoint debugger for native Linux/amd64 programs.

deet starts the target under ptrace, stopped before its first instruction,
and gives you a prompt to set breakpoints, run, continue and print
backtraces. The target must be compiled with debug information (-g) and frame
pointers.

Pass flags to the program you are debugging using ` + "`--`" + `, for example:

` + "`deet ./server -- --port 8080`"

// New returns an initialized command tree.
func New() *cobra.Command {
	// Config setup and load.
	conf = config.LoadConfig()

	// Main deet root command.
	rootCommand = &cobra.Command{
		Use:   "deet [flags] <target> [-- args...]",
		Short: "deet is a breakpoint debugger for native programs.",
		Long:  deetCommandLongDesc,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("you must provide a path to a binary")
			}
			if dash := cmd.ArgsLenAtDash(); dash > 1 {
				return errors.New("only one target can be debugged")
			}
			return nil
		},
		Run: deetCmd,
	}

	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable debugger logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", `Comma separated list of components that should produce debug output (see 'deet help log')`)
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor (see 'deet help log').")
	rootCommand.Flags().StringVar(&workingDir, "wd", "", "Working directory for running the program.")
	rootCommand.Flags().StringVar(&tty, "tty", "", "TTY to use for the target program")

	// 'version' subcommand.
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("deet Debugger\n%s\n", version.DeetVersion)
			if log {
				fmt.Println(version.BuildInfo())
			}
		},
	}
	rootCommand.AddCommand(versionCommand)

	rootCommand.AddCommand(&cobra.Command{
		Use:   "log",
		Short: "Help about logging flags.",
		Long: `Logging can be enabled by specifying the --log flag and using the
--log-output flag to select which components should produce logs.

The argument of --log-output must be a comma separated list of component
names selected from this list:

	debugger	Log debugger commands
	native		Log ptrace requests and wait statuses of the target
	symbols		Log debug information loading

Additionally --log-dest can be used to specify where the logs should be
written. If the argument is a number it will be interpreted as a file
descriptor, otherwise as a file path.
`,
	})

	return rootCommand
}

func deetCmd(cmd *cobra.Command, args []string) {
	targets, targetArgs := splitArgs(cmd, args)
	os.Exit(execute(append(targets, targetArgs...), conf))
}

// splitArgs separates the arguments before "--" from the ones after it.
func splitArgs(cmd *cobra.Command, args []string) ([]string, []string) {
	if cmd.ArgsLenAtDash() >= 0 {
		return args[:cmd.ArgsLenAtDash()], args[cmd.ArgsLenAtDash():]
	}
	return args, []string{}
}

func execute(processArgs []string, conf *config.Config) int {
	if err := logflags.Setup(log, logOutput, logDest); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer logflags.Close()

	fp, err := filepath.Abs(processArgs[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	processArgs[0] = fp

	if _, err := os.Stat(fp); err != nil {
		fmt.Fprintf(os.Stderr, "Could not open file %s\n", fp)
		return 1
	}
	syms, err := symbols.Load(fp, conf.EntryFunction)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not load debugging symbols from %s: %v\n", fp, err)
		return 1
	}

	d, err := debugger.New(&debugger.Config{
		WorkingDir:    workingDir,
		TTY:           tty,
		EntryFunction: conf.EntryFunction,
		MaxStackDepth: conf.MaxStackDepth,
	}, syms, processArgs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	term := terminal.New(d, conf)
	term.ForwardInterrupts = tty != ""
	status, err := term.Run()
	if err != nil {
		fmt.Println(err)
	}
	return status
}
