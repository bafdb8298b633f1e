// Package terminal implements functions for responding to user
// input and dispatching to appropriate backend commands.
package terminal

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/cosiner/argv"

	"github.com/go-deet/deet/service"
	"github.com/go-deet/deet/service/api"
)

type cmdfunc func(t *Term, args string) error

type command struct {
	aliases        []string
	builtinAliases []string
	group          commandGroup
	helpMsg        string
	cmdFn          cmdfunc
}

// Returns true if the command string matches one of the aliases for this command
func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return false
}

// Commands represents the commands for the deet terminal process.
type Commands struct {
	cmds   []command
	client service.Client
}

// DebugCommands returns a Commands struct with default commands defined.
func DebugCommands(client service.Client) *Commands {
	c := &Commands{client: client}

	c.cmds = []command{
		{aliases: []string{"help", "h"}, cmdFn: c.help, helpMsg: `Prints the help message.

	help [command]

Type "help" followed by the name of a command for more information about it.`},
		{aliases: []string{"run", "r"}, group: runCmds, cmdFn: run, helpMsg: `Starts the program.

	run [args...]

Arguments are split the way a shell would. Without arguments the ones of the
previous run are used. A running program is killed first.`},
		{aliases: []string{"continue", "c", "cont"}, group: runCmds, cmdFn: cont, helpMsg: `Run until breakpoint or program termination.

	continue`},
		{aliases: []string{"break", "b"}, group: breakCmds, cmdFn: breakpoint, helpMsg: `Sets a breakpoint.

	break <location>

The location is one of:

	*<address>	a hexadecimal address, for example *0x401136
	<line>		a line of the program, or a function named by the number
	<file>:<line>	a line of the given source file
	<function>	the first line of a function after its prologue

Breakpoints can be set before the program starts and are kept when it is
restarted.`},
		{aliases: []string{"clear"}, group: breakCmds, cmdFn: clear, helpMsg: `Deletes breakpoint.

	clear <breakpoint id>`},
		{aliases: []string{"breakpoints", "bp"}, group: breakCmds, cmdFn: breakpoints, helpMsg: `Print out info for active breakpoints.

	breakpoints`},
		{aliases: []string{"backtrace", "bt", "back"}, group: stackCmds, cmdFn: backtrace, helpMsg: `Print stack trace.

	backtrace [depth]

Frames are printed innermost first, up to the entry function or depth frames.`},
		{aliases: []string{"quit", "q", "exit"}, cmdFn: exitCommand, helpMsg: `Exit the debugger, killing the program.

	quit`},
	}

	return c
}

// Find will look up the command function for the given command input.
// If it cannot find the command it will default to noCmdAvailable().
// If the command is an empty string it does nothing.
func (c *Commands) Find(cmdstr string) cmdfunc {
	if cmdstr == "" {
		return nullCommand
	}

	for _, v := range c.cmds {
		if v.match(cmdstr) {
			return v.cmdFn
		}
	}

	return noCmdAvailable
}

// Call takes a command to execute.
func (c *Commands) Call(cmdstr string, t *Term) error {
	vals := strings.SplitN(strings.TrimSpace(cmdstr), " ", 2)
	cmdname := vals[0]
	var args string
	if len(vals) > 1 {
		args = strings.TrimSpace(vals[1])
	}
	return c.Find(cmdname)(t, args)
}

// Merge takes aliases defined in the config struct and merges them with the default aliases.
func (c *Commands) Merge(allAliases map[string][]string) {
	for i := range c.cmds {
		if c.cmds[i].builtinAliases != nil {
			c.cmds[i].aliases = append(c.cmds[i].aliases[:0], c.cmds[i].builtinAliases...)
		}
	}
	for i := range c.cmds {
		if aliases, ok := allAliases[c.cmds[i].aliases[0]]; ok {
			if c.cmds[i].builtinAliases == nil {
				c.cmds[i].builtinAliases = make([]string, len(c.cmds[i].aliases))
				copy(c.cmds[i].builtinAliases, c.cmds[i].aliases)
			}
			c.cmds[i].aliases = append(c.cmds[i].aliases, aliases...)
		}
	}
}

var errNoCmd = errors.New("command not available")

func noCmdAvailable(t *Term, args string) error {
	return errNoCmd
}

func nullCommand(t *Term, args string) error {
	return nil
}

func (c *Commands) help(t *Term, args string) error {
	if args != "" {
		for _, cmd := range c.cmds {
			if cmd.match(args) {
				fmt.Fprintln(t.stdout, cmd.helpMsg)
				return nil
			}
		}
		return errNoCmd
	}

	fmt.Fprintln(t.stdout, "The following commands are available:")

	for _, cgd := range commandGroupDescriptions {
		fmt.Fprintf(t.stdout, "\n%s:\n", cgd.description)
		w := new(tabwriter.Writer)
		w.Init(t.stdout, 0, 8, 0, '-', 0)
		for _, cmd := range c.cmds {
			if cmd.group != cgd.group {
				continue
			}
			h := cmd.helpMsg
			if idx := strings.Index(h, "\n"); idx >= 0 {
				h = h[:idx]
			}
			if len(cmd.aliases) > 1 {
				fmt.Fprintf(w, "    %s (alias: %s) \t %s\n", cmd.aliases[0], strings.Join(cmd.aliases[1:], " | "), h)
			} else {
				fmt.Fprintf(w, "    %s \t %s\n", cmd.aliases[0], h)
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(t.stdout)
	fmt.Fprintln(t.stdout, "Type help followed by a command for full documentation.")
	return nil
}

// parseArgv splits the arguments of run the way a shell would.
func parseArgv(args string) ([]string, error) {
	if args == "" {
		return nil, nil
	}
	v, err := argv.Argv(args,
		func(s string) (string, error) {
			return "", fmt.Errorf("Backtick not supported in '%s'", s)
		},
		nil)
	if err != nil {
		return nil, err
	}
	if len(v) != 1 {
		return nil, fmt.Errorf("illegal commandline '%s'", args)
	}
	return v[0], nil
}

func run(t *Term, args string) error {
	newArgv, err := parseArgv(args)
	if err != nil {
		return err
	}
	if pid := t.client.ProcessPid(); pid != 0 {
		fmt.Fprintf(t.stdout, "Killing running inferior (pid %d)\n", pid)
	}
	state, discarded, err := t.client.Run(newArgv)
	if err != nil {
		fmt.Fprintf(t.stdout, "Error starting subprocess: %v\n", err)
		return nil
	}
	for _, d := range discarded {
		fmt.Fprintf(t.stdout, "Discarded %s: %s\n", d.Breakpoint, d.Reason)
	}
	printStopReport(t, state)
	return nil
}

func cont(t *Term, args string) error {
	if t.client.ProcessPid() == 0 {
		return errors.New("can't use continue when no process is running")
	}
	state, err := t.client.Continue()
	if err != nil {
		return err
	}
	printStopReport(t, state)
	return nil
}

// printStopReport describes why the target stopped or ended.
func printStopReport(t *Term, state *api.DebuggerState) {
	switch {
	case state.Signaled:
		fmt.Fprintf(t.stdout, "Child terminated (signal %s)\n", state.Signal)
	case state.Exited:
		fmt.Fprintf(t.stdout, "Child exited (status %d)\n", state.ExitStatus)
	case state.State.Stopped():
		fmt.Fprintf(t.stdout, "Child stopped (signal %s)\n", state.Signal)
		if state.Location != nil {
			t.Println("Stopped at ", state.Location.Source())
		}
	}
}

func breakpoint(t *Term, args string) error {
	if args == "" {
		return errors.New("address required")
	}
	bp, err := t.client.CreateBreakpoint(args)
	if err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "Set breakpoint %d at %#x\n", bp.ID, bp.Addr)
	return nil
}

func clear(t *Term, args string) error {
	if len(args) == 0 {
		return fmt.Errorf("not enough arguments")
	}
	id, err := strconv.Atoi(args)
	if err != nil {
		return fmt.Errorf("invalid breakpoint id %q", args)
	}
	bp, err := t.client.ClearBreakpoint(id)
	if err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "%s cleared\n", bp)
	return nil
}

func breakpoints(t *Term, args string) error {
	bps := t.client.Breakpoints()
	if len(bps) == 0 {
		fmt.Fprintln(t.stdout, "No breakpoints set.")
		return nil
	}
	for _, bp := range bps {
		fmt.Fprintln(t.stdout, bp)
	}
	return nil
}

func backtrace(t *Term, args string) error {
	depth := 0
	if args != "" {
		var err error
		depth, err = strconv.Atoi(args)
		if err != nil || depth <= 0 {
			return fmt.Errorf("invalid depth %q", args)
		}
	}
	stack, err := t.client.Stacktrace(depth)
	for i := range stack {
		fmt.Fprintln(t.stdout, stack[i].Location.String())
	}
	return err
}

// ExitRequestError is returned when the user
// exits deet.
type ExitRequestError struct{}

func (ere ExitRequestError) Error() string {
	return ""
}

func exitCommand(t *Term, args string) error {
	return ExitRequestError{}
}
