package terminal

import (
	"bytes"
	"errors"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/go-delve/liner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-deet/deet/pkg/config"
	protest "github.com/go-deet/deet/pkg/proc/test"
	"github.com/go-deet/deet/service/api"
	"github.com/go-deet/deet/service/debugger"
)

type FakeTerminal struct {
	*Term
	t testing.TB
}

func (ft *FakeTerminal) Exec(cmdstr string) (outstr string, err error) {
	var out bytes.Buffer
	termstdout := ft.Term.stdout
	ft.Term.stdout = &out
	defer func() {
		ft.Term.stdout = termstdout
	}()
	err = ft.cmds.Call(cmdstr, ft.Term)
	return out.String(), err
}

func (ft *FakeTerminal) MustExec(cmdstr string) string {
	outstr, err := ft.Exec(cmdstr)
	if err != nil {
		ft.t.Fatalf("Error executing <%s>: %v", cmdstr, err)
	}
	return outstr
}

func withTestTerminal(t *testing.T, fn func(*FakeTerminal, *protest.SimLauncher)) {
	prog, syms := protest.BreaksProgram()
	l := &protest.SimLauncher{Prog: prog}
	d, err := debugger.New(&debugger.Config{Launch: l.Launch}, syms, []string{"/src/breaks"})
	require.NoError(t, err)
	defer d.Detach(true)

	term := &Term{
		client: d,
		conf:   &config.Config{HistoryFile: filepath.Join(t.TempDir(), config.HistoryFile)},
		prompt: "(deet) ",
		cmds:   DebugCommands(d),
		dumb:   true,
		stdout: ioutil.Discard,
	}
	fn(&FakeTerminal{Term: term, t: t}, l)
}

func TestBreakRunContinueBacktrace(t *testing.T) {
	withTestTerminal(t, func(term *FakeTerminal, l *protest.SimLauncher) {
		assert.Equal(t, "Set breakpoint 0 at 0x401008\n", term.MustExec("break 11"))
		assert.Equal(t, "Set breakpoint 1 at 0x401104\n", term.MustExec("b foo"))

		assert.Equal(t, "Child stopped (signal SIGTRAP)\nStopped at breaks.c:11\n", term.MustExec("run"))
		assert.Equal(t, "main (breaks.c:11)\n", term.MustExec("bt"))

		assert.Equal(t, "Child stopped (signal SIGTRAP)\nStopped at breaks.c:5\n", term.MustExec("c"))
		assert.Equal(t, "foo (breaks.c:5)\nmain (breaks.c:11)\n", term.MustExec("backtrace"))
		assert.Equal(t, "foo (breaks.c:5)\n", term.MustExec("back 1"))

		assert.Equal(t, "Child exited (status 7)\n", term.MustExec("cont"))
		assert.Equal(t, l.Prog.Trace, l.Procs[0].Executed)
	})
}

func TestUnrecognizedCommand(t *testing.T) {
	withTestTerminal(t, func(term *FakeTerminal, l *protest.SimLauncher) {
		out, err := term.Exec("frobnicate now")
		assert.Equal(t, errNoCmd, err)
		assert.Empty(t, out)
		assert.Empty(t, l.Args)

		out, err = term.Exec("")
		assert.NoError(t, err)
		assert.Empty(t, out)
	})
}

func TestContinueWithoutProcess(t *testing.T) {
	withTestTerminal(t, func(term *FakeTerminal, l *protest.SimLauncher) {
		_, err := term.Exec("continue")
		assert.EqualError(t, err, "can't use continue when no process is running")
	})
}

func TestBacktraceWithoutProcess(t *testing.T) {
	withTestTerminal(t, func(term *FakeTerminal, l *protest.SimLauncher) {
		_, err := term.Exec("bt")
		assert.Error(t, err)
		_, err = term.Exec("bt -1")
		assert.EqualError(t, err, `invalid depth "-1"`)
	})
}

func TestRunKillsRunningInferior(t *testing.T) {
	withTestTerminal(t, func(term *FakeTerminal, l *protest.SimLauncher) {
		term.MustExec("break foo")
		term.MustExec("run")
		out := term.MustExec(`run x "y z"`)
		assert.Equal(t, "Killing running inferior (pid 100)\nChild stopped (signal SIGTRAP)\nStopped at breaks.c:5\n", out)
		assert.True(t, l.Procs[0].Killed())
		assert.Equal(t, []string{"/src/breaks", "x", "y z"}, l.Args[1])
	})
}

func TestRunSpawnFailure(t *testing.T) {
	withTestTerminal(t, func(term *FakeTerminal, l *protest.SimLauncher) {
		l.Err = errors.New("fork/exec /src/breaks: no such file or directory")
		out, err := term.Exec("run")
		require.NoError(t, err)
		assert.Equal(t, "Error starting subprocess: fork/exec /src/breaks: no such file or directory\n", out)

		l.Err = nil
		assert.Equal(t, "Child exited (status 7)\n", term.MustExec("r"))
	})
}

func TestRunReportsDiscardedBreakpoints(t *testing.T) {
	withTestTerminal(t, func(term *FakeTerminal, l *protest.SimLauncher) {
		term.MustExec("break *0x10")
		out := term.MustExec("run")
		assert.Equal(t, "Discarded Breakpoint 0 at 0x10: invalid address 0x10\nChild exited (status 7)\n", out)
	})
}

func TestBreakInvalidAddressWithLiveProcess(t *testing.T) {
	withTestTerminal(t, func(term *FakeTerminal, l *protest.SimLauncher) {
		term.MustExec("break main")
		term.MustExec("run")
		_, err := term.Exec("break *0xdeadbeef")
		assert.EqualError(t, err, "could not set breakpoint 1 at 0xdeadbeef: invalid address 0xdeadbeef")
		assert.Equal(t, "Breakpoint 0 at 0x401008 for main() breaks.c:11\n", term.MustExec("breakpoints"))

		_, err = term.Exec("break")
		assert.EqualError(t, err, "address required")
	})
}

func TestBreakpointsAndClear(t *testing.T) {
	withTestTerminal(t, func(term *FakeTerminal, l *protest.SimLauncher) {
		assert.Equal(t, "No breakpoints set.\n", term.MustExec("bp"))
		term.MustExec("break 11")
		term.MustExec("break foo")
		assert.Equal(t,
			"Breakpoint 0 at 0x401008 for main() breaks.c:11\nBreakpoint 1 at 0x401104 for foo() breaks.c:5\n",
			term.MustExec("breakpoints"))

		assert.Equal(t, "Breakpoint 0 at 0x401008 for main() breaks.c:11 cleared\n", term.MustExec("clear 0"))
		_, err := term.Exec("clear 0")
		assert.Error(t, err)
		_, err = term.Exec("clear x")
		assert.EqualError(t, err, `invalid breakpoint id "x"`)
		_, err = term.Exec("clear")
		assert.EqualError(t, err, "not enough arguments")

		assert.Equal(t, "Child stopped (signal SIGTRAP)\nStopped at breaks.c:5\n", term.MustExec("run"))
	})
}

func TestExitCommand(t *testing.T) {
	withTestTerminal(t, func(term *FakeTerminal, l *protest.SimLauncher) {
		for _, cmd := range []string{"quit", "q", "exit"} {
			_, err := term.Exec(cmd)
			assert.IsType(t, ExitRequestError{}, err)
		}
	})
}

func TestHandleExitKillsAndSavesHistory(t *testing.T) {
	withTestTerminal(t, func(term *FakeTerminal, l *protest.SimLauncher) {
		term.line = liner.NewLiner()
		defer term.line.Close()
		term.stdout = ioutil.Discard

		term.MustExec("break foo")
		term.MustExec("run")
		term.line.AppendHistory("break foo")
		term.line.AppendHistory("run")

		code, err := term.handleExit()
		require.NoError(t, err)
		assert.Equal(t, 0, code)
		assert.True(t, l.Procs[0].Killed())

		history, err := ioutil.ReadFile(term.conf.HistoryFile)
		require.NoError(t, err)
		assert.Equal(t, "break foo\nrun\n", string(history))
	})
}

func TestHelp(t *testing.T) {
	withTestTerminal(t, func(term *FakeTerminal, l *protest.SimLauncher) {
		out := term.MustExec("help")
		assert.Contains(t, out, "Running the program:")
		assert.Contains(t, out, "continue (alias: c | cont)")
		assert.Contains(t, out, "backtrace (alias: bt | back)")

		out = term.MustExec("help clear")
		assert.Contains(t, out, "clear <breakpoint id>")

		_, err := term.Exec("help nosuchcommand")
		assert.Equal(t, errNoCmd, err)
	})
}

func TestMergeAliases(t *testing.T) {
	cmds := DebugCommands(nil)
	cmds.Merge(map[string][]string{"continue": {"go"}, "backtrace": {"where"}})
	assert.NotNil(t, cmds.Find("go"))
	assert.NotNil(t, cmds.Find("where"))

	// merging again replaces the previous user aliases
	cmds.Merge(map[string][]string{"continue": {"resume"}})
	for _, cmd := range cmds.cmds {
		assert.NotContains(t, cmd.aliases, "go")
		assert.NotContains(t, cmd.aliases, "where")
	}
	for _, cmd := range cmds.cmds {
		if cmd.aliases[0] == "continue" {
			assert.Equal(t, []string{"continue", "c", "cont", "resume"}, cmd.aliases)
		}
	}
}

func TestCompleter(t *testing.T) {
	complete := DebugCommands(nil).completer()
	assert.Equal(t, []string{"c", "clear", "cont", "continue"}, complete("c"))
	assert.Equal(t, []string{"b", "back", "backtrace", "bp", "break", "breakpoints", "bt"}, complete("B"))
	assert.Empty(t, complete("z"))
	assert.Empty(t, complete("break f"))
}

func TestParseArgv(t *testing.T) {
	args, err := parseArgv(`a "b c" 'd e' f\ g`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b c", "d e", "f g"}, args)

	args, err = parseArgv("")
	require.NoError(t, err)
	assert.Nil(t, args)

	_, err = parseArgv("`ls`")
	assert.Error(t, err)
	_, err = parseArgv("a | b")
	assert.EqualError(t, err, "illegal commandline 'a | b'")
}

func TestPrintStopReport(t *testing.T) {
	withTestTerminal(t, func(term *FakeTerminal, l *protest.SimLauncher) {
		var out bytes.Buffer
		term.stdout = &out

		printStopReport(term.Term, &api.DebuggerState{State: api.Exited, Exited: true, Signaled: true, Signal: "SIGSEGV"})
		printStopReport(term.Term, &api.DebuggerState{State: api.Exited, Exited: true, ExitStatus: 3})
		printStopReport(term.Term, &api.DebuggerState{
			State:    api.StoppedOther,
			Signal:   "SIGSEGV",
			Location: &api.Location{PC: 0x401234},
		})
		assert.Equal(t,
			"Child terminated (signal SIGSEGV)\nChild exited (status 3)\nChild stopped (signal SIGSEGV)\nStopped at 0x401234\n",
			out.String())
	})
}

func TestPrintlnColor(t *testing.T) {
	var out bytes.Buffer
	term := &Term{conf: &config.Config{SourceListLineColor: ansiBlue}, stdout: &out}
	term.Println("Stopped at ", "breaks.c:5")
	assert.Equal(t, "\033[34mStopped at \033[0mbreaks.c:5\n", out.String())

	out.Reset()
	term.dumb = true
	term.Println("Stopped at ", "breaks.c:5")
	assert.Equal(t, "Stopped at breaks.c:5\n", out.String())
}
