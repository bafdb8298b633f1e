package terminal

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"

	"syscall"

	"github.com/derekparker/trie"
	"github.com/go-delve/liner"

	"github.com/go-deet/deet/pkg/config"
	"github.com/go-deet/deet/service"
	"github.com/go-deet/deet/service/api"
)

const (
	terminalHighlightEscapeCode string = "\033[%2dm"
	terminalResetEscapeCode     string = "\033[0m"
)

const (
	ansiBlack   = 30
	ansiBlue    = 34
	ansiWhite   = 37
	ansiBrBlack = 90
	ansiBrWhite = 97
)

// Term represents the terminal running deet.
type Term struct {
	client service.Client
	conf   *config.Config
	prompt string
	line   *liner.State
	cmds   *Commands
	dumb   bool
	stdout io.Writer

	// ForwardInterrupts makes SIGINT received while the target runs be
	// sent to the target. It is needed when the target does not share the
	// debugger's terminal.
	ForwardInterrupts bool
}

// New returns a new Term.
func New(client service.Client, conf *config.Config) *Term {
	cmds := DebugCommands(client)
	if conf != nil && conf.Aliases != nil {
		cmds.Merge(conf.Aliases)
	}

	if conf == nil {
		conf = &config.Config{}
	}

	var w io.Writer

	dumb := isDumb()
	if dumb {
		w = os.Stdout
	} else {
		w = getColorableWriter()
	}

	if (conf.SourceListLineColor > ansiWhite &&
		conf.SourceListLineColor < ansiBrBlack) ||
		conf.SourceListLineColor < ansiBlack ||
		conf.SourceListLineColor > ansiBrWhite {
		conf.SourceListLineColor = ansiBlue
	}

	return &Term{
		client: client,
		conf:   conf,
		prompt: "(deet) ",
		line:   liner.NewLiner(),
		cmds:   cmds,
		dumb:   dumb,
		stdout: w,
	}
}

// Close returns the terminal to its previous mode.
func (t *Term) Close() {
	t.line.Close()
}

// sigintGuard runs while the terminal is active. A SIGINT received while
// the target runs was also delivered to the target, unless it has a
// terminal of its own, in which case it is forwarded.
func (t *Term) sigintGuard(ch <-chan os.Signal) {
	for range ch {
		state := t.client.State()
		if state.State != api.Running {
			continue
		}
		if !t.ForwardInterrupts {
			fmt.Fprintln(t.stdout, "received SIGINT, waiting for the target to stop")
			continue
		}
		if err := syscall.Kill(state.Pid, syscall.SIGINT); err != nil {
			fmt.Fprintf(os.Stderr, "could not forward SIGINT to %d: %v\n", state.Pid, err)
		}
	}
}

// Run begins running deet in the terminal.
func (t *Term) Run() (int, error) {
	defer t.Close()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT)
	defer signal.Stop(ch)
	go t.sigintGuard(ch)

	t.line.SetCtrlCAborts(true)
	t.line.SetCompleter(t.cmds.completer())

	t.loadHistory()
	fmt.Fprintln(t.stdout, "Type 'help' for list of commands.")

	for {
		cmdstr, err := t.promptForInput()
		if err != nil {
			if err == io.EOF {
				fmt.Fprintln(t.stdout, "exit")
				return t.handleExit()
			}
			if err == liner.ErrPromptAborted {
				fmt.Fprintln(t.stdout, `Type "quit" to exit`)
				continue
			}
			return 1, fmt.Errorf("prompt for input failed: %v", err)
		}

		if err := t.cmds.Call(cmdstr, t); err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			if err == errNoCmd {
				fmt.Fprintln(t.stdout, "Unrecognized command.")
				continue
			}
			fmt.Fprintf(os.Stderr, "Command failed: %s\n", err)
		}
	}
}

// Println prints a line to the terminal.
func (t *Term) Println(prefix, str string) {
	if !t.dumb {
		terminalColorEscapeCode := fmt.Sprintf(terminalHighlightEscapeCode, t.conf.SourceListLineColor)
		prefix = fmt.Sprintf("%s%s%s", terminalColorEscapeCode, prefix, terminalResetEscapeCode)
	}
	fmt.Fprintf(t.stdout, "%s%s\n", prefix, str)
}

func (t *Term) promptForInput() (string, error) {
	l, err := t.line.Prompt(t.prompt)
	if err != nil {
		return "", err
	}

	l = strings.TrimSuffix(l, "\n")
	if l != "" {
		t.line.AppendHistory(l)
	}

	return l, nil
}

// historyFile returns the path of the command history file.
func (t *Term) historyFile() (string, error) {
	if t.conf.HistoryFile != "" {
		return t.conf.HistoryFile, nil
	}
	return config.GetConfigFilePath(config.HistoryFile)
}

func (t *Term) loadHistory() {
	fullHistoryFile, err := t.historyFile()
	if err != nil {
		fmt.Printf("Unable to load history file: %v.\n", err)
		return
	}

	f, err := os.Open(fullHistoryFile)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Printf("Unable to open history file: %v.\n", err)
		}
		return
	}
	defer f.Close()
	if _, err := t.line.ReadHistory(f); err != nil {
		fmt.Printf("Unable to read history file: %v.\n", err)
	}
}

func (t *Term) saveHistory() {
	fullHistoryFile, err := t.historyFile()
	if err != nil {
		fmt.Println("Error saving history file:", err)
		return
	}
	f, err := os.OpenFile(fullHistoryFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		fmt.Printf("Warning: failed to save history file at %s: %v\n", fullHistoryFile, err)
		return
	}
	defer f.Close()
	if _, err := t.line.WriteHistory(f); err != nil {
		fmt.Println("readline history error:", err)
	}
}

// handleExit saves the history and kills the target if it is still
// alive.
func (t *Term) handleExit() (int, error) {
	t.saveHistory()

	if pid := t.client.ProcessPid(); pid != 0 {
		fmt.Fprintf(t.stdout, "Killing running inferior (pid %d)\n", pid)
	}
	if err := t.client.Detach(true); err != nil {
		return 1, err
	}
	return 0, nil
}

// completer returns a liner completer over the names and aliases of the
// commands.
func (c *Commands) completer() liner.Completer {
	names := trie.New()
	for _, cmd := range c.cmds {
		for _, alias := range cmd.aliases {
			names.Add(alias, nil)
		}
	}
	return func(line string) []string {
		if strings.ContainsRune(line, ' ') {
			return nil
		}
		c := names.PrefixSearch(strings.ToLower(line))
		sort.Strings(c)
		return c
	}
}
